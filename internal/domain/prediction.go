package domain

import (
	"fmt"
	"math"
)

// ProbabilityTolerance bounds the deviation of a probability vector sum from 1
const ProbabilityTolerance = 1e-5

// Prediction is a probability distribution over the seven emotions plus the
// derived argmax label and its probability.
type Prediction struct {
	Probabilities [NumEmotions]float32 `json:"probabilities"`
	Label         Emotion              `json:"label"`
	Confidence    float32              `json:"confidence"`
}

// DefaultPrediction is the degraded vision outcome: Neutral with zero confidence
func DefaultPrediction() Prediction {
	return Prediction{Label: Neutral}
}

// NewPrediction validates a probability vector and derives label and
// confidence. Ties resolve to the lowest class index.
func NewPrediction(probs []float32) (Prediction, error) {
	if len(probs) != NumEmotions {
		return Prediction{}, fmt.Errorf("%w: want %d probabilities, got %d", ErrShape, NumEmotions, len(probs))
	}

	var p Prediction
	var sum float64
	for i, v := range probs {
		if math.IsNaN(float64(v)) || v < 0 || v > 1 {
			return Prediction{}, fmt.Errorf("probability %d out of range: %v", i, v)
		}
		p.Probabilities[i] = v
		sum += float64(v)
		if v > p.Confidence {
			p.Confidence = v
			p.Label = Emotion(i)
		}
	}

	if math.Abs(sum-1) > ProbabilityTolerance {
		return Prediction{}, fmt.Errorf("probabilities sum to %v", sum)
	}

	return p, nil
}

// NormalizeScores turns non-negative per-label scores (for example provider
// percentages) into a Prediction.
func NormalizeScores(scores [NumEmotions]float64) (Prediction, error) {
	var total float64
	for i, s := range scores {
		if s < 0 || math.IsNaN(s) {
			return Prediction{}, fmt.Errorf("score %d out of range: %v", i, s)
		}
		total += s
	}
	if total == 0 {
		return Prediction{}, fmt.Errorf("all emotion scores are zero")
	}

	probs := make([]float32, NumEmotions)
	var acc float64
	for i, s := range scores {
		probs[i] = float32(s / total)
		acc += float64(probs[i])
	}
	// fold float32 rounding into the largest entry
	maxIdx := 0
	for i := range probs {
		if probs[i] > probs[maxIdx] {
			maxIdx = i
		}
	}
	probs[maxIdx] += float32(1 - acc)
	if probs[maxIdx] > 1 {
		probs[maxIdx] = 1
	}

	return NewPrediction(probs)
}

// Distribution returns the probabilities keyed by label name
func (p Prediction) Distribution() map[string]float32 {
	out := make(map[string]float32, NumEmotions)
	for i, v := range p.Probabilities {
		out[Emotion(i).String()] = v
	}
	return out
}

// ConfidenceText renders the human-readable confidence string of a response
func ConfidenceText(confidence float32) string {
	return fmt.Sprintf("Confidence: %.1f%%", float64(confidence)*100)
}
