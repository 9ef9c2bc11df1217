package domain

import (
	"time"

	"github.com/google/uuid"
)

// VisionOutcome is the result of the vision sub-flow. A degraded outcome
// always carries DefaultPrediction.
type VisionOutcome struct {
	Prediction Prediction
	Provider   string
	Attempted  bool
	Degraded   bool
	Cause      error
}

// DegradedVision builds the default vision outcome for a failure cause
func DegradedVision(provider string, cause error) VisionOutcome {
	return VisionOutcome{
		Prediction: DefaultPrediction(),
		Provider:   provider,
		Attempted:  cause != nil,
		Degraded:   true,
		Cause:      cause,
	}
}

// TextOutcome is the result of the text sub-flow
type TextOutcome struct {
	Reply    string
	Degraded bool
	Cause    error
}

// Analysis is the merged outcome of one inference request
type Analysis struct {
	ID        uuid.UUID
	UserText  string
	Vision    VisionOutcome
	Text      TextOutcome
	LatencyMs int64
	CreatedAt time.Time
}

func (a *Analysis) Mood() Emotion {
	return a.Vision.Prediction.Label
}

func (a *Analysis) Confidence() float32 {
	return a.Vision.Prediction.Confidence
}

// MoodCount is one row of the mood distribution statistics
type MoodCount struct {
	Mood          Emotion `json:"mood"`
	Count         int64   `json:"count"`
	AvgConfidence float64 `json:"avg_confidence"`
}
