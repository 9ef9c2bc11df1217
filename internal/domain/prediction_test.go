package domain

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewPrediction(t *testing.T) {
	tests := []struct {
		name      string
		probs     []float32
		wantLabel Emotion
		wantConf  float32
		wantErr   bool
	}{
		{
			name:      "clear winner",
			probs:     []float32{0.05, 0.05, 0.05, 0.7, 0.05, 0.05, 0.05},
			wantLabel: Happy,
			wantConf:  0.7,
		},
		{
			name:      "tie resolves to lowest index",
			probs:     []float32{0, 0.5, 0, 0, 0, 0.5, 0},
			wantLabel: Disgust,
			wantConf:  0.5,
		},
		{
			name:    "wrong width",
			probs:   []float32{0.5, 0.5},
			wantErr: true,
		},
		{
			name:    "negative entry",
			probs:   []float32{-0.1, 0.1, 0.2, 0.2, 0.2, 0.2, 0.2},
			wantErr: true,
		},
		{
			name:    "does not sum to one",
			probs:   []float32{0.1, 0.1, 0.1, 0.1, 0.1, 0.1, 0.1},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := NewPrediction(tt.probs)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantLabel, p.Label)
			assert.InDelta(t, tt.wantConf, p.Confidence, 1e-6)
		})
	}
}

func TestNewPrediction_WrongWidthIsShapeError(t *testing.T) {
	_, err := NewPrediction(make([]float32, 3))
	assert.True(t, errors.Is(err, ErrShape))
}

func TestNormalizeScores(t *testing.T) {
	// DeepFace reports percentages
	p, err := NormalizeScores([NumEmotions]float64{1.5, 0.2, 3.1, 80.4, 10.0, 3.3, 1.5})
	require.NoError(t, err)

	var sum float64
	for _, v := range p.Probabilities {
		assert.GreaterOrEqual(t, v, float32(0))
		assert.LessOrEqual(t, v, float32(1))
		sum += float64(v)
	}
	assert.InDelta(t, 1.0, sum, ProbabilityTolerance)
	assert.Equal(t, Happy, p.Label)
	assert.InDelta(t, 0.804, p.Confidence, 1e-3)

	_, err = NormalizeScores([NumEmotions]float64{})
	assert.Error(t, err)
}

func TestDefaultPrediction(t *testing.T) {
	p := DefaultPrediction()
	assert.Equal(t, Neutral, p.Label)
	assert.Zero(t, p.Confidence)
}

func TestConfidenceText(t *testing.T) {
	assert.Equal(t, "Confidence: 0.0%", ConfidenceText(0))
	assert.Equal(t, "Confidence: 87.3%", ConfidenceText(0.873))
	assert.Equal(t, "Confidence: 100.0%", ConfidenceText(1))
}

func TestPrediction_Distribution(t *testing.T) {
	p, err := NewPrediction([]float32{0, 0, 0, 0, 1, 0, 0})
	require.NoError(t, err)

	dist := p.Distribution()
	assert.Len(t, dist, NumEmotions)
	assert.Equal(t, float32(1), dist["Neutral"])
}
