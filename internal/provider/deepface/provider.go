package deepface

import (
	"context"
	"encoding/base64"
	"fmt"
	"net/http"

	"github.com/saturnino-fabrica-de-software/emosense/internal/domain"
	"github.com/saturnino-fabrica-de-software/emosense/internal/provider"
)

const Name = "deepface"

// Provider implements provider.EmotionProvider using the DeepFace API
type Provider struct {
	client *Client
}

var _ provider.EmotionProvider = (*Provider)(nil)

// NewProvider creates a new DeepFace provider
func NewProvider(config Config) *Provider {
	return &Provider{
		client: NewClient(config),
	}
}

func (p *Provider) Name() string { return Name }

func (p *Provider) Ready(ctx context.Context) error {
	return p.client.Ping(ctx)
}

// DetectEmotion sends the image to /analyze and maps the emotion scores of
// the largest face onto the seven labels
func (p *Provider) DetectEmotion(ctx context.Context, image []byte) (domain.Prediction, error) {
	uri := "data:" + http.DetectContentType(image) + ";base64," + base64.StdEncoding.EncodeToString(image)

	resp, err := p.client.Analyze(ctx, uri)
	if err != nil {
		return domain.Prediction{}, fmt.Errorf("detect emotion: %w", err)
	}
	if len(resp.Results) == 0 {
		return domain.Prediction{}, ErrNoFaceInResponse
	}

	// usa a maior face detectada
	best := resp.Results[0]
	for _, r := range resp.Results[1:] {
		if r.Region.Area() > best.Region.Area() {
			best = r
		}
	}

	return MapScores(best.Emotion)
}

// MapScores converts DeepFace's per-label percentages into a Prediction.
// DeepFace uses the same seven labels, in lower case.
func MapScores(scores map[string]float64) (domain.Prediction, error) {
	if len(scores) == 0 {
		return domain.Prediction{}, ErrNoEmotionScores
	}

	var vec [domain.NumEmotions]float64
	for name, score := range scores {
		label, err := domain.ParseEmotion(name)
		if err != nil {
			continue
		}
		vec[label] += score
	}

	pred, err := domain.NormalizeScores(vec)
	if err != nil {
		return domain.Prediction{}, fmt.Errorf("%w: %v", ErrInvalidResponse, err)
	}
	return pred, nil
}
