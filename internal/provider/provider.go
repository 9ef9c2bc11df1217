package provider

import (
	"context"

	"github.com/saturnino-fabrica-de-software/emosense/internal/domain"
)

// EmotionProvider turns one still image into a probability distribution
// over the seven emotions
type EmotionProvider interface {
	// Name identifica o provider nos logs, métricas e no audit store
	Name() string

	// DetectEmotion classifies the dominant face of a decoded image payload
	// (raw bytes, any supported format)
	DetectEmotion(ctx context.Context, image []byte) (domain.Prediction, error)

	// Ready reports whether the provider can serve requests right now
	Ready(ctx context.Context) error
}

// Info describes a configured provider for the health endpoints
type Info struct {
	Name  string `json:"name"`
	Ready bool   `json:"ready"`
	Error string `json:"error,omitempty"`
}

// Describe checks p and summarizes the result
func Describe(ctx context.Context, p EmotionProvider) Info {
	info := Info{Name: p.Name(), Ready: true}
	if err := p.Ready(ctx); err != nil {
		info.Ready = false
		info.Error = err.Error()
	}
	return info
}
