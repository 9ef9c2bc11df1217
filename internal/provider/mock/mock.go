package mock

import (
	"context"
	"crypto/sha256"
	"errors"

	"github.com/saturnino-fabrica-de-software/emosense/internal/domain"
	"github.com/saturnino-fabrica-de-software/emosense/internal/provider"
)

const Name = "mock"

// ErrEmptyImage is returned for a zero-length payload
var ErrEmptyImage = errors.New("mock provider: empty image")

// Provider implementa provider.EmotionProvider para testes e desenvolvimento.
// A distribuição é derivada do hash da imagem, então a mesma imagem sempre
// produz o mesmo resultado.
type Provider struct {
	// Err, quando definido, é retornado por todas as chamadas
	Err error
}

var _ provider.EmotionProvider = (*Provider)(nil)

// New cria uma nova instância do MockProvider
func New() *Provider {
	return &Provider{}
}

// Failing returns a provider whose every call fails with err
func Failing(err error) *Provider {
	return &Provider{Err: err}
}

func (p *Provider) Name() string { return Name }

func (p *Provider) Ready(ctx context.Context) error {
	return p.Err
}

// DetectEmotion gera uma distribuição determinística baseada no hash da imagem
func (p *Provider) DetectEmotion(ctx context.Context, image []byte) (domain.Prediction, error) {
	if p.Err != nil {
		return domain.Prediction{}, p.Err
	}
	if err := ctx.Err(); err != nil {
		return domain.Prediction{}, err
	}
	if len(image) == 0 {
		return domain.Prediction{}, ErrEmptyImage
	}

	return domain.NormalizeScores(scores(image))
}

func scores(image []byte) [domain.NumEmotions]float64 {
	hash := sha256.Sum256(image)
	var out [domain.NumEmotions]float64
	for i := range out {
		// +1 keeps every class strictly positive
		out[i] = float64(hash[i]) + 1
	}
	return out
}
