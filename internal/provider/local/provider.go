// Package local serves emotion predictions from the in-process CNN.
package local

import (
	"context"
	"fmt"

	"github.com/saturnino-fabrica-de-software/emosense/internal/classifier"
	"github.com/saturnino-fabrica-de-software/emosense/internal/domain"
	"github.com/saturnino-fabrica-de-software/emosense/internal/imaging"
	"github.com/saturnino-fabrica-de-software/emosense/internal/provider"
)

const Name = "local"

// Provider runs the preprocessing chain and the classifier. A nil model is
// valid and makes every call fail with domain.ErrModelUnavailable.
type Provider struct {
	model *classifier.Model
	pre   *imaging.Preprocessor
}

var _ provider.EmotionProvider = (*Provider)(nil)

func NewProvider(model *classifier.Model) *Provider {
	return &Provider{model: model, pre: imaging.NewPreprocessor()}
}

func (p *Provider) Name() string { return Name }

func (p *Provider) Ready(_ context.Context) error {
	if p.model == nil {
		return domain.ErrModelUnavailable
	}
	return nil
}

func (p *Provider) DetectEmotion(ctx context.Context, image []byte) (domain.Prediction, error) {
	if p.model == nil {
		return domain.Prediction{}, domain.ErrModelUnavailable
	}
	if err := ctx.Err(); err != nil {
		return domain.Prediction{}, err
	}

	x, err := p.pre.PreprocessBytes(image)
	if err != nil {
		return domain.Prediction{}, fmt.Errorf("preprocess: %w", err)
	}
	pred, err := p.model.Predict(x)
	if err != nil {
		return domain.Prediction{}, fmt.Errorf("classify: %w", err)
	}
	return pred, nil
}
