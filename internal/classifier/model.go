package classifier

import (
	"fmt"

	"github.com/saturnino-fabrica-de-software/emosense/internal/domain"
	"github.com/saturnino-fabrica-de-software/emosense/internal/imaging"
	"github.com/saturnino-fabrica-de-software/emosense/internal/nn"
)

// Model is a classifier network plus the metadata persisted with it.
// Once training has finished it is only read, so Predict is safe to call
// from many goroutines.
type Model struct {
	net     *nn.Sequential
	opts    Options
	epochs  int
	version string
}

// New returns an untrained model initialized from seed
func New(seed int64, opts Options) (*Model, error) {
	net, err := NewNetwork(seed, opts)
	if err != nil {
		return nil, err
	}
	return &Model{net: net, opts: opts.withDefaults(), version: domain.LabelSetVersion}, nil
}

// Network exposes the layers for training
func (m *Model) Network() *nn.Sequential { return m.net }

// EpochsTrained is the number of completed training epochs in the parameters
func (m *Model) EpochsTrained() int { return m.epochs }

func (m *Model) SetEpochsTrained(n int) { m.epochs = n }

func (m *Model) LabelSetVersion() string { return m.version }

// Predict classifies a single (1,48,48,1) input
func (m *Model) Predict(x *nn.Tensor) (domain.Prediction, error) {
	if x.Batch() != 1 {
		return domain.Prediction{}, fmt.Errorf("%w: Predict takes one sample, got shape %v", domain.ErrShape, x.Shape)
	}
	preds, err := m.PredictBatch(x)
	if err != nil {
		return domain.Prediction{}, err
	}
	return preds[0], nil
}

// PredictBatch classifies every sample of an (N,48,48,1) input
func (m *Model) PredictBatch(x *nn.Tensor) ([]domain.Prediction, error) {
	if err := imaging.ValidateInput(x, imaging.InputSize); err != nil {
		return nil, err
	}
	probs, err := m.net.Predict(x)
	if err != nil {
		return nil, fmt.Errorf("classifier forward: %w", err)
	}

	preds := make([]domain.Prediction, probs.Batch())
	for i := range preds {
		p, err := domain.NewPrediction(probs.Sample(i))
		if err != nil {
			return nil, fmt.Errorf("classifier output %d: %w", i, err)
		}
		preds[i] = p
	}
	return preds, nil
}

// Probabilities runs the network and returns the raw (N,7) softmax output
func (m *Model) Probabilities(x *nn.Tensor) (*nn.Tensor, error) {
	if err := imaging.ValidateInput(x, imaging.InputSize); err != nil {
		return nil, err
	}
	return m.net.Predict(x)
}
