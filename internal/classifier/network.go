// Package classifier holds the convolutional emotion classifier: its fixed
// topology, inference entry points and the on-disk parameter artifact.
package classifier

import (
	"fmt"
	"math/rand"

	"github.com/saturnino-fabrica-de-software/emosense/internal/domain"
	"github.com/saturnino-fabrica-de-software/emosense/internal/imaging"
	"github.com/saturnino-fabrica-de-software/emosense/internal/nn"
)

// Options tune the batch-normalization layers. Zero values select the
// defaults (momentum 0.99, epsilon 1e-3).
type Options struct {
	Momentum float32
	Epsilon  float32
}

func (o Options) withDefaults() Options {
	if o.Momentum == 0 {
		o.Momentum = 0.99
	}
	if o.Epsilon == 0 {
		o.Epsilon = 1e-3
	}
	return o
}

// InputShape is the per-sample network input: 48×48 grayscale
func InputShape() []int {
	return []int{imaging.InputSize, imaging.InputSize, 1}
}

// NewNetwork builds the three conv blocks and the dense head, initialized from seed
func NewNetwork(seed int64, opts Options) (*nn.Sequential, error) {
	opts = opts.withDefaults()
	bn := func(name string) nn.Layer { return nn.NewBatchNorm(name, opts.Momentum, opts.Epsilon) }

	net := nn.NewSequential(
		nn.NewConv2D("conv1", 32, 3, nn.ReLU),
		bn("bn1"),
		nn.NewMaxPool2D("pool1", 2),
		nn.NewDropout("drop1", 0.25),

		nn.NewConv2D("conv2", 64, 3, nn.ReLU),
		bn("bn2"),
		nn.NewMaxPool2D("pool2", 2),
		nn.NewDropout("drop2", 0.25),

		nn.NewConv2D("conv3", 128, 3, nn.ReLU),
		bn("bn3"),
		nn.NewMaxPool2D("pool3", 2),
		nn.NewDropout("drop3", 0.25),

		nn.NewFlatten("flatten"),
		nn.NewDense("dense1", 256, nn.ReLU),
		bn("bn4"),
		nn.NewDropout("drop4", 0.5),
		nn.NewDense("output", domain.NumEmotions, nn.Softmax),
	)

	if err := net.Build(InputShape(), rand.New(rand.NewSource(seed))); err != nil {
		return nil, fmt.Errorf("build classifier: %w", err)
	}
	return net, nil
}
