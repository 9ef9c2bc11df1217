package nn

import (
	"fmt"
	"math/rand"
)

// Dropout zeroes each activation with probability rate during training and
// scales the survivors by 1/(1-rate). At inference it is the identity.
type Dropout struct {
	name string
	rate float32
}

func NewDropout(name string, rate float32) *Dropout {
	return &Dropout{name: name, rate: rate}
}

func (d *Dropout) Name() string { return d.name }

func (d *Dropout) Params() []*Param { return nil }

func (d *Dropout) Build(in []int, _ *rand.Rand) ([]int, error) {
	if d.rate < 0 || d.rate >= 1 {
		return nil, fmt.Errorf("%s: rate %v outside [0,1)", d.name, d.rate)
	}
	return in, nil
}

func (d *Dropout) Forward(x *Tensor, pass *Pass) (*Tensor, any, error) {
	if !pass.Training || d.rate == 0 {
		return x, nil, nil
	}
	if pass.Rng == nil {
		return nil, nil, fmt.Errorf("%s: training pass without random source", d.name)
	}

	scale := 1 / (1 - d.rate)
	mask := make([]float32, x.Len())
	y := New(x.Shape...)
	for i, v := range x.Data {
		if pass.Rng.Float32() >= d.rate {
			mask[i] = scale
			y.Data[i] = v * scale
		}
	}
	return y, mask, nil
}

func (d *Dropout) Backward(dy *Tensor, cache any, pass *Pass) (*Tensor, error) {
	if !pass.Training || d.rate == 0 {
		return dy, nil
	}
	mask, ok := cache.([]float32)
	if !ok {
		return nil, fmt.Errorf("%s: backward without training cache", d.name)
	}
	dx := New(dy.Shape...)
	for i, g := range dy.Data {
		dx.Data[i] = g * mask[i]
	}
	return dx, nil
}
