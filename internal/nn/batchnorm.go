package nn

import (
	"fmt"
	"math"
	"math/rand"
	"slices"
)

// BatchNorm normalizes over every axis except the last (channels/features).
// Training uses batch statistics and updates the moving averages; inference
// uses the moving averages only.
type BatchNorm struct {
	name     string
	momentum float32
	eps      float32
	shape    []int
	channels int

	gamma      *Param
	beta       *Param
	movingMean *Param
	movingVar  *Param
}

func NewBatchNorm(name string, momentum, eps float32) *BatchNorm {
	return &BatchNorm{name: name, momentum: momentum, eps: eps}
}

func (b *BatchNorm) Name() string { return b.name }

func (b *BatchNorm) Params() []*Param {
	return []*Param{b.gamma, b.beta, b.movingMean, b.movingVar}
}

func (b *BatchNorm) Build(in []int, _ *rand.Rand) ([]int, error) {
	if len(in) == 0 {
		return nil, fmt.Errorf("%s: empty input shape", b.name)
	}
	b.shape = slices.Clone(in)
	b.channels = in[len(in)-1]

	b.gamma = newParam(b.name+"/gamma", true, b.channels)
	b.beta = newParam(b.name+"/beta", true, b.channels)
	b.movingMean = newParam(b.name+"/moving_mean", false, b.channels)
	b.movingVar = newParam(b.name+"/moving_variance", false, b.channels)
	for i := 0; i < b.channels; i++ {
		b.gamma.Value.Data[i] = 1
		b.movingVar.Value.Data[i] = 1
	}
	return in, nil
}

type bnCache struct {
	xhat   []float32
	invStd []float32
}

func (b *BatchNorm) Forward(x *Tensor, pass *Pass) (*Tensor, any, error) {
	if x.Rank() != len(b.shape)+1 || !slices.Equal(x.Shape[1:], b.shape) {
		return nil, nil, fmt.Errorf("%s: input shape %v, want [N %v]", b.name, x.Shape, b.shape)
	}

	c := b.channels
	rows := x.Len() / c
	gamma := b.gamma.Value.Data
	beta := b.beta.Value.Data
	y := New(x.Shape...)

	if !pass.Training {
		mean := b.movingMean.Value.Data
		variance := b.movingVar.Value.Data
		scale := make([]float32, c)
		shift := make([]float32, c)
		for j := 0; j < c; j++ {
			scale[j] = gamma[j] / float32(math.Sqrt(float64(variance[j]+b.eps)))
			shift[j] = beta[j] - mean[j]*scale[j]
		}
		for r := 0; r < rows; r++ {
			off := r * c
			for j := 0; j < c; j++ {
				y.Data[off+j] = x.Data[off+j]*scale[j] + shift[j]
			}
		}
		return y, nil, nil
	}

	mean := make([]float64, c)
	variance := make([]float64, c)
	for r := 0; r < rows; r++ {
		off := r * c
		for j := 0; j < c; j++ {
			mean[j] += float64(x.Data[off+j])
		}
	}
	for j := range mean {
		mean[j] /= float64(rows)
	}
	for r := 0; r < rows; r++ {
		off := r * c
		for j := 0; j < c; j++ {
			d := float64(x.Data[off+j]) - mean[j]
			variance[j] += d * d
		}
	}

	invStd := make([]float32, c)
	mm := b.movingMean.Value.Data
	mv := b.movingVar.Value.Data
	for j := 0; j < c; j++ {
		variance[j] /= float64(rows)
		invStd[j] = float32(1 / math.Sqrt(variance[j]+float64(b.eps)))
		mm[j] = b.momentum*mm[j] + (1-b.momentum)*float32(mean[j])
		mv[j] = b.momentum*mv[j] + (1-b.momentum)*float32(variance[j])
	}

	xhat := make([]float32, x.Len())
	for r := 0; r < rows; r++ {
		off := r * c
		for j := 0; j < c; j++ {
			h := (x.Data[off+j] - float32(mean[j])) * invStd[j]
			xhat[off+j] = h
			y.Data[off+j] = gamma[j]*h + beta[j]
		}
	}

	return y, &bnCache{xhat: xhat, invStd: invStd}, nil
}

func (b *BatchNorm) Backward(dy *Tensor, cache any, _ *Pass) (*Tensor, error) {
	bc, ok := cache.(*bnCache)
	if !ok {
		return nil, fmt.Errorf("%s: backward without training cache", b.name)
	}

	c := b.channels
	rows := dy.Len() / c
	gamma := b.gamma.Value.Data
	dGamma := b.gamma.Grad.Data
	dBeta := b.beta.Grad.Data

	sumDy := make([]float64, c)
	sumDyXhat := make([]float64, c)
	for r := 0; r < rows; r++ {
		off := r * c
		for j := 0; j < c; j++ {
			g := float64(dy.Data[off+j])
			sumDy[j] += g
			sumDyXhat[j] += g * float64(bc.xhat[off+j])
		}
	}
	for j := 0; j < c; j++ {
		dGamma[j] += float32(sumDyXhat[j])
		dBeta[j] += float32(sumDy[j])
	}

	// dx = gamma*invStd/M * (M*dy - sum(dy) - xhat*sum(dy*xhat))
	m := float64(rows)
	dx := New(dy.Shape...)
	for r := 0; r < rows; r++ {
		off := r * c
		for j := 0; j < c; j++ {
			k := float64(gamma[j]) * float64(bc.invStd[j]) / m
			g := float64(dy.Data[off+j])
			dx.Data[off+j] = float32(k * (m*g - sumDy[j] - float64(bc.xhat[off+j])*sumDyXhat[j]))
		}
	}
	return dx, nil
}
