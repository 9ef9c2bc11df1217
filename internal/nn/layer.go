package nn

import (
	"fmt"
	"math"
	"math/rand"
	"runtime"
)

// Param is a named tensor owned by a layer. Trainable params carry a Grad of
// the same shape; state params (batch-norm moving statistics) do not.
type Param struct {
	Name      string
	Value     *Tensor
	Grad      *Tensor
	Trainable bool
}

func newParam(name string, trainable bool, shape ...int) *Param {
	p := &Param{Name: name, Value: New(shape...), Trainable: trainable}
	if trainable {
		p.Grad = New(shape...)
	}
	return p
}

// Pass carries per-call settings through a forward/backward pass.
// An inference pass never mutates any layer.
type Pass struct {
	Training bool
	Rng      *rand.Rand
	Workers  int
}

// InferencePass returns the settings used for prediction
func InferencePass() *Pass {
	return &Pass{Workers: 1}
}

func (p *Pass) workers() int {
	if p == nil || p.Workers <= 0 {
		return runtime.GOMAXPROCS(0)
	}
	return p.Workers
}

// Layer is one stage of a Sequential network. Forward returns an opaque cache
// that the matching Backward call consumes; Backward accumulates into the
// Grad of the layer's trainable params and returns the input gradient.
type Layer interface {
	Name() string
	Build(in []int, rng *rand.Rand) ([]int, error)
	Forward(x *Tensor, pass *Pass) (*Tensor, any, error)
	Backward(dy *Tensor, cache any, pass *Pass) (*Tensor, error)
	Params() []*Param
}

// Activation is applied in place by Conv2D and Dense
type Activation int

const (
	Linear Activation = iota
	ReLU
	Softmax
)

func (a Activation) String() string {
	switch a {
	case Linear:
		return "linear"
	case ReLU:
		return "relu"
	case Softmax:
		return "softmax"
	default:
		return fmt.Sprintf("activation(%d)", int(a))
	}
}

// activate applies a to each row of width units in data
func activate(a Activation, data []float32, units int) {
	switch a {
	case ReLU:
		for i, v := range data {
			if v < 0 {
				data[i] = 0
			}
		}
	case Softmax:
		for off := 0; off < len(data); off += units {
			softmaxRow(data[off : off+units])
		}
	}
}

func softmaxRow(row []float32) {
	maxV := row[0]
	for _, v := range row[1:] {
		if v > maxV {
			maxV = v
		}
	}
	var sum float64
	for i, v := range row {
		e := math.Exp(float64(v - maxV))
		row[i] = float32(e)
		sum += e
	}
	for i := range row {
		row[i] = float32(float64(row[i]) / sum)
	}
}

// activationGrad converts the gradient w.r.t. the activated output y into the
// gradient w.r.t. the pre-activation, in place on dy.
func activationGrad(a Activation, y, dy []float32, units int) {
	switch a {
	case ReLU:
		for i, v := range y {
			if v <= 0 {
				dy[i] = 0
			}
		}
	case Softmax:
		for off := 0; off < len(y); off += units {
			yr := y[off : off+units]
			dr := dy[off : off+units]
			var dot float32
			for i := range yr {
				dot += yr[i] * dr[i]
			}
			for i := range yr {
				dr[i] = yr[i] * (dr[i] - dot)
			}
		}
	}
}

// glorotUniform fills w with U(-limit, limit), limit = sqrt(6/(fanIn+fanOut))
func glorotUniform(w []float32, fanIn, fanOut int, rng *rand.Rand) {
	limit := math.Sqrt(6 / float64(fanIn+fanOut))
	for i := range w {
		w[i] = float32((rng.Float64()*2 - 1) * limit)
	}
}
