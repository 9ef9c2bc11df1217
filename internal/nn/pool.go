package nn

import (
	"fmt"
	"math/rand"
)

// MaxPool2D takes the maximum over non-overlapping size×size windows.
// Trailing rows and columns that do not fill a window are dropped.
type MaxPool2D struct {
	name string
	size int

	inH, inW, ch int
	outH, outW   int
}

func NewMaxPool2D(name string, size int) *MaxPool2D {
	return &MaxPool2D{name: name, size: size}
}

func (m *MaxPool2D) Name() string { return m.name }

func (m *MaxPool2D) Params() []*Param { return nil }

func (m *MaxPool2D) Build(in []int, _ *rand.Rand) ([]int, error) {
	if len(in) != 3 {
		return nil, fmt.Errorf("%s: want HWC input, got %v", m.name, in)
	}
	m.inH, m.inW, m.ch = in[0], in[1], in[2]
	m.outH, m.outW = m.inH/m.size, m.inW/m.size
	if m.outH == 0 || m.outW == 0 {
		return nil, fmt.Errorf("%s: input %v smaller than pool %d", m.name, in, m.size)
	}
	return []int{m.outH, m.outW, m.ch}, nil
}

type poolCache struct {
	inShape []int
	argmax  []int32
}

func (m *MaxPool2D) Forward(x *Tensor, pass *Pass) (*Tensor, any, error) {
	if x.Rank() != 4 || x.Shape[1] != m.inH || x.Shape[2] != m.inW || x.Shape[3] != m.ch {
		return nil, nil, fmt.Errorf("%s: input shape %v, want [N %d %d %d]", m.name, x.Shape, m.inH, m.inW, m.ch)
	}

	n := x.Batch()
	y := New(n, m.outH, m.outW, m.ch)
	var argmax []int32
	if pass.Training {
		argmax = make([]int32, y.Len())
	}
	outSize := y.SampleSize()

	for s := 0; s < n; s++ {
		xs := x.Sample(s)
		ys := y.Sample(s)
		for oy := 0; oy < m.outH; oy++ {
			for ox := 0; ox < m.outW; ox++ {
				for c := 0; c < m.ch; c++ {
					best := -1
					var bestV float32
					for py := 0; py < m.size; py++ {
						for px := 0; px < m.size; px++ {
							idx := ((oy*m.size+py)*m.inW+ox*m.size+px)*m.ch + c
							if best < 0 || xs[idx] > bestV {
								best = idx
								bestV = xs[idx]
							}
						}
					}
					o := (oy*m.outW+ox)*m.ch + c
					ys[o] = bestV
					if argmax != nil {
						argmax[s*outSize+o] = int32(best)
					}
				}
			}
		}
	}

	var cache any
	if pass.Training {
		cache = &poolCache{inShape: x.Shape, argmax: argmax}
	}
	return y, cache, nil
}

func (m *MaxPool2D) Backward(dy *Tensor, cache any, _ *Pass) (*Tensor, error) {
	pc, ok := cache.(*poolCache)
	if !ok {
		return nil, fmt.Errorf("%s: backward without training cache", m.name)
	}
	dx := New(pc.inShape...)
	outSize := dy.SampleSize()
	for s := 0; s < dy.Batch(); s++ {
		dxs := dx.Sample(s)
		dys := dy.Sample(s)
		for o, g := range dys {
			dxs[pc.argmax[s*outSize+o]] += g
		}
	}
	return dx, nil
}
