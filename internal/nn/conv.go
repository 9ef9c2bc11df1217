package nn

import (
	"fmt"
	"math/rand"
)

// Conv2D is a stride-1 convolution with valid padding over NHWC input.
// The kernel is laid out [kh, kw, in, out].
type Conv2D struct {
	name       string
	filters    int
	kh, kw     int
	activation Activation

	inH, inW, inC int
	outH, outW    int

	kernel *Param
	bias   *Param
}

func NewConv2D(name string, filters, kernelSize int, activation Activation) *Conv2D {
	return &Conv2D{
		name:       name,
		filters:    filters,
		kh:         kernelSize,
		kw:         kernelSize,
		activation: activation,
	}
}

func (c *Conv2D) Name() string { return c.name }

func (c *Conv2D) Params() []*Param { return []*Param{c.kernel, c.bias} }

func (c *Conv2D) Build(in []int, rng *rand.Rand) ([]int, error) {
	if len(in) != 3 {
		return nil, fmt.Errorf("%s: want HWC input, got %v", c.name, in)
	}
	c.inH, c.inW, c.inC = in[0], in[1], in[2]
	c.outH = c.inH - c.kh + 1
	c.outW = c.inW - c.kw + 1
	if c.outH <= 0 || c.outW <= 0 {
		return nil, fmt.Errorf("%s: input %v smaller than kernel %dx%d", c.name, in, c.kh, c.kw)
	}

	c.kernel = newParam(c.name+"/kernel", true, c.kh, c.kw, c.inC, c.filters)
	c.bias = newParam(c.name+"/bias", true, c.filters)
	glorotUniform(c.kernel.Value.Data, c.kh*c.kw*c.inC, c.kh*c.kw*c.filters, rng)

	return []int{c.outH, c.outW, c.filters}, nil
}

type convCache struct {
	x, y *Tensor
}

func (c *Conv2D) checkInput(x *Tensor) error {
	if x.Rank() != 4 || x.Shape[1] != c.inH || x.Shape[2] != c.inW || x.Shape[3] != c.inC {
		return fmt.Errorf("%s: input shape %v, want [N %d %d %d]", c.name, x.Shape, c.inH, c.inW, c.inC)
	}
	return nil
}

func (c *Conv2D) Forward(x *Tensor, pass *Pass) (*Tensor, any, error) {
	if err := c.checkInput(x); err != nil {
		return nil, nil, err
	}

	n := x.Batch()
	y := New(n, c.outH, c.outW, c.filters)
	k := c.kernel.Value.Data
	b := c.bias.Value.Data
	co := c.filters

	parallelChunks(pass.workers(), n, func(_, lo, hi int) {
		for s := lo; s < hi; s++ {
			xs := x.Sample(s)
			ys := y.Sample(s)
			for oy := 0; oy < c.outH; oy++ {
				for ox := 0; ox < c.outW; ox++ {
					acc := ys[(oy*c.outW+ox)*co : (oy*c.outW+ox+1)*co]
					copy(acc, b)
					for ky := 0; ky < c.kh; ky++ {
						for kx := 0; kx < c.kw; kx++ {
							xoff := ((oy+ky)*c.inW + ox + kx) * c.inC
							koff := (ky*c.kw + kx) * c.inC * co
							for ci := 0; ci < c.inC; ci++ {
								xv := xs[xoff+ci]
								if xv == 0 {
									continue
								}
								krow := k[koff+ci*co : koff+(ci+1)*co]
								for f, kv := range krow {
									acc[f] += xv * kv
								}
							}
						}
					}
				}
			}
			activate(c.activation, ys, co)
		}
	})

	var cache any
	if pass.Training {
		cache = &convCache{x: x, y: y}
	}
	return y, cache, nil
}

func (c *Conv2D) Backward(dy *Tensor, cache any, pass *Pass) (*Tensor, error) {
	cc, ok := cache.(*convCache)
	if !ok {
		return nil, fmt.Errorf("%s: backward without training cache", c.name)
	}
	x, y := cc.x, cc.y
	n := x.Batch()
	co := c.filters
	k := c.kernel.Value.Data

	dz := dy.Clone()
	activationGrad(c.activation, y.Data, dz.Data, co)

	dx := New(x.Shape...)
	workers := pass.workers()
	chunks := chunkCount(workers, n)
	dks := make([][]float32, chunks)
	dbs := make([][]float32, chunks)
	for i := range dks {
		dks[i] = make([]float32, len(k))
		dbs[i] = make([]float32, co)
	}

	parallelChunks(workers, n, func(chunk, lo, hi int) {
		dk := dks[chunk]
		db := dbs[chunk]
		for s := lo; s < hi; s++ {
			xs := x.Sample(s)
			dxs := dx.Sample(s)
			dzs := dz.Sample(s)
			for oy := 0; oy < c.outH; oy++ {
				for ox := 0; ox < c.outW; ox++ {
					g := dzs[(oy*c.outW+ox)*co : (oy*c.outW+ox+1)*co]
					for f, gv := range g {
						db[f] += gv
					}
					for ky := 0; ky < c.kh; ky++ {
						for kx := 0; kx < c.kw; kx++ {
							xoff := ((oy+ky)*c.inW + ox + kx) * c.inC
							koff := (ky*c.kw + kx) * c.inC * co
							for ci := 0; ci < c.inC; ci++ {
								xv := xs[xoff+ci]
								krow := k[koff+ci*co : koff+(ci+1)*co]
								dkrow := dk[koff+ci*co : koff+(ci+1)*co]
								var sum float32
								for f, gv := range g {
									dkrow[f] += xv * gv
									sum += krow[f] * gv
								}
								dxs[xoff+ci] += sum
							}
						}
					}
				}
			}
		}
	})

	kg := c.kernel.Grad.Data
	bg := c.bias.Grad.Data
	for i := range dks {
		for j, v := range dks[i] {
			kg[j] += v
		}
		for j, v := range dbs[i] {
			bg[j] += v
		}
	}

	return dx, nil
}
