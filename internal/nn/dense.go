package nn

import (
	"fmt"
	"math/rand"
)

// Flatten collapses every non-batch dimension into one
type Flatten struct {
	name  string
	inner []int
	size  int
}

func NewFlatten(name string) *Flatten {
	return &Flatten{name: name}
}

func (f *Flatten) Name() string { return f.name }

func (f *Flatten) Params() []*Param { return nil }

func (f *Flatten) Build(in []int, _ *rand.Rand) ([]int, error) {
	f.inner = in
	f.size = volume(in)
	return []int{f.size}, nil
}

func (f *Flatten) Forward(x *Tensor, _ *Pass) (*Tensor, any, error) {
	if x.SampleSize() != f.size {
		return nil, nil, fmt.Errorf("%s: input shape %v, want [N %v]", f.name, x.Shape, f.inner)
	}
	y, err := x.Reshape(x.Batch(), f.size)
	if err != nil {
		return nil, nil, fmt.Errorf("%s: %w", f.name, err)
	}
	return y, nil, nil
}

func (f *Flatten) Backward(dy *Tensor, _ any, _ *Pass) (*Tensor, error) {
	return dy.Reshape(append([]int{dy.Batch()}, f.inner...)...)
}

// Dense is a fully connected layer with kernel [in, out]
type Dense struct {
	name       string
	units      int
	in         int
	activation Activation

	kernel *Param
	bias   *Param
}

func NewDense(name string, units int, activation Activation) *Dense {
	return &Dense{name: name, units: units, activation: activation}
}

func (d *Dense) Name() string { return d.name }

func (d *Dense) Params() []*Param { return []*Param{d.kernel, d.bias} }

func (d *Dense) Build(in []int, rng *rand.Rand) ([]int, error) {
	if len(in) != 1 {
		return nil, fmt.Errorf("%s: want flat input, got %v", d.name, in)
	}
	d.in = in[0]
	d.kernel = newParam(d.name+"/kernel", true, d.in, d.units)
	d.bias = newParam(d.name+"/bias", true, d.units)
	glorotUniform(d.kernel.Value.Data, d.in, d.units, rng)
	return []int{d.units}, nil
}

type denseCache struct {
	x, y *Tensor
}

func (d *Dense) Forward(x *Tensor, pass *Pass) (*Tensor, any, error) {
	if x.Rank() != 2 || x.Shape[1] != d.in {
		return nil, nil, fmt.Errorf("%s: input shape %v, want [N %d]", d.name, x.Shape, d.in)
	}

	n := x.Batch()
	y := New(n, d.units)
	k := d.kernel.Value.Data
	b := d.bias.Value.Data

	parallelChunks(pass.workers(), n, func(_, lo, hi int) {
		for s := lo; s < hi; s++ {
			xs := x.Sample(s)
			ys := y.Sample(s)
			copy(ys, b)
			for i, xv := range xs {
				if xv == 0 {
					continue
				}
				row := k[i*d.units : (i+1)*d.units]
				for o, kv := range row {
					ys[o] += xv * kv
				}
			}
			activate(d.activation, ys, d.units)
		}
	})

	var cache any
	if pass.Training {
		cache = &denseCache{x: x, y: y}
	}
	return y, cache, nil
}

func (d *Dense) Backward(dy *Tensor, cache any, pass *Pass) (*Tensor, error) {
	dc, ok := cache.(*denseCache)
	if !ok {
		return nil, fmt.Errorf("%s: backward without training cache", d.name)
	}
	x := dc.x
	n := x.Batch()
	k := d.kernel.Value.Data

	dz := dy.Clone()
	activationGrad(d.activation, dc.y.Data, dz.Data, d.units)

	dx := New(x.Shape...)
	workers := pass.workers()
	chunks := chunkCount(workers, n)
	dks := make([][]float32, chunks)
	dbs := make([][]float32, chunks)
	for i := range dks {
		dks[i] = make([]float32, len(k))
		dbs[i] = make([]float32, d.units)
	}

	parallelChunks(workers, n, func(chunk, lo, hi int) {
		dk := dks[chunk]
		db := dbs[chunk]
		for s := lo; s < hi; s++ {
			xs := x.Sample(s)
			dxs := dx.Sample(s)
			g := dz.Sample(s)
			for o, gv := range g {
				db[o] += gv
			}
			for i, xv := range xs {
				row := k[i*d.units : (i+1)*d.units]
				drow := dk[i*d.units : (i+1)*d.units]
				var sum float32
				for o, gv := range g {
					drow[o] += xv * gv
					sum += row[o] * gv
				}
				dxs[i] = sum
			}
		}
	})

	kg := d.kernel.Grad.Data
	bg := d.bias.Grad.Data
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
