// Package nn implements the small set of neural-network layers the emotion
// classifier is made of: convolution, batch normalization, max pooling,
// dropout and dense layers with an Adam optimizer and categorical
// cross-entropy loss. Tensors are float32 and laid out NHWC.
package nn

import (
	"fmt"
	"slices"
)

// Tensor is a dense float32 array with a row-major shape
type Tensor struct {
	Shape []int
	Data  []float32
}

// New allocates a zeroed tensor
func New(shape ...int) *Tensor {
	return &Tensor{
		Shape: slices.Clone(shape),
		Data:  make([]float32, volume(shape)),
	}
}

// FromSlice wraps data without copying
func FromSlice(data []float32, shape ...int) (*Tensor, error) {
	if volume(shape) != len(data) {
		return nil, fmt.Errorf("shape %v needs %d values, got %d", shape, volume(shape), len(data))
	}
	return &Tensor{Shape: slices.Clone(shape), Data: data}, nil
}

func volume(shape []int) int {
	n := 1
	for _, d := range shape {
		n *= d
	}
	return n
}

func (t *Tensor) Len() int {
	return len(t.Data)
}

func (t *Tensor) Rank() int {
	return len(t.Shape)
}

// Batch is the leading dimension
func (t *Tensor) Batch() int {
	if len(t.Shape) == 0 {
		return 0
	}
	return t.Shape[0]
}

// SampleSize is the number of values per batch entry
func (t *Tensor) SampleSize() int {
	if len(t.Shape) == 0 {
		return 0
	}
	return volume(t.Shape[1:])
}

// Sample returns the values of batch entry n, sharing storage
func (t *Tensor) Sample(n int) []float32 {
	size := t.SampleSize()
	return t.Data[n*size : (n+1)*size]
}

func (t *Tensor) Clone() *Tensor {
	return &Tensor{Shape: slices.Clone(t.Shape), Data: slices.Clone(t.Data)}
}

// Reshape returns a view with a new shape over the same data
func (t *Tensor) Reshape(shape ...int) (*Tensor, error) {
	if volume(shape) != len(t.Data) {
		return nil, fmt.Errorf("cannot reshape %v to %v", t.Shape, shape)
	}
	return &Tensor{Shape: slices.Clone(shape), Data: t.Data}, nil
}

func (t *Tensor) SameShape(shape []int) bool {
	return slices.Equal(t.Shape, shape)
}

func (t *Tensor) Zero() {
	clear(t.Data)
}

// Concat joins tensors along the batch dimension. All inputs must agree on
// the remaining dimensions.
func Concat(parts []*Tensor) (*Tensor, error) {
	if len(parts) == 0 {
		return nil, fmt.Errorf("concat: no tensors")
	}
	if parts[0].Rank() == 0 {
		return nil, fmt.Errorf("concat: scalar tensor")
	}
	inner := parts[0].Shape[1:]
	batch := 0
	for i, p := range parts {
		if p.Rank() == 0 || !slices.Equal(p.Shape[1:], inner) {
			return nil, fmt.Errorf("concat: tensor %d has shape %v, want [* %v]", i, p.Shape, inner)
		}
		batch += p.Batch()
	}

	out := New(append([]int{batch}, inner...)...)
	offset := 0
	for _, p := range parts {
		copy(out.Data[offset:], p.Data)
		offset += len(p.Data)
	}
	return out, nil
}
