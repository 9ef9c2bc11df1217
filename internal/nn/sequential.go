package nn

import (
	"errors"
	"fmt"
	"math/rand"
	"slices"
)

var (
	ErrNotBuilt      = errors.New("network not built")
	ErrParamMismatch = errors.New("param set does not match network")
)

// Sequential chains layers, feeding each output into the next
type Sequential struct {
	layers  []Layer
	inShape []int
	out     []int
	built   bool
}

func NewSequential(layers ...Layer) *Sequential {
	return &Sequential{layers: layers}
}

// Build resolves every layer's shape from the per-sample input shape and
// initializes weights from rng.
func (s *Sequential) Build(in []int, rng *rand.Rand) error {
	shape := slices.Clone(in)
	s.inShape = slices.Clone(in)
	for _, l := range s.layers {
		next, err := l.Build(shape, rng)
		if err != nil {
			return fmt.Errorf("build %s: %w", l.Name(), err)
		}
		shape = next
	}
	s.out = shape
	s.built = true
	return nil
}

func (s *Sequential) Layers() []Layer { return s.layers }

func (s *Sequential) InputShape() []int { return slices.Clone(s.inShape) }

func (s *Sequential) OutputShape() []int { return slices.Clone(s.out) }

// Params returns every param in layer order, trainable and state alike
func (s *Sequential) Params() []*Param {
	var params []*Param
	for _, l := range s.layers {
		params = append(params, l.Params()...)
	}
	return params
}

// TrainableCount is the number of trainable scalars
func (s *Sequential) TrainableCount() int {
	n := 0
	for _, p := range s.Params() {
		if p.Trainable {
			n += p.Value.Len()
		}
	}
	return n
}

func (s *Sequential) ZeroGrad() {
	for _, p := range s.Params() {
		if p.Grad != nil {
			p.Grad.Zero()
		}
	}
}

// Trace holds the per-layer caches of one training forward pass
type Trace struct {
	caches []any
}

// Forward runs x through every layer. With a training pass the returned
// Trace feeds Backward; otherwise it is nil.
func (s *Sequential) Forward(x *Tensor, pass *Pass) (*Tensor, *Trace, error) {
	if !s.built {
		return nil, nil, ErrNotBuilt
	}
	var trace *Trace
	if pass.Training {
		trace = &Trace{caches: make([]any, len(s.layers))}
	}
	for i, l := range s.layers {
		y, cache, err := l.Forward(x, pass)
		if err != nil {
			return nil, nil, err
		}
		if trace != nil {
			trace.caches[i] = cache
		}
		x = y
	}
	return x, trace, nil
}

// Backward propagates dy through the layers in reverse, accumulating grads
func (s *Sequential) Backward(dy *Tensor, trace *Trace, pass *Pass) error {
	if trace == nil || len(trace.caches) != len(s.layers) {
		return fmt.Errorf("backward: trace from a different or non-training pass")
	}
	for i := len(s.layers) - 1; i >= 0; i-- {
		dx, err := s.layers[i].Backward(dy, trace.caches[i], pass)
		if err != nil {
			return err
		}
		dy = dx
	}
	return nil
}

// Predict runs an inference pass. It only reads layer state and is safe
// for concurrent use once training has stopped.
func (s *Sequential) Predict(x *Tensor) (*Tensor, error) {
	y, _, err := s.Forward(x, InferencePass())
	return y, err
}

// Snapshot copies every param value
func (s *Sequential) Snapshot() map[string][]float32 {
	snap := make(map[string][]float32)
	for _, p := range s.Params() {
		snap[p.Name] = slices.Clone(p.Value.Data)
	}
	return snap
}

// Restore overwrites param values from a snapshot. Every param must be
// present with a matching length.
func (s *Sequential) Restore(snap map[string][]float32) error {
	params := s.Params()
	if len(snap) != len(params) {
		return fmt.Errorf("%w: %d values for %d params", ErrParamMismatch, len(snap), len(params))
	}
	for _, p := range params {
		v, ok := snap[p.Name]
		if !ok {
			return fmt.Errorf("%w: missing %s", ErrParamMismatch, p.Name)
		}
		if len(v) != p.Value.Len() {
			return fmt.Errorf("%w: %s has %d values, want %d", ErrParamMismatch, p.Name, len(v), p.Value.Len())
		}
	}
	for _, p := range params {
		copy(p.Value.Data, snap[p.Name])
	}
	return nil
}
