package nn

import (
	"fmt"
	"math"
)

// lossEpsilon clips probabilities away from 0 and 1 before the log
const lossEpsilon = 1e-7

// CategoricalCrossEntropy returns the batch-mean loss of probabilities p
// against one-hot targets t, and the gradient of that mean w.r.t. p.
func CategoricalCrossEntropy(p, t *Tensor) (float64, *Tensor, error) {
	if !p.SameShape(t.Shape) || p.Rank() != 2 {
		return 0, nil, fmt.Errorf("cross-entropy: predictions %v, targets %v", p.Shape, t.Shape)
	}
	n := p.Batch()
	if n == 0 {
		return 0, nil, fmt.Errorf("cross-entropy: empty batch")
	}

	grad := New(p.Shape...)
	var loss float64
	for i, tv := range t.Data {
		if tv == 0 {
			continue
		}
		pv := math.Min(math.Max(float64(p.Data[i]), lossEpsilon), 1-lossEpsilon)
		loss -= float64(tv) * math.Log(pv)
		grad.Data[i] = float32(-float64(tv) / pv / float64(n))
	}
	return loss / float64(n), grad, nil
}

// Argmax returns the index of the largest value, the lowest on ties
func Argmax(row []float32) int {
	best := 0
	for i, v := range row {
		if v > row[best] {
			best = i
		}
	}
	return best
}

// Accuracy is the fraction of rows whose argmax matches the target argmax
func Accuracy(p, t *Tensor) float64 {
	n := p.Batch()
	if n == 0 {
		return 0
	}
	correct := 0
	for s := 0; s < n; s++ {
		if Argmax(p.Sample(s)) == Argmax(t.Sample(s)) {
			correct++
		}
	}
	return float64(correct) / float64(n)
}
