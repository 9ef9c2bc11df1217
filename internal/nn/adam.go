package nn

import "math"

// Adam implements the Adam optimizer with bias correction
type Adam struct {
	LearningRate float64
	Beta1        float64
	Beta2        float64
	Epsilon      float64

	step int
	m    map[*Param][]float32
	v    map[*Param][]float32
}

func NewAdam(learningRate float64) *Adam {
	return &Adam{
		LearningRate: learningRate,
		Beta1:        0.9,
		Beta2:        0.999,
		Epsilon:      1e-7,
		m:            make(map[*Param][]float32),
		v:            make(map[*Param][]float32),
	}
}

// Steps is the number of updates applied so far
func (a *Adam) Steps() int { return a.step }

// Step applies one update to every trainable param using its Grad
func (a *Adam) Step(params []*Param) {
	a.step++
	t := float64(a.step)
	lr := a.LearningRate * math.Sqrt(1-math.Pow(a.Beta2, t)) / (1 - math.Pow(a.Beta1, t))
	b1, b2 := float32(a.Beta1), float32(a.Beta2)

	for _, p := range params {
		if !p.Trainable {
			continue
		}
		m, ok := a.m[p]
		if !ok {
			m = make([]float32, p.Value.Len())
			a.m[p] = m
			a.v[p] = make([]float32, p.Value.Len())
		}
		v := a.v[p]
		for i, g := range p.Grad.Data {
			m[i] = b1*m[i] + (1-b1)*g
			v[i] = b2*v[i] + (1-b2)*g*g
			p.Value.Data[i] -= float32(lr * float64(m[i]) / (math.Sqrt(float64(v[i])) + a.Epsilon))
		}
	}
}
