package imaging

import (
	"math"
	"math/rand"
)

// Augmentation describes the random transforms applied to training images
type Augmentation struct {
	RotationDegrees float64 // uniform in [-r, r]
	ZoomRange       float64 // per-axis zoom uniform in [1-z, 1+z]
	HorizontalFlip  bool    // with probability 0.5
}

// DefaultAugmentation is the training regime of the emotion classifier
func DefaultAugmentation() Augmentation {
	return Augmentation{RotationDegrees: 15, ZoomRange: 0.15, HorizontalFlip: true}
}

// Enabled reports whether any transform is configured
func (a Augmentation) Enabled() bool {
	return a.RotationDegrees > 0 || a.ZoomRange > 0 || a.HorizontalFlip
}

// Apply returns a transformed copy of a size×size plane. Output pixels are
// mapped back into the source and sampled bilinearly; coordinates that fall
// outside are clamped to the nearest edge.
func (a Augmentation) Apply(src []float32, size int, rng *rand.Rand) []float32 {
	theta := 0.0
	if a.RotationDegrees > 0 {
		theta = (rng.Float64()*2 - 1) * a.RotationDegrees * math.Pi / 180
	}
	zx, zy := 1.0, 1.0
	if a.ZoomRange > 0 {
		zx = 1 - a.ZoomRange + rng.Float64()*2*a.ZoomRange
		zy = 1 - a.ZoomRange + rng.Float64()*2*a.ZoomRange
	}
	flip := a.HorizontalFlip && rng.Float64() < 0.5

	return transform(src, size, theta, zx, zy, flip)
}

func transform(src []float32, size int, theta, zx, zy float64, flip bool) []float32 {
	out := make([]float32, size*size)
	c := float64(size-1) / 2
	cos, sin := math.Cos(theta), math.Sin(theta)

	for y := 0; y < size; y++ {
		for x := 0; x < size; x++ {
			ox := float64(x)
			if flip {
				ox = float64(size-1) - ox
			}
			dx, dy := ox-c, float64(y)-c
			// inverse map: rotate then zoom output coordinates into the source
			sx := zx*(cos*dx-sin*dy) + c
			sy := zy*(sin*dx+cos*dy) + c
			out[y*size+x] = sample(src, size, sx, sy)
		}
	}
	return out
}

func sample(src []float32, size int, x, y float64) float32 {
	maxC := float64(size - 1)
	x = math.Min(math.Max(x, 0), maxC)
	y = math.Min(math.Max(y, 0), maxC)

	x0, y0 := int(x), int(y)
	x1, y1 := min(x0+1, size-1), min(y0+1, size-1)
	fx, fy := float32(x-float64(x0)), float32(y-float64(y0))

	top := src[y0*size+x0]*(1-fx) + src[y0*size+x1]*fx
	bottom := src[y1*size+x0]*(1-fx) + src[y1*size+x1]*fx
	return top*(1-fy) + bottom*fy
}
