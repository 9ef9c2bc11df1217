package corpus

import (
	"context"
	"fmt"
	"os"
	"runtime"

	"golang.org/x/sync/errgroup"

	"github.com/saturnino-fabrica-de-software/emosense/internal/domain"
	"github.com/saturnino-fabrica-de-software/emosense/internal/imaging"
	"github.com/saturnino-fabrica-de-software/emosense/internal/nn"
)

// Dataset holds decoded, rescaled images and their labels in sample order
type Dataset struct {
	Pixels [][]float32
	Labels []domain.Emotion
	Size   int
}

func (d *Dataset) Len() int { return len(d.Pixels) }

// Load reads every sample into a Size×Size plane in [0,1] using at most
// workers goroutines. The returned order matches samples.
func Load(ctx context.Context, samples []Sample, pre *imaging.Preprocessor, workers int) (*Dataset, error) {
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	ds := &Dataset{
		Pixels: make([][]float32, len(samples)),
		Labels: make([]domain.Emotion, len(samples)),
		Size:   pre.Size,
	}

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i, s := range samples {
		ds.Labels[i] = s.Label
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			px, err := loadImage(s.Path, pre)
			if err != nil {
				return err
			}
			ds.Pixels[i] = px
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return ds, nil
}

func loadImage(path string, pre *imaging.Preprocessor) ([]float32, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	gray, err := pre.Decode(raw)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return pre.Pixels(gray)
}

// Batch copies the planes at idx into an (len(idx), Size, Size, 1) tensor.
// transform, when set, replaces each plane before it is copied.
func (d *Dataset) Batch(idx []int, transform func(i int, px []float32) []float32) *nn.Tensor {
	plane := d.Size * d.Size
	x := nn.New(len(idx), d.Size, d.Size, 1)
	for b, i := range idx {
		px := d.Pixels[i]
		if transform != nil {
			px = transform(b, px)
		}
		copy(x.Data[b*plane:(b+1)*plane], px)
	}
	return x
}

// OneHot returns (len(idx), 7) categorical targets for idx
func (d *Dataset) OneHot(idx []int) *nn.Tensor {
	t := nn.New(len(idx), domain.NumEmotions)
	for b, i := range idx {
		t.Data[b*domain.NumEmotions+int(d.Labels[i])] = 1
	}
	return t
}
