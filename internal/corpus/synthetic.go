package corpus

import (
	"fmt"
	"image"
	"image/png"
	"os"
	"path/filepath"
)

// WriteUniform writes count size×size PNGs filled with level into
// <root>/<partition>/<label>/. It is used to build synthetic corpora.
func WriteUniform(root string, p Partition, label string, level uint8, count, size int) error {
	dir := filepath.Join(root, string(p), label)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	img := image.NewGray(image.Rect(0, 0, size, size))
	for i := range img.Pix {
		img.Pix[i] = level
	}
	for i := 0; i < count; i++ {
		f, err := os.Create(filepath.Join(dir, fmt.Sprintf("%s_%03d.png", label, i)))
		if err != nil {
			return err
		}
		if err := png.Encode(f, img); err != nil {
			f.Close()
			return err
		}
		if err := f.Close(); err != nil {
			return err
		}
	}
	return nil
}
