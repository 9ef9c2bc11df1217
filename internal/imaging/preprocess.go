// Package imaging turns client-submitted images into the classifier's input
// tensor and provides the random augmentations used while training.
package imaging

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"image"
	"image/draw"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"strings"

	"github.com/nfnt/resize"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/webp"

	"github.com/saturnino-fabrica-de-software/emosense/internal/domain"
	"github.com/saturnino-fabrica-de-software/emosense/internal/nn"
)

// InputSize is the side length of the square grayscale network input
const InputSize = 48

// MaxPixels caps the declared width*height accepted before decoding
const MaxPixels = 4096 * 4096

// Preprocessor converts images to (1, Size, Size, 1) tensors in [0,1]
type Preprocessor struct {
	Size      int
	Interp    resize.InterpolationFunction
	MaxPixels int
}

func NewPreprocessor() *Preprocessor {
	return &Preprocessor{Size: InputSize, Interp: resize.Bilinear, MaxPixels: MaxPixels}
}

// StripTransportPrefix drops everything up to and including the first comma,
// which removes a data-URI header such as "data:image/png;base64,".
func StripTransportPrefix(payload string) string {
	if i := strings.IndexByte(payload, ','); i >= 0 {
		return payload[i+1:]
	}
	return payload
}

// DecodePayload strips the transport prefix and base64-decodes the rest.
// Standard, URL-safe and unpadded encodings are accepted.
func DecodePayload(payload string) ([]byte, error) {
	data := strings.TrimSpace(StripTransportPrefix(payload))
	if data == "" {
		return nil, fmt.Errorf("%w: empty image payload", domain.ErrDecode)
	}
	for _, enc := range []*base64.Encoding{
		base64.StdEncoding,
		base64.RawStdEncoding,
		base64.URLEncoding,
		base64.RawURLEncoding,
	} {
		if raw, err := enc.DecodeString(data); err == nil {
			return raw, nil
		}
	}
	return nil, fmt.Errorf("%w: payload is not valid base64", domain.ErrDecode)
}

// Decode reads JPEG, PNG, GIF, BMP or WebP bytes into a single gray channel
// after checking the header dimensions against MaxPixels.
func (p *Preprocessor) Decode(raw []byte) (*image.Gray, error) {
	cfg, _, err := image.DecodeConfig(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrDecode, err)
	}
	limit := p.MaxPixels
	if limit <= 0 {
		limit = MaxPixels
	}
	if cfg.Width <= 0 || cfg.Height <= 0 || cfg.Width > limit/cfg.Height {
		return nil, fmt.Errorf("%w: image %dx%d exceeds %d pixels", domain.ErrDecode, cfg.Width, cfg.Height, limit)
	}

	img, _, err := image.Decode(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrDecode, err)
	}
	return ToGray(img), nil
}

// ToGray converts img to 8-bit luma with its origin at (0,0)
func ToGray(img image.Image) *image.Gray {
	b := img.Bounds()
	if g, ok := img.(*image.Gray); ok && b.Min == (image.Point{}) {
		return g
	}
	gray := image.NewGray(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(gray, gray.Bounds(), img, b.Min, draw.Src)
	return gray
}

// Pixels resizes img to Size×Size and returns its luma scaled to [0,1], row-major
func (p *Preprocessor) Pixels(img image.Image) ([]float32, error) {
	b := img.Bounds()
	if b.Dx() == 0 || b.Dy() == 0 {
		return nil, fmt.Errorf("%w: empty image", domain.ErrDecode)
	}

	size := p.Size
	gray := ToGray(img)
	if gray.Bounds().Dx() != size || gray.Bounds().Dy() != size {
		gray = ToGray(resize.Resize(uint(size), uint(size), gray, p.Interp))
	}

	out := make([]float32, size*size)
	for y := 0; y < size; y++ {
		row := gray.Pix[y*gray.Stride : y*gray.Stride+size]
		for x, v := range row {
			out[y*size+x] = float32(v) / 255
		}
	}
	return out, nil
}

// FromImage produces the (1, Size, Size, 1) network input for img
func (p *Preprocessor) FromImage(img image.Image) (*nn.Tensor, error) {
	px, err := p.Pixels(img)
	if err != nil {
		return nil, err
	}
	x, err := nn.FromSlice(px, 1, p.Size, p.Size, 1)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrShape, err)
	}
	if err := ValidateInput(x, p.Size); err != nil {
		return nil, err
	}
	return x, nil
}

// Preprocess runs the full chain from a base64 payload to the network input
func (p *Preprocessor) Preprocess(payload string) (*nn.Tensor, error) {
	raw, err := DecodePayload(payload)
	if err != nil {
		return nil, err
	}
	return p.PreprocessBytes(raw)
}

// PreprocessBytes is Preprocess for already-decoded image bytes
func (p *Preprocessor) PreprocessBytes(raw []byte) (*nn.Tensor, error) {
	gray, err := p.Decode(raw)
	if err != nil {
		return nil, err
	}
	return p.FromImage(gray)
}

// ValidateInput checks a tensor is (N, size, size, 1) with values in [0,1]
func ValidateInput(x *nn.Tensor, size int) error {
	if x.Rank() != 4 || x.Batch() < 1 || x.Shape[1] != size || x.Shape[2] != size || x.Shape[3] != 1 {
		return fmt.Errorf("%w: got %v, want [N %d %d 1]", domain.ErrShape, x.Shape, size, size)
	}
	for i, v := range x.Data {
		if !(v >= 0 && v <= 1) {
			return fmt.Errorf("%w: value %v at %d outside [0,1]", domain.ErrShape, v, i)
		}
	}
	return nil
}
