package imaging

import (
	"bytes"
	"encoding/base64"
	"encoding/binary"
	"hash/crc32"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/saturnino-fabrica-de-software/emosense/internal/domain"
)

func gradientImage(w, h int) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{R: uint8(x * 255 / max(w-1, 1)), G: uint8(y * 255 / max(h-1, 1)), B: 90, A: 255})
		}
	}
	return img
}

func encodePNG(t *testing.T, img image.Image) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

// hugePNGHeader is a valid PNG header declaring 30000x30000 16-bit RGBA with
// a token IDAT, so a full decode would allocate gigabytes.
func hugePNGHeader(t *testing.T) []byte {
	t.Helper()
	var buf bytes.Buffer
	buf.WriteString("\x89PNG\r\n\x1a\n")
	chunk := func(kind string, data []byte) {
		var n [4]byte
		binary.BigEndian.PutUint32(n[:], uint32(len(data)))
		buf.Write(n[:])
		body := append([]byte(kind), data...)
		buf.Write(body)
		binary.BigEndian.PutUint32(n[:], crc32.ChecksumIEEE(body))
		buf.Write(n[:])
	}
	ihdr := make([]byte, 13)
	binary.BigEndian.PutUint32(ihdr[0:], 30000)
	binary.BigEndian.PutUint32(ihdr[4:], 30000)
	ihdr[8], ihdr[9] = 16, 6
	chunk("IHDR", ihdr)
	chunk("IDAT", make([]byte, 8))
	chunk("IEND", nil)
	return buf.Bytes()
}

func TestStripTransportPrefix(t *testing.T) {
	tests := []struct {
		name    string
		payload string
		want    string
	}{
		{"data uri", "data:image/png;base64,QUJD", "QUJD"},
		{"bare base64", "QUJD", "QUJD"},
		{"only first comma", "a,b,c", "b,c"},
		{"empty", "", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, StripTransportPrefix(tt.payload))
		})
	}
}

func TestDecodePayload(t *testing.T) {
	raw := []byte{0xff, 0xd8, 0xfe, 0x01}

	tests := []struct {
		name    string
		payload string
		wantErr bool
	}{
		{"std", base64.StdEncoding.EncodeToString(raw), false},
		{"raw std", base64.RawStdEncoding.EncodeToString(raw), false},
		{"url", base64.URLEncoding.EncodeToString(raw), false},
		{"with prefix", "data:image/jpeg;base64," + base64.StdEncoding.EncodeToString(raw), false},
		{"garbage", "data:image/png;base64,@@not base64@@", true},
		{"empty", "data:image/png;base64,", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := DecodePayload(tt.payload)
			if tt.wantErr {
				assert.ErrorIs(t, err, domain.ErrDecode)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, raw, got)
		})
	}
}

func TestPreprocessShapeAndRange(t *testing.T) {
	p := NewPreprocessor()

	sizes := []struct{ w, h int }{{48, 48}, {1, 1}, {640, 480}, {31, 200}, {49, 47}}
	for _, s := range sizes {
		payload := base64.StdEncoding.EncodeToString(encodePNG(t, gradientImage(s.w, s.h)))

		x, err := p.Preprocess("data:image/png;base64," + payload)
		require.NoError(t, err, "%dx%d", s.w, s.h)
		assert.Equal(t, []int{1, InputSize, InputSize, 1}, x.Shape)
		for _, v := range x.Data {
			require.GreaterOrEqual(t, v, float32(0))
			require.LessOrEqual(t, v, float32(1))
		}
	}
}

func TestPreprocessDeterministic(t *testing.T) {
	p := NewPreprocessor()

	var buf bytes.Buffer
	require.NoError(t, jpeg.Encode(&buf, gradientImage(120, 90), nil))
	payload := base64.StdEncoding.EncodeToString(buf.Bytes())

	a, err := p.Preprocess(payload)
	require.NoError(t, err)
	b, err := p.Preprocess(payload)
	require.NoError(t, err)
	assert.Equal(t, a.Data, b.Data)
}

func TestPreprocessScalesLuma(t *testing.T) {
	p := NewPreprocessor()
	img := image.NewGray(image.Rect(0, 0, 48, 48))
	for i := range img.Pix {
		img.Pix[i] = 255
	}
	img.Pix[0] = 0

	x, err := p.FromImage(img)
	require.NoError(t, err)
	assert.Equal(t, float32(0), x.Data[0])
	assert.Equal(t, float32(1), x.Data[1])
}

func TestPreprocessRejectsCorruptBytes(t *testing.T) {
	p := NewPreprocessor()

	_, err := p.Preprocess(base64.StdEncoding.EncodeToString([]byte("definitely not an image")))
	assert.ErrorIs(t, err, domain.ErrDecode)

	_, err = p.FromImage(image.NewGray(image.Rect(0, 0, 0, 0)))
	assert.ErrorIs(t, err, domain.ErrDecode)
}

func TestDecodeRejectsOversizedImages(t *testing.T) {
	p := NewPreprocessor()

	_, err := p.PreprocessBytes(hugePNGHeader(t))
	require.ErrorIs(t, err, domain.ErrDecode)
	assert.Contains(t, err.Error(), "30000x30000")

	small := &Preprocessor{Size: InputSize, Interp: NewPreprocessor().Interp, MaxPixels: 64 * 64}
	_, err = small.Decode(encodePNG(t, gradientImage(65, 64)))
	assert.ErrorIs(t, err, domain.ErrDecode)

	_, err = small.Decode(encodePNG(t, gradientImage(64, 64)))
	assert.NoError(t, err)
}

func TestToGrayHandlesOffsetBounds(t *testing.T) {
	src := image.NewGray(image.Rect(10, 10, 14, 13))
	src.SetGray(10, 10, color.Gray{Y: 200})

	g := ToGray(src)
	assert.Equal(t, image.Rect(0, 0, 4, 3), g.Bounds())
	assert.Equal(t, uint8(200), g.GrayAt(0, 0).Y)
}

func TestValidateInput(t *testing.T) {
	p := NewPreprocessor()
	x, err := p.FromImage(gradientImage(10, 10))
	require.NoError(t, err)
	require.NoError(t, ValidateInput(x, InputSize))

	x.Data[5] = 1.5
	assert.ErrorIs(t, ValidateInput(x, InputSize), domain.ErrShape)

	bad, err := x.Reshape(1, InputSize*InputSize)
	require.NoError(t, err)
	assert.ErrorIs(t, ValidateInput(bad, InputSize), domain.ErrShape)
}

func TestAugmentationKeepsUniformPlanes(t *testing.T) {
	aug := DefaultAugmentation()
	rng := rand.New(rand.NewSource(9))

	for _, level := range []float32{0, 1} {
		src := make([]float32, InputSize*InputSize)
		for i := range src {
			src[i] = level
		}
		for i := 0; i < 20; i++ {
			out := aug.Apply(src, InputSize, rng)
			for _, v := range out {
				require.InDelta(t, level, v, 1e-6)
			}
		}
	}
}

func TestAugmentationIsSeeded(t *testing.T) {
	aug := DefaultAugmentation()
	src := make([]float32, InputSize*InputSize)
	for i := range src {
		src[i] = float32(i%InputSize) / InputSize
	}

	a := aug.Apply(src, InputSize, rand.New(rand.NewSource(3)))
	b := aug.Apply(src, InputSize, rand.New(rand.NewSource(3)))
	assert.Equal(t, a, b)
}

func TestTransformIdentityAndFlip(t *testing.T) {
	const size = 4
	src := make([]float32, size*size)
	for i := range src {
		src[i] = float32(i)
	}

	assert.InDeltaSlice(t, src, transform(src, size, 0, 1, 1, false), 1e-5)

	flipped := transform(src, size, 0, 1, 1, true)
	assert.InDelta(t, float32(3), flipped[0], 1e-5)
	assert.InDelta(t, float32(0), flipped[3], 1e-5)
}

func TestAugmentationEnabled(t *testing.T) {
	assert.True(t, DefaultAugmentation().Enabled())
	assert.False(t, Augmentation{}.Enabled())
}
