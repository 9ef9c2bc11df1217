package classifier

import (
	"encoding/gob"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"time"

	"github.com/saturnino-fabrica-de-software/emosense/internal/domain"
)

// FormatVersion identifies the artifact encoding. The only one for now.
const FormatVersion = "emosense.cnn.v1"

// DefaultPath is where training writes and the server reads parameters
const DefaultPath = "models/emosense_cnn.bin"

var ErrIncompatible = errors.New("incompatible model artifact")

// Header describes a saved model
type Header struct {
	Version    string
	LabelSet   string
	Labels     []string
	InputShape []int
	Epochs     int
	Momentum   float32
	Epsilon    float32
	SavedAt    time.Time
}

type encodedParam struct {
	Name      string
	Shape     []int
	Trainable bool
	Data      []float32
}

type artifact struct {
	Header Header
	Params []encodedParam
}

func (m *Model) header() Header {
	return Header{
		Version:    FormatVersion,
		LabelSet:   m.version,
		Labels:     domain.EmotionNames(),
		InputShape: InputShape(),
		Epochs:     m.epochs,
		Momentum:   m.opts.Momentum,
		Epsilon:    m.opts.Epsilon,
		SavedAt:    time.Now().UTC(),
	}
}

// Encode writes the model as a single gob stream
func (m *Model) Encode(w io.Writer) error {
	a := artifact{Header: m.header()}
	for _, p := range m.net.Params() {
		a.Params = append(a.Params, encodedParam{
			Name:      p.Name,
			Shape:     p.Value.Shape,
			Trainable: p.Trainable,
			Data:      p.Value.Data,
		})
	}
	if err := gob.NewEncoder(w).Encode(&a); err != nil {
		return fmt.Errorf("encode model: %w", err)
	}
	return nil
}

// Save writes the model to path atomically: a temp file in the same
// directory is renamed over the target once fully written.
func (m *Model) Save(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create model dir: %w", err)
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp model file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if err := m.Encode(tmp); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("sync model file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close model file: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("rename model file: %w", err)
	}
	return nil
}

// Decode reads a model written by Encode
func Decode(r io.Reader) (*Model, error) {
	var a artifact
	if err := gob.NewDecoder(r).Decode(&a); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrIncompatible, err)
	}

	h := a.Header
	switch {
	case h.Version != FormatVersion:
		return nil, fmt.Errorf("%w: format %q, want %q", ErrIncompatible, h.Version, FormatVersion)
	case h.LabelSet != domain.LabelSetVersion || !slices.Equal(h.Labels, domain.EmotionNames()):
		return nil, fmt.Errorf("%w: label set %q %v, want %q", ErrIncompatible, h.LabelSet, h.Labels, domain.LabelSetVersion)
	case !slices.Equal(h.InputShape, InputShape()):
		return nil, fmt.Errorf("%w: input shape %v, want %v", ErrIncompatible, h.InputShape, InputShape())
	}

	m, err := New(0, Options{Momentum: h.Momentum, Epsilon: h.Epsilon})
	if err != nil {
		return nil, err
	}

	snap := make(map[string][]float32, len(a.Params))
	for _, p := range a.Params {
		snap[p.Name] = p.Data
	}
	if err := m.net.Restore(snap); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrIncompatible, err)
	}
	m.epochs = h.Epochs
	return m, nil
}

// Load reads parameters from path. A missing file is reported as
// domain.ErrModelUnavailable.
func Load(path string) (*Model, error) {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", domain.ErrModelUnavailable, path)
		}
		return nil, fmt.Errorf("open model: %w", err)
	}
	defer f.Close()

	m, err := Decode(f)
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", path, err)
	}
	return m, nil
}

// ReadHeader returns only the header of the artifact at path
func ReadHeader(path string) (Header, error) {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return Header{}, fmt.Errorf("%w: %s", domain.ErrModelUnavailable, path)
		}
		return Header{}, fmt.Errorf("open model: %w", err)
	}
	defer f.Close()

	var a artifact
	if err := gob.NewDecoder(f).Decode(&a); err != nil {
		return Header{}, fmt.Errorf("%w: %v", ErrIncompatible, err)
	}
	return a.Header, nil
}
