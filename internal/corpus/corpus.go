// Package corpus discovers labeled face images laid out as
// <root>/<partition>/<label>/<image> and loads them as network inputs.
package corpus

import (
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/saturnino-fabrica-de-software/emosense/internal/domain"
)

type Partition string

const (
	Train      Partition = "train"
	Test       Partition = "test"
	Validation Partition = "val"
)

// ParsePartition accepts "train", "test" and "val"/"validation"
func ParsePartition(s string) (Partition, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "train":
		return Train, nil
	case "test":
		return Test, nil
	case "val", "validation":
		return Validation, nil
	}
	return "", fmt.Errorf("unknown partition %q", s)
}

var imageExtensions = []string{".png", ".jpg", ".jpeg", ".gif", ".bmp", ".webp"}

// Sample is one labeled image file
type Sample struct {
	Path  string
	Label domain.Emotion
}

// Options control how strictly the layout is validated
type Options struct {
	// Strict requires all seven label directories in every partition and the
	// same label set in train and test.
	Strict bool
}

type Corpus struct {
	Root       string
	partitions map[Partition][]Sample
}

// Open scans root. Train and test must exist and hold at least one image;
// val is optional. Label directories map to emotions by name, case-insensitively.
func Open(root string, opts Options) (*Corpus, error) {
	info, err := os.Stat(root)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrCorpusMissing, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%w: %s is not a directory", domain.ErrCorpusMissing, root)
	}

	c := &Corpus{Root: root, partitions: make(map[Partition][]Sample)}
	for _, p := range []Partition{Train, Test, Validation} {
		dir := filepath.Join(root, string(p))
		if _, err := os.Stat(dir); err != nil {
			if p == Validation && os.IsNotExist(err) {
				continue
			}
			return nil, fmt.Errorf("%w: partition %s: %v", domain.ErrCorpusMissing, p, err)
		}
		samples, err := scanPartition(dir, opts)
		if err != nil {
			return nil, fmt.Errorf("%w: partition %s: %v", domain.ErrCorpusMissing, p, err)
		}
		c.partitions[p] = samples
	}

	if opts.Strict {
		train := c.Labels(Train)
		for _, p := range []Partition{Test, Validation} {
			if c.Has(p) && !slices.Equal(train, c.Labels(p)) {
				return nil, fmt.Errorf("%w: %s labels %v differ from train labels %v", domain.ErrCorpusMissing, p, c.Labels(p), train)
			}
		}
	}
	return c, nil
}

// OpenPartition scans only partition p of root, for runs that score a
// single split and need no train directory.
func OpenPartition(root string, p Partition, opts Options) (*Corpus, error) {
	info, err := os.Stat(root)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrCorpusMissing, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%w: %s is not a directory", domain.ErrCorpusMissing, root)
	}

	samples, err := scanPartition(filepath.Join(root, string(p)), opts)
	if err != nil {
		return nil, fmt.Errorf("%w: partition %s: %v", domain.ErrCorpusMissing, p, err)
	}
	return &Corpus{Root: root, partitions: map[Partition][]Sample{p: samples}}, nil
}

func scanPartition(dir string, opts Options) ([]Sample, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}

	seen := make(map[domain.Emotion]bool)
	var samples []Sample
	for _, e := range entries {
		if !e.IsDir() || strings.HasPrefix(e.Name(), ".") {
			continue
		}
		label, err := domain.ParseEmotion(e.Name())
		if err != nil {
			if opts.Strict {
				return nil, fmt.Errorf("unexpected label directory %q", e.Name())
			}
			continue
		}
		if seen[label] {
			return nil, fmt.Errorf("label %s appears twice", label)
		}
		seen[label] = true

		files, err := imageFiles(filepath.Join(dir, e.Name()))
		if err != nil {
			return nil, err
		}
		if len(files) == 0 && opts.Strict {
			return nil, fmt.Errorf("label %s has no images", label)
		}
		for _, f := range files {
			samples = append(samples, Sample{Path: f, Label: label})
		}
	}

	if opts.Strict && len(seen) != domain.NumEmotions {
		return nil, fmt.Errorf("found %d label directories, want %d", len(seen), domain.NumEmotions)
	}
	if len(samples) == 0 {
		return nil, fmt.Errorf("no images under %s", dir)
	}

	// stable order: by label index, then file name
	slices.SortStableFunc(samples, func(a, b Sample) int {
		if a.Label != b.Label {
			return int(a.Label) - int(b.Label)
		}
		return strings.Compare(a.Path, b.Path)
	})
	return samples, nil
}

func imageFiles(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	var files []string
	for _, e := range entries {
		if e.IsDir() || strings.HasPrefix(e.Name(), ".") {
			continue
		}
		if slices.Contains(imageExtensions, strings.ToLower(filepath.Ext(e.Name()))) {
			files = append(files, filepath.Join(dir, e.Name()))
		}
	}
	return files, nil
}

func (c *Corpus) Has(p Partition) bool {
	_, ok := c.partitions[p]
	return ok
}

// Samples returns the images of partition p in stable order
func (c *Corpus) Samples(p Partition) ([]Sample, error) {
	s, ok := c.partitions[p]
	if !ok {
		return nil, fmt.Errorf("%w: no %s partition under %s", domain.ErrCorpusMissing, p, c.Root)
	}
	return s, nil
}

// Labels lists the emotions present in partition p, in index order
func (c *Corpus) Labels(p Partition) []domain.Emotion {
	var labels []domain.Emotion
	for _, s := range c.partitions[p] {
		if len(labels) == 0 || labels[len(labels)-1] != s.Label {
			labels = append(labels, s.Label)
		}
	}
	return labels
}

// Counts returns the number of images per emotion in partition p
func (c *Corpus) Counts(p Partition) map[domain.Emotion]int {
	counts := make(map[domain.Emotion]int)
	for _, s := range c.partitions[p] {
		counts[s.Label]++
	}
	return counts
}
