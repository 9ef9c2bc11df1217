// Package evaluation scores persisted classifier parameters on a held-out
// corpus partition.
package evaluation

import (
	"context"
	"fmt"
	"log/slog"
	"runtime"

	"github.com/saturnino-fabrica-de-software/emosense/internal/classifier"
	"github.com/saturnino-fabrica-de-software/emosense/internal/corpus"
	"github.com/saturnino-fabrica-de-software/emosense/internal/domain"
	"github.com/saturnino-fabrica-de-software/emosense/internal/imaging"
	"github.com/saturnino-fabrica-de-software/emosense/internal/nn"
)

// ClassReport is the accuracy over the samples of one true label
type ClassReport struct {
	Label    domain.Emotion `json:"label" yaml:"label"`
	Samples  int            `json:"samples" yaml:"samples"`
	Correct  int            `json:"correct" yaml:"correct"`
	Accuracy float64        `json:"accuracy" yaml:"accuracy"`
}

// Report aggregates one evaluation run. Confusion[i][j] counts samples of
// true label i predicted as j.
type Report struct {
	Partition string                                    `json:"partition" yaml:"partition"`
	Loss      float64                                   `json:"loss" yaml:"loss"`
	Accuracy  float64                                   `json:"accuracy" yaml:"accuracy"`
	Samples   int                                       `json:"samples" yaml:"samples"`
	PerClass  []ClassReport                             `json:"per_class" yaml:"perClass"`
	Confusion [domain.NumEmotions][domain.NumEmotions]int `json:"confusion" yaml:"confusion"`
}

type Evaluator struct {
	logger    *slog.Logger
	pre       *imaging.Preprocessor
	batchSize int
	workers   int
}

func NewEvaluator(logger *slog.Logger, batchSize, workers int) *Evaluator {
	if batchSize <= 0 {
		batchSize = 64
	}
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	return &Evaluator{logger: logger, pre: imaging.NewPreprocessor(), batchSize: batchSize, workers: workers}
}

// Evaluate loads parameters from modelPath and scores partition p of c.
// Missing parameters yield domain.ErrModelUnavailable.
func (e *Evaluator) Evaluate(ctx context.Context, modelPath string, c *corpus.Corpus, p corpus.Partition) (*Report, error) {
	model, err := classifier.Load(modelPath)
	if err != nil {
		return nil, err
	}
	samples, err := c.Samples(p)
	if err != nil {
		return nil, err
	}
	ds, err := corpus.Load(ctx, samples, e.pre, e.workers)
	if err != nil {
		return nil, fmt.Errorf("load %s partition: %w", p, err)
	}

	report, err := e.EvaluateModel(ctx, model, ds)
	if err != nil {
		return nil, err
	}
	report.Partition = string(p)

	e.logger.Info("evaluation complete",
		"model", modelPath,
		"partition", p,
		"samples", report.Samples,
		"loss", report.Loss,
		"accuracy", report.Accuracy,
	)
	return report, nil
}

// EvaluateModel scores model on ds in sample order, unshuffled and unaugmented
func (e *Evaluator) EvaluateModel(ctx context.Context, model *classifier.Model, ds *corpus.Dataset) (*Report, error) {
	if ds.Len() == 0 {
		return nil, fmt.Errorf("%w: empty evaluation set", domain.ErrCorpusMissing)
	}
	net := model.Network()
	pass := &nn.Pass{Workers: e.workers}

	r := &Report{Samples: ds.Len()}
	var lossSum float64
	correct := 0

	idx := make([]int, 0, e.batchSize)
	for lo := 0; lo < ds.Len(); lo += e.batchSize {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		idx = idx[:0]
		for i := lo; i < min(lo+e.batchSize, ds.Len()); i++ {
			idx = append(idx, i)
		}

		probs, _, err := net.Forward(ds.Batch(idx, nil), pass)
		if err != nil {
			return nil, fmt.Errorf("classifier forward: %w", err)
		}
		loss, _, err := nn.CategoricalCrossEntropy(probs, ds.OneHot(idx))
		if err != nil {
			return nil, err
		}
		lossSum += loss * float64(len(idx))

		for b, i := range idx {
			truth := ds.Labels[i]
			pred := nn.Argmax(probs.Sample(b))
			r.Confusion[truth][pred]++
			if pred == int(truth) {
				correct++
			}
		}
	}

	r.Loss = lossSum / float64(ds.Len())
	r.Accuracy = float64(correct) / float64(ds.Len())
	for _, label := range domain.Emotions() {
		row := r.Confusion[label]
		total := 0
		for _, n := range row {
			total += n
		}
		if total == 0 {
			continue
		}
		r.PerClass = append(r.PerClass, ClassReport{
			Label:    label,
			Samples:  total,
			Correct:  row[label],
			Accuracy: float64(row[label]) / float64(total),
		})
	}
	return r, nil
}
