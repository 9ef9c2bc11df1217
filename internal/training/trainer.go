// Package training fits the emotion classifier on a labeled corpus.
package training

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"runtime"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/saturnino-fabrica-de-software/emosense/internal/classifier"
	"github.com/saturnino-fabrica-de-software/emosense/internal/corpus"
	"github.com/saturnino-fabrica-de-software/emosense/internal/imaging"
	"github.com/saturnino-fabrica-de-software/emosense/internal/nn"
)

// Config holds training hyperparameters and output location
type Config struct {
	Epochs              int
	BatchSize           int
	LearningRate        float64
	Seed                int64
	Workers             int
	Augmentation        imaging.Augmentation
	ValidationPartition corpus.Partition
	ModelPath           string
	BatchNorm           classifier.Options
}

// DefaultConfig returns the standard regime: 30 epochs of batch 64 at 1e-4,
// validated on the test partition.
func DefaultConfig() Config {
	return Config{
		Epochs:              30,
		BatchSize:           64,
		LearningRate:        1e-4,
		Seed:                42,
		Workers:             runtime.GOMAXPROCS(0),
		Augmentation:        imaging.DefaultAugmentation(),
		ValidationPartition: corpus.Test,
		ModelPath:           classifier.DefaultPath,
	}
}

func (c Config) validate() error {
	switch {
	case c.Epochs <= 0:
		return fmt.Errorf("epochs must be positive, got %d", c.Epochs)
	case c.BatchSize <= 0:
		return fmt.Errorf("batch size must be positive, got %d", c.BatchSize)
	case c.LearningRate <= 0:
		return fmt.Errorf("learning rate must be positive, got %v", c.LearningRate)
	}
	return nil
}

// EpochMetrics summarizes one completed epoch
type EpochMetrics struct {
	Epoch              int           `yaml:"epoch"`
	TrainLoss          float64       `yaml:"trainLoss"`
	TrainAccuracy      float64       `yaml:"trainAccuracy"`
	ValidationLoss     float64       `yaml:"validationLoss"`
	ValidationAccuracy float64       `yaml:"validationAccuracy"`
	Duration           time.Duration `yaml:"duration"`
}

// Result is the outcome of a training run
type Result struct {
	Model       *classifier.Model
	History     []EpochMetrics
	Epochs      int
	Interrupted bool
	Saved       bool
	ModelPath   string
	ReportPath  string
}

type Trainer struct {
	cfg    Config
	logger *slog.Logger
	pre    *imaging.Preprocessor

	// OnEpoch, when set, is called after every completed epoch
	OnEpoch func(EpochMetrics)

	beforeBatch func(epoch, batch int, net *nn.Sequential)
}

func NewTrainer(cfg Config, logger *slog.Logger) *Trainer {
	if cfg.Workers <= 0 {
		cfg.Workers = runtime.GOMAXPROCS(0)
	}
	if cfg.ValidationPartition == "" {
		cfg.ValidationPartition = corpus.Test
	}
	if cfg.ModelPath == "" {
		cfg.ModelPath = classifier.DefaultPath
	}
	return &Trainer{cfg: cfg, logger: logger, pre: imaging.NewPreprocessor()}
}

// Run loads the corpus, fits a fresh model and persists it with its report.
// Cancelling ctx stops after discarding the partial epoch; completed epochs
// are still saved.
func (t *Trainer) Run(ctx context.Context, c *corpus.Corpus) (*Result, error) {
	if err := t.cfg.validate(); err != nil {
		return nil, err
	}

	trainSamples, err := c.Samples(corpus.Train)
	if err != nil {
		return nil, err
	}
	valSamples, err := c.Samples(t.cfg.ValidationPartition)
	if err != nil {
		return nil, err
	}

	t.logger.Info("loading corpus",
		"root", c.Root,
		"train", len(trainSamples),
		"validation", len(valSamples),
		"validation_partition", t.cfg.ValidationPartition,
	)
	train, err := corpus.Load(ctx, trainSamples, t.pre, t.cfg.Workers)
	if err != nil {
		return nil, fmt.Errorf("load train partition: %w", err)
	}
	val, err := corpus.Load(ctx, valSamples, t.pre, t.cfg.Workers)
	if err != nil {
		return nil, fmt.Errorf("load %s partition: %w", t.cfg.ValidationPartition, err)
	}

	res, err := t.Fit(ctx, train, val)
	if err != nil {
		return nil, err
	}
	if res.Epochs == 0 {
		t.logger.Warn("training interrupted before the first epoch completed, nothing saved")
		return res, nil
	}

	if err := res.Model.Save(t.cfg.ModelPath); err != nil {
		return nil, err
	}
	res.Saved = true
	res.ModelPath = t.cfg.ModelPath

	report := NewReport(t.cfg, res, train.Len(), val.Len())
	res.ReportPath = ReportPath(t.cfg.ModelPath)
	if err := report.Write(res.ReportPath); err != nil {
		return nil, err
	}

	t.logger.Info("model saved",
		"path", res.ModelPath,
		"report", res.ReportPath,
		"epochs", res.Epochs,
		"interrupted", res.Interrupted,
	)
	return res, nil
}

// Fit trains a fresh model on train and scores every epoch on val.
// It never returns ctx errors: cancellation yields Interrupted=true with the
// parameters of the last completed epoch.
func (t *Trainer) Fit(ctx context.Context, train, val *corpus.Dataset) (*Result, error) {
	if err := t.cfg.validate(); err != nil {
		return nil, err
	}
	if train.Len() == 0 {
		return nil, errors.New("empty training set")
	}

	model, err := classifier.New(t.cfg.Seed, t.cfg.BatchNorm)
	if err != nil {
		return nil, err
	}
	net := model.Network()
	opt := nn.NewAdam(t.cfg.LearningRate)
	rng := rand.New(rand.NewSource(t.cfg.Seed))

	res := &Result{Model: model}
	snapshot := net.Snapshot()
	order := make([]int, train.Len())
	for i := range order {
		order[i] = i
	}

	for epoch := 1; epoch <= t.cfg.Epochs; epoch++ {
		start := time.Now()
		rng.Shuffle(len(order), func(i, j int) { order[i], order[j] = order[j], order[i] })

		loss, acc, err := t.trainEpoch(ctx, epoch, net, opt, train, order, rng)
		if err != nil {
			if ctx.Err() != nil {
				if rerr := net.Restore(snapshot); rerr != nil {
					return nil, fmt.Errorf("restore epoch %d parameters: %w", res.Epochs, rerr)
				}
				res.Interrupted = true
				t.logger.Warn("training interrupted, partial epoch discarded",
					"epoch", epoch,
					"completed_epochs", res.Epochs,
				)
				return res, nil
			}
			return nil, fmt.Errorf("epoch %d: %w", epoch, err)
		}

		valLoss, valAcc, err := Score(net, val, t.cfg.BatchSize, t.cfg.Workers)
		if err != nil {
			return nil, fmt.Errorf("epoch %d validation: %w", epoch, err)
		}

		m := EpochMetrics{
			Epoch:              epoch,
			TrainLoss:          loss,
			TrainAccuracy:      acc,
			ValidationLoss:     valLoss,
			ValidationAccuracy: valAcc,
			Duration:           time.Since(start),
		}
		res.History = append(res.History, m)
		res.Epochs = epoch
		model.SetEpochsTrained(epoch)
		snapshot = net.Snapshot()

		t.logger.Info("epoch complete",
			"epoch", epoch,
			"epochs", t.cfg.Epochs,
			"loss", m.TrainLoss,
			"accuracy", m.TrainAccuracy,
			"val_loss", m.ValidationLoss,
			"val_accuracy", m.ValidationAccuracy,
			"duration", m.Duration,
		)
		if t.OnEpoch != nil {
			t.OnEpoch(m)
		}
	}

	return res, nil
}

func (t *Trainer) trainEpoch(ctx context.Context, epoch int, net *nn.Sequential, opt *nn.Adam, ds *corpus.Dataset, order []int, rng *rand.Rand) (float64, float64, error) {
	pass := &nn.Pass{Training: true, Rng: rng, Workers: t.cfg.Workers}
	var lossSum, accSum float64

	for lo := 0; lo < len(order); lo += t.cfg.BatchSize {
		if err := ctx.Err(); err != nil {
			return 0, 0, err
		}
		if t.beforeBatch != nil {
			t.beforeBatch(epoch, lo/t.cfg.BatchSize, net)
		}
		idx := order[lo:min(lo+t.cfg.BatchSize, len(order))]

		x, err := t.augmentBatch(ds, idx, rng)
		if err != nil {
			return 0, 0, err
		}
		y := ds.OneHot(idx)

		net.ZeroGrad()
		p, trace, err := net.Forward(x, pass)
		if err != nil {
			return 0, 0, err
		}
		loss, grad, err := nn.CategoricalCrossEntropy(p, y)
		if err != nil {
			return 0, 0, err
		}
		if err := net.Backward(grad, trace, pass); err != nil {
			return 0, 0, err
		}
		opt.Step(net.Params())

		lossSum += loss * float64(len(idx))
		accSum += nn.Accuracy(p, y) * float64(len(idx))
	}

	n := float64(len(order))
	return lossSum / n, accSum / n, nil
}

// augmentBatch draws one seed per sample from rng, then transforms the
// samples on the worker pool so the result does not depend on scheduling.
func (t *Trainer) augmentBatch(ds *corpus.Dataset, idx []int, rng *rand.Rand) (*nn.Tensor, error) {
	aug := t.cfg.Augmentation
	if !aug.Enabled() {
		return ds.Batch(idx, nil), nil
	}

	seeds := make([]int64, len(idx))
	for i := range seeds {
		seeds[i] = rng.Int63()
	}
	planes := make([][]float32, len(idx))

	var g errgroup.Group
	g.SetLimit(t.cfg.Workers)
	for b, i := range idx {
		g.Go(func() error {
			planes[b] = aug.Apply(ds.Pixels[i], ds.Size, rand.New(rand.NewSource(seeds[b])))
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	return ds.Batch(idx, func(b int, _ []float32) []float32 { return planes[b] }), nil
}

// Score computes mean loss and accuracy of net over ds in sample order,
// without augmentation.
func Score(net *nn.Sequential, ds *corpus.Dataset, batchSize, workers int) (float64, float64, error) {
	if ds.Len() == 0 {
		return 0, 0, errors.New("empty dataset")
	}
	pass := &nn.Pass{Workers: workers}
	var lossSum, accSum float64

	idx := make([]int, 0, batchSize)
	for lo := 0; lo < ds.Len(); lo += batchSize {
		idx = idx[:0]
		for i := lo; i < min(lo+batchSize, ds.Len()); i++ {
			idx = append(idx, i)
		}
		p, _, err := net.Forward(ds.Batch(idx, nil), pass)
		if err != nil {
			return 0, 0, err
		}
		y := ds.OneHot(idx)
		loss, _, err := nn.CategoricalCrossEntropy(p, y)
		if err != nil {
			return 0, 0, err
		}
		lossSum += loss * float64(len(idx))
		accSum += nn.Accuracy(p, y) * float64(len(idx))
	}
	n := float64(ds.Len())
	return lossSum / n, accSum / n, nil
}
