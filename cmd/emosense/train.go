package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/saturnino-fabrica-de-software/emosense/internal/corpus"
	"github.com/saturnino-fabrica-de-software/emosense/internal/imaging"
	"github.com/saturnino-fabrica-de-software/emosense/internal/training"
)

type trainFlags struct {
	corpusDir    string
	modelPath    string
	epochs       int
	batchSize    int
	learningRate float64
	seed         int64
	workers      int
	validation   string
	noAugment    bool
	lenient      bool
}

func trainCommand(ctx *Context) *cobra.Command {
	var f trainFlags

	cmd := &cobra.Command{
		Use:   "train",
		Short: "Train the emotion classifier",
		Long: `Train the convolutional classifier on <corpus>/train, score every epoch on the
validation partition and write the parameters plus a YAML report. Interrupting
keeps the last completed epoch.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := trainingConfig(cmd, ctx, f)
			if f.validation != "" {
				p, err := corpus.ParsePartition(f.validation)
				if err != nil {
					return err
				}
				cfg.ValidationPartition = p
			}

			c, err := corpus.Open(pick(cmd, "corpus", f.corpusDir, ctx.Config.CorpusDir), corpus.Options{Strict: !f.lenient})
			if err != nil {
				return err
			}

			start := time.Now()
			trainer := training.NewTrainer(cfg, ctx.Logger)
			trainer.OnEpoch = func(m training.EpochMetrics) {
				fmt.Fprintf(ctx.Out, "epoch %d/%d  loss %.4f  acc %.4f  val_loss %.4f  val_acc %.4f  (%s)\n",
					m.Epoch, cfg.Epochs, m.TrainLoss, m.TrainAccuracy, m.ValidationLoss, m.ValidationAccuracy,
					m.Duration.Round(time.Millisecond))
			}

			res, err := trainer.Run(cmd.Context(), c)
			if err != nil {
				return err
			}

			switch {
			case !res.Saved:
				fmt.Fprintln(ctx.Out, "interrupted before the first epoch, nothing saved")
			case res.Interrupted:
				fmt.Fprintf(ctx.Out, "interrupted after %d epochs, saved %s (report %s)\n", res.Epochs, res.ModelPath, res.ReportPath)
			default:
				fmt.Fprintf(ctx.Out, "trained %d epochs in %s, saved %s (report %s)\n",
					res.Epochs, time.Since(start).Round(time.Second), res.ModelPath, res.ReportPath)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&f.corpusDir, "corpus", "c", "", "Corpus root (default $CORPUS_DIR)")
	cmd.Flags().StringVarP(&f.modelPath, "model", "m", "", "Output parameter file (default $MODEL_PATH)")
	cmd.Flags().IntVar(&f.epochs, "epochs", 0, "Training epochs (default $TRAIN_EPOCHS)")
	cmd.Flags().IntVar(&f.batchSize, "batch-size", 0, "Mini-batch size (default $TRAIN_BATCH_SIZE)")
	cmd.Flags().Float64Var(&f.learningRate, "lr", 0, "Adam learning rate (default $TRAIN_LEARNING_RATE)")
	cmd.Flags().Int64Var(&f.seed, "seed", 0, "Seed for initialization, shuffling and augmentation (default $TRAIN_SEED)")
	cmd.Flags().IntVar(&f.workers, "workers", 0, "Parallel workers, 0 uses every CPU (default $TRAIN_WORKERS)")
	cmd.Flags().StringVar(&f.validation, "validation", "", "Validation partition: test or val (default $VALIDATION_PARTITION)")
	cmd.Flags().BoolVar(&f.noAugment, "no-augment", false, "Disable training-time augmentation")
	cmd.Flags().BoolVar(&f.lenient, "lenient", false, "Accept corpora missing some label directories")

	return cmd
}

// trainingConfig merges the environment defaults with explicitly set flags
func trainingConfig(cmd *cobra.Command, ctx *Context, f trainFlags) training.Config {
	env := ctx.Config
	cfg := training.DefaultConfig()

	cfg.Epochs = env.TrainEpochs
	cfg.BatchSize = env.TrainBatchSize
	cfg.LearningRate = env.TrainLearningRate
	cfg.Seed = env.TrainSeed
	cfg.Workers = env.TrainWorkers
	cfg.ModelPath = pick(cmd, "model", f.modelPath, env.ModelPath)
	if p, err := corpus.ParsePartition(env.ValidationPartition); err == nil {
		cfg.ValidationPartition = p
	}

	flags := cmd.Flags()
	if flags.Changed("epochs") {
		cfg.Epochs = f.epochs
	}
	if flags.Changed("batch-size") {
		cfg.BatchSize = f.batchSize
	}
	if flags.Changed("lr") {
		cfg.LearningRate = f.learningRate
	}
	if flags.Changed("seed") {
		cfg.Seed = f.seed
	}
	if flags.Changed("workers") {
		cfg.Workers = f.workers
	}
	if f.noAugment {
		cfg.Augmentation = imaging.Augmentation{}
	}
	return cfg
}

// pick returns the flag value when it was set on the command line
func pick(cmd *cobra.Command, name, flagValue, fallback string) string {
	if cmd.Flags().Changed(name) {
		return flagValue
	}
	return fallback
}
