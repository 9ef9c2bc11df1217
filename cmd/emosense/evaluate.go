package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/saturnino-fabrica-de-software/emosense/internal/corpus"
	"github.com/saturnino-fabrica-de-software/emosense/internal/domain"
	"github.com/saturnino-fabrica-de-software/emosense/internal/evaluation"
)

func evaluateCommand(ctx *Context) *cobra.Command {
	var (
		corpusDir string
		modelPath string
		partition string
		format    string
		batchSize int
		workers   int
		lenient   bool
	)

	cmd := &cobra.Command{
		Use:   "evaluate",
		Short: "Score a trained model on a corpus partition",
		Long:  `Report loss, accuracy, per-class accuracy and the confusion matrix of a saved model.`,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := corpus.ParsePartition(partition)
			if err != nil {
				return err
			}

			c, err := corpus.OpenPartition(pick(cmd, "corpus", corpusDir, ctx.Config.CorpusDir), p, corpus.Options{Strict: !lenient})
			if err != nil {
				return err
			}

			if !cmd.Flags().Changed("workers") {
				workers = ctx.Config.TrainWorkers
			}
			ev := evaluation.NewEvaluator(ctx.Logger, batchSize, workers)
			report, err := ev.Evaluate(cmd.Context(), pick(cmd, "model", modelPath, ctx.Config.ModelPath), c, p)
			if err != nil {
				return err
			}

			return writeReport(ctx.Out, report, format)
		},
	}

	cmd.Flags().StringVarP(&corpusDir, "corpus", "c", "", "Corpus root (default $CORPUS_DIR)")
	cmd.Flags().StringVarP(&modelPath, "model", "m", "", "Parameter file (default $MODEL_PATH)")
	cmd.Flags().StringVarP(&partition, "partition", "p", "test", "Partition to score: train, test or val")
	cmd.Flags().StringVarP(&format, "format", "f", "table", "Output format: table, yaml, json")
	cmd.Flags().IntVar(&batchSize, "batch-size", 64, "Inference batch size")
	cmd.Flags().IntVar(&workers, "workers", 0, "Parallel workers, 0 uses every CPU")
	cmd.Flags().BoolVar(&lenient, "lenient", false, "Accept corpora missing some label directories")

	return cmd
}

func writeReport(w io.Writer, r *evaluation.Report, format string) error {
	switch strings.ToLower(format) {
	case "yaml":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(r); err != nil {
			return fmt.Errorf("encode report: %w", err)
		}
		return enc.Close()
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(r)
	case "table":
		return writeTable(w, r)
	default:
		return fmt.Errorf("unknown format %q (table, yaml, json)", format)
	}
}

func writeTable(w io.Writer, r *evaluation.Report) error {
	fmt.Fprintf(w, "partition %s  samples %d  loss %.4f  accuracy %.4f\n\n", r.Partition, r.Samples, r.Loss, r.Accuracy)

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "label\tsamples\taccuracy\t")
	for _, pc := range r.PerClass {
		fmt.Fprintf(tw, "%s\t%d\t%.4f\t\n", pc.Label, pc.Samples, pc.Accuracy)
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	fmt.Fprintln(w, "\nconfusion (rows true, columns predicted)")
	tw = tabwriter.NewWriter(w, 0, 4, 1, ' ', tabwriter.AlignRight)
	header := "\t"
	for _, name := range domain.EmotionNames() {
		header += name[:3] + "\t"
	}
	fmt.Fprintln(tw, header)
	for i, row := range r.Confusion {
		line := domain.Emotion(i).String()[:3] + "\t"
		for _, n := range row {
			line += fmt.Sprintf("%d\t", n)
		}
		fmt.Fprintln(tw, line)
	}
	return tw.Flush()
}
