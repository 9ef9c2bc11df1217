package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/saturnino-fabrica-de-software/emosense/internal/corpus"
	"github.com/saturnino-fabrica-de-software/emosense/internal/domain"
	"github.com/saturnino-fabrica-de-software/emosense/internal/imaging"
)

// synthCommand writes a corpus of flat images, one gray level per label. It
// is enough to smoke-test training and evaluation without a real dataset.
func synthCommand(ctx *Context) *cobra.Command {
	var (
		count      int
		size       int
		validation bool
	)

	cmd := &cobra.Command{
		Use:   "synth [dir]",
		Short: "Write a synthetic corpus",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			root := ctx.Config.CorpusDir
			if len(args) == 1 {
				root = args[0]
			}
			if count <= 0 || size <= 0 {
				return fmt.Errorf("count and size must be positive")
			}

			partitions := []corpus.Partition{corpus.Train, corpus.Test}
			if validation {
				partitions = append(partitions, corpus.Validation)
			}

			step := 255 / (domain.NumEmotions - 1)
			for _, p := range partitions {
				for i, label := range domain.EmotionNames() {
					level := uint8(i * step)
					if err := corpus.WriteUniform(root, p, strings.ToLower(label), level, count, size); err != nil {
						return fmt.Errorf("write %s/%s: %w", p, label, err)
					}
				}
			}

			total := count * domain.NumEmotions * len(partitions)
			ctx.Logger.Info("synthetic corpus written", "root", root, "images", total)
			fmt.Fprintf(ctx.Out, "wrote %d images to %s\n", total, root)
			return nil
		},
	}

	cmd.Flags().IntVarP(&count, "count", "n", 8, "Images per label and partition")
	cmd.Flags().IntVar(&size, "size", imaging.InputSize, "Image side in pixels")
	cmd.Flags().BoolVar(&validation, "val", false, "Also write a val partition")

	return cmd
}
