package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/saturnino-fabrica-de-software/emosense/internal/database"
	"github.com/saturnino-fabrica-de-software/emosense/internal/repository"
)

func pruneCommand(ctx *Context) *cobra.Command {
	var olderThan time.Duration

	cmd := &cobra.Command{
		Use:   "prune",
		Short: "Delete stored analyses past the retention period",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !ctx.Config.HasDatabase() {
				return errNoDatabase
			}
			if olderThan <= 0 {
				return fmt.Errorf("--older-than must be positive, got %s", olderThan)
			}

			pool, err := database.NewPool(cmd.Context(), database.DefaultPoolConfig(ctx.Config.DatabaseURL))
			if err != nil {
				return err
			}
			defer pool.Close()

			n, err := repository.NewAnalysisRepository(pool).DeleteOlderThan(cmd.Context(), olderThan)
			if err != nil {
				return err
			}

			ctx.Logger.Info("analyses pruned", "deleted", n, "older_than", olderThan)
			fmt.Fprintf(ctx.Out, "deleted %d analyses older than %s\n", n, olderThan)
			return nil
		},
	}

	cmd.Flags().DurationVar(&olderThan, "older-than", 30*24*time.Hour, "Retention period")

	return cmd
}
