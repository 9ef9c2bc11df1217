// Command emosense runs the offline side of EmoSense: training, evaluation,
// synthetic corpora and database maintenance.
package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/saturnino-fabrica-de-software/emosense/internal/config"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := RootCommand(&Context{Out: os.Stdout, Err: os.Stderr}).ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

// Context is shared by every subcommand. Config and Logger are filled in by
// the root command unless already set.
type Context struct {
	Config *config.Config
	Logger *slog.Logger
	Out    io.Writer
	Err    io.Writer
}

// RootCommand creates and returns the root command
func RootCommand(ctx *Context) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "emosense",
		Short:         "EmoSense offline tooling",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		if ctx.Config == nil {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			ctx.Config = cfg
		}
		if ctx.Logger == nil {
			// reports go to Out, logs to Err
			ctx.Logger = config.NewLoggerTo(ctx.Err, ctx.Config.Environment)
		}
		return nil
	}

	rootCmd.SetOut(ctx.Out)
	rootCmd.SetErr(ctx.Err)

	rootCmd.AddCommand(
		trainCommand(ctx),
		evaluateCommand(ctx),
		synthCommand(ctx),
		migrateCommand(ctx),
		pruneCommand(ctx),
	)

	return rootCmd
}
