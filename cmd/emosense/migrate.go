package main

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/saturnino-fabrica-de-software/emosense/internal/database"
)

var errNoDatabase = errors.New("DATABASE_URL is not set")

func migrateCommand(ctx *Context) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Manage the analysis store schema",
	}

	var dbName string
	cmd.PersistentFlags().StringVar(&dbName, "db-name", "emosense", "Database name recorded by the migrator")

	withMigrator := func(cmd *cobra.Command, fn func(*database.Migrator) error) error {
		if !ctx.Config.HasDatabase() {
			return errNoDatabase
		}
		db, err := database.OpenSQL(cmd.Context(), ctx.Config.DatabaseURL)
		if err != nil {
			return err
		}
		defer func() { _ = db.Close() }()

		migrator, err := database.NewMigrator(db, dbName)
		if err != nil {
			return fmt.Errorf("failed to create migrator: %w", err)
		}
		defer func() { _ = migrator.Close() }()

		return fn(migrator)
	}

	cmd.AddCommand(
		&cobra.Command{
			Use:   "up",
			Short: "Apply all pending migrations",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				return withMigrator(cmd, func(m *database.Migrator) error {
					if err := m.Up(); err != nil {
						return fmt.Errorf("migration up failed: %w", err)
					}
					ctx.Logger.Info("migrations applied")
					return printStatus(ctx, m)
				})
			},
		},
		&cobra.Command{
			Use:   "down",
			Short: "Roll back every migration",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				return withMigrator(cmd, func(m *database.Migrator) error {
					if err := m.Down(); err != nil {
						return fmt.Errorf("migration down failed: %w", err)
					}
					ctx.Logger.Info("migrations rolled back")
					return printStatus(ctx, m)
				})
			},
		},
		&cobra.Command{
			Use:   "status",
			Short: "Show the current schema version",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				return withMigrator(cmd, func(m *database.Migrator) error {
					return printStatus(ctx, m)
				})
			},
		},
		&cobra.Command{
			Use:   "force <version>",
			Short: "Set the schema version without running migrations",
			Long:  `Clear a dirty state after fixing a failed migration by hand.`,
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				version, err := strconv.Atoi(args[0])
				if err != nil {
					return fmt.Errorf("invalid version %q: %w", args[0], err)
				}
				return withMigrator(cmd, func(m *database.Migrator) error {
					if err := m.Force(version); err != nil {
						return fmt.Errorf("force failed: %w", err)
					}
					return printStatus(ctx, m)
				})
			},
		},
	)

	return cmd
}

func printStatus(ctx *Context, m *database.Migrator) error {
	st, err := m.Status()
	if err != nil {
		return fmt.Errorf("failed to get version: %w", err)
	}
	if st.Dirty {
		fmt.Fprintf(ctx.Out, "version %d (dirty, migration incomplete)\n", st.Version)
		return nil
	}
	fmt.Fprintf(ctx.Out, "version %d\n", st.Version)
	return nil
}
