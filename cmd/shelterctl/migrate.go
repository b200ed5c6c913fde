package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/vladislavdragonenkov/straycare/internal/storage/postgres"
)

const migrateTimeout = 30 * time.Second

type migrator interface {
	MigrateUp(ctx context.Context, steps int) error
	MigrateDown(ctx context.Context, steps int) error
	MigrationStatus(ctx context.Context) (postgres.MigrationState, error)
	Close() error
}

var openMigrator = func(ctx context.Context, dsn string) (migrator, error) {
	return postgres.Open(ctx, dsn)
}

func newMigrateCmd() *cobra.Command {
	var dsn string

	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply, roll back or inspect database migrations",
	}
	cmd.PersistentFlags().StringVar(&dsn, "dsn", "", "PostgreSQL DSN (fallback: SHELTER_POSTGRES_DSN)")

	run := func(fn func(ctx context.Context, m migrator) error) func(*cobra.Command, []string) error {
		return func(cmd *cobra.Command, _ []string) error {
			resolved := strings.TrimSpace(dsn)
			if resolved == "" {
				resolved = strings.TrimSpace(os.Getenv("SHELTER_POSTGRES_DSN"))
			}
			if resolved == "" {
				return errors.New("SHELTER_POSTGRES_DSN (or --dsn) is required")
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), migrateTimeout)
			defer cancel()

			m, err := openMigrator(ctx, resolved)
			if err != nil {
				return fmt.Errorf("open postgres store: %w", err)
			}
			defer m.Close()

			if err := fn(ctx, m); err != nil {
				return err
			}
			return printStatus(ctx, cmd, m)
		}
	}

	var upSteps, downSteps int
	up := &cobra.Command{
		Use:   "up",
		Short: "Apply pending migrations",
		Args:  cobra.NoArgs,
		RunE: run(func(ctx context.Context, m migrator) error {
			if err := m.MigrateUp(ctx, upSteps); err != nil {
				return fmt.Errorf("migrate up failed: %w", err)
			}
			return nil
		}),
	}
	up.Flags().IntVar(&upSteps, "steps", 0, "number of migrations to apply (0 = all)")

	down := &cobra.Command{
		Use:   "down",
		Short: "Roll back applied migrations",
		Args:  cobra.NoArgs,
		RunE: run(func(ctx context.Context, m migrator) error {
			if downSteps <= 0 {
				downSteps = 1
			}
			if err := m.MigrateDown(ctx, downSteps); err != nil {
				return fmt.Errorf("migrate down failed: %w", err)
			}
			return nil
		}),
	}
	down.Flags().IntVar(&downSteps, "steps", 1, "number of migrations to roll back")

	status := &cobra.Command{
		Use:   "status",
		Short: "Show the current schema version",
		Args:  cobra.NoArgs,
		RunE:  run(func(context.Context, migrator) error { return nil }),
	}

	cmd.AddCommand(up, down, status)
	return cmd
}

func printStatus(ctx context.Context, cmd *cobra.Command, m migrator) error {
	state, err := m.MigrationStatus(ctx)
	if err != nil {
		return fmt.Errorf("migration status failed: %w", err)
	}
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "version=%d applied=%d\n", state.Version, state.Applied)
	for _, name := range state.Pending {
		fmt.Fprintf(out, "pending %s\n", name)
	}
	return nil
}
