package cli

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/emiliopalmerini/mtrack/internal/adapters/turso"
	"github.com/emiliopalmerini/mtrack/internal/config"
	"github.com/emiliopalmerini/mtrack/internal/migrate"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate [version]",
	Short: "Run database migrations",
	Long: `Run database migrations.

Without arguments, runs all pending migrations (up).
With a version number, migrates to that specific version (up or down as needed).
Every other command applies pending migrations on its own.

Examples:
  mtrack migrate      # Run all pending migrations
  mtrack migrate 1    # Migrate to version 1
  mtrack migrate 0    # Rollback all migrations`,
	Args:        cobra.MaximumNArgs(1),
	Annotations: map[string]string{skipApp: "true"},
	RunE:        runMigrate,
}

func runMigrate(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	env, err := config.LoadEnv()
	if err != nil {
		return err
	}
	db, err := turso.NewDB(ctx, env.DBPath)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer db.Close()

	runner := migrate.NewRunner(db, env.NewLogger(cmd.ErrOrStderr()))
	if err := runner.EnsureTable(ctx); err != nil {
		return fmt.Errorf("failed to create migrations table: %w", err)
	}
	current, _, err := runner.CurrentVersion(ctx)
	if err != nil {
		return fmt.Errorf("failed to get current version: %w", err)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Current version: %d\n", current)

	if len(args) == 0 {
		n, err := runner.Up(ctx)
		if err != nil {
			return err
		}
		if n == 0 {
			fmt.Fprintln(out, "No pending migrations")
			return nil
		}
		fmt.Fprintf(out, "Applied %d migrations\n", n)
	} else {
		target, err := strconv.Atoi(args[0])
		if err != nil {
			return fmt.Errorf("invalid version number: %s", args[0])
		}
		if target == current {
			fmt.Fprintln(out, "Already at target version")
			return nil
		}
		if err := runner.To(ctx, target); err != nil {
			return err
		}
	}

	version, _, err := runner.CurrentVersion(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "Now at version: %d\n", version)
	return nil
}
