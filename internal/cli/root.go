package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/emiliopalmerini/mtrack/internal/config"
)

// skipApp marks commands that manage their own database connection.
const skipApp = "skip-app"

var rootCmd = &cobra.Command{
	Use:   "mtrack",
	Short: "Local activity tracking and daily reports",
	Long: `mtrack records which applications and web domains you spend time on,
classifies them into categories and writes a daily Markdown/JSON report.

Run 'mtrack serve' to start the daemon (API, report scheduler, retention).
The other commands work directly on the local database.`,
	SilenceUsage:       true,
	PersistentPreRunE:  openApp,
	PersistentPostRunE: closeApp,
}

// app is opened before every command that does not carry the skipApp annotation.
var app *AppContext

func Execute() {
	err := rootCmd.Execute()
	// PersistentPostRunE is skipped when a command fails.
	_ = closeApp(rootCmd, nil)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(recordCmd)
	rootCmd.AddCommand(importCmd)
	rootCmd.AddCommand(activitiesCmd)
	rootCmd.AddCommand(reportCmd)
	rootCmd.AddCommand(reportsCmd)
	rootCmd.AddCommand(categoriesCmd)
	rootCmd.AddCommand(recategorizeCmd)
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(scheduleCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(pruneCmd)
	rootCmd.AddCommand(migrateCmd)
}

func openApp(cmd *cobra.Command, args []string) error {
	if err := closeApp(cmd, args); err != nil {
		return err
	}
	if cmd.Annotations[skipApp] == "true" {
		return nil
	}
	env, err := config.LoadEnv()
	if err != nil {
		return err
	}
	a, err := NewAppContext(cmd.Context(), env, env.NewLogger(cmd.ErrOrStderr()))
	if err != nil {
		return err
	}
	app = a
	return nil
}

func closeApp(cmd *cobra.Command, args []string) error {
	if app == nil {
		return nil
	}
	err := app.Close()
	app = nil
	return err
}
