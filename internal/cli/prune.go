package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

var pruneCmd = &cobra.Command{
	Use:   "prune",
	Short: "Delete activity older than the retention window",
	Long: `Delete activity records dated before today minus retention_days. The daemon
does this on its own every hour; this runs it once.

Examples:
  mtrack prune                 # Use the retention_days setting
  mtrack prune --days 30       # Keep only the last 30 days
  mtrack prune --dry-run       # Preview what would be deleted`,
	RunE: runPrune,
}

var (
	pruneDays   int
	pruneDryRun bool
)

func init() {
	pruneCmd.Flags().IntVar(&pruneDays, "days", 0, "Retention in days (default: retention_days setting)")
	pruneCmd.Flags().BoolVar(&pruneDryRun, "dry-run", false, "Preview what would be deleted")
}

func runPrune(cmd *cobra.Command, args []string) error {
	days := pruneDays
	if days == 0 {
		days = app.Settings.Current().Settings.RetentionDays
	}

	n, cutoff, err := app.Activities.PruneCandidates(cmd.Context(), days)
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	if pruneDryRun {
		fmt.Fprintf(out, "Would delete %d records dated before %s\n", n, cutoff)
		return nil
	}
	if n == 0 {
		fmt.Fprintf(out, "Nothing to delete before %s\n", cutoff)
		return nil
	}

	deleted, err := app.Activities.Prune(cmd.Context(), days)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "Deleted %d records dated before %s\n", deleted, cutoff)
	return nil
}
