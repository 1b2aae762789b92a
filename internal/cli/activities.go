package cli

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/emiliopalmerini/mtrack/internal/domain"
	"github.com/emiliopalmerini/mtrack/internal/util"
)

var activitiesCmd = &cobra.Command{
	Use:   "activities",
	Short: "List recorded activity",
	Long: `List activity records for a date range with categories resolved from the
current rules.

Examples:
  mtrack activities                                   # Today
  mtrack activities --from 2026-02-01 --to 2026-02-07
  mtrack activities --category development --kind app
  mtrack activities --json`,
	RunE: runActivities,
}

var (
	activitiesFrom     string
	activitiesTo       string
	activitiesCategory string
	activitiesKind     string
	activitiesJSON     bool
)

func init() {
	activitiesCmd.Flags().StringVar(&activitiesFrom, "from", "", "First date (YYYY-MM-DD, default today)")
	activitiesCmd.Flags().StringVar(&activitiesTo, "to", "", "Last date (YYYY-MM-DD, default today)")
	activitiesCmd.Flags().StringVarP(&activitiesCategory, "category", "c", "", "Only this category")
	activitiesCmd.Flags().StringVarP(&activitiesKind, "kind", "k", "", "Only this subject kind: app, domain")
	activitiesCmd.Flags().BoolVar(&activitiesJSON, "json", false, "Print JSON")
}

func runActivities(cmd *cobra.Command, args []string) error {
	rng, err := rangeFlags(activitiesFrom, activitiesTo, app.Activities.Today())
	if err != nil {
		return err
	}
	filter := domain.ActivityFilter{Category: activitiesCategory}
	if activitiesKind != "" {
		if filter.SubjectKind, err = domain.ParseSubjectKind(activitiesKind); err != nil {
			return err
		}
	}

	records, err := app.Activities.Query(cmd.Context(), rng, filter)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if activitiesJSON {
		return printJSON(out, records)
	}
	if len(records) == 0 {
		fmt.Fprintf(out, "No activity between %s and %s\n", rng.From, rng.To)
		return nil
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "TIME\tKIND\tSUBJECT\tCATEGORY\tDURATION")
	var total int64
	for _, rec := range records {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
			rec.Timestamp.In(app.Location).Format(time.DateTime),
			rec.SubjectKind,
			rec.Subject,
			rec.CategoryOr(domain.Uncategorized),
			util.FormatDuration(rec.DurationSeconds))
		total += rec.DurationSeconds
	}
	_ = w.Flush()

	fmt.Fprintln(out)
	fmt.Fprintf(out, "%s records, %s tracked\n", util.FormatNumber(int64(len(records))), util.FormatDuration(total))
	return nil
}
