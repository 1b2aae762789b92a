package cli

import (
	"errors"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/emiliopalmerini/mtrack/internal/domain"
	"github.com/emiliopalmerini/mtrack/internal/ports"
	"github.com/emiliopalmerini/mtrack/internal/query"
	"github.com/emiliopalmerini/mtrack/internal/util"
)

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Generate or show a daily report",
	Long: `Generate the daily report for a date, or print an existing one.

Generating an existing date overwrites it, so this also backfills.

Examples:
  mtrack report                          # Generate today's report
  mtrack report --date 2026-02-17        # Generate (or regenerate) a past day
  mtrack report --show                   # Print the latest stored report
  mtrack report --show --format markdown # Print the raw Markdown artifact`,
	RunE: runReport,
}

var (
	reportDate   string
	reportShow   bool
	reportFormat string
)

var reportsCmd = &cobra.Command{
	Use:   "reports",
	Short: "List recent reports",
	RunE:  runReports,
}

var reportsLimit int

func init() {
	reportCmd.Flags().StringVarP(&reportDate, "date", "d", "", "Report date (YYYY-MM-DD, default today)")
	reportCmd.Flags().BoolVar(&reportShow, "show", false, "Show a stored report instead of generating")
	reportCmd.Flags().StringVarP(&reportFormat, "format", "f", "", "With --show, print the raw artifact: markdown, json")

	reportsCmd.Flags().IntVarP(&reportsLimit, "limit", "n", query.DefaultReportLimit, "Number of reports to show")
}

func runReport(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	svc := app.Service(nil)
	out := cmd.OutOrStdout()

	if !reportShow {
		date, err := parseDateFlag("date", reportDate, app.Activities.Today())
		if err != nil {
			return err
		}
		rep, err := svc.GenerateReport(ctx, date)
		if err != nil {
			return err
		}
		printReportSummary(out, rep)
		return nil
	}

	var (
		rep *domain.DailyReport
		err error
	)
	if reportDate == "" {
		rep, err = svc.LatestReport(ctx)
	} else {
		var date domain.Date
		if date, err = parseDateFlag("date", reportDate, domain.Date{}); err != nil {
			return err
		}
		rep, err = svc.Report(ctx, date)
	}
	if errors.Is(err, domain.ErrNotFound) {
		return fmt.Errorf("%w: run 'mtrack report' to generate one", err)
	}
	if err != nil {
		return err
	}

	switch reportFormat {
	case "":
		printReportSummary(out, rep)
		return nil
	case "markdown", "json":
		data, err := svc.Artifact(ctx, rep.Date, ports.ArtifactFormat(reportFormat))
		if err != nil {
			return err
		}
		_, err = out.Write(data)
		return err
	default:
		return fmt.Errorf("unknown --format %q (markdown, json)", reportFormat)
	}
}

func runReports(cmd *cobra.Command, args []string) error {
	reports, err := app.Service(nil).Reports(cmd.Context(), reportsLimit)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if len(reports) == 0 {
		fmt.Fprintln(out, "No reports yet")
		return nil
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "DATE\tTRACKED\tGENERATED\tMARKDOWN")
	for _, r := range reports {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n",
			r.Date,
			util.FormatDuration(r.TotalSeconds),
			util.FormatDateTime(r.GeneratedAt, app.Location),
			r.MarkdownPath)
	}
	return w.Flush()
}
