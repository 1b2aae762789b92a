package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/emiliopalmerini/mtrack/internal/query"
	"github.com/emiliopalmerini/mtrack/internal/util"
)

var scheduleCmd = &cobra.Command{
	Use:   "schedule [HH:MM]",
	Short: "Show or change the daily report time",
	Long: `Without arguments, shows the daily report time, its cron expression and
the last run. With a 24-hour HH:MM argument, changes the report time; a
running daemon re-arms without a restart.

Examples:
  mtrack schedule          # Show the schedule
  mtrack schedule 22:30    # Generate reports at 22:30 every day`,
	Args: cobra.MaximumNArgs(1),
	RunE: runSchedule,
}

func runSchedule(cmd *cobra.Command, args []string) error {
	svc := app.Service(nil)
	out := cmd.OutOrStdout()

	if len(args) == 1 {
		view, err := svc.SetReportTime(args[0])
		if err != nil {
			return err
		}
		fmt.Fprintln(out, styles.Success.Render("Report time saved"))
		printSchedule(out, view)
		return nil
	}

	view, err := svc.Schedule()
	if err != nil {
		return err
	}
	printSchedule(out, view)

	state, err := app.Repos.Schedule.Get(cmd.Context())
	if err != nil {
		return err
	}
	if state == nil {
		printField(out, "Last run", styles.Muted.Render("never"))
		return nil
	}
	if state.LastFiredDate != nil {
		printField(out, "Last fired", state.LastFiredDate.String())
	}
	if state.LastRunAt != nil {
		printField(out, "Last run at", util.FormatDateTime(*state.LastRunAt, app.Location))
	}
	if state.LastRunError != nil {
		printField(out, "Last error", styles.Error.Render(*state.LastRunError))
	}
	return nil
}

func printSchedule(out io.Writer, view query.ScheduleView) {
	printField(out, "Report time", styles.Highlighted.Render(view.ReportTime))
	printField(out, "Cron", view.CronExpression)
	if view.NextFireAt != nil {
		printField(out, "Next run", util.FormatDateTime(*view.NextFireAt, app.Location))
	}
}
