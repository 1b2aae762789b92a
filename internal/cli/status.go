package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"github.com/emiliopalmerini/mtrack/internal/query"
	"github.com/emiliopalmerini/mtrack/internal/util"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show daemon and collector health",
	Long: `Show whether the collector is still recording, the scheduler state and the
latest report. The running daemon is asked first; when it is not reachable
the local database is inspected instead.`,
	RunE: runStatus,
}

var statusJSON bool

func init() {
	statusCmd.Flags().BoolVar(&statusJSON, "json", false, "Print JSON")
}

func runStatus(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	port := app.Settings.Current().Settings.APIPort

	st, err := daemonStatus(ctx, port)
	daemon := err == nil
	if err != nil {
		app.Log.Debug("daemon not reachable", "port", port, "err", err)
		if st, err = app.Service(nil).Status(ctx); err != nil {
			return err
		}
	}

	out := cmd.OutOrStdout()
	if statusJSON {
		return printJSON(out, st)
	}
	printStatus(out, st, daemon, port)
	return nil
}

// daemonStatus fetches /api/v1/status from a daemon on the loopback interface.
func daemonStatus(ctx context.Context, port int) (*query.Status, error) {
	ctx, cancel := context.WithTimeout(ctx, time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fmt.Sprintf("http://127.0.0.1:%d/api/v1/status", port), nil)
	if err != nil {
		return nil, err
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("status endpoint returned %s", resp.Status)
	}

	var st query.Status
	if err := json.NewDecoder(resp.Body).Decode(&st); err != nil {
		return nil, fmt.Errorf("failed to decode status: %w", err)
	}
	return &st, nil
}

func printStatus(out io.Writer, st *query.Status, daemon bool, port int) {
	printTitle(out, "mtrack status")

	if daemon {
		printField(out, "Daemon", styles.Success.Render(fmt.Sprintf("running on 127.0.0.1:%d", port)))
	} else {
		printField(out, "Daemon", styles.Warning.Render("not running"))
	}
	printField(out, "Timezone", st.Timezone)

	printField(out, "Collector alive", yesNo(st.Collector.Alive))
	if st.Collector.LastActivityAt != nil {
		printField(out, "Last sample", fmt.Sprintf("%s (%s)",
			util.FormatDateTime(*st.Collector.LastActivityAt, app.Location), orDash(st.Collector.LastSubject)))
	}

	if st.Scheduler != nil {
		s := st.Scheduler
		printField(out, "Scheduler", string(s.State))
		printField(out, "Report time", s.ReportTime)
		if s.NextFireAt != nil {
			printField(out, "Next run", util.FormatDateTime(*s.NextFireAt, app.Location))
		}
		if s.LastError != nil {
			printField(out, "Last error", styles.Error.Render(*s.LastError))
		}
		if s.MissedRuns > 0 {
			printField(out, "Missed runs", styles.Warning.Render(fmt.Sprint(s.MissedRuns)))
		}
	}

	if st.LatestReport != nil {
		printField(out, "Latest report", st.LatestReport.String())
	} else {
		printField(out, "Latest report", styles.Muted.Render("none"))
	}
	printField(out, "Rules version", fmt.Sprint(st.RulesVersion))
}
