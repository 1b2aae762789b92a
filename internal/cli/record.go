package cli

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/emiliopalmerini/mtrack/internal/domain"
	"github.com/emiliopalmerini/mtrack/internal/util"
)

var recordCmd = &cobra.Command{
	Use:   "record",
	Short: "Record one foreground application sample",
	Long: `Records a single foreground-application sample. The collector calls this
every 5 minutes with the frontmost app and, when available, its window title.

Examples:
  mtrack record --app Xcode
  mtrack record --app Safari --title "Go Packages"
  mtrack record --app Slack --at 2026-02-18T14:05:00+01:00`,
	RunE: runRecord,
}

var (
	recordApp   string
	recordTitle string
	recordAt    string
)

var importCmd = &cobra.Command{
	Use:   "import",
	Short: "Import one day of browser domain visits",
	Long: `Reads browser domain visits as JSON from stdin (or --file) and replaces the
domain records of that date. Re-importing the same date never double counts.

Accepted input:
  {"date": "2026-02-18", "visits": [{"domain": "github.com", "duration_seconds": 600}]}
or a bare array of visits together with --date.

Examples:
  history-export | mtrack import
  mtrack import --date 2026-02-18 --file visits.json`,
	RunE: runImport,
}

var (
	importDate string
	importFile string
)

func init() {
	recordCmd.Flags().StringVar(&recordApp, "app", "", "Foreground application name (required)")
	recordCmd.Flags().StringVar(&recordTitle, "title", "", "Window title")
	recordCmd.Flags().StringVar(&recordAt, "at", "", "Sample time, RFC 3339 (default: now)")
	_ = recordCmd.MarkFlagRequired("app")

	importCmd.Flags().StringVar(&importDate, "date", "", "Date of the visits (YYYY-MM-DD), overrides the payload date")
	importCmd.Flags().StringVarP(&importFile, "file", "f", "", "Read visits from file instead of stdin")
}

func runRecord(cmd *cobra.Command, args []string) error {
	ts := app.Activities.Now()
	if recordAt != "" {
		t, err := time.Parse(time.RFC3339, recordAt)
		if err != nil {
			return fmt.Errorf("invalid --at: %w", err)
		}
		ts = t
	}
	var title *string
	if recordTitle != "" {
		title = &recordTitle
	}

	rec, err := app.Activities.RecordAppSample(cmd.Context(), ts, recordApp, title)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Recorded %s (%s) at %s\n",
		rec.Subject, rec.CategoryOr(domain.Uncategorized), rec.Timestamp.In(app.Location).Format(time.RFC3339))
	return nil
}

type importPayload struct {
	Date   domain.Date          `json:"date"`
	Visits []domain.DomainVisit `json:"visits"`
}

// parseImport accepts either an importPayload object or a bare visits array.
func parseImport(data []byte) (importPayload, error) {
	var p importPayload
	if bytes.HasPrefix(bytes.TrimSpace(data), []byte("[")) {
		err := json.Unmarshal(data, &p.Visits)
		return p, err
	}
	err := json.Unmarshal(data, &p)
	return p, err
}

func runImport(cmd *cobra.Command, args []string) error {
	var r io.Reader = cmd.InOrStdin()
	if importFile != "" {
		f, err := os.Open(importFile)
		if err != nil {
			return fmt.Errorf("failed to open %s: %w", importFile, err)
		}
		defer f.Close()
		r = f
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return fmt.Errorf("failed to read visits: %w", err)
	}

	payload, err := parseImport(data)
	if err != nil {
		return fmt.Errorf("failed to parse visits: %w", err)
	}
	date, err := parseDateFlag("date", importDate, payload.Date)
	if err != nil {
		return err
	}
	if date.IsZero() {
		return fmt.Errorf("a date is required: pass --date or include \"date\" in the payload")
	}

	res, err := app.Activities.ReplaceDomainVisits(cmd.Context(), date, payload.Visits)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Imported %d domains for %s (%s), replaced %d records\n",
		res.Inserted, res.Date, util.FormatDuration(res.TotalSeconds), res.Replaced)
	return nil
}
