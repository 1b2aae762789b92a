package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/emiliopalmerini/mtrack/internal/domain"
	"github.com/emiliopalmerini/mtrack/internal/pkg/tui/theme"
	"github.com/emiliopalmerini/mtrack/internal/util"
)

var styles = theme.Default()

func printTitle(w io.Writer, title string) {
	fmt.Fprintln(w, styles.Title.Render(title))
	fmt.Fprintln(w)
}

func printField(w io.Writer, label, value string) {
	fmt.Fprintf(w, "%s %s\n", styles.Label.Render(label), value)
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// printCategoryTotals renders one bar per category, largest first.
func printCategoryTotals(w io.Writer, totals map[string]int64) {
	type row struct {
		name    string
		seconds int64
	}
	var rows []row
	var total int64
	for name, s := range totals {
		rows = append(rows, row{name, s})
		total += s
	}
	sort.Slice(rows, func(i, j int) bool {
		if rows[i].seconds != rows[j].seconds {
			return rows[i].seconds > rows[j].seconds
		}
		return rows[i].name < rows[j].name
	})

	width := 0
	for _, r := range rows {
		width = max(width, len(r.name))
	}
	for i, r := range rows {
		ratio := 0.0
		if total > 0 {
			ratio = float64(r.seconds) / float64(total)
		}
		fmt.Fprintf(w, "  %-*s %s %10s %6s\n",
			width, r.name,
			theme.Bar(ratio, 20, theme.CategoryColor(i)),
			util.FormatDuration(r.seconds),
			util.FormatPercent(r.seconds, total))
	}
}

func printReportSummary(w io.Writer, r *domain.DailyReport) {
	printTitle(w, "Report "+r.Date.String())
	printField(w, "Generated", r.GeneratedAt.Format("2006-01-02 15:04:05 MST"))
	printField(w, "Markdown", r.MarkdownPath)
	printField(w, "JSON", r.JSONPath)
	printField(w, "Tracked", util.FormatDuration(r.Summary().TotalSeconds))
	fmt.Fprintln(w)

	if len(r.CategoryTotals) == 0 {
		fmt.Fprintln(w, styles.Muted.Render("  No activity recorded."))
		return
	}
	fmt.Fprintln(w, styles.Subtitle.Render("Categories"))
	printCategoryTotals(w, r.CategoryTotals)

	if len(r.TopSubjects) > 0 {
		fmt.Fprintln(w)
		fmt.Fprintln(w, styles.Subtitle.Render("Top subjects"))
		for i, s := range r.TopSubjects {
			fmt.Fprintf(w, "  %d. %s (%s) %s\n", i+1, s.Subject, s.SubjectKind, util.FormatDuration(s.DurationSeconds))
		}
	}
	if len(r.Anomalies) > 0 {
		fmt.Fprintln(w)
		fmt.Fprintln(w, styles.Warning.Render("Anomalies"))
		for _, a := range r.Anomalies {
			fmt.Fprintf(w, "  %s: %s vs baseline %s (%s)\n",
				a.Category,
				util.FormatDuration(int64(a.Observed)),
				util.FormatDuration(int64(a.Baseline)),
				util.FormatSignedRatio(a.DeviationRatio))
		}
	}
}

func yesNo(b bool) string {
	if b {
		return styles.Success.Render("yes")
	}
	return styles.Error.Render("no")
}

func orDash(s string) string {
	if strings.TrimSpace(s) == "" {
		return styles.Muted.Render("-")
	}
	return s
}
