package report

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/emiliopalmerini/mtrack/internal/aggregate"
	"github.com/emiliopalmerini/mtrack/internal/domain"
	"github.com/emiliopalmerini/mtrack/internal/util"
)

const (
	// minTrackedSeconds is the daily total under which a report notes low coverage.
	minTrackedSeconds = 3600
	// entertainmentAlertSeconds and longVideoAlertSeconds trigger usage alerts.
	entertainmentAlertSeconds = 90 * 60
	longVideoAlertSeconds     = 60 * 60
	videoDomain               = "youtube.com"
)

// productiveCategories count toward the productivity ratio.
var productiveCategories = []string{"development", "research"}

// Document is the content of the JSON artifact. The Markdown artifact is
// rendered from the same value.
type Document struct {
	Date           domain.Date           `json:"date"`
	TotalSeconds   int64                 `json:"total_seconds"`
	AppSeconds     int64                 `json:"app_seconds"`
	DomainSeconds  int64                 `json:"domain_seconds"`
	CategoryTotals map[string]int64      `json:"category_totals"`
	TopSubjects    []domain.SubjectTotal `json:"top_subjects"`
	TopApps        []domain.SubjectTotal `json:"top_apps"`
	TopDomains     []domain.SubjectTotal `json:"top_domains"`
	Anomalies      []domain.Anomaly      `json:"anomalies"`
	Notes          []string              `json:"notes"`

	categories []string
}

func newDocument(date domain.Date, res *aggregate.Result) *Document {
	return &Document{
		Date:           date,
		TotalSeconds:   res.TotalSeconds,
		AppSeconds:     res.AppSeconds,
		DomainSeconds:  res.DomainSeconds,
		CategoryTotals: res.CategoryTotals,
		TopSubjects:    res.TopSubjects,
		TopApps:        res.TopApps,
		TopDomains:     res.TopDomains,
		Anomalies:      res.Anomalies,
		Notes:          notes(res),
		categories:     res.Categories(),
	}
}

func notes(res *aggregate.Result) []string {
	out := []string{}
	if secs := res.CategoryTotals["entertainment"]; secs >= entertainmentAlertSeconds {
		out = append(out, "Entertainment usage is high: "+util.FormatDuration(secs)+".")
	}
	for _, st := range res.TopDomains {
		if strings.Contains(st.Subject, videoDomain) && st.DurationSeconds >= longVideoAlertSeconds {
			out = append(out, "YouTube session was unusually long: "+util.FormatDuration(st.DurationSeconds)+".")
			break
		}
	}
	if res.TotalSeconds < minTrackedSeconds {
		out = append(out, "Less than 1 hour tracked. Check that the collector is running and has accessibility permission.")
	}
	if res.DomainSeconds > res.AppSeconds {
		out = append(out, "Web time exceeds app time. Browser history counts overlapping tabs, so domain totals can overlap.")
	}
	return out
}

// JSON encodes the document with stable key order.
func (d *Document) JSON() ([]byte, error) {
	data, err := json.MarshalIndent(d, "", "  ")
	if err != nil {
		return nil, err
	}
	return append(data, '\n'), nil
}

// Markdown renders the document.
func (d *Document) Markdown() []byte {
	var b strings.Builder

	fmt.Fprintf(&b, "# Daily Activity Report: %s\n\n", d.Date)

	b.WriteString("## Summary\n\n")
	fmt.Fprintf(&b, "- Total tracked: %s\n", util.FormatDuration(d.TotalSeconds))
	fmt.Fprintf(&b, "- Apps: %s\n", util.FormatDuration(d.AppSeconds))
	fmt.Fprintf(&b, "- Web: %s\n", util.FormatDuration(d.DomainSeconds))
	fmt.Fprintf(&b, "- Productivity ratio (development + research): %s\n", util.FormatPercent(d.productiveSeconds(), d.TotalSeconds))
	fmt.Fprintf(&b, "- Most used app: %s\n", d.mostUsedApp())
	fmt.Fprintf(&b, "- Categories: %d\n\n", len(d.categories))

	b.WriteString("## Time by Category\n\n")
	if len(d.categories) == 0 {
		b.WriteString("_No activity recorded._\n\n")
	} else {
		b.WriteString("| Category | Time | Share |\n")
		b.WriteString("|---|---:|---:|\n")
		for _, c := range d.categories {
			secs := d.CategoryTotals[c]
			fmt.Fprintf(&b, "| %s | %s | %s |\n", escapeMarkdown(c), util.FormatDuration(secs), util.FormatPercent(secs, d.TotalSeconds))
		}
		b.WriteString("\n")
	}

	b.WriteString("## Top Subjects\n\n")
	writeSubjects(&b, d.TopSubjects, "_No activity recorded._", true)

	b.WriteString("## Top Apps\n\n")
	writeSubjects(&b, d.TopApps, "_No app activity._", false)

	b.WriteString("## Top Domains\n\n")
	writeSubjects(&b, d.TopDomains, "_No browsing data._", false)

	b.WriteString("## Anomalies\n\n")
	if len(d.Anomalies) == 0 {
		b.WriteString("_None detected._\n\n")
	} else {
		for _, a := range d.Anomalies {
			fmt.Fprintf(&b, "- **%s**: %s/day vs baseline %s/day (%s)\n",
				escapeMarkdown(a.Category),
				util.FormatDuration(int64(a.Observed)),
				util.FormatDuration(int64(a.Baseline)),
				util.FormatSignedRatio(a.DeviationRatio))
		}
		b.WriteString("\n")
	}

	b.WriteString("## Notes\n\n")
	if len(d.Notes) == 0 {
		b.WriteString("_None._\n")
	} else {
		for _, n := range d.Notes {
			fmt.Fprintf(&b, "- %s\n", n)
		}
	}
	return []byte(b.String())
}

func writeSubjects(b *strings.Builder, subjects []domain.SubjectTotal, empty string, withKind bool) {
	if len(subjects) == 0 {
		b.WriteString(empty + "\n\n")
		return
	}
	for i, s := range subjects {
		if withKind {
			fmt.Fprintf(b, "%d. %s (%s): %s\n", i+1, escapeMarkdown(s.Subject), s.SubjectKind, util.FormatDuration(s.DurationSeconds))
		} else {
			fmt.Fprintf(b, "%d. %s: %s\n", i+1, escapeMarkdown(s.Subject), util.FormatDuration(s.DurationSeconds))
		}
	}
	b.WriteString("\n")
}

func (d *Document) productiveSeconds() int64 {
	var secs int64
	for _, c := range productiveCategories {
		secs += d.CategoryTotals[c]
	}
	return secs
}

func (d *Document) mostUsedApp() string {
	if len(d.TopApps) == 0 {
		return "None"
	}
	app := d.TopApps[0]
	return fmt.Sprintf("%s (%s)", escapeMarkdown(app.Subject), util.FormatDuration(app.DurationSeconds))
}

var inlineEscaper = strings.NewReplacer(`\`, `\\`, "*", `\*`, "_", `\_`, "`", "\\`", "|", `\|`)

// escapeMarkdown escapes emphasis and table markers in names written into
// tables and lists. A leading '#' is escaped so it cannot start a heading.
func escapeMarkdown(s string) string {
	s = strings.ReplaceAll(s, "\n", " ")
	s = inlineEscaper.Replace(s)
	if strings.HasPrefix(s, "#") {
		s = `\` + s
	}
	return s
}
