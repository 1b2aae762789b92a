// Package templates holds the HTML components of the report pages.
package templates

import (
	"context"
	"fmt"
	"io"

	"github.com/a-h/templ"
)

const style = `body{font-family:-apple-system,system-ui,sans-serif;max-width:52rem;margin:2rem auto;padding:0 1rem;color:#1f2328}
table{border-collapse:collapse}th,td{padding:.25rem .75rem;border-bottom:1px solid #d0d7de}
nav a{margin-right:1rem}.muted{color:#656d76}`

// Layout wraps body in the page shell.
func Layout(title string, body templ.Component) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		if _, err := fmt.Fprintf(w, "<!DOCTYPE html><html lang=\"en\"><head><meta charset=\"utf-8\"><title>%s</title><style>%s</style></head><body>",
			esc(title), style); err != nil {
			return err
		}
		if err := body.Render(ctx, w); err != nil {
			return err
		}
		_, err := io.WriteString(w, "</body></html>")
		return err
	})
}

// ReportContent is the report body without the page shell, used for htmx swaps.
func ReportContent(p ReportPage) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		if _, err := io.WriteString(w, `<nav><a href="/api/v1/reports/html">All reports</a>`); err != nil {
			return err
		}
		if p.Prev != "" {
			fmt.Fprintf(w, `<a href="%s">&larr; %s</a>`, reportURL(p.Prev), esc(p.Prev))
		}
		if p.Next != "" {
			fmt.Fprintf(w, `<a href="%s">%s &rarr;</a>`, reportURL(p.Next), esc(p.Next))
		}
		fmt.Fprintf(w, `<a href="%s">Markdown</a><a href="%s">JSON</a></nav>`,
			downloadURL(p.Date, "markdown"), downloadURL(p.Date, "json"))
		fmt.Fprintf(w, `<p class="muted">Generated %s &middot; %s tracked</p>`, esc(p.GeneratedAt), esc(p.TotalTracked))
		return templ.Raw(string(p.Body)).Render(ctx, w)
	})
}

// Report is the full report page.
func Report(p ReportPage) templ.Component {
	return Layout("Activity report "+p.Date, ReportContent(p))
}

// ReportList is the index of generated reports.
func ReportList(items []ReportListItem) templ.Component {
	body := templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		if _, err := io.WriteString(w, "<h1>Daily reports</h1>"); err != nil {
			return err
		}
		if len(items) == 0 {
			_, err := io.WriteString(w, `<p class="muted">No reports generated yet.</p>`)
			return err
		}
		io.WriteString(w, "<table><thead><tr><th>Date</th><th>Tracked</th><th>Generated</th></tr></thead><tbody>")
		for _, it := range items {
			fmt.Fprintf(w, `<tr><td><a href="%s">%s</a></td><td>%s</td><td class="muted">%s</td></tr>`,
				reportURL(it.Date), esc(it.Date), esc(it.TotalTracked), esc(it.GeneratedAt))
		}
		_, err := io.WriteString(w, "</tbody></table>")
		return err
	})
	return Layout("Daily reports", body)
}
