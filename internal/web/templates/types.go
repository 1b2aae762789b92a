package templates

import "html/template"

// ReportPage is the HTML view of one daily report.
type ReportPage struct {
	Date         string
	GeneratedAt  string
	TotalTracked string
	Body         template.HTML
	Prev         string
	Next         string
}

// ReportListItem is one row of the report index page.
type ReportListItem struct {
	Date         string
	GeneratedAt  string
	TotalTracked string
}
