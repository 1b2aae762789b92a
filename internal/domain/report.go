package domain

import "time"

// SubjectTotal is the summed duration of one subject over a range.
type SubjectTotal struct {
	Subject         string      `json:"subject"`
	SubjectKind     SubjectKind `json:"subject_kind"`
	DurationSeconds int64       `json:"duration_seconds"`
}

// Anomaly flags a category whose per-day usage deviates from its trailing baseline.
type Anomaly struct {
	Category       string  `json:"category"`
	Observed       float64 `json:"observed"`
	Baseline       float64 `json:"baseline"`
	DeviationRatio float64 `json:"deviation_ratio"`
}

// DailyReport is the metadata row of the current report for one calendar date.
type DailyReport struct {
	Date           Date             `json:"date"`
	GeneratedAt    time.Time        `json:"generated_at"`
	MarkdownPath   string           `json:"markdown_path"`
	JSONPath       string           `json:"json_path"`
	CategoryTotals map[string]int64 `json:"category_totals"`
	TopSubjects    []SubjectTotal   `json:"top_subjects"`
	Anomalies      []Anomaly        `json:"anomalies"`
}

// ReportSummary is the list view of a report.
type ReportSummary struct {
	Date         Date      `json:"date"`
	GeneratedAt  time.Time `json:"generated_at"`
	TotalSeconds int64     `json:"total_seconds"`
	MarkdownPath string    `json:"markdown_path"`
	JSONPath     string    `json:"json_path"`
}

// Summary returns the list view of r.
func (r *DailyReport) Summary() ReportSummary {
	var total int64
	for _, s := range r.CategoryTotals {
		total += s
	}
	return ReportSummary{
		Date:         r.Date,
		GeneratedAt:  r.GeneratedAt,
		TotalSeconds: total,
		MarkdownPath: r.MarkdownPath,
		JSONPath:     r.JSONPath,
	}
}
