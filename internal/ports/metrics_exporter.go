package ports

import (
	"context"
	"time"

	"github.com/emiliopalmerini/mtrack/internal/domain"
)

// MetricsExporter publishes daemon metrics to an observability backend.
type MetricsExporter interface {
	// RecordActivity counts one appended record.
	RecordActivity(ctx context.Context, kind domain.SubjectKind, durationSeconds int64)
	// RecordPrune counts records removed by retention.
	RecordPrune(ctx context.Context, deleted int64)
	// ExportReportMetrics publishes the totals of a generated report.
	ExportReportMetrics(ctx context.Context, m *ReportMetrics) error
	// RecordSchedulerRun records the outcome of one scheduled generation.
	RecordSchedulerRun(ctx context.Context, success bool, duration time.Duration)
	// Close shuts down the exporter and flushes any pending metrics.
	Close(ctx context.Context) error
}

// ReportMetrics is the metric view of one generated report.
type ReportMetrics struct {
	Date           domain.Date
	TotalSeconds   int64
	CategoryTotals map[string]int64
	AnomalyCount   int
	Duration       time.Duration
}
