package otel

import (
	"context"
	"time"

	"github.com/emiliopalmerini/mtrack/internal/domain"
	"github.com/emiliopalmerini/mtrack/internal/ports"
)

// NoOpExporter is a metrics exporter that does nothing.
type NoOpExporter struct{}

// NewNoOpExporter creates a new no-op exporter for graceful degradation.
func NewNoOpExporter() *NoOpExporter {
	return &NoOpExporter{}
}

func (e *NoOpExporter) RecordActivity(ctx context.Context, kind domain.SubjectKind, durationSeconds int64) {
}

func (e *NoOpExporter) RecordPrune(ctx context.Context, deleted int64) {}

func (e *NoOpExporter) ExportReportMetrics(ctx context.Context, m *ports.ReportMetrics) error {
	return nil
}

func (e *NoOpExporter) RecordSchedulerRun(ctx context.Context, success bool, duration time.Duration) {
}

func (e *NoOpExporter) Close(ctx context.Context) error {
	return nil
}
