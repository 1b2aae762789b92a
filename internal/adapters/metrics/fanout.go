// Package metrics combines several exporters behind one ports.MetricsExporter.
package metrics

import (
	"context"
	"errors"
	"time"

	"github.com/emiliopalmerini/mtrack/internal/domain"
	"github.com/emiliopalmerini/mtrack/internal/ports"
)

// Fanout forwards every call to each exporter in order.
type Fanout struct {
	exporters []ports.MetricsExporter
}

func NewFanout(exporters ...ports.MetricsExporter) *Fanout {
	var list []ports.MetricsExporter
	for _, e := range exporters {
		if e != nil {
			list = append(list, e)
		}
	}
	return &Fanout{exporters: list}
}

func (f *Fanout) RecordActivity(ctx context.Context, kind domain.SubjectKind, durationSeconds int64) {
	for _, e := range f.exporters {
		e.RecordActivity(ctx, kind, durationSeconds)
	}
}

func (f *Fanout) RecordPrune(ctx context.Context, deleted int64) {
	for _, e := range f.exporters {
		e.RecordPrune(ctx, deleted)
	}
}

func (f *Fanout) ExportReportMetrics(ctx context.Context, m *ports.ReportMetrics) error {
	var errs []error
	for _, e := range f.exporters {
		if err := e.ExportReportMetrics(ctx, m); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (f *Fanout) RecordSchedulerRun(ctx context.Context, success bool, duration time.Duration) {
	for _, e := range f.exporters {
		e.RecordSchedulerRun(ctx, success, duration)
	}
}

func (f *Fanout) Close(ctx context.Context) error {
	var errs []error
	for _, e := range f.exporters {
		if err := e.Close(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
