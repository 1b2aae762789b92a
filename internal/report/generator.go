// Package report renders and persists the daily report of one date.
package report

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/emiliopalmerini/mtrack/internal/aggregate"
	"github.com/emiliopalmerini/mtrack/internal/config"
	"github.com/emiliopalmerini/mtrack/internal/domain"
	"github.com/emiliopalmerini/mtrack/internal/ports"
)

// DefaultTimeout bounds one generation when none is configured.
const DefaultTimeout = 30 * time.Second

// Aggregator computes the aggregate a report is rendered from.
type Aggregator interface {
	Aggregate(ctx context.Context, r domain.DateRange, opts aggregate.Options) (*aggregate.Result, error)
}

// SettingsSource supplies the current runtime settings.
type SettingsSource interface {
	Current() *config.Snapshot
}

type dirSetter interface {
	Dir() string
	SetDir(dir string) error
}

type Generator struct {
	agg      Aggregator
	storage  ports.ReportStorage
	reports  ports.ReportRepository
	settings SettingsSource
	metrics  ports.MetricsExporter
	timeout  time.Duration
	now      func() time.Time
	log      *slog.Logger

	locks dateLocks
}

type Option func(*Generator)

func WithTimeout(d time.Duration) Option {
	return func(g *Generator) {
		if d > 0 {
			g.timeout = d
		}
	}
}

func WithMetrics(m ports.MetricsExporter) Option {
	return func(g *Generator) { g.metrics = m }
}

func WithClock(now func() time.Time) Option {
	return func(g *Generator) { g.now = now }
}

func NewGenerator(agg Aggregator, storage ports.ReportStorage, reports ports.ReportRepository, settings SettingsSource, log *slog.Logger, opts ...Option) *Generator {
	g := &Generator{
		agg:      agg,
		storage:  storage,
		reports:  reports,
		settings: settings,
		timeout:  DefaultTimeout,
		now:      time.Now,
		log:      log,
	}
	for _, opt := range opts {
		opt(g)
	}
	if g.log == nil {
		g.log = slog.Default()
	}
	return g
}

// Generate renders the report of date and replaces any previous version.
// Generation of the same date is serialized. Both artifacts and the metadata
// row are written, or none of them.
func (g *Generator) Generate(ctx context.Context, date domain.Date) (*domain.DailyReport, error) {
	unlock := g.locks.lock(date)
	defer unlock()

	start := g.now()
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	settings := g.settings.Current().Settings
	if err := g.syncDir(settings.ReportDir); err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrGenerationFailed, err)
	}

	res, err := g.agg.Aggregate(ctx, domain.DateRange{From: date, To: date}, aggregate.Options{
		TopN:         settings.TopN,
		BaselineDays: settings.BaselineDays,
		Threshold:    settings.AnomalyThreshold,
	})
	if err != nil {
		return nil, storeError(date, err)
	}

	doc := newDocument(date, res)
	jsonData, err := doc.JSON()
	if err != nil {
		return nil, fmt.Errorf("%w: encoding %s: %w", domain.ErrGenerationFailed, date, err)
	}

	commit, err := g.storage.Write(ctx, date, doc.Markdown(), jsonData)
	if err != nil {
		if ctx.Err() != nil {
			return nil, storeError(date, ctx.Err())
		}
		return nil, fmt.Errorf("%w: writing %s: %w", domain.ErrGenerationFailed, date, err)
	}

	report := &domain.DailyReport{
		Date:           date,
		GeneratedAt:    g.now().UTC().Truncate(time.Second),
		MarkdownPath:   g.storage.Path(date, ports.FormatMarkdown),
		JSONPath:       g.storage.Path(date, ports.FormatJSON),
		CategoryTotals: res.CategoryTotals,
		TopSubjects:    res.TopSubjects,
		Anomalies:      res.Anomalies,
	}
	if err := g.reports.Upsert(ctx, report); err != nil {
		if rerr := commit.Revert(); rerr != nil {
			g.log.Error("failed to restore previous report artifacts", "date", date.String(), "err", rerr)
		}
		return nil, fmt.Errorf("%w: saving report %s: %w", domain.ErrStoreUnavailable, date, err)
	}
	if err := commit.Finish(); err != nil {
		g.log.Warn("failed to remove report backups", "date", date.String(), "err", err)
	}

	elapsed := g.now().Sub(start)
	if g.metrics != nil {
		if err := g.metrics.ExportReportMetrics(ctx, &ports.ReportMetrics{
			Date:           date,
			TotalSeconds:   res.TotalSeconds,
			CategoryTotals: res.CategoryTotals,
			AnomalyCount:   len(res.Anomalies),
			Duration:       elapsed,
		}); err != nil {
			g.log.Warn("failed to export report metrics", "date", date.String(), "err", err)
		}
	}

	g.log.Info("report generated",
		"date", date.String(),
		"total_seconds", res.TotalSeconds,
		"anomalies", len(res.Anomalies),
		"duration", elapsed)
	return report, nil
}

func (g *Generator) syncDir(dir string) error {
	ds, ok := g.storage.(dirSetter)
	if !ok || dir == "" || ds.Dir() == dir {
		return nil
	}
	return ds.SetDir(dir)
}

// storeError maps a failure to read the activity log to ErrStoreUnavailable.
func storeError(date domain.Date, err error) error {
	switch {
	case errors.Is(err, domain.ErrInvalidRange), errors.Is(err, domain.ErrStoreUnavailable):
		return fmt.Errorf("report %s: %w", date, err)
	case errors.Is(err, context.DeadlineExceeded):
		return fmt.Errorf("%w: report %s timed out: %w", domain.ErrStoreUnavailable, date, err)
	default:
		return fmt.Errorf("%w: report %s: %w", domain.ErrStoreUnavailable, date, err)
	}
}
