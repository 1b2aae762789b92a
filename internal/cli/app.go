package cli

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/emiliopalmerini/mtrack/internal/activity"
	"github.com/emiliopalmerini/mtrack/internal/adapters/metrics"
	"github.com/emiliopalmerini/mtrack/internal/adapters/otel"
	"github.com/emiliopalmerini/mtrack/internal/adapters/prometheus"
	"github.com/emiliopalmerini/mtrack/internal/adapters/storage"
	"github.com/emiliopalmerini/mtrack/internal/adapters/turso"
	"github.com/emiliopalmerini/mtrack/internal/aggregate"
	"github.com/emiliopalmerini/mtrack/internal/category"
	"github.com/emiliopalmerini/mtrack/internal/config"
	"github.com/emiliopalmerini/mtrack/internal/migrate"
	"github.com/emiliopalmerini/mtrack/internal/ports"
	"github.com/emiliopalmerini/mtrack/internal/query"
	"github.com/emiliopalmerini/mtrack/internal/report"
)

// AppContext holds all shared dependencies for CLI commands.
type AppContext struct {
	Env      *config.Env
	Log      *slog.Logger
	Location *time.Location

	DB       *sql.DB
	Repos    *turso.Repositories
	Settings *config.Store

	Rules      *category.Engine
	Activities *activity.Store
	Artifacts  *storage.ReportStorage
	Generator  *report.Generator

	Prometheus *prometheus.Collector
	Metrics    ports.MetricsExporter
}

// NewAppContext opens the database, applies pending migrations and wires the
// activity store, category engine and report generator.
func NewAppContext(ctx context.Context, env *config.Env, log *slog.Logger) (*AppContext, error) {
	loc, err := env.Location()
	if err != nil {
		return nil, err
	}

	db, err := turso.NewDB(ctx, env.DBPath)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	a := &AppContext{Env: env, Log: log, Location: loc, DB: db}

	if err := migrate.RunAll(ctx, db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	a.Repos = turso.NewRepositories(db)

	a.Settings, err = config.OpenStore(env.ConfigPath, config.DefaultSettings(env.DefaultReportDir()), log)
	if err != nil {
		_ = db.Close()
		return nil, err
	}

	a.Prometheus = prometheus.NewCollector()
	a.Metrics = metrics.NewFanout(a.Prometheus, newOTELExporter(ctx, env.OTEL, log))

	a.Rules, err = category.NewEngine(ctx, a.Repos.Rules, log)
	if err != nil {
		_ = a.Close()
		return nil, err
	}
	a.Activities = activity.NewStore(a.Repos.Activities, a.Rules, loc, log, activity.WithMetrics(a.Metrics))

	a.Artifacts, err = storage.NewReportStorage(a.Settings.Current().Settings.ReportDir)
	if err != nil {
		_ = a.Close()
		return nil, err
	}
	a.Generator = report.NewGenerator(aggregate.New(a.Activities), a.Artifacts, a.Repos.Reports, a.Settings, log,
		report.WithTimeout(env.GenerateTimeout),
		report.WithMetrics(a.Metrics),
	)
	return a, nil
}

// newOTELExporter falls back to a no-op exporter when OTEL is disabled or unreachable.
func newOTELExporter(ctx context.Context, cfg otel.Config, log *slog.Logger) ports.MetricsExporter {
	if !cfg.Enabled {
		return otel.NewNoOpExporter()
	}
	exp, err := otel.NewExporter(ctx, cfg)
	if err != nil {
		log.Warn("otel exporter disabled", "endpoint", cfg.Endpoint, "err", err)
		return otel.NewNoOpExporter()
	}
	return exp
}

// Service returns the read/write facade used by the API and the CLI.
func (a *AppContext) Service(schedule query.ScheduleSource) *query.Service {
	return query.NewService(a.Activities, a.Rules, a.Repos.Reports, a.Artifacts, a.Generator, a.Settings, schedule)
}

// Close flushes metrics and releases the database.
func (a *AppContext) Close() error {
	var errs []error
	if a.Metrics != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		errs = append(errs, a.Metrics.Close(ctx))
		cancel()
	}
	if a.DB != nil {
		errs = append(errs, a.DB.Close())
	}
	return errors.Join(errs...)
}
