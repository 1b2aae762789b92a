package otel

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	semconv "go.opentelemetry.io/otel/semconv/v1.24.0"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/emiliopalmerini/mtrack/internal/domain"
	"github.com/emiliopalmerini/mtrack/internal/ports"
)

const (
	serviceName    = "mtrack"
	serviceVersion = "1.0.0"
)

// Exporter exports daemon metrics to an OTEL Collector.
type Exporter struct {
	provider        *sdkmetric.MeterProvider
	activitySeconds metric.Int64Counter
	activityRecords metric.Int64Counter
	pruned          metric.Int64Counter
	categorySeconds metric.Int64Counter
	reportsTotal    metric.Int64Counter
	anomaliesTotal  metric.Int64Counter
	generateHist    metric.Float64Histogram
	schedulerRuns   metric.Int64Counter
}

// NewExporter creates a new OTEL metrics exporter.
func NewExporter(ctx context.Context, cfg Config) (*Exporter, error) {
	if !cfg.Enabled || cfg.Endpoint == "" {
		return nil, fmt.Errorf("OTEL exporter is disabled or endpoint not configured")
	}

	opts := []otlpmetricgrpc.Option{
		otlpmetricgrpc.WithEndpoint(cfg.Endpoint),
	}
	if cfg.Insecure {
		opts = append(opts, otlpmetricgrpc.WithDialOption(grpc.WithTransportCredentials(insecure.NewCredentials())))
		opts = append(opts, otlpmetricgrpc.WithInsecure())
	}

	exp, err := otlpmetricgrpc.New(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("creating OTLP exporter: %w", err)
	}

	res, err := resource.New(ctx,
		resource.WithAttributes(
			semconv.ServiceName(serviceName),
			semconv.ServiceVersion(serviceVersion),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("creating resource: %w", err)
	}

	provider := sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(sdkmetric.NewPeriodicReader(exp)),
		sdkmetric.WithResource(res),
	)
	otel.SetMeterProvider(provider)

	e := &Exporter{provider: provider}
	if err := e.register(provider.Meter(serviceName)); err != nil {
		_ = provider.Shutdown(ctx)
		return nil, err
	}
	return e, nil
}

func (e *Exporter) register(meter metric.Meter) error {
	var err error
	counters := []struct {
		dst  *metric.Int64Counter
		name string
		desc string
		unit string
	}{
		{&e.activitySeconds, "mtrack_activity_seconds_total", "Tracked activity duration", "s"},
		{&e.activityRecords, "mtrack_activity_records_total", "Appended activity records", "{record}"},
		{&e.pruned, "mtrack_pruned_records_total", "Records removed by retention", "{record}"},
		{&e.categorySeconds, "mtrack_report_category_seconds_total", "Category totals of generated reports", "s"},
		{&e.reportsTotal, "mtrack_reports_generated_total", "Generated daily reports", "{report}"},
		{&e.anomaliesTotal, "mtrack_report_anomalies_total", "Anomalies flagged in generated reports", "{anomaly}"},
		{&e.schedulerRuns, "mtrack_scheduler_runs_total", "Scheduled report runs", "{run}"},
	}
	for _, c := range counters {
		*c.dst, err = meter.Int64Counter(c.name, metric.WithDescription(c.desc), metric.WithUnit(c.unit))
		if err != nil {
			return fmt.Errorf("creating %s counter: %w", c.name, err)
		}
	}

	e.generateHist, err = meter.Float64Histogram(
		"mtrack_report_generate_seconds",
		metric.WithDescription("Report generation latency"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return fmt.Errorf("creating generate histogram: %w", err)
	}
	return nil
}

func (e *Exporter) RecordActivity(ctx context.Context, kind domain.SubjectKind, durationSeconds int64) {
	opt := metric.WithAttributes(attribute.String("subject_kind", string(kind)))
	e.activityRecords.Add(ctx, 1, opt)
	e.activitySeconds.Add(ctx, durationSeconds, opt)
}

func (e *Exporter) RecordPrune(ctx context.Context, deleted int64) {
	e.pruned.Add(ctx, deleted)
}

// ExportReportMetrics exports the totals of a generated report.
func (e *Exporter) ExportReportMetrics(ctx context.Context, m *ports.ReportMetrics) error {
	date := attribute.String("date", m.Date.String())
	for category, seconds := range m.CategoryTotals {
		e.categorySeconds.Add(ctx, seconds, metric.WithAttributes(date, attribute.String("category", category)))
	}
	e.reportsTotal.Add(ctx, 1)
	e.anomaliesTotal.Add(ctx, int64(m.AnomalyCount), metric.WithAttributes(date))
	e.generateHist.Record(ctx, m.Duration.Seconds())
	return nil
}

func (e *Exporter) RecordSchedulerRun(ctx context.Context, success bool, duration time.Duration) {
	e.schedulerRuns.Add(ctx, 1, metric.WithAttributes(attribute.Bool("success", success)))
}

// Close shuts down the exporter and flushes any pending metrics.
func (e *Exporter) Close(ctx context.Context) error {
	return e.provider.Shutdown(ctx)
}
