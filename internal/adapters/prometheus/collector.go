package prometheus

import (
	"context"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/emiliopalmerini/mtrack/internal/domain"
	"github.com/emiliopalmerini/mtrack/internal/ports"
)

const namespace = "mtrack"

// Collector exposes daemon metrics for scraping on /metrics.
type Collector struct {
	registry        *prometheus.Registry
	activityRecords *prometheus.CounterVec
	activitySeconds *prometheus.CounterVec
	pruned          prometheus.Counter
	categorySeconds *prometheus.GaugeVec
	reportTotal     prometheus.Gauge
	anomalies       prometheus.Gauge
	lastReport      prometheus.Gauge
	generateSeconds prometheus.Histogram
	schedulerRuns   *prometheus.CounterVec
	lastSchedulerOK prometheus.Gauge
}

// NewCollector registers the collectors on a private registry, plus Go runtime metrics.
func NewCollector() *Collector {
	c := &Collector{
		registry: prometheus.NewRegistry(),
		activityRecords: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "activity",
			Name:      "records_total",
			Help:      "Activity records appended to the store.",
		}, []string{"subject_kind"}),
		activitySeconds: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "activity",
			Name:      "seconds_total",
			Help:      "Tracked activity duration in seconds.",
		}, []string{"subject_kind"}),
		pruned: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "retention",
			Name:      "pruned_records_total",
			Help:      "Records removed by retention pruning.",
		}),
		categorySeconds: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "report",
			Name:      "category_seconds",
			Help:      "Per-category totals of the most recently generated report.",
		}, []string{"category"}),
		reportTotal: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "report",
			Name:      "total_seconds",
			Help:      "Total tracked seconds of the most recently generated report.",
		}),
		anomalies: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "report",
			Name:      "anomalies",
			Help:      "Anomalies flagged in the most recently generated report.",
		}),
		lastReport: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "report",
			Name:      "last_generated_timestamp_seconds",
			Help:      "Unix timestamp of the most recent report generation.",
		}),
		generateSeconds: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "report",
			Name:      "generate_duration_seconds",
			Help:      "Report generation latency.",
			Buckets:   prometheus.DefBuckets,
		}),
		schedulerRuns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "scheduler",
			Name:      "runs_total",
			Help:      "Scheduled report runs by outcome.",
		}, []string{"outcome"}),
		lastSchedulerOK: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "scheduler",
			Name:      "last_success_timestamp_seconds",
			Help:      "Unix timestamp of the last successful scheduled run.",
		}),
	}

	c.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		c.activityRecords,
		c.activitySeconds,
		c.pruned,
		c.categorySeconds,
		c.reportTotal,
		c.anomalies,
		c.lastReport,
		c.generateSeconds,
		c.schedulerRuns,
		c.lastSchedulerOK,
	)
	return c
}

// Handler serves the registry in the Prometheus exposition format.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{Registry: c.registry})
}

// Registry exposes the underlying registry for tests.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

func (c *Collector) RecordActivity(ctx context.Context, kind domain.SubjectKind, durationSeconds int64) {
	c.activityRecords.WithLabelValues(string(kind)).Inc()
	c.activitySeconds.WithLabelValues(string(kind)).Add(float64(durationSeconds))
}

func (c *Collector) RecordPrune(ctx context.Context, deleted int64) {
	c.pruned.Add(float64(deleted))
}

func (c *Collector) ExportReportMetrics(ctx context.Context, m *ports.ReportMetrics) error {
	c.categorySeconds.Reset()
	for category, seconds := range m.CategoryTotals {
		c.categorySeconds.WithLabelValues(category).Set(float64(seconds))
	}
	c.reportTotal.Set(float64(m.TotalSeconds))
	c.anomalies.Set(float64(m.AnomalyCount))
	c.lastReport.SetToCurrentTime()
	c.generateSeconds.Observe(m.Duration.Seconds())
	return nil
}

func (c *Collector) RecordSchedulerRun(ctx context.Context, success bool, duration time.Duration) {
	outcome := "failure"
	if success {
		outcome = "success"
		c.lastSchedulerOK.SetToCurrentTime()
	}
	c.schedulerRuns.WithLabelValues(outcome).Inc()
}

func (c *Collector) Close(ctx context.Context) error {
	return nil
}
