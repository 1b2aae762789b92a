package prometheus

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/emiliopalmerini/mtrack/internal/domain"
	"github.com/emiliopalmerini/mtrack/internal/ports"
)

func TestCollector_RecordActivity(t *testing.T) {
	c := NewCollector()
	ctx := context.Background()

	c.RecordActivity(ctx, domain.SubjectApp, 300)
	c.RecordActivity(ctx, domain.SubjectApp, 300)
	c.RecordActivity(ctx, domain.SubjectDomain, 600)

	assert.Equal(t, 2.0, testutil.ToFloat64(c.activityRecords.WithLabelValues("app")))
	assert.Equal(t, 600.0, testutil.ToFloat64(c.activitySeconds.WithLabelValues("app")))
	assert.Equal(t, 600.0, testutil.ToFloat64(c.activitySeconds.WithLabelValues("domain")))
}

func TestCollector_ExportReportMetricsReplacesCategories(t *testing.T) {
	c := NewCollector()
	ctx := context.Background()

	require.NoError(t, c.ExportReportMetrics(ctx, &ports.ReportMetrics{
		CategoryTotals: map[string]int64{"development": 13500, "reading": 600},
		TotalSeconds:   14100,
		AnomalyCount:   1,
		Duration:       20 * time.Millisecond,
	}))
	require.NoError(t, c.ExportReportMetrics(ctx, &ports.ReportMetrics{
		CategoryTotals: map[string]int64{"development": 100},
		TotalSeconds:   100,
	}))

	assert.Equal(t, 1, testutil.CollectAndCount(c.categorySeconds))
	assert.Equal(t, 100.0, testutil.ToFloat64(c.reportTotal))
	assert.Equal(t, 0.0, testutil.ToFloat64(c.anomalies))
}

func TestCollector_SchedulerAndPrune(t *testing.T) {
	c := NewCollector()
	ctx := context.Background()

	c.RecordSchedulerRun(ctx, true, time.Second)
	c.RecordSchedulerRun(ctx, false, time.Second)
	c.RecordSchedulerRun(ctx, false, time.Second)
	c.RecordPrune(ctx, 7)

	assert.Equal(t, 1.0, testutil.ToFloat64(c.schedulerRuns.WithLabelValues("success")))
	assert.Equal(t, 2.0, testutil.ToFloat64(c.schedulerRuns.WithLabelValues("failure")))
	assert.Equal(t, 7.0, testutil.ToFloat64(c.pruned))
	assert.Greater(t, testutil.ToFloat64(c.lastSchedulerOK), 0.0)
}

func TestCollector_Handler(t *testing.T) {
	c := NewCollector()
	c.RecordActivity(context.Background(), domain.SubjectApp, 300)

	rec := httptest.NewRecorder()
	c.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, strings.Contains(rec.Body.String(), `mtrack_activity_records_total{subject_kind="app"} 1`))
}
