package query_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/emiliopalmerini/mtrack/internal/activity"
	"github.com/emiliopalmerini/mtrack/internal/adapters/storage"
	"github.com/emiliopalmerini/mtrack/internal/adapters/turso"
	"github.com/emiliopalmerini/mtrack/internal/aggregate"
	"github.com/emiliopalmerini/mtrack/internal/category"
	"github.com/emiliopalmerini/mtrack/internal/config"
	"github.com/emiliopalmerini/mtrack/internal/domain"
	"github.com/emiliopalmerini/mtrack/internal/migrate"
	"github.com/emiliopalmerini/mtrack/internal/ports"
	"github.com/emiliopalmerini/mtrack/internal/query"
	"github.com/emiliopalmerini/mtrack/internal/report"
	"github.com/emiliopalmerini/mtrack/internal/scheduler"
)

var (
	quiet = slog.New(slog.NewTextHandler(io.Discard, nil))
	now   = time.Date(2026, 2, 18, 15, 0, 0, 0, time.UTC)
	today = domain.NewDate(2026, 2, 18)
)

type stubSchedule struct {
	status scheduler.Status
}

func (s stubSchedule) Status() scheduler.Status { return s.status }

type fixture struct {
	svc       *query.Service
	store     *activity.Store
	settings  *config.Store
	artifacts *storage.ReportStorage
}

func newService(t *testing.T, schedule query.ScheduleSource) (*query.Service, *activity.Store) {
	t.Helper()
	f := newFixture(t, schedule)
	return f.svc, f.store
}

func newFixture(t *testing.T, schedule query.ScheduleSource) *fixture {
	t.Helper()
	ctx := context.Background()
	tmp := t.TempDir()

	db, err := turso.NewDB(ctx, filepath.Join(tmp, "activity.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	require.NoError(t, migrate.RunAll(ctx, db))
	repos := turso.NewRepositories(db)

	engine, err := category.NewEngine(ctx, repos.Rules, quiet)
	require.NoError(t, err)
	store := activity.NewStore(repos.Activities, engine, time.UTC, quiet, activity.WithClock(func() time.Time { return now }))

	dir := filepath.Join(tmp, "reports")
	artifacts, err := storage.NewReportStorage(dir)
	require.NoError(t, err)
	settings, err := config.OpenStore(filepath.Join(tmp, "config.json"), config.DefaultSettings(dir), quiet)
	require.NoError(t, err)
	gen := report.NewGenerator(aggregate.New(store), artifacts, repos.Reports, settings, quiet)

	return &fixture{
		svc:       query.NewService(store, engine, repos.Reports, artifacts, gen, settings, schedule),
		store:     store,
		settings:  settings,
		artifacts: artifacts,
	}
}

func TestService_ReportsNotFoundBeforeGeneration(t *testing.T) {
	svc, _ := newService(t, nil)
	ctx := context.Background()

	_, err := svc.LatestReport(ctx)
	assert.True(t, errors.Is(err, domain.ErrNotFound))
	_, err = svc.Report(ctx, today)
	assert.True(t, errors.Is(err, domain.ErrNotFound))
	_, err = svc.Artifact(ctx, today, ports.FormatMarkdown)
	assert.True(t, errors.Is(err, domain.ErrNotFound))

	list, err := svc.Reports(ctx, 0)
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestService_GenerateAndRead(t *testing.T) {
	svc, _ := newService(t, nil)
	ctx := context.Background()

	_, err := svc.AppendActivity(ctx, domain.ActivityRecord{
		Timestamp:       now.Add(-time.Hour),
		Subject:         "Xcode",
		SubjectKind:     domain.SubjectApp,
		DurationSeconds: 300,
	})
	require.NoError(t, err)
	_, err = svc.ReplaceDomainVisits(ctx, today, []domain.DomainVisit{{Domain: "www.github.com", DurationSeconds: 120}})
	require.NoError(t, err)

	for _, d := range []domain.Date{today.AddDays(-1), today} {
		_, err := svc.GenerateReport(ctx, d)
		require.NoError(t, err)
	}

	latest, err := svc.LatestReport(ctx)
	require.NoError(t, err)
	assert.Equal(t, today, latest.Date)
	assert.Equal(t, int64(420), latest.CategoryTotals["development"])

	list, err := svc.Reports(ctx, 1)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, int64(420), list[0].TotalSeconds)

	md, err := svc.Artifact(ctx, today, ports.FormatMarkdown)
	require.NoError(t, err)
	assert.Contains(t, string(md), "github.com")
}

func TestService_ArtifactSurvivesReportDirChange(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	_, err := f.svc.AppendActivity(ctx, domain.ActivityRecord{
		Timestamp:       now.Add(-24 * time.Hour),
		Subject:         "Xcode",
		SubjectKind:     domain.SubjectApp,
		DurationSeconds: 300,
	})
	require.NoError(t, err)
	old, err := f.svc.GenerateReport(ctx, today.AddDays(-1))
	require.NoError(t, err)

	newDir := filepath.Join(t.TempDir(), "moved")
	_, err = f.settings.Set("report_dir", newDir)
	require.NoError(t, err)
	_, err = f.svc.GenerateReport(ctx, today)
	require.NoError(t, err)
	require.Equal(t, newDir, f.artifacts.Dir())

	md, err := f.svc.Artifact(ctx, today.AddDays(-1), ports.FormatMarkdown)
	require.NoError(t, err)
	assert.Contains(t, string(md), "Xcode")
	js, err := f.svc.Artifact(ctx, today.AddDays(-1), ports.FormatJSON)
	require.NoError(t, err)
	assert.Contains(t, string(js), `"total_seconds": 300`)
	assert.NotEqual(t, newDir, filepath.Dir(old.MarkdownPath))

	_, err = f.svc.Artifact(ctx, today, ports.FormatMarkdown)
	require.NoError(t, err)
}

func TestClampLimit(t *testing.T) {
	tests := []struct {
		in, want int
	}{
		{0, 7},
		{-3, 7},
		{1, 1},
		{30, 30},
		{90, 90},
		{500, 90},
	}
	for _, tt := range tests {
		if got := query.ClampLimit(tt.in); got != tt.want {
			t.Errorf("ClampLimit(%d) = %d, want %d", tt.in, got, tt.want)
		}
	}
}

func TestService_SetReportTime(t *testing.T) {
	svc, _ := newService(t, nil)

	tests := []struct {
		in       string
		wantTime string
		wantCron string
	}{
		{"23:30", "23:30", "30 23 * * *"},
		{"00:05", "00:05", "5 0 * * *"},
		{"7:45", "07:45", "45 7 * * *"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			view, err := svc.SetReportTime(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.wantTime, view.ReportTime)
			assert.Equal(t, tt.wantCron, view.CronExpression)

			got, err := svc.Schedule()
			require.NoError(t, err)
			assert.Equal(t, tt.wantCron, got.CronExpression)
			require.NotNil(t, got.NextFireAt)
			assert.True(t, got.NextFireAt.After(now))
		})
	}

	_, err := svc.SetReportTime("24:00")
	assert.True(t, errors.Is(err, domain.ErrScheduleMisconfigured))
	got, err := svc.Schedule()
	require.NoError(t, err)
	assert.Equal(t, "07:45", got.ReportTime)
}

func TestService_Status(t *testing.T) {
	t.Run("collector alive without scheduler", func(t *testing.T) {
		svc, store := newService(t, nil)
		ctx := context.Background()
		_, err := store.RecordAppSample(ctx, now.Add(-4*time.Minute), "Terminal", nil)
		require.NoError(t, err)

		st, err := svc.Status(ctx)
		require.NoError(t, err)
		assert.Equal(t, "ok", st.Status)
		assert.True(t, st.Collector.Alive)
		assert.Equal(t, "Terminal", st.Collector.LastSubject)
		assert.Nil(t, st.Scheduler)
		assert.Equal(t, "UTC", st.Timezone)
	})

	t.Run("stale collector and stopped scheduler", func(t *testing.T) {
		svc, store := newService(t, stubSchedule{status: scheduler.Status{Running: false}})
		ctx := context.Background()
		_, err := store.RecordAppSample(ctx, now.Add(-3*time.Hour), "Terminal", nil)
		require.NoError(t, err)

		st, err := svc.Status(ctx)
		require.NoError(t, err)
		assert.Equal(t, "degraded", st.Status)
		assert.False(t, st.Collector.Alive)
		require.NotNil(t, st.Scheduler)
	})
}

func TestService_Categories(t *testing.T) {
	svc, store := newService(t, nil)
	ctx := context.Background()

	_, err := store.RecordAppSample(ctx, now, "Figma", nil)
	require.NoError(t, err)

	rules, err := svc.ReplaceCategories(ctx, []domain.CategoryRule{{Pattern: "Figma", SubjectKind: "app", Category: "Design"}})
	require.NoError(t, err)
	assert.Equal(t, "design", rules.Rules[0].Category)
	assert.Equal(t, rules, svc.Categories())

	records, err := svc.Activities(ctx, domain.DateRange{From: today, To: today}, domain.ActivityFilter{Category: "design"})
	require.NoError(t, err)
	assert.Len(t, records, 1)

	n, err := svc.Recategorize(ctx, domain.DateRange{From: today, To: today})
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	_, err = svc.Recategorize(ctx, domain.DateRange{From: today, To: today.AddDays(-2)})
	assert.True(t, errors.Is(err, domain.ErrInvalidRange))
}
