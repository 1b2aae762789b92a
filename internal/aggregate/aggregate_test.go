package aggregate_test

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
	"github.com/emiliopalmerini/mtrack/internal/adapters/turso"
	"github.com/emiliopalmerini/mtrack/internal/aggregate"
	"github.com/emiliopalmerini/mtrack/internal/domain"
	"github.com/emiliopalmerini/mtrack/internal/migrate"
)

var day = domain.NewDate(2026, 2, 18)

func newStore(t *testing.T, rules []domain.CategoryRule) *activity.Store {
	t.Helper()
	ctx := context.Background()
	db, err := turso.NewDB(ctx, filepath.Join(t.TempDir(), "activity.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	require.NoError(t, migrate.RunAll(ctx, db))

	set, err := domain.NewRuleSet(1, rules)
	require.NoError(t, err)
	return activity.NewStore(turso.NewActivityRepository(db), set, time.UTC, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func appendN(t *testing.T, s *activity.Store, d domain.Date, subject string, kind domain.SubjectKind, secs int64, n int) {
	t.Helper()
	for i := 0; i < n; i++ {
		_, err := s.Append(context.Background(), domain.ActivityRecord{
			Timestamp:       d.Start(time.UTC).Add(time.Duration(i) * 5 * time.Minute),
			Subject:         subject,
			SubjectKind:     kind,
			DurationSeconds: secs,
		})
		require.NoError(t, err)
	}
}

func TestAggregate_EndToEnd(t *testing.T) {
	s := newStore(t, []domain.CategoryRule{
		{Pattern: "Xcode", SubjectKind: domain.RuleApp, Category: "development"},
		{Pattern: "VSCode", SubjectKind: domain.RuleApp, Category: "development"},
		{Pattern: "news.", SubjectKind: domain.RuleDomain, Category: "reading"},
	})
	appendN(t, s, day, "Xcode", domain.SubjectApp, 300, 27)
	appendN(t, s, day, "VSCode", domain.SubjectApp, 300, 18)
	appendN(t, s, day, "news.example.com", domain.SubjectDomain, 600, 1)

	res, err := aggregate.New(s).Aggregate(context.Background(), domain.DateRange{From: day, To: day}, aggregate.DefaultOptions())
	require.NoError(t, err)

	assert.Equal(t, int64(13500), res.CategoryTotals["development"])
	assert.Equal(t, int64(600), res.CategoryTotals["reading"])
	assert.Equal(t, int64(14100), res.TotalSeconds)
	assert.Equal(t, int64(13500), res.AppSeconds)
	assert.Equal(t, int64(600), res.DomainSeconds)
	require.NotEmpty(t, res.TopSubjects)
	assert.Equal(t, "Xcode", res.TopSubjects[0].Subject)
	assert.Equal(t, int64(8100), res.TopSubjects[0].DurationSeconds)
	assert.Equal(t, []string{"development", "reading"}, res.Categories())
	assert.Len(t, res.TopDomains, 1)
	assert.Empty(t, res.Anomalies)
}

func TestAggregate_EmptyRange(t *testing.T) {
	s := newStore(t, nil)
	res, err := aggregate.New(s).Aggregate(context.Background(), domain.DateRange{From: day, To: day.AddDays(2)}, aggregate.Options{})
	require.NoError(t, err)

	assert.Zero(t, res.TotalSeconds)
	assert.Empty(t, res.CategoryTotals)
	assert.Empty(t, res.TopSubjects)
	assert.Empty(t, res.Anomalies)
}

func TestAggregate_InvertedRange(t *testing.T) {
	s := newStore(t, nil)
	_, err := aggregate.New(s).Aggregate(context.Background(), domain.DateRange{From: day, To: day.AddDays(-1)}, aggregate.Options{})
	assert.True(t, errors.Is(err, domain.ErrInvalidRange))
}

func TestAggregate_TopSubjectsTieBreak(t *testing.T) {
	s := newStore(t, nil)
	appendN(t, s, day, "Zed", domain.SubjectApp, 300, 2)
	appendN(t, s, day, "Alacritty", domain.SubjectApp, 300, 2)
	appendN(t, s, day, "Mail", domain.SubjectApp, 300, 3)

	res, err := aggregate.New(s).Aggregate(context.Background(), domain.DateRange{From: day, To: day}, aggregate.Options{TopN: 2})
	require.NoError(t, err)

	require.Len(t, res.TopSubjects, 2)
	assert.Equal(t, "Mail", res.TopSubjects[0].Subject)
	assert.Equal(t, "Alacritty", res.TopSubjects[1].Subject)
	assert.Equal(t, int64(1500), res.CategoryTotals[domain.Uncategorized])
}

func TestAggregate_Anomalies(t *testing.T) {
	rules := []domain.CategoryRule{
		{Pattern: "Xcode", SubjectKind: domain.RuleApp, Category: "development"},
		{Pattern: "Slack", SubjectKind: domain.RuleApp, Category: "communication"},
		{Pattern: "Music", SubjectKind: domain.RuleApp, Category: "entertainment"},
		{Pattern: "Mail", SubjectKind: domain.RuleApp, Category: "email"},
	}

	tests := []struct {
		name      string
		threshold float64
		want      []domain.Anomaly
	}{
		{
			name:      "default threshold",
			threshold: 0.5,
			want: []domain.Anomaly{
				{Category: "development", Observed: 6000, Baseline: 3000, DeviationRatio: 1},
				{Category: "email", Observed: 0, Baseline: 1200, DeviationRatio: -1},
			},
		},
		{
			name:      "low threshold flags drops too",
			threshold: 0.1,
			want: []domain.Anomaly{
				{Category: "communication", Observed: 1500, Baseline: 1800, DeviationRatio: -0.17},
				{Category: "development", Observed: 6000, Baseline: 3000, DeviationRatio: 1},
				{Category: "email", Observed: 0, Baseline: 1200, DeviationRatio: -1},
			},
		},
		{
			name:      "high threshold",
			threshold: 2,
			want:      []domain.Anomaly{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newStore(t, rules)
			for i := 1; i <= 7; i++ {
				appendN(t, s, day.AddDays(-i), "Xcode", domain.SubjectApp, 300, 10)
				appendN(t, s, day.AddDays(-i), "Slack", domain.SubjectApp, 300, 6)
				// Used every baseline day, idle on the day itself.
				appendN(t, s, day.AddDays(-i), "Mail", domain.SubjectApp, 300, 4)
			}
			appendN(t, s, day, "Xcode", domain.SubjectApp, 300, 20)
			appendN(t, s, day, "Slack", domain.SubjectApp, 300, 5)
			// No baseline, never flagged.
			appendN(t, s, day, "Music", domain.SubjectApp, 300, 4)

			res, err := aggregate.New(s).Aggregate(context.Background(), domain.DateRange{From: day, To: day}, aggregate.Options{
				BaselineDays: 7,
				Threshold:    tt.threshold,
			})
			require.NoError(t, err)
			assert.Equal(t, tt.want, res.Anomalies)
		})
	}
}

func TestAggregate_BaselineCountsIdleDays(t *testing.T) {
	s := newStore(t, []domain.CategoryRule{{Pattern: "Xcode", SubjectKind: domain.RuleApp, Category: "development"}})
	// One active day out of a seven day window.
	appendN(t, s, day.AddDays(-3), "Xcode", domain.SubjectApp, 300, 14)
	appendN(t, s, day, "Xcode", domain.SubjectApp, 300, 14)

	res, err := aggregate.New(s).Aggregate(context.Background(), domain.DateRange{From: day, To: day}, aggregate.Options{BaselineDays: 7})
	require.NoError(t, err)

	require.Len(t, res.Anomalies, 1)
	assert.Equal(t, float64(600), res.Anomalies[0].Baseline)
	assert.Equal(t, float64(4200), res.Anomalies[0].Observed)
	assert.Equal(t, float64(6), res.Anomalies[0].DeviationRatio)
}
