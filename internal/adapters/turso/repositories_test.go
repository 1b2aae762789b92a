package turso_test

import (
	"context"
	"testing"
	"time"

	"github.com/emiliopalmerini/mtrack/internal/adapters/turso"
	"github.com/emiliopalmerini/mtrack/internal/domain"
)

func TestCategoryRuleRepository_ReplaceAll(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()
	repo := turso.NewCategoryRuleRepository(db)

	rules, err := repo.List(ctx)
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(rules) != 0 {
		t.Fatalf("expected empty table, got %d", len(rules))
	}

	first := []domain.CategoryRule{
		{Pattern: "Xcode", SubjectKind: domain.RuleApp, Category: "development"},
		{Pattern: "news.", SubjectKind: domain.RuleDomain, Category: "reading"},
		{Pattern: "Slack", SubjectKind: domain.RuleAny, Category: "communication"},
	}
	if err := repo.ReplaceAll(ctx, first); err != nil {
		t.Fatalf("ReplaceAll failed: %v", err)
	}

	rules, err = repo.List(ctx)
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(rules) != 3 {
		t.Fatalf("expected 3 rules, got %d", len(rules))
	}
	for i := range first {
		if rules[i] != first[i] {
			t.Errorf("rule %d = %+v, want %+v", i, rules[i], first[i])
		}
	}

	if err := repo.ReplaceAll(ctx, first[1:2]); err != nil {
		t.Fatalf("second ReplaceAll failed: %v", err)
	}
	rules, _ = repo.List(ctx)
	if len(rules) != 1 || rules[0].Pattern != "news." {
		t.Errorf("expected full replacement, got %+v", rules)
	}
}

func TestReportRepository(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()
	repo := turso.NewReportRepository(db)

	missing, err := repo.Get(ctx, domain.NewDate(2026, 2, 18))
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if missing != nil {
		t.Fatalf("expected nil for missing report")
	}

	generated := time.Date(2026, 2, 18, 23, 30, 0, 0, time.UTC)
	rep := &domain.DailyReport{
		Date:           domain.NewDate(2026, 2, 18),
		GeneratedAt:    generated,
		MarkdownPath:   "/reports/2026-02-18.md",
		JSONPath:       "/reports/2026-02-18.json",
		CategoryTotals: map[string]int64{"development": 13500, "reading": 600},
		TopSubjects:    []domain.SubjectTotal{{Subject: "Xcode", SubjectKind: domain.SubjectApp, DurationSeconds: 8100}},
	}
	if err := repo.Upsert(ctx, rep); err != nil {
		t.Fatalf("Upsert failed: %v", err)
	}

	older := &domain.DailyReport{Date: domain.NewDate(2026, 2, 17), GeneratedAt: generated.Add(-24 * time.Hour)}
	if err := repo.Upsert(ctx, older); err != nil {
		t.Fatalf("Upsert older failed: %v", err)
	}

	got, err := repo.Get(ctx, rep.Date)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got == nil {
		t.Fatal("expected report")
	}
	if got.CategoryTotals["development"] != 13500 {
		t.Errorf("development = %d", got.CategoryTotals["development"])
	}
	if len(got.TopSubjects) != 1 || got.TopSubjects[0].Subject != "Xcode" {
		t.Errorf("top subjects = %+v", got.TopSubjects)
	}
	if got.Anomalies == nil || len(got.Anomalies) != 0 {
		t.Errorf("expected empty anomalies, got %v", got.Anomalies)
	}
	if !got.GeneratedAt.Equal(generated) {
		t.Errorf("generated_at = %v", got.GeneratedAt)
	}

	// Overwrite the same date.
	rep.CategoryTotals = map[string]int64{"development": 100}
	if err := repo.Upsert(ctx, rep); err != nil {
		t.Fatalf("second Upsert failed: %v", err)
	}
	got, _ = repo.Get(ctx, rep.Date)
	if len(got.CategoryTotals) != 1 || got.CategoryTotals["development"] != 100 {
		t.Errorf("expected overwrite, got %v", got.CategoryTotals)
	}

	latest, err := repo.Latest(ctx)
	if err != nil {
		t.Fatalf("Latest failed: %v", err)
	}
	if latest.Date != rep.Date {
		t.Errorf("latest = %s, want %s", latest.Date, rep.Date)
	}

	list, err := repo.List(ctx, 7)
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(list) != 2 || list[0].Date != rep.Date || list[1].Date != older.Date {
		t.Errorf("unexpected list order: %+v", list)
	}
}

func TestScheduleRepository(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()
	repo := turso.NewScheduleRepository(db)

	state, err := repo.Get(ctx)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if state != nil {
		t.Fatalf("expected nil before first save")
	}

	s, err := domain.NewScheduleState("23:30")
	if err != nil {
		t.Fatalf("NewScheduleState failed: %v", err)
	}
	fired := domain.NewDate(2026, 2, 18)
	ran := time.Date(2026, 2, 18, 23, 30, 5, 0, time.UTC)
	s.LastFiredDate = &fired
	s.LastRunAt = &ran
	s.LastRunError = strPtr("store unavailable")
	if err := repo.Save(ctx, &s); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	got, err := repo.Get(ctx)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got.ReportTime != "23:30" || got.CronExpression != "30 23 * * *" {
		t.Errorf("unexpected state: %+v", got)
	}
	if got.LastFiredDate == nil || *got.LastFiredDate != fired {
		t.Errorf("last fired = %v", got.LastFiredDate)
	}
	if got.LastRunAt == nil || !got.LastRunAt.Equal(ran) {
		t.Errorf("last run at = %v", got.LastRunAt)
	}
	if got.LastRunError == nil || *got.LastRunError != "store unavailable" {
		t.Errorf("last run error = %v", got.LastRunError)
	}

	next, _ := s.WithReportTime("00:05")
	next.LastRunError = nil
	if err := repo.Save(ctx, &next); err != nil {
		t.Fatalf("second Save failed: %v", err)
	}
	got, _ = repo.Get(ctx)
	if got.CronExpression != "5 0 * * *" || got.LastRunError != nil {
		t.Errorf("unexpected state after update: %+v", got)
	}
}
