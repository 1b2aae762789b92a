package ports

import (
	"context"
	"time"

	"github.com/emiliopalmerini/mtrack/internal/domain"
)

// ActivityRepository persists the append-only activity log.
type ActivityRepository interface {
	// Insert appends r. The record must already carry its identifier.
	Insert(ctx context.Context, r *domain.ActivityRecord) error
	// ListBetween returns records with start <= timestamp < end in insertion order.
	ListBetween(ctx context.Context, start, end time.Time) ([]*domain.ActivityRecord, error)
	// DeleteBefore removes records with timestamp < cutoff and returns how many were removed.
	DeleteBefore(ctx context.Context, cutoff time.Time) (int64, error)
	// CountBefore counts records with timestamp < cutoff.
	CountBefore(ctx context.Context, cutoff time.Time) (int64, error)
	// ReplaceDomains deletes the domain records in [start, end) and inserts records, in one transaction.
	ReplaceDomains(ctx context.Context, start, end time.Time, records []*domain.ActivityRecord) (int64, error)
	// SetCategories rewrites the category annotation of the records keyed by id.
	SetCategories(ctx context.Context, categories map[string]string) (int64, error)
	// Latest returns the most recently appended record, or nil when the log is empty.
	Latest(ctx context.Context) (*domain.ActivityRecord, error)
}

// CategoryRuleRepository persists the ordered category rule table.
type CategoryRuleRepository interface {
	List(ctx context.Context) ([]domain.CategoryRule, error)
	// ReplaceAll rewrites the whole table in declaration order.
	ReplaceAll(ctx context.Context, rules []domain.CategoryRule) error
}

// ReportRepository persists daily report metadata, one row per date.
type ReportRepository interface {
	Upsert(ctx context.Context, r *domain.DailyReport) error
	// Get returns nil, nil when no report exists for date.
	Get(ctx context.Context, date domain.Date) (*domain.DailyReport, error)
	// Latest returns nil, nil when no report has been generated.
	Latest(ctx context.Context) (*domain.DailyReport, error)
	// List returns up to limit reports, newest date first.
	List(ctx context.Context, limit int) ([]*domain.DailyReport, error)
}

// ScheduleRepository persists the scheduler singleton.
type ScheduleRepository interface {
	// Get returns nil, nil before the first Save.
	Get(ctx context.Context) (*domain.ScheduleState, error)
	Save(ctx context.Context, s *domain.ScheduleState) error
}
