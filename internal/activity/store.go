// Package activity owns the activity log: validated appends, range queries
// with resolved categories, browser-history batch imports and retention.
package activity

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/emiliopalmerini/mtrack/internal/domain"
	"github.com/emiliopalmerini/mtrack/internal/ports"
)

// Classifier resolves the category of a subject.
type Classifier interface {
	Classify(subject string, kind domain.SubjectKind) string
}

// Store is the Activity Store. Appends, imports and prunes take the write
// lock; queries take the read lock, so a query observes the log either fully
// before or fully after any write batch.
type Store struct {
	repo       ports.ActivityRepository
	classifier Classifier
	metrics    ports.MetricsExporter
	loc        *time.Location
	now        func() time.Time
	log        *slog.Logger

	mu sync.RWMutex
}

// Option configures a Store.
type Option func(*Store)

// WithClock overrides time.Now, used by retention.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// WithMetrics sets the exporter notified of appends and prunes.
func WithMetrics(m ports.MetricsExporter) Option {
	return func(s *Store) { s.metrics = m }
}

func NewStore(repo ports.ActivityRepository, classifier Classifier, loc *time.Location, log *slog.Logger, opts ...Option) *Store {
	s := &Store{
		repo:       repo,
		classifier: classifier,
		loc:        loc,
		now:        time.Now,
		log:        log,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.log == nil {
		s.log = slog.Default()
	}
	if s.loc == nil {
		s.loc = time.Local
	}
	return s
}

// Location returns the zone used to bucket records into local dates.
func (s *Store) Location() *time.Location {
	return s.loc
}

// Now returns the store's current time.
func (s *Store) Now() time.Time {
	return s.now()
}

// Today returns the current local date.
func (s *Store) Today() domain.Date {
	return domain.Today(s.now(), s.loc)
}

func (s *Store) classify(subject string, kind domain.SubjectKind) string {
	if s.classifier == nil {
		return domain.Uncategorized
	}
	return s.classifier.Classify(subject, kind)
}

// prepare normalizes and validates a record and assigns its id and category.
func (s *Store) prepare(in domain.ActivityRecord) (*domain.ActivityRecord, error) {
	rec := in
	rec.Subject = domain.NormalizeSubject(rec.Subject, rec.SubjectKind)
	rec.Timestamp = rec.Timestamp.Truncate(time.Second).UTC()
	if err := rec.Validate(); err != nil {
		return nil, err
	}
	rec.ID = uuid.NewString()
	category := s.classify(rec.Subject, rec.SubjectKind)
	rec.Category = &category
	return &rec, nil
}

// Append validates and stores one record and returns it with its generated id.
func (s *Store) Append(ctx context.Context, in domain.ActivityRecord) (*domain.ActivityRecord, error) {
	rec, err := s.prepare(in)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	err = s.repo.Insert(ctx, rec)
	s.mu.Unlock()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrStoreUnavailable, err)
	}

	if s.metrics != nil {
		s.metrics.RecordActivity(ctx, rec.SubjectKind, rec.DurationSeconds)
	}
	return rec, nil
}

// RecordAppSample stores one app/window sample credited with the fixed polling duration.
func (s *Store) RecordAppSample(ctx context.Context, ts time.Time, app string, windowTitle *string) (*domain.ActivityRecord, error) {
	return s.Append(ctx, domain.ActivityRecord{
		Timestamp:       ts,
		Subject:         app,
		SubjectKind:     domain.SubjectApp,
		WindowTitle:     windowTitle,
		DurationSeconds: domain.PollingSeconds,
	})
}

// ImportResult summarizes one browser-history batch.
type ImportResult struct {
	Date         domain.Date `json:"date"`
	Replaced     int64       `json:"replaced"`
	Inserted     int         `json:"inserted"`
	TotalSeconds int64       `json:"total_seconds"`
}

// ReplaceDomainVisits replaces the domain records of date with visits.
// Visits to the same domain are merged. The whole batch is rejected if any
// visit is invalid, and re-importing the same date never double counts.
func (s *Store) ReplaceDomainVisits(ctx context.Context, date domain.Date, visits []domain.DomainVisit) (*ImportResult, error) {
	merged := make(map[string]int64)
	for _, v := range visits {
		rec := domain.ActivityRecord{
			Timestamp:       date.Noon(s.loc),
			Subject:         v.Domain,
			SubjectKind:     domain.SubjectDomain,
			DurationSeconds: v.DurationSeconds,
		}
		rec.Subject = domain.NormalizeSubject(rec.Subject, rec.SubjectKind)
		if err := rec.Validate(); err != nil {
			return nil, err
		}
		merged[rec.Subject] += v.DurationSeconds
	}

	domains := make([]string, 0, len(merged))
	for d := range merged {
		domains = append(domains, d)
	}
	sort.Strings(domains)

	result := &ImportResult{Date: date}
	records := make([]*domain.ActivityRecord, 0, len(domains))
	for _, d := range domains {
		rec, err := s.prepare(domain.ActivityRecord{
			Timestamp:       date.Noon(s.loc),
			Subject:         d,
			SubjectKind:     domain.SubjectDomain,
			DurationSeconds: merged[d],
		})
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
		result.TotalSeconds += rec.DurationSeconds
	}

	start, end := domain.DateRange{From: date, To: date}.Bounds(s.loc)
	s.mu.Lock()
	replaced, err := s.repo.ReplaceDomains(ctx, start, end, records)
	s.mu.Unlock()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrStoreUnavailable, err)
	}

	result.Replaced = replaced
	result.Inserted = len(records)
	if s.metrics != nil {
		for _, rec := range records {
			s.metrics.RecordActivity(ctx, rec.SubjectKind, rec.DurationSeconds)
		}
	}
	s.log.Info("domain visits imported", "date", date.String(), "replaced", replaced, "inserted", len(records))
	return result, nil
}

// Query returns the records whose local date falls in r, in insertion order,
// with Category resolved from the current rules.
func (s *Store) Query(ctx context.Context, r domain.DateRange, filter domain.ActivityFilter) ([]*domain.ActivityRecord, error) {
	stored, err := s.Stored(ctx, r)
	if err != nil {
		return nil, err
	}

	out := make([]*domain.ActivityRecord, 0, len(stored))
	for _, rec := range stored {
		category := s.classify(rec.Subject, rec.SubjectKind)
		if !filter.Matches(rec, category) {
			continue
		}
		rec.Category = &category
		out = append(out, rec)
	}
	return out, nil
}

// Stored returns the records of r exactly as stored, including the category
// annotation written when they were appended.
func (s *Store) Stored(ctx context.Context, r domain.DateRange) ([]*domain.ActivityRecord, error) {
	if r.To.Before(r.From) {
		return nil, fmt.Errorf("%w: %s is before %s", domain.ErrInvalidRange, r.To, r.From)
	}
	start, end := r.Bounds(s.loc)

	s.mu.RLock()
	records, err := s.repo.ListBetween(ctx, start, end)
	s.mu.RUnlock()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrStoreUnavailable, err)
	}
	return records, nil
}

// SetCategories rewrites stored category annotations keyed by record id.
func (s *Store) SetCategories(ctx context.Context, categories map[string]string) (int64, error) {
	s.mu.Lock()
	n, err := s.repo.SetCategories(ctx, categories)
	s.mu.Unlock()
	if err != nil {
		return 0, fmt.Errorf("%w: %w", domain.ErrStoreUnavailable, err)
	}
	return n, nil
}

// Latest returns the most recently appended record, or nil.
func (s *Store) Latest(ctx context.Context) (*domain.ActivityRecord, error) {
	s.mu.RLock()
	rec, err := s.repo.Latest(ctx)
	s.mu.RUnlock()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrStoreUnavailable, err)
	}
	return rec, nil
}
