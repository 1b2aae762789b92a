// Package query is the read/write facade used by the HTTP API and the CLI.
// Every call goes through the thread-safe store, engine and scheduler
// interfaces, so it is safe while collectors and the scheduler are writing.
package query

import (
	"context"
	"fmt"
	"time"

	"github.com/emiliopalmerini/mtrack/internal/activity"
	"github.com/emiliopalmerini/mtrack/internal/category"
	"github.com/emiliopalmerini/mtrack/internal/config"
	"github.com/emiliopalmerini/mtrack/internal/domain"
	"github.com/emiliopalmerini/mtrack/internal/ports"
	"github.com/emiliopalmerini/mtrack/internal/scheduler"
)

const (
	DefaultReportLimit = 7
	MaxReportLimit     = 90
)

// ActivityStore is the activity log.
type ActivityStore interface {
	Append(ctx context.Context, rec domain.ActivityRecord) (*domain.ActivityRecord, error)
	ReplaceDomainVisits(ctx context.Context, date domain.Date, visits []domain.DomainVisit) (*activity.ImportResult, error)
	Query(ctx context.Context, r domain.DateRange, filter domain.ActivityFilter) ([]*domain.ActivityRecord, error)
	Stored(ctx context.Context, r domain.DateRange) ([]*domain.ActivityRecord, error)
	SetCategories(ctx context.Context, categories map[string]string) (int64, error)
	Today() domain.Date
	Now() time.Time
	Location() *time.Location
}

// CategoryEngine owns the rule table.
type CategoryEngine interface {
	Rules() *domain.RuleSet
	UpdateRules(ctx context.Context, rules []domain.CategoryRule) (*domain.RuleSet, error)
	Recategorize(ctx context.Context, store category.RecordStore, r domain.DateRange) (int64, error)
}

// ReportGenerator builds the report of one date.
type ReportGenerator interface {
	Generate(ctx context.Context, date domain.Date) (*domain.DailyReport, error)
}

// ScheduleSource reports the scheduler state. It is nil when the scheduler
// is not running in this process.
type ScheduleSource interface {
	Status() scheduler.Status
}

// SettingsStore holds the runtime settings.
type SettingsStore interface {
	Current() *config.Snapshot
	SetReportTime(reportTime string) (*config.Snapshot, domain.ScheduleState, error)
}

type Service struct {
	activities ActivityStore
	rules      CategoryEngine
	reports    ports.ReportRepository
	artifacts  ports.ReportStorage
	generator  ReportGenerator
	settings   SettingsStore
	schedule   ScheduleSource
}

func NewService(
	activities ActivityStore,
	rules CategoryEngine,
	reports ports.ReportRepository,
	artifacts ports.ReportStorage,
	generator ReportGenerator,
	settings SettingsStore,
	schedule ScheduleSource,
) *Service {
	return &Service{
		activities: activities,
		rules:      rules,
		reports:    reports,
		artifacts:  artifacts,
		generator:  generator,
		settings:   settings,
		schedule:   schedule,
	}
}

// Today returns the current local date.
func (s *Service) Today() domain.Date {
	return s.activities.Today()
}

// Location returns the zone records are bucketed in.
func (s *Service) Location() *time.Location {
	return s.activities.Location()
}

// Activities returns the records of r with categories resolved from the current rules.
func (s *Service) Activities(ctx context.Context, r domain.DateRange, filter domain.ActivityFilter) ([]*domain.ActivityRecord, error) {
	return s.activities.Query(ctx, r, filter)
}

// AppendActivity stores one record delivered by a collector.
func (s *Service) AppendActivity(ctx context.Context, rec domain.ActivityRecord) (*domain.ActivityRecord, error) {
	return s.activities.Append(ctx, rec)
}

// ReplaceDomainVisits stores a browser-history batch for one date.
func (s *Service) ReplaceDomainVisits(ctx context.Context, date domain.Date, visits []domain.DomainVisit) (*activity.ImportResult, error) {
	return s.activities.ReplaceDomainVisits(ctx, date, visits)
}

// LatestReport returns the report with the newest date.
func (s *Service) LatestReport(ctx context.Context) (*domain.DailyReport, error) {
	rep, err := s.reports.Latest(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrStoreUnavailable, err)
	}
	if rep == nil {
		return nil, fmt.Errorf("no report generated yet: %w", domain.ErrNotFound)
	}
	return rep, nil
}

// Report returns the report of date.
func (s *Service) Report(ctx context.Context, date domain.Date) (*domain.DailyReport, error) {
	rep, err := s.reports.Get(ctx, date)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrStoreUnavailable, err)
	}
	if rep == nil {
		return nil, fmt.Errorf("report for %s: %w", date, domain.ErrNotFound)
	}
	return rep, nil
}

// ClampLimit applies the default and bounds of the report list size.
func ClampLimit(limit int) int {
	switch {
	case limit <= 0:
		return DefaultReportLimit
	case limit > MaxReportLimit:
		return MaxReportLimit
	default:
		return limit
	}
}

// Reports lists recent reports, newest first.
func (s *Service) Reports(ctx context.Context, limit int) ([]domain.ReportSummary, error) {
	reps, err := s.reports.List(ctx, ClampLimit(limit))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrStoreUnavailable, err)
	}
	out := make([]domain.ReportSummary, len(reps))
	for i, r := range reps {
		out[i] = r.Summary()
	}
	return out, nil
}

// Artifact returns the raw Markdown or JSON of a report from the location
// recorded when it was generated.
func (s *Service) Artifact(ctx context.Context, date domain.Date, format ports.ArtifactFormat) ([]byte, error) {
	rep, err := s.Report(ctx, date)
	if err != nil {
		return nil, err
	}
	path := rep.MarkdownPath
	if format == ports.FormatJSON {
		path = rep.JSONPath
	}
	if path == "" {
		return s.artifacts.Read(ctx, date, format)
	}
	return s.artifacts.ReadPath(ctx, path)
}

// GenerateReport builds or rebuilds the report of date on demand.
func (s *Service) GenerateReport(ctx context.Context, date domain.Date) (*domain.DailyReport, error) {
	return s.generator.Generate(ctx, date)
}

// Categories returns the current rule table.
func (s *Service) Categories() *domain.RuleSet {
	return s.rules.Rules()
}

// ReplaceCategories replaces the whole rule table.
func (s *Service) ReplaceCategories(ctx context.Context, rules []domain.CategoryRule) (*domain.RuleSet, error) {
	return s.rules.UpdateRules(ctx, rules)
}

// Recategorize rewrites stored categories in r with the current rules.
func (s *Service) Recategorize(ctx context.Context, r domain.DateRange) (int64, error) {
	if r.To.Before(r.From) {
		return 0, fmt.Errorf("%w: %s is before %s", domain.ErrInvalidRange, r.To, r.From)
	}
	return s.rules.Recategorize(ctx, s.activities, r)
}

// ScheduleView is the report schedule as exposed to clients.
type ScheduleView struct {
	ReportTime     string       `json:"report_time"`
	CronExpression string       `json:"cron_expression"`
	NextFireAt     *time.Time   `json:"next_fire_at,omitempty"`
	LastFiredDate  *domain.Date `json:"last_fired_date,omitempty"`
}

// Schedule returns the configured report time and its cron expression.
func (s *Service) Schedule() (ScheduleView, error) {
	state, err := domain.NewScheduleState(s.settings.Current().Settings.ReportTime)
	if err != nil {
		return ScheduleView{}, err
	}
	view := ScheduleView{ReportTime: state.ReportTime, CronExpression: state.CronExpression}
	if s.schedule != nil {
		st := s.schedule.Status()
		if st.ReportTime == view.ReportTime {
			view.NextFireAt = st.NextFireAt
		}
		view.LastFiredDate = st.LastFiredDate
	}
	if view.NextFireAt == nil {
		if rt, err := domain.ParseReportTime(view.ReportTime); err == nil {
			next := rt.NextAfter(s.activities.Now(), s.activities.Location())
			view.NextFireAt = &next
		}
	}
	return view, nil
}

// SetReportTime persists a new report time. The running scheduler picks it
// up through the settings subscription. The returned view carries the
// derived cron expression.
func (s *Service) SetReportTime(reportTime string) (ScheduleView, error) {
	_, state, err := s.settings.SetReportTime(reportTime)
	if err != nil {
		return ScheduleView{}, err
	}
	view := ScheduleView{ReportTime: state.ReportTime, CronExpression: state.CronExpression}
	if rt, err := domain.ParseReportTime(state.ReportTime); err == nil {
		next := rt.NextAfter(s.activities.Now(), s.activities.Location())
		view.NextFireAt = &next
	}
	return view, nil
}

// CollectorStatus describes the freshness of collected activity.
type CollectorStatus struct {
	Alive          bool       `json:"alive"`
	LastActivityAt *time.Time `json:"last_activity_at,omitempty"`
	LastSubject    string     `json:"last_subject,omitempty"`
}

// Status is the health view of the daemon.
type Status struct {
	Status         string            `json:"status"`
	Now            time.Time         `json:"now"`
	Timezone       string            `json:"timezone"`
	Collector      CollectorStatus   `json:"collector"`
	Scheduler      *scheduler.Status `json:"scheduler,omitempty"`
	LatestReport   *domain.Date      `json:"latest_report,omitempty"`
	RulesVersion   int64             `json:"rules_version"`
	SettingsVer    int64             `json:"settings_version"`
	PollingSeconds int               `json:"polling_seconds"`
}

// collectorGrace is how long after the last sample the collector still counts as alive.
const collectorGrace = 2 * domain.PollingSeconds * time.Second

// Status reports whether collection and scheduling are alive.
func (s *Service) Status(ctx context.Context) (*Status, error) {
	now := s.activities.Now()
	snap := s.settings.Current()
	st := &Status{
		Status:         "ok",
		Now:            now.UTC().Truncate(time.Second),
		Timezone:       s.activities.Location().String(),
		RulesVersion:   s.rules.Rules().Version,
		SettingsVer:    snap.Version,
		PollingSeconds: snap.Settings.PollingSeconds,
	}

	today := domain.DateOf(now, s.activities.Location())
	samples, err := s.activities.Query(ctx, domain.DateRange{From: today.AddDays(-1), To: today}, domain.ActivityFilter{SubjectKind: domain.SubjectApp})
	if err != nil {
		return nil, err
	}
	if n := len(samples); n > 0 {
		last := samples[n-1]
		ts := last.Timestamp
		st.Collector.LastActivityAt = &ts
		st.Collector.LastSubject = last.Subject
		st.Collector.Alive = now.Sub(ts) <= collectorGrace
	}

	rep, err := s.reports.Latest(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrStoreUnavailable, err)
	}
	if rep != nil {
		d := rep.Date
		st.LatestReport = &d
	}

	if s.schedule != nil {
		sched := s.schedule.Status()
		st.Scheduler = &sched
		if !sched.Running {
			st.Status = "degraded"
		}
	}
	return st, nil
}
