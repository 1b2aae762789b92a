// Package scheduler fires the daily report at the configured local time.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/emiliopalmerini/mtrack/internal/config"
	"github.com/emiliopalmerini/mtrack/internal/domain"
	"github.com/emiliopalmerini/mtrack/internal/ports"
)

// DefaultPoll is the longest the loop sleeps before re-reading the schedule.
const DefaultPoll = 20 * time.Second

// maxMissedLookback caps how far back missed runs are counted.
const maxMissedLookback = 366

type State string

const (
	StateIdle    State = "idle"
	StateWaiting State = "waiting"
	StateFiring  State = "firing"
)

// Generator produces the report of one date.
type Generator interface {
	Generate(ctx context.Context, date domain.Date) (*domain.DailyReport, error)
}

// SettingsSource supplies report_time and notifies on change.
type SettingsSource interface {
	Current() *config.Snapshot
	Subscribe() (<-chan struct{}, func())
}

// Status is a point-in-time view of the scheduler.
type Status struct {
	Running           bool         `json:"running"`
	State             State        `json:"state"`
	ReportTime        string       `json:"report_time"`
	CronExpression    string       `json:"cron_expression"`
	NextFireAt        *time.Time   `json:"next_fire_at,omitempty"`
	LastFiredDate     *domain.Date `json:"last_fired_date,omitempty"`
	LastRunAt         *time.Time   `json:"last_run_at,omitempty"`
	LastSuccessAt     *time.Time   `json:"last_success_at,omitempty"`
	LastError         *string      `json:"last_error,omitempty"`
	MissedRuns        int          `json:"missed_runs"`
	CoalescedTriggers int          `json:"coalesced_triggers"`
}

// Scheduler is a single state machine: Idle, Waiting(next) and Firing.
// Generation runs on its own goroutine so the loop keeps re-evaluating the
// schedule while a report is being built.
type Scheduler struct {
	gen      Generator
	repo     ports.ScheduleRepository
	settings SettingsSource
	notifier ports.Notifier
	metrics  ports.MetricsExporter
	loc      *time.Location
	now      func() time.Time
	poll     time.Duration
	log      *slog.Logger

	mu          sync.Mutex
	state       State
	schedule    domain.ScheduleState
	armedSince  time.Time
	next        time.Time
	lastSuccess *time.Time
	pending     *domain.Date
	missed      int
	coalesced   int
	running     bool

	firing atomic.Bool
	done   chan struct{}
	wg     sync.WaitGroup
}

type Option func(*Scheduler)

func WithClock(now func() time.Time) Option {
	return func(s *Scheduler) { s.now = now }
}

func WithPoll(d time.Duration) Option {
	return func(s *Scheduler) {
		if d > 0 {
			s.poll = d
		}
	}
}

func WithNotifier(n ports.Notifier) Option {
	return func(s *Scheduler) { s.notifier = n }
}

func WithMetrics(m ports.MetricsExporter) Option {
	return func(s *Scheduler) { s.metrics = m }
}

func New(gen Generator, repo ports.ScheduleRepository, settings SettingsSource, loc *time.Location, log *slog.Logger, opts ...Option) *Scheduler {
	s := &Scheduler{
		gen:      gen,
		repo:     repo,
		settings: settings,
		loc:      loc,
		now:      time.Now,
		poll:     DefaultPoll,
		log:      log,
		state:    StateIdle,
		done:     make(chan struct{}, 1),
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

// Load restores the persisted run history so a restart does not fire the
// same date twice.
func (s *Scheduler) Load(ctx context.Context) error {
	saved, err := s.repo.Get(ctx)
	if err != nil {
		return fmt.Errorf("%w: %w", domain.ErrStoreUnavailable, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if saved != nil {
		s.schedule = *saved
		if saved.LastRunError == nil && saved.LastRunAt != nil {
			t := *saved.LastRunAt
			s.lastSuccess = &t
		}
	}
	return nil
}

// Tick evaluates the schedule at now and starts a generation when the fire
// instant of the current local date has been reached. It reports whether a
// generation was started.
func (s *Scheduler) Tick(ctx context.Context, now time.Time) bool {
	reportTime := s.settings.Current().Settings.ReportTime
	rt, err := domain.ParseReportTime(reportTime)
	if err != nil {
		s.mu.Lock()
		s.state = StateIdle
		s.next = time.Time{}
		s.mu.Unlock()
		s.log.Error("report schedule misconfigured", "report_time", reportTime, "err", err)
		return false
	}

	s.mu.Lock()
	var rearmed *domain.ScheduleState
	if s.armedSince.IsZero() || s.schedule.ReportTime != rt.String() {
		rearmed = s.rearm(rt, now)
	}

	today := domain.DateOf(now, s.loc)
	fireAt := rt.On(today, s.loc)
	due := !now.Before(fireAt) &&
		!fireAt.Before(s.armedSince) &&
		(s.schedule.LastFiredDate == nil || s.schedule.LastFiredDate.Before(today))

	if !due {
		s.next = rt.NextAfter(now, s.loc)
		if !s.firing.Load() {
			s.state = StateWaiting
		}
		s.mu.Unlock()
		s.saveChanged(ctx, rearmed)
		return false
	}

	if s.firing.Load() {
		if s.pending == nil || *s.pending != today {
			s.pending = &today
			s.coalesced++
			s.log.Warn("report trigger coalesced with running generation", "date", today.String())
		}
		s.mu.Unlock()
		s.saveChanged(ctx, rearmed)
		return false
	}

	missed := s.countMissed(rt, today)
	s.missed += missed
	s.pending = nil
	s.schedule.LastFiredDate = &today
	s.state = StateFiring
	s.next = rt.On(today.AddDays(1), s.loc)
	s.firing.Store(true)
	snapshot := s.schedule
	s.mu.Unlock()

	if missed > 0 {
		s.log.Warn("missed scheduled reports", "count", missed, "date", today.String())
	}
	s.save(ctx, snapshot)

	s.wg.Add(1)
	go s.fire(ctx, today)
	return true
}

// rearm applies a new report time. Fire instants before now are not due
// under the new schedule. Callers hold s.mu and persist the returned state,
// if any, after releasing it.
func (s *Scheduler) rearm(rt domain.ReportTime, now time.Time) *domain.ScheduleState {
	prev := s.schedule.ReportTime
	next, _ := s.schedule.WithReportTime(rt.String())
	s.schedule = next
	s.armedSince = now
	if prev == next.ReportTime {
		return nil
	}
	if prev != "" {
		s.log.Info("report schedule changed", "report_time", next.ReportTime, "cron", next.CronExpression)
	}
	return &next
}

// countMissed counts the dates after the last fired one whose fire instant
// passed while armed but without a run. Callers hold s.mu.
func (s *Scheduler) countMissed(rt domain.ReportTime, today domain.Date) int {
	if s.schedule.LastFiredDate == nil {
		return 0
	}
	missed := 0
	for d := today.AddDays(-1); d.After(*s.schedule.LastFiredDate) && missed < maxMissedLookback; d = d.AddDays(-1) {
		if rt.On(d, s.loc).Before(s.armedSince) {
			break
		}
		missed++
	}
	return missed
}

func (s *Scheduler) fire(ctx context.Context, date domain.Date) {
	defer s.wg.Done()
	start := s.now()

	rep, err := s.generate(ctx, date)

	finished := s.now().UTC()
	s.mu.Lock()
	s.schedule.LastRunAt = &finished
	if err != nil {
		msg := err.Error()
		s.schedule.LastRunError = &msg
	} else {
		s.schedule.LastRunError = nil
		s.lastSuccess = &finished
	}
	s.state = StateWaiting
	snapshot := s.schedule
	s.firing.Store(false)
	s.mu.Unlock()

	if err != nil {
		s.log.Error("scheduled report failed", "date", date.String(), "cron", snapshot.CronExpression, "err", err)
	}
	// The run outcome is persisted even when the daemon is shutting down.
	s.save(context.WithoutCancel(ctx), snapshot)
	if s.metrics != nil {
		s.metrics.RecordSchedulerRun(ctx, err == nil, finished.Sub(start))
	}
	if err == nil && s.notifier != nil && s.settings.Current().Settings.NotifyOnReport {
		if nerr := s.notifier.ReportReady(ctx, rep); nerr != nil {
			s.log.Warn("report notification failed", "date", date.String(), "err", nerr)
		}
	}

	select {
	case s.done <- struct{}{}:
	default:
	}
}

// generate calls the generator, turning a panic into an error.
func (s *Scheduler) generate(ctx context.Context, date domain.Date) (rep *domain.DailyReport, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: panic: %v", domain.ErrGenerationFailed, r)
		}
	}()
	return s.gen.Generate(ctx, date)
}

func (s *Scheduler) saveChanged(ctx context.Context, state *domain.ScheduleState) {
	if state != nil {
		s.save(ctx, *state)
	}
}

func (s *Scheduler) save(ctx context.Context, state domain.ScheduleState) {
	if err := s.repo.Save(ctx, &state); err != nil {
		s.log.Error("failed to save schedule state", "cron", state.CronExpression, "err", err)
	}
}

// Run drives Tick until ctx is done. It wakes at the next fire instant, on
// every settings change, when a generation finishes, and at least every poll
// interval. Run waits for an in-flight generation before returning.
func (s *Scheduler) Run(ctx context.Context) error {
	changes, unsubscribe := s.settings.Subscribe()
	defer unsubscribe()

	s.mu.Lock()
	s.running = true
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		s.running = false
		s.state = StateIdle
		s.mu.Unlock()
	}()

	s.log.Info("scheduler started", "report_time", s.settings.Current().Settings.ReportTime)
	for {
		now := s.now()
		s.Tick(ctx, now)

		wait := s.poll
		s.mu.Lock()
		if !s.next.IsZero() {
			if until := s.next.Sub(now); until < wait {
				wait = until
			}
		}
		s.mu.Unlock()
		if wait < 10*time.Millisecond {
			wait = 10 * time.Millisecond
		}

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			s.wg.Wait()
			s.log.Info("scheduler stopped")
			return nil
		case <-timer.C:
		case <-changes:
			timer.Stop()
		case <-s.done:
			timer.Stop()
		}
	}
}

// Wait blocks until any in-flight generation finishes.
func (s *Scheduler) Wait() {
	s.wg.Wait()
}

// Status returns a snapshot of the scheduler state.
func (s *Scheduler) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()

	st := Status{
		Running:           s.running,
		State:             s.state,
		ReportTime:        s.schedule.ReportTime,
		CronExpression:    s.schedule.CronExpression,
		LastFiredDate:     s.schedule.LastFiredDate,
		LastRunAt:         s.schedule.LastRunAt,
		LastSuccessAt:     s.lastSuccess,
		LastError:         s.schedule.LastRunError,
		MissedRuns:        s.missed,
		CoalescedTriggers: s.coalesced,
	}
	if st.ReportTime == "" {
		if state, err := domain.NewScheduleState(s.settings.Current().Settings.ReportTime); err == nil {
			st.ReportTime, st.CronExpression = state.ReportTime, state.CronExpression
		}
	}
	if !s.next.IsZero() {
		next := s.next
		st.NextFireAt = &next
	}
	return st
}
