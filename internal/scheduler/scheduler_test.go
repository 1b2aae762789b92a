package scheduler_test

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/emiliopalmerini/mtrack/internal/config"
	"github.com/emiliopalmerini/mtrack/internal/domain"
	"github.com/emiliopalmerini/mtrack/internal/scheduler"
)

var quiet = slog.New(slog.NewTextHandler(io.Discard, nil))

type memScheduleRepo struct {
	mu    sync.Mutex
	state *domain.ScheduleState
	saves int
}

func (r *memScheduleRepo) Get(ctx context.Context) (*domain.ScheduleState, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.state == nil {
		return nil, nil
	}
	cp := *r.state
	return &cp, nil
}

func (r *memScheduleRepo) Save(ctx context.Context, s *domain.ScheduleState) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *s
	r.state = &cp
	r.saves++
	return nil
}

type fakeGenerator struct {
	mu    sync.Mutex
	dates []domain.Date
	err   error
	gate  chan struct{}
}

func (g *fakeGenerator) Generate(ctx context.Context, date domain.Date) (*domain.DailyReport, error) {
	if g.gate != nil {
		<-g.gate
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	g.dates = append(g.dates, date)
	if g.err != nil {
		return nil, g.err
	}
	return &domain.DailyReport{Date: date}, nil
}

func (g *fakeGenerator) calls() []domain.Date {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]domain.Date(nil), g.dates...)
}

type countingNotifier struct {
	n atomic.Int32
}

func (c *countingNotifier) ReportReady(ctx context.Context, r *domain.DailyReport) error {
	c.n.Add(1)
	return nil
}

func openSettings(t *testing.T, reportTime string) *config.Store {
	t.Helper()
	dir := t.TempDir()
	defaults := config.DefaultSettings(filepath.Join(dir, "reports"))
	defaults.ReportTime = reportTime
	st, err := config.OpenStore(filepath.Join(dir, "config.json"), defaults, quiet)
	require.NoError(t, err)
	return st
}

func at(day, hour, minute int) time.Time {
	return time.Date(2026, 2, day, hour, minute, 0, 0, time.UTC)
}

func TestTick_FiresOncePerDate(t *testing.T) {
	gen := &fakeGenerator{}
	repo := &memScheduleRepo{}
	s := scheduler.New(gen, repo, openSettings(t, "23:30"), time.UTC, quiet)
	ctx := context.Background()

	assert.False(t, s.Tick(ctx, at(18, 22, 0)))
	st := s.Status()
	assert.Equal(t, scheduler.StateWaiting, st.State)
	require.NotNil(t, st.NextFireAt)
	assert.Equal(t, at(18, 23, 30), *st.NextFireAt)
	assert.Equal(t, "30 23 * * *", st.CronExpression)

	assert.True(t, s.Tick(ctx, at(18, 23, 30)))
	s.Wait()
	assert.False(t, s.Tick(ctx, at(18, 23, 45)))

	assert.Equal(t, []domain.Date{domain.NewDate(2026, 2, 18)}, gen.calls())
	st = s.Status()
	require.NotNil(t, st.LastFiredDate)
	assert.Equal(t, domain.NewDate(2026, 2, 18), *st.LastFiredDate)
	assert.NotNil(t, st.LastSuccessAt)
	assert.Nil(t, st.LastError)
	assert.Equal(t, at(19, 23, 30), *st.NextFireAt)

	saved, err := repo.Get(ctx)
	require.NoError(t, err)
	assert.Equal(t, domain.NewDate(2026, 2, 18), *saved.LastFiredDate)
}

func TestTick_ReportTimeChangeWithoutRestart(t *testing.T) {
	gen := &fakeGenerator{}
	settings := openSettings(t, "23:30")
	s := scheduler.New(gen, &memScheduleRepo{}, settings, time.UTC, quiet)
	ctx := context.Background()

	s.Tick(ctx, at(18, 21, 0))
	_, state, err := settings.SetReportTime("22:00")
	require.NoError(t, err)
	assert.Equal(t, "0 22 * * *", state.CronExpression)

	s.Tick(ctx, at(18, 21, 1))
	st := s.Status()
	assert.Equal(t, "22:00", st.ReportTime)
	assert.Equal(t, "0 22 * * *", st.CronExpression)
	assert.Equal(t, at(18, 22, 0), *st.NextFireAt)

	assert.True(t, s.Tick(ctx, at(18, 22, 0)))
	s.Wait()
	assert.Len(t, gen.calls(), 1)
}

func TestTick_MovingToPassedTimeWaitsForTomorrow(t *testing.T) {
	gen := &fakeGenerator{}
	settings := openSettings(t, "23:30")
	s := scheduler.New(gen, &memScheduleRepo{}, settings, time.UTC, quiet)
	ctx := context.Background()

	s.Tick(ctx, at(18, 10, 0))
	_, err := settings.Set("report_time", "09:00")
	require.NoError(t, err)

	assert.False(t, s.Tick(ctx, at(18, 10, 1)))
	assert.Equal(t, at(19, 9, 0), *s.Status().NextFireAt)
	assert.True(t, s.Tick(ctx, at(19, 9, 0)))
	s.Wait()
}

func TestTick_FailureIsNotRetriedSameDay(t *testing.T) {
	gen := &fakeGenerator{err: domain.ErrStoreUnavailable}
	s := scheduler.New(gen, &memScheduleRepo{}, openSettings(t, "23:30"), time.UTC, quiet)
	ctx := context.Background()

	s.Tick(ctx, at(18, 8, 0))
	assert.True(t, s.Tick(ctx, at(18, 23, 30)))
	s.Wait()
	assert.False(t, s.Tick(ctx, at(18, 23, 50)))

	st := s.Status()
	require.NotNil(t, st.LastError)
	assert.Contains(t, *st.LastError, "unavailable")
	assert.Nil(t, st.LastSuccessAt)
	assert.Equal(t, scheduler.StateWaiting, st.State)

	assert.True(t, s.Tick(ctx, at(19, 23, 30)))
	s.Wait()
	assert.Len(t, gen.calls(), 2)
}

func TestTick_CoalescesWhileFiring(t *testing.T) {
	gen := &fakeGenerator{gate: make(chan struct{})}
	s := scheduler.New(gen, &memScheduleRepo{}, openSettings(t, "23:30"), time.UTC, quiet)
	ctx := context.Background()

	s.Tick(ctx, at(18, 8, 0))
	require.True(t, s.Tick(ctx, at(18, 23, 30)))
	assert.Equal(t, scheduler.StateFiring, s.Status().State)

	// The next day's instant passes while the first run is still going.
	assert.False(t, s.Tick(ctx, at(19, 23, 30)))
	assert.False(t, s.Tick(ctx, at(19, 23, 31)))
	assert.Equal(t, 1, s.Status().CoalescedTriggers)

	close(gen.gate)
	s.Wait()
	assert.True(t, s.Tick(ctx, at(19, 23, 32)))
	s.Wait()
	assert.Equal(t, []domain.Date{domain.NewDate(2026, 2, 18), domain.NewDate(2026, 2, 19)}, gen.calls())
}

func TestTick_CountsMissedRunsAfterSuspend(t *testing.T) {
	gen := &fakeGenerator{}
	s := scheduler.New(gen, &memScheduleRepo{}, openSettings(t, "23:30"), time.UTC, quiet)
	ctx := context.Background()

	s.Tick(ctx, at(17, 8, 0))
	require.True(t, s.Tick(ctx, at(17, 23, 30)))
	s.Wait()

	// Machine asleep from the 18th until late on the 21st.
	require.True(t, s.Tick(ctx, at(21, 23, 40)))
	s.Wait()

	assert.Equal(t, 3, s.Status().MissedRuns)
	assert.Equal(t, domain.NewDate(2026, 2, 21), gen.calls()[1])
}

func TestLoad_RestartDoesNotRefire(t *testing.T) {
	repo := &memScheduleRepo{}
	settings := openSettings(t, "23:30")
	ctx := context.Background()

	first := scheduler.New(&fakeGenerator{}, repo, settings, time.UTC, quiet)
	first.Tick(ctx, at(18, 23, 0))
	require.True(t, first.Tick(ctx, at(18, 23, 30)))
	first.Wait()

	gen := &fakeGenerator{}
	second := scheduler.New(gen, repo, settings, time.UTC, quiet)
	require.NoError(t, second.Load(ctx))
	assert.NotNil(t, second.Status().LastSuccessAt)
	assert.False(t, second.Tick(ctx, at(18, 23, 0)))
	assert.False(t, second.Tick(ctx, at(18, 23, 45)))
	assert.Empty(t, gen.calls())
}

func TestTick_NotifiesOnSuccess(t *testing.T) {
	notifier := &countingNotifier{}
	settings := openSettings(t, "23:30")
	s := scheduler.New(&fakeGenerator{}, &memScheduleRepo{}, settings, time.UTC, quiet, scheduler.WithNotifier(notifier))
	ctx := context.Background()

	s.Tick(ctx, at(18, 8, 0))
	s.Tick(ctx, at(18, 23, 30))
	s.Wait()
	assert.Equal(t, int32(1), notifier.n.Load())

	_, err := settings.Set("notify_on_report", "false")
	require.NoError(t, err)
	s.Tick(ctx, at(19, 23, 30))
	s.Wait()
	assert.Equal(t, int32(1), notifier.n.Load())
}

func TestRun_FiresAndStops(t *testing.T) {
	var clock atomic.Pointer[time.Time]
	set := func(t time.Time) { clock.Store(&t) }
	set(at(18, 23, 29))

	gen := &fakeGenerator{}
	s := scheduler.New(gen, &memScheduleRepo{}, openSettings(t, "23:30"), time.UTC, quiet,
		scheduler.WithClock(func() time.Time { return *clock.Load() }),
		scheduler.WithPoll(10*time.Millisecond))

	ctx, cancel := context.WithCancel(context.Background())
	errc := make(chan error, 1)
	go func() { errc <- s.Run(ctx) }()

	require.Eventually(t, func() bool { return s.Status().Running }, 2*time.Second, 5*time.Millisecond)
	set(at(18, 23, 31))
	require.Eventually(t, func() bool { return len(gen.calls()) == 1 }, 2*time.Second, 5*time.Millisecond)

	cancel()
	select {
	case err := <-errc:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("scheduler did not stop")
	}
	assert.False(t, s.Status().Running)
}

type slowScheduleRepo struct {
	memScheduleRepo
	entered chan struct{}
	release chan struct{}
	once    sync.Once
}

func (r *slowScheduleRepo) Save(ctx context.Context, s *domain.ScheduleState) error {
	r.once.Do(func() { close(r.entered) })
	<-r.release
	return r.memScheduleRepo.Save(ctx, s)
}

func TestStatus_DoesNotWaitForScheduleSave(t *testing.T) {
	repo := &slowScheduleRepo{entered: make(chan struct{}), release: make(chan struct{})}
	s := scheduler.New(&fakeGenerator{}, repo, openSettings(t, "23:30"), time.UTC, quiet)
	ctx := context.Background()

	ticked := make(chan bool, 1)
	go func() { ticked <- s.Tick(ctx, at(18, 22, 0)) }()

	select {
	case <-repo.entered:
	case <-time.After(5 * time.Second):
		t.Fatal("schedule change was never saved")
	}

	status := make(chan scheduler.Status, 1)
	go func() { status <- s.Status() }()
	select {
	case st := <-status:
		assert.Equal(t, "23:30", st.ReportTime)
		assert.Equal(t, "30 23 * * *", st.CronExpression)
	case <-time.After(2 * time.Second):
		t.Fatal("Status blocked behind a schedule save")
	}

	close(repo.release)
	assert.False(t, <-ticked)
	saved, err := repo.Get(ctx)
	require.NoError(t, err)
	require.NotNil(t, saved)
	assert.Equal(t, "30 23 * * *", saved.CronExpression)
}
