package config

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/emiliopalmerini/mtrack/internal/domain"
)

// Snapshot is one immutable version of the settings.
type Snapshot struct {
	Version  int64
	Settings Settings
}

// Store holds the current settings snapshot and persists changes to a JSON file.
// Readers never block; writers are serialized and replace the snapshot as a whole.
type Store struct {
	path     string
	defaults Settings
	log      *slog.Logger

	mu      sync.Mutex
	current atomic.Pointer[Snapshot]
	modTime time.Time

	subsMu sync.Mutex
	subs   map[chan struct{}]struct{}
}

// OpenStore loads path, creating it with defaults when it does not exist.
func OpenStore(path string, defaults Settings, log *slog.Logger) (*Store, error) {
	if log == nil {
		log = slog.Default()
	}
	s := &Store{
		path:     path,
		defaults: defaults,
		log:      log,
		subs:     make(map[chan struct{}]struct{}),
	}

	settings, modTime, err := s.read()
	if errors.Is(err, os.ErrNotExist) {
		settings = defaults
		if err := s.write(settings); err != nil {
			return nil, err
		}
	} else if err != nil {
		return nil, err
	} else {
		s.modTime = modTime
	}
	if err := settings.Validate(); err != nil {
		return nil, fmt.Errorf("invalid settings in %s: %w", path, err)
	}

	s.current.Store(&Snapshot{Version: 1, Settings: settings})
	return s, nil
}

// Path returns the settings file location.
func (s *Store) Path() string {
	return s.path
}

// Current returns the latest snapshot.
func (s *Store) Current() *Snapshot {
	return s.current.Load()
}

// Set validates and persists a single key.
func (s *Store) Set(key, value string) (*Snapshot, error) {
	return s.Update(func(cur Settings) (Settings, error) {
		return cur.With(key, value)
	})
}

// SetReportTime persists a new report_time and returns the derived schedule state.
func (s *Store) SetReportTime(reportTime string) (*Snapshot, domain.ScheduleState, error) {
	state, err := domain.NewScheduleState(reportTime)
	if err != nil {
		return nil, domain.ScheduleState{}, err
	}
	snap, err := s.Set("report_time", state.ReportTime)
	if err != nil {
		return nil, domain.ScheduleState{}, err
	}
	return snap, state, nil
}

// Update applies fn to the current settings, persists the result and swaps the snapshot.
func (s *Store) Update(fn func(Settings) (Settings, error)) (*Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cur := s.current.Load()
	next, err := fn(cur.Settings)
	if err != nil {
		return nil, err
	}
	if err := next.Validate(); err != nil {
		return nil, err
	}
	if next == cur.Settings {
		return cur, nil
	}
	if err := s.write(next); err != nil {
		return nil, err
	}
	return s.swap(cur, next), nil
}

// Reload re-reads the file and swaps in its contents when they changed.
// Invalid contents are rejected and the current snapshot is kept.
func (s *Store) Reload() (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	info, err := os.Stat(s.path)
	if err != nil {
		return false, fmt.Errorf("failed to stat settings: %w", err)
	}
	if info.ModTime().Equal(s.modTime) {
		return false, nil
	}

	settings, modTime, err := s.read()
	if err != nil {
		return false, err
	}
	s.modTime = modTime
	if err := settings.Validate(); err != nil {
		return false, fmt.Errorf("ignoring invalid settings in %s: %w", s.path, err)
	}

	cur := s.current.Load()
	if settings == cur.Settings {
		return false, nil
	}
	s.swap(cur, settings)
	return true, nil
}

// Watch calls Reload every interval until ctx is done.
func (s *Store) Watch(ctx context.Context, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			changed, err := s.Reload()
			if err != nil {
				s.log.Warn("settings reload failed", "path", s.path, "err", err)
				continue
			}
			if changed {
				s.log.Info("settings reloaded", "path", s.path, "version", s.Current().Version)
			}
		}
	}
}

// Subscribe returns a channel that receives a value after every snapshot change.
// Notifications are coalesced; call cancel to unsubscribe.
func (s *Store) Subscribe() (<-chan struct{}, func()) {
	ch := make(chan struct{}, 1)
	s.subsMu.Lock()
	s.subs[ch] = struct{}{}
	s.subsMu.Unlock()

	cancel := func() {
		s.subsMu.Lock()
		delete(s.subs, ch)
		s.subsMu.Unlock()
	}
	return ch, cancel
}

func (s *Store) swap(cur *Snapshot, next Settings) *Snapshot {
	snap := &Snapshot{Version: cur.Version + 1, Settings: next}
	s.current.Store(snap)

	s.subsMu.Lock()
	for ch := range s.subs {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
	s.subsMu.Unlock()
	return snap
}

func (s *Store) read() (Settings, time.Time, error) {
	info, err := os.Stat(s.path)
	if err != nil {
		return Settings{}, time.Time{}, err
	}
	data, err := os.ReadFile(s.path)
	if err != nil {
		return Settings{}, time.Time{}, fmt.Errorf("failed to read settings: %w", err)
	}

	settings := s.defaults
	if err := json.Unmarshal(data, &settings); err != nil {
		return Settings{}, time.Time{}, fmt.Errorf("failed to parse settings %s: %w", s.path, err)
	}
	settings.PollingSeconds = domain.PollingSeconds
	return settings, info.ModTime(), nil
}

func (s *Store) write(settings Settings) error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	data, err := json.MarshalIndent(settings, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode settings: %w", err)
	}

	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, append(data, '\n'), 0600); err != nil {
		return fmt.Errorf("failed to write settings: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("failed to replace settings: %w", err)
	}

	if info, err := os.Stat(s.path); err == nil {
		s.modTime = info.ModTime()
	}
	return nil
}
