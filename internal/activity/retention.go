package activity

import (
	"context"
	"fmt"
	"time"

	"github.com/emiliopalmerini/mtrack/internal/domain"
)

// RetentionCutoff returns the oldest local date kept for retentionDays.
// Records dated before it are pruned; records on it are retained.
func (s *Store) RetentionCutoff(retentionDays int) domain.Date {
	return s.Today().AddDays(-retentionDays)
}

// Prune deletes every record whose local date is before today - retentionDays.
func (s *Store) Prune(ctx context.Context, retentionDays int) (int64, error) {
	if retentionDays < 1 {
		return 0, fmt.Errorf("retention_days must be at least 1, got %d", retentionDays)
	}
	cutoff := s.RetentionCutoff(retentionDays).Start(s.loc)

	s.mu.Lock()
	deleted, err := s.repo.DeleteBefore(ctx, cutoff)
	s.mu.Unlock()
	if err != nil {
		return 0, fmt.Errorf("%w: %w", domain.ErrStoreUnavailable, err)
	}

	if s.metrics != nil && deleted > 0 {
		s.metrics.RecordPrune(ctx, deleted)
	}
	return deleted, nil
}

// PruneCandidates counts what Prune would delete without deleting it.
func (s *Store) PruneCandidates(ctx context.Context, retentionDays int) (int64, domain.Date, error) {
	if retentionDays < 1 {
		return 0, domain.Date{}, fmt.Errorf("retention_days must be at least 1, got %d", retentionDays)
	}
	cutoff := s.RetentionCutoff(retentionDays)

	s.mu.RLock()
	n, err := s.repo.CountBefore(ctx, cutoff.Start(s.loc))
	s.mu.RUnlock()
	if err != nil {
		return 0, cutoff, fmt.Errorf("%w: %w", domain.ErrStoreUnavailable, err)
	}
	return n, cutoff, nil
}

// RunRetention prunes once immediately and then every interval until ctx is
// done. retentionDays is read before each pass so setting changes apply
// without a restart. Failures are logged and retried on the next pass.
func (s *Store) RunRetention(ctx context.Context, interval time.Duration, retentionDays func() int) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		days := retentionDays()
		deleted, err := s.Prune(ctx, days)
		switch {
		case err != nil && ctx.Err() == nil:
			s.log.Error("retention prune failed", "retention_days", days, "err", err)
		case deleted > 0:
			s.log.Info("retention prune", "retention_days", days, "deleted", deleted)
		}

		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}
