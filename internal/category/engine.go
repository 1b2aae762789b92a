// Package category holds the live category rule table.
package category

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/emiliopalmerini/mtrack/internal/domain"
	"github.com/emiliopalmerini/mtrack/internal/ports"
)

// RecordStore is the part of the activity store re-categorization needs.
type RecordStore interface {
	Stored(ctx context.Context, r domain.DateRange) ([]*domain.ActivityRecord, error)
	SetCategories(ctx context.Context, categories map[string]string) (int64, error)
}

// Engine classifies subjects against the current rule table. Classify reads
// one immutable RuleSet, so a call in flight never sees a mix of versions.
type Engine struct {
	repo ports.CategoryRuleRepository
	log  *slog.Logger

	mu    sync.Mutex
	rules atomic.Pointer[domain.RuleSet]
}

// NewEngine loads the persisted table, seeding defaults when it is empty.
func NewEngine(ctx context.Context, repo ports.CategoryRuleRepository, log *slog.Logger) (*Engine, error) {
	if log == nil {
		log = slog.Default()
	}
	e := &Engine{repo: repo, log: log}

	rules, err := repo.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrStoreUnavailable, err)
	}
	if len(rules) == 0 {
		rules = domain.DefaultCategoryRules()
		if err := repo.ReplaceAll(ctx, rules); err != nil {
			return nil, fmt.Errorf("%w: seeding default rules: %w", domain.ErrStoreUnavailable, err)
		}
		log.Info("seeded default category rules", "count", len(rules))
	}

	set, err := domain.NewRuleSet(1, rules)
	if err != nil {
		return nil, err
	}
	e.rules.Store(set)
	return e, nil
}

// Classify returns the category of subject, or "uncategorized".
func (e *Engine) Classify(subject string, kind domain.SubjectKind) string {
	return e.rules.Load().Classify(subject, kind)
}

// Rules returns the current table version.
func (e *Engine) Rules() *domain.RuleSet {
	return e.rules.Load()
}

// UpdateRules validates, persists and then atomically swaps in a whole new table.
func (e *Engine) UpdateRules(ctx context.Context, rules []domain.CategoryRule) (*domain.RuleSet, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	next, err := domain.NewRuleSet(e.rules.Load().Version+1, rules)
	if err != nil {
		return nil, err
	}
	if err := e.repo.ReplaceAll(ctx, next.Rules); err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrStoreUnavailable, err)
	}
	e.rules.Store(next)
	e.log.Info("category rules updated", "version", next.Version, "count", len(next.Rules))
	return next, nil
}

// Recategorize rewrites the stored category annotation of every record in r
// using the current rules and returns how many records changed. Rule updates
// never do this implicitly.
func (e *Engine) Recategorize(ctx context.Context, store RecordStore, r domain.DateRange) (int64, error) {
	records, err := store.Stored(ctx, r)
	if err != nil {
		return 0, err
	}

	rules := e.rules.Load()
	changes := make(map[string]string)
	for _, rec := range records {
		category := rules.Classify(rec.Subject, rec.SubjectKind)
		if rec.Category == nil || *rec.Category != category {
			changes[rec.ID] = category
		}
	}
	if len(changes) == 0 {
		return 0, nil
	}

	n, err := store.SetCategories(ctx, changes)
	if err != nil {
		return 0, err
	}
	e.log.Info("recategorized records", "range", r.String(), "changed", n, "rules_version", rules.Version)
	return n, nil
}
