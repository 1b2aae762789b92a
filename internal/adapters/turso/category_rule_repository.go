package turso

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/emiliopalmerini/mtrack/internal/domain"
)

type categoryRuleRow struct {
	Pattern     string `db:"pattern"`
	SubjectKind string `db:"subject_kind"`
	Category    string `db:"category"`
}

type CategoryRuleRepository struct {
	db *sqlx.DB
}

func NewCategoryRuleRepository(db *sql.DB) *CategoryRuleRepository {
	return &CategoryRuleRepository{db: wrap(db)}
}

func (r *CategoryRuleRepository) List(ctx context.Context) ([]domain.CategoryRule, error) {
	var rows []categoryRuleRow
	err := r.db.SelectContext(ctx, &rows, `
		SELECT pattern, subject_kind, category
		FROM category_rules
		ORDER BY position
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to list category rules: %w", err)
	}

	rules := make([]domain.CategoryRule, len(rows))
	for i, row := range rows {
		rules[i] = domain.CategoryRule{
			Pattern:     row.Pattern,
			SubjectKind: domain.RuleKind(row.SubjectKind),
			Category:    row.Category,
		}
	}
	return rules, nil
}

func (r *CategoryRuleRepository) ReplaceAll(ctx context.Context, rules []domain.CategoryRule) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `DELETE FROM category_rules`); err != nil {
		return fmt.Errorf("failed to clear category rules: %w", err)
	}
	for i, rule := range rules {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO category_rules (position, pattern, subject_kind, category)
			VALUES (?, ?, ?, ?)
		`, i, rule.Pattern, string(rule.SubjectKind), rule.Category)
		if err != nil {
			return fmt.Errorf("failed to insert category rule %d: %w", i, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit category rules: %w", err)
	}
	return nil
}
