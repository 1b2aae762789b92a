package turso

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/emiliopalmerini/mtrack/internal/domain"
	"github.com/emiliopalmerini/mtrack/internal/util"
)

const activityColumns = `id, recorded_at, subject, subject_kind, window_title, duration_seconds, category`

type activityRow struct {
	ID              string         `db:"id"`
	RecordedAt      int64          `db:"recorded_at"`
	Subject         string         `db:"subject"`
	SubjectKind     string         `db:"subject_kind"`
	WindowTitle     sql.NullString `db:"window_title"`
	DurationSeconds int64          `db:"duration_seconds"`
	Category        sql.NullString `db:"category"`
}

type ActivityRepository struct {
	db *sqlx.DB
}

func NewActivityRepository(db *sql.DB) *ActivityRepository {
	return &ActivityRepository{db: wrap(db)}
}

func (r *ActivityRepository) Insert(ctx context.Context, rec *domain.ActivityRecord) error {
	if err := insertActivity(ctx, r.db, rec); err != nil {
		return fmt.Errorf("failed to insert activity: %w", err)
	}
	return nil
}

func insertActivity(ctx context.Context, ext sqlx.ExecerContext, rec *domain.ActivityRecord) error {
	_, err := ext.ExecContext(ctx, `
		INSERT INTO activities (id, recorded_at, subject, subject_kind, window_title, duration_seconds, category)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`,
		rec.ID,
		rec.Timestamp.Unix(),
		rec.Subject,
		string(rec.SubjectKind),
		util.NullStringPtr(rec.WindowTitle),
		rec.DurationSeconds,
		util.NullStringPtr(rec.Category),
	)
	return err
}

func (r *ActivityRepository) ListBetween(ctx context.Context, start, end time.Time) ([]*domain.ActivityRecord, error) {
	var rows []activityRow
	err := r.db.SelectContext(ctx, &rows, `
		SELECT `+activityColumns+`
		FROM activities
		WHERE recorded_at >= ? AND recorded_at < ?
		ORDER BY seq
	`, start.Unix(), end.Unix())
	if err != nil {
		return nil, fmt.Errorf("failed to list activities: %w", err)
	}

	records := make([]*domain.ActivityRecord, len(rows))
	for i, row := range rows {
		records[i] = activityFromRow(row)
	}
	return records, nil
}

func (r *ActivityRepository) DeleteBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM activities WHERE recorded_at < ?`, cutoff.Unix())
	if err != nil {
		return 0, fmt.Errorf("failed to prune activities: %w", err)
	}
	return res.RowsAffected()
}

func (r *ActivityRepository) CountBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	var n int64
	if err := r.db.GetContext(ctx, &n, `SELECT COUNT(*) FROM activities WHERE recorded_at < ?`, cutoff.Unix()); err != nil {
		return 0, fmt.Errorf("failed to count activities: %w", err)
	}
	return n, nil
}

func (r *ActivityRepository) ReplaceDomains(ctx context.Context, start, end time.Time, records []*domain.ActivityRecord) (int64, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	res, err := tx.ExecContext(ctx, `
		DELETE FROM activities
		WHERE subject_kind = 'domain' AND recorded_at >= ? AND recorded_at < ?
	`, start.Unix(), end.Unix())
	if err != nil {
		return 0, fmt.Errorf("failed to clear domain visits: %w", err)
	}
	deleted, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}

	for _, rec := range records {
		if err := insertActivity(ctx, tx, rec); err != nil {
			return 0, fmt.Errorf("failed to insert domain visit %s: %w", rec.Subject, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit domain visits: %w", err)
	}
	return deleted, nil
}

func (r *ActivityRepository) SetCategories(ctx context.Context, categories map[string]string) (int64, error) {
	if len(categories) == 0 {
		return 0, nil
	}

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var changed int64
	for id, category := range categories {
		res, err := tx.ExecContext(ctx, `UPDATE activities SET category = ? WHERE id = ?`, category, id)
		if err != nil {
			return 0, fmt.Errorf("failed to update category of %s: %w", id, err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return 0, err
		}
		changed += n
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit categories: %w", err)
	}
	return changed, nil
}

func (r *ActivityRepository) Latest(ctx context.Context) (*domain.ActivityRecord, error) {
	var row activityRow
	err := r.db.GetContext(ctx, &row, `SELECT `+activityColumns+` FROM activities ORDER BY seq DESC LIMIT 1`)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get latest activity: %w", err)
	}
	return activityFromRow(row), nil
}

func activityFromRow(row activityRow) *domain.ActivityRecord {
	return &domain.ActivityRecord{
		ID:              row.ID,
		Timestamp:       time.Unix(row.RecordedAt, 0).UTC(),
		Subject:         row.Subject,
		SubjectKind:     domain.SubjectKind(row.SubjectKind),
		WindowTitle:     util.NullStringToPtr(row.WindowTitle),
		DurationSeconds: row.DurationSeconds,
		Category:        util.NullStringToPtr(row.Category),
	}
}
