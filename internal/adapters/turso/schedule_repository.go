package turso

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/emiliopalmerini/mtrack/internal/domain"
	"github.com/emiliopalmerini/mtrack/internal/util"
)

type scheduleRow struct {
	ReportTime     string         `db:"report_time"`
	CronExpression string         `db:"cron_expression"`
	LastFiredDate  sql.NullString `db:"last_fired_date"`
	LastRunAt      sql.NullString `db:"last_run_at"`
	LastRunError   sql.NullString `db:"last_run_error"`
}

type ScheduleRepository struct {
	db *sqlx.DB
}

func NewScheduleRepository(db *sql.DB) *ScheduleRepository {
	return &ScheduleRepository{db: wrap(db)}
}

func (r *ScheduleRepository) Get(ctx context.Context) (*domain.ScheduleState, error) {
	var row scheduleRow
	err := r.db.GetContext(ctx, &row, `
		SELECT report_time, cron_expression, last_fired_date, last_run_at, last_run_error
		FROM schedule_state
		WHERE id = 1
	`)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get schedule state: %w", err)
	}

	state := &domain.ScheduleState{
		ReportTime:     row.ReportTime,
		CronExpression: row.CronExpression,
		LastRunAt:      util.NullStringToTime(row.LastRunAt),
		LastRunError:   util.NullStringToPtr(row.LastRunError),
	}
	if row.LastFiredDate.Valid {
		d, err := domain.ParseDate(row.LastFiredDate.String)
		if err != nil {
			return nil, fmt.Errorf("schedule state has bad last_fired_date: %w", err)
		}
		state.LastFiredDate = &d
	}
	return state, nil
}

func (r *ScheduleRepository) Save(ctx context.Context, s *domain.ScheduleState) error {
	var lastFired sql.NullString
	if s.LastFiredDate != nil {
		lastFired = sql.NullString{String: s.LastFiredDate.String(), Valid: true}
	}

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO schedule_state (id, report_time, cron_expression, last_fired_date, last_run_at, last_run_error, updated_at)
		VALUES (1, ?, ?, ?, ?, ?, strftime('%Y-%m-%dT%H:%M:%fZ', 'now'))
		ON CONFLICT(id) DO UPDATE SET
			report_time = excluded.report_time,
			cron_expression = excluded.cron_expression,
			last_fired_date = excluded.last_fired_date,
			last_run_at = excluded.last_run_at,
			last_run_error = excluded.last_run_error,
			updated_at = excluded.updated_at
	`,
		s.ReportTime,
		s.CronExpression,
		lastFired,
		util.NullTimePtr(s.LastRunAt),
		util.NullStringPtr(s.LastRunError),
	)
	if err != nil {
		return fmt.Errorf("failed to save schedule state: %w", err)
	}
	return nil
}
