package turso

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/emiliopalmerini/mtrack/internal/domain"
)

const reportColumns = `date, generated_at, markdown_path, json_path, category_totals, top_subjects, anomalies`

type reportRow struct {
	Date           string `db:"date"`
	GeneratedAt    string `db:"generated_at"`
	MarkdownPath   string `db:"markdown_path"`
	JSONPath       string `db:"json_path"`
	CategoryTotals string `db:"category_totals"`
	TopSubjects    string `db:"top_subjects"`
	Anomalies      string `db:"anomalies"`
}

type ReportRepository struct {
	db *sqlx.DB
}

func NewReportRepository(db *sql.DB) *ReportRepository {
	return &ReportRepository{db: wrap(db)}
}

func (r *ReportRepository) Upsert(ctx context.Context, rep *domain.DailyReport) error {
	totals, err := json.Marshal(nonNilTotals(rep.CategoryTotals))
	if err != nil {
		return fmt.Errorf("failed to encode category totals: %w", err)
	}
	subjects, err := json.Marshal(nonNilSlice(rep.TopSubjects))
	if err != nil {
		return fmt.Errorf("failed to encode top subjects: %w", err)
	}
	anomalies, err := json.Marshal(nonNilSlice(rep.Anomalies))
	if err != nil {
		return fmt.Errorf("failed to encode anomalies: %w", err)
	}

	var total int64
	for _, s := range rep.CategoryTotals {
		total += s
	}

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO reports (date, generated_at, markdown_path, json_path, total_seconds, category_totals, top_subjects, anomalies)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(date) DO UPDATE SET
			generated_at = excluded.generated_at,
			markdown_path = excluded.markdown_path,
			json_path = excluded.json_path,
			total_seconds = excluded.total_seconds,
			category_totals = excluded.category_totals,
			top_subjects = excluded.top_subjects,
			anomalies = excluded.anomalies
	`,
		rep.Date.String(),
		rep.GeneratedAt.UTC().Format(time.RFC3339Nano),
		rep.MarkdownPath,
		rep.JSONPath,
		total,
		string(totals),
		string(subjects),
		string(anomalies),
	)
	if err != nil {
		return fmt.Errorf("failed to upsert report %s: %w", rep.Date, err)
	}
	return nil
}

func (r *ReportRepository) Get(ctx context.Context, date domain.Date) (*domain.DailyReport, error) {
	var row reportRow
	err := r.db.GetContext(ctx, &row, `SELECT `+reportColumns+` FROM reports WHERE date = ?`, date.String())
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get report %s: %w", date, err)
	}
	return reportFromRow(row)
}

func (r *ReportRepository) Latest(ctx context.Context) (*domain.DailyReport, error) {
	var row reportRow
	err := r.db.GetContext(ctx, &row, `SELECT `+reportColumns+` FROM reports ORDER BY date DESC LIMIT 1`)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get latest report: %w", err)
	}
	return reportFromRow(row)
}

func (r *ReportRepository) List(ctx context.Context, limit int) ([]*domain.DailyReport, error) {
	var rows []reportRow
	err := r.db.SelectContext(ctx, &rows, `SELECT `+reportColumns+` FROM reports ORDER BY date DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list reports: %w", err)
	}

	reports := make([]*domain.DailyReport, 0, len(rows))
	for _, row := range rows {
		rep, err := reportFromRow(row)
		if err != nil {
			return nil, err
		}
		reports = append(reports, rep)
	}
	return reports, nil
}

func reportFromRow(row reportRow) (*domain.DailyReport, error) {
	date, err := domain.ParseDate(row.Date)
	if err != nil {
		return nil, fmt.Errorf("report row has bad date: %w", err)
	}
	rep := &domain.DailyReport{
		Date:           date,
		MarkdownPath:   row.MarkdownPath,
		JSONPath:       row.JSONPath,
		CategoryTotals: map[string]int64{},
		TopSubjects:    []domain.SubjectTotal{},
		Anomalies:      []domain.Anomaly{},
	}
	if t, err := time.Parse(time.RFC3339Nano, row.GeneratedAt); err == nil {
		rep.GeneratedAt = t
	}
	if err := json.Unmarshal([]byte(row.CategoryTotals), &rep.CategoryTotals); err != nil {
		return nil, fmt.Errorf("report %s: bad category totals: %w", row.Date, err)
	}
	if err := json.Unmarshal([]byte(row.TopSubjects), &rep.TopSubjects); err != nil {
		return nil, fmt.Errorf("report %s: bad top subjects: %w", row.Date, err)
	}
	if err := json.Unmarshal([]byte(row.Anomalies), &rep.Anomalies); err != nil {
		return nil, fmt.Errorf("report %s: bad anomalies: %w", row.Date, err)
	}
	return rep, nil
}

func nonNilTotals(m map[string]int64) map[string]int64 {
	if m == nil {
		return map[string]int64{}
	}
	return m
}

func nonNilSlice[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
