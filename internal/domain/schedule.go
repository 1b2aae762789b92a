package domain

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// DefaultReportTime is the local time of the daily report when none is configured.
const DefaultReportTime = "23:30"

// ReportTime is a local wall-clock time of day with minute precision.
type ReportTime struct {
	Hour   int
	Minute int
}

// ParseReportTime parses "HH:MM" (a single-digit hour is accepted).
func ParseReportTime(s string) (ReportTime, error) {
	hh, mm, ok := strings.Cut(strings.TrimSpace(s), ":")
	if !ok || len(hh) < 1 || len(hh) > 2 || len(mm) != 2 {
		return ReportTime{}, fmt.Errorf("%w: report_time must be HH:MM, got %q", ErrScheduleMisconfigured, s)
	}
	h, ok := clockField(hh, 23)
	if !ok {
		return ReportTime{}, fmt.Errorf("%w: invalid hour in %q", ErrScheduleMisconfigured, s)
	}
	m, ok := clockField(mm, 59)
	if !ok {
		return ReportTime{}, fmt.Errorf("%w: invalid minute in %q", ErrScheduleMisconfigured, s)
	}
	return ReportTime{Hour: h, Minute: m}, nil
}

// clockField parses one or two ASCII digits no greater than limit.
// Signs and spaces are rejected.
func clockField(s string, limit int) (int, bool) {
	if len(s) < 1 || len(s) > 2 {
		return 0, false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return 0, false
		}
	}
	n, err := strconv.Atoi(s)
	if err != nil || n > limit {
		return 0, false
	}
	return n, true
}

// String formats t as zero-padded HH:MM.
func (t ReportTime) String() string {
	return fmt.Sprintf("%02d:%02d", t.Hour, t.Minute)
}

// Cron returns the daily cron expression "M H * * *" for t.
func (t ReportTime) Cron() string {
	return fmt.Sprintf("%d %d * * *", t.Minute, t.Hour)
}

// On returns the instant t occurs on date d in loc.
func (t ReportTime) On(d Date, loc *time.Location) time.Time {
	return time.Date(d.Year, d.Month, d.Day, t.Hour, t.Minute, 0, 0, loc)
}

// NextAfter returns the first occurrence of t strictly after now.
func (t ReportTime) NextAfter(now time.Time, loc *time.Location) time.Time {
	today := DateOf(now, loc)
	next := t.On(today, loc)
	if !next.After(now) {
		next = t.On(today.AddDays(1), loc)
	}
	return next
}

// CronFromReportTime derives the cron expression for a report time string.
func CronFromReportTime(s string) (string, error) {
	t, err := ParseReportTime(s)
	if err != nil {
		return "", err
	}
	return t.Cron(), nil
}

// ParseDailyCron accepts only daily expressions of the form "M H * * *".
func ParseDailyCron(expr string) (ReportTime, error) {
	fields := strings.Fields(expr)
	if len(fields) != 5 {
		return ReportTime{}, fmt.Errorf("%w: cron %q must have 5 fields", ErrScheduleMisconfigured, expr)
	}
	if fields[2] != "*" || fields[3] != "*" || fields[4] != "*" {
		return ReportTime{}, fmt.Errorf("%w: only daily cron expressions are supported, got %q", ErrScheduleMisconfigured, expr)
	}
	m, ok := clockField(fields[0], 59)
	if !ok {
		return ReportTime{}, fmt.Errorf("%w: invalid minute in cron %q", ErrScheduleMisconfigured, expr)
	}
	h, ok := clockField(fields[1], 23)
	if !ok {
		return ReportTime{}, fmt.Errorf("%w: invalid hour in cron %q", ErrScheduleMisconfigured, expr)
	}
	return ReportTime{Hour: h, Minute: m}, nil
}

// ScheduleState is the persisted singleton of the report scheduler.
// CronExpression is always derived from ReportTime.
type ScheduleState struct {
	ReportTime     string     `json:"report_time"`
	CronExpression string     `json:"cron_expression"`
	LastFiredDate  *Date      `json:"last_fired_date,omitempty"`
	LastRunAt      *time.Time `json:"last_run_at,omitempty"`
	LastRunError   *string    `json:"last_run_error,omitempty"`
}

// NewScheduleState validates reportTime and derives its cron expression.
func NewScheduleState(reportTime string) (ScheduleState, error) {
	t, err := ParseReportTime(reportTime)
	if err != nil {
		return ScheduleState{}, err
	}
	return ScheduleState{ReportTime: t.String(), CronExpression: t.Cron()}, nil
}

// WithReportTime returns a copy of s retimed to reportTime, keeping run history.
func (s ScheduleState) WithReportTime(reportTime string) (ScheduleState, error) {
	next, err := NewScheduleState(reportTime)
	if err != nil {
		return s, err
	}
	next.LastFiredDate = s.LastFiredDate
	next.LastRunAt = s.LastRunAt
	next.LastRunError = s.LastRunError
	return next, nil
}
