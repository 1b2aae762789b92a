package domain

import (
	"fmt"
	"time"
)

// DateLayout is the wire and file-name format for calendar dates.
const DateLayout = "2006-01-02"

// Date is a calendar date without a time zone. Activity records are bucketed
// into dates using the daemon's configured location.
type Date struct {
	Year  int
	Month time.Month
	Day   int
}

// NewDate returns the normalized date for the given components.
func NewDate(year int, month time.Month, day int) Date {
	t := time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
	return Date{Year: t.Year(), Month: t.Month(), Day: t.Day()}
}

// ParseDate parses a YYYY-MM-DD string.
func ParseDate(s string) (Date, error) {
	t, err := time.Parse(DateLayout, s)
	if err != nil {
		return Date{}, fmt.Errorf("invalid date %q (example: 2026-02-18): %w", s, err)
	}
	return Date{Year: t.Year(), Month: t.Month(), Day: t.Day()}, nil
}

// DateOf returns the local calendar date of t in loc.
func DateOf(t time.Time, loc *time.Location) Date {
	lt := t.In(loc)
	return Date{Year: lt.Year(), Month: lt.Month(), Day: lt.Day()}
}

// Today returns the current date in loc.
func Today(now time.Time, loc *time.Location) Date {
	return DateOf(now, loc)
}

func (d Date) String() string {
	return fmt.Sprintf("%04d-%02d-%02d", d.Year, int(d.Month), d.Day)
}

// IsZero reports whether d is the zero Date.
func (d Date) IsZero() bool {
	return d.Year == 0 && d.Month == 0 && d.Day == 0
}

// AddDays returns the date n days after d (n may be negative).
func (d Date) AddDays(n int) Date {
	return NewDate(d.Year, d.Month, d.Day+n)
}

// Start returns local midnight of d in loc.
func (d Date) Start(loc *time.Location) time.Time {
	return time.Date(d.Year, d.Month, d.Day, 0, 0, 0, 0, loc)
}

// Noon returns local noon of d in loc.
func (d Date) Noon(loc *time.Location) time.Time {
	return time.Date(d.Year, d.Month, d.Day, 12, 0, 0, 0, loc)
}

// Before reports whether d is strictly before o.
func (d Date) Before(o Date) bool {
	return d.compare(o) < 0
}

// After reports whether d is strictly after o.
func (d Date) After(o Date) bool {
	return d.compare(o) > 0
}

// DaysUntil returns the number of days from d to o (o - d).
func (d Date) DaysUntil(o Date) int {
	a := time.Date(d.Year, d.Month, d.Day, 0, 0, 0, 0, time.UTC)
	b := time.Date(o.Year, o.Month, o.Day, 0, 0, 0, 0, time.UTC)
	return int(b.Sub(a).Hours() / 24)
}

func (d Date) compare(o Date) int {
	switch {
	case d.Year != o.Year:
		return d.Year - o.Year
	case d.Month != o.Month:
		return int(d.Month) - int(o.Month)
	default:
		return d.Day - o.Day
	}
}

// MarshalText implements encoding.TextMarshaler.
func (d Date) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *Date) UnmarshalText(b []byte) error {
	parsed, err := ParseDate(string(b))
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// DateRange is an inclusive range of calendar dates.
type DateRange struct {
	From Date
	To   Date
}

// Bounds returns the half-open instant interval [start, end) covering the range in loc.
func (r DateRange) Bounds(loc *time.Location) (time.Time, time.Time) {
	return r.From.Start(loc), r.To.AddDays(1).Start(loc)
}

// Days returns the number of calendar days in the range, or 0 when To is before From.
func (r DateRange) Days() int {
	if r.To.Before(r.From) {
		return 0
	}
	return r.From.DaysUntil(r.To) + 1
}

// NewDateRange returns the range [from, to], rejecting an inverted range.
func NewDateRange(from, to Date) (DateRange, error) {
	if to.Before(from) {
		return DateRange{}, fmt.Errorf("%w: %s is before %s", ErrInvalidRange, to, from)
	}
	return DateRange{From: from, To: to}, nil
}

// Contains reports whether d falls inside the range.
func (r DateRange) Contains(d Date) bool {
	return !d.Before(r.From) && !d.After(r.To)
}

// Dates lists every date of the range in ascending order.
func (r DateRange) Dates() []Date {
	n := r.Days()
	out := make([]Date, 0, n)
	for i := 0; i < n; i++ {
		out = append(out, r.From.AddDays(i))
	}
	return out
}

func (r DateRange) String() string {
	if r.From == r.To {
		return r.From.String()
	}
	return r.From.String() + ".." + r.To.String()
}
