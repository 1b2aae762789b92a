// Package aggregate sums activity durations over a date range and flags
// categories whose usage drifts from their trailing baseline.
package aggregate

import (
	"context"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/montanaflynn/stats"

	"github.com/emiliopalmerini/mtrack/internal/domain"
)

// Source is the read side of the activity store. Records come back with
// their category resolved from the current rules.
type Source interface {
	Query(ctx context.Context, r domain.DateRange, filter domain.ActivityFilter) ([]*domain.ActivityRecord, error)
	Location() *time.Location
}

// Options tune ranking and anomaly detection.
type Options struct {
	TopN         int
	TopDomains   int
	BaselineDays int
	Threshold    float64
}

// DefaultOptions mirrors the default settings.
func DefaultOptions() Options {
	return Options{TopN: 5, TopDomains: 10, BaselineDays: 7, Threshold: 0.5}
}

// Result is the aggregate of one date range.
type Result struct {
	Range          domain.DateRange      `json:"-"`
	TotalSeconds   int64                 `json:"total_seconds"`
	AppSeconds     int64                 `json:"app_seconds"`
	DomainSeconds  int64                 `json:"domain_seconds"`
	CategoryTotals map[string]int64      `json:"category_totals"`
	TopSubjects    []domain.SubjectTotal `json:"top_subjects"`
	TopApps        []domain.SubjectTotal `json:"top_apps"`
	TopDomains     []domain.SubjectTotal `json:"top_domains"`
	Anomalies      []domain.Anomaly      `json:"anomalies"`
}

// Categories returns the categories of the result sorted by duration
// descending, then name.
func (r *Result) Categories() []string {
	names := make([]string, 0, len(r.CategoryTotals))
	for name := range r.CategoryTotals {
		names = append(names, name)
	}
	sort.Slice(names, func(i, j int) bool {
		a, b := r.CategoryTotals[names[i]], r.CategoryTotals[names[j]]
		if a != b {
			return a > b
		}
		return names[i] < names[j]
	})
	return names
}

type Aggregator struct {
	src Source
}

func New(src Source) *Aggregator {
	return &Aggregator{src: src}
}

// Aggregate computes totals, rankings and anomalies for r. An empty range
// yields zero totals and no anomalies.
func (a *Aggregator) Aggregate(ctx context.Context, r domain.DateRange, opts Options) (*Result, error) {
	if r.To.Before(r.From) {
		return nil, fmt.Errorf("%w: %s is before %s", domain.ErrInvalidRange, r.To, r.From)
	}
	opts = opts.withDefaults()

	records, err := a.src.Query(ctx, r, domain.ActivityFilter{})
	if err != nil {
		return nil, err
	}

	res := &Result{
		Range:          r,
		CategoryTotals: make(map[string]int64),
		TopSubjects:    []domain.SubjectTotal{},
		TopApps:        []domain.SubjectTotal{},
		TopDomains:     []domain.SubjectTotal{},
		Anomalies:      []domain.Anomaly{},
	}
	subjects := make(map[subjectKey]int64)
	for _, rec := range records {
		res.TotalSeconds += rec.DurationSeconds
		if rec.SubjectKind == domain.SubjectDomain {
			res.DomainSeconds += rec.DurationSeconds
		} else {
			res.AppSeconds += rec.DurationSeconds
		}
		res.CategoryTotals[rec.CategoryOr(domain.Uncategorized)] += rec.DurationSeconds
		subjects[subjectKey{rec.Subject, rec.SubjectKind}] += rec.DurationSeconds
	}
	if len(records) == 0 {
		return res, nil
	}

	ranked := rank(subjects)
	res.TopSubjects = top(ranked, opts.TopN, "")
	res.TopApps = top(ranked, opts.TopN, domain.SubjectApp)
	res.TopDomains = top(ranked, opts.TopDomains, domain.SubjectDomain)

	res.Anomalies, err = a.anomalies(ctx, res, opts)
	if err != nil {
		return nil, err
	}
	return res, nil
}

// anomalies compares the per-day mean of every category seen in the range or
// its baseline window with its per-day mean over the BaselineDays preceding
// the range. A category absent from the range is observed at zero.
func (a *Aggregator) anomalies(ctx context.Context, res *Result, opts Options) ([]domain.Anomaly, error) {
	baseRange := domain.DateRange{
		From: res.Range.From.AddDays(-opts.BaselineDays),
		To:   res.Range.From.AddDays(-1),
	}
	history, err := a.src.Query(ctx, baseRange, domain.ActivityFilter{})
	if err != nil {
		return nil, err
	}

	loc := a.src.Location()
	perDay := make(map[string]map[domain.Date]int64)
	for _, rec := range history {
		category := rec.CategoryOr(domain.Uncategorized)
		if perDay[category] == nil {
			perDay[category] = make(map[domain.Date]int64)
		}
		perDay[category][domain.DateOf(rec.Timestamp, loc)] += rec.DurationSeconds
	}

	days := float64(res.Range.Days())
	anomalies := []domain.Anomaly{}
	categories := make(map[string]int64, len(res.CategoryTotals)+len(perDay))
	for category := range perDay {
		categories[category] = 0
	}
	for category, secs := range res.CategoryTotals {
		categories[category] = secs
	}
	for _, category := range sortedKeys(categories) {
		series := make(stats.Float64Data, 0, opts.BaselineDays)
		for _, d := range baseRange.Dates() {
			series = append(series, float64(perDay[category][d]))
		}
		baseline, err := series.Mean()
		if err != nil || baseline <= 0 {
			continue
		}

		observed := float64(categories[category]) / days
		ratio := (observed - baseline) / baseline
		if math.Abs(ratio) <= opts.Threshold {
			continue
		}
		anomalies = append(anomalies, domain.Anomaly{
			Category:       category,
			Observed:       round(observed),
			Baseline:       round(baseline),
			DeviationRatio: round(ratio),
		})
	}
	return anomalies, nil
}

func (o Options) withDefaults() Options {
	d := DefaultOptions()
	if o.TopN <= 0 {
		o.TopN = d.TopN
	}
	if o.TopDomains <= 0 {
		o.TopDomains = d.TopDomains
	}
	if o.BaselineDays <= 0 {
		o.BaselineDays = d.BaselineDays
	}
	if o.Threshold <= 0 {
		o.Threshold = d.Threshold
	}
	return o
}

type subjectKey struct {
	subject string
	kind    domain.SubjectKind
}

// rank orders subjects by duration descending, then subject ascending.
func rank(subjects map[subjectKey]int64) []domain.SubjectTotal {
	out := make([]domain.SubjectTotal, 0, len(subjects))
	for k, secs := range subjects {
		out = append(out, domain.SubjectTotal{Subject: k.subject, SubjectKind: k.kind, DurationSeconds: secs})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].DurationSeconds != out[j].DurationSeconds {
			return out[i].DurationSeconds > out[j].DurationSeconds
		}
		if out[i].Subject != out[j].Subject {
			return out[i].Subject < out[j].Subject
		}
		return out[i].SubjectKind < out[j].SubjectKind
	})
	return out
}

// top returns the first n ranked entries of kind; an empty kind matches all.
func top(ranked []domain.SubjectTotal, n int, kind domain.SubjectKind) []domain.SubjectTotal {
	out := make([]domain.SubjectTotal, 0, n)
	for _, st := range ranked {
		if len(out) == n {
			break
		}
		if kind != "" && st.SubjectKind != kind {
			continue
		}
		out = append(out, st)
	}
	return out
}

func sortedKeys(m map[string]int64) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func round(v float64) float64 {
	r, err := stats.Round(v, 2)
	if err != nil {
		return v
	}
	return r
}
