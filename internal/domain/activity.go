package domain

import (
	"fmt"
	"strings"
	"time"
)

// PollingSeconds is the fixed duration credited to every app/window sample.
const PollingSeconds = 300

// SubjectKind tells whether an activity subject is an application or a browsing domain.
type SubjectKind string

const (
	SubjectApp    SubjectKind = "app"
	SubjectDomain SubjectKind = "domain"
)

// ParseSubjectKind parses a kind name, accepting the capitalized forms too.
func ParseSubjectKind(s string) (SubjectKind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "app":
		return SubjectApp, nil
	case "domain":
		return SubjectDomain, nil
	default:
		return "", fmt.Errorf("%w: unknown subject kind %q", ErrInvalidRecord, s)
	}
}

// Valid reports whether k is a known kind.
func (k SubjectKind) Valid() bool {
	return k == SubjectApp || k == SubjectDomain
}

// ActivityRecord is one atomic unit of observed usage. Records are immutable
// once written; only the category annotation is ever rewritten, and only by
// the category engine.
type ActivityRecord struct {
	ID              string      `json:"id"`
	Timestamp       time.Time   `json:"timestamp"`
	Subject         string      `json:"subject"`
	SubjectKind     SubjectKind `json:"subject_kind"`
	WindowTitle     *string     `json:"window_title,omitempty"`
	DurationSeconds int64       `json:"duration_seconds"`
	Category        *string     `json:"category"`
}

// CategoryOr returns the resolved category or fallback when the record is not categorized.
func (r *ActivityRecord) CategoryOr(fallback string) string {
	if r.Category == nil || *r.Category == "" {
		return fallback
	}
	return *r.Category
}

// Validate checks the ingestion invariants. It does not mutate r.
func (r *ActivityRecord) Validate() error {
	if r.DurationSeconds <= 0 {
		return fmt.Errorf("%w: duration_seconds must be positive, got %d", ErrInvalidRecord, r.DurationSeconds)
	}
	if !r.SubjectKind.Valid() {
		return fmt.Errorf("%w: unknown subject kind %q", ErrInvalidRecord, r.SubjectKind)
	}
	if strings.TrimSpace(r.Subject) == "" {
		return fmt.Errorf("%w: subject is required", ErrInvalidRecord)
	}
	if r.Timestamp.IsZero() {
		return fmt.Errorf("%w: timestamp is required", ErrInvalidRecord)
	}
	if r.SubjectKind == SubjectDomain {
		if r.WindowTitle != nil {
			return fmt.Errorf("%w: window_title is only valid for app records", ErrInvalidRecord)
		}
		if strings.ContainsAny(strings.TrimSpace(r.Subject), " \t\n/") {
			return fmt.Errorf("%w: %q is not a domain", ErrInvalidRecord, r.Subject)
		}
	}
	return nil
}

// NormalizeSubject trims the subject and, for domains, lower-cases it and drops a leading "www.".
func NormalizeSubject(subject string, kind SubjectKind) string {
	s := strings.TrimSpace(subject)
	if kind == SubjectDomain {
		s = strings.TrimPrefix(strings.ToLower(s), "www.")
	}
	return s
}

// ActivityFilter narrows a range query. Zero values match everything.
type ActivityFilter struct {
	Category    string
	SubjectKind SubjectKind
}

// Matches reports whether r passes the filter. Category is compared against
// the supplied resolved category.
func (f ActivityFilter) Matches(r *ActivityRecord, category string) bool {
	if f.SubjectKind != "" && r.SubjectKind != f.SubjectKind {
		return false
	}
	if f.Category != "" && !strings.EqualFold(category, f.Category) {
		return false
	}
	return true
}

// DomainVisit is one aggregated browsing-domain entry from a history import.
type DomainVisit struct {
	Domain          string `json:"domain"`
	DurationSeconds int64  `json:"duration_seconds"`
}
