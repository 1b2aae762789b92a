package domain

import "errors"

var (
	// ErrInvalidRecord is returned when an activity record fails validation at the ingestion boundary.
	ErrInvalidRecord = errors.New("invalid activity record")
	// ErrStoreUnavailable is returned when the durable store cannot be read or written.
	ErrStoreUnavailable = errors.New("activity store unavailable")
	// ErrScheduleMisconfigured is returned for an unparsable report time or cron expression.
	ErrScheduleMisconfigured = errors.New("report schedule misconfigured")
	// ErrGenerationFailed is returned when report artifacts could not be rendered or persisted.
	ErrGenerationFailed = errors.New("report generation failed")
	// ErrInvalidRule is returned when a category rule table fails validation.
	ErrInvalidRule = errors.New("invalid category rule")
	// ErrNotFound is returned when a requested report or record does not exist.
	ErrNotFound = errors.New("not found")
	// ErrInvalidRange is returned when a date range ends before it starts.
	ErrInvalidRange = errors.New("invalid date range")
)
