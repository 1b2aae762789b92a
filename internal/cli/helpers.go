package cli

import (
	"fmt"

	"github.com/emiliopalmerini/mtrack/internal/domain"
)

// parseDateFlag parses a YYYY-MM-DD flag value, defaulting to def when empty.
func parseDateFlag(name, value string, def domain.Date) (domain.Date, error) {
	if value == "" {
		return def, nil
	}
	d, err := domain.ParseDate(value)
	if err != nil {
		return domain.Date{}, fmt.Errorf("invalid --%s: %w", name, err)
	}
	return d, nil
}

// rangeFlags resolves --from/--to. Both default to today; a lone --from
// extends to today.
func rangeFlags(from, to string, today domain.Date) (domain.DateRange, error) {
	f, err := parseDateFlag("from", from, today)
	if err != nil {
		return domain.DateRange{}, err
	}
	t, err := parseDateFlag("to", to, today)
	if err != nil {
		return domain.DateRange{}, err
	}
	return domain.NewDateRange(f, t)
}
