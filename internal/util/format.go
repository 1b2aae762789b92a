package util

import (
	"fmt"
	"time"
)

// FormatDuration renders whole seconds the way reports show them.
// Examples: 8100 -> "2h 15m", 303 -> "5m 3s", 45 -> "45s"
func FormatDuration(seconds int64) string {
	if seconds < 0 {
		seconds = 0
	}
	h := seconds / 3600
	m := (seconds % 3600) / 60
	s := seconds % 60
	switch {
	case h > 0:
		return fmt.Sprintf("%dh %dm", h, m)
	case m > 0:
		return fmt.Sprintf("%dm %ds", m, s)
	default:
		return fmt.Sprintf("%ds", s)
	}
}

// FormatNumber formats an int64 with K/M suffix for readability.
// Examples: 500 -> "500", 1500 -> "1.5K", 1500000 -> "1.5M"
func FormatNumber(n int64) string {
	if n < 1000 {
		return fmt.Sprintf("%d", n)
	}
	if n < 1000000 {
		return fmt.Sprintf("%.1fK", float64(n)/1000)
	}
	return fmt.Sprintf("%.1fM", float64(n)/1000000)
}

// FormatPercent formats part/total as a whole percentage. A zero total yields "0%".
func FormatPercent(part, total int64) string {
	if total <= 0 {
		return "0%"
	}
	return fmt.Sprintf("%.0f%%", float64(part)*100/float64(total))
}

// FormatSignedRatio formats a deviation ratio as a signed percentage, e.g. 0.62 -> "+62%".
func FormatSignedRatio(r float64) string {
	return fmt.Sprintf("%+.0f%%", r*100)
}

// FormatDateTime formats t in loc as "2006-01-02 15:04". The zero time renders as "-".
func FormatDateTime(t time.Time, loc *time.Location) string {
	if t.IsZero() {
		return "-"
	}
	return t.In(loc).Format("2006-01-02 15:04")
}
