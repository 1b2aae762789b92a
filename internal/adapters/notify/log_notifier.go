// Package notify delivers local report notifications.
package notify

import (
	"context"
	"log/slog"

	"github.com/emiliopalmerini/mtrack/internal/domain"
	"github.com/emiliopalmerini/mtrack/internal/util"
)

// LogNotifier announces generated reports on the daemon log.
type LogNotifier struct {
	log *slog.Logger
}

func NewLogNotifier(log *slog.Logger) *LogNotifier {
	return &LogNotifier{log: log}
}

func (n *LogNotifier) ReportReady(ctx context.Context, r *domain.DailyReport) error {
	var total int64
	for _, s := range r.CategoryTotals {
		total += s
	}
	attrs := []any{
		"date", r.Date.String(),
		"tracked", util.FormatDuration(total),
		"anomalies", len(r.Anomalies),
		"markdown", r.MarkdownPath,
	}
	if len(r.TopSubjects) > 0 {
		attrs = append(attrs, "top", r.TopSubjects[0].Subject)
	}
	n.log.InfoContext(ctx, "daily report ready", attrs...)
	return nil
}
