package ports

import (
	"context"

	"github.com/emiliopalmerini/mtrack/internal/domain"
)

// Notifier delivers a local alert when a report is ready.
type Notifier interface {
	ReportReady(ctx context.Context, r *domain.DailyReport) error
}
