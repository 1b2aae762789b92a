package turso

import (
	"database/sql"

	"github.com/emiliopalmerini/mtrack/internal/ports"
)

// Repositories holds all turso repository implementations as port interfaces.
type Repositories struct {
	Activities ports.ActivityRepository
	Rules      ports.CategoryRuleRepository
	Reports    ports.ReportRepository
	Schedule   ports.ScheduleRepository
}

// NewRepositories creates all turso repository implementations from a database connection.
func NewRepositories(db *sql.DB) *Repositories {
	return &Repositories{
		Activities: NewActivityRepository(db),
		Rules:      NewCategoryRuleRepository(db),
		Reports:    NewReportRepository(db),
		Schedule:   NewScheduleRepository(db),
	}
}
