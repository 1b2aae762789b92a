// Package migrate applies the embedded schema migrations to the activity database.
package migrate

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"path"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/emiliopalmerini/mtrack/migrations"
)

var upPattern = regexp.MustCompile(`^(\d+)_(.+)\.up\.sql$`)

// Migration is a single versioned schema change.
type Migration struct {
	Version int
	Name    string
	UpSQL   string
	DownSQL string
}

// Runner applies migrations to db and reports progress on log.
type Runner struct {
	db  *sql.DB
	log *slog.Logger
	fs  fs.FS
}

// NewRunner returns a Runner over the embedded migration set.
func NewRunner(db *sql.DB, log *slog.Logger) *Runner {
	if log == nil {
		log = slog.Default()
	}
	return &Runner{db: db, log: log, fs: migrations.FS}
}

// EnsureTable creates schema_migrations when missing.
func (r *Runner) EnsureTable(ctx context.Context) error {
	_, err := r.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version INTEGER PRIMARY KEY,
			dirty INTEGER NOT NULL DEFAULT 0
		)
	`)
	return err
}

// CurrentVersion returns the applied version and whether the last run left it dirty.
func (r *Runner) CurrentVersion(ctx context.Context) (int, bool, error) {
	var version, dirty int
	err := r.db.QueryRowContext(ctx, `SELECT version, dirty FROM schema_migrations ORDER BY version DESC LIMIT 1`).Scan(&version, &dirty)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}
	return version, dirty == 1, nil
}

func (r *Runner) setVersion(ctx context.Context, version int, dirty bool) error {
	dirtyInt := 0
	if dirty {
		dirtyInt = 1
	}
	if _, err := r.db.ExecContext(ctx, `DELETE FROM schema_migrations`); err != nil {
		return err
	}
	if version == 0 {
		return nil
	}
	_, err := r.db.ExecContext(ctx, `INSERT INTO schema_migrations (version, dirty) VALUES (?, ?)`, version, dirtyInt)
	return err
}

// Load reads the migration files and returns them sorted by version.
func (r *Runner) Load() ([]Migration, error) {
	entries, err := fs.ReadDir(r.fs, ".")
	if err != nil {
		return nil, fmt.Errorf("read migrations: %w", err)
	}

	var result []Migration
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		matches := upPattern.FindStringSubmatch(e.Name())
		if matches == nil {
			continue
		}
		version, err := strconv.Atoi(matches[1])
		if err != nil {
			return nil, fmt.Errorf("migration %s: %w", e.Name(), err)
		}

		up, err := fs.ReadFile(r.fs, e.Name())
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", e.Name(), err)
		}
		downName := path.Join(path.Dir(e.Name()), fmt.Sprintf("%s_%s.down.sql", matches[1], matches[2]))
		down, err := fs.ReadFile(r.fs, downName)
		if err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("read %s: %w", downName, err)
		}

		result = append(result, Migration{
			Version: version,
			Name:    matches[2],
			UpSQL:   string(up),
			DownSQL: string(down),
		})
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].Version < result[j].Version
	})
	return result, nil
}

func (r *Runner) apply(ctx context.Context, m Migration, up bool) error {
	direction := "up"
	content := m.UpSQL
	target := m.Version
	if !up {
		direction = "down"
		content = m.DownSQL
		target = m.Version - 1
	}

	r.log.Info("applying migration", "version", m.Version, "name", m.Name, "direction", direction)

	if err := r.setVersion(ctx, m.Version, true); err != nil {
		return fmt.Errorf("set dirty flag: %w", err)
	}
	for _, stmt := range splitSQL(content) {
		if _, err := r.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migration %d %s: %w\nSQL: %s", m.Version, direction, err, stmt)
		}
	}
	if err := r.setVersion(ctx, target, false); err != nil {
		return fmt.Errorf("clear dirty flag: %w", err)
	}
	return nil
}

func splitSQL(content string) []string {
	var out []string
	for _, stmt := range strings.Split(content, ";") {
		if stmt = strings.TrimSpace(stmt); stmt != "" {
			out = append(out, stmt)
		}
	}
	return out
}

// prepare ensures the bookkeeping table exists and refuses to run on a dirty database.
func (r *Runner) prepare(ctx context.Context) (int, []Migration, error) {
	if err := r.EnsureTable(ctx); err != nil {
		return 0, nil, fmt.Errorf("create migrations table: %w", err)
	}
	current, dirty, err := r.CurrentVersion(ctx)
	if err != nil {
		return 0, nil, fmt.Errorf("get current version: %w", err)
	}
	if dirty {
		return 0, nil, fmt.Errorf("database is in dirty state at version %d", current)
	}
	all, err := r.Load()
	if err != nil {
		return 0, nil, fmt.Errorf("load migrations: %w", err)
	}
	return current, all, nil
}

// Up applies every pending migration and returns how many ran.
func (r *Runner) Up(ctx context.Context) (int, error) {
	current, all, err := r.prepare(ctx)
	if err != nil {
		return 0, err
	}
	count := 0
	for _, m := range all {
		if m.Version <= current {
			continue
		}
		if err := r.apply(ctx, m, true); err != nil {
			return count, err
		}
		count++
	}
	return count, nil
}

// To migrates up or down until target is the applied version.
func (r *Runner) To(ctx context.Context, target int) error {
	current, all, err := r.prepare(ctx)
	if err != nil {
		return err
	}
	if target < 0 {
		return fmt.Errorf("invalid target version %d", target)
	}

	if target >= current {
		for _, m := range all {
			if m.Version <= current {
				continue
			}
			if m.Version > target {
				break
			}
			if err := r.apply(ctx, m, true); err != nil {
				return err
			}
		}
		return nil
	}

	for i := len(all) - 1; i >= 0; i-- {
		m := all[i]
		if m.Version > current {
			continue
		}
		if m.Version <= target {
			break
		}
		if m.DownSQL == "" {
			return fmt.Errorf("no down migration for version %d", m.Version)
		}
		if err := r.apply(ctx, m, false); err != nil {
			return err
		}
	}
	return nil
}

// RunAll applies all pending migrations quietly. It is used on daemon start and in tests.
func RunAll(ctx context.Context, db *sql.DB) error {
	r := NewRunner(db, slog.New(slog.NewTextHandler(io.Discard, nil)))
	_, err := r.Up(ctx)
	return err
}
