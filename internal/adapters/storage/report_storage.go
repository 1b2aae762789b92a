package storage

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/emiliopalmerini/mtrack/internal/domain"
	"github.com/emiliopalmerini/mtrack/internal/ports"
)

// ReportStorage keeps report artifacts as <dir>/<date>.md and <dir>/<date>.json.
type ReportStorage struct {
	mu  sync.RWMutex
	dir string
}

func NewReportStorage(dir string) (*ReportStorage, error) {
	s := &ReportStorage{}
	if err := s.SetDir(dir); err != nil {
		return nil, err
	}
	return s, nil
}

// SetDir switches the directory new artifacts are written to.
func (s *ReportStorage) SetDir(dir string) error {
	if dir == "" {
		return fmt.Errorf("report directory is required")
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create report directory: %w", err)
	}
	s.mu.Lock()
	s.dir = dir
	s.mu.Unlock()
	return nil
}

func (s *ReportStorage) Dir() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.dir
}

func (s *ReportStorage) Path(date domain.Date, format ports.ArtifactFormat) string {
	ext := ".md"
	if format == ports.FormatJSON {
		ext = ".json"
	}
	return filepath.Join(s.Dir(), date.String()+ext)
}

func (s *ReportStorage) Read(ctx context.Context, date domain.Date, format ports.ArtifactFormat) ([]byte, error) {
	data, err := s.ReadPath(ctx, s.Path(date, format))
	if errors.Is(err, domain.ErrNotFound) {
		return nil, fmt.Errorf("%s report for %s: %w", format, date, domain.ErrNotFound)
	}
	return data, err
}

// ReadPath reads an artifact written to any report directory, including one
// that report_dir no longer points to.
func (s *ReportStorage) ReadPath(ctx context.Context, path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("report artifact %s: %w", path, domain.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to read report artifact: %w", err)
	}
	return data, nil
}

// Write stages both artifacts as temp files, then moves them into place.
// Existing artifacts are kept as backups until the commit is finished or reverted.
func (s *ReportStorage) Write(ctx context.Context, date domain.Date, markdown, json []byte) (ports.ArtifactCommit, error) {
	dir := s.Dir()
	targets := []*artifact{
		{final: s.Path(date, ports.FormatMarkdown), data: markdown},
		{final: s.Path(date, ports.FormatJSON), data: json},
	}

	for _, a := range targets {
		tmp, err := stage(dir, filepath.Base(a.final), a.data)
		if err != nil {
			cleanup(targets)
			return nil, err
		}
		a.tmp = tmp
	}
	if err := ctx.Err(); err != nil {
		cleanup(targets)
		return nil, err
	}

	c := &commit{targets: targets}
	for _, a := range targets {
		if err := a.swap(); err != nil {
			_ = c.Revert()
			cleanup(targets)
			return nil, fmt.Errorf("failed to place %s: %w", filepath.Base(a.final), err)
		}
	}
	return c, nil
}

type artifact struct {
	final  string
	tmp    string
	backup string
	placed bool
	data   []byte
}

func stage(dir, name string, data []byte) (string, error) {
	f, err := os.CreateTemp(dir, "."+name+".tmp-*")
	if err != nil {
		return "", fmt.Errorf("failed to create temp file: %w", err)
	}
	path := f.Name()
	if _, err := f.Write(data); err != nil {
		_ = f.Close()
		_ = os.Remove(path)
		return "", fmt.Errorf("failed to write %s: %w", name, err)
	}
	if err := f.Sync(); err != nil {
		_ = f.Close()
		_ = os.Remove(path)
		return "", fmt.Errorf("failed to sync %s: %w", name, err)
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(path)
		return "", fmt.Errorf("failed to close %s: %w", name, err)
	}
	return path, nil
}

func (a *artifact) swap() error {
	if _, err := os.Stat(a.final); err == nil {
		a.backup = a.tmp + ".bak"
		if err := os.Rename(a.final, a.backup); err != nil {
			a.backup = ""
			return err
		}
	} else if !errors.Is(err, os.ErrNotExist) {
		return err
	}
	if err := os.Rename(a.tmp, a.final); err != nil {
		return err
	}
	a.tmp = ""
	a.placed = true
	return nil
}

func cleanup(targets []*artifact) {
	for _, a := range targets {
		if a.tmp != "" {
			_ = os.Remove(a.tmp)
			a.tmp = ""
		}
	}
}

type commit struct {
	targets []*artifact
}

func (c *commit) Revert() error {
	var errs []error
	for _, a := range c.targets {
		if a.placed {
			if err := os.Remove(a.final); err != nil && !os.IsNotExist(err) {
				errs = append(errs, err)
			}
			a.placed = false
		}
		if a.backup != "" {
			if err := os.Rename(a.backup, a.final); err != nil {
				errs = append(errs, err)
			}
			a.backup = ""
		}
	}
	return errors.Join(errs...)
}

func (c *commit) Finish() error {
	var errs []error
	for _, a := range c.targets {
		if a.backup != "" {
			if err := os.Remove(a.backup); err != nil && !os.IsNotExist(err) {
				errs = append(errs, err)
			}
			a.backup = ""
		}
	}
	return errors.Join(errs...)
}
