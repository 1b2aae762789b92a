package ports

import (
	"context"

	"github.com/emiliopalmerini/mtrack/internal/domain"
)

// ArtifactFormat names one of the two rendered report artifacts.
type ArtifactFormat string

const (
	FormatMarkdown ArtifactFormat = "markdown"
	FormatJSON     ArtifactFormat = "json"
)

// ReportStorage stores rendered report artifacts addressed by date.
type ReportStorage interface {
	// Write places both artifacts for date, or neither. The returned commit
	// keeps the previous artifacts until Finish so the caller can Revert if
	// persisting the metadata fails.
	Write(ctx context.Context, date domain.Date, markdown, json []byte) (ArtifactCommit, error)
	// Read returns the artifact bytes, wrapping domain.ErrNotFound when absent.
	Read(ctx context.Context, date domain.Date, format ArtifactFormat) ([]byte, error)
	// ReadPath returns the artifact stored at path, as recorded in report
	// metadata, wrapping domain.ErrNotFound when absent.
	ReadPath(ctx context.Context, path string) ([]byte, error)
	// Path returns the deterministic location of an artifact.
	Path(date domain.Date, format ArtifactFormat) string
}

// ArtifactCommit finalizes or rolls back one ReportStorage.Write.
type ArtifactCommit interface {
	// Revert restores the artifacts that existed before Write.
	Revert() error
	// Finish discards the backups of the previous artifacts.
	Finish() error
}
