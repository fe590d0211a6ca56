package ports

import (
	"context"

	"github.com/aretw0/multipage/pkg/domain"
)

// FileSystem is the host file capability.
type FileSystem interface {
	Exists(path string) bool
	IsDirectory(path string) bool
	// ListFiles returns files under dir whose path relative to dir matches pattern.
	// An empty pattern matches everything.
	ListFiles(dir, pattern string, recursive bool) ([]string, error)
	Child(dir, name string) string
	Parent(path string) string
	// StartProcess launches path detached and reports whether it started.
	StartProcess(path string, args ...string) bool
}

// ProgressFunc receives the bytes written so far and the expected total (-1 if unknown).
type ProgressFunc func(done, total int64)

// Downloader is the network capability. Implementations must stream to dest
// and stop when ctx is cancelled.
type Downloader interface {
	Download(ctx context.Context, url, dest string, progress ProgressFunc) error
}

// ExtractOptions tunes an extraction.
type ExtractOptions struct {
	SkipFirstComponent bool
	DeleteSource       bool
	Overwrite          bool
}

// Extractor is the archive capability. It returns the extracted file paths.
type Extractor interface {
	Unzip(ctx context.Context, archive, dest string, opts ExtractOptions) ([]string, error)
}

// SettingsFile is a flat key/string document at a host-defined location.
type SettingsFile interface {
	// Read returns the whole document. A missing file reads as empty.
	Read(ctx context.Context) (map[string]string, error)
	// Write replaces the whole document.
	Write(ctx context.Context, values map[string]string) error
}

// RenderHost displays pages. It is a view, never a source of truth.
type RenderHost interface {
	Render(ctx context.Context, view domain.PageView) error
}
