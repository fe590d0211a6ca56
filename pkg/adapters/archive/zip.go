// Package archive implements the extraction capability for zip archives.
package archive

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/zip"

	"github.com/aretw0/multipage/pkg/ports"
)

// Zip implements ports.Extractor.
type Zip struct {
	logger *slog.Logger
}

var _ ports.Extractor = (*Zip)(nil)

// Option configures a Zip extractor.
type Option func(*Zip)

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(z *Zip) {
		z.logger = l
	}
}

// New creates a Zip extractor.
func New(opts ...Option) *Zip {
	z := &Zip{logger: slog.New(slog.DiscardHandler)}
	for _, opt := range opts {
		opt(z)
	}
	return z
}

// Unzip extracts archive into dest and returns the written file paths.
// Existing files are kept unless opts.Overwrite is set. Entries escaping dest
// are rejected.
func (z *Zip) Unzip(ctx context.Context, archive, dest string, opts ports.ExtractOptions) ([]string, error) {
	r, err := zip.OpenReader(archive)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", archive, err)
	}

	root, err := filepath.Abs(dest)
	if err != nil {
		_ = r.Close()
		return nil, err
	}

	var written []string
	for _, f := range r.File {
		if err := ctx.Err(); err != nil {
			_ = r.Close()
			return written, err
		}

		name := f.Name
		if opts.SkipFirstComponent {
			_, rest, found := strings.Cut(strings.TrimPrefix(name, "/"), "/")
			if !found || rest == "" {
				continue
			}
			name = rest
		}

		target := filepath.Join(root, filepath.FromSlash(name))
		if target != root && !strings.HasPrefix(target, root+string(os.PathSeparator)) {
			_ = r.Close()
			return written, fmt.Errorf("entry %q escapes %s", f.Name, dest)
		}

		if f.FileInfo().IsDir() {
			if err := os.MkdirAll(target, 0755); err != nil {
				_ = r.Close()
				return written, err
			}
			continue
		}
		if !opts.Overwrite {
			if _, err := os.Stat(target); err == nil {
				z.logger.Debug("keeping existing file", "path", target)
				continue
			}
		}
		if err := extractFile(f, target); err != nil {
			_ = r.Close()
			return written, fmt.Errorf("extract %s: %w", f.Name, err)
		}
		written = append(written, target)
	}

	if err := r.Close(); err != nil {
		return written, err
	}
	if opts.DeleteSource {
		if err := os.Remove(archive); err != nil {
			return written, fmt.Errorf("delete source: %w", err)
		}
	}
	z.logger.Debug("archive extracted", "archive", archive, "files", len(written))
	return written, nil
}

func extractFile(f *zip.File, target string) error {
	if err := os.MkdirAll(filepath.Dir(target), 0755); err != nil {
		return err
	}
	src, err := f.Open()
	if err != nil {
		return err
	}
	defer src.Close()

	mode := f.Mode().Perm()
	if mode == 0 {
		mode = 0644
	}
	dst, err := os.OpenFile(target, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, mode)
	if err != nil {
		return err
	}
	if _, err := io.Copy(dst, src); err != nil {
		_ = dst.Close()
		return err
	}
	return dst.Close()
}
