// Package fs implements the host file capability on the local disk.
package fs

import (
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"slices"
	"strings"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/aretw0/multipage/pkg/ports"
)

// FileSystem implements ports.FileSystem over the os package.
//
// StartProcess follows an allow-list: when commands are registered only
// those may be launched. An empty list allows any path.
type FileSystem struct {
	allowed map[string]bool
	baseDir string
	logger  *slog.Logger
}

var _ ports.FileSystem = (*FileSystem)(nil)

// Option configures a FileSystem.
type Option func(*FileSystem)

// WithAllowedCommands restricts StartProcess to the given executables.
func WithAllowedCommands(paths ...string) Option {
	return func(f *FileSystem) {
		for _, p := range paths {
			f.allowed[filepath.Clean(p)] = true
		}
	}
}

// WithBaseDir sets the working directory for launched processes.
func WithBaseDir(dir string) Option {
	return func(f *FileSystem) {
		f.baseDir = dir
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(f *FileSystem) {
		f.logger = l
	}
}

// New creates a FileSystem.
func New(opts ...Option) *FileSystem {
	f := &FileSystem{
		allowed: make(map[string]bool),
		logger:  slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

func (f *FileSystem) Exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

func (f *FileSystem) IsDirectory(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}

// ListFiles returns the files under dir matching a doublestar pattern,
// sorted. With recursive set a pattern without a directory part matches
// file names at any depth.
func (f *FileSystem) ListFiles(dir, pattern string, recursive bool) ([]string, error) {
	if pattern == "" {
		pattern = "*"
	}
	if recursive && !strings.Contains(pattern, "/") {
		pattern = "**/" + pattern
	}
	if !doublestar.ValidatePattern(pattern) {
		return nil, fmt.Errorf("invalid pattern %q: %w", pattern, doublestar.ErrBadPattern)
	}

	matches, err := doublestar.Glob(os.DirFS(dir), pattern, doublestar.WithFilesOnly())
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", dir, err)
	}
	out := make([]string, len(matches))
	for i, m := range matches {
		out[i] = filepath.Join(dir, filepath.FromSlash(m))
	}
	slices.Sort(out)
	return out, nil
}

func (f *FileSystem) Child(dir, name string) string {
	return filepath.Join(dir, name)
}

func (f *FileSystem) Parent(path string) string {
	return filepath.Dir(path)
}

// StartProcess launches path without waiting for it to exit.
func (f *FileSystem) StartProcess(path string, args ...string) bool {
	if len(f.allowed) > 0 && !f.allowed[filepath.Clean(path)] {
		f.logger.Warn("process not allowed", "path", path)
		return false
	}

	cmd := exec.Command(path, args...)
	if f.baseDir != "" {
		cmd.Dir = f.baseDir
	}
	if err := cmd.Start(); err != nil {
		f.logger.Warn("process failed to start", "path", path, "err", err)
		return false
	}
	f.logger.Info("process started", "path", path, "pid", cmd.Process.Pid)

	go func() {
		if err := cmd.Wait(); err != nil {
			f.logger.Debug("process exited", "path", path, "err", err)
		}
	}()
	return true
}
