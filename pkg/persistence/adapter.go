// Package persistence keeps selected State Store keys in a settings file that
// survives sessions, such as the install root a user picked last time.
package persistence

import (
	"context"
	"errors"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/aretw0/multipage/pkg/domain"
	"github.com/aretw0/multipage/pkg/ports"
	"github.com/aretw0/multipage/pkg/store"
)

// Adapter maps store keys onto a flat settings file. Values are written as
// strings; typed readers in pkg/store parse them back.
type Adapter struct {
	file   ports.SettingsFile
	logger *slog.Logger
}

// Option configures an Adapter.
type Option func(*Adapter)

// WithLogger sets the structured logger.
func WithLogger(l *slog.Logger) Option {
	return func(a *Adapter) { a.logger = l }
}

// New creates an Adapter over file.
func New(file ports.SettingsFile, opts ...Option) *Adapter {
	a := &Adapter{file: file}
	for _, opt := range opts {
		opt(a)
	}
	if a.logger == nil {
		a.logger = slog.New(slog.DiscardHandler)
	}
	return a
}

// Load returns the persisted values of keys. Keys absent from the file are
// absent from the result.
func (a *Adapter) Load(ctx context.Context, keys []string) (map[string]any, error) {
	doc, err := a.file.Read(ctx)
	if err != nil {
		return nil, &domain.PersistenceError{Op: "load", Keys: keys, Err: err}
	}
	out := make(map[string]any, len(keys))
	for _, k := range keys {
		if v, ok := doc[k]; ok {
			out[k] = v
		}
	}
	return out, nil
}

// Save writes keys from the snapshot document values over the existing file.
// Keys the file already holds for other pages are preserved.
func (a *Adapter) Save(ctx context.Context, keys []string, values map[string]any) error {
	doc, err := a.file.Read(ctx)
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return &domain.PersistenceError{Op: "save", Keys: keys, Err: err}
	}
	if doc == nil {
		doc = make(map[string]string)
	}
	for _, k := range keys {
		v, ok := store.Lookup(values, k)
		if !ok {
			a.logger.Debug("settings key unset, not saved", "key", k)
			continue
		}
		doc[k] = store.Stringify(v)
	}
	if err := a.file.Write(ctx, doc); err != nil {
		return &domain.PersistenceError{Op: "save", Keys: keys, Err: err}
	}
	return nil
}

// DefaultPath returns <user config dir>/<company>/<project>/settings.<ext>.
func DefaultPath(company, project, ext string) (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", err
	}
	if ext == "" {
		ext = "json"
	}
	return filepath.Join(dir, company, project, "settings."+ext), nil
}
