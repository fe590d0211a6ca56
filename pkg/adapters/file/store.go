// Package file provides filesystem-backed adapters: a session store that
// keeps one JSON snapshot per session, and the persistent settings file.
package file

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/aretw0/multipage/pkg/domain"
)

// Store implements ports.SessionStore using the local filesystem.
type Store struct {
	BasePath string
}

// New creates a Store rooted at basePath, ".multipage/sessions" when empty.
func New(basePath string) *Store {
	if basePath == "" {
		basePath = filepath.Join(".multipage", "sessions")
	}
	return &Store{BasePath: basePath}
}

func (s *Store) path(sessionID string) (string, error) {
	if sessionID == "" {
		return "", errors.New("sessionID cannot be empty")
	}
	if strings.ContainsAny(sessionID, `/\`) || sessionID == "." || sessionID == ".." {
		return "", fmt.Errorf("invalid sessionID %q", sessionID)
	}
	return filepath.Join(s.BasePath, sessionID+".json"), nil
}

// Save persists the snapshot atomically.
func (s *Store) Save(ctx context.Context, sessionID string, snap *domain.Snapshot) error {
	dest, err := s.path(sessionID)
	if err != nil {
		return err
	}
	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal snapshot: %w", err)
	}
	return writeAtomic(dest, data)
}

// Load reads a snapshot. Numbers come back as json.Number, like the live store.
func (s *Store) Load(ctx context.Context, sessionID string) (*domain.Snapshot, error) {
	src, err := s.path(sessionID)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(src)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, domain.ErrSessionNotFound
		}
		return nil, fmt.Errorf("failed to read session file: %w", err)
	}

	var snap domain.Snapshot
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	if err := dec.Decode(&snap); err != nil {
		return nil, fmt.Errorf("failed to unmarshal session snapshot: %w", err)
	}
	return &snap, nil
}

// Delete removes the session file. Missing sessions are not an error.
func (s *Store) Delete(ctx context.Context, sessionID string) error {
	p, err := s.path(sessionID)
	if err != nil {
		return err
	}
	if err := os.Remove(p); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete session file: %w", err)
	}
	return nil
}

// List returns the stored session IDs.
func (s *Store) List(ctx context.Context) ([]string, error) {
	entries, err := os.ReadDir(s.BasePath)
	if err != nil {
		if os.IsNotExist(err) {
			return []string{}, nil
		}
		return nil, fmt.Errorf("failed to list sessions: %w", err)
	}

	sessions := []string{}
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || filepath.Ext(name) != ".json" || strings.HasPrefix(name, "tmp-") {
			continue
		}
		sessions = append(sessions, strings.TrimSuffix(name, ".json"))
	}
	return sessions, nil
}
