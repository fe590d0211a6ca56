// Package sqlite provides a SQLite-backed session store.
//
// The caller opens the database and imports a driver, for example:
//
//	import _ "modernc.org/sqlite"
package sqlite

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/aretw0/multipage/pkg/domain"
	"github.com/aretw0/multipage/pkg/ports"
)

// Store implements ports.SessionStore over a single table.
type Store struct {
	db *sql.DB
}

var _ ports.SessionStore = (*Store)(nil)

// New creates the schema if needed and returns a Store.
func New(ctx context.Context, db *sql.DB) (*Store, error) {
	s := &Store{db: db}
	if err := s.initSchema(ctx); err != nil {
		return nil, fmt.Errorf("sqlite: init schema: %w", err)
	}
	return s, nil
}

func (s *Store) initSchema(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS sessions (
			id TEXT PRIMARY KEY,
			current_page TEXT NOT NULL,
			status TEXT NOT NULL,
			snapshot BLOB NOT NULL,
			updated_at INTEGER NOT NULL
		);`,
	)
	return err
}

// Save upserts the snapshot.
func (s *Store) Save(ctx context.Context, sessionID string, snap *domain.Snapshot) error {
	data, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("sqlite: marshal snapshot: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO sessions (id, current_page, status, snapshot, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			current_page = excluded.current_page,
			status = excluded.status,
			snapshot = excluded.snapshot,
			updated_at = excluded.updated_at`,
		sessionID,
		snap.Current,
		string(snap.Status),
		data,
		time.Now().UnixNano(),
	)
	if err != nil {
		return fmt.Errorf("sqlite: save %s: %w", sessionID, err)
	}
	return nil
}

// Load reads a snapshot. Numbers come back as json.Number.
func (s *Store) Load(ctx context.Context, sessionID string) (*domain.Snapshot, error) {
	var data []byte
	err := s.db.QueryRowContext(ctx, `SELECT snapshot FROM sessions WHERE id = ?`, sessionID).Scan(&data)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrSessionNotFound
		}
		return nil, fmt.Errorf("sqlite: load %s: %w", sessionID, err)
	}

	var snap domain.Snapshot
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	if err := dec.Decode(&snap); err != nil {
		return nil, fmt.Errorf("sqlite: decode %s: %w", sessionID, err)
	}
	return &snap, nil
}

// Delete removes a session. Deleting a missing session is not an error.
func (s *Store) Delete(ctx context.Context, sessionID string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM sessions WHERE id = ?`, sessionID); err != nil {
		return fmt.Errorf("sqlite: delete %s: %w", sessionID, err)
	}
	return nil
}

// List returns session ids, most recently saved first.
func (s *Store) List(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id FROM sessions ORDER BY updated_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("sqlite: list: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
