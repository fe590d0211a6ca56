package memory

import (
	"context"
	"maps"
	"slices"
	"sync"

	"github.com/aretw0/multipage/pkg/domain"
	"github.com/aretw0/multipage/pkg/store"
)

// Store implements ports.SessionStore in memory.
// Safe for concurrent use.
type Store struct {
	data map[string]*domain.Snapshot
	mu   sync.RWMutex
}

// NewStore creates a new in-memory store.
func NewStore() *Store {
	return &Store{
		data: make(map[string]*domain.Snapshot),
	}
}

// clone copies a snapshot so that callers never share maps with the store.
func clone(snap *domain.Snapshot) (*domain.Snapshot, error) {
	out := *snap
	out.History = slices.Clone(snap.History)
	out.Tasks = maps.Clone(snap.Tasks)
	values, err := store.Normalize(snap.Values)
	if err != nil {
		return nil, err
	}
	out.Values, _ = values.(map[string]any)
	return &out, nil
}

// Save keeps a copy of the snapshot.
func (s *Store) Save(ctx context.Context, sessionID string, snap *domain.Snapshot) error {
	copied, err := clone(snap)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[sessionID] = copied
	return nil
}

// Load returns a copy of the stored snapshot.
func (s *Store) Load(ctx context.Context, sessionID string) (*domain.Snapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snap, ok := s.data[sessionID]
	if !ok {
		return nil, domain.ErrSessionNotFound
	}
	return clone(snap)
}

// Delete removes the snapshot.
func (s *Store) Delete(ctx context.Context, sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.data, sessionID)
	return nil
}

// List returns stored session IDs.
func (s *Store) List(ctx context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sessions := make([]string, 0, len(s.data))
	for id := range s.data {
		sessions = append(sessions, id)
	}
	return sessions, nil
}
