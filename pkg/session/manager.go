package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/aretw0/multipage/internal/logging"
	"github.com/aretw0/multipage/internal/runtime"
	"github.com/aretw0/multipage/pkg/domain"
	"github.com/aretw0/multipage/pkg/ports"
)

// DefaultLockTTL bounds how long a distributed lock outlives a crashed holder.
const DefaultLockTTL = 30 * time.Second

// Factory builds an unstarted controller for a session id.
type Factory func(sessionID string) *runtime.Controller

// lockEntry holds the mutex and the reference count.
type lockEntry struct {
	mu   sync.Mutex
	refs int
}

// Manager orchestrates session access, ensuring safe concurrent operations.
// It uses reference counting to garbage collect unused locks.
type Manager struct {
	store   ports.SessionStore
	factory Factory

	mu    sync.Mutex
	locks map[string]*lockEntry
	live  map[string]*runtime.Controller

	locker    ports.DistributedLocker
	lockTTL   time.Duration
	stateless bool
	logger    *slog.Logger
}

// Option configures the Manager.
type Option func(*Manager)

// WithLocker enables distributed locking.
func WithLocker(locker ports.DistributedLocker) Option {
	return func(m *Manager) {
		m.locker = locker
	}
}

// WithLockTTL sets the distributed lock expiry.
func WithLockTTL(ttl time.Duration) Option {
	return func(m *Manager) {
		m.lockTTL = ttl
	}
}

// WithStateless drops controllers after every operation, so each call
// restores from the store. Use it when replicas share a store; running async
// tasks are then interrupted at the end of the call.
func WithStateless() Option {
	return func(m *Manager) {
		m.stateless = true
	}
}

// WithLogger configures a logger for the Manager.
func WithLogger(logger *slog.Logger) Option {
	return func(m *Manager) {
		m.logger = logger
	}
}

// NewManager creates a Session Manager over store.
func NewManager(store ports.SessionStore, factory Factory, opts ...Option) *Manager {
	m := &Manager{
		store:   store,
		factory: factory,
		locks:   make(map[string]*lockEntry),
		live:    make(map[string]*runtime.Controller),
		lockTTL: DefaultLockTTL,
		logger:  logging.NewNop(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// acquire gets or creates a lock entry and increments its reference count.
// The caller MUST Lock the entry.mu, and then call release(sessionID) after unlocking.
func (m *Manager) acquire(sessionID string) *lockEntry {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry, exists := m.locks[sessionID]
	if !exists {
		entry = &lockEntry{}
		m.locks[sessionID] = entry
	}
	entry.refs++
	return entry
}

// release decrements the reference count and deletes the entry if it reaches zero.
func (m *Manager) release(sessionID string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry, exists := m.locks[sessionID]
	if !exists {
		return
	}
	entry.refs--
	if entry.refs <= 0 {
		delete(m.locks, sessionID)
	}
}

// WithLock executes fn while holding the lock for the session.
func (m *Manager) WithLock(ctx context.Context, sessionID string, fn func(context.Context) error) error {
	entry := m.acquire(sessionID)
	entry.mu.Lock()
	defer func() {
		entry.mu.Unlock()
		m.release(sessionID)
	}()

	if m.locker != nil {
		unlock, err := m.locker.Lock(ctx, sessionID, m.lockTTL)
		if err != nil {
			return fmt.Errorf("failed to acquire distributed lock: %w", err)
		}
		defer func() {
			if err := unlock(context.WithoutCancel(ctx)); err != nil {
				m.logger.Warn("failed to release distributed lock (will expire via TTL)",
					"session_id", sessionID,
					"err", err,
				)
			}
		}()
	}

	return fn(ctx)
}

// Open resumes sessionID, or starts it on the first page when the store has
// no such session. An empty id starts a new session with a random id.
func (m *Manager) Open(ctx context.Context, sessionID string) (string, error) {
	if sessionID == "" {
		sessionID = uuid.NewString()
	}
	err := m.WithLock(ctx, sessionID, func(ctx context.Context) error {
		if _, err := m.controller(ctx, sessionID); err == nil {
			return nil
		} else if !errors.Is(err, domain.ErrSessionNotFound) {
			return fmt.Errorf("failed to check session existence: %w", err)
		}

		c := m.factory(sessionID)
		if err := c.Start(ctx); err != nil {
			return fmt.Errorf("failed to start session: %w", err)
		}
		m.logger.Info("session started", "session_id", sessionID, "page", c.Current())
		return m.commit(ctx, sessionID, c)
	})
	return sessionID, err
}

// Import stores snap as sessionID, replacing any existing session.
func (m *Manager) Import(ctx context.Context, sessionID string, snap domain.Snapshot) error {
	return m.WithLock(ctx, sessionID, func(ctx context.Context) error {
		m.drop(sessionID)
		snap.SessionID = sessionID
		c := m.factory(sessionID)
		if err := c.Restore(ctx, snap); err != nil {
			return err
		}
		return m.commit(ctx, sessionID, c)
	})
}

// Do runs fn against the session controller and saves the resulting snapshot,
// also when fn fails: a refused Advance may still follow accepted input.
func (m *Manager) Do(ctx context.Context, sessionID string, fn func(context.Context, *runtime.Controller) error) error {
	return m.WithLock(ctx, sessionID, func(ctx context.Context) error {
		c, err := m.controller(ctx, sessionID)
		if err != nil {
			return err
		}
		opErr := fn(ctx, c)
		if err := m.commit(ctx, sessionID, c); err != nil {
			return errors.Join(opErr, err)
		}
		return opErr
	})
}

// Snapshot returns the stored state of a session.
func (m *Manager) Snapshot(ctx context.Context, sessionID string) (domain.Snapshot, error) {
	var snap domain.Snapshot
	err := m.Do(ctx, sessionID, func(_ context.Context, c *runtime.Controller) error {
		snap = c.Snapshot()
		return nil
	})
	return snap, err
}

// Delete removes the session from memory and from the store.
func (m *Manager) Delete(ctx context.Context, sessionID string) error {
	return m.WithLock(ctx, sessionID, func(ctx context.Context) error {
		m.drop(sessionID)
		return m.store.Delete(ctx, sessionID)
	})
}

// List delegates to the store.
func (m *Manager) List(ctx context.Context) ([]string, error) {
	return m.store.List(ctx)
}

// Store returns the underlying session store.
func (m *Manager) Store() ports.SessionStore {
	return m.store
}

// controller returns the live controller or restores it. Callers hold the session lock.
func (m *Manager) controller(ctx context.Context, sessionID string) (*runtime.Controller, error) {
	m.mu.Lock()
	c, ok := m.live[sessionID]
	m.mu.Unlock()
	if ok {
		return c, nil
	}

	snap, err := m.store.Load(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	c = m.factory(sessionID)
	if err := c.Restore(ctx, *snap); err != nil {
		return nil, fmt.Errorf("failed to restore session %s: %w", sessionID, err)
	}
	m.logger.Debug("session restored", "session_id", sessionID, "page", c.Current())
	m.keep(sessionID, c)
	return c, nil
}

func (m *Manager) commit(ctx context.Context, sessionID string, c *runtime.Controller) error {
	snap := c.Snapshot()
	snap.SessionID = sessionID
	if err := m.store.Save(ctx, sessionID, &snap); err != nil {
		return fmt.Errorf("failed to save session %s: %w", sessionID, err)
	}
	if m.stateless {
		m.drop(sessionID)
	} else {
		m.keep(sessionID, c)
	}
	return nil
}

func (m *Manager) keep(sessionID string, c *runtime.Controller) {
	if m.stateless {
		return
	}
	m.mu.Lock()
	m.live[sessionID] = c
	m.mu.Unlock()
}

func (m *Manager) drop(sessionID string) {
	m.mu.Lock()
	delete(m.live, sessionID)
	m.mu.Unlock()
}
