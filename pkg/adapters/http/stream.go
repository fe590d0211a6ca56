package http

import (
	"log/slog"
	"strings"
	"sync"

	"github.com/aretw0/multipage/pkg/domain"
)

// streamBuffer is how many diffs a slow SSE client may lag behind before
// diffs are dropped for it.
const streamBuffer = 10

// StreamManager fans snapshot diffs out to the SSE clients of each session.
type StreamManager struct {
	mu     sync.RWMutex
	subs   map[string]map[*subscriber]struct{}
	logger *slog.Logger
}

type subscriber struct {
	ch     chan *domain.SnapshotDiff
	fields []string
}

// NewStreamManager creates an empty StreamManager.
func NewStreamManager(logger *slog.Logger) *StreamManager {
	return &StreamManager{
		subs:   make(map[string]map[*subscriber]struct{}),
		logger: logger,
	}
}

// Subscribe registers a listener for sessionID. With fields set (values,
// history, current, status) only diffs touching one of them are delivered.
// The returned func unregisters the listener and closes its channel.
func (sm *StreamManager) Subscribe(sessionID string, fields ...string) (<-chan *domain.SnapshotDiff, func()) {
	sub := &subscriber{ch: make(chan *domain.SnapshotDiff, streamBuffer)}
	for _, f := range fields {
		if f = strings.TrimSpace(f); f != "" {
			sub.fields = append(sub.fields, f)
		}
	}

	sm.mu.Lock()
	defer sm.mu.Unlock()
	if sm.subs[sessionID] == nil {
		sm.subs[sessionID] = make(map[*subscriber]struct{})
	}
	sm.subs[sessionID][sub] = struct{}{}

	var once sync.Once
	return sub.ch, func() {
		once.Do(func() {
			sm.mu.Lock()
			defer sm.mu.Unlock()
			delete(sm.subs[sessionID], sub)
			if len(sm.subs[sessionID]) == 0 {
				delete(sm.subs, sessionID)
			}
			close(sub.ch)
		})
	}
}

// Subscribers returns the number of listeners of sessionID.
func (sm *StreamManager) Subscribers(sessionID string) int {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	return len(sm.subs[sessionID])
}

// Broadcast delivers diff to every interested listener without blocking.
func (sm *StreamManager) Broadcast(sessionID string, diff *domain.SnapshotDiff) {
	if diff == nil || diff.IsEmpty() {
		return
	}
	sm.mu.RLock()
	defer sm.mu.RUnlock()

	for sub := range sm.subs[sessionID] {
		if !sub.wants(diff) {
			continue
		}
		select {
		case sub.ch <- diff:
		default:
			sm.logger.Warn("sse client lagging, diff dropped", "session_id", sessionID)
		}
	}
}

func (s *subscriber) wants(diff *domain.SnapshotDiff) bool {
	if len(s.fields) == 0 {
		return true
	}
	for _, field := range s.fields {
		switch field {
		case "values":
			if len(diff.Values) > 0 {
				return true
			}
		case "history":
			if diff.History != nil {
				return true
			}
		case "current":
			if diff.Current != nil {
				return true
			}
		case "status":
			if diff.Status != nil {
				return true
			}
		}
	}
	return false
}
