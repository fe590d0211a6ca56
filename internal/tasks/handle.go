package tasks

import (
	"context"
	"sync"

	"github.com/aretw0/multipage/pkg/domain"
	"golang.org/x/sync/errgroup"
)

// Handle tracks one task run. Sync runs return an already finished handle.
type Handle struct {
	TaskID   string
	PageID   string
	Required bool

	done   chan struct{}
	cancel context.CancelFunc

	mu      sync.Mutex
	outcome domain.Outcome
}

func newHandle(pageID string, t domain.Task) *Handle {
	return &Handle{
		TaskID:   t.ID,
		PageID:   pageID,
		Required: t.Required,
		done:     make(chan struct{}),
		outcome:  domain.Pending(),
		cancel:   func() {},
	}
}

// Finished builds a handle that is already done with the given outcome.
// It is used when restoring recorded task outcomes.
func Finished(pageID string, t domain.Task, o domain.Outcome) *Handle {
	h := newHandle(pageID, t)
	h.finish(o)
	return h
}

// Done is closed once the outcome is final.
func (h *Handle) Done() <-chan struct{} {
	return h.done
}

// Outcome returns the current outcome; Pending until the task finishes.
func (h *Handle) Outcome() domain.Outcome {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.outcome
}

// Status is a shortcut for Outcome().Status.
func (h *Handle) Status() domain.TaskStatus {
	return h.Outcome().Status
}

// Wait blocks until the task finishes or ctx ends.
func (h *Handle) Wait(ctx context.Context) (domain.Outcome, error) {
	select {
	case <-h.done:
		return h.Outcome(), nil
	case <-ctx.Done():
		return h.Outcome(), ctx.Err()
	}
}

// Cancel asks a running task to stop. The task reports Failed once it returns.
func (h *Handle) Cancel() {
	h.cancel()
}

func (h *Handle) finish(o domain.Outcome) {
	h.mu.Lock()
	h.outcome = o
	h.mu.Unlock()
	close(h.done)
}

// Wait blocks until every handle finished. It returns early only when ctx ends.
func Wait(ctx context.Context, handles ...*Handle) error {
	g, gctx := errgroup.WithContext(ctx)
	for _, h := range handles {
		if h == nil {
			continue
		}
		g.Go(func() error {
			_, err := h.Wait(gctx)
			return err
		})
	}
	return g.Wait()
}
