package runtime

import (
	"context"
	"fmt"
	"maps"
	"slices"

	"github.com/aretw0/multipage/internal/tasks"
	"github.com/aretw0/multipage/pkg/domain"
)

// Snapshot captures the session. Running tasks are recorded as pending.
func (c *Controller) Snapshot() domain.Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()

	snap := domain.Snapshot{
		SessionID: c.sessionID,
		Current:   c.current,
		History:   slices.Clone(c.history),
		Status:    c.status,
		Values:    c.store.Snapshot(),
		Tasks:     make(map[string]domain.TaskRecord, len(c.handles)),
	}
	for id, h := range c.handles {
		o := h.Outcome()
		snap.Tasks[id] = domain.TaskRecord{Page: h.PageID, Status: o.Status, Reason: o.Reason}
	}
	if c.abort != nil {
		snap.Abort = c.abort.Error()
	}
	return snap
}

// Restore replaces the session with snap. Tasks recorded as pending were
// interrupted: they are marked failed, and OnEnter tasks of the current page
// that did not complete run again.
func (c *Controller) Restore(ctx context.Context, snap domain.Snapshot) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	// A session whose every page was skipped finishes without a current page.
	skippedAll := snap.Current == "" && snap.Status == domain.StatusFinished
	if _, err := c.graph.Page(snap.Current); err != nil && !skippedAll {
		return fmt.Errorf("restore: current page: %w", err)
	}
	if !c.graph.ContainsAll(snap.History) {
		return fmt.Errorf("restore: history %v: %w", snap.History, domain.ErrPageNotFound)
	}
	if err := c.store.Restore(snap.Values); err != nil {
		return fmt.Errorf("restore: %w", err)
	}

	c.handles = make(map[string]*tasks.Handle, len(snap.Tasks))
	interrupted := map[string]any{}
	for _, id := range slices.Sorted(maps.Keys(snap.Tasks)) {
		rec := snap.Tasks[id]
		p, err := c.graph.Page(rec.Page)
		if err != nil {
			c.logger.Warn("dropping task record", "task", id, "error", err)
			continue
		}
		t, ok := p.Task(id)
		if !ok {
			c.logger.Warn("dropping task record", "task", id, "page", rec.Page)
			continue
		}
		o := domain.Outcome{Status: rec.Status, Reason: rec.Reason}
		if o.Status != domain.TaskCompleted && o.Status != domain.TaskFailed {
			o = domain.Failed(reasonInterrupted)
			interrupted[domain.TaskStatusKey(id)] = string(domain.TaskFailed)
			interrupted[domain.TaskReasonKey(id)] = reasonInterrupted
		}
		c.handles[id] = tasks.Finished(rec.Page, t, o)
	}
	if err := c.store.Merge(interrupted); err != nil {
		return fmt.Errorf("restore: %w", err)
	}

	c.started = true
	c.current = snap.Current
	c.history = slices.Clone(snap.History)
	if len(c.history) == 0 && !skippedAll {
		c.history = []string{snap.Current}
	}
	c.status = snap.Status
	if c.status == "" {
		c.status = domain.StatusActive
	}
	c.abort = nil
	if c.status == domain.StatusAborted {
		c.abort = fmt.Errorf("session aborted: %s", snap.Abort)
	}
	if c.status != domain.StatusActive {
		return nil
	}

	p, err := c.page(c.current)
	if err != nil {
		return err
	}
	c.resetSubmitHandles(p)
	c.emitPageEnter(ctx, p, "restore")
	c.runEnterTasks(ctx, p, true)
	c.render(ctx)
	return nil
}
