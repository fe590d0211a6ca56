package runtime

import (
	"context"
	"fmt"
	"slices"

	"github.com/aretw0/multipage/internal/tasks"
	"github.com/aretw0/multipage/pkg/domain"
	"github.com/aretw0/multipage/pkg/store"
)

const reasonInterrupted = "interrupted"

// Advance leaves the current page once its requirements hold.
//
// OnSubmit tasks start only once every required element is filled. The
// returned *domain.ValidationError lists element failures followed by the
// required tasks that are not completed, and the session stays on the page.
func (c *Controller) Advance(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.checkActive(); err != nil {
		return err
	}
	p, err := c.page(c.current)
	if err != nil {
		return err
	}

	if failures := c.requiredElements(p); len(failures) > 0 {
		return c.refuse(ctx, p, append(failures, c.requiredTasks(p)...))
	}
	c.runSubmitTasks(ctx, p)
	if failures := c.requiredTasks(p); len(failures) > 0 {
		return c.refuse(ctx, p, failures)
	}

	next, finished, err := c.nextOf(p)
	if err != nil {
		return c.fail(err)
	}
	c.emitPageLeave(ctx, p, "advance")
	if finished {
		c.finish(ctx, "advance")
		return nil
	}

	target, finished, err := c.resolveEntry(ctx, next, "advance")
	if err != nil {
		return c.fail(err)
	}
	if finished {
		c.finish(ctx, "advance")
		return nil
	}
	c.history = append(c.history, target)
	return c.land(ctx, target, "advance", false)
}

// Back returns to the previous page. Values written on the current page stay
// in the store and non-required async tasks keep running.
func (c *Controller) Back(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.checkActive(); err != nil {
		return err
	}
	if len(c.history) < 2 {
		return domain.ErrNoHistory
	}
	if p, err := c.page(c.current); err == nil {
		c.emitPageLeave(ctx, p, "back")
	}
	c.history = c.history[:len(c.history)-1]
	return c.land(ctx, c.history[len(c.history)-1], "back", true)
}

// JumpTo forces a transition to pageID. Skip conditions do not apply.
// Without keepHistory the history is cut back to the last visit of pageID,
// or restarted from it when it was never visited.
func (c *Controller) JumpTo(ctx context.Context, pageID string, keepHistory bool) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.jump(ctx, pageID, keepHistory)
}

// JumpToIndex is JumpTo addressed by position in the page sequence.
func (c *Controller) JumpToIndex(ctx context.Context, i int, keepHistory bool) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	id, err := c.graph.At(i)
	if err != nil {
		return err
	}
	return c.jump(ctx, id, keepHistory)
}

func (c *Controller) jump(ctx context.Context, pageID string, keepHistory bool) error {
	if err := c.checkActive(); err != nil {
		return err
	}
	if _, err := c.page(pageID); err != nil {
		return err
	}
	if p, err := c.page(c.current); err == nil {
		c.emitPageLeave(ctx, p, "jump")
	}

	switch i := slices.Index(reversed(c.history), pageID); {
	case keepHistory:
		c.history = append(c.history, pageID)
	case i >= 0:
		c.history = c.history[:len(c.history)-i]
	default:
		c.history = []string{pageID}
	}
	return c.land(ctx, pageID, "jump", false)
}

func reversed(s []string) []string {
	out := slices.Clone(s)
	slices.Reverse(out)
	return out
}

// Wait blocks until every task of the current page has finished or ctx ends.
func (c *Controller) Wait(ctx context.Context) error {
	c.mu.Lock()
	var pending []*tasks.Handle
	if p, err := c.graph.Page(c.current); err == nil {
		for _, t := range p.Tasks {
			if h, ok := c.handles[t.ID]; ok {
				pending = append(pending, h)
			}
		}
	}
	c.mu.Unlock()
	return tasks.Wait(ctx, pending...)
}

// nextOf computes where leaving p leads. finished is set when the session ends.
func (c *Controller) nextOf(p domain.Page) (next string, finished bool, err error) {
	switch p.EffectiveKind() {
	case domain.PageTerminal:
		return "", true, nil
	case domain.PageBranch:
		v, _ := c.store.Get(p.Branch.Key)
		value := store.Stringify(v)
		target, ok := p.Branch.Cases[value]
		if !ok {
			return "", false, &domain.ResolutionError{PageID: p.ID, Key: p.Branch.Key, Value: value}
		}
		return target, false, nil
	}
	if next, ok := c.graph.Successor(p.ID); ok {
		return next, false, nil
	}
	return "", true, nil
}

// resolveEntry follows skip conditions starting at id and returns the page to land on.
func (c *Controller) resolveEntry(ctx context.Context, id, reason string) (string, bool, error) {
	for range c.graph.Len() + 1 {
		p, err := c.page(id)
		if err != nil {
			return "", false, err
		}
		if p.SkipIf == "" {
			return id, false, nil
		}
		skip, err := c.eval.Eval(p.SkipIf, c.store.Snapshot())
		if err != nil {
			return "", false, fmt.Errorf("page %s skip condition: %w", p.ID, err)
		}
		if !skip {
			return id, false, nil
		}
		c.logger.Debug("page skipped", "page", p.ID)
		c.emitPageSkip(ctx, p, reason)

		next, finished, err := c.nextOf(p)
		if err != nil || finished {
			return "", finished, err
		}
		id = next
	}
	return "", false, fmt.Errorf("skip conditions never settle after page %s", id)
}

// land makes id the current page. History must already be updated.
func (c *Controller) land(ctx context.Context, id, reason string, back bool) error {
	p, err := c.page(id)
	if err != nil {
		return err
	}
	c.current = id
	c.loadSettings(ctx, p)
	c.applyDefaults(p)
	c.resetSubmitHandles(p)
	c.emitPageEnter(ctx, p, reason)
	c.runEnterTasks(ctx, p, back)
	c.logger.Debug("page entered", "page", id, "reason", reason)
	c.render(ctx)
	return nil
}

func (c *Controller) finish(ctx context.Context, reason string) {
	c.status = domain.StatusFinished
	c.logger.Info("session finished", "page", c.current, "visited", len(c.history))
	c.emitFinish(ctx, reason)
}

func (c *Controller) loadSettings(ctx context.Context, p domain.Page) {
	if c.settings == nil || len(p.Settings) == 0 {
		return
	}
	var missing []string
	for _, k := range p.Settings {
		if !c.store.Has(k) {
			missing = append(missing, k)
		}
	}
	if len(missing) == 0 {
		return
	}
	values, err := c.settings.Load(ctx, missing)
	if err != nil {
		c.logger.Warn("settings unavailable, using defaults", "page", p.ID,
			"error", &domain.PersistenceError{Op: "load", Keys: missing, Err: err})
		return
	}
	if err := c.store.Merge(values); err != nil {
		c.logger.Warn("settings rejected", "page", p.ID, "error", err)
	}
}

// runEnterTasks starts the OnEnter tasks of p. A task still running from an
// earlier visit is not started twice. On back only failed or missing runs repeat.
func (c *Controller) runEnterTasks(ctx context.Context, p domain.Page, back bool) {
	for _, t := range p.TasksFor(domain.TriggerOnEnter) {
		if h, ok := c.handles[t.ID]; ok {
			switch h.Status() {
			case domain.TaskPending:
				continue
			case domain.TaskCompleted:
				if back {
					continue
				}
			}
		}
		c.start(ctx, p, t)
	}
}

// resetSubmitHandles opens a new visit: finished OnSubmit runs are forgotten.
func (c *Controller) resetSubmitHandles(p domain.Page) {
	for _, t := range p.TasksFor(domain.TriggerOnSubmit) {
		if h, ok := c.handles[t.ID]; ok && h.Status() != domain.TaskPending {
			delete(c.handles, t.ID)
		}
	}
}

func (c *Controller) runSubmitTasks(ctx context.Context, p domain.Page) {
	for _, t := range p.TasksFor(domain.TriggerOnSubmit) {
		if h, ok := c.handles[t.ID]; ok && h.Status() != domain.TaskFailed {
			continue
		}
		c.start(ctx, p, t)
	}
}

func (c *Controller) start(ctx context.Context, p domain.Page, t domain.Task) {
	c.handles[t.ID] = c.runner.Start(ctx, tasks.Request{
		SessionID: c.sessionID,
		PageID:    p.ID,
		Task:      t,
	}, c.store)
}

// taskOutcome returns the latest outcome of a task, falling back to the
// status recorded in the store. A task that never ran has an empty status.
func (c *Controller) taskOutcome(id string) domain.Outcome {
	if h, ok := c.handles[id]; ok {
		return h.Outcome()
	}
	switch status := domain.TaskStatus(c.store.String(domain.TaskStatusKey(id))); status {
	case domain.TaskCompleted:
		return domain.Completed(nil)
	case domain.TaskFailed:
		return domain.Failed(c.store.String(domain.TaskReasonKey(id)))
	}
	return domain.Outcome{}
}
