package runtime

import (
	"context"
	"time"

	"github.com/aretw0/multipage/pkg/domain"
)

// Hooks run synchronously while navigation is locked and must not call back
// into the controller.

func (c *Controller) pageEvent(t domain.EventType, p domain.Page, reason string) *domain.PageEvent {
	return &domain.PageEvent{
		EventBase: domain.EventBase{Timestamp: time.Now(), Type: t, SessionID: c.sessionID},
		PageID:    p.ID,
		Kind:      p.EffectiveKind(),
		Reason:    reason,
	}
}

func (c *Controller) emitPageEnter(ctx context.Context, p domain.Page, reason string) {
	if c.hooks.OnPageEnter != nil {
		c.hooks.OnPageEnter(ctx, c.pageEvent(domain.EventPageEnter, p, reason))
	}
}

func (c *Controller) emitPageLeave(ctx context.Context, p domain.Page, reason string) {
	if c.hooks.OnPageLeave != nil {
		c.hooks.OnPageLeave(ctx, c.pageEvent(domain.EventPageLeave, p, reason))
	}
}

func (c *Controller) emitPageSkip(ctx context.Context, p domain.Page, reason string) {
	if c.hooks.OnPageSkip != nil {
		c.hooks.OnPageSkip(ctx, c.pageEvent(domain.EventPageSkip, p, reason))
	}
}

func (c *Controller) emitFinish(ctx context.Context, reason string) {
	if c.hooks.OnFinish == nil {
		return
	}
	p, err := c.graph.Page(c.current)
	if err != nil {
		p = domain.Page{ID: c.current}
	}
	c.hooks.OnFinish(ctx, c.pageEvent(domain.EventFinish, p, reason))
}

func (c *Controller) emitValidationFailed(ctx context.Context, p domain.Page, failures []domain.Failure) {
	if c.hooks.OnValidationFailed == nil {
		return
	}
	c.hooks.OnValidationFailed(ctx, &domain.ValidationEvent{
		EventBase: domain.EventBase{Timestamp: time.Now(), Type: domain.EventValidation, SessionID: c.sessionID},
		PageID:    p.ID,
		Failures:  failures,
	})
}
