package observability

import (
	"context"
	"log/slog"

	"github.com/aretw0/multipage/pkg/domain"
)

// LogHooks returns hooks that log every event. Page transitions log at Info,
// task events at Debug and refused advances at Warn.
func LogHooks(logger *slog.Logger) domain.LifecycleHooks {
	return domain.LifecycleHooks{
		OnPageEnter: func(ctx context.Context, e *domain.PageEvent) {
			logger.InfoContext(ctx, "page_enter", "page_id", e.PageID, "kind", e.Kind, "reason", e.Reason)
		},
		OnPageLeave: func(ctx context.Context, e *domain.PageEvent) {
			logger.InfoContext(ctx, "page_leave", "page_id", e.PageID, "reason", e.Reason)
		},
		OnPageSkip: func(ctx context.Context, e *domain.PageEvent) {
			logger.InfoContext(ctx, "page_skip", "page_id", e.PageID)
		},
		OnTaskStart: func(ctx context.Context, e *domain.TaskEvent) {
			logger.DebugContext(ctx, "task_start", "task_id", e.TaskID, "kind", e.Kind, "page_id", e.PageID)
		},
		OnTaskFinish: func(ctx context.Context, e *domain.TaskEvent) {
			attrs := []any{"task_id", e.TaskID, "kind", e.Kind, "duration", e.Duration}
			if e.Outcome != nil {
				attrs = append(attrs, "status", e.Outcome.Status)
				if e.Outcome.Reason != "" {
					attrs = append(attrs, "reason", e.Outcome.Reason)
				}
			}
			logger.DebugContext(ctx, "task_finish", attrs...)
		},
		OnValidationFailed: func(ctx context.Context, e *domain.ValidationEvent) {
			ids := make([]string, len(e.Failures))
			for i, f := range e.Failures {
				ids[i] = f.ID
			}
			logger.WarnContext(ctx, "validation_failed", "page_id", e.PageID, "failures", ids)
		},
		OnFinish: func(ctx context.Context, e *domain.PageEvent) {
			logger.InfoContext(ctx, "session_finish", "page_id", e.PageID, "reason", e.Reason)
		},
	}
}

// Chain returns hooks that call every non-nil callback of each set in order.
func Chain(sets ...domain.LifecycleHooks) domain.LifecycleHooks {
	var out domain.LifecycleHooks
	for _, h := range sets {
		out.OnPageEnter = chainPage(out.OnPageEnter, h.OnPageEnter)
		out.OnPageLeave = chainPage(out.OnPageLeave, h.OnPageLeave)
		out.OnPageSkip = chainPage(out.OnPageSkip, h.OnPageSkip)
		out.OnFinish = chainPage(out.OnFinish, h.OnFinish)
		out.OnTaskStart = chainTask(out.OnTaskStart, h.OnTaskStart)
		out.OnTaskFinish = chainTask(out.OnTaskFinish, h.OnTaskFinish)
		out.OnValidationFailed = chainValidation(out.OnValidationFailed, h.OnValidationFailed)
	}
	return out
}

func chainPage(a, b func(context.Context, *domain.PageEvent)) func(context.Context, *domain.PageEvent) {
	if a == nil {
		return b
	}
	if b == nil {
		return a
	}
	return func(ctx context.Context, e *domain.PageEvent) {
		a(ctx, e)
		b(ctx, e)
	}
}

func chainTask(a, b func(context.Context, *domain.TaskEvent)) func(context.Context, *domain.TaskEvent) {
	if a == nil {
		return b
	}
	if b == nil {
		return a
	}
	return func(ctx context.Context, e *domain.TaskEvent) {
		a(ctx, e)
		b(ctx, e)
	}
}

func chainValidation(a, b func(context.Context, *domain.ValidationEvent)) func(context.Context, *domain.ValidationEvent) {
	if a == nil {
		return b
	}
	if b == nil {
		return a
	}
	return func(ctx context.Context, e *domain.ValidationEvent) {
		a(ctx, e)
		b(ctx, e)
	}
}
