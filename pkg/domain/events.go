package domain

import (
	"context"
	"time"
)

// EventType defines the category of the event.
type EventType string

const (
	EventPageEnter  EventType = "page_enter"
	EventPageLeave  EventType = "page_leave"
	EventPageSkip   EventType = "page_skip"
	EventTaskStart  EventType = "task_start"
	EventTaskFinish EventType = "task_finish"
	EventValidation EventType = "validation_failed"
	EventFinish     EventType = "session_finish"
)

// EventBase contains common fields for all events.
type EventBase struct {
	Timestamp time.Time `json:"timestamp"`
	Type      EventType `json:"type"`
	SessionID string    `json:"session_id,omitempty"`
}

// PageEvent represents entry, exit or skip of a page.
type PageEvent struct {
	EventBase
	PageID string   `json:"page_id"`
	Kind   PageKind `json:"kind"`
	// Reason is "advance", "back", "jump", "start" or "restore".
	Reason string `json:"reason,omitempty"`
}

// TaskEvent represents a task start or finish.
type TaskEvent struct {
	EventBase
	PageID   string        `json:"page_id"`
	TaskID   string        `json:"task_id"`
	Kind     TaskKind      `json:"kind"`
	Outcome  *Outcome      `json:"outcome,omitempty"`
	Duration time.Duration `json:"duration,omitempty"`
}

// ValidationEvent is emitted when Advance is refused.
type ValidationEvent struct {
	EventBase
	PageID   string    `json:"page_id"`
	Failures []Failure `json:"failures"`
}

// LifecycleHooks defines callbacks for engine observability.
type LifecycleHooks struct {
	OnPageEnter        func(context.Context, *PageEvent)
	OnPageLeave        func(context.Context, *PageEvent)
	OnPageSkip         func(context.Context, *PageEvent)
	OnTaskStart        func(context.Context, *TaskEvent)
	OnTaskFinish       func(context.Context, *TaskEvent)
	OnValidationFailed func(context.Context, *ValidationEvent)
	OnFinish           func(context.Context, *PageEvent)
}
