package domain

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrPageNotFound is returned when a page id is not part of the graph.
	ErrPageNotFound = errors.New("page not found")

	// ErrSessionFinished is returned when navigating a finished session.
	ErrSessionFinished = errors.New("session finished")

	// ErrNoHistory is returned by Back on the first page.
	ErrNoHistory = errors.New("no previous page")

	// ErrSessionNotFound is returned when a session ID cannot be found in the store.
	ErrSessionNotFound = errors.New("session not found")

	// ErrUnknownFunction is returned when a registry function is not registered.
	ErrUnknownFunction = errors.New("unknown function")

	// ErrUnknownElement is returned when an element id is not on the current page.
	ErrUnknownElement = errors.New("unknown element")

	// ErrInvalidValue is returned when a value does not fit the element it is set on.
	ErrInvalidValue = errors.New("invalid value")
)

// FailureKind tells whether a failure concerns an element or a task.
type FailureKind string

const (
	FailureElement FailureKind = "element"
	FailureTask    FailureKind = "task"
)

// Failure reasons.
const (
	ReasonEmpty   = "empty"
	ReasonPending = "pending"
	ReasonFailed  = "failed"
)

// Failure names one unmet requirement of a page.
type Failure struct {
	ID     string      `json:"id"`
	Kind   FailureKind `json:"kind"`
	Reason string      `json:"reason"`
	// Detail carries the task failure reason, if any.
	Detail string `json:"detail,omitempty"`
}

// ValidationError is returned by Advance when the page cannot be left.
// The session stays on PageID.
type ValidationError struct {
	PageID   string    `json:"page_id"`
	Failures []Failure `json:"failures"`
}

func (e *ValidationError) Error() string {
	parts := make([]string, 0, len(e.Failures))
	for _, f := range e.Failures {
		parts = append(parts, fmt.Sprintf("%s %s: %s", f.Kind, f.ID, f.Reason))
	}
	return fmt.Sprintf("page %s cannot advance: %s", e.PageID, strings.Join(parts, ", "))
}

// Has reports whether the error names the given element or task id.
func (e *ValidationError) Has(id string) bool {
	for _, f := range e.Failures {
		if f.ID == id {
			return true
		}
	}
	return false
}

// ResolutionError is fatal to the run: a branch discriminant matched no case.
type ResolutionError struct {
	PageID string
	Key    string
	Value  string
}

func (e *ResolutionError) Error() string {
	return fmt.Sprintf("branch page %s: discriminant %s=%q matches no case", e.PageID, e.Key, e.Value)
}

// TaskFailure describes a failed task run.
type TaskFailure struct {
	TaskID string
	Reason string
	Err    error
}

func (e *TaskFailure) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("task %s failed (%s): %v", e.TaskID, e.Reason, e.Err)
	}
	return fmt.Sprintf("task %s failed: %s", e.TaskID, e.Reason)
}

func (e *TaskFailure) Unwrap() error {
	return e.Err
}

// PersistenceError wraps a settings load or save failure.
type PersistenceError struct {
	Op   string // "load" or "save"
	Keys []string
	Err  error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("settings %s %v: %v", e.Op, e.Keys, e.Err)
}

func (e *PersistenceError) Unwrap() error {
	return e.Err
}

// SerializationError is returned by monolith import/export.
type SerializationError struct {
	Stage string
	Err   error
}

func (e *SerializationError) Error() string {
	return fmt.Sprintf("monolith %s: %v", e.Stage, e.Err)
}

func (e *SerializationError) Unwrap() error {
	return e.Err
}
