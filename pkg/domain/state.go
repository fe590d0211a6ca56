package domain

// SessionStatus is the lifecycle state of a workflow run.
type SessionStatus string

const (
	StatusActive   SessionStatus = "active"   // Navigating
	StatusFinished SessionStatus = "finished" // Left a terminal page or the last page
	StatusAborted  SessionStatus = "aborted"  // Fatal resolution error
)

// TaskRecord is the persisted outcome of a task, keyed by task id.
type TaskRecord struct {
	Page   string     `json:"page"`
	Status TaskStatus `json:"status"`
	Reason string     `json:"reason,omitempty"`
}

// Snapshot captures a session so it can be stored, exported or resumed.
type Snapshot struct {
	SessionID string                `json:"session_id,omitempty"`
	Current   string                `json:"current"`
	History   []string              `json:"history"`
	Status    SessionStatus         `json:"status"`
	Values    map[string]any        `json:"values"`
	Tasks     map[string]TaskRecord `json:"tasks,omitempty"`
	// Abort holds the diagnostic of an aborted session.
	Abort string `json:"abort,omitempty"`
}

// ElementView is an element materialized against the store.
type ElementView struct {
	ID       string      `json:"id"`
	Type     ElementType `json:"type"`
	BoundKey string      `json:"bound_key,omitempty"`
	Required bool        `json:"required,omitempty"`
	Props    Props       `json:"props,omitempty"`
	Value    any         `json:"value,omitempty"`
	// TaskStatus is set on task elements.
	TaskStatus TaskStatus `json:"task_status,omitempty"`
}

// PageView is what a render host receives for the current page.
type PageView struct {
	PageID   string        `json:"page_id"`
	Title    string        `json:"title,omitempty"`
	Kind     PageKind      `json:"kind"`
	Index    int           `json:"index"`
	Total    int           `json:"total"`
	Elements []ElementView `json:"elements"`
	History  []string      `json:"history"`
	Status   SessionStatus `json:"status"`
	// CanGoBack reports whether Back would succeed.
	CanGoBack bool `json:"can_go_back"`
}
