package domain

import (
	"encoding/json"
	"fmt"
)

// TaskKind is the closed set of task kinds.
type TaskKind string

const (
	TaskValidate TaskKind = "validate"
	TaskDownload TaskKind = "download"
	TaskExtract  TaskKind = "extract"
	TaskCustom   TaskKind = "custom"
	TaskPersist  TaskKind = "persist"
)

// Notification selects whether the caller waits for the task.
type Notification string

const (
	NotifySync  Notification = "sync"
	NotifyAsync Notification = "async"
)

// Trigger selects the navigation event that fires a task.
type Trigger string

const (
	TriggerOnEnter  Trigger = "on_enter"
	TriggerOnSubmit Trigger = "on_submit"
)

// ValidateCheck selects the predicate of a validate task.
type ValidateCheck string

const (
	CheckExists    ValidateCheck = "exists"
	CheckDirectory ValidateCheck = "directory"
	CheckExpr      ValidateCheck = "expr"
	CheckFunction  ValidateCheck = "function"
)

// Spec is the kind-specific configuration of a task.
type Spec interface {
	TaskKind() TaskKind
}

// ValidateSpec runs a predicate and stores the boolean result in Target.
type ValidateSpec struct {
	Check ValidateCheck `json:"check" mapstructure:"check"`
	// Path is used by exists/directory checks and may contain placeholders.
	Path string `json:"path,omitempty" mapstructure:"path"`
	// Expr is used by the expr check.
	Expr string `json:"expr,omitempty" mapstructure:"expr"`
	// Function is used by the function check.
	Function string `json:"function,omitempty" mapstructure:"function"`
	// Target defaults to "<taskID>Exists".
	Target string `json:"target,omitempty" mapstructure:"target"`
	// Must turns a false result into a task failure.
	Must bool `json:"must,omitempty" mapstructure:"must"`
}

// DownloadSpec streams Source into Dest. Both may contain placeholders.
type DownloadSpec struct {
	Source string `json:"source" mapstructure:"source"`
	// Dest defaults to a temporary file whose path is stored under "<taskID>Path".
	Dest string `json:"dest,omitempty" mapstructure:"dest"`
	// Timeout is a Go duration string such as "30s".
	Timeout string `json:"timeout,omitempty" mapstructure:"timeout"`
}

// ExtractSpec unpacks a zip archive.
type ExtractSpec struct {
	Source             string `json:"source" mapstructure:"source"`
	Dest               string `json:"dest" mapstructure:"dest"`
	SkipFirstComponent bool   `json:"skip_first_component,omitempty" mapstructure:"skip_first_component"`
	DeleteSource       bool   `json:"delete_source,omitempty" mapstructure:"delete_source"`
	SkipIfNoSource     bool   `json:"skip_if_no_source,omitempty" mapstructure:"skip_if_no_source"`
	Overwrite          bool   `json:"overwrite,omitempty" mapstructure:"overwrite"`
}

// CustomSpec invokes a registry function.
type CustomSpec struct {
	Function string `json:"function" mapstructure:"function"`
}

// PersistSpec saves Keys through the persistence adapter.
type PersistSpec struct {
	Keys []string `json:"keys" mapstructure:"keys"`
}

func (ValidateSpec) TaskKind() TaskKind { return TaskValidate }
func (DownloadSpec) TaskKind() TaskKind { return TaskDownload }
func (ExtractSpec) TaskKind() TaskKind  { return TaskExtract }
func (CustomSpec) TaskKind() TaskKind   { return TaskCustom }
func (PersistSpec) TaskKind() TaskKind  { return TaskPersist }

// Task is a unit of work owned by a page.
type Task struct {
	ID           string       `json:"id"`
	Kind         TaskKind     `json:"kind"`
	Notification Notification `json:"notification,omitempty"`
	Trigger      Trigger      `json:"trigger,omitempty"`
	// Required tasks must complete before the page can be left.
	Required bool `json:"required,omitempty"`
	// Writes declares the store keys the task may write, besides its status keys.
	Writes []string `json:"writes,omitempty"`
	Spec   Spec     `json:"spec,omitempty"`
}

// EffectiveNotification defaults to NotifySync.
func (t Task) EffectiveNotification() Notification {
	if t.Notification == "" {
		return NotifySync
	}
	return t.Notification
}

// EffectiveTrigger defaults to TriggerOnEnter.
func (t Task) EffectiveTrigger() Trigger {
	if t.Trigger == "" {
		return TriggerOnEnter
	}
	return t.Trigger
}

// DoneKey is the boolean flag every task writes on completion.
func (t Task) DoneKey() string {
	return t.ID + "Done"
}

// WriteSet returns every key the task may write on success, including the
// implicit keys of its kind.
func (t Task) WriteSet() []string {
	keys := append([]string{t.DoneKey()}, t.Writes...)
	switch s := t.Spec.(type) {
	case ValidateSpec:
		keys = append(keys, s.TargetKey(t.ID))
	case DownloadSpec:
		if s.Dest == "" {
			keys = append(keys, t.ID+"Path")
		}
	case ExtractSpec:
		keys = append(keys, t.ID+"Files")
	}
	return keys
}

// TargetKey returns the key the validate result is written to.
func (s ValidateSpec) TargetKey(taskID string) string {
	if s.Target != "" {
		return s.Target
	}
	return taskID + "Exists"
}

type taskWire struct {
	ID           string          `json:"id"`
	Kind         TaskKind        `json:"kind"`
	Notification Notification    `json:"notification,omitempty"`
	Trigger      Trigger         `json:"trigger,omitempty"`
	Required     bool            `json:"required,omitempty"`
	Writes       []string        `json:"writes,omitempty"`
	Spec         json.RawMessage `json:"spec,omitempty"`
}

// UnmarshalJSON decodes the spec into the variant matching Kind.
func (t *Task) UnmarshalJSON(data []byte) error {
	var w taskWire
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	raw, err := rawMap(w.Spec)
	if err != nil {
		return fmt.Errorf("task %q spec: %w", w.ID, err)
	}
	spec, err := DecodeSpec(w.Kind, raw)
	if err != nil {
		return fmt.Errorf("task %q: %w", w.ID, err)
	}
	*t = Task{
		ID:           w.ID,
		Kind:         w.Kind,
		Notification: w.Notification,
		Trigger:      w.Trigger,
		Required:     w.Required,
		Writes:       w.Writes,
		Spec:         spec,
	}
	return nil
}

// DecodeSpec converts a loosely typed spec map into the variant for kind.
func DecodeSpec(kind TaskKind, raw map[string]any) (Spec, error) {
	var target any
	switch kind {
	case TaskValidate:
		target = &ValidateSpec{}
	case TaskDownload:
		target = &DownloadSpec{}
	case TaskExtract:
		target = &ExtractSpec{}
	case TaskCustom:
		target = &CustomSpec{}
	case TaskPersist:
		target = &PersistSpec{}
	default:
		return nil, fmt.Errorf("unknown task kind %q", kind)
	}
	if err := decodeStrict(raw, target); err != nil {
		return nil, fmt.Errorf("invalid %s spec: %w", kind, err)
	}
	switch v := target.(type) {
	case *ValidateSpec:
		return *v, nil
	case *DownloadSpec:
		return *v, nil
	case *ExtractSpec:
		return *v, nil
	case *CustomSpec:
		return *v, nil
	default:
		return *(v.(*PersistSpec)), nil
	}
}
