package domain

// TaskStatus is the recorded state of a task run.
type TaskStatus string

const (
	TaskPending   TaskStatus = "pending"
	TaskCompleted TaskStatus = "completed"
	TaskFailed    TaskStatus = "failed"
)

// Outcome is the result of running a task.
// Writes is only meaningful when Status is TaskCompleted.
type Outcome struct {
	Status TaskStatus     `json:"status"`
	Writes map[string]any `json:"writes,omitempty"`
	Reason string         `json:"reason,omitempty"`
}

// Completed builds a successful outcome.
func Completed(writes map[string]any) Outcome {
	return Outcome{Status: TaskCompleted, Writes: writes}
}

// Failed builds a failed outcome.
func Failed(reason string) Outcome {
	return Outcome{Status: TaskFailed, Reason: reason}
}

// Pending is the outcome of an async task that has not finished.
func Pending() Outcome {
	return Outcome{Status: TaskPending}
}

// ReasonTimeout is the failure reason of tasks that exceeded their deadline.
const ReasonTimeout = "timeout"

// Reserved store keys.
const (
	// TasksKey is the root of the per-task status records in the store.
	TasksKey = "_tasks"
)

// TaskStatusKey returns the store key holding the status of a task.
func TaskStatusKey(taskID string) string {
	return TasksKey + "." + taskID + ".status"
}

// TaskReasonKey returns the store key holding the failure reason of a task.
func TaskReasonKey(taskID string) string {
	return TasksKey + "." + taskID + ".reason"
}

// TaskProgressKey returns the store key holding the 0..1 progress of a task.
func TaskProgressKey(taskID string) string {
	return TasksKey + "." + taskID + ".progress"
}

// TaskBytesKey returns the store key holding the bytes a download has written.
// It is the only progress signal when the server sends no length.
func TaskBytesKey(taskID string) string {
	return TasksKey + "." + taskID + ".bytes"
}
