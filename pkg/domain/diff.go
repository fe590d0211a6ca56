package domain

import (
	"reflect"
	"slices"
)

// SnapshotDiff represents the changes between two snapshots.
// It is designed to be serialized to JSON for partial updates on the client.
type SnapshotDiff struct {
	SessionID string         `json:"session_id"`
	Current   *string        `json:"current,omitempty"`
	Status    *SessionStatus `json:"status,omitempty"`

	// Values contains only changed or added top-level keys.
	// The store never deletes keys, so there is no tombstone encoding.
	Values map[string]any `json:"values,omitempty"`

	// History is sent whole whenever it changed, because Back and Jump rewrite it.
	History []string `json:"history,omitempty"`
}

// Diff calculates the difference between two snapshots.
// If old is nil, it returns a diff representing the entire new snapshot.
func Diff(old, new *Snapshot) *SnapshotDiff {
	if new == nil {
		return nil
	}

	diff := &SnapshotDiff{SessionID: new.SessionID}

	if old == nil || old.Current != new.Current {
		diff.Current = &new.Current
	}
	if old == nil || old.Status != new.Status {
		diff.Status = &new.Status
	}
	if old == nil || !slices.Equal(old.History, new.History) {
		diff.History = new.History
	}
	diff.Values = diffValues(old, new)

	if diff.IsEmpty() {
		return nil
	}
	return diff
}

func diffValues(old, new *Snapshot) map[string]any {
	delta := make(map[string]any)
	for k, v := range new.Values {
		if old == nil {
			delta[k] = v
			continue
		}
		prev, ok := old.Values[k]
		if !ok || !reflect.DeepEqual(prev, v) {
			delta[k] = v
		}
	}
	if len(delta) == 0 {
		return nil
	}
	return delta
}

// IsEmpty checks if the diff contains any actionable changes.
func (d *SnapshotDiff) IsEmpty() bool {
	return d.Current == nil &&
		d.Status == nil &&
		len(d.Values) == 0 &&
		d.History == nil
}
