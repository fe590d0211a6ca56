package ports

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/aretw0/multipage/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func contractSnapshot(sessionID string) *domain.Snapshot {
	return &domain.Snapshot{
		SessionID: sessionID,
		Current:   "intro",
		History:   []string{"intro"},
		Status:    domain.StatusActive,
		Values:    map[string]any{},
	}
}

// RunSessionStoreContract runs a suite of tests to verify that a SessionStore implementation
// adheres to the defined interface contract.
func RunSessionStoreContract(t *testing.T, store SessionStore) {
	ctx := context.Background()
	sessionID := "contract-test-session-" + time.Now().Format("20060102150405")

	t.Run("Save and Load", func(t *testing.T) {
		snap := contractSnapshot(sessionID)
		snap.Current = "target"
		snap.History = []string{"intro", "target"}
		snap.Values["root"] = "/tmp/w"
		snap.Values["count"] = json.Number("42")
		snap.Values["install"] = map[string]any{"clean": true, "formats": []any{"VST3", "AU"}}
		snap.Tasks = map[string]domain.TaskRecord{
			"check": {Page: "intro", Status: domain.TaskCompleted},
		}

		err := store.Save(ctx, sessionID, snap)
		require.NoError(t, err, "Save should not return error")

		loaded, err := store.Load(ctx, sessionID)
		require.NoError(t, err, "Load should not return error")
		assert.Equal(t, snap.Current, loaded.Current)
		assert.Equal(t, snap.History, loaded.History)
		assert.Equal(t, "/tmp/w", loaded.Values["root"])
		// Numbers must survive as json.Number so that snapshots round trip exactly.
		assert.Equal(t, json.Number("42"), loaded.Values["count"])
		assert.Equal(t, snap.Values["install"], loaded.Values["install"])
		assert.Equal(t, domain.TaskCompleted, loaded.Tasks["check"].Status)
	})

	t.Run("Load Non-Existent", func(t *testing.T) {
		_, err := store.Load(ctx, "non-existent-"+sessionID)
		assert.ErrorIs(t, err, domain.ErrSessionNotFound)
	})

	t.Run("Delete", func(t *testing.T) {
		err := store.Save(ctx, sessionID, contractSnapshot(sessionID))
		require.NoError(t, err)

		err = store.Delete(ctx, sessionID)
		require.NoError(t, err, "Delete should not return error")

		_, err = store.Load(ctx, sessionID)
		assert.ErrorIs(t, err, domain.ErrSessionNotFound, "Load after Delete should return ErrSessionNotFound")
	})

	t.Run("List", func(t *testing.T) {
		id1 := sessionID + "-1"
		id2 := sessionID + "-2"
		_ = store.Save(ctx, id1, contractSnapshot(id1))
		_ = store.Save(ctx, id2, contractSnapshot(id2))

		defer func() {
			_ = store.Delete(ctx, id1)
			_ = store.Delete(ctx, id2)
		}()

		sessions, err := store.List(ctx)
		require.NoError(t, err)
		assert.Contains(t, sessions, id1)
		assert.Contains(t, sessions, id2)
	})
}
