package memory_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aretw0/multipage/pkg/adapters/memory"
	"github.com/aretw0/multipage/pkg/domain"
	"github.com/aretw0/multipage/pkg/ports"
)

func TestMemoryStore_Contract(t *testing.T) {
	ports.RunSessionStoreContract(t, memory.NewStore())
}

func TestMemoryStore_Isolation(t *testing.T) {
	ctx := context.Background()
	s := memory.NewStore()
	snap := &domain.Snapshot{
		Current: "A",
		History: []string{"A"},
		Values:  map[string]any{"nested": map[string]any{"k": "v"}},
	}
	require.NoError(t, s.Save(ctx, "s", snap))

	snap.History[0] = "mutated"
	snap.Values["nested"].(map[string]any)["k"] = "mutated"

	loaded, err := s.Load(ctx, "s")
	require.NoError(t, err)
	assert.Equal(t, []string{"A"}, loaded.History)
	assert.Equal(t, "v", loaded.Values["nested"].(map[string]any)["k"])
}
