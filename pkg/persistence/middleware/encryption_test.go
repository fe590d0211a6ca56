package middleware_test

import (
	"context"
	"crypto/rand"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aretw0/multipage/pkg/domain"
	"github.com/aretw0/multipage/pkg/persistence/middleware"
)

func generateKey(t *testing.T) []byte {
	t.Helper()
	k := make([]byte, 32)
	_, err := rand.Read(k)
	require.NoError(t, err)
	return k
}

func sampleSnapshot() *domain.Snapshot {
	return &domain.Snapshot{
		SessionID: "s1",
		Current:   "license",
		History:   []string{"welcome", "license"},
		Status:    domain.StatusActive,
		Values:    map[string]any{"secret": "my-secret-sauce", "count": json.Number("3")},
	}
}

func TestEncryptionMiddleware_Roundtrip(t *testing.T) {
	ctx := context.Background()
	underlying := NewMockStore()
	mw, err := middleware.NewEncryptionMiddleware(middleware.EncryptionConfig{ActiveKey: generateKey(t)})
	require.NoError(t, err)
	secure := mw(underlying)

	require.NoError(t, secure.Save(ctx, "s1", sampleSnapshot()))

	stored, err := underlying.Load(ctx, "s1")
	require.NoError(t, err)
	assert.NotContains(t, stored.Values, "secret")
	assert.Contains(t, stored.Values, middleware.EnvelopeKey)
	assert.Empty(t, stored.History)
	assert.Equal(t, domain.StatusActive, stored.Status)

	loaded, err := secure.Load(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, sampleSnapshot(), loaded)
}

func TestEncryptionMiddleware_KeyRotation(t *testing.T) {
	ctx := context.Background()
	underlying := NewMockStore()
	oldKey, newKey := generateKey(t), generateKey(t)

	mwOld, err := middleware.NewEncryptionMiddleware(middleware.EncryptionConfig{ActiveKey: oldKey})
	require.NoError(t, err)
	oldStore := mwOld(underlying)
	require.NoError(t, oldStore.Save(ctx, "s1", sampleSnapshot()))

	mwNew, err := middleware.NewEncryptionMiddleware(middleware.EncryptionConfig{
		ActiveKey:    newKey,
		FallbackKeys: [][]byte{oldKey},
	})
	require.NoError(t, err)
	newStore := mwNew(underlying)

	loaded, err := newStore.Load(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, "my-secret-sauce", loaded.Values["secret"])

	require.NoError(t, newStore.Save(ctx, "s1", loaded))
	_, err = oldStore.Load(ctx, "s1")
	assert.Error(t, err, "the old key alone cannot read snapshots sealed with the new key")
}

func TestEncryptionMiddleware_RejectsPlainSnapshots(t *testing.T) {
	ctx := context.Background()
	underlying := NewMockStore()
	require.NoError(t, underlying.Save(ctx, "plain", sampleSnapshot()))

	mw, err := middleware.NewEncryptionMiddleware(middleware.EncryptionConfig{ActiveKey: generateKey(t)})
	require.NoError(t, err)
	_, err = mw(underlying).Load(ctx, "plain")
	assert.Error(t, err)
}

func TestEncryptionMiddleware_InvalidKey(t *testing.T) {
	_, err := middleware.NewEncryptionMiddleware(middleware.EncryptionConfig{ActiveKey: []byte("short-key")})
	assert.Error(t, err)
}
