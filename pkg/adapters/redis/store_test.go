package redis_test

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	backend "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aretw0/multipage/pkg/adapters/redis"
	"github.com/aretw0/multipage/pkg/domain"
	"github.com/aretw0/multipage/pkg/ports"
)

func newClient(t *testing.T) (*miniredis.Miniredis, *backend.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := backend.NewClient(&backend.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return mr, client
}

func TestRedisStore_Contract(t *testing.T) {
	_, client := newClient(t)
	ports.RunSessionStoreContract(t, redis.NewFromClient(client))
}

func TestRedisStore_TTL_Expiration(t *testing.T) {
	mr, client := newClient(t)
	store := redis.NewFromClient(client, redis.WithTTL(time.Second))
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, "session-ttl", &domain.Snapshot{Current: "A"}))
	sessions, err := store.List(ctx)
	require.NoError(t, err)
	assert.Contains(t, sessions, "session-ttl")

	mr.FastForward(2 * time.Second)
	_, err = store.Load(ctx, "session-ttl")
	assert.ErrorIs(t, err, domain.ErrSessionNotFound)

	// The index is pruned against the wall clock, not miniredis time.
	time.Sleep(1200 * time.Millisecond)
	sessions, err = store.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, sessions)
}

func TestRedisStore_Prefix(t *testing.T) {
	mr, client := newClient(t)
	store := redis.NewFromClient(client, redis.WithPrefix("custom:app:"))
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, "my-session", &domain.Snapshot{Current: "start"}))
	assert.True(t, mr.Exists("custom:app:my-session"))
	assert.True(t, mr.Exists("custom:app:index"))

	require.NoError(t, store.Delete(ctx, "my-session"))
	assert.False(t, mr.Exists("custom:app:my-session"))
}

func TestRedisStore_DefaultPrefix(t *testing.T) {
	mr, client := newClient(t)
	require.NoError(t, redis.NewFromClient(client).Save(context.Background(), "s", &domain.Snapshot{Current: "A"}))
	assert.True(t, mr.Exists(redis.DefaultPrefix+"s"))
}
