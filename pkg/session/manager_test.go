package session_test

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/aretw0/multipage/internal/runtime"
	"github.com/aretw0/multipage/pkg/adapters/memory"
	"github.com/aretw0/multipage/pkg/domain"
	"github.com/aretw0/multipage/pkg/graph"
	"github.com/aretw0/multipage/pkg/ports"
	"github.com/aretw0/multipage/pkg/session"
)

func testGraph() *graph.Graph {
	return graph.MustNew(
		domain.Page{ID: "A", Elements: []domain.Element{{
			ID: "name", Type: domain.ElementInput, BoundKey: "name", Required: true, Props: domain.InputProps{},
		}}},
		domain.Page{ID: "B"},
		domain.Page{ID: "C", Kind: domain.PageTerminal},
	)
}

func newManager(t *testing.T, store ports.SessionStore, opts ...session.Option) (*session.Manager, *atomic.Int32) {
	t.Helper()
	g := testGraph()
	built := &atomic.Int32{}
	factory := func(id string) *runtime.Controller {
		built.Add(1)
		return runtime.New(g, runtime.WithSessionID(id))
	}
	return session.NewManager(store, factory, opts...), built
}

func TestManager_OpenStartsAndResumes(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	m, _ := newManager(t, store)

	id, err := m.Open(ctx, "")
	require.NoError(t, err)
	require.NotEmpty(t, id)

	saved, err := store.Load(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "A", saved.Current)
	assert.Equal(t, id, saved.SessionID)

	require.NoError(t, m.Do(ctx, id, func(ctx context.Context, c *runtime.Controller) error {
		require.NoError(t, c.SetValue(ctx, "name", "Ada"))
		return c.Advance(ctx)
	}))

	again, err := m.Open(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, id, again)
	snap, err := m.Snapshot(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "B", snap.Current, "opening an existing session must not restart it")
}

func TestManager_SurvivesRestart(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	first, _ := newManager(t, store)

	id, err := first.Open(ctx, "persisted")
	require.NoError(t, err)
	require.NoError(t, first.Do(ctx, id, func(ctx context.Context, c *runtime.Controller) error {
		require.NoError(t, c.SetValue(ctx, "name", "Ada"))
		return c.Advance(ctx)
	}))

	second, built := newManager(t, store)
	require.NoError(t, second.Do(ctx, id, func(ctx context.Context, c *runtime.Controller) error {
		assert.Equal(t, "B", c.Current())
		assert.Equal(t, []string{"A", "B"}, c.History())
		assert.Equal(t, "Ada", c.Store().String("name"))
		return c.Back(ctx)
	}))
	assert.Equal(t, int32(1), built.Load())

	snap, err := store.Load(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "A", snap.Current)
}

func TestManager_SavesOnRefusal(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	m, _ := newManager(t, store)
	id, err := m.Open(ctx, "s")
	require.NoError(t, err)

	err = m.Do(ctx, id, func(ctx context.Context, c *runtime.Controller) error {
		require.NoError(t, c.SetValue(ctx, "name", ""))
		return c.Advance(ctx)
	})
	var verr *domain.ValidationError
	require.ErrorAs(t, err, &verr)

	snap, err := store.Load(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "A", snap.Current)
	assert.Contains(t, snap.Values, "name")
}

func TestManager_SerializesOperations(t *testing.T) {
	ctx := context.Background()
	m, _ := newManager(t, memory.NewStore())
	id, err := m.Open(ctx, "counter")
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := m.Do(ctx, id, func(ctx context.Context, c *runtime.Controller) error {
				n := c.Store().Int("n")
				time.Sleep(time.Millisecond)
				return c.Store().Set("n", n+1)
			})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	snap, err := m.Snapshot(ctx, id)
	require.NoError(t, err)
	assert.EqualValues(t, "20", snap.Values["n"])
}

func TestManager_Delete(t *testing.T) {
	ctx := context.Background()
	m, _ := newManager(t, memory.NewStore())
	id, err := m.Open(ctx, "gone")
	require.NoError(t, err)

	require.NoError(t, m.Delete(ctx, id))
	_, err = m.Snapshot(ctx, id)
	assert.ErrorIs(t, err, domain.ErrSessionNotFound)

	ids, err := m.List(ctx)
	require.NoError(t, err)
	assert.NotContains(t, ids, id)
}

func TestManager_Import(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	m, _ := newManager(t, store)

	err := m.Import(ctx, "imported", domain.Snapshot{
		Current: "B",
		History: []string{"A", "B"},
		Values:  map[string]any{"name": "Ada"},
	})
	require.NoError(t, err)

	snap, err := store.Load(ctx, "imported")
	require.NoError(t, err)
	assert.Equal(t, "imported", snap.SessionID)
	assert.Equal(t, "B", snap.Current)
	assert.Equal(t, domain.StatusActive, snap.Status)

	err = m.Import(ctx, "bad", domain.Snapshot{Current: "Z"})
	assert.ErrorIs(t, err, domain.ErrPageNotFound)
}

func TestManager_Stateless(t *testing.T) {
	ctx := context.Background()
	m, built := newManager(t, memory.NewStore(), session.WithStateless())
	id, err := m.Open(ctx, "s")
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		_, err := m.Snapshot(ctx, id)
		require.NoError(t, err)
	}
	// One controller to start the session, then one restore per call.
	assert.Equal(t, int32(1+3), built.Load())
}

type MockLocker struct {
	mock.Mock
}

func (m *MockLocker) Lock(ctx context.Context, key string, ttl time.Duration) (ports.UnlockFunc, error) {
	args := m.Called(ctx, key, ttl)
	unlock, _ := args.Get(0).(ports.UnlockFunc)
	return unlock, args.Error(1)
}

func TestManager_DistributedLock(t *testing.T) {
	ctx := context.Background()
	released := 0
	locker := new(MockLocker)
	locker.On("Lock", mock.Anything, "s", 5*time.Second).
		Return(ports.UnlockFunc(func(context.Context) error {
			released++
			return nil
		}), nil)

	m, _ := newManager(t, memory.NewStore(), session.WithLocker(locker), session.WithLockTTL(5*time.Second))
	_, err := m.Open(ctx, "s")
	require.NoError(t, err)
	_, err = m.Snapshot(ctx, "s")
	require.NoError(t, err)

	locker.AssertNumberOfCalls(t, "Lock", 2)
	assert.Equal(t, 2, released)
}

func TestManager_DistributedLockFailure(t *testing.T) {
	locker := new(MockLocker)
	locker.On("Lock", mock.Anything, "s", session.DefaultLockTTL).Return(nil, context.DeadlineExceeded)

	m, _ := newManager(t, memory.NewStore(), session.WithLocker(locker))
	_, err := m.Open(context.Background(), "s")
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}
