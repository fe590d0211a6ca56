package sqlite_test

import (
	"context"
	"database/sql"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"

	"github.com/aretw0/multipage/pkg/adapters/sqlite"
	"github.com/aretw0/multipage/pkg/domain"
	"github.com/aretw0/multipage/pkg/ports"
)

func newTestStore(t *testing.T) *sqlite.Store {
	t.Helper()
	db, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	// Every pooled connection to :memory: would get its own database.
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = db.Close() })

	store, err := sqlite.New(context.Background(), db)
	require.NoError(t, err)
	return store
}

func TestSQLiteStore_Contract(t *testing.T) {
	ports.RunSessionStoreContract(t, newTestStore(t))
}

func TestSQLiteStore_Upsert(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, "s1", &domain.Snapshot{Current: "A", Status: domain.StatusActive}))
	require.NoError(t, store.Save(ctx, "s1", &domain.Snapshot{Current: "B", Status: domain.StatusFinished}))

	got, err := store.Load(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, "B", got.Current)
	assert.Equal(t, domain.StatusFinished, got.Status)

	ids, err := store.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"s1"}, ids)
}

func TestSQLiteStore_SchemaIsIdempotent(t *testing.T) {
	db, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	defer db.Close()

	_, err = sqlite.New(context.Background(), db)
	require.NoError(t, err)
	_, err = sqlite.New(context.Background(), db)
	assert.NoError(t, err)
}

func TestSQLiteStore_DeleteMissing(t *testing.T) {
	assert.NoError(t, newTestStore(t).Delete(context.Background(), "nope"))
}
