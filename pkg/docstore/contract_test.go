package docstore

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// runStoreContract exercises the behaviour every backend must share
func runStoreContract(t *testing.T, newStore func(t *testing.T) Store) {
	ctx := context.Background()

	t.Run("insert and get", func(t *testing.T) {
		store := newStore(t)
		id, err := store.Insert(ctx, "tenants", map[string]any{"name": "Acme", "max_users": 5})
		require.NoError(t, err)
		require.NotEmpty(t, id)

		doc, err := store.Get(ctx, "tenants", id)
		require.NoError(t, err)
		assert.Equal(t, id, doc.ID)
		assert.Equal(t, "Acme", doc.Data["name"])
		assert.Equal(t, float64(5), doc.Data["max_users"])
	})

	t.Run("get missing", func(t *testing.T) {
		store := newStore(t)
		_, err := store.Get(ctx, "tenants", "missing")
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("put replaces", func(t *testing.T) {
		store := newStore(t)
		require.NoError(t, store.Put(ctx, "users", "subject-1", map[string]any{"initials": "JD", "role": "admin"}))
		require.NoError(t, store.Put(ctx, "users", "subject-1", map[string]any{"initials": "JD1"}))

		doc, err := store.Get(ctx, "users", "subject-1")
		require.NoError(t, err)
		assert.Equal(t, "JD1", doc.Data["initials"])
		_, hasRole := doc.Data["role"]
		assert.False(t, hasRole)
	})

	t.Run("query filters", func(t *testing.T) {
		store := newStore(t)
		_, err := store.Insert(ctx, "users", map[string]any{"tenant_id": "t1", "is_active": true, "initials": "AB"})
		require.NoError(t, err)
		_, err = store.Insert(ctx, "users", map[string]any{"tenant_id": "t1", "is_active": false, "initials": "CD"})
		require.NoError(t, err)
		_, err = store.Insert(ctx, "users", map[string]any{"tenant_id": "t2", "is_active": true, "initials": "AB"})
		require.NoError(t, err)

		docs, err := store.Query(ctx, Query{
			Collection: "users",
			Filters:    []Filter{Where("tenant_id", "t1"), Where("is_active", true)},
		})
		require.NoError(t, err)
		require.Len(t, docs, 1)
		assert.Equal(t, "AB", docs[0].Data["initials"])

		docs, err = store.Query(ctx, Query{Collection: "users", Filters: []Filter{Where("initials", "AB")}})
		require.NoError(t, err)
		assert.Len(t, docs, 2)

		docs, err = store.Query(ctx, Query{Collection: "users", Filters: []Filter{Where("tenant_id", "t3")}})
		require.NoError(t, err)
		assert.Empty(t, docs)

		docs, err = store.Query(ctx, Query{Collection: "empty"})
		require.NoError(t, err)
		assert.Empty(t, docs)
	})

	t.Run("query numeric filter", func(t *testing.T) {
		store := newStore(t)
		_, err := store.Insert(ctx, "tenants", map[string]any{"name": "a", "max_users": 5})
		require.NoError(t, err)
		_, err = store.Insert(ctx, "tenants", map[string]any{"name": "b", "max_users": 25})
		require.NoError(t, err)

		docs, err := store.Query(ctx, Query{Collection: "tenants", Filters: []Filter{Where("max_users", 25)}})
		require.NoError(t, err)
		require.Len(t, docs, 1)
		assert.Equal(t, "b", docs[0].Data["name"])
	})

	t.Run("query order and limit", func(t *testing.T) {
		store := newStore(t)
		base := time.Date(2026, 3, 1, 10, 0, 0, 100000000, time.UTC)
		// fractional seconds of differing width: .1, .12, .123
		for i, offset := range []time.Duration{0, 20 * time.Millisecond, 23 * time.Millisecond} {
			_, err := store.Insert(ctx, "invitations", map[string]any{
				"tenant_id":  "t1",
				"seq":        i,
				"created_at": base.Add(offset),
			})
			require.NoError(t, err)
		}

		docs, err := store.Query(ctx, Query{
			Collection: "invitations",
			Filters:    []Filter{Where("tenant_id", "t1")},
			OrderBy:    "created_at",
			Descending: true,
		})
		require.NoError(t, err)
		require.Len(t, docs, 3)
		assert.Equal(t, float64(2), docs[0].Data["seq"])
		assert.Equal(t, float64(1), docs[1].Data["seq"])
		assert.Equal(t, float64(0), docs[2].Data["seq"])

		docs, err = store.Query(ctx, Query{
			Collection: "invitations",
			OrderBy:    "created_at",
			Limit:      1,
		})
		require.NoError(t, err)
		require.Len(t, docs, 1)
		assert.Equal(t, float64(0), docs[0].Data["seq"])

		docs, err = store.Query(ctx, Query{Collection: "invitations", Limit: 2})
		require.NoError(t, err)
		assert.Len(t, docs, 2)
	})

	t.Run("update merges", func(t *testing.T) {
		store := newStore(t)
		id, err := store.Insert(ctx, "licenses", map[string]any{"license_key": "GGUARD-2026-ABCDEFGHJ", "is_used": false})
		require.NoError(t, err)

		require.NoError(t, store.Update(ctx, "licenses", id, map[string]any{"is_used": true, "used_by": "tenant-1"}))

		doc, err := store.Get(ctx, "licenses", id)
		require.NoError(t, err)
		assert.Equal(t, "GGUARD-2026-ABCDEFGHJ", doc.Data["license_key"])
		assert.Equal(t, true, doc.Data["is_used"])
		assert.Equal(t, "tenant-1", doc.Data["used_by"])
	})

	t.Run("update missing", func(t *testing.T) {
		store := newStore(t)
		err := store.Update(ctx, "licenses", "missing", map[string]any{"is_used": true})
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("delete", func(t *testing.T) {
		store := newStore(t)
		id, err := store.Insert(ctx, "invitations", map[string]any{"code": "ABCD2345"})
		require.NoError(t, err)

		require.NoError(t, store.Delete(ctx, "invitations", id))
		_, err = store.Get(ctx, "invitations", id)
		assert.ErrorIs(t, err, ErrNotFound)
		assert.ErrorIs(t, store.Delete(ctx, "invitations", id), ErrNotFound)
	})
}

func TestMemoryStore(t *testing.T) {
	runStoreContract(t, func(t *testing.T) Store {
		return NewMemoryStore()
	})
}

func TestFileStore(t *testing.T) {
	runStoreContract(t, func(t *testing.T) Store {
		store, err := NewFileStore(t.TempDir())
		require.NoError(t, err)
		return store
	})
}

func TestSQLiteStore(t *testing.T) {
	runStoreContract(t, func(t *testing.T) Store {
		store, err := OpenSQLite(context.Background(), ":memory:")
		require.NoError(t, err)
		t.Cleanup(func() { store.Close() })
		return store
	})
}

func TestInstrumentedStore(t *testing.T) {
	runStoreContract(t, func(t *testing.T) Store {
		return NewInstrumentedStore(NewMemoryStore(), "memory", &recordingRecorder{})
	})
}

type recordingRecorder struct {
	operations []string
	failures   int
	hits       map[string]int
	misses     map[string]int
}

func (r *recordingRecorder) ObserveStoreOperation(backend, operation string, err error, duration time.Duration) {
	r.operations = append(r.operations, backend+"."+operation)
	if err != nil {
		r.failures++
	}
}

func (r *recordingRecorder) ObserveCache(tier string, hit bool) {
	if r.hits == nil {
		r.hits, r.misses = make(map[string]int), make(map[string]int)
	}
	if hit {
		r.hits[tier]++
	} else {
		r.misses[tier]++
	}
}

func TestInstrumentedStore_RecordsOperations(t *testing.T) {
	ctx := context.Background()
	recorder := &recordingRecorder{}
	store := NewInstrumentedStore(NewMemoryStore(), "memory", recorder)

	id, err := store.Insert(ctx, "tenants", map[string]any{"name": "Acme"})
	require.NoError(t, err)
	_, err = store.Get(ctx, "tenants", id)
	require.NoError(t, err)
	_, err = store.Get(ctx, "tenants", "missing")
	require.ErrorIs(t, err, ErrNotFound)

	assert.Equal(t, []string{"memory.insert", "memory.get", "memory.get"}, recorder.operations)
	assert.Equal(t, 1, recorder.failures)
}
