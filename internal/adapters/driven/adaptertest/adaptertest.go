// Package adaptertest holds the behavioural suite every persistence.Repository
// must pass, whatever its storage layout.
package adaptertest

import (
	"context"
	"net/http"
	"persistor/internal/core/domain"
	"persistor/internal/core/service/persistence"
	"slices"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Layout describes the ways adapters are allowed to differ.
type Layout struct {
	// Ordered adapters return GetAll in insertion order.
	Ordered bool
	// IdempotentRemove adapters report success when removing an unknown id.
	IdempotentRemove bool
}

// Run runs the suite. newRepo must return a repository over a fresh, absent collection.
func Run(t *testing.T, layout Layout, newRepo func(t *testing.T) persistence.Repository) {
	t.Helper()
	ctx := context.Background()

	t.Run("absent collection is not found", func(t *testing.T) {
		repo := newRepo(t)

		_, err := repo.Get(ctx, 1)
		assertStatus(t, http.StatusNotFound, err)

		_, err = repo.GetAll(ctx)
		assertStatus(t, http.StatusNotFound, err)
	})

	t.Run("create then get returns the record plus its id", func(t *testing.T) {
		repo := newRepo(t)
		record := domain.Record{"param": "blah", "count": 3, "tags": []any{"a", "b"}}

		id, err := repo.Create(ctx, record)
		require.NoError(t, err)
		assert.Equal(t, 1, id)
		assert.NotContains(t, record, domain.IDField, "the caller's record is not mutated")

		got, err := repo.Get(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, domain.Record{"param": "blah", "count": 3, "tags": []any{"a", "b"}, "id": 1}, got)
	})

	t.Run("ids strictly increase", func(t *testing.T) {
		repo := newRepo(t)

		previous := 0
		for i := 0; i < 5; i++ {
			id, err := repo.Create(ctx, domain.Record{"n": i})
			require.NoError(t, err)
			assert.Greater(t, id, previous)
			previous = id
		}
		assert.Equal(t, 5, previous)
	})

	t.Run("an incoming id is replaced", func(t *testing.T) {
		repo := newRepo(t)

		id, err := repo.Create(ctx, domain.Record{"id": 42, "param": "a"})
		require.NoError(t, err)
		assert.Equal(t, 1, id)

		got, err := repo.Get(ctx, 1)
		require.NoError(t, err)
		assert.Equal(t, 1, got[domain.IDField])
	})

	t.Run("get of an unknown id is not found", func(t *testing.T) {
		repo := newRepo(t)
		_, err := repo.Create(ctx, domain.Record{"param": "a"})
		require.NoError(t, err)

		_, err = repo.Get(ctx, 99)
		assertStatus(t, http.StatusNotFound, err)
	})

	t.Run("update of an unknown id is not found and changes nothing", func(t *testing.T) {
		repo := newRepo(t)
		_, err := repo.Create(ctx, domain.Record{"param": "a"})
		require.NoError(t, err)

		err = repo.Update(ctx, domain.Record{"id": 7, "param": "z"})
		assertStatus(t, http.StatusNotFound, err)

		all, err := repo.GetAll(ctx)
		require.NoError(t, err)
		assert.Equal(t, []domain.Record{{"id": 1, "param": "a"}}, all)
	})

	t.Run("update replaces the whole record", func(t *testing.T) {
		repo := newRepo(t)
		id, err := repo.Create(ctx, domain.Record{"param": "a", "extra": true})
		require.NoError(t, err)

		require.NoError(t, repo.Update(ctx, domain.Record{"id": id, "param": "b"}))

		got, err := repo.Get(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, domain.Record{"id": id, "param": "b"}, got)
	})

	t.Run("scenario", func(t *testing.T) {
		repo := newRepo(t)

		for i, param := range []string{"a", "b", "c"} {
			id, err := repo.Create(ctx, domain.Record{"param": param})
			require.NoError(t, err)
			assert.Equal(t, i+1, id)
		}

		all, err := repo.GetAll(ctx)
		require.NoError(t, err)
		want := []domain.Record{{"id": 1, "param": "a"}, {"id": 2, "param": "b"}, {"id": 3, "param": "c"}}
		if layout.Ordered {
			assert.Equal(t, want, all)
		} else {
			assert.ElementsMatch(t, want, all)
		}

		require.NoError(t, repo.Update(ctx, domain.Record{"id": 2, "param": "z"}))
		for id, param := range map[int]string{1: "a", 2: "z", 3: "c"} {
			got, err := repo.Get(ctx, id)
			require.NoError(t, err)
			assert.Equal(t, param, got["param"], "id %d", id)
		}

		require.NoError(t, repo.Remove(ctx, 2))

		_, err = repo.Get(ctx, 2)
		assertStatus(t, http.StatusNotFound, err)

		all, err = repo.GetAll(ctx)
		require.NoError(t, err)
		require.Len(t, all, 2)
		ids := idsOf(all)
		if !layout.Ordered {
			slices.Sort(ids)
		}
		assert.Equal(t, []int{1, 3}, ids)
	})

	t.Run("remove of an unknown id", func(t *testing.T) {
		repo := newRepo(t)
		_, err := repo.Create(ctx, domain.Record{"param": "a"})
		require.NoError(t, err)

		err = repo.Remove(ctx, 5)
		if layout.IdempotentRemove {
			assert.NoError(t, err)
		} else {
			assertStatus(t, http.StatusNotFound, err)
		}

		all, err := repo.GetAll(ctx)
		require.NoError(t, err)
		assert.Len(t, all, 1)
	})

	t.Run("removing the highest id frees it", func(t *testing.T) {
		repo := newRepo(t)
		for i := 0; i < 3; i++ {
			_, err := repo.Create(ctx, domain.Record{})
			require.NoError(t, err)
		}
		require.NoError(t, repo.Remove(ctx, 2))
		require.NoError(t, repo.Remove(ctx, 3))

		id, err := repo.Create(ctx, domain.Record{})
		require.NoError(t, err)
		assert.Equal(t, 2, id)
	})

	t.Run("emptied collection", func(t *testing.T) {
		repo := newRepo(t)
		id, err := repo.Create(ctx, domain.Record{"param": "a"})
		require.NoError(t, err)
		require.NoError(t, repo.Remove(ctx, id))

		all, err := repo.GetAll(ctx)
		require.NoError(t, err)
		assert.NotNil(t, all)
		assert.Empty(t, all)

		_, err = repo.Get(ctx, id)
		assertStatus(t, http.StatusNotFound, err)
	})
}

func assertStatus(t *testing.T, want int, err error) {
	t.Helper()

	require.Error(t, err)
	assert.Equal(t, want, persistence.StatusOf(err), "error: %v", err)
}

func idsOf(records []domain.Record) []int {
	ids := make([]int, 0, len(records))
	for _, r := range records {
		id, _ := r.ID()
		ids = append(ids, id)
	}
	return ids
}
