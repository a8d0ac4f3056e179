package store

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type backend interface {
	DocumentStore
	CacheStore
}

func openSQLite(t *testing.T, path string) *SQLiteStore {
	t.Helper()
	s, err := NewSQLiteStore(SQLiteConfig{Path: path})
	require.NoError(t, err)
	require.NoError(t, s.Connect(t.Context()))
	require.NoError(t, s.Migrate(t.Context()))
	return s
}

// forEachBackend runs fn against every store implementation.
func forEachBackend(t *testing.T, fn func(t *testing.T, s backend)) {
	t.Run("memory", func(t *testing.T) {
		fn(t, NewMemoryStore())
	})
	t.Run("sqlite", func(t *testing.T) {
		s := openSQLite(t, filepath.Join(t.TempDir(), "store.db"))
		t.Cleanup(func() { _ = s.Close() })
		fn(t, s)
	})
}

func ids(res *QueryResult) []string {
	out := make([]string, len(res.Documents))
	for i, doc := range res.Documents {
		out[i] = doc.ID
	}
	return out
}

func TestStore_GetSet(t *testing.T) {
	forEachBackend(t, func(t *testing.T, s backend) {
		ctx := t.Context()

		_, err := s.Get(ctx, "loadouts/missing")
		assert.True(t, errors.Is(err, ErrNotFound))

		_, err = s.Get(ctx, "loadouts")
		assert.True(t, errors.Is(err, ErrInvalidPath))

		require.NoError(t, s.Set(ctx, "loadouts/a", Fields{
			"name":  "Zulrah",
			"likes": 3,
			"tags":  []string{"boss"},
			"setup": map[string]any{"sb": 1},
		}))

		doc, err := s.Get(ctx, "loadouts/a")
		require.NoError(t, err)
		assert.Equal(t, "a", doc.ID)
		assert.Equal(t, "Zulrah", doc.String("name"))
		assert.Equal(t, int64(3), doc.Int64("likes"))
		assert.Equal(t, []any{"boss"}, doc.Fields["tags"])
		assert.Equal(t, map[string]any{"sb": float64(1)}, doc.Fields["setup"])
	})
}

func TestStore_MergeAndOverwrite(t *testing.T) {
	forEachBackend(t, func(t *testing.T, s backend) {
		ctx := t.Context()
		require.NoError(t, s.Set(ctx, "users/u1", Fields{"a": 1, "b": 2}))

		require.NoError(t, s.Set(ctx, "users/u1", Fields{"b": 3}, Merge()))
		doc, err := s.Get(ctx, "users/u1")
		require.NoError(t, err)
		assert.Equal(t, Fields{"a": float64(1), "b": float64(3)}, doc.Fields)

		require.NoError(t, s.Set(ctx, "users/u1", Fields{"c": 4}))
		doc, err = s.Get(ctx, "users/u1")
		require.NoError(t, err)
		assert.Equal(t, Fields{"c": float64(4)}, doc.Fields)
	})
}

func TestStore_Sentinels(t *testing.T) {
	forEachBackend(t, func(t *testing.T, s backend) {
		ctx := t.Context()
		before := time.Now().Add(-time.Second).UnixMilli()

		require.NoError(t, s.Set(ctx, "stats/global", Fields{
			"totalLoadouts": Increment(1),
			"lastUpdated":   ServerTimestamp(),
		}, Merge()))
		require.NoError(t, s.Set(ctx, "stats/global", Fields{
			"totalLoadouts": Increment(2),
		}, Merge()))

		doc, err := s.Get(ctx, "stats/global")
		require.NoError(t, err)
		assert.Equal(t, int64(3), doc.Int64("totalLoadouts"))
		assert.GreaterOrEqual(t, doc.Int64("lastUpdated"), before)
		assert.LessOrEqual(t, doc.Int64("lastUpdated"), time.Now().Add(time.Second).UnixMilli())
	})
}

func TestStore_TransactionIsAtomic(t *testing.T) {
	forEachBackend(t, func(t *testing.T, s backend) {
		ctx := t.Context()

		err := s.RunTransaction(ctx, func(tx Writer) error {
			tx.Set("loadouts/a", Fields{"n": 1})
			tx.Update("loadouts/missing", Fields{"n": 2})
			return nil
		})
		assert.True(t, errors.Is(err, ErrNotFound))

		_, err = s.Get(ctx, "loadouts/a")
		assert.True(t, errors.Is(err, ErrNotFound), "no write of a failed transaction is visible")

		abort := errors.New("abort")
		err = s.RunTransaction(ctx, func(tx Writer) error {
			tx.Set("loadouts/b", Fields{"n": 1})
			return abort
		})
		assert.ErrorIs(t, err, abort)
		_, err = s.Get(ctx, "loadouts/b")
		assert.True(t, errors.Is(err, ErrNotFound))

		require.NoError(t, s.RunTransaction(ctx, func(tx Writer) error {
			tx.Set("loadouts/c", Fields{"likes": 1})
			tx.Update("loadouts/c", Fields{"likes": Increment(1)})
			tx.Set("users/u1/likes/c", Fields{"loadoutId": "c"})
			return nil
		}))
		doc, err := s.Get(ctx, "loadouts/c")
		require.NoError(t, err)
		assert.Equal(t, int64(2), doc.Int64("likes"), "later writes see earlier writes of the transaction")

		require.NoError(t, s.Batch(ctx, func(w Writer) error {
			w.Delete("users/u1/likes/c")
			w.Delete("users/u1/likes/never-existed")
			return nil
		}))
		_, err = s.Get(ctx, "users/u1/likes/c")
		assert.True(t, errors.Is(err, ErrNotFound))
	})
}

func seedLoadouts(t *testing.T, s DocumentStore) {
	t.Helper()
	categories := []string{"Boss", "Skill", "Custom"}
	for i := 0; i < 7; i++ {
		require.NoError(t, s.Set(t.Context(), fmt.Sprintf("loadouts/l%d", i), Fields{
			"category":  categories[i%3],
			"likes":     i % 3,
			"tags":      []string{fmt.Sprintf("t%d", i%2), "all"},
			"isPublic":  i != 6,
			"createdAt": 1000 + i,
		}))
	}
}

func TestStore_QueryFilters(t *testing.T) {
	forEachBackend(t, func(t *testing.T, s backend) {
		ctx := t.Context()
		seedLoadouts(t, s)

		tests := []struct {
			name        string
			constraints []Constraint
			want        []string
		}{
			{"equal", []Constraint{Where{"category", OpEqual, "Boss"}}, []string{"l0", "l3", "l6"}},
			{"in", []Constraint{Where{"category", OpIn, []string{"Skill", "Custom"}}}, []string{"l1", "l2", "l4", "l5"}},
			{"array contains any", []Constraint{Where{"tags", OpArrayContainsAny, []string{"t1"}}}, []string{"l1", "l3", "l5"}},
			{"bool", []Constraint{Where{"isPublic", OpEqual, false}}, []string{"l6"}},
			{"greater or equal", []Constraint{Where{"createdAt", OpGreaterOrEqual, 1005}}, []string{"l5", "l6"}},
			{"combined", []Constraint{
				Where{"category", OpEqual, "Boss"},
				Where{"isPublic", OpEqual, true},
				OrderBy{"createdAt", Descending},
			}, []string{"l3", "l0"}},
			{"limit", []Constraint{OrderBy{"createdAt", Ascending}, Limit{2}}, []string{"l0", "l1"}},
		}

		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				res, err := s.Query(ctx, "loadouts", tt.constraints...)
				require.NoError(t, err)
				assert.Equal(t, tt.want, ids(res))
			})
		}
	})
}

func TestStore_CursorPaging(t *testing.T) {
	forEachBackend(t, func(t *testing.T, s backend) {
		ctx := t.Context()
		seedLoadouts(t, s)

		var (
			seen   []string
			likes  []int64
			cursor string
		)
		for pages := 0; pages < 10; pages++ {
			res, err := s.Query(ctx, "loadouts", OrderBy{"likes", Descending}, Limit{2}, StartAfter{cursor})
			require.NoError(t, err)
			if len(res.Documents) == 0 {
				assert.Empty(t, res.Cursor)
				break
			}
			for _, doc := range res.Documents {
				seen = append(seen, doc.ID)
				likes = append(likes, doc.Int64("likes"))
			}
			cursor = res.Cursor
		}

		assert.ElementsMatch(t, []string{"l0", "l1", "l2", "l3", "l4", "l5", "l6"}, seen)
		for i := 1; i < len(likes); i++ {
			assert.LessOrEqual(t, likes[i], likes[i-1])
		}
	})
}

func TestStore_QueryScopes(t *testing.T) {
	forEachBackend(t, func(t *testing.T, s backend) {
		ctx := t.Context()
		require.NoError(t, s.Set(ctx, "users/u1", Fields{"loadoutCount": 1}))
		require.NoError(t, s.Set(ctx, "users/u1/likes/a", Fields{"loadoutId": "a"}))
		require.NoError(t, s.Set(ctx, "users/u2/likes/a", Fields{"loadoutId": "a"}))
		require.NoError(t, s.Set(ctx, "users/u2/likes/b", Fields{"loadoutId": "b"}))

		users, err := s.Query(ctx, "users")
		require.NoError(t, err)
		assert.Equal(t, []string{"u1"}, ids(users))

		own, err := s.Query(ctx, "users/u2/likes")
		require.NoError(t, err)
		assert.Equal(t, []string{"a", "b"}, ids(own))

		group, err := s.QueryGroup(ctx, "likes", Where{"loadoutId", OpEqual, "a"})
		require.NoError(t, err)
		paths := []string{}
		for _, doc := range group.Documents {
			paths = append(paths, doc.Path)
		}
		assert.Equal(t, []string{"users/u1/likes/a", "users/u2/likes/a"}, paths)
	})
}

func TestStore_InvalidQueries(t *testing.T) {
	forEachBackend(t, func(t *testing.T, s backend) {
		ctx := t.Context()

		for _, c := range [][]Constraint{
			{StartAfter{"not-a-cursor!"}},
			{Where{"bad field", OpEqual, 1}},
			{Where{"tags", OpIn, "single"}},
			{Where{"n", Operator("<"), 1}},
			{OrderBy{"a", Ascending}, OrderBy{"b", Ascending}},
		} {
			_, err := s.Query(ctx, "loadouts", c...)
			assert.True(t, errors.Is(err, ErrInvalidQuery), "%v", c)
		}
	})
}

func TestStore_CacheEntries(t *testing.T) {
	forEachBackend(t, func(t *testing.T, s backend) {
		ctx := t.Context()

		_, err := s.GetEntry(ctx, "stats", "k")
		assert.True(t, errors.Is(err, ErrNotFound))

		require.NoError(t, s.PutEntry(ctx, CacheEntry{Namespace: "stats", Key: "k", Data: []byte(`{"a":1}`), Timestamp: 10}))
		require.NoError(t, s.PutEntry(ctx, CacheEntry{Namespace: "stats", Key: "k", Data: []byte(`{"a":2}`), Timestamp: 20}))

		entry, err := s.GetEntry(ctx, "stats", "k")
		require.NoError(t, err)
		assert.JSONEq(t, `{"a":2}`, string(entry.Data))
		assert.Equal(t, int64(20), entry.Timestamp)

		_, err = s.GetEntry(ctx, "items", "k")
		assert.True(t, errors.Is(err, ErrNotFound), "namespaces are separate")

		require.NoError(t, s.RemoveEntry(ctx, "stats", "k"))
		_, err = s.GetEntry(ctx, "stats", "k")
		assert.True(t, errors.Is(err, ErrNotFound))
	})
}

func TestSQLiteStore_PersistsAcrossReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "persist.db")
	ctx := context.Background()

	s := openSQLite(t, path)
	require.NoError(t, s.Set(ctx, "loadouts/a", Fields{"likes": 5}))
	require.NoError(t, s.Close())

	reopened := openSQLite(t, path)
	defer reopened.Close()

	doc, err := reopened.Get(ctx, "loadouts/a")
	require.NoError(t, err)
	assert.Equal(t, int64(5), doc.Int64("likes"))
}

func TestSplitPath(t *testing.T) {
	collection, collectionID, id, err := SplitPath("users/u1/likes/l1")
	require.NoError(t, err)
	assert.Equal(t, "users/u1/likes", collection)
	assert.Equal(t, "likes", collectionID)
	assert.Equal(t, "l1", id)

	for _, bad := range []string{"", "users", "users/u1/likes", "users//x/y"} {
		_, _, _, err := SplitPath(bad)
		assert.True(t, errors.Is(err, ErrInvalidPath), bad)
	}
}
