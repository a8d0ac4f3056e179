package aggregate

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/mwantia/loadoutsync/internal/loadout"
	"github.com/mwantia/loadoutsync/pkg/db/store"
	"github.com/mwantia/loadoutsync/pkg/db/store/storetest"
	"github.com/mwantia/loadoutsync/pkg/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newEngine(t *testing.T) (*Engine, *storetest.FaultyStore) {
	t.Helper()
	fs := storetest.NewFaultyStore()
	return NewEngine(fs, log.Discard(), Options{BatchLimit: 2}), fs
}

func create(t *testing.T, e *Engine, uid, name string) loadout.Loadout {
	t.Helper()
	l, err := e.Prepare(uid, loadout.Loadout{
		Category: loadout.CategoryBoss,
		Setup:    loadout.NewSetup(name),
		IsPublic: true,
	})
	require.NoError(t, err)
	require.NoError(t, e.Create(t.Context(), l))
	return l
}

func get(t *testing.T, fs *storetest.FaultyStore, path string) *store.Document {
	t.Helper()
	doc, err := fs.MemoryStore.Get(t.Context(), path)
	require.NoError(t, err)
	return doc
}

func exists(ctx context.Context, fs *storetest.FaultyStore, path string) bool {
	_, err := fs.MemoryStore.Get(ctx, path)
	return err == nil
}

func TestPrepare(t *testing.T) {
	e, _ := newEngine(t)

	_, err := e.Prepare("", loadout.Loadout{})
	assert.True(t, errors.Is(err, loadout.ErrNotAuthenticated))

	l, err := e.Prepare("u1", loadout.Loadout{
		Category: loadout.CategorySkill,
		Setup:    loadout.NewSetup("Agility"),
		Tags:     []string{"b", "a", "b"},
		Likes:    7,
	})
	require.NoError(t, err)
	assert.NotEmpty(t, l.ID)
	assert.Equal(t, "u1", l.UserID)
	assert.Equal(t, int64(0), l.Likes)
	assert.Equal(t, int64(1), l.Version)
	assert.Equal(t, []string{"a", "b"}, l.Tags)
	assert.Equal(t, loadout.KindInventory, l.Kind)
	assert.False(t, l.CreatedAt.IsZero())

	_, err = e.Prepare("u1", loadout.Loadout{Category: "Raid", Setup: loadout.NewSetup("x")})
	assert.True(t, errors.Is(err, loadout.ErrInvalidLoadout))
}

func TestCreate_UpdatesCounters(t *testing.T) {
	e, fs := newEngine(t)

	l := create(t, e, "u1", "first")
	create(t, e, "u1", "second")

	doc := get(t, fs, loadout.LoadoutPath(l.ID))
	assert.Equal(t, "u1", doc.String("userId"))
	assert.Equal(t, int64(0), doc.Int64("likes"))
	assert.Equal(t, int64(1), doc.Int64("version"))
	assert.Positive(t, doc.Int64("createdAt"))

	assert.Equal(t, int64(2), get(t, fs, loadout.UserPath("u1")).Int64("loadoutCount"))
	assert.Equal(t, int64(2), get(t, fs, loadout.GlobalStatsPath).Int64("totalLoadouts"))
}

func TestCreate_FailureWritesNothing(t *testing.T) {
	e, fs := newEngine(t)
	fs.FailTransaction(errors.New("unavailable"))

	l, err := e.Prepare("u1", loadout.Loadout{Category: loadout.CategoryBoss, Setup: loadout.NewSetup("x")})
	require.NoError(t, err)

	err = e.Create(t.Context(), l)
	assert.True(t, errors.Is(err, loadout.ErrRemoteFailure))
	assert.False(t, exists(t.Context(), fs, loadout.LoadoutPath(l.ID)))
	assert.False(t, exists(t.Context(), fs, loadout.GlobalStatsPath))
}

func TestDelete_RejectsNonOwnerBeforeTransaction(t *testing.T) {
	e, fs := newEngine(t)
	l := create(t, e, "owner", "mine")
	before := fs.Transactions()

	_, err := e.PlanDelete(t.Context(), "intruder", l.ID)
	assert.True(t, errors.Is(err, loadout.ErrPermissionDenied))
	assert.Equal(t, before, fs.Transactions())
	assert.True(t, exists(t.Context(), fs, loadout.LoadoutPath(l.ID)))
}

func TestDelete_NotFound(t *testing.T) {
	e, _ := newEngine(t)

	_, err := e.PlanDelete(t.Context(), "u1", "missing")
	assert.True(t, errors.Is(err, loadout.ErrNotFound))
}

func TestDelete_RemovesLikesAndDecrements(t *testing.T) {
	e, fs := newEngine(t)
	ctx := t.Context()
	l := create(t, e, "owner", "mine")

	for _, uid := range []string{"owner", "a", "b", "c"} {
		plan, err := e.PlanLike(ctx, uid, l.ID)
		require.NoError(t, err)
		require.NoError(t, e.Like(ctx, plan))
	}

	plan, err := e.PlanDelete(ctx, "owner", l.ID)
	require.NoError(t, err)
	assert.True(t, plan.OwnLike)
	assert.Len(t, plan.ForeignLikes, 3)

	batches := fs.Batches()
	require.NoError(t, e.Delete(ctx, plan))
	assert.Equal(t, batches+2, fs.Batches(), "three foreign likes in batches of two")

	assert.False(t, exists(ctx, fs, loadout.LoadoutPath(l.ID)))
	for _, uid := range []string{"owner", "a", "b", "c"} {
		assert.False(t, exists(ctx, fs, loadout.LikePath(uid, l.ID)), uid)
	}
	assert.Equal(t, int64(0), get(t, fs, loadout.UserPath("owner")).Int64("loadoutCount"))
	assert.Equal(t, int64(0), get(t, fs, loadout.GlobalStatsPath).Int64("totalLoadouts"))
}

func TestDelete_CleanupFailureStillDeletes(t *testing.T) {
	e, fs := newEngine(t)
	ctx := t.Context()
	l := create(t, e, "owner", "mine")

	plan, err := e.PlanLike(ctx, "fan", l.ID)
	require.NoError(t, err)
	require.NoError(t, e.Like(ctx, plan))

	fs.FailBatch(errors.New("batch rejected"))
	dp, err := e.PlanDelete(ctx, "owner", l.ID)
	require.NoError(t, err)
	require.NoError(t, e.Delete(ctx, dp))

	assert.False(t, exists(ctx, fs, loadout.LoadoutPath(l.ID)))
	assert.True(t, exists(ctx, fs, loadout.LikePath("fan", l.ID)), "orphaned like is left behind")
}

func TestDelete_NeverGoesNegative(t *testing.T) {
	e, fs := newEngine(t)
	ctx := t.Context()
	l := create(t, e, "owner", "mine")

	require.NoError(t, fs.MemoryStore.Set(ctx, loadout.GlobalStatsPath, store.Fields{"totalLoadouts": 0}))

	plan, err := e.PlanDelete(ctx, "owner", l.ID)
	require.NoError(t, err)
	require.NoError(t, e.Delete(ctx, plan))
	assert.Equal(t, int64(0), get(t, fs, loadout.GlobalStatsPath).Int64("totalLoadouts"))
}

func TestLike_TogglePairIsIdempotent(t *testing.T) {
	e, fs := newEngine(t)
	ctx := t.Context()
	l := create(t, e, "owner", "mine")

	plan, err := e.PlanLike(ctx, "fan", l.ID)
	require.NoError(t, err)
	assert.False(t, plan.Liked)
	assert.Equal(t, int64(1), plan.Expected())
	require.NoError(t, e.Like(ctx, plan))

	assert.Equal(t, int64(1), get(t, fs, loadout.LoadoutPath(l.ID)).Int64("likes"))
	assert.Equal(t, int64(1), get(t, fs, loadout.UserPath("owner")).Int64("totalLikes"))
	liked, err := e.HasLiked(ctx, "fan", l.ID)
	require.NoError(t, err)
	assert.True(t, liked)

	plan, err = e.PlanLike(ctx, "fan", l.ID)
	require.NoError(t, err)
	assert.True(t, plan.Liked)
	assert.Equal(t, int64(-1), plan.Delta())
	require.NoError(t, e.Like(ctx, plan))

	assert.Equal(t, int64(0), get(t, fs, loadout.LoadoutPath(l.ID)).Int64("likes"))
	assert.Equal(t, int64(0), get(t, fs, loadout.UserPath("owner")).Int64("totalLikes"))
	assert.False(t, exists(ctx, fs, loadout.LikePath("fan", l.ID)))
}

func TestLike_LoadoutDeletedBetweenPlanAndCommit(t *testing.T) {
	e, fs := newEngine(t)
	ctx := t.Context()
	l := create(t, e, "owner", "mine")

	plan, err := e.PlanLike(ctx, "fan", l.ID)
	require.NoError(t, err)
	require.NoError(t, fs.MemoryStore.Delete(ctx, loadout.LoadoutPath(l.ID)))

	err = e.Like(ctx, plan)
	assert.True(t, errors.Is(err, loadout.ErrNotFound))
	assert.False(t, exists(ctx, fs, loadout.LikePath("fan", l.ID)), "transaction is all or nothing")
}

func TestLike_RequiresUser(t *testing.T) {
	e, _ := newEngine(t)
	_, err := e.PlanLike(t.Context(), "", "x")
	assert.True(t, errors.Is(err, loadout.ErrNotAuthenticated))
}

func TestLikedIDs(t *testing.T) {
	e, _ := newEngine(t)
	ctx := t.Context()
	a := create(t, e, "owner", "a")
	b := create(t, e, "owner", "b")

	for _, id := range []string{a.ID, b.ID} {
		plan, err := e.PlanLike(ctx, "fan", id)
		require.NoError(t, err)
		require.NoError(t, e.Like(ctx, plan))
	}

	ids, err := e.LikedIDs(ctx, "fan")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{a.ID, b.ID}, ids)
}

func TestRecordView(t *testing.T) {
	e, fs := newEngine(t)
	ctx := t.Context()
	l := create(t, e, "owner", "mine")

	require.NoError(t, e.RecordView(ctx, l.ID))
	require.NoError(t, e.RecordView(ctx, l.ID))

	assert.Equal(t, int64(2), get(t, fs, loadout.LoadoutPath(l.ID)).Int64("views"))
	assert.Equal(t, int64(2), get(t, fs, loadout.UserPath("owner")).Int64("totalViews"))
	assert.True(t, errors.Is(e.RecordView(ctx, "missing"), loadout.ErrNotFound))
}

func TestEnsureProfile(t *testing.T) {
	e, fs := newEngine(t)
	ctx := t.Context()

	require.NoError(t, e.EnsureProfile(ctx, "u1"))
	doc := get(t, fs, loadout.UserPath("u1"))
	assert.Equal(t, int64(0), doc.Int64("loadoutCount"))

	create(t, e, "u1", "x")
	require.NoError(t, e.EnsureProfile(ctx, "u1"))
	assert.Equal(t, int64(1), get(t, fs, loadout.UserPath("u1")).Int64("loadoutCount"))
}

func TestSummaryAndUserStats(t *testing.T) {
	now := time.Date(2024, 5, 10, 15, 0, 0, 0, time.UTC)
	fs := storetest.NewFaultyStore()
	fs.MemoryStore.WithClock(func() time.Time { return now })
	e := NewEngine(fs, log.Discard(), Options{Now: func() time.Time { return now }})
	ctx := t.Context()

	old := loadout.Loadout{ID: "old", UserID: "u1", Category: loadout.CategoryBoss, Setup: loadout.NewSetup("old"), Likes: 3, Views: 4}
	fields := old.Fields()
	fields["createdAt"] = now.Add(-48 * time.Hour).UnixMilli()
	require.NoError(t, fs.MemoryStore.Set(ctx, loadout.LoadoutPath("old"), fields))

	recent := old
	recent.ID = "recent"
	fields = recent.Fields()
	fields["createdAt"] = now.Add(-time.Hour).UnixMilli()
	require.NoError(t, fs.MemoryStore.Set(ctx, loadout.LoadoutPath("recent"), fields))

	summary, err := e.Summary(ctx)
	require.NoError(t, err)
	assert.Equal(t, loadout.Summary{Total: 2, Today: 1}, summary)
	assert.Equal(t, int64(2), get(t, fs, loadout.GlobalStatsPath).Int64("totalLoadouts"))

	stats, err := e.UserStats(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, loadout.UserStats{LoadoutCount: 2, TotalLikes: 6, TotalViews: 8}, stats)
	assert.Equal(t, int64(6), get(t, fs, loadout.UserPath("u1")).Int64("totalLikes"))

	recomputed, err := e.Recompute(ctx)
	require.NoError(t, err)
	assert.Equal(t, loadout.Stats{TotalLoadouts: 2, TotalUsers: 1, TotalLikes: 6, NewToday: 1}, recomputed)
}

func TestRemoteErrors(t *testing.T) {
	e, fs := newEngine(t)
	fs.FailGet(errors.New("offline"))

	_, err := e.PlanDelete(t.Context(), "u1", "x")
	assert.True(t, errors.Is(err, loadout.ErrRemoteFailure))

	_, err = e.Summary(t.Context())
	assert.True(t, errors.Is(err, loadout.ErrRemoteFailure))
}
