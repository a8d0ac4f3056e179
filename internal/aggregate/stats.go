package aggregate

import (
	"context"
	"errors"
	"time"

	"github.com/mwantia/loadoutsync/internal/loadout"
	"github.com/mwantia/loadoutsync/pkg/db/store"
)

// StartOfDay returns local midnight of t.
func StartOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

// Summary returns the global loadout count and the loadouts created today.
// The global stats document is initialised by counting when it is missing.
func (e *Engine) Summary(ctx context.Context) (loadout.Summary, error) {
	var summary loadout.Summary

	doc, err := e.store.Get(ctx, loadout.GlobalStatsPath)
	switch {
	case err == nil:
		summary.Total = doc.Int64("totalLoadouts")
	case errors.Is(err, store.ErrNotFound):
		all, err := e.store.Query(ctx, loadout.CollectionLoadouts)
		if err != nil {
			return summary, remoteError("count loadouts", err)
		}
		summary.Total = int64(len(all.Documents))

		err = e.store.Set(ctx, loadout.GlobalStatsPath, store.Fields{
			"totalLoadouts": summary.Total,
			"lastUpdated":   store.ServerTimestamp(),
		})
		if err != nil {
			return summary, remoteError("initialise stats", err)
		}
		e.log.Info("Initialised global stats with %d loadouts", summary.Total)
	default:
		return summary, remoteError("read stats", err)
	}

	today, err := e.CountSince(ctx, StartOfDay(e.now()))
	if err != nil {
		return summary, err
	}
	summary.Today = today
	return summary, nil
}

// CountSince counts the loadouts created at or after t.
func (e *Engine) CountSince(ctx context.Context, t time.Time) (int64, error) {
	res, err := e.store.Query(ctx, loadout.CollectionLoadouts, store.Where{
		Field: "createdAt",
		Op:    store.OpGreaterOrEqual,
		Value: loadout.Millis(t),
	})
	if err != nil {
		return 0, remoteError("count loadouts", err)
	}
	return int64(len(res.Documents)), nil
}

// UserStats returns the counters of uid's profile, computing and storing
// them from the user's loadouts when the profile does not exist.
func (e *Engine) UserStats(ctx context.Context, uid string) (loadout.UserStats, error) {
	var stats loadout.UserStats

	doc, err := e.store.Get(ctx, loadout.UserPath(uid))
	if err == nil {
		stats.LoadoutCount = doc.Int64("loadoutCount")
		stats.TotalLikes = doc.Int64("totalLikes")
		stats.TotalViews = doc.Int64("totalViews")
		return stats, nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return stats, remoteError("read profile", err)
	}

	owned, err := e.store.Query(ctx, loadout.CollectionLoadouts,
		store.Where{Field: "userId", Op: store.OpEqual, Value: uid})
	if err != nil {
		return stats, remoteError("query user loadouts", err)
	}
	for _, d := range owned.Documents {
		stats.LoadoutCount++
		stats.TotalLikes += max(d.Int64("likes"), 0)
		stats.TotalViews += max(d.Int64("views"), 0)
	}

	err = e.store.Set(ctx, loadout.UserPath(uid), store.Fields{
		"loadoutCount": stats.LoadoutCount,
		"totalLikes":   stats.TotalLikes,
		"totalViews":   stats.TotalViews,
		"lastUpdated":  store.ServerTimestamp(),
	}, store.Merge())
	if err != nil {
		return stats, remoteError("initialise profile", err)
	}
	return stats, nil
}

// Recompute counts the aggregate stats from the source collections.
func (e *Engine) Recompute(ctx context.Context) (loadout.Stats, error) {
	var stats loadout.Stats

	loadouts, err := e.store.Query(ctx, loadout.CollectionLoadouts)
	if err != nil {
		return stats, remoteError("scan loadouts", err)
	}
	users, err := e.store.Query(ctx, loadout.CollectionUsers)
	if err != nil {
		return stats, remoteError("scan users", err)
	}

	since := loadout.Millis(StartOfDay(e.now()))
	stats.TotalLoadouts = int64(len(loadouts.Documents))
	stats.TotalUsers = int64(len(users.Documents))
	for _, doc := range loadouts.Documents {
		stats.TotalLikes += max(doc.Int64("likes"), 0)
		if doc.Int64("createdAt") >= since {
			stats.NewToday++
		}
	}
	return stats, nil
}

// PublishStats merges recomputed stats into the global stats document.
func (e *Engine) PublishStats(ctx context.Context, stats loadout.Stats) error {
	err := e.store.Set(ctx, loadout.GlobalStatsPath, store.Fields{
		"totalLoadouts": stats.TotalLoadouts,
		"totalUsers":    stats.TotalUsers,
		"totalLikes":    stats.TotalLikes,
		"newToday":      stats.NewToday,
		"lastUpdated":   store.ServerTimestamp(),
	}, store.Merge())
	if err != nil {
		return remoteError("write stats", err)
	}
	return nil
}
