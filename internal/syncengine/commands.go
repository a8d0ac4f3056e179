package syncengine

import (
	"context"

	"github.com/mwantia/loadoutsync/internal/loadout"
	"github.com/mwantia/loadoutsync/internal/query"
)

// Create shows l locally at once and writes it with the counter updates.
// Server-assigned fields are read back in the background.
func (e *Engine) Create(ctx context.Context, l loadout.Loadout) (loadout.Loadout, error) {
	uid, err := e.session.RequireUser()
	if err != nil {
		return loadout.Loadout{}, err
	}

	prepared, err := e.agg.Prepare(uid, l)
	if err != nil {
		return loadout.Loadout{}, err
	}

	filter := e.filters.Value()
	front := filter.SortBy == query.SortByDate && filter.SortDirection == query.Descending

	err = e.mutate(ctx, mutation{
		op:    "create",
		apply: func() { e.local.Insert(prepared, front) },
		commit: func(ctx context.Context) error {
			return e.agg.Create(ctx, prepared)
		},
		observed: func(loadouts []loadout.Loadout) bool {
			return contains(loadouts, prepared.ID)
		},
		keepOnEmpty: true,
		background:  true,
	})
	return prepared, err
}

// Delete removes id locally ahead of the remote delete. Ownership is
// verified first; a rejected delete leaves everything untouched.
func (e *Engine) Delete(ctx context.Context, id string) error {
	uid, err := e.session.RequireUser()
	if err != nil {
		return err
	}

	plan, err := e.agg.PlanDelete(ctx, uid, id)
	if err != nil {
		return err
	}

	return e.mutate(ctx, mutation{
		op:    "delete",
		apply: func() { e.local.Remove(id) },
		commit: func(ctx context.Context) error {
			if err := e.agg.Delete(ctx, plan); err != nil {
				return err
			}
			e.setLiked(id, false)
			return nil
		},
		observed: func(loadouts []loadout.Loadout) bool {
			return !contains(loadouts, id)
		},
	})
}

// ToggleLike likes or unlikes id and returns the new state.
func (e *Engine) ToggleLike(ctx context.Context, id string) (bool, error) {
	uid, err := e.session.RequireUser()
	if err != nil {
		return false, err
	}

	plan, err := e.agg.PlanLike(ctx, uid, id)
	if err != nil {
		return false, err
	}
	expected := plan.Expected()

	err = e.mutate(ctx, mutation{
		op:    "like",
		apply: func() { e.local.AdjustLikes(id, plan.Delta()) },
		commit: func(ctx context.Context) error {
			if err := e.agg.Like(ctx, plan); err != nil {
				return err
			}
			e.setLiked(id, !plan.Liked)
			return nil
		},
		observed: func(loadouts []loadout.Loadout) bool {
			for _, l := range loadouts {
				if l.ID == id {
					return l.Likes == expected
				}
			}
			return true
		},
	})
	if err != nil {
		return plan.Liked, err
	}
	return !plan.Liked, nil
}

// RecordView counts a view of id.
func (e *Engine) RecordView(ctx context.Context, id string) error {
	return e.mutate(ctx, mutation{
		op:    "view",
		apply: func() { e.local.AdjustViews(id, 1) },
		commit: func(ctx context.Context) error {
			return e.agg.RecordView(ctx, id)
		},
	})
}

// Summary returns the global loadout count and today's additions.
func (e *Engine) Summary(ctx context.Context) (loadout.Summary, error) {
	summary, err := e.agg.Summary(ctx)
	if err != nil {
		e.log.Warn("Failed to read loadout summary: %v", err)
	}
	return summary, err
}

// UserStats returns the profile counters of uid, or of the current user
// when uid is empty.
func (e *Engine) UserStats(ctx context.Context, uid string) (loadout.UserStats, error) {
	if uid == "" {
		var err error
		if uid, err = e.session.RequireUser(); err != nil {
			return loadout.UserStats{}, err
		}
	}

	stats, err := e.agg.UserStats(ctx, uid)
	if err != nil {
		e.log.Warn("Failed to read stats of '%s': %v", uid, err)
	}
	return stats, err
}
