// Package aggregate keeps the loadout, owner profile and global stats
// documents consistent. Every multi-document update is a single write-only
// transaction; all values it depends on are read beforehand into a plan.
package aggregate

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/mwantia/loadoutsync/internal/loadout"
	"github.com/mwantia/loadoutsync/internal/metrics"
	"github.com/mwantia/loadoutsync/pkg/db/store"
	"github.com/mwantia/loadoutsync/pkg/log"
)

const DefaultBatchLimit = 500

type Options struct {
	// BatchLimit caps the writes of one cleanup batch.
	BatchLimit int
	Now        func() time.Time
}

type Engine struct {
	store      store.DocumentStore
	log        log.LoggerService
	batchLimit int
	now        func() time.Time
}

func NewEngine(ds store.DocumentStore, logger log.LoggerService, opts Options) *Engine {
	if opts.BatchLimit <= 0 {
		opts.BatchLimit = DefaultBatchLimit
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Engine{
		store:      ds,
		log:        logger,
		batchLimit: opts.BatchLimit,
		now:        opts.Now,
	}
}

// Prepare assigns the client-side fields of a new loadout owned by uid and
// validates it. The result is what the local view shows until the server
// values are read back.
func (e *Engine) Prepare(uid string, l loadout.Loadout) (loadout.Loadout, error) {
	if uid == "" {
		return loadout.Loadout{}, loadout.ErrNotAuthenticated
	}

	out := l.Clone()
	if out.ID == "" {
		out.ID = uuid.NewString()
	}
	now := e.now().UTC()
	out.UserID = uid
	out.Tags = loadout.NormalizeTags(out.Tags)
	out.Likes = 0
	out.Views = 0
	if out.Version <= 0 {
		out.Version = 1
	}
	if out.Kind == "" {
		out.Kind = loadout.KindInventory
	}
	out.CreatedAt = now
	out.UpdatedAt = now

	if err := loadout.Validate(&out); err != nil {
		return loadout.Loadout{}, err
	}
	return out, nil
}

// Create writes a prepared loadout and increments the owner and global
// loadout counts in one transaction.
func (e *Engine) Create(ctx context.Context, l loadout.Loadout) (err error) {
	defer e.observe("create", &err)

	if l.UserID == "" {
		return loadout.ErrNotAuthenticated
	}

	fields := l.Fields()
	fields["likes"] = 0
	fields["views"] = 0
	fields["createdAt"] = store.ServerTimestamp()
	fields["updatedAt"] = store.ServerTimestamp()

	err = e.store.RunTransaction(ctx, func(tx store.Writer) error {
		tx.Set(loadout.LoadoutPath(l.ID), fields)
		tx.Set(loadout.UserPath(l.UserID), store.Fields{
			"loadoutCount":       store.Increment(1),
			"lastLoadoutCreated": store.ServerTimestamp(),
		}, store.Merge())
		tx.Set(loadout.GlobalStatsPath, store.Fields{
			"totalLoadouts": store.Increment(1),
			"lastUpdated":   store.ServerTimestamp(),
		}, store.Merge())
		return nil
	})
	if err != nil {
		return remoteError("create loadout", err)
	}

	e.log.Debug("Created loadout '%s' for user '%s'", l.ID, l.UserID)
	return nil
}

// DeletePlan holds the reads a delete depends on.
type DeletePlan struct {
	LoadoutID string
	UserID    string

	// OwnLike is set when the caller liked their own loadout.
	OwnLike bool

	// ForeignLikes are the like records of other users.
	ForeignLikes []string

	loadoutCount  int64
	totalLoadouts int64
}

// PlanDelete verifies that uid owns the loadout and collects the like
// records pointing at it. Nothing is written.
func (e *Engine) PlanDelete(ctx context.Context, uid, id string) (*DeletePlan, error) {
	if uid == "" {
		return nil, loadout.ErrNotAuthenticated
	}

	doc, err := e.store.Get(ctx, loadout.LoadoutPath(id))
	if err != nil {
		return nil, remoteError("read loadout", err)
	}
	if owner := doc.String("userId"); owner != uid {
		return nil, fmt.Errorf("%w: loadout %s belongs to another user", loadout.ErrPermissionDenied, id)
	}

	likes, err := e.store.QueryGroup(ctx, loadout.CollectionLikes,
		store.Where{Field: "loadoutId", Op: store.OpEqual, Value: id})
	if err != nil {
		return nil, remoteError("query likes", err)
	}

	plan := &DeletePlan{LoadoutID: id, UserID: uid}
	own := loadout.LikePath(uid, id)
	for _, like := range likes.Documents {
		if like.Path == own {
			plan.OwnLike = true
			continue
		}
		plan.ForeignLikes = append(plan.ForeignLikes, like.Path)
	}

	if plan.loadoutCount, err = e.counter(ctx, loadout.UserPath(uid), "loadoutCount"); err != nil {
		return nil, err
	}
	if plan.totalLoadouts, err = e.counter(ctx, loadout.GlobalStatsPath, "totalLoadouts"); err != nil {
		return nil, err
	}
	return plan, nil
}

// Delete removes the likes of other users in best-effort batches, then
// deletes the loadout, the caller's own like and decrements the counts in
// one transaction.
func (e *Engine) Delete(ctx context.Context, plan *DeletePlan) (err error) {
	defer e.observe("delete", &err)

	if plan == nil {
		return fmt.Errorf("%w: missing delete plan", loadout.ErrNotFound)
	}

	if err := e.cleanupLikes(ctx, plan.ForeignLikes); err != nil {
		e.log.Warn("Failed to remove likes of loadout '%s': %v", plan.LoadoutID, err)
	}

	err = e.store.RunTransaction(ctx, func(tx store.Writer) error {
		tx.Delete(loadout.LoadoutPath(plan.LoadoutID))
		if plan.OwnLike {
			tx.Delete(loadout.LikePath(plan.UserID, plan.LoadoutID))
		}

		user := store.Fields{"lastUpdated": store.ServerTimestamp()}
		if plan.loadoutCount > 0 {
			user["loadoutCount"] = store.Increment(-1)
		}
		tx.Set(loadout.UserPath(plan.UserID), user, store.Merge())

		global := store.Fields{"lastUpdated": store.ServerTimestamp()}
		if plan.totalLoadouts > 0 {
			global["totalLoadouts"] = store.Increment(-1)
		}
		tx.Set(loadout.GlobalStatsPath, global, store.Merge())
		return nil
	})
	if err != nil {
		return remoteError("delete loadout", err)
	}

	e.log.Debug("Deleted loadout '%s' (%d foreign likes)", plan.LoadoutID, len(plan.ForeignLikes))
	return nil
}

func (e *Engine) cleanupLikes(ctx context.Context, paths []string) error {
	var errs []error
	for start := 0; start < len(paths); start += e.batchLimit {
		end := min(start+e.batchLimit, len(paths))
		chunk := paths[start:end]

		err := e.store.Batch(ctx, func(w store.Writer) error {
			for _, path := range chunk {
				w.Delete(path)
			}
			return nil
		})
		if err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// LikePlan holds the reads a like toggle depends on.
type LikePlan struct {
	LoadoutID string
	UserID    string
	OwnerID   string

	// Liked is the state before the toggle.
	Liked bool
	Likes int64

	ownerTotalLikes int64
}

// Expected returns the like count the loadout has once the toggle commits.
func (p *LikePlan) Expected() int64 {
	if p.Liked {
		return max(p.Likes-1, 0)
	}
	return p.Likes + 1
}

// Delta is the optimistic change of the like counter.
func (p *LikePlan) Delta() int64 {
	return p.Expected() - p.Likes
}

func (e *Engine) PlanLike(ctx context.Context, uid, id string) (*LikePlan, error) {
	if uid == "" {
		return nil, loadout.ErrNotAuthenticated
	}
	if id == "" {
		return nil, fmt.Errorf("%w: loadout id is required", loadout.ErrNotFound)
	}

	liked, err := e.HasLiked(ctx, uid, id)
	if err != nil {
		return nil, err
	}

	doc, err := e.store.Get(ctx, loadout.LoadoutPath(id))
	if err != nil {
		return nil, remoteError("read loadout", err)
	}

	plan := &LikePlan{
		LoadoutID: id,
		UserID:    uid,
		OwnerID:   doc.String("userId"),
		Liked:     liked,
		Likes:     max(doc.Int64("likes"), 0),
	}
	if plan.OwnerID != "" {
		if plan.ownerTotalLikes, err = e.counter(ctx, loadout.UserPath(plan.OwnerID), "totalLikes"); err != nil {
			return nil, err
		}
	}
	return plan, nil
}

// Like applies the toggle described by plan: the like record is created or
// removed together with both like counters.
func (e *Engine) Like(ctx context.Context, plan *LikePlan) (err error) {
	defer e.observe("like", &err)

	if plan == nil {
		return fmt.Errorf("%w: missing like plan", loadout.ErrNotFound)
	}

	err = e.store.RunTransaction(ctx, func(tx store.Writer) error {
		likePath := loadout.LikePath(plan.UserID, plan.LoadoutID)
		owner := store.Fields{"lastUpdated": store.ServerTimestamp()}

		if plan.Liked {
			tx.Delete(likePath)
			if plan.Likes > 0 {
				tx.Update(loadout.LoadoutPath(plan.LoadoutID), store.Fields{"likes": store.Increment(-1)})
			}
			if plan.ownerTotalLikes > 0 {
				owner["totalLikes"] = store.Increment(-1)
			}
		} else {
			tx.Set(likePath, store.Fields{
				"loadoutId": plan.LoadoutID,
				"createdAt": store.ServerTimestamp(),
			})
			tx.Update(loadout.LoadoutPath(plan.LoadoutID), store.Fields{"likes": store.Increment(1)})
			owner["totalLikes"] = store.Increment(1)
		}

		if plan.OwnerID != "" {
			tx.Set(loadout.UserPath(plan.OwnerID), owner, store.Merge())
		}
		return nil
	})
	if err != nil {
		return remoteError("toggle like", err)
	}
	return nil
}

// HasLiked reports whether a like record of uid exists for the loadout.
func (e *Engine) HasLiked(ctx context.Context, uid, id string) (bool, error) {
	if uid == "" || id == "" {
		return false, nil
	}
	_, err := e.store.Get(ctx, loadout.LikePath(uid, id))
	if errors.Is(err, store.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, remoteError("read like", err)
	}
	return true, nil
}

// LikedIDs lists the loadouts liked by uid.
func (e *Engine) LikedIDs(ctx context.Context, uid string) ([]string, error) {
	if uid == "" {
		return nil, nil
	}
	res, err := e.store.Query(ctx, store.Join(loadout.CollectionUsers, uid, loadout.CollectionLikes))
	if err != nil {
		return nil, remoteError("query likes", err)
	}
	ids := make([]string, 0, len(res.Documents))
	for _, doc := range res.Documents {
		ids = append(ids, doc.ID)
	}
	return ids, nil
}

// RecordView adds one view to the loadout and to its owner's total.
func (e *Engine) RecordView(ctx context.Context, id string) (err error) {
	defer e.observe("view", &err)

	doc, err := e.store.Get(ctx, loadout.LoadoutPath(id))
	if err != nil {
		return remoteError("read loadout", err)
	}
	owner := doc.String("userId")

	err = e.store.RunTransaction(ctx, func(tx store.Writer) error {
		tx.Update(loadout.LoadoutPath(id), store.Fields{"views": store.Increment(1)})
		if owner != "" {
			tx.Set(loadout.UserPath(owner), store.Fields{
				"totalViews":  store.Increment(1),
				"lastUpdated": store.ServerTimestamp(),
			}, store.Merge())
		}
		return nil
	})
	if err != nil {
		return remoteError("record view", err)
	}
	return nil
}

// EnsureProfile creates the profile of uid with zeroed counters when it does
// not exist yet.
func (e *Engine) EnsureProfile(ctx context.Context, uid string) error {
	if uid == "" {
		return loadout.ErrNotAuthenticated
	}

	_, err := e.store.Get(ctx, loadout.UserPath(uid))
	if err == nil {
		return nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return remoteError("read profile", err)
	}

	err = e.store.Set(ctx, loadout.UserPath(uid), store.Fields{
		"loadoutCount": 0,
		"totalLikes":   0,
		"totalViews":   0,
		"createdAt":    store.ServerTimestamp(),
		"lastUpdated":  store.ServerTimestamp(),
	}, store.Merge())
	if err != nil {
		return remoteError("create profile", err)
	}

	e.log.Info("Created profile for user '%s'", uid)
	return nil
}

// counter reads a numeric field, treating a missing document as zero.
func (e *Engine) counter(ctx context.Context, path, field string) (int64, error) {
	doc, err := e.store.Get(ctx, path)
	if errors.Is(err, store.ErrNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, remoteError("read "+path, err)
	}
	return doc.Int64(field), nil
}

func (e *Engine) observe(kind string, err *error) {
	metrics.TransactionsTotal.WithLabelValues(kind, metrics.Result(*err)).Inc()
}

// remoteError maps store errors onto the loadout error taxonomy.
func remoteError(op string, err error) error {
	switch {
	case errors.Is(err, store.ErrNotFound):
		return fmt.Errorf("%w: %s: %w", loadout.ErrNotFound, op, err)
	case errors.Is(err, loadout.ErrNotAuthenticated),
		errors.Is(err, loadout.ErrPermissionDenied),
		errors.Is(err, loadout.ErrRemoteFailure):
		return err
	default:
		return fmt.Errorf("%w: %s: %w", loadout.ErrRemoteFailure, op, err)
	}
}
