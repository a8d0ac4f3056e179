// Package syncengine keeps the local loadout view in step with the remote
// store: it loads pages, applies optimistic mutations and reconciles them
// with confirmed reads.
package syncengine

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/mwantia/loadoutsync/internal/aggregate"
	"github.com/mwantia/loadoutsync/internal/loadout"
	"github.com/mwantia/loadoutsync/internal/localstore"
	"github.com/mwantia/loadoutsync/internal/metrics"
	"github.com/mwantia/loadoutsync/internal/observable"
	"github.com/mwantia/loadoutsync/internal/pagination"
	"github.com/mwantia/loadoutsync/internal/query"
	"github.com/mwantia/loadoutsync/internal/session"
	"github.com/mwantia/loadoutsync/pkg/db/store"
	"github.com/mwantia/loadoutsync/pkg/log"
)

// Backoff bounds the reads issued after a confirmed write until the write
// is observed.
type Backoff struct {
	InitialDelay time.Duration
	MaxDelay     time.Duration
	MaxAttempts  int
}

func DefaultBackoff() Backoff {
	return Backoff{
		InitialDelay: 100 * time.Millisecond,
		MaxDelay:     time.Second,
		MaxAttempts:  5,
	}
}

type Options struct {
	Propagation Backoff
}

type Engine struct {
	store   store.DocumentStore
	agg     *aggregate.Engine
	local   *localstore.Store
	pager   *pagination.Manager
	session *session.Session
	log     log.LoggerService
	backoff Backoff

	// mu pairs filter changes with pagination resets and fetch starts with
	// the filter they run against.
	mu      sync.Mutex
	filters *observable.Subject[query.Filter]

	likedMu sync.RWMutex
	liked   map[string]struct{}

	bg    sync.WaitGroup
	watch sync.WaitGroup
}

func NewEngine(
	ds store.DocumentStore,
	agg *aggregate.Engine,
	local *localstore.Store,
	pager *pagination.Manager,
	sess *session.Session,
	logger log.LoggerService,
	opts Options,
) *Engine {
	b := opts.Propagation
	if b.MaxAttempts <= 0 {
		b = DefaultBackoff()
	}
	if b.MaxDelay < b.InitialDelay {
		b.MaxDelay = b.InitialDelay
	}

	return &Engine{
		store:   ds,
		agg:     agg,
		local:   local,
		pager:   pager,
		session: sess,
		log:     logger,
		backoff: b,
		filters: observable.NewSubject(query.DefaultFilter()),
		liked:   map[string]struct{}{},
	}
}

// Start follows the current user: on every change the liked set is
// reloaded, the profile ensured and the first page fetched again. It returns
// immediately; the watcher stops with ctx.
func (e *Engine) Start(ctx context.Context) {
	users, cancel := e.session.Subscribe()

	e.watch.Add(1)
	go func() {
		defer e.watch.Done()
		defer cancel()

		for {
			select {
			case <-ctx.Done():
				return
			case uid, ok := <-users:
				if !ok {
					return
				}
				e.onUserChanged(ctx, uid)
			}
		}
	}()
}

func (e *Engine) onUserChanged(ctx context.Context, uid string) {
	if uid == "" {
		e.log.Info("Signed out")
	} else {
		e.log.Info("Signed in as '%s'", uid)
		if err := e.agg.EnsureProfile(ctx, uid); err != nil {
			e.log.Warn("Failed to ensure profile of '%s': %v", uid, err)
		}
	}

	if err := e.loadLiked(ctx, uid); err != nil {
		e.log.Warn("Failed to load liked loadouts, keeping previous set: %v", err)
	}
	if err := e.Refresh(ctx); err != nil {
		e.log.Warn("Initial load failed: %v", err)
	}
}

// Wait blocks until background reconciliation has finished.
func (e *Engine) Wait() {
	e.bg.Wait()
}

// Close waits for the user watcher, which ends once the context passed to
// Start is cancelled, and for background reconciliation.
func (e *Engine) Close() {
	e.watch.Wait()
	e.bg.Wait()
}

// Loadouts returns the current local collection.
func (e *Engine) Loadouts() []loadout.Loadout {
	return e.local.Loadouts()
}

func (e *Engine) Subscribe() (<-chan []loadout.Loadout, func()) {
	return e.local.Subscribe()
}

func (e *Engine) Pagination() pagination.State {
	return e.pager.State()
}

func (e *Engine) SubscribePagination() (<-chan pagination.State, func()) {
	return e.pager.Subscribe()
}

func (e *Engine) Filters() query.Filter {
	return e.filters.Value().Clone()
}

func (e *Engine) SubscribeFilters() (<-chan query.Filter, func()) {
	return e.filters.Subscribe()
}

// FilteredView applies the current filter to the local collection.
func (e *Engine) FilteredView() []loadout.Loadout {
	return query.View(e.local.Loadouts(), e.filters.Value(), e.session.UserID())
}

// Loadout returns the local copy of id.
func (e *Engine) Loadout(id string) (loadout.Loadout, bool) {
	return e.local.Get(id)
}

// AllTags lists the tags used by the local collection.
func (e *Engine) AllTags() []string {
	return query.AllTags(e.local.Loadouts())
}

// IsOwner reports whether the current user owns the local loadout id.
func (e *Engine) IsOwner(id string) bool {
	uid := e.session.UserID()
	if uid == "" {
		return false
	}
	l, ok := e.local.Get(id)
	return ok && l.UserID == uid
}

// HasLiked reports whether the current user likes id, from the liked set
// loaded at sign-in and kept current by ToggleLike.
func (e *Engine) HasLiked(id string) bool {
	e.likedMu.RLock()
	defer e.likedMu.RUnlock()
	_, ok := e.liked[id]
	return ok
}

func (e *Engine) loadLiked(ctx context.Context, uid string) error {
	ids, err := e.agg.LikedIDs(ctx, uid)
	if err != nil {
		return err
	}

	liked := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		liked[id] = struct{}{}
	}

	e.likedMu.Lock()
	e.liked = liked
	e.likedMu.Unlock()
	return nil
}

func (e *Engine) setLiked(id string, liked bool) {
	e.likedMu.Lock()
	defer e.likedMu.Unlock()
	if liked {
		e.liked[id] = struct{}{}
	} else {
		delete(e.liked, id)
	}
}

// SetFilters replaces the filter, resets pagination and loads the first page.
func (e *Engine) SetFilters(ctx context.Context, f query.Filter) error {
	e.mu.Lock()
	e.filters.Publish(f.Clone())
	e.pager.Reset()
	e.mu.Unlock()

	return e.Refresh(ctx)
}

// UpdateFilters applies fn to a copy of the current filter. Nothing is
// reloaded when the filter does not change.
func (e *Engine) UpdateFilters(ctx context.Context, fn func(f *query.Filter)) error {
	current := e.Filters()
	next := current.Clone()
	fn(&next)
	if next.Equal(current) {
		return nil
	}
	return e.SetFilters(ctx, next)
}

func (e *Engine) ResetFilters(ctx context.Context) error {
	return e.SetFilters(ctx, query.DefaultFilter())
}

// begin starts a fetch and captures the filter it belongs to.
func (e *Engine) begin(kind pagination.Kind) (pagination.Ticket, query.Filter, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()

	ticket, ok := e.pager.Begin(kind)
	return ticket, e.filters.Value(), ok
}

// peek issues a reconciling read ticket together with the filter it belongs to.
func (e *Engine) peek() (pagination.Ticket, query.Filter) {
	e.mu.Lock()
	defer e.mu.Unlock()

	return e.pager.Peek(), e.filters.Value()
}

type page struct {
	loadouts []loadout.Loadout
	cursor   string
	raw      int
}

func (e *Engine) fetch(ctx context.Context, ticket pagination.Ticket, filter query.Filter) (*page, error) {
	constraints := query.Compose(filter, query.Page{Size: ticket.PageSize, Cursor: ticket.Cursor}, e.session.UserID())

	res, err := e.store.Query(ctx, loadout.CollectionLoadouts, constraints...)
	if err != nil {
		return nil, fmt.Errorf("%w: query loadouts: %w", loadout.ErrRemoteFailure, err)
	}

	loadouts, errs := loadout.FromDocuments(res.Documents)
	for _, err := range errs {
		e.log.Warn("Skipping loadout: %v", err)
	}

	return &page{
		loadouts: query.Search(loadouts, filter.Search),
		cursor:   res.Cursor,
		raw:      len(res.Documents),
	}, nil
}

// Refresh loads the first page and replaces the local collection. On
// failure the local collection is kept.
func (e *Engine) Refresh(ctx context.Context) (err error) {
	start := time.Now()
	defer func() { metrics.ObserveOperation("refresh", start, err) }()

	ticket, filter, _ := e.begin(pagination.First)

	p, err := e.fetch(ctx, ticket, filter)
	if err != nil {
		e.pager.Fail(ticket, err)
		e.log.Warn("Refresh failed, keeping %d local loadouts: %v", e.local.Len(), err)
		return err
	}

	applied := e.pager.Complete(ticket, p.cursor, p.raw, func() {
		e.local.Replace(p.loadouts)
	})
	if !applied {
		metrics.StaleResultsDropped.WithLabelValues("first").Inc()
		e.log.Debug("Dropped stale first page")
		return nil
	}

	e.gauge()
	return nil
}

// LoadNextPage appends the next page. It does nothing while a fetch is in
// flight, once the list is exhausted, or before the first page.
func (e *Engine) LoadNextPage(ctx context.Context) (err error) {
	ticket, filter, ok := e.begin(pagination.Next)
	if !ok {
		return nil
	}

	start := time.Now()
	defer func() { metrics.ObserveOperation("next_page", start, err) }()

	p, err := e.fetch(ctx, ticket, filter)
	if err != nil {
		e.pager.Fail(ticket, err)
		e.log.Warn("Next page failed, cursor kept for retry: %v", err)
		return err
	}

	applied := e.pager.Complete(ticket, p.cursor, p.raw, func() {
		e.local.Append(p.loadouts)
	})
	if !applied {
		metrics.StaleResultsDropped.WithLabelValues("next").Inc()
		e.log.Debug("Dropped stale next page")
		return nil
	}

	e.gauge()
	return nil
}

func (e *Engine) gauge() {
	metrics.LocalLoadouts.Set(float64(e.local.Len()))
}
