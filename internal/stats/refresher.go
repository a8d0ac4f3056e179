// Package stats keeps the global aggregate counters current. Values are
// recomputed from the source collections and persisted in the durable cache
// so a restart can publish them before the first recompute finishes.
package stats

import (
	"context"
	"sync"
	"time"

	"github.com/mwantia/loadoutsync/internal/aggregate"
	"github.com/mwantia/loadoutsync/internal/kvcache"
	"github.com/mwantia/loadoutsync/internal/loadout"
	"github.com/mwantia/loadoutsync/internal/metrics"
	"github.com/mwantia/loadoutsync/internal/observable"
	"github.com/mwantia/loadoutsync/internal/session"
	"github.com/mwantia/loadoutsync/pkg/log"
)

// CacheKey is the entry of the stats namespace holding the last good value.
const CacheKey = "inventory_setups_stats"

const DefaultInterval = 5 * time.Minute

type Options struct {
	Interval time.Duration
}

type Refresher struct {
	agg     *aggregate.Engine
	cache   *kvcache.Cache
	session *session.Session
	log     log.LoggerService

	interval time.Duration
	stats    *observable.Subject[loadout.Stats]

	// mu serializes recomputes started by the timer and by session changes.
	mu sync.Mutex
	wg sync.WaitGroup
}

func NewRefresher(agg *aggregate.Engine, cache *kvcache.Cache, sess *session.Session, logger log.LoggerService, opts Options) *Refresher {
	if opts.Interval <= 0 {
		opts.Interval = DefaultInterval
	}
	return &Refresher{
		agg:      agg,
		cache:    cache,
		session:  sess,
		log:      logger,
		interval: opts.Interval,
		stats:    observable.NewSubject(loadout.Stats{}),
	}
}

func (r *Refresher) Stats() loadout.Stats {
	return r.stats.Value()
}

func (r *Refresher) Subscribe() (<-chan loadout.Stats, func()) {
	return r.stats.Subscribe()
}

// LoadCached publishes the cached stats when they are still fresh.
func (r *Refresher) LoadCached(ctx context.Context) bool {
	cached, ok := r.cached(ctx)
	if ok {
		r.stats.Publish(cached)
	}
	return ok
}

func (r *Refresher) cached(ctx context.Context) (loadout.Stats, bool) {
	var stats loadout.Stats
	_, ok := r.cache.Load(ctx, kvcache.NamespaceStats, CacheKey, &stats)
	return stats, ok
}

// Refresh recomputes the stats and publishes them. The global stats record
// is only written while a user is signed in. On failure the last cached
// value is published instead, if it is still fresh.
func (r *Refresher) Refresh(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	stats, err := r.recompute(ctx)
	if err != nil {
		metrics.StatsRecomputeTotal.WithLabelValues(metrics.ResultError).Inc()
		if cached, ok := r.cached(ctx); ok {
			r.log.Warn("Failed to refresh stats, using cached value: %v", err)
			r.stats.Publish(cached)
		} else {
			r.log.Warn("Failed to refresh stats, no cached value available: %v", err)
		}
		return err
	}

	metrics.StatsRecomputeTotal.WithLabelValues(metrics.ResultSuccess).Inc()
	r.stats.Publish(stats)

	if err := r.cache.Set(ctx, kvcache.NamespaceStats, CacheKey, stats); err != nil {
		r.log.Warn("Failed to cache stats: %v", err)
	}

	r.log.Debug("Refreshed stats: %d loadouts, %d users, %d likes, %d today",
		stats.TotalLoadouts, stats.TotalUsers, stats.TotalLikes, stats.NewToday)
	return nil
}

func (r *Refresher) recompute(ctx context.Context) (loadout.Stats, error) {
	stats, err := r.agg.Recompute(ctx)
	if err != nil {
		return stats, err
	}

	if r.session.Authenticated() {
		if err := r.agg.PublishStats(ctx, stats); err != nil {
			return stats, err
		}
	}
	return stats, nil
}

// Start publishes fresh cached stats, then recomputes on every session
// change and on each tick while the cache still holds a valid entry.
func (r *Refresher) Start(ctx context.Context) {
	r.LoadCached(ctx)

	users, cancel := r.session.Subscribe()

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		defer cancel()

		ticker := time.NewTicker(r.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case _, ok := <-users:
				if !ok {
					return
				}
				_ = r.Refresh(ctx)
			case <-ticker.C:
				if _, ok := r.cached(ctx); ok {
					_ = r.Refresh(ctx)
				}
			}
		}
	}()
}

// Wait blocks until the goroutine started by Start has returned.
func (r *Refresher) Wait() {
	r.wg.Wait()
}
