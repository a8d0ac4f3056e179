// Package kvcache is the durable namespaced cache. Entries are kept in the
// configured cache store and fronted by an expiring in-memory LRU per namespace.
package kvcache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/mwantia/loadoutsync/internal/metrics"
	"github.com/mwantia/loadoutsync/pkg/db/store"
	"github.com/mwantia/loadoutsync/pkg/log"
)

type Namespace string

const (
	NamespaceItems Namespace = "items"
	NamespaceStats Namespace = "stats"
)

const (
	DefaultItemsTTL = 24 * time.Hour
	DefaultStatsTTL = 5 * time.Minute
	DefaultSize     = 256
)

// Entry is the stored wrapper of a cached value; Timestamp is unix milliseconds.
type Entry struct {
	Data      json.RawMessage `json:"data"`
	Timestamp int64           `json:"timestamp"`
}

// Fresh reports whether the entry is younger than ttl at now.
func (e Entry) Fresh(ttl time.Duration, now time.Time) bool {
	return now.UnixMilli()-e.Timestamp < ttl.Milliseconds()
}

type Options struct {
	ItemsTTL time.Duration
	StatsTTL time.Duration
	Size     int
	Now      func() time.Time
}

type Cache struct {
	backend store.CacheStore
	log     log.LoggerService
	now     func() time.Time
	ttl     map[Namespace]time.Duration
	front   map[Namespace]*expirable.LRU[string, Entry]
}

func New(backend store.CacheStore, logger log.LoggerService, opts Options) *Cache {
	if opts.ItemsTTL <= 0 {
		opts.ItemsTTL = DefaultItemsTTL
	}
	if opts.StatsTTL <= 0 {
		opts.StatsTTL = DefaultStatsTTL
	}
	if opts.Size <= 0 {
		opts.Size = DefaultSize
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	ttl := map[Namespace]time.Duration{
		NamespaceItems: opts.ItemsTTL,
		NamespaceStats: opts.StatsTTL,
	}
	front := make(map[Namespace]*expirable.LRU[string, Entry], len(ttl))
	for ns, d := range ttl {
		front[ns] = expirable.NewLRU[string, Entry](opts.Size, nil, d)
	}

	return &Cache{
		backend: backend,
		log:     logger,
		now:     opts.Now,
		ttl:     ttl,
		front:   front,
	}
}

// TTL returns the freshness window of ns.
func (c *Cache) TTL(ns Namespace) time.Duration {
	return c.ttl[ns]
}

// Get returns the entry stored under key regardless of its age. Backend
// failures are logged and reported as absence.
func (c *Cache) Get(ctx context.Context, ns Namespace, key string) (Entry, bool) {
	lru, ok := c.front[ns]
	if !ok {
		c.log.Warn("Unknown cache namespace '%s'", ns)
		return Entry{}, false
	}

	if entry, ok := lru.Get(key); ok {
		metrics.CacheRequestsTotal.WithLabelValues(string(ns), "memory").Inc()
		return entry, true
	}

	stored, err := c.backend.GetEntry(ctx, string(ns), key)
	if errors.Is(err, store.ErrNotFound) {
		metrics.CacheRequestsTotal.WithLabelValues(string(ns), "miss").Inc()
		return Entry{}, false
	}
	if err != nil {
		metrics.CacheRequestsTotal.WithLabelValues(string(ns), metrics.ResultError).Inc()
		c.log.Warn("Failed to read cache entry '%s/%s': %v", ns, key, err)
		return Entry{}, false
	}

	entry := Entry{Data: json.RawMessage(stored.Data), Timestamp: stored.Timestamp}
	lru.Add(key, entry)
	metrics.CacheRequestsTotal.WithLabelValues(string(ns), "store").Inc()
	return entry, true
}

// GetFresh returns the entry only while it is younger than the namespace TTL.
func (c *Cache) GetFresh(ctx context.Context, ns Namespace, key string) (Entry, bool) {
	entry, ok := c.Get(ctx, ns, key)
	if !ok || !entry.Fresh(c.ttl[ns], c.now()) {
		return Entry{}, false
	}
	return entry, true
}

// Load decodes a fresh entry into out and returns its timestamp.
func (c *Cache) Load(ctx context.Context, ns Namespace, key string, out any) (time.Time, bool) {
	entry, ok := c.GetFresh(ctx, ns, key)
	if !ok {
		return time.Time{}, false
	}
	if err := json.Unmarshal(entry.Data, out); err != nil {
		c.log.Warn("Discarding undecodable cache entry '%s/%s': %v", ns, key, err)
		return time.Time{}, false
	}
	return time.UnixMilli(entry.Timestamp), true
}

// Set stores value under key with the current time as timestamp.
func (c *Cache) Set(ctx context.Context, ns Namespace, key string, value any) error {
	lru, ok := c.front[ns]
	if !ok {
		return fmt.Errorf("unknown cache namespace %q", ns)
	}

	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to encode cache entry %s/%s: %w", ns, key, err)
	}

	entry := Entry{Data: data, Timestamp: c.now().UnixMilli()}
	lru.Add(key, entry)

	err = c.backend.PutEntry(ctx, store.CacheEntry{
		Namespace: string(ns),
		Key:       key,
		Data:      data,
		Timestamp: entry.Timestamp,
	})
	if err != nil {
		return fmt.Errorf("failed to persist cache entry %s/%s: %w", ns, key, err)
	}
	return nil
}

// Remove deletes key from both tiers.
func (c *Cache) Remove(ctx context.Context, ns Namespace, key string) error {
	if lru, ok := c.front[ns]; ok {
		lru.Remove(key)
	}
	if err := c.backend.RemoveEntry(ctx, string(ns), key); err != nil && !errors.Is(err, store.ErrNotFound) {
		return fmt.Errorf("failed to remove cache entry %s/%s: %w", ns, key, err)
	}
	return nil
}
