// Package itemnames resolves item ids to display names from a published
// id to name map, cached for a day in the items namespace.
package itemnames

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/mwantia/loadoutsync/internal/kvcache"
	"github.com/mwantia/loadoutsync/pkg/log"
)

// CacheKey is the entry of the items namespace holding the name map.
const CacheKey = "osrs_item_names"

const userAgent = "loadoutsync item catalog"

type Options struct {
	Timeout time.Duration
	Client  *http.Client
}

type Catalog struct {
	url    string
	client *http.Client
	cache  *kvcache.Cache
	log    log.LoggerService

	mu    sync.RWMutex
	names map[string]string
}

func New(url string, cache *kvcache.Cache, logger log.LoggerService, opts Options) *Catalog {
	client := opts.Client
	if client == nil {
		timeout := opts.Timeout
		if timeout <= 0 {
			timeout = 15 * time.Second
		}
		client = &http.Client{Timeout: timeout}
	}
	return &Catalog{
		url:    url,
		client: client,
		cache:  cache,
		log:    logger,
	}
}

// Load fills the catalog from a fresh cache entry, or fetches the map when
// there is none.
func (c *Catalog) Load(ctx context.Context) error {
	var names map[string]string
	if _, ok := c.cache.Load(ctx, kvcache.NamespaceItems, CacheKey, &names); ok && len(names) > 0 {
		c.set(names)
		c.log.Debug("Loaded %d item names from cache", len(names))
		return nil
	}

	_, err := c.Fetch(ctx)
	return err
}

// Fetch downloads the name map, replaces the catalog and caches it. A
// failed fetch keeps whatever names are already loaded.
func (c *Catalog) Fetch(ctx context.Context) (int, error) {
	names, err := c.download(ctx)
	if err != nil {
		c.log.Warn("Failed to fetch item names, keeping %d known names: %v", c.Len(), err)
		return 0, err
	}

	c.set(names)
	if err := c.cache.Set(ctx, kvcache.NamespaceItems, CacheKey, names); err != nil {
		c.log.Warn("Failed to cache item names: %v", err)
	}

	c.log.Info("Fetched %d item names", len(names))
	return len(names), nil
}

func (c *Catalog) download(ctx context.Context) (map[string]string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to request item names: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %d from %s", resp.StatusCode, c.url)
	}

	names := make(map[string]string)
	if err := json.NewDecoder(resp.Body).Decode(&names); err != nil {
		return nil, fmt.Errorf("failed to decode item names: %w", err)
	}
	return names, nil
}

func (c *Catalog) set(names map[string]string) {
	c.mu.Lock()
	c.names = names
	c.mu.Unlock()
}

func (c *Catalog) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.names)
}

// Name returns the display name of id, or "Item <id>" when it is unknown.
func (c *Catalog) Name(id int) string {
	c.mu.RLock()
	name, ok := c.names[strconv.Itoa(id)]
	c.mu.RUnlock()

	if !ok || name == "" {
		return fmt.Sprintf("Item %d", id)
	}
	return name
}

// Names resolves every id in ids.
func (c *Catalog) Names(ids []int) map[int]string {
	out := make(map[int]string, len(ids))
	for _, id := range ids {
		out[id] = c.Name(id)
	}
	return out
}
