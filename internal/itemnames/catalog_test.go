package itemnames

import (
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/mwantia/loadoutsync/internal/kvcache"
	"github.com/mwantia/loadoutsync/pkg/db/store"
	"github.com/mwantia/loadoutsync/pkg/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newServer(t *testing.T, status int, body string) (*httptest.Server, *atomic.Int32) {
	t.Helper()
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		assert.Equal(t, userAgent, r.Header.Get("User-Agent"))
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv, &hits
}

func TestCatalog_FetchAndResolve(t *testing.T) {
	srv, _ := newServer(t, http.StatusOK, `{"995":"Coins","1234":"Dagger"}`)
	c := New(srv.URL, kvcache.New(store.NewMemoryStore(), log.Discard(), kvcache.Options{}), log.Discard(), Options{})

	require.NoError(t, c.Load(t.Context()))

	assert.Equal(t, "Coins", c.Name(995))
	assert.Equal(t, "Item 42", c.Name(42))
	assert.Equal(t, map[int]string{995: "Coins", 7: "Item 7"}, c.Names([]int{995, 7}))
}

func TestCatalog_LoadPrefersFreshCache(t *testing.T) {
	srv, hits := newServer(t, http.StatusOK, `{"995":"Coins"}`)
	backend := store.NewMemoryStore()
	clock := time.Unix(1_700_000_000, 0)
	cache := kvcache.New(backend, log.Discard(), kvcache.Options{Now: func() time.Time { return clock }})

	require.NoError(t, New(srv.URL, cache, log.Discard(), Options{}).Load(t.Context()))
	require.Equal(t, int32(1), hits.Load())

	// A new process sees the persisted entry through a fresh cache front.
	restarted := kvcache.New(backend, log.Discard(), kvcache.Options{Now: func() time.Time { return clock.Add(23 * time.Hour) }})
	c := New(srv.URL, restarted, log.Discard(), Options{})
	require.NoError(t, c.Load(t.Context()))
	assert.Equal(t, int32(1), hits.Load())
	assert.Equal(t, "Coins", c.Name(995))

	expired := kvcache.New(backend, log.Discard(), kvcache.Options{Now: func() time.Time { return clock.Add(25 * time.Hour) }})
	require.NoError(t, New(srv.URL, expired, log.Discard(), Options{}).Load(t.Context()))
	assert.Equal(t, int32(2), hits.Load())
}

func TestCatalog_FetchFailureKeepsNames(t *testing.T) {
	good, _ := newServer(t, http.StatusOK, `{"995":"Coins"}`)
	c := New(good.URL, kvcache.New(store.NewMemoryStore(), log.Discard(), kvcache.Options{}), log.Discard(), Options{})
	_, err := c.Fetch(t.Context())
	require.NoError(t, err)

	bad, _ := newServer(t, http.StatusBadGateway, "")
	c.url = bad.URL
	_, err = c.Fetch(t.Context())
	assert.Error(t, err)
	assert.Equal(t, "Coins", c.Name(995))
}

func TestCatalog_UnknownWithoutNames(t *testing.T) {
	srv, _ := newServer(t, http.StatusOK, `not json`)
	c := New(srv.URL, kvcache.New(store.NewMemoryStore(), log.Discard(), kvcache.Options{}), log.Discard(), Options{})

	assert.Error(t, c.Load(t.Context()))
	assert.Equal(t, "Item 995", c.Name(995))
	assert.Zero(t, c.Len())
}
