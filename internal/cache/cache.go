// Package cache keys aggregated account snapshots by (address, network,
// facet set), deduplicates concurrent fetches for the same key, and serves
// stale entries while a background refresh runs.
package cache

import (
	"context"
	"strings"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/LeJamon/goXRPLdig/internal/dig"
)

// Default freshness windows per data class. Fee and price move with every
// ledger close, so they refresh faster than balance-class data.
const (
	DefaultSnapshotTTL   = 60 * time.Second
	DefaultFeeTTL        = 15 * time.Second
	DefaultPriceTTL      = 15 * time.Second
	DefaultServerInfoTTL = 60 * time.Second

	DefaultMaxEntries = 512
)

// Source produces fresh snapshots. *dig.Aggregator satisfies it.
type Source interface {
	Aggregate(ctx context.Context, address, network string, facets ...dig.Facet) (*dig.Snapshot, error)
}

// Entry wraps a snapshot with its fetch time and freshness window.
type Entry struct {
	Snapshot  *dig.Snapshot `json:"snapshot"`
	FetchedAt time.Time     `json:"fetched_at"`
	TTL       time.Duration `json:"ttl"`
}

// Fresh reports whether the entry is inside its freshness window.
func (e *Entry) Fresh(now time.Time) bool {
	return now.Sub(e.FetchedAt) < e.TTL
}

// Cache is the snapshot cache. Safe for concurrent use.
type Cache struct {
	source Source
	ttl    time.Duration
	log    *zap.Logger
	store  Store // optional write-through persistence
	clock  func() time.Time

	entries *lru.Cache[string, *Entry]
	group   singleflight.Group

	mu        sync.Mutex
	hits      uint64
	misses    uint64
	staleHits uint64
	// generation rises on every invalidation; a fetch started under an
	// older generation may return its snapshot but must not cache it.
	generation uint64

	// refreshWG tracks background refreshes so Close can drain them.
	refreshWG sync.WaitGroup
}

// CacheOption configures a Cache.
type CacheOption func(*Cache)

// WithTTL sets the snapshot freshness window.
func WithTTL(d time.Duration) CacheOption {
	return func(c *Cache) { c.ttl = d }
}

// WithLogger sets the logger.
func WithLogger(log *zap.Logger) CacheOption {
	return func(c *Cache) { c.log = log }
}

// WithStore attaches a persistent write-through store.
func WithStore(s Store) CacheOption {
	return func(c *Cache) { c.store = s }
}

// WithClock substitutes the time source, for tests.
func WithClock(clock func() time.Time) CacheOption {
	return func(c *Cache) { c.clock = clock }
}

// New creates a cache in front of source holding at most maxEntries
// snapshots.
func New(source Source, maxEntries int, opts ...CacheOption) (*Cache, error) {
	if maxEntries <= 0 {
		maxEntries = DefaultMaxEntries
	}
	entries, err := lru.New[string, *Entry](maxEntries)
	if err != nil {
		return nil, err
	}
	c := &Cache{
		source:  source,
		ttl:     DefaultSnapshotTTL,
		log:     zap.NewNop(),
		clock:   time.Now,
		entries: entries,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.store != nil {
		c.warmUp()
	}
	return c, nil
}

// keySep joins the key parts. It cannot appear in addresses or network IDs.
const keySep = "|"

func key(address, networkID string, facets []dig.Facet) string {
	return address + keySep + networkID + keySep + dig.CanonicalKey(facets)
}

func keyPrefix(address, networkID string) string {
	return address + keySep + networkID + keySep
}

// GetOrFetch returns the cached snapshot for the key, fetching on a miss.
// A stale entry is returned immediately while one background refresh runs;
// concurrent callers for the same key share a single in-flight fetch.
func (c *Cache) GetOrFetch(ctx context.Context, address, networkID string, facets ...dig.Facet) (*dig.Snapshot, error) {
	k := key(address, networkID, facets)

	if entry, ok := c.entries.Get(k); ok {
		if entry.Fresh(c.clock()) {
			c.count(&c.hits)
			return entry.Snapshot, nil
		}
		c.count(&c.staleHits)
		c.refreshInBackground(k, address, networkID, facets)
		return entry.Snapshot, nil
	}

	c.count(&c.misses)
	if entry := c.loadFromStore(k); entry != nil {
		return entry.Snapshot, nil
	}
	return c.fetch(ctx, k, address, networkID, facets)
}

// loadFromStore recovers an entry that fell out of the LRU but is still
// fresh in the persistent store.
func (c *Cache) loadFromStore(k string) *Entry {
	if c.store == nil {
		return nil
	}
	entry, err := c.store.Load(k)
	if err != nil {
		c.log.Warn("store load failed", zap.String("key", k), zap.Error(err))
		return nil
	}
	if entry == nil || !entry.Fresh(c.clock()) {
		return nil
	}
	c.entries.Add(k, entry)
	return entry
}

// Refresh forces a fetch for the key, replacing any cached entry.
func (c *Cache) Refresh(ctx context.Context, address, networkID string, facets ...dig.Facet) (*dig.Snapshot, error) {
	return c.fetch(ctx, key(address, networkID, facets), address, networkID, facets)
}

// Invalidate drops every cached facet-set variant for (address, network).
// Call it after a state-changing action so the next read reflects the new
// sequence and balance. In-flight fetches that started before the
// invalidation still return to their callers, but their results are not
// cached.
func (c *Cache) Invalidate(address, networkID string) {
	prefix := keyPrefix(address, networkID)

	c.mu.Lock()
	c.generation++
	c.mu.Unlock()

	for _, k := range c.entries.Keys() {
		if strings.HasPrefix(k, prefix) {
			c.entries.Remove(k)
			c.group.Forget(k)
		}
	}
	if c.store != nil {
		// The store may hold variants already evicted from the LRU.
		if err := c.store.RemovePrefix(prefix); err != nil {
			c.log.Warn("store invalidation failed", zap.String("prefix", prefix), zap.Error(err))
		}
	}
}

// Stats returns hit/miss/staleHit counters.
func (c *Cache) Stats() (hits, misses, staleHits uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.hits, c.misses, c.staleHits
}

// Close drains background refreshes and closes the persistent store.
func (c *Cache) Close() error {
	c.refreshWG.Wait()
	if c.store != nil {
		return c.store.Close()
	}
	return nil
}

func (c *Cache) count(field *uint64) {
	c.mu.Lock()
	*field++
	c.mu.Unlock()
}

func (c *Cache) currentGen() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.generation
}

// fetch runs one deduplicated aggregation and stores the result.
func (c *Cache) fetch(ctx context.Context, k, address, networkID string, facets []dig.Facet) (*dig.Snapshot, error) {
	gen := c.currentGen()
	v, err, _ := c.group.Do(k, func() (any, error) {
		snap, err := c.source.Aggregate(ctx, address, networkID, facets...)
		if err != nil {
			return nil, err
		}
		c.put(k, snap, gen)
		return snap, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*dig.Snapshot), nil
}

// refreshInBackground starts one deduplicated refresh without blocking the
// caller. Errors leave the stale entry in place for the next attempt.
func (c *Cache) refreshInBackground(k, address, networkID string, facets []dig.Facet) {
	gen := c.currentGen()
	c.refreshWG.Add(1)
	go func() {
		defer c.refreshWG.Done()
		_, err, _ := c.group.Do(k, func() (any, error) {
			snap, err := c.source.Aggregate(context.Background(), address, networkID, facets...)
			if err != nil {
				return nil, err
			}
			c.put(k, snap, gen)
			return snap, nil
		})
		if err != nil {
			c.log.Warn("background refresh failed", zap.String("key", k), zap.Error(err))
		}
	}()
}

// put caches a fetched snapshot unless an invalidation has landed since the
// fetch began; such a snapshot may predate the state change that triggered
// the invalidation.
func (c *Cache) put(k string, snap *dig.Snapshot, gen uint64) {
	entry := &Entry{Snapshot: snap, FetchedAt: c.clock(), TTL: c.ttl}

	c.mu.Lock()
	if gen != c.generation {
		c.mu.Unlock()
		return
	}
	c.entries.Add(k, entry)
	c.mu.Unlock()

	if c.store == nil {
		return
	}
	if err := c.store.Save(k, entry); err != nil {
		c.log.Warn("store save failed", zap.String("key", k), zap.Error(err))
		return
	}
	// An invalidation may land between the generation check and the save;
	// its store sweep would miss this blob, so drop it again here.
	if gen != c.currentGen() {
		if err := c.store.Remove(k); err != nil {
			c.log.Warn("store remove failed", zap.String("key", k), zap.Error(err))
		}
	}
}

// warmUp loads persisted entries so a restart does not cold-start the cache.
// Entries past their window are skipped; they would only trigger an
// immediate refresh anyway.
func (c *Cache) warmUp() {
	entries, err := c.store.LoadAll()
	if err != nil {
		c.log.Warn("cache warm-up failed", zap.Error(err))
		return
	}
	now := c.clock()
	loaded := 0
	for k, e := range entries {
		if e.Fresh(now) {
			c.entries.Add(k, e)
			loaded++
		}
	}
	if loaded > 0 {
		c.log.Info("cache warmed up", zap.Int("entries", loaded))
	}
}
