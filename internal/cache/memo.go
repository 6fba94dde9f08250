package cache

import (
	"context"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/sync/singleflight"
)

// Memo is a small TTL memoizer for values that are cheap to hold but
// expensive to fetch, such as the current fee or XRP price per network.
// Unlike Cache it has no stale-while-revalidate path: expired values block
// until a fresh one arrives.
type Memo[V any] struct {
	ttl   time.Duration
	clock func() time.Time

	mu      sync.Mutex
	entries *lru.Cache[string, memoEntry[V]]
	group   singleflight.Group
}

type memoEntry[V any] struct {
	value     V
	fetchedAt time.Time
}

// NewMemo creates a memoizer holding up to maxEntries values for ttl each.
func NewMemo[V any](ttl time.Duration, maxEntries int) (*Memo[V], error) {
	if maxEntries <= 0 {
		maxEntries = DefaultMaxEntries
	}
	entries, err := lru.New[string, memoEntry[V]](maxEntries)
	if err != nil {
		return nil, err
	}
	return &Memo[V]{
		ttl:     ttl,
		clock:   time.Now,
		entries: entries,
	}, nil
}

// Get returns the memoized value for key, calling fetch on a miss or after
// expiry. Concurrent callers for the same key share one fetch.
func (m *Memo[V]) Get(ctx context.Context, key string, fetch func(context.Context) (V, error)) (V, error) {
	m.mu.Lock()
	if entry, ok := m.entries.Get(key); ok && m.clock().Sub(entry.fetchedAt) < m.ttl {
		m.mu.Unlock()
		return entry.value, nil
	}
	m.mu.Unlock()

	v, err, _ := m.group.Do(key, func() (any, error) {
		value, err := fetch(ctx)
		if err != nil {
			return nil, err
		}
		m.mu.Lock()
		m.entries.Add(key, memoEntry[V]{value: value, fetchedAt: m.clock()})
		m.mu.Unlock()
		return value, nil
	})
	if err != nil {
		var zero V
		return zero, err
	}
	return v.(V), nil
}

// Forget drops the memoized value for key.
func (m *Memo[V]) Forget(key string) {
	m.mu.Lock()
	m.entries.Remove(key)
	m.mu.Unlock()
}
