package cache

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/LeJamon/goXRPLdig/internal/dig"
	"github.com/LeJamon/goXRPLdig/internal/network"
)

// countingSource counts Aggregate calls and can block until released.
type countingSource struct {
	calls   atomic.Int64
	release chan struct{}
	err     error

	mu   sync.Mutex
	tick int
}

func (s *countingSource) Aggregate(ctx context.Context, address, networkID string, facets ...dig.Facet) (*dig.Snapshot, error) {
	s.calls.Add(1)
	if s.release != nil {
		<-s.release
	}
	if s.err != nil {
		return nil, s.err
	}
	s.mu.Lock()
	s.tick++
	tick := s.tick
	s.mu.Unlock()
	return &dig.Snapshot{
		Address:    address,
		Network:    network.Descriptor{ID: networkID},
		Activation: dig.Activated,
		Diagnostics: []string{
			// Lets tests tell one fetch result from the next.
			time.Unix(int64(tick), 0).UTC().String(),
		},
	}, nil
}

const testAddr = "rHb9CJAWyB4rj91VRWn96DkukG4bwdtyTh"

func TestGetOrFetchCachesWithinWindow(t *testing.T) {
	source := &countingSource{}
	c, err := New(source, 8)
	require.NoError(t, err)
	defer c.Close()

	ctx := context.Background()
	first, err := c.GetOrFetch(ctx, testAddr, "mainnet")
	require.NoError(t, err)

	second, err := c.GetOrFetch(ctx, testAddr, "mainnet")
	require.NoError(t, err)

	assert.Same(t, first, second)
	assert.EqualValues(t, 1, source.calls.Load())

	hits, misses, stale := c.Stats()
	assert.EqualValues(t, 1, hits)
	assert.EqualValues(t, 1, misses)
	assert.EqualValues(t, 0, stale)
}

func TestConcurrentCallersShareOneFetch(t *testing.T) {
	source := &countingSource{release: make(chan struct{})}
	c, err := New(source, 8)
	require.NoError(t, err)
	defer c.Close()

	const callers = 10
	var wg sync.WaitGroup
	results := make([]*dig.Snapshot, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			snap, err := c.GetOrFetch(context.Background(), testAddr, "mainnet")
			assert.NoError(t, err)
			results[i] = snap
		}(i)
	}

	// Let every caller reach the cache before the fetch completes.
	time.Sleep(50 * time.Millisecond)
	close(source.release)
	wg.Wait()

	assert.EqualValues(t, 1, source.calls.Load())
	for _, snap := range results {
		assert.Same(t, results[0], snap)
	}
}

func TestStaleEntryServedWhileRefreshing(t *testing.T) {
	source := &countingSource{}
	now := time.Unix(1_000_000, 0)
	var mu sync.Mutex
	clock := func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		return now
	}

	c, err := New(source, 8, WithTTL(time.Minute), WithClock(clock))
	require.NoError(t, err)

	ctx := context.Background()
	first, err := c.GetOrFetch(ctx, testAddr, "mainnet")
	require.NoError(t, err)

	mu.Lock()
	now = now.Add(2 * time.Minute)
	mu.Unlock()

	// Past the window: the stale snapshot comes back immediately.
	stale, err := c.GetOrFetch(ctx, testAddr, "mainnet")
	require.NoError(t, err)
	assert.Same(t, first, stale)

	// Close drains the background refresh kicked off above.
	require.NoError(t, c.Close())
	assert.EqualValues(t, 2, source.calls.Load())

	refreshed, err := c.GetOrFetch(ctx, testAddr, "mainnet")
	require.NoError(t, err)
	assert.NotSame(t, first, refreshed)
	assert.EqualValues(t, 2, source.calls.Load())
}

func TestRefreshBypassesCache(t *testing.T) {
	source := &countingSource{}
	c, err := New(source, 8)
	require.NoError(t, err)
	defer c.Close()

	ctx := context.Background()
	_, err = c.GetOrFetch(ctx, testAddr, "mainnet")
	require.NoError(t, err)

	_, err = c.Refresh(ctx, testAddr, "mainnet")
	require.NoError(t, err)
	assert.EqualValues(t, 2, source.calls.Load())
}

func TestInvalidateDropsAllFacetVariants(t *testing.T) {
	source := &countingSource{}
	c, err := New(source, 8)
	require.NoError(t, err)
	defer c.Close()

	ctx := context.Background()
	_, err = c.GetOrFetch(ctx, testAddr, "mainnet")
	require.NoError(t, err)
	_, err = c.GetOrFetch(ctx, testAddr, "mainnet", dig.FacetAccountInfo)
	require.NoError(t, err)
	_, err = c.GetOrFetch(ctx, testAddr, "testnet")
	require.NoError(t, err)
	require.EqualValues(t, 3, source.calls.Load())

	c.Invalidate(testAddr, "mainnet")

	// Both mainnet variants refetch, the testnet entry survives.
	_, err = c.GetOrFetch(ctx, testAddr, "mainnet")
	require.NoError(t, err)
	_, err = c.GetOrFetch(ctx, testAddr, "mainnet", dig.FacetAccountInfo)
	require.NoError(t, err)
	_, err = c.GetOrFetch(ctx, testAddr, "testnet")
	require.NoError(t, err)
	assert.EqualValues(t, 5, source.calls.Load())
}

func TestInvalidateDuringFetchNotRecached(t *testing.T) {
	source := &countingSource{release: make(chan struct{})}
	c, err := New(source, 8)
	require.NoError(t, err)
	defer c.Close()

	done := make(chan *dig.Snapshot, 1)
	go func() {
		snap, err := c.GetOrFetch(context.Background(), testAddr, "mainnet")
		assert.NoError(t, err)
		done <- snap
	}()

	// Wait for the fetch to be in flight, then invalidate under it.
	require.Eventually(t, func() bool {
		return source.calls.Load() == 1
	}, time.Second, time.Millisecond)
	c.Invalidate(testAddr, "mainnet")
	close(source.release)

	first := <-done
	require.NotNil(t, first)

	// The in-flight result predates the invalidation, so the next read
	// must fetch again instead of serving it.
	second, err := c.GetOrFetch(context.Background(), testAddr, "mainnet")
	require.NoError(t, err)
	assert.NotSame(t, first, second)
	assert.EqualValues(t, 2, source.calls.Load())
}

func TestStoreServesEntryEvictedFromMemory(t *testing.T) {
	source := &countingSource{}
	store := newMemStore()
	c, err := New(source, 8, WithStore(store), WithTTL(time.Minute))
	require.NoError(t, err)
	defer c.Close()

	// The entry exists only in the store, as after an LRU eviction.
	fresh := &dig.Snapshot{Address: testAddr, Activation: dig.Activated}
	require.NoError(t, store.Save(key(testAddr, "mainnet", nil), &Entry{
		Snapshot:  fresh,
		FetchedAt: time.Now(),
		TTL:       time.Minute,
	}))

	snap, err := c.GetOrFetch(context.Background(), testAddr, "mainnet")
	require.NoError(t, err)
	assert.Same(t, fresh, snap)
	assert.EqualValues(t, 0, source.calls.Load())
}

func TestPassthroughNeverCaches(t *testing.T) {
	source := &countingSource{}
	p := NewPassthrough(source)
	defer p.Close()

	ctx := context.Background()
	first, err := p.GetOrFetch(ctx, testAddr, "mainnet")
	require.NoError(t, err)
	second, err := p.GetOrFetch(ctx, testAddr, "mainnet")
	require.NoError(t, err)
	assert.NotSame(t, first, second)

	_, err = p.Refresh(ctx, testAddr, "mainnet")
	require.NoError(t, err)
	assert.EqualValues(t, 3, source.calls.Load())

	// Nothing retained, nothing to drop.
	p.Invalidate(testAddr, "mainnet")
	_, err = p.GetOrFetch(ctx, testAddr, "mainnet")
	require.NoError(t, err)
	assert.EqualValues(t, 4, source.calls.Load())
}

func TestFetchErrorNotCached(t *testing.T) {
	source := &countingSource{err: errors.New("all facets failed")}
	c, err := New(source, 8)
	require.NoError(t, err)
	defer c.Close()

	ctx := context.Background()
	_, err = c.GetOrFetch(ctx, testAddr, "mainnet")
	require.Error(t, err)

	source.err = nil
	snap, err := c.GetOrFetch(ctx, testAddr, "mainnet")
	require.NoError(t, err)
	assert.Equal(t, testAddr, snap.Address)
	assert.EqualValues(t, 2, source.calls.Load())
}

// memStore is an in-memory Store for persistence tests.
type memStore struct {
	mu       sync.Mutex
	entries  map[string]*Entry
	removals []string
	closed   bool
}

func newMemStore() *memStore {
	return &memStore{entries: make(map[string]*Entry)}
}

func (s *memStore) Save(key string, entry *Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[key] = entry
	return nil
}

func (s *memStore) Load(key string) (*Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.entries[key], nil
}

func (s *memStore) Remove(keys ...string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, k := range keys {
		delete(s.entries, k)
		s.removals = append(s.removals, k)
	}
	return nil
}

func (s *memStore) RemovePrefix(prefix string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for k := range s.entries {
		if strings.HasPrefix(k, prefix) {
			delete(s.entries, k)
			s.removals = append(s.removals, k)
		}
	}
	return nil
}

func (s *memStore) LoadAll() (map[string]*Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]*Entry, len(s.entries))
	for k, v := range s.entries {
		out[k] = v
	}
	return out, nil
}

func (s *memStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

func TestWriteThroughStore(t *testing.T) {
	source := &countingSource{}
	store := newMemStore()
	c, err := New(source, 8, WithStore(store))
	require.NoError(t, err)

	_, err = c.GetOrFetch(context.Background(), testAddr, "mainnet")
	require.NoError(t, err)

	store.mu.Lock()
	assert.Len(t, store.entries, 1)
	store.mu.Unlock()

	c.Invalidate(testAddr, "mainnet")
	store.mu.Lock()
	assert.Empty(t, store.entries)
	assert.Len(t, store.removals, 1)
	store.mu.Unlock()

	require.NoError(t, c.Close())
	assert.True(t, store.closed)
}

func TestWarmUpSkipsExpiredEntries(t *testing.T) {
	now := time.Unix(1_000_000, 0)
	clock := func() time.Time { return now }

	fresh := &dig.Snapshot{Address: testAddr, Activation: dig.Activated}
	store := newMemStore()
	store.entries[key(testAddr, "mainnet", nil)] = &Entry{
		Snapshot:  fresh,
		FetchedAt: now.Add(-10 * time.Second),
		TTL:       time.Minute,
	}
	store.entries[key(testAddr, "testnet", nil)] = &Entry{
		Snapshot:  &dig.Snapshot{Address: testAddr},
		FetchedAt: now.Add(-10 * time.Minute),
		TTL:       time.Minute,
	}

	source := &countingSource{}
	c, err := New(source, 8, WithStore(store), WithClock(clock), WithTTL(time.Minute))
	require.NoError(t, err)
	defer c.Close()

	// The fresh entry serves without a fetch.
	snap, err := c.GetOrFetch(context.Background(), testAddr, "mainnet")
	require.NoError(t, err)
	assert.Same(t, fresh, snap)
	assert.EqualValues(t, 0, source.calls.Load())

	// The expired one was skipped, so this key fetches.
	_, err = c.GetOrFetch(context.Background(), testAddr, "testnet")
	require.NoError(t, err)
	assert.EqualValues(t, 1, source.calls.Load())
}

func TestPersistentStoreRoundTrip(t *testing.T) {
	store, err := NewStore(t.TempDir())
	require.NoError(t, err)
	defer store.Close()

	entry := &Entry{
		Snapshot: &dig.Snapshot{
			Address:    testAddr,
			Activation: dig.Activated,
			Requested:  []dig.Facet{dig.FacetAccountInfo},
		},
		FetchedAt: time.Unix(1_000_000, 0).UTC(),
		TTL:       time.Minute,
	}
	k := key(testAddr, "mainnet", []dig.Facet{dig.FacetAccountInfo})
	require.NoError(t, store.Save(k, entry))

	loaded, err := store.LoadAll()
	require.NoError(t, err)
	require.Contains(t, loaded, k)
	assert.Equal(t, testAddr, loaded[k].Snapshot.Address)
	assert.Equal(t, dig.Activated, loaded[k].Snapshot.Activation)
	assert.Equal(t, entry.FetchedAt, loaded[k].FetchedAt)
	assert.Equal(t, time.Minute, loaded[k].TTL)

	got, err := store.Load(k)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, testAddr, got.Snapshot.Address)

	missing, err := store.Load("no-such-key")
	require.NoError(t, err)
	assert.Nil(t, missing)

	require.NoError(t, store.Remove(k))
	loaded, err = store.LoadAll()
	require.NoError(t, err)
	assert.Empty(t, loaded)
}

func TestPersistentStoreRemovePrefix(t *testing.T) {
	store, err := NewStore(t.TempDir())
	require.NoError(t, err)
	defer store.Close()

	entry := &Entry{
		Snapshot:  &dig.Snapshot{Address: testAddr},
		FetchedAt: time.Unix(1_000_000, 0).UTC(),
		TTL:       time.Minute,
	}
	require.NoError(t, store.Save(key(testAddr, "mainnet", nil), entry))
	require.NoError(t, store.Save(key(testAddr, "mainnet", []dig.Facet{dig.FacetAccountInfo}), entry))
	require.NoError(t, store.Save(key(testAddr, "testnet", nil), entry))

	require.NoError(t, store.RemovePrefix(keyPrefix(testAddr, "mainnet")))

	loaded, err := store.LoadAll()
	require.NoError(t, err)
	require.Len(t, loaded, 1)
	assert.Contains(t, loaded, key(testAddr, "testnet", nil))
}

func TestMemoDeduplicatesAndExpires(t *testing.T) {
	memo, err := NewMemo[string](50*time.Millisecond, 4)
	require.NoError(t, err)

	var calls atomic.Int64
	fetch := func(ctx context.Context) (string, error) {
		calls.Add(1)
		return "12", nil
	}

	ctx := context.Background()
	v, err := memo.Get(ctx, "fee|mainnet", fetch)
	require.NoError(t, err)
	assert.Equal(t, "12", v)

	_, err = memo.Get(ctx, "fee|mainnet", fetch)
	require.NoError(t, err)
	assert.EqualValues(t, 1, calls.Load())

	time.Sleep(60 * time.Millisecond)
	_, err = memo.Get(ctx, "fee|mainnet", fetch)
	require.NoError(t, err)
	assert.EqualValues(t, 2, calls.Load())

	memo.Forget("fee|mainnet")
	_, err = memo.Get(ctx, "fee|mainnet", fetch)
	require.NoError(t, err)
	assert.EqualValues(t, 3, calls.Load())
}

func TestMemoErrorNotCached(t *testing.T) {
	memo, err := NewMemo[string](time.Minute, 4)
	require.NoError(t, err)

	boom := errors.New("endpoint down")
	_, err = memo.Get(context.Background(), "fee|mainnet", func(ctx context.Context) (string, error) {
		return "", boom
	})
	assert.ErrorIs(t, err, boom)

	v, err := memo.Get(context.Background(), "fee|mainnet", func(ctx context.Context) (string, error) {
		return "10", nil
	})
	require.NoError(t, err)
	assert.Equal(t, "10", v)
}
