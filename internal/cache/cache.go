package cache

import (
	"context"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/goccy/go-json"
	"golang.org/x/sync/singleflight"
)

const (
	defaultTTL            = 10 * time.Minute
	defaultRefreshTimeout = 15 * time.Second
	subscriberBuffer      = 16
)

// Fetcher loads the current value for a key from the network.
type Fetcher[V any] func(ctx context.Context) (V, error)

// Update is published to subscribers when an entry is replaced, or when a background refresh
// fails (Err is set and Value is the zero value).
type Update[V any] struct {
	Key   string
	Value V
	Err   error
}

// Store persists encoded entries between processes.
type Store interface {
	Load(ctx context.Context, key string) ([]byte, time.Time, bool, error)
	Save(ctx context.Context, key string, payload []byte, fetchedAt time.Time) error
	Delete(ctx context.Context, pattern string) (int64, error)
}

// Options configures a [Cache].
type Options struct {
	// TTL is how long an entry is served; zero means 10 minutes and negative never expires.
	TTL time.Duration
	// MaxEntries caps the number of in-memory entries; zero or less is unbounded.
	MaxEntries int
	// RefreshTimeout bounds each background refresh.
	RefreshTimeout time.Duration
	Store          Store
	Logger         *log.Logger
	Clock          func() time.Time
}

type entry[V any] struct {
	value     V
	fetchedAt time.Time
}

type subscriber[V any] struct {
	pattern string
	ch      chan Update[V]
}

// Cache is a keyed response cache with background refresh. The zero value is not usable;
// create one with [New].
type Cache[V any] struct {
	ttl            time.Duration
	max            int
	refreshTimeout time.Duration
	store          Store
	logger         *log.Logger
	now            func() time.Time

	mu       sync.RWMutex
	entries  map[string]entry[V]
	subs     map[*subscriber[V]]struct{}
	epoch    uint64
	inflight int
	// tombs records invalidations that happened while fetches were in flight, so results
	// fetched before the invalidation are not stored afterwards.
	tombs  map[string]uint64
	closed bool

	group  singleflight.Group
	base   context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New creates an empty [Cache].
func New[V any](opts Options) *Cache[V] {
	c := &Cache[V]{
		ttl:            opts.TTL,
		max:            opts.MaxEntries,
		refreshTimeout: opts.RefreshTimeout,
		store:          opts.Store,
		logger:         opts.Logger,
		now:            opts.Clock,
		entries:        make(map[string]entry[V]),
		subs:           make(map[*subscriber[V]]struct{}),
		tombs:          make(map[string]uint64),
	}
	if c.ttl == 0 {
		c.ttl = defaultTTL
	}
	if c.refreshTimeout <= 0 {
		c.refreshTimeout = defaultRefreshTimeout
	}
	if c.logger == nil {
		c.logger = log.Default()
	}
	if c.now == nil {
		c.now = time.Now
	}
	c.base, c.cancel = context.WithCancel(context.Background())
	return c
}

// Get returns the live in-memory value for key. It never performs I/O.
func (c *Cache[V]) Get(key string) (V, bool) {
	c.mu.RLock()
	e, ok := c.entries[key]
	c.mu.RUnlock()

	if !ok || c.expired(e.fetchedAt) {
		var zero V
		return zero, false
	}
	return e.value, true
}

// Set stores value under key as if it had just been fetched.
func (c *Cache[V]) Set(ctx context.Context, key string, value V) {
	c.mu.RLock()
	epoch := c.epoch
	c.mu.RUnlock()
	c.put(ctx, key, value, epoch)
}

// FetchWithCache returns the cached value for key and schedules a background refresh with fetch.
// On a miss, or when force is set, it calls fetch synchronously and returns its result.
// Background refresh failures never reach the caller; they are logged and published to subscribers.
func (c *Cache[V]) FetchWithCache(ctx context.Context, key string, force bool, fetch Fetcher[V]) (V, error) {
	if !force {
		if v, ok := c.Get(key); ok {
			c.refresh(key, fetch)
			return v, nil
		}
		if v, ok := c.restore(ctx, key); ok {
			c.refresh(key, fetch)
			return v, nil
		}
	}
	return c.load(ctx, key, fetch)
}

// Mutate rewrites live entries matching pattern in place. fn runs under the cache lock and must
// not call back into the cache; it returns the replacement and whether anything changed. The
// entries keep their fetch time and are not persisted. Changed entries are published.
func (c *Cache[V]) Mutate(pattern string, fn func(key string, value V) (V, bool)) int {
	var changed []Update[V]

	c.mu.Lock()
	for k, e := range c.entries {
		if !Matches(k, pattern) || c.expired(e.fetchedAt) {
			continue
		}
		if v, ok := fn(k, e.value); ok {
			e.value = v
			c.entries[k] = e
			changed = append(changed, Update[V]{Key: k, Value: v})
		}
	}
	c.mu.Unlock()

	for _, u := range changed {
		c.publish(u)
	}
	return len(changed)
}

// Invalidate removes key, or every key in the scope it names, and returns how many in-memory
// entries were dropped. Fetches already in flight for those keys are not stored.
func (c *Cache[V]) Invalidate(ctx context.Context, pattern string) int {
	c.mu.Lock()
	n := 0
	for k := range c.entries {
		if Matches(k, pattern) {
			delete(c.entries, k)
			n++
		}
	}
	c.epoch++
	if c.inflight > 0 {
		c.tombs[pattern] = c.epoch
	}
	c.mu.Unlock()

	if c.store != nil {
		if _, err := c.store.Delete(ctx, pattern); err != nil {
			c.logger.Warn("failed to invalidate stored responses", "pattern", pattern, "error", err)
		}
	}
	c.logger.Debug("cache invalidated", "pattern", pattern, "removed", n)
	return n
}

// Subscribe returns a channel receiving updates for key or scope pattern ("" for all) and a
// function that ends the subscription. Slow subscribers miss updates rather than block the cache.
func (c *Cache[V]) Subscribe(pattern string) (<-chan Update[V], func()) {
	s := &subscriber[V]{pattern: pattern, ch: make(chan Update[V], subscriberBuffer)}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		close(s.ch)
		return s.ch, func() {}
	}
	c.subs[s] = struct{}{}
	c.mu.Unlock()

	return s.ch, sync.OnceFunc(func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		if _, ok := c.subs[s]; ok {
			delete(c.subs, s)
			close(s.ch)
		}
	})
}

// Len returns the number of in-memory entries, including expired ones not yet evicted.
func (c *Cache[V]) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// Wait blocks until every scheduled background refresh has finished.
func (c *Cache[V]) Wait() {
	c.wg.Wait()
}

// Close cancels in-flight refreshes, waits for them and closes all subscriptions.
func (c *Cache[V]) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	c.mu.Unlock()

	c.cancel()
	c.wg.Wait()

	c.mu.Lock()
	defer c.mu.Unlock()
	for s := range c.subs {
		close(s.ch)
	}
	clear(c.subs)
}

func (c *Cache[V]) refresh(key string, fetch Fetcher[V]) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.wg.Add(1)
	c.mu.Unlock()

	go func() {
		defer c.wg.Done()

		ctx, cancel := context.WithTimeout(c.base, c.refreshTimeout)
		defer cancel()

		if _, err := c.load(ctx, key, fetch); err != nil {
			c.logger.Warn("background refresh failed", "key", key, "error", err)
			c.publish(Update[V]{Key: key, Err: err})
		}
	}()
}

// load runs fetch for key, joined with any fetch of the same key already running,
// and stores the result.
func (c *Cache[V]) load(ctx context.Context, key string, fetch Fetcher[V]) (V, error) {
	res, err, _ := c.group.Do(key, func() (any, error) {
		c.mu.Lock()
		epoch := c.epoch
		c.inflight++
		c.mu.Unlock()

		defer func() {
			c.mu.Lock()
			if c.inflight--; c.inflight == 0 {
				clear(c.tombs)
			}
			c.mu.Unlock()
		}()

		v, err := fetch(ctx)
		if err != nil {
			return nil, err
		}
		c.put(ctx, key, v, epoch)
		return v, nil
	})
	if err != nil {
		var zero V
		return zero, err
	}
	v, _ := res.(V)
	return v, nil
}

// put stores value unless key was invalidated after epoch, then persists and publishes it.
func (c *Cache[V]) put(ctx context.Context, key string, value V, epoch uint64) {
	now := c.now()

	c.mu.Lock()
	for pattern, at := range c.tombs {
		if at > epoch && Matches(key, pattern) {
			c.mu.Unlock()
			c.logger.Debug("discarding response fetched before invalidation", "key", key)
			return
		}
	}
	c.entries[key] = entry[V]{value: value, fetchedAt: now}
	evicted := c.evictLocked()
	c.mu.Unlock()

	if evicted > 0 {
		c.logger.Debug("cache entries evicted", "count", evicted)
	}
	c.persist(ctx, key, value, now)
	c.publish(Update[V]{Key: key, Value: value})
}

// restore loads key from the store into memory when a fresh copy is saved there.
func (c *Cache[V]) restore(ctx context.Context, key string) (V, bool) {
	var zero V
	if c.store == nil {
		return zero, false
	}

	payload, fetchedAt, ok, err := c.store.Load(ctx, key)
	if err != nil {
		c.logger.Warn("failed to load stored response", "key", key, "error", err)
		return zero, false
	}
	if !ok || c.expired(fetchedAt) {
		return zero, false
	}

	var v V
	if err := json.Unmarshal(payload, &v); err != nil {
		c.logger.Warn("discarding undecodable stored response", "key", key, "error", err)
		return zero, false
	}

	c.mu.Lock()
	if _, exists := c.entries[key]; !exists {
		c.entries[key] = entry[V]{value: v, fetchedAt: fetchedAt}
		c.evictLocked()
	}
	c.mu.Unlock()
	return v, true
}

func (c *Cache[V]) persist(ctx context.Context, key string, value V, fetchedAt time.Time) {
	if c.store == nil {
		return
	}
	payload, err := json.Marshal(value)
	if err != nil {
		c.logger.Warn("failed to encode response", "key", key, "error", err)
		return
	}
	if err := c.store.Save(context.WithoutCancel(ctx), key, payload, fetchedAt); err != nil {
		c.logger.Warn("failed to save response", "key", key, "error", err)
	}
}

func (c *Cache[V]) publish(u Update[V]) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	for s := range c.subs {
		if !Matches(u.Key, s.pattern) {
			continue
		}
		select {
		case s.ch <- u:
		default:
		}
	}
}

// evictLocked drops expired entries, then the oldest until the cap holds.
func (c *Cache[V]) evictLocked() int {
	n := 0
	for k, e := range c.entries {
		if c.expired(e.fetchedAt) {
			delete(c.entries, k)
			n++
		}
	}

	for c.max > 0 && len(c.entries) > c.max {
		var oldest string
		var at time.Time
		first := true
		for k, e := range c.entries {
			if first || e.fetchedAt.Before(at) {
				oldest, at, first = k, e.fetchedAt, false
			}
		}
		delete(c.entries, oldest)
		n++
	}
	return n
}

func (c *Cache[V]) expired(fetchedAt time.Time) bool {
	return c.ttl > 0 && c.now().Sub(fetchedAt) >= c.ttl
}
