// Package cache provides a bounded in-memory key/value store with per-entry
// TTL and least-recently-used eviction. It memoizes tool results but is not
// tied to tools; values are generic. Nothing is persisted.
package cache

import (
	"container/list"
	"sync"
	"time"
)

// Stats reports cache effectiveness counters.
type Stats struct {
	Hits   uint64 `json:"hits"`
	Misses uint64 `json:"misses"`
	Size   int    `json:"size"`
}

type entry[V any] struct {
	key        string
	value      V
	insertedAt time.Time
	ttl        time.Duration
}

func (e *entry[V]) expired(now time.Time) bool {
	return e.ttl > 0 && now.Sub(e.insertedAt) > e.ttl
}

// inflight is a pending producer run shared by concurrent GetOrSet misses
// on the same key. Waiters block on done and read value/err afterwards.
type inflight[V any] struct {
	done  chan struct{}
	value V
	err   error
}

// Cache is a mutex-guarded TTL + LRU cache. The zero value is not usable;
// construct with New.
type Cache[V any] struct {
	mu       sync.Mutex
	capacity int
	entries  map[string]*list.Element // -> *entry[V]
	order    *list.List               // front = most recently used
	pending  map[string]*inflight[V]
	hits     uint64
	misses   uint64
	now      func() time.Time // stubbed in tests
}

// New creates a cache holding at most capacity entries. A capacity of zero
// or less means unbounded.
func New[V any](capacity int) *Cache[V] {
	return &Cache[V]{
		capacity: capacity,
		entries:  make(map[string]*list.Element),
		order:    list.New(),
		pending:  make(map[string]*inflight[V]),
		now:      time.Now,
	}
}

// Get returns the live value for key. Expired entries are removed on read
// and count as misses.
func (c *Cache[V]) Get(key string) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.getLocked(key)
}

func (c *Cache[V]) getLocked(key string) (V, bool) {
	var zero V
	el, ok := c.entries[key]
	if !ok {
		c.misses++
		return zero, false
	}
	e := el.Value.(*entry[V])
	if e.expired(c.now()) {
		c.removeLocked(el)
		c.misses++
		return zero, false
	}
	c.order.MoveToFront(el)
	c.hits++
	return e.value, true
}

// Set stores value under key with the given TTL, replacing any existing
// entry. A ttl of zero or less means the entry never expires (it can still
// be evicted under capacity pressure).
func (c *Cache[V]) Set(key string, value V, ttl time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.setLocked(key, value, ttl)
}

func (c *Cache[V]) setLocked(key string, value V, ttl time.Duration) {
	if el, ok := c.entries[key]; ok {
		e := el.Value.(*entry[V])
		e.value = value
		e.insertedAt = c.now()
		e.ttl = ttl
		c.order.MoveToFront(el)
		return
	}
	el := c.order.PushFront(&entry[V]{key: key, value: value, insertedAt: c.now(), ttl: ttl})
	c.entries[key] = el
	if c.capacity > 0 && c.order.Len() > c.capacity {
		c.removeLocked(c.order.Back())
	}
}

// Has reports whether key holds a live entry. Does not refresh recency and
// does not touch the hit/miss counters.
func (c *Cache[V]) Has(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	el, ok := c.entries[key]
	if !ok {
		return false
	}
	if el.Value.(*entry[V]).expired(c.now()) {
		c.removeLocked(el)
		return false
	}
	return true
}

// Delete removes key and reports whether an entry was present.
func (c *Cache[V]) Delete(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	el, ok := c.entries[key]
	if ok {
		c.removeLocked(el)
	}
	return ok
}

// Clear removes all entries. Counters are kept.
func (c *Cache[V]) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]*list.Element)
	c.order.Init()
}

// Len returns the number of entries, including any not yet lazily expired.
func (c *Cache[V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.order.Len()
}

// Stats returns a snapshot of the hit/miss counters and current size.
func (c *Cache[V]) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Stats{Hits: c.hits, Misses: c.misses, Size: c.order.Len()}
}

// GetOrSet returns the cached value for key, or runs producer and stores
// its result with the given TTL. Concurrent callers missing on the same key
// share one producer run: the first caller computes, the rest wait on it.
// A producer error is returned to every waiter and nothing is stored.
func (c *Cache[V]) GetOrSet(key string, ttl time.Duration, producer func() (V, error)) (V, error) {
	c.mu.Lock()
	if v, ok := c.getLocked(key); ok {
		c.mu.Unlock()
		return v, nil
	}
	if fl, ok := c.pending[key]; ok {
		c.mu.Unlock()
		<-fl.done
		return fl.value, fl.err
	}
	fl := &inflight[V]{done: make(chan struct{})}
	c.pending[key] = fl
	c.mu.Unlock()

	fl.value, fl.err = producer()

	c.mu.Lock()
	delete(c.pending, key)
	if fl.err == nil {
		c.setLocked(key, fl.value, ttl)
	}
	c.mu.Unlock()
	close(fl.done)
	return fl.value, fl.err
}

// removeLocked unlinks el from both the map and the recency list.
func (c *Cache[V]) removeLocked(el *list.Element) {
	if el == nil {
		return
	}
	e := el.Value.(*entry[V])
	delete(c.entries, e.key)
	c.order.Remove(el)
}
