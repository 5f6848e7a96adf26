package resilience

import (
	"container/list"
	"context"
	"sort"
	"sync"
	"time"

	"github.com/wprun/wpr/primitive"
	"github.com/wprun/wpr/telemetry"
	"github.com/wprun/wpr/wfctx"
)

// reuseGapWindow bounds how many hit-after-miss reuse gaps are kept for
// median estimation, the same bounded-sample approach the adaptive
// layer uses for latency percentiles.
const reuseGapWindow = 256

// KeyFunc computes a deterministic cache key from an execute call's input
// and workflow context.
type KeyFunc[I any] func(input I, wctx *wfctx.Context) string

type cacheEntry[O any] struct {
	key        string
	value      O
	insertedAt time.Time
	lastAccess time.Time
	hits       int64
	elem       *list.Element
}

// Cache wraps a Primitive with an LRU-with-TTL memoization layer.
// Capacity eviction and TTL expiry are independent: an entry can be
// LRU-evicted well before its TTL, and a stale entry past TTL is treated
// as a miss even if it's still the most-recently-used. nil/zero-value
// results are cacheable like any other value.
type Cache[I, O any] struct {
	Name        string
	keyFn       KeyFunc[I]
	ttl         time.Duration
	maxSize     int
	inner       primitive.Primitive[I, O]

	mu      sync.Mutex
	order   *list.List // front = most recently used
	entries map[string]*cacheEntry[O]

	// reuseGaps records, for each entry's first hit after it was
	// (re)inserted, how long the entry sat before that hit. The
	// adaptive layer uses the median of this population to infer a TTL
	// from actual reuse behavior instead of guessing from latency.
	reuseGaps   []float64 // seconds, ring buffer
	reuseCursor int
}

// NewCache constructs a Cache wrapping inner.
func NewCache[I, O any](name string, keyFn KeyFunc[I], ttl time.Duration, maxSize int, inner primitive.Primitive[I, O]) *Cache[I, O] {
	return &Cache[I, O]{
		Name: name, keyFn: keyFn, ttl: ttl, maxSize: maxSize, inner: inner,
		order:   list.New(),
		entries: make(map[string]*cacheEntry[O]),
	}
}

// Execute implements primitive.Primitive: compute key, check for a live
// entry, else call the wrapped primitive and insert, evicting LRU
// victims until size <= maxSize.
func (c *Cache[I, O]) Execute(ctx context.Context, wctx *wfctx.Context, input I) (O, error) {
	key := c.keyFn(input, wctx)

	c.mu.Lock()
	if entry, ok := c.entries[key]; ok && time.Since(entry.insertedAt) <= c.ttl {
		now := time.Now()
		if entry.hits == 0 {
			c.recordReuseGapLocked(now.Sub(entry.insertedAt))
		}
		entry.lastAccess = now
		entry.hits++
		c.order.MoveToFront(entry.elem)
		value := entry.value
		c.mu.Unlock()
		telemetry.Counter(telemetry.MetricCacheHits, "primitive_name", c.Name)
		return value, nil
	}
	c.mu.Unlock()

	telemetry.Counter(telemetry.MetricCacheMisses, "primitive_name", c.Name)
	out, err := c.inner.Execute(ctx, wctx, input)
	if err != nil {
		var zero O
		return zero, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	now := time.Now()
	if existing, ok := c.entries[key]; ok {
		existing.value = out
		existing.insertedAt = now
		existing.hits = 0
		existing.lastAccess = now
		c.order.MoveToFront(existing.elem)
	} else {
		entry := &cacheEntry[O]{key: key, value: out, insertedAt: now, lastAccess: now}
		entry.elem = c.order.PushFront(entry)
		c.entries[key] = entry
	}
	c.evictLocked()
	return out, nil
}

func (c *Cache[I, O]) recordReuseGapLocked(gap time.Duration) {
	seconds := gap.Seconds()
	if len(c.reuseGaps) < reuseGapWindow {
		c.reuseGaps = append(c.reuseGaps, seconds)
	} else {
		c.reuseGaps[c.reuseCursor] = seconds
		c.reuseCursor = (c.reuseCursor + 1) % reuseGapWindow
	}
}

// MedianReuseGapSeconds returns the median interval, in seconds, between
// an entry's insertion and its first subsequent hit, and how many such
// gaps have been observed. Zero observations means no entry has ever
// been reused yet.
func (c *Cache[I, O]) MedianReuseGapSeconds() (median float64, observations int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.reuseGaps) == 0 {
		return 0, 0
	}
	sorted := make([]float64, len(c.reuseGaps))
	copy(sorted, c.reuseGaps)
	sort.Float64s(sorted)
	mid := len(sorted) / 2
	if len(sorted)%2 == 0 {
		return (sorted[mid-1] + sorted[mid]) / 2, len(sorted)
	}
	return sorted[mid], len(sorted)
}

func (c *Cache[I, O]) evictLocked() {
	for len(c.entries) > c.maxSize {
		back := c.order.Back()
		if back == nil {
			return
		}
		victim := back.Value.(*cacheEntry[O])
		c.order.Remove(back)
		delete(c.entries, victim.key)
	}
}

// Clear empties the cache.
func (c *Cache[I, O]) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.order = list.New()
	c.entries = make(map[string]*cacheEntry[O])
}

// EvictExpired removes every entry whose TTL has elapsed.
func (c *Cache[I, O]) EvictExpired() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	removed := 0
	for key, entry := range c.entries {
		if time.Since(entry.insertedAt) > c.ttl {
			c.order.Remove(entry.elem)
			delete(c.entries, key)
			removed++
		}
	}
	return removed
}

// Len reports the number of live entries, used by tests and statistics
// surfaces.
func (c *Cache[I, O]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}
