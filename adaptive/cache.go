package adaptive

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/wprun/wpr/durability"
	"github.com/wprun/wpr/primitive"
	"github.com/wprun/wpr/resilience"
	"github.com/wprun/wpr/wfctx"
)

// Cache is the adaptive wrapper around resilience.Cache: TTL and
// capacity come from the currently-selected Strategy's Parameters. Each
// distinct strategy owns its own underlying resilience.Cache instance so
// that changing TTL doesn't require invalidating state shared with other
// strategies mid-flight.
type Cache[I, O any] struct {
	*Base[I, O]
	name    string
	keyFn   resilience.KeyFunc[I]
	inner   primitive.Primitive[I, O]
	version int64

	mu     sync.Mutex
	caches map[string]*resilience.Cache[I, O]
}

func cacheBaselineStrategy() *Strategy {
	return NewStrategy("cache_default", "baseline default LRU+TTL", "", map[string]any{
		"ttl_seconds":     60,
		"max_size":        1000,
		"min_ttl_seconds": 10,
		"max_ttl_seconds": 3600,
	})
}

// NewCache constructs an adaptive Cache wrapping inner with keyFn as the
// cache-key function. store may be nil to run without durability.
func NewCache[I, O any](name string, keyFn resilience.KeyFunc[I], config Config, store durability.Store, inner primitive.Primitive[I, O]) *Cache[I, O] {
	config.Store = store
	c := &Cache[I, O]{name: name, keyFn: keyFn, inner: inner, caches: make(map[string]*resilience.Cache[I, O])}
	c.Base = NewBase[I, O](name, "adaptive.cache", cacheBaselineStrategy(), config, c)
	return c
}

func (c *Cache[I, O]) cacheFor(strategy *Strategy) *resilience.Cache[I, O] {
	c.mu.Lock()
	defer c.mu.Unlock()
	if existing, ok := c.caches[strategy.Name]; ok {
		return existing
	}
	ttl := time.Duration(paramInt(strategy.Parameters, "ttl_seconds", 60)) * time.Second
	maxSize := paramInt(strategy.Parameters, "max_size", 1000)
	created := resilience.NewCache[I, O](c.name+"."+strategy.Name, c.keyFn, ttl, maxSize, c.inner)
	c.caches[strategy.Name] = created
	return created
}

// existingCacheFor looks up the underlying resilience.Cache already
// backing strategy, without creating one - used by ConsiderNewStrategy,
// which must never instantiate a cache for a strategy that hasn't
// served traffic yet.
func (c *Cache[I, O]) existingCacheFor(strategy *Strategy) (*resilience.Cache[I, O], bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	existing, ok := c.caches[strategy.Name]
	return existing, ok
}

// ExecuteWithStrategy implements Learner.
func (c *Cache[I, O]) ExecuteWithStrategy(ctx context.Context, wctx *wfctx.Context, input I, strategy *Strategy) (O, error) {
	return c.cacheFor(strategy).Execute(ctx, wctx, input)
}

// reuseTTLHeadroom multiplies the observed median reuse gap to get a
// candidate TTL: an entry should still be live the next time it's
// actually reused, not expire right at the median gap.
const reuseTTLHeadroom = 2.0

// minReuseObservations is the minimum number of hit-after-miss gaps
// before a cache strategy's reuse pattern is trusted enough to drive a
// TTL proposal.
const minReuseObservations = 5

// ConsiderNewStrategy implements Learner. The candidate TTL comes from
// the median interval actually observed between an entry being inserted
// and its first reuse, not from latency: a TTL shorter than that median
// evicts entries before they're ever reused, and a TTL far longer than
// it just holds stale data. The candidate is always clamped to
// [min_ttl_seconds, max_ttl_seconds].
func (c *Cache[I, O]) ConsiderNewStrategy(wctx *wfctx.Context, current *Strategy) *Strategy {
	snapshot := current.Metrics.Snapshot()
	if snapshot.TotalExecutions < int64(demotionWindow) {
		return nil
	}

	backing, ok := c.existingCacheFor(current)
	if !ok {
		return nil
	}
	medianGapSeconds, observations := backing.MedianReuseGapSeconds()
	if observations < minReuseObservations {
		return nil
	}

	minTTL := paramInt(current.Parameters, "min_ttl_seconds", 10)
	maxTTL := paramInt(current.Parameters, "max_ttl_seconds", 3600)
	currentTTL := paramInt(current.Parameters, "ttl_seconds", 60)

	candidateTTL := int(medianGapSeconds * reuseTTLHeadroom)
	if candidateTTL < minTTL {
		candidateTTL = minTTL
	}
	if candidateTTL > maxTTL {
		candidateTTL = maxTTL
	}

	// Not worth proposing a strategy that's within 10% of the current
	// TTL; that isn't a meaningfully distinct candidate.
	delta := float64(candidateTTL-currentTTL) / float64(currentTTL)
	if delta > -0.1 && delta < 0.1 {
		return nil
	}

	// A TTL that matches the observed reuse interval, whichever direction
	// it moves the bound, should raise the hit rate relative to one
	// picked without that signal: a bound well below the interval
	// evicts before reuse, a bound well above it doesn't cost anything
	// extra but doesn't help either, so the modest improvement estimate
	// applies symmetrically.
	estimatedLatency := snapshot.AvgLatencyMs * 0.95
	estimatedScore := Score(Snapshot{SuccessRate: snapshot.SuccessRate, AvgLatencyMs: estimatedLatency}, true, DefaultScoreWeights)
	currentScore := Score(snapshot, true, DefaultScoreWeights)
	if estimatedScore < currentScore {
		return nil
	}

	v := atomic.AddInt64(&c.version, 1)
	params := map[string]any{
		"ttl_seconds":     candidateTTL,
		"max_size":        paramInt(current.Parameters, "max_size", 1000),
		"min_ttl_seconds": minTTL,
		"max_ttl_seconds": maxTTL,
	}
	pattern := current.ContextPattern
	label := pattern
	if label == "" {
		label = "default"
	}
	name := fmt.Sprintf("cache_%s_optimized_v%d", label, v)
	return NewStrategy(name, "learned cache TTL from observed reuse interval", pattern, params)
}
