package adaptive

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/wprun/wpr/durability"
	"github.com/wprun/wpr/primitive"
	"github.com/wprun/wpr/wfctx"
)

// candidateStat accumulates attempt/success/latency counts for one named
// fallback candidate across every strategy and context, the same way the
// original's AdaptivePrimitive.fallback_stats is primitive-wide rather
// than per-strategy (adaptive/fallback.py's self.fallback_stats dict).
type candidateStat struct {
	attempts       int64
	successes      int64
	totalLatencyMs float64
}

func (c *candidateStat) successRate() float64 {
	if c.attempts == 0 {
		return 0
	}
	return float64(c.successes) / float64(c.attempts)
}

func (c *candidateStat) avgLatencyMs() float64 {
	if c.attempts == 0 {
		return 0
	}
	return c.totalLatencyMs / float64(c.attempts)
}

// Fallback is the adaptive wrapper around an ordered set of named
// candidates, grounded closely on a Python reference's
// AdaptiveFallbackPrimitive: a primary, a fixed pool of named fallbacks,
// and a learned order over that pool that is reranked by per-candidate
// success rate and latency once enough executions have accumulated.
type Fallback[I, O any] struct {
	*Base[I, O]
	name       string
	primary    primitive.Primitive[I, O]
	candidates map[string]primitive.Primitive[I, O]
	version    int64

	mu          sync.Mutex
	stats       map[string]*candidateStat
	contextStats map[string]map[string]*candidateStat
}

func fallbackBaselineStrategy(order []string) *Strategy {
	return NewStrategy("fallback_default", "baseline-provided fallback order", "", map[string]any{
		"fallback_order":     order,
		"primary_timeout_ms": 5000,
		"fallback_timeout_ms": 10000,
	})
}

// NewFallback constructs an adaptive Fallback. fallbackOrder gives the
// baseline order of keys into candidates; store may be nil to run
// without durability.
func NewFallback[I, O any](name string, primary primitive.Primitive[I, O], candidates map[string]primitive.Primitive[I, O], fallbackOrder []string, config Config, store durability.Store) *Fallback[I, O] {
	config.Store = store
	f := &Fallback[I, O]{
		name:         name,
		primary:      primary,
		candidates:   candidates,
		stats:        make(map[string]*candidateStat),
		contextStats: make(map[string]map[string]*candidateStat),
	}
	f.Base = NewBase[I, O](name, "adaptive.fallback", fallbackBaselineStrategy(fallbackOrder), config, f)
	return f
}

func (f *Fallback[I, O]) statFor(name string) *candidateStat {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.stats[name]
	if !ok {
		s = &candidateStat{}
		f.stats[name] = s
	}
	return s
}

func (f *Fallback[I, O]) record(name string, success bool, latency time.Duration) {
	f.recordFor(name, "", success, latency)
}

// recordFor folds one candidate's outcome into both the primitive-wide
// stats (used for ranking, mirroring the original's self.fallback_stats)
// and a per-context bucket (mirroring self._context_stats), so
// ContextStats can report primary/fallback attempts broken down by
// environment the way the original's get_fallback_stats does.
func (f *Fallback[I, O]) recordFor(name, contextKey string, success bool, latency time.Duration) {
	s := f.statFor(name)
	f.mu.Lock()
	defer f.mu.Unlock()
	s.attempts++
	if success {
		s.successes++
	}
	s.totalLatencyMs += float64(latency.Microseconds()) / 1000.0

	if contextKey == "" {
		contextKey = "default"
	}
	bucket, ok := f.contextStats[contextKey]
	if !ok {
		bucket = make(map[string]*candidateStat)
		f.contextStats[contextKey] = bucket
	}
	ctxStat, ok := bucket[name]
	if !ok {
		ctxStat = &candidateStat{}
		bucket[name] = ctxStat
	}
	ctxStat.attempts++
	if success {
		ctxStat.successes++
	}
	ctxStat.totalLatencyMs += float64(latency.Microseconds()) / 1000.0
}

// CandidateSnapshot is one candidate's rolled-up attempt/success/latency
// counters, exposed read-only via ContextStats.
type CandidateSnapshot struct {
	Attempts     int64
	Successes    int64
	SuccessRate  float64
	AvgLatencyMs float64
}

// ContextStats returns a per-context breakdown of attempts/successes for
// every candidate that has been tried under that context key, mirroring
// a Python reference's separate _context_stats bucket.
func (f *Fallback[I, O]) ContextStats() map[string]map[string]CandidateSnapshot {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make(map[string]map[string]CandidateSnapshot, len(f.contextStats))
	for ctx, bucket := range f.contextStats {
		snap := make(map[string]CandidateSnapshot, len(bucket))
		for name, s := range bucket {
			snap[name] = CandidateSnapshot{
				Attempts:     s.attempts,
				Successes:    s.successes,
				SuccessRate:  s.successRate(),
				AvgLatencyMs: s.avgLatencyMs(),
			}
		}
		out[ctx] = snap
	}
	return out
}

func fallbackOrderOf(params map[string]any) []string {
	raw, ok := params["fallback_order"]
	if !ok {
		return nil
	}
	switch v := raw.(type) {
	case []string:
		return v
	case []any:
		out := make([]string, 0, len(v))
		for _, item := range v {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	default:
		return nil
	}
}

// ExecuteWithStrategy implements Learner: try primary, then each
// candidate named in strategy's fallback_order, returning the first
// success, generalized with a learned order in place of a fixed one.
func (f *Fallback[I, O]) ExecuteWithStrategy(ctx context.Context, wctx *wfctx.Context, input I, strategy *Strategy) (O, error) {
	primaryTimeout := time.Duration(paramInt(strategy.Parameters, "primary_timeout_ms", 5000)) * time.Millisecond
	fallbackTimeout := time.Duration(paramInt(strategy.Parameters, "fallback_timeout_ms", 10000)) * time.Millisecond

	if out, err := f.attempt(ctx, wctx, "primary", f.primary, input, primaryTimeout); err == nil {
		return out, nil
	} else {
		lastErr := err
		for _, name := range fallbackOrderOf(strategy.Parameters) {
			candidate, ok := f.candidates[name]
			if !ok {
				continue
			}
			out, err := f.attempt(ctx, wctx, name, candidate, input, fallbackTimeout)
			if err == nil {
				return out, nil
			}
			lastErr = err
		}
		var zero O
		return zero, primitive.NewFrameworkError(f.name+".Execute", "fallback", lastErr)
	}
}

func (f *Fallback[I, O]) attempt(ctx context.Context, wctx *wfctx.Context, name string, p primitive.Primitive[I, O], input I, timeout time.Duration) (O, error) {
	attemptCtx := ctx
	cancel := func() {}
	if timeout > 0 {
		attemptCtx, cancel = context.WithTimeout(ctx, timeout)
	}
	defer cancel()

	start := time.Now()
	out, err := p.Execute(attemptCtx, wctx, input)
	latency := time.Since(start)
	f.recordFor(name, wctx.Environment(), err == nil, latency)
	return out, err
}

// ConsiderNewStrategy implements Learner, following
// _consider_new_strategy in the original almost exactly: score every
// candidate by success_rate*0.7 + latency_score*0.3, sort descending for
// an optimal order, compute its position-weighted estimated success rate
// (weight = 1/(i+1)) and compare against the current strategy's order
// under the same weighting, proposing a new strategy only if the
// improvement clears the promotion margin.
func (f *Fallback[I, O]) ConsiderNewStrategy(wctx *wfctx.Context, current *Strategy) *Strategy {
	f.mu.Lock()
	names := make([]string, 0, len(f.stats))
	scored := make(map[string]float64, len(f.stats))
	rates := make(map[string]float64, len(f.stats))
	for name, s := range f.stats {
		if s.attempts < 5 {
			continue
		}
		latencyScore := 1.0 / (1.0 + s.avgLatencyMs()/1000.0)
		scored[name] = s.successRate()*0.7 + latencyScore*0.3
		rates[name] = s.successRate()
		names = append(names, name)
	}
	f.mu.Unlock()

	if len(names) < 2 {
		return nil
	}

	sort.Slice(names, func(i, j int) bool { return scored[names[i]] > scored[names[j]] })

	estimate := func(order []string) float64 {
		var weighted, weightSum float64
		for i, name := range order {
			weight := 1.0 / float64(i+1)
			weighted += weight * rates[name]
			weightSum += weight
		}
		if weightSum == 0 {
			return 0
		}
		return weighted / weightSum
	}

	optimalEstimate := estimate(names)
	currentOrder := fallbackOrderOf(current.Parameters)
	currentEstimate := estimate(currentOrder)

	if optimalEstimate < currentEstimate+promotionMargin {
		return nil
	}

	v := atomic.AddInt64(&f.version, 1)
	pattern := current.ContextPattern
	label := pattern
	if label == "" {
		label = "default"
	}
	name := fmt.Sprintf("fallback_%s_optimized_v%d", label, v)
	return NewStrategy(name, "learned fallback order from per-candidate success rate and latency", pattern, map[string]any{
		"fallback_order":      names,
		"primary_timeout_ms":  paramInt(current.Parameters, "primary_timeout_ms", 5000),
		"fallback_timeout_ms": paramInt(current.Parameters, "fallback_timeout_ms", 10000),
	})
}
