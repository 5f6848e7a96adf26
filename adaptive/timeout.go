package adaptive

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/wprun/wpr/durability"
	"github.com/wprun/wpr/primitive"
	"github.com/wprun/wpr/resilience"
	"github.com/wprun/wpr/wfctx"
)

// Timeout is the adaptive wrapper around resilience.Timeout: the
// bound comes from the currently-selected Strategy's Parameters, learned
// from the observed p95 latency of successful calls rather than held
// fixed, generalizing the same per-context tuning a Python reference
// applies to fallback ordering.
type Timeout[I, O any] struct {
	*Base[I, O]
	name    string
	inner   primitive.Primitive[I, O]
	version int64
}

func timeoutBaselineStrategy(defaultTimeout time.Duration) *Strategy {
	return NewStrategy("timeout_default", "baseline default bound", "", map[string]any{
		"timeout_ms": defaultTimeout.Milliseconds(),
	})
}

// NewTimeout constructs an adaptive Timeout wrapping inner with
// defaultTimeout as the baseline bound. store may be nil to run without
// durability.
func NewTimeout[I, O any](name string, defaultTimeout time.Duration, config Config, store durability.Store, inner primitive.Primitive[I, O]) *Timeout[I, O] {
	config.Store = store
	t := &Timeout[I, O]{name: name, inner: inner}
	t.Base = NewBase[I, O](name, "adaptive.timeout", timeoutBaselineStrategy(defaultTimeout), config, t)
	return t
}

// ExecuteWithStrategy implements Learner.
func (t *Timeout[I, O]) ExecuteWithStrategy(ctx context.Context, wctx *wfctx.Context, input I, strategy *Strategy) (O, error) {
	bound := time.Duration(paramInt(strategy.Parameters, "timeout_ms", 5000)) * time.Millisecond
	exec := resilience.NewTimeout(t.name+"."+strategy.Name, bound, t.inner)
	return exec.Execute(ctx, wctx, input)
}

// ConsiderNewStrategy implements Learner. A candidate bound is proposed
// from the current strategy's observed p95 latency with headroom, so the
// timeout tracks what the wrapped primitive actually needs instead of a
// value chosen up front.
func (t *Timeout[I, O]) ConsiderNewStrategy(wctx *wfctx.Context, current *Strategy) *Strategy {
	snapshot := current.Metrics.Snapshot()
	if snapshot.TotalExecutions < int64(demotionWindow) {
		return nil
	}
	if snapshot.P95Ms <= 0 {
		return nil
	}

	currentBound := paramInt(current.Parameters, "timeout_ms", 5000)
	candidateBound := int(snapshot.P95Ms * 1.5)
	if candidateBound <= 0 {
		return nil
	}

	// Only worth proposing if it moves the bound meaningfully in either
	// direction; a candidate within 10% of the current bound isn't a
	// distinct strategy worth validating.
	delta := float64(candidateBound-currentBound) / float64(currentBound)
	if delta > -0.1 && delta < 0.1 {
		return nil
	}

	v := atomic.AddInt64(&t.version, 1)
	pattern := current.ContextPattern
	label := pattern
	if label == "" {
		label = "default"
	}
	name := fmt.Sprintf("timeout_%s_optimized_v%d", label, v)
	return NewStrategy(name, "learned timeout bound from observed p95 latency", pattern, map[string]any{
		"timeout_ms": candidateBound,
	})
}
