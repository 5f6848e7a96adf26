package resilience

import (
	"context"
	"time"

	"github.com/wprun/wpr/primitive"
	"github.com/wprun/wpr/telemetry"
	"github.com/wprun/wpr/wfctx"
)

// FallbackEntry names one fallback candidate in order.
type FallbackEntry[I, O any] struct {
	Name string
	Node primitive.Primitive[I, O]
}

// Fallback tries Primary first, then each entry in Fallbacks in order,
// returning the first success. If every attempt fails, the last
// error is returned. Each attempt's latency and outcome are recorded
// against its own name so the adaptive layer can later rerank order by
// per-fallback success rate.
type Fallback[I, O any] struct {
	Name       string
	Primary    primitive.Primitive[I, O]
	Fallbacks  []FallbackEntry[I, O]
	PerAttempt time.Duration // optional per-attempt timeout, 0 disables
}

// NewFallback constructs a Fallback.
func NewFallback[I, O any](name string, primary primitive.Primitive[I, O], fallbacks []FallbackEntry[I, O]) *Fallback[I, O] {
	return &Fallback[I, O]{Name: name, Primary: primary, Fallbacks: fallbacks}
}

// Execute implements primitive.Primitive.
func (f *Fallback[I, O]) Execute(ctx context.Context, wctx *wfctx.Context, input I) (O, error) {
	if out, err := f.attempt(ctx, wctx, "primary", f.Primary, input); err == nil {
		return out, nil
	} else {
		lastErr := err
		for _, fb := range f.Fallbacks {
			out, err := f.attempt(ctx, wctx, fb.Name, fb.Node, input)
			if err == nil {
				return out, nil
			}
			lastErr = err
		}
		var zero O
		return zero, primitive.NewFrameworkError(f.Name+".Execute", "fallback", lastErr)
	}
}

func (f *Fallback[I, O]) attempt(ctx context.Context, wctx *wfctx.Context, label string, p primitive.Primitive[I, O], input I) (O, error) {
	attemptCtx := ctx
	cancel := func() {}
	if f.PerAttempt > 0 {
		attemptCtx, cancel = context.WithTimeout(ctx, f.PerAttempt)
	}
	defer cancel()

	start := time.Now()
	out, err := p.Execute(attemptCtx, wctx, input)
	duration := time.Since(start)

	status := "success"
	if err != nil {
		status = "failure"
	}
	telemetry.Counter(telemetry.MetricFallbackUsage, "primitive_name", f.Name, "candidate", label, "status", status)
	telemetry.Histogram(telemetry.MetricPrimitiveDuration, float64(duration.Milliseconds()), "primitive_name", f.Name, "primitive_kind", "fallback."+label, "status", status)
	if err != nil {
		telemetry.GetLogger().WithComponent(f.Name).Warn("fallback_candidate_failed", map[string]interface{}{
			"candidate": label, "error": err.Error(), "duration_ms": duration.Milliseconds(),
		})
	}
	return out, err
}
