package resilience

import (
	"context"
	"time"

	"github.com/wprun/wpr/primitive"
	"github.com/wprun/wpr/telemetry"
	"github.com/wprun/wpr/wfctx"
)

// Timeout races a child execution against a timer. On expiry it
// returns primitive.ErrTimeout and cancels the child's context; nested
// timeouts compose naturally because context.WithTimeout always yields to
// whichever deadline is nearer, so the innermost Timeout always wins.
//
// Go has no way to force a goroutine to stop running once started, so
// "attempt to cancel" is implemented the same cooperative way the rest of
// the runtime cancels in-flight work: the child observes ctx.Done() if
// it's written to check for it. Execute still returns to the caller the
// instant the timer fires regardless of whether the child goroutine has
// exited, and any late result from that goroutine is discarded.
type Timeout[I, O any] struct {
	Name    string
	Timeout time.Duration
	inner   primitive.Primitive[I, O]
}

// NewTimeout constructs a Timeout wrapping inner with the given bound.
func NewTimeout[I, O any](name string, timeout time.Duration, inner primitive.Primitive[I, O]) *Timeout[I, O] {
	return &Timeout[I, O]{Name: name, Timeout: timeout, inner: inner}
}

type timeoutResult[O any] struct {
	out O
	err error
}

// Execute implements primitive.Primitive.
func (t *Timeout[I, O]) Execute(ctx context.Context, wctx *wfctx.Context, input I) (O, error) {
	var zero O
	cctx, cancel := context.WithTimeout(ctx, t.Timeout)
	defer cancel()

	done := make(chan timeoutResult[O], 1)
	go func() {
		out, err := t.inner.Execute(cctx, wctx, input)
		done <- timeoutResult[O]{out: out, err: err}
	}()

	select {
	case r := <-done:
		return r.out, r.err
	case <-cctx.Done():
		telemetry.Counter(telemetry.MetricTimeoutExceeded, "primitive_name", t.Name)
		telemetry.GetLogger().WithComponent(t.Name).Warn("timeout_exceeded", map[string]interface{}{
			"timeout_ms":     t.Timeout.Milliseconds(),
			"correlation_id": wctx.CorrelationID,
		})
		return zero, primitive.NewFrameworkError(t.Name+".Execute", "timeout", primitive.ErrTimeout)
	}
}
