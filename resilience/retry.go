package resilience

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"time"

	"github.com/wprun/wpr/primitive"
	"github.com/wprun/wpr/telemetry"
	"github.com/wprun/wpr/wfctx"
)

// RetryConfig configures Retry's backoff schedule, extended with RetryOn
// so a caller can classify which errors are worth another attempt
// instead of always retrying.
type RetryConfig struct {
	MaxAttempts   int           `env:"WPR_RETRY_MAX_ATTEMPTS" default:"3"`
	InitialDelay  time.Duration `env:"WPR_RETRY_INITIAL_DELAY" default:"100ms"`
	MaxDelay      time.Duration `env:"WPR_RETRY_MAX_DELAY" default:"5s"`
	BackoffFactor float64       `env:"WPR_RETRY_BACKOFF_FACTOR" default:"2.0"`
	JitterFrac    float64       `env:"WPR_RETRY_JITTER_FRAC" default:"0.1"`

	// RetryOn classifies err as retriable. Defaults to primitive.IsRetryable.
	RetryOn func(err error) bool

	// OnAttempt, if set, is called after every attempt with its 1-based
	// attempt number, its error (nil on success), and the gap since the
	// previous attempt ended (0 for attempt 1). Used by the adaptive
	// layer to learn from real per-attempt and inter-failure timing
	// instead of only the call's final outcome.
	OnAttempt func(attempt int, err error, gapSincePrevious time.Duration)
}

// DefaultRetryConfig returns the baseline defaults, then applies any
// WPR_RETRY_* environment overrides, layering environment variables
// over hardcoded defaults.
func DefaultRetryConfig() *RetryConfig {
	cfg := &RetryConfig{
		MaxAttempts:   3,
		InitialDelay:  100 * time.Millisecond,
		MaxDelay:      5 * time.Second,
		BackoffFactor: 2.0,
		JitterFrac:    0.1,
		RetryOn:       primitive.IsRetryable,
	}
	telemetry.LoadEnvDefaults(cfg)
	return cfg
}

// Retry wraps a Primitive with exponential-backoff retry. Attempts
// 1..MaxAttempts run the wrapped primitive; on a retriable failure it
// sleeps min(MaxDelay, InitialDelay*BackoffFactor^(n-1)) scaled by
// (1 ± JitterFrac) and tries again. A non-retriable error returns
// immediately unwrapped; attempt exhaustion wraps the last error with
// ErrMaxRetriesExceeded while preserving it in the cause chain, so
// errors.Is against the original class still succeeds.
type Retry[I, O any] struct {
	Name   string
	config *RetryConfig
	inner  primitive.Primitive[I, O]
}

// NewRetry constructs a Retry wrapping inner. A nil config uses
// DefaultRetryConfig.
func NewRetry[I, O any](name string, config *RetryConfig, inner primitive.Primitive[I, O]) *Retry[I, O] {
	if config == nil {
		config = DefaultRetryConfig()
	}
	if config.RetryOn == nil {
		config.RetryOn = primitive.IsRetryable
	}
	return &Retry[I, O]{Name: name, config: config, inner: inner}
}

// Execute implements primitive.Primitive.
func (r *Retry[I, O]) Execute(ctx context.Context, wctx *wfctx.Context, input I) (O, error) {
	var zero O
	var lastErr error
	logger := telemetry.GetLogger().WithComponent(r.Name)
	delay := r.config.InitialDelay
	var gapSincePrevious time.Duration

	for attempt := 1; attempt <= r.config.MaxAttempts; attempt++ {
		select {
		case <-ctx.Done():
			return zero, ctx.Err()
		default:
		}

		out, err := r.inner.Execute(ctx, wctx, input)
		if r.config.OnAttempt != nil {
			r.config.OnAttempt(attempt, err, gapSincePrevious)
		}
		if err == nil {
			telemetry.Counter(telemetry.MetricRetryAttempts, "primitive_name", r.Name, "outcome", "success")
			return out, nil
		}
		lastErr = err
		telemetry.Counter(telemetry.MetricRetryAttempts, "primitive_name", r.Name, "outcome", "failure")
		logger.Warn("retry_attempt_failed", map[string]interface{}{
			"attempt": attempt, "max_attempts": r.config.MaxAttempts, "error": err.Error(),
		})

		if !r.config.RetryOn(err) {
			return zero, err
		}
		if attempt == r.config.MaxAttempts {
			break
		}

		if attempt > 1 {
			delay = time.Duration(float64(r.config.InitialDelay) * math.Pow(r.config.BackoffFactor, float64(attempt-1)))
			if delay > r.config.MaxDelay {
				delay = r.config.MaxDelay
			}
		}

		sleep := delay
		if r.config.JitterFrac > 0 {
			jitter := (rand.Float64()*2 - 1) * r.config.JitterFrac
			sleep = time.Duration(float64(delay) * (1 + jitter))
		}
		telemetry.Histogram(telemetry.MetricRetryBackoff, float64(sleep.Milliseconds()), "primitive_name", r.Name)

		timer := time.NewTimer(sleep)
		select {
		case <-ctx.Done():
			timer.Stop()
			return zero, ctx.Err()
		case <-timer.C:
		}
		gapSincePrevious = sleep
	}

	return zero, fmt.Errorf("%s: max retry attempts (%d) exceeded: %w: %w", r.Name, r.config.MaxAttempts, primitive.ErrMaxRetriesExceeded, lastErr)
}
