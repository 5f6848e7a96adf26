package resilience

import (
	"context"
	"sync"
	"time"

	"github.com/wprun/wpr/primitive"
	"github.com/wprun/wpr/telemetry"
	"github.com/wprun/wpr/wfctx"
)

// CircuitState is one of the three states a CircuitBreaker can be in.
type CircuitState int

const (
	StateClosed CircuitState = iota
	StateOpen
	StateHalfOpen
)

func (s CircuitState) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// CircuitBreakerConfig configures the three-state breaker using a
// consecutive-failure-count contract rather than a sliding error-rate
// window: Closed -> Open once
// FailureThreshold consecutive failures accrue; Open -> HalfOpen after
// OpenDuration has elapsed since the last opening; HalfOpen allows exactly
// one probe and closes on its success or reopens on its failure.
type CircuitBreakerConfig struct {
	Name             string
	FailureThreshold int           `env:"WPR_CIRCUIT_FAILURE_THRESHOLD" default:"5"`
	OpenDuration     time.Duration `env:"WPR_CIRCUIT_OPEN_DURATION" default:"30s"`
}

// DefaultCircuitBreakerConfig returns the baseline defaults, then applies
// any WPR_CIRCUIT_* environment overrides.
func DefaultCircuitBreakerConfig(name string) *CircuitBreakerConfig {
	cfg := &CircuitBreakerConfig{
		Name:             name,
		FailureThreshold: 5,
		OpenDuration:     30 * time.Second,
	}
	telemetry.LoadEnvDefaults(cfg)
	return cfg
}

// CircuitBreaker wraps a Primitive, short-circuiting calls while open.
// State lives behind a single mutex rather than lock-free counters - the
// contract only needs consecutive-failure/-success counts, not an
// error-rate window, so the extra concurrency machinery isn't earning its
// complexity here.
type CircuitBreaker[I, O any] struct {
	config *CircuitBreakerConfig
	inner  primitive.Primitive[I, O]

	mu                  sync.Mutex
	state               CircuitState
	consecutiveFailures int
	openedAt            time.Time
	halfOpenInFlight    bool

	listeners []func(name string, from, to CircuitState)
}

// NewCircuitBreaker constructs a CircuitBreaker wrapping inner.
func NewCircuitBreaker[I, O any](config *CircuitBreakerConfig, inner primitive.Primitive[I, O]) *CircuitBreaker[I, O] {
	if config == nil {
		config = DefaultCircuitBreakerConfig("circuit_breaker")
	}
	return &CircuitBreaker[I, O]{config: config, inner: inner, state: StateClosed}
}

// AddStateChangeListener registers a callback invoked on every transition.
func (cb *CircuitBreaker[I, O]) AddStateChangeListener(listener func(name string, from, to CircuitState)) {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	cb.listeners = append(cb.listeners, listener)
}

// GetState returns the breaker's current state.
func (cb *CircuitBreaker[I, O]) GetState() CircuitState {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.state
}

// Execute implements primitive.Primitive.
func (cb *CircuitBreaker[I, O]) Execute(ctx context.Context, wctx *wfctx.Context, input I) (O, error) {
	var zero O

	if !cb.admit() {
		telemetry.Counter(telemetry.MetricCircuitBreakerRejected, "primitive_name", cb.config.Name)
		return zero, primitive.NewFrameworkError(cb.config.Name+".Execute", "circuit_breaker", primitive.ErrCircuitOpen)
	}

	out, err := cb.inner.Execute(ctx, wctx, input)
	cb.complete(err == nil)
	return out, err
}

// admit decides whether a call may proceed, transitioning Open -> HalfOpen
// once OpenDuration has elapsed, and returns false while fast-failing.
func (cb *CircuitBreaker[I, O]) admit() bool {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	switch cb.state {
	case StateClosed:
		return true
	case StateOpen:
		if time.Since(cb.openedAt) < cb.config.OpenDuration {
			return false
		}
		cb.transitionLocked(StateHalfOpen)
		cb.halfOpenInFlight = true
		return true
	case StateHalfOpen:
		// Exactly one probe in flight at a time.
		if cb.halfOpenInFlight {
			return false
		}
		cb.halfOpenInFlight = true
		return true
	default:
		return false
	}
}

func (cb *CircuitBreaker[I, O]) complete(success bool) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	switch cb.state {
	case StateHalfOpen:
		cb.halfOpenInFlight = false
		if success {
			cb.consecutiveFailures = 0
			cb.transitionLocked(StateClosed)
		} else {
			cb.transitionLocked(StateOpen)
			cb.openedAt = time.Now()
		}
	case StateClosed:
		if success {
			cb.consecutiveFailures = 0
			return
		}
		cb.consecutiveFailures++
		if cb.consecutiveFailures >= cb.config.FailureThreshold {
			cb.transitionLocked(StateOpen)
			cb.openedAt = time.Now()
		}
	}
}

// transitionLocked must be called with cb.mu held.
func (cb *CircuitBreaker[I, O]) transitionLocked(to CircuitState) {
	from := cb.state
	if from == to {
		return
	}
	cb.state = to
	telemetry.Counter(telemetry.MetricCircuitBreakerState, "primitive_name", cb.config.Name, "from", from.String(), "to", to.String())
	telemetry.GetLogger().WithComponent(cb.config.Name).Info("circuit_breaker_state_change", map[string]interface{}{
		"from": from.String(), "to": to.String(),
	})
	for _, l := range cb.listeners {
		l(cb.config.Name, from, to)
	}
}

// Reset forces the breaker back to Closed with counters cleared.
func (cb *CircuitBreaker[I, O]) Reset() {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	cb.consecutiveFailures = 0
	cb.halfOpenInFlight = false
	cb.transitionLocked(StateClosed)
}
