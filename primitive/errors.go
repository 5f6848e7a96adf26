package primitive

import (
	"errors"
	"fmt"
)

// Sentinel errors backing the six error kinds every primitive classifies
// its failures into. Wrap one of these with fmt.Errorf("...: %w", ...) or
// with FrameworkError to preserve a cause chain while still satisfying
// errors.Is against the sentinel.
var (
	// ErrValidation marks a configuration or input precondition violation.
	// Never retried; never triggers compensation.
	ErrValidation = errors.New("validation error")

	// ErrTimeout marks an operation that exceeded its configured bound.
	// Retriable if an upper layer policy allows it.
	ErrTimeout = errors.New("timeout error")

	// ErrTransient marks a downstream signal of a retry-worthy failure.
	ErrTransient = errors.New("transient error")

	// ErrPermanent marks a downstream failure that will not resolve on
	// retry; triggers Fallback/Saga compensation instead.
	ErrPermanent = errors.New("permanent error")

	// ErrCircuitOpen marks rejection by an open circuit breaker. Treated
	// as transient by upper layers.
	ErrCircuitOpen = errors.New("circuit open")

	// ErrStrategy marks an adaptive-layer failure to apply a learned
	// strategy; the caller falls back to the baseline.
	ErrStrategy = errors.New("strategy error")

	// ErrMaxRetriesExceeded is wrapped around the last error once a Retry
	// exhausts its attempt budget.
	ErrMaxRetriesExceeded = errors.New("maximum retry attempts exceeded")

	// ErrRoutingKey marks a Router selector key with neither a matching
	// route nor a default.
	ErrRoutingKey = errors.New("no route for key")
)

// FrameworkError provides structured error information with context,
// attaching the operation and primitive kind to an underlying cause.
type FrameworkError struct {
	Op      string // operation that failed, e.g. "retry.Execute"
	Kind    string // primitive kind, e.g. "retry", "circuit_breaker"
	ID      string // optional identifying name of the primitive instance
	Message string
	Err     error
}

func (e *FrameworkError) Error() string {
	if e.Op != "" && e.Err != nil {
		if e.ID != "" {
			return fmt.Sprintf("%s [%s]: %v", e.Op, e.ID, e.Err)
		}
		return fmt.Sprintf("%s: %v", e.Op, e.Err)
	}
	if e.Message != "" {
		return e.Message
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	return fmt.Sprintf("%s error", e.Kind)
}

func (e *FrameworkError) Unwrap() error {
	return e.Err
}

// NewFrameworkError wraps err with an operation and kind for diagnostics.
func NewFrameworkError(op, kind string, err error) *FrameworkError {
	return &FrameworkError{Op: op, Kind: kind, Err: err}
}

// IsRetryable reports whether err classifies as retry-worthy: transient
// failures, timeouts, and circuit-open rejections (the breaker may have closed by the
// next attempt), but never validation, permanent, or strategy errors.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrTransient) ||
		errors.Is(err, ErrTimeout) ||
		errors.Is(err, ErrCircuitOpen)
}

// IsTerminal reports whether err should never be retried or routed to a
// fallback: validation failures are caller bugs, not runtime conditions.
func IsTerminal(err error) bool {
	return errors.Is(err, ErrValidation)
}

// TriggersCompensation reports whether err should cause a Saga's
// compensation primitive to run.
func TriggersCompensation(err error) bool {
	return errors.Is(err, ErrTransient) || errors.Is(err, ErrPermanent) || errors.Is(err, ErrTimeout)
}

// Classify returns a short label for err, used as the error_kind metric
// label and log field. Unrecognized errors classify as "unknown".
func Classify(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrValidation):
		return "validation"
	case errors.Is(err, ErrTimeout):
		return "timeout"
	case errors.Is(err, ErrTransient):
		return "transient"
	case errors.Is(err, ErrPermanent):
		return "permanent"
	case errors.Is(err, ErrCircuitOpen):
		return "circuit_open"
	case errors.Is(err, ErrStrategy):
		return "strategy"
	default:
		return "unknown"
	}
}
