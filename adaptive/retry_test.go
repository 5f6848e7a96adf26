package adaptive

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wprun/wpr/primitive"
	"github.com/wprun/wpr/wfctx"
)

func countingFlaky(failuresBeforeSuccess int) (primitive.Primitive[string, string], *int) {
	calls := 0
	p := primitive.Lambda[string, string](func(ctx context.Context, wctx *wfctx.Context, input string) (string, error) {
		calls++
		if calls <= failuresBeforeSuccess {
			return "", primitive.NewFrameworkError("flaky", "transient", primitive.ErrTransient)
		}
		return "done", nil
	})
	return p, &calls
}

func TestAdaptiveRetrySucceedsWithinBaselineAttempts(t *testing.T) {
	inner, _ := countingFlaky(2)
	config := DefaultConfig()
	config.LearningMode = Disabled
	r := NewRetry[string, string]("retry-under-test", config, nil, inner)

	out, err := r.Execute(context.Background(), wfctx.New(), "in")
	require.NoError(t, err)
	assert.Equal(t, "done", out)
}

func TestAdaptiveRetryExhaustsAttemptsAndFails(t *testing.T) {
	always := primitive.Lambda[string, string](func(ctx context.Context, wctx *wfctx.Context, input string) (string, error) {
		return "", primitive.NewFrameworkError("always-fails", "transient", primitive.ErrTransient)
	})
	config := DefaultConfig()
	config.LearningMode = Disabled
	r := NewRetry[string, string]("retry-under-test", config, nil, always)

	_, err := r.Execute(context.Background(), wfctx.New(), "in")
	assert.Error(t, err)
	assert.True(t, errors.Is(err, primitive.ErrMaxRetriesExceeded))
}

func TestAdaptiveRetryProposesFewerAttemptsFromSuccessByAttemptCurve(t *testing.T) {
	r := NewRetry[string, string]("retry-consider", DefaultConfig(), nil, primitive.Lambda[string, string](
		func(ctx context.Context, wctx *wfctx.Context, input string) (string, error) { return "ok", nil },
	))

	current := NewStrategy("retry_current", "", "", map[string]any{
		"max_attempts": 3, "initial_delay_ms": 100, "max_delay_ms": 5000, "backoff_factor": 2.0,
	})
	for i := 0; i < demotionWindow*2; i++ {
		out, err := r.ExecuteWithStrategy(context.Background(), wfctx.New(), "in", current)
		require.NoError(t, err)
		assert.Equal(t, "ok", out)
		current.Metrics.Record(true, 300*time.Millisecond, "")
	}

	// Every call succeeded on attempt 1, so the empirical curve covers
	// successCoverageTarget already at attempt 1.
	proposal := r.ConsiderNewStrategy(wfctx.New(), current)
	require.NotNil(t, proposal)
	assert.Equal(t, 1, paramInt(proposal.Parameters, "max_attempts", -1))
}

func TestAdaptiveRetryTunesInitialDelayFromInterFailureGaps(t *testing.T) {
	attempt := 0
	inner := primitive.Lambda[string, string](func(ctx context.Context, wctx *wfctx.Context, input string) (string, error) {
		attempt++
		if attempt%3 != 0 {
			return "", primitive.NewFrameworkError("flaky", "transient", primitive.ErrTransient)
		}
		return "ok", nil
	})
	r := NewRetry[string, string]("retry-consider", DefaultConfig(), nil, inner)

	current := NewStrategy("retry_current", "", "", map[string]any{
		"max_attempts": 3, "initial_delay_ms": 1, "max_delay_ms": 5000, "backoff_factor": 2.0,
	})
	for i := 0; i < demotionWindow*2; i++ {
		_, err := r.ExecuteWithStrategy(context.Background(), wfctx.New(), "in", current)
		current.Metrics.Record(err == nil, 5*time.Millisecond, "")
	}

	stats, ok := r.existingStatsFor(current.Name)
	require.True(t, ok)
	median, observations := stats.medianFailureGapMs()
	assert.Greater(t, observations, 0)
	assert.Greater(t, median, 0.0)
}

func TestAdaptiveRetryProposesNothingWithInsufficientObservations(t *testing.T) {
	r := NewRetry[string, string]("retry-consider", DefaultConfig(), nil, primitive.Lambda[string, string](
		func(ctx context.Context, wctx *wfctx.Context, input string) (string, error) { return "ok", nil },
	))

	current := NewStrategy("retry_current", "", "", map[string]any{"max_attempts": 3})
	current.Metrics.Record(true, 0, "")

	assert.Nil(t, r.ConsiderNewStrategy(wfctx.New(), current))
}
