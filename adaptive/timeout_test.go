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

func TestAdaptiveTimeoutAllowsFastCall(t *testing.T) {
	inner := primitive.Lambda[string, string](func(ctx context.Context, wctx *wfctx.Context, input string) (string, error) {
		return "fast", nil
	})
	config := DefaultConfig()
	config.LearningMode = Disabled
	tm := NewTimeout[string, string]("timeout-under-test", 50*time.Millisecond, config, nil, inner)

	out, err := tm.Execute(context.Background(), wfctx.New(), "in")
	require.NoError(t, err)
	assert.Equal(t, "fast", out)
}

func TestAdaptiveTimeoutExpiresOnSlowCall(t *testing.T) {
	inner := primitive.Lambda[string, string](func(ctx context.Context, wctx *wfctx.Context, input string) (string, error) {
		select {
		case <-time.After(200 * time.Millisecond):
			return "slow", nil
		case <-ctx.Done():
			return "", ctx.Err()
		}
	})
	config := DefaultConfig()
	config.LearningMode = Disabled
	tm := NewTimeout[string, string]("timeout-under-test", 10*time.Millisecond, config, nil, inner)

	_, err := tm.Execute(context.Background(), wfctx.New(), "in")
	assert.Error(t, err)
	assert.True(t, errors.Is(err, primitive.ErrTimeout))
}

func TestAdaptiveTimeoutProposesBoundFromP95(t *testing.T) {
	inner := primitive.Lambda[string, string](func(ctx context.Context, wctx *wfctx.Context, input string) (string, error) {
		return "ok", nil
	})
	tm := NewTimeout[string, string]("timeout-consider", 5*time.Second, DefaultConfig(), nil, inner)

	current := NewStrategy("timeout_current", "", "", map[string]any{"timeout_ms": 5000})
	for i := 0; i < demotionWindow; i++ {
		current.Metrics.Record(true, 100*time.Millisecond, "")
	}

	proposal := tm.ConsiderNewStrategy(wfctx.New(), current)
	require.NotNil(t, proposal)
	assert.Less(t, paramInt(proposal.Parameters, "timeout_ms", -1), 5000)
}

func TestAdaptiveTimeoutProposesNothingWhenCloseToCurrent(t *testing.T) {
	inner := primitive.Lambda[string, string](func(ctx context.Context, wctx *wfctx.Context, input string) (string, error) {
		return "ok", nil
	})
	tm := NewTimeout[string, string]("timeout-consider", 5*time.Second, DefaultConfig(), nil, inner)

	current := NewStrategy("timeout_current", "", "", map[string]any{"timeout_ms": 150})
	for i := 0; i < demotionWindow; i++ {
		current.Metrics.Record(true, 100*time.Millisecond, "")
	}

	// p95 ~100ms * 1.5 = 150ms, within 10% of current (150ms) -> no proposal.
	assert.Nil(t, tm.ConsiderNewStrategy(wfctx.New(), current))
}
