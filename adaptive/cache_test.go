package adaptive

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wprun/wpr/primitive"
	"github.com/wprun/wpr/wfctx"
)

func TestAdaptiveCacheHitsAfterFirstCall(t *testing.T) {
	calls := 0
	inner := primitive.Lambda[string, string](func(ctx context.Context, wctx *wfctx.Context, input string) (string, error) {
		calls++
		return "value:" + input, nil
	})
	keyFn := func(input string, wctx *wfctx.Context) string { return input }

	config := DefaultConfig()
	config.LearningMode = Disabled
	c := NewCache[string, string]("cache-under-test", keyFn, config, nil, inner)

	out1, err := c.Execute(context.Background(), wfctx.New(), "a")
	require.NoError(t, err)
	out2, err := c.Execute(context.Background(), wfctx.New(), "a")
	require.NoError(t, err)

	assert.Equal(t, out1, out2)
	assert.Equal(t, 1, calls)
}

func TestAdaptiveCacheProposesTTLFromObservedReuseInterval(t *testing.T) {
	inner := primitive.Lambda[string, string](func(ctx context.Context, wctx *wfctx.Context, input string) (string, error) {
		return "v", nil
	})
	c := NewCache[string, string]("cache-consider", func(i string, w *wfctx.Context) string { return i }, DefaultConfig(), nil, inner)

	current := NewStrategy("cache_current", "", "", map[string]any{
		"ttl_seconds": 60, "max_size": 1000, "min_ttl_seconds": 5, "max_ttl_seconds": 3600,
	})

	// Every key is missed once, then hit a short time later: the
	// observed reuse interval is far shorter than the 60s baseline TTL.
	for i := 0; i < demotionWindow; i++ {
		key := fmt.Sprintf("k%d", i)
		_, err := c.ExecuteWithStrategy(context.Background(), wfctx.New(), key, current)
		require.NoError(t, err)
		time.Sleep(5 * time.Millisecond)
		_, err = c.ExecuteWithStrategy(context.Background(), wfctx.New(), key, current)
		require.NoError(t, err)
		current.Metrics.Record(true, 200*time.Millisecond, "")
	}

	backing, ok := c.existingCacheFor(current)
	require.True(t, ok)
	_, observations := backing.MedianReuseGapSeconds()
	require.GreaterOrEqual(t, observations, minReuseObservations)

	proposal := c.ConsiderNewStrategy(wfctx.New(), current)
	require.NotNil(t, proposal)
	assert.Less(t, paramInt(proposal.Parameters, "ttl_seconds", -1), 60)
	assert.GreaterOrEqual(t, paramInt(proposal.Parameters, "ttl_seconds", -1), 5)
}

func TestAdaptiveCacheConsidersNothingWithoutReuseObservations(t *testing.T) {
	inner := primitive.Lambda[string, string](func(ctx context.Context, wctx *wfctx.Context, input string) (string, error) {
		return "v", nil
	})
	c := NewCache[string, string]("cache-consider-no-reuse", func(i string, w *wfctx.Context) string { return i }, DefaultConfig(), nil, inner)

	current := NewStrategy("cache_current", "", "", map[string]any{"ttl_seconds": 60, "max_size": 1000})
	// Every key is missed exactly once and never reused: no hit-after-miss
	// gap is ever observed.
	for i := 0; i < demotionWindow; i++ {
		_, err := c.ExecuteWithStrategy(context.Background(), wfctx.New(), fmt.Sprintf("k%d", i), current)
		require.NoError(t, err)
		current.Metrics.Record(true, 10*time.Millisecond, "")
	}

	assert.Nil(t, c.ConsiderNewStrategy(wfctx.New(), current))
}

func TestAdaptiveCacheConsidersNothingWithFewObservations(t *testing.T) {
	inner := primitive.Lambda[string, string](func(ctx context.Context, wctx *wfctx.Context, input string) (string, error) {
		return "v", nil
	})
	c := NewCache[string, string]("cache-consider", func(i string, w *wfctx.Context) string { return i }, DefaultConfig(), nil, inner)

	current := NewStrategy("cache_current", "", "", map[string]any{"ttl_seconds": 60})
	current.Metrics.Record(true, 10*time.Millisecond, "")

	assert.Nil(t, c.ConsiderNewStrategy(wfctx.New(), current))
}
