package adaptive

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wprun/wpr/primitive"
	"github.com/wprun/wpr/wfctx"
)

func succeedsAs(value string) primitive.Primitive[string, string] {
	return primitive.Lambda[string, string](func(ctx context.Context, wctx *wfctx.Context, input string) (string, error) {
		return value, nil
	})
}

func failsWith(err error) primitive.Primitive[string, string] {
	return primitive.Lambda[string, string](func(ctx context.Context, wctx *wfctx.Context, input string) (string, error) {
		return "", err
	})
}

func TestAdaptiveFallbackUsesPrimaryOnSuccess(t *testing.T) {
	config := DefaultConfig()
	config.LearningMode = Disabled
	f := NewFallback[string, string]("fb-under-test", succeedsAs("primary"), map[string]primitive.Primitive[string, string]{
		"a": succeedsAs("a-value"),
	}, []string{"a"}, config, nil)

	out, err := f.Execute(context.Background(), wfctx.New(), "in")
	require.NoError(t, err)
	assert.Equal(t, "primary", out)
}

func TestAdaptiveFallbackFallsThroughBaselineOrder(t *testing.T) {
	config := DefaultConfig()
	config.LearningMode = Disabled
	f := NewFallback[string, string]("fb-under-test", failsWith(errors.New("primary down")),
		map[string]primitive.Primitive[string, string]{
			"first":  succeedsAs("first-value"),
			"second": succeedsAs("second-value"),
		}, []string{"first", "second"}, config, nil)

	out, err := f.Execute(context.Background(), wfctx.New(), "in")
	require.NoError(t, err)
	assert.Equal(t, "first-value", out)
}

func TestAdaptiveFallbackReturnsErrorWhenEverythingFails(t *testing.T) {
	config := DefaultConfig()
	config.LearningMode = Disabled
	lastErr := errors.New("second down")
	f := NewFallback[string, string]("fb-under-test", failsWith(errors.New("primary down")),
		map[string]primitive.Primitive[string, string]{
			"first":  failsWith(errors.New("first down")),
			"second": failsWith(lastErr),
		}, []string{"first", "second"}, config, nil)

	_, err := f.Execute(context.Background(), wfctx.New(), "in")
	assert.Error(t, err)
	assert.True(t, errors.Is(err, lastErr))
}

func TestAdaptiveFallbackConsidersReorderByScore(t *testing.T) {
	config := DefaultConfig()
	f := NewFallback[string, string]("fb-consider", succeedsAs("primary"),
		map[string]primitive.Primitive[string, string]{
			"low":  succeedsAs("low-value"),
			"high": succeedsAs("high-value"),
		}, []string{"low", "high"}, config, nil)

	for i := 0; i < 10; i++ {
		f.record("low", i < 5, 0) // 50% success rate
	}
	for i := 0; i < 10; i++ {
		f.record("high", true, 0) // 100% success rate
	}

	// Baseline order puts the weaker candidate first; the learned order
	// should put the stronger candidate first since success rate dominates
	// the composite score and the position-weighted estimate.
	current := NewStrategy("fallback_current", "", "", map[string]any{"fallback_order": []string{"low", "high"}})

	proposal := f.ConsiderNewStrategy(wfctx.New(), current)
	require.NotNil(t, proposal)
	order := fallbackOrderOf(proposal.Parameters)
	require.Len(t, order, 2)
	assert.Equal(t, "high", order[0])
}

func TestAdaptiveFallbackContextStatsBreaksDownByEnvironment(t *testing.T) {
	config := DefaultConfig()
	config.LearningMode = Disabled
	f := NewFallback[string, string]("fb-context", failsWith(errors.New("primary down")),
		map[string]primitive.Primitive[string, string]{
			"a": succeedsAs("a-value"),
		}, []string{"a"}, config, nil)

	prodCtx := wfctx.New(wfctx.WithMetadata("environment", "production"))
	stagingCtx := wfctx.New(wfctx.WithMetadata("environment", "staging"))

	_, err := f.Execute(context.Background(), prodCtx, "in")
	require.NoError(t, err)
	_, err = f.Execute(context.Background(), stagingCtx, "in")
	require.NoError(t, err)
	_, err = f.Execute(context.Background(), stagingCtx, "in")
	require.NoError(t, err)

	ctxStats := f.ContextStats()
	require.Contains(t, ctxStats, "production")
	require.Contains(t, ctxStats, "staging")
	assert.Equal(t, int64(1), ctxStats["production"]["a"].Attempts)
	assert.Equal(t, int64(2), ctxStats["staging"]["a"].Attempts)
}

func TestAdaptiveFallbackConsidersNothingWithFewSamples(t *testing.T) {
	config := DefaultConfig()
	f := NewFallback[string, string]("fb-consider", succeedsAs("primary"),
		map[string]primitive.Primitive[string, string]{
			"a": succeedsAs("a-value"),
		}, []string{"a"}, config, nil)

	current := NewStrategy("fallback_current", "", "", map[string]any{"fallback_order": []string{"a"}})
	assert.Nil(t, f.ConsiderNewStrategy(wfctx.New(), current))
}
