package primitive

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wprun/wpr/wfctx"
)

func constNode(v any) Node {
	return NodeFunc(func(ctx context.Context, wctx *wfctx.Context, input any) (any, error) {
		return v, nil
	})
}

func errNode(err error) Node {
	return NodeFunc(func(ctx context.Context, wctx *wfctx.Context, input any) (any, error) {
		return nil, err
	})
}

func TestSequentialThreadsOutputToInput(t *testing.T) {
	addOne := NodeFunc(func(ctx context.Context, wctx *wfctx.Context, input any) (any, error) {
		return input.(int) + 1, nil
	})
	timesTwo := NodeFunc(func(ctx context.Context, wctx *wfctx.Context, input any) (any, error) {
		return input.(int) * 2, nil
	})

	seq := Sequential("add-then-double", addOne, timesTwo)
	out, err := seq.Execute(context.Background(), wfctx.New(), 1)
	require.NoError(t, err)
	assert.Equal(t, 4, out)
}

func TestSequentialAbortsOnFirstError(t *testing.T) {
	boom := errors.New("boom")
	var ran int32

	first := errNode(boom)
	second := NodeFunc(func(ctx context.Context, wctx *wfctx.Context, input any) (any, error) {
		atomic.AddInt32(&ran, 1)
		return input, nil
	})

	seq := Sequential("fail-fast", first, second)
	_, err := seq.Execute(context.Background(), wfctx.New(), 0)
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, int32(0), ran)
}

func TestParallelCollectsResultsInOrder(t *testing.T) {
	nodes := []Node{constNode(1), constNode(2), constNode(3)}
	par := Parallel("fan-out", nodes...)

	out, err := par.Execute(context.Background(), wfctx.New(), nil)
	require.NoError(t, err)
	assert.Equal(t, []any{1, 2, 3}, out)
}

func TestParallelFailsFastAndCancelsSiblings(t *testing.T) {
	boom := errors.New("boom")
	var sawCancel int32

	slow := NodeFunc(func(ctx context.Context, wctx *wfctx.Context, input any) (any, error) {
		<-ctx.Done()
		atomic.AddInt32(&sawCancel, 1)
		return nil, ctx.Err()
	})
	failing := errNode(boom)

	par := Parallel("fan-out", slow, failing)
	_, err := par.Execute(context.Background(), wfctx.New(), nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, int32(1), sawCancel)
}

func TestParallelGivesEachChildAnIndependentContext(t *testing.T) {
	var captured []string
	capture := func(slot *string) Node {
		return NodeFunc(func(ctx context.Context, wctx *wfctx.Context, input any) (any, error) {
			*slot = wctx.CorrelationID
			return nil, nil
		})
	}
	var a, b string
	parent := wfctx.New()
	par := Parallel("fan-out", capture(&a), capture(&b))
	_, err := par.Execute(context.Background(), parent, nil)
	require.NoError(t, err)
	captured = []string{a, b}
	for _, c := range captured {
		assert.Equal(t, parent.CorrelationID, c, "children inherit correlation id")
	}
}

func TestRouterDelegatesToMatchingRoute(t *testing.T) {
	routes := map[string]Node{
		"a": constNode("route-a"),
		"b": constNode("route-b"),
	}
	selector := func(input any, wctx *wfctx.Context) (string, error) {
		return input.(string), nil
	}

	router := Router("router", selector, routes, nil)
	out, err := router.Execute(context.Background(), wfctx.New(), "b")
	require.NoError(t, err)
	assert.Equal(t, "route-b", out)
}

func TestRouterFallsBackToDefault(t *testing.T) {
	routes := map[string]Node{"a": constNode("route-a")}
	selector := func(input any, wctx *wfctx.Context) (string, error) {
		return "missing", nil
	}

	router := Router("router", selector, routes, constNode("default"))
	out, err := router.Execute(context.Background(), wfctx.New(), nil)
	require.NoError(t, err)
	assert.Equal(t, "default", out)
}

func TestRouterErrorsOnUnmatchedKeyWithNoDefault(t *testing.T) {
	routes := map[string]Node{"a": constNode("route-a")}
	selector := func(input any, wctx *wfctx.Context) (string, error) {
		return "missing", nil
	}

	router := Router("router", selector, routes, nil)
	_, err := router.Execute(context.Background(), wfctx.New(), nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrRoutingKey)
}

func TestConditionalBranches(t *testing.T) {
	isEven := func(input any, wctx *wfctx.Context) bool {
		return input.(int)%2 == 0
	}
	cond := Conditional("even-check", isEven, constNode("even"), constNode("odd"))

	out, err := cond.Execute(context.Background(), wfctx.New(), 4)
	require.NoError(t, err)
	assert.Equal(t, "even", out)

	out, err = cond.Execute(context.Background(), wfctx.New(), 3)
	require.NoError(t, err)
	assert.Equal(t, "odd", out)
}
