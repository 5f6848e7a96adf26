package primitive

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wprun/wpr/wfctx"
)

func TestObservePassesThroughSuccess(t *testing.T) {
	inner := Lambda[int, int](func(ctx context.Context, wctx *wfctx.Context, input int) (int, error) {
		return input * 10, nil
	})

	observed := Observe[int, int]("double", inner)
	out, err := observed.Execute(context.Background(), wfctx.New(), 4)
	require.NoError(t, err)
	assert.Equal(t, 40, out)
}

func TestObservePropagatesError(t *testing.T) {
	boom := errors.New("boom")
	inner := Lambda[int, int](func(ctx context.Context, wctx *wfctx.Context, input int) (int, error) {
		return 0, boom
	})

	observed := Observe[int, int]("failing", inner)
	_, err := observed.Execute(context.Background(), wfctx.New(), 1)
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
}

func TestObserveNodePassesThroughSuccess(t *testing.T) {
	inner := NodeFunc(func(ctx context.Context, wctx *wfctx.Context, input any) (any, error) {
		return input, nil
	})

	observed := ObserveNode("identity", inner)
	out, err := observed.Execute(context.Background(), wfctx.New(), "value")
	require.NoError(t, err)
	assert.Equal(t, "value", out)
}

func TestObserveNodePropagatesError(t *testing.T) {
	boom := errors.New("boom")
	inner := NodeFunc(func(ctx context.Context, wctx *wfctx.Context, input any) (any, error) {
		return nil, boom
	})

	observed := ObserveNode("failing", inner)
	_, err := observed.Execute(context.Background(), wfctx.New(), nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
}
