package resilience

import (
	"context"
	"testing"
	"time"

	"github.com/wprun/wpr/primitive"
	"github.com/wprun/wpr/wfctx"
)

func TestCacheHitAvoidsSecondInvocation(t *testing.T) {
	calls := 0
	inner := primitive.Lambda[string, int](func(ctx context.Context, wctx *wfctx.Context, input string) (int, error) {
		calls++
		return calls, nil
	})
	keyFn := func(input string, wctx *wfctx.Context) string { return input }
	c := NewCache("test-cache", keyFn, time.Minute, 8, inner)

	v1, err := c.Execute(context.Background(), wfctx.New(), "a")
	if err != nil || v1 != 1 {
		t.Fatalf("expected first call to return 1, got %d, err=%v", v1, err)
	}
	v2, err := c.Execute(context.Background(), wfctx.New(), "a")
	if err != nil || v2 != 1 {
		t.Fatalf("expected cache hit to return 1, got %d, err=%v", v2, err)
	}
	v3, err := c.Execute(context.Background(), wfctx.New(), "b")
	if err != nil || v3 != 2 {
		t.Fatalf("expected second key to invoke inner again, got %d, err=%v", v3, err)
	}
	if calls != 2 {
		t.Fatalf("expected exactly 2 child invocations, got %d", calls)
	}
}

func TestCacheExpiresAfterTTL(t *testing.T) {
	calls := 0
	inner := primitive.Lambda[string, int](func(ctx context.Context, wctx *wfctx.Context, input string) (int, error) {
		calls++
		return calls, nil
	})
	keyFn := func(input string, wctx *wfctx.Context) string { return input }
	c := NewCache("test-cache", keyFn, 10*time.Millisecond, 8, inner)

	if _, err := c.Execute(context.Background(), wfctx.New(), "a"); err != nil {
		t.Fatal(err)
	}
	time.Sleep(20 * time.Millisecond)
	v, err := c.Execute(context.Background(), wfctx.New(), "a")
	if err != nil {
		t.Fatal(err)
	}
	if v != 2 {
		t.Fatalf("expected expiry to trigger a fresh call, got %d", v)
	}
}

func TestCacheEvictsLRUBeyondCapacity(t *testing.T) {
	inner := primitive.Lambda[string, string](func(ctx context.Context, wctx *wfctx.Context, input string) (string, error) {
		return input, nil
	})
	keyFn := func(input string, wctx *wfctx.Context) string { return input }
	c := NewCache("test-cache", keyFn, time.Minute, 2, inner)

	ctx := context.Background()
	wctx := wfctx.New()
	c.Execute(ctx, wctx, "a")
	c.Execute(ctx, wctx, "b")
	c.Execute(ctx, wctx, "c") // evicts "a", the least recently used

	if c.Len() != 2 {
		t.Fatalf("expected capacity to be enforced at 2, got %d", c.Len())
	}
}
