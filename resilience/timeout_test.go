package resilience

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/wprun/wpr/primitive"
	"github.com/wprun/wpr/wfctx"
)

func TestTimeoutPassesThroughFastSuccess(t *testing.T) {
	inner := primitive.Lambda[string, string](func(ctx context.Context, wctx *wfctx.Context, input string) (string, error) {
		return input, nil
	})
	to := NewTimeout("test-timeout", 50*time.Millisecond, inner)

	out, err := to.Execute(context.Background(), wfctx.New(), "fast")
	if err != nil {
		t.Fatalf("expected success, got %v", err)
	}
	if out != "fast" {
		t.Fatalf("unexpected output %q", out)
	}
}

func TestTimeoutFiresWithinBound(t *testing.T) {
	inner := primitive.Lambda[string, string](func(ctx context.Context, wctx *wfctx.Context, input string) (string, error) {
		select {
		case <-time.After(200 * time.Millisecond):
			return input, nil
		case <-ctx.Done():
			return "", ctx.Err()
		}
	})
	bound := 20 * time.Millisecond
	to := NewTimeout("test-timeout", bound, inner)

	start := time.Now()
	_, err := to.Execute(context.Background(), wfctx.New(), "slow")
	elapsed := time.Since(start)

	if !errors.Is(err, primitive.ErrTimeout) {
		t.Fatalf("expected ErrTimeout, got %v", err)
	}
	if elapsed > bound+50*time.Millisecond {
		t.Fatalf("timeout fired too late: %v", elapsed)
	}
}

func TestTimeoutCancelsChildContext(t *testing.T) {
	cancelled := make(chan struct{})
	inner := primitive.Lambda[string, string](func(ctx context.Context, wctx *wfctx.Context, input string) (string, error) {
		<-ctx.Done()
		close(cancelled)
		return "", ctx.Err()
	})
	to := NewTimeout("test-timeout", 10*time.Millisecond, inner)

	_, _ = to.Execute(context.Background(), wfctx.New(), "x")

	select {
	case <-cancelled:
	case <-time.After(time.Second):
		t.Fatal("expected child context to be cancelled on timeout")
	}
}
