package resilience

import (
	"context"
	"errors"
	"testing"

	"github.com/wprun/wpr/primitive"
	"github.com/wprun/wpr/wfctx"
)

func failingPrimitive(err error) primitive.Primitive[string, string] {
	return primitive.Lambda[string, string](func(ctx context.Context, wctx *wfctx.Context, input string) (string, error) {
		return "", err
	})
}

func succeedingPrimitive(value string) primitive.Primitive[string, string] {
	return primitive.Lambda[string, string](func(ctx context.Context, wctx *wfctx.Context, input string) (string, error) {
		return value, nil
	})
}

func TestFallbackUsesPrimaryOnSuccess(t *testing.T) {
	fb := NewFallback("test-fallback", succeedingPrimitive("primary-value"), []FallbackEntry[string, string]{
		{Name: "a", Node: succeedingPrimitive("a-value")},
	})

	out, err := fb.Execute(context.Background(), wfctx.New(), "in")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out != "primary-value" {
		t.Fatalf("expected primary's value, got %q", out)
	}
}

func TestFallbackFallsThroughToFirstSuccess(t *testing.T) {
	boom := errors.New("primary down")
	fb := NewFallback("test-fallback", failingPrimitive(boom), []FallbackEntry[string, string]{
		{Name: "first", Node: succeedingPrimitive("first-value")},
		{Name: "second", Node: succeedingPrimitive("second-value")},
	})

	out, err := fb.Execute(context.Background(), wfctx.New(), "in")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out != "first-value" {
		t.Fatalf("expected first fallback's value, got %q", out)
	}
}

func TestFallbackReturnsLastErrorWhenAllFail(t *testing.T) {
	errA := errors.New("primary down")
	errB := errors.New("fallback a down")
	errC := errors.New("fallback b down")
	fb := NewFallback("test-fallback", failingPrimitive(errA), []FallbackEntry[string, string]{
		{Name: "a", Node: failingPrimitive(errB)},
		{Name: "b", Node: failingPrimitive(errC)},
	})

	_, err := fb.Execute(context.Background(), wfctx.New(), "in")
	if !errors.Is(err, errC) {
		t.Fatalf("expected last error (%v) in chain, got %v", errC, err)
	}
}
