package primitive

import (
	"context"
	"sync"

	"github.com/wprun/wpr/wfctx"
)

// Sequential threads output into input across nodes in order, aborting
// immediately on the first error with no partial result. It runs every
// child on the same (non-child) context, since a sequential chain is a
// single logical step, not a fan-out of independently traced
// sub-operations.
func Sequential(name string, nodes ...Node) Node {
	return NodeFunc(func(ctx context.Context, wctx *wfctx.Context, input any) (any, error) {
		current := input
		for i, n := range nodes {
			out, err := n.Execute(ctx, wctx, current)
			if err != nil {
				return nil, NewFrameworkError(name+".Execute", "sequential", err)
			}
			_ = i
			current = out
		}
		return current, nil
	})
}

// parallelResult pairs a child's outcome with its construction index so
// results can be reassembled in order regardless of completion order.
type parallelResult struct {
	index int
	value any
	err   error
}

// Parallel fans the same input out to every child, each on an independent
// child WorkflowContext (via wfctx.Child()), and joins on completion. The
// first child error cancels every still-in-flight sibling and is returned;
// results are collected back into a slice ordered by construction index,
// not completion order: a WaitGroup plus a buffered results channel
// drained by a closer goroutine, with per-child cancellation added on
// first failure so one aborted branch doesn't leave its siblings running
// past the point their work still matters.
func Parallel(name string, nodes ...Node) Node {
	return NodeFunc(func(ctx context.Context, wctx *wfctx.Context, input any) (any, error) {
		cctx, cancel := context.WithCancel(ctx)
		defer cancel()

		resultsChan := make(chan parallelResult, len(nodes))
		var wg sync.WaitGroup

		for i, n := range nodes {
			wg.Add(1)
			idx, child := i, n
			childWctx := wctx.Child()
			go func() {
				defer wg.Done()
				out, err := child.Execute(cctx, childWctx, input)
				if err != nil {
					cancel()
				}
				resultsChan <- parallelResult{index: idx, value: out, err: err}
			}()
		}

		go func() {
			wg.Wait()
			close(resultsChan)
		}()

		results := make([]any, len(nodes))
		var firstErr error
		for r := range resultsChan {
			if r.err != nil && firstErr == nil {
				firstErr = r.err
			}
			results[r.index] = r.value
		}

		if firstErr != nil {
			return nil, NewFrameworkError(name+".Execute", "parallel", firstErr)
		}
		return results, nil
	})
}

// Selector picks a route key for a Router given the current input and
// workflow context.
type Selector func(input any, wctx *wfctx.Context) (string, error)

// Router evaluates selector once and delegates to the matching entry in
// routes, falling back to defaultRoute when selector returns a key with no
// match. defaultRoute may be nil, in which case an unmatched key returns
// ErrRoutingKey.
func Router(name string, selector Selector, routes map[string]Node, defaultRoute Node) Node {
	return NodeFunc(func(ctx context.Context, wctx *wfctx.Context, input any) (any, error) {
		key, err := selector(input, wctx)
		if err != nil {
			return nil, NewFrameworkError(name+".Execute", "router", err)
		}

		route, ok := routes[key]
		if !ok {
			if defaultRoute != nil {
				return defaultRoute.Execute(ctx, wctx, input)
			}
			return nil, &FrameworkError{
				Op:      name + ".Execute",
				Kind:    "router",
				Message: "no route for key " + key,
				Err:     ErrRoutingKey,
			}
		}
		return route.Execute(ctx, wctx, input)
	})
}

// Predicate decides which branch a Conditional takes.
type Predicate func(input any, wctx *wfctx.Context) bool

// Conditional evaluates predicate once and executes ifTrue or ifFalse.
func Conditional(name string, predicate Predicate, ifTrue, ifFalse Node) Node {
	return NodeFunc(func(ctx context.Context, wctx *wfctx.Context, input any) (any, error) {
		if predicate(input, wctx) {
			return ifTrue.Execute(ctx, wctx, input)
		}
		return ifFalse.Execute(ctx, wctx, input)
	})
}
