// Package primitive defines the composable execution unit of the runtime
// (Primitive[I,O]), the observability mixin every primitive is wrapped in,
// and the untyped composition nodes (Sequential, Parallel, Router,
// Conditional) used to assemble a workflow graph.
package primitive

import (
	"context"

	"github.com/wprun/wpr/wfctx"
)

// Primitive is a single composable, typed unit of work: execute(input, ctx)
// -> output. Inputs and outputs are opaque to the runtime; only concrete
// primitives know their shape.
type Primitive[I, O any] interface {
	Execute(ctx context.Context, wctx *wfctx.Context, input I) (O, error)
}

// Lambda adapts a plain function into a Primitive, a functional-adapter
// style used throughout this module's composition nodes.
type Lambda[I, O any] func(ctx context.Context, wctx *wfctx.Context, input I) (O, error)

// Execute calls the wrapped function.
func (f Lambda[I, O]) Execute(ctx context.Context, wctx *wfctx.Context, input I) (O, error) {
	return f(ctx, wctx, input)
}

// Then sequences two differently-typed primitives. Go has no operator
// overloading and methods cannot introduce new type parameters, so this is
// a free function rather than a method on Primitive[I,O].
func Then[I, O, V any](first Primitive[I, O], second Primitive[O, V]) Primitive[I, V] {
	return Lambda[I, V](func(ctx context.Context, wctx *wfctx.Context, input I) (V, error) {
		var zero V
		out, err := first.Execute(ctx, wctx, input)
		if err != nil {
			return zero, err
		}
		return second.Execute(ctx, wctx, out)
	})
}

// Node is the untyped counterpart to Primitive, used by the n-ary
// composition primitives (Sequential, Parallel, Router, Conditional) whose
// children's intermediate types are not known until construction time.
// Where static typing can't carry an arbitrary-length heterogeneous chain,
// accept an opaque payload and validate at the leaves.
type Node interface {
	Execute(ctx context.Context, wctx *wfctx.Context, input any) (any, error)
}

// NodeFunc adapts a plain function into a Node.
type NodeFunc func(ctx context.Context, wctx *wfctx.Context, input any) (any, error)

// Execute calls the wrapped function.
func (f NodeFunc) Execute(ctx context.Context, wctx *wfctx.Context, input any) (any, error) {
	return f(ctx, wctx, input)
}

// AsNode lifts a typed Primitive into the untyped Node interface by
// asserting the input type at the boundary and returning ErrValidation if
// it doesn't match - the only place in the runtime a type mismatch
// surfaces as a runtime error rather than a compile error.
func AsNode[I, O any](name string, p Primitive[I, O]) Node {
	return NodeFunc(func(ctx context.Context, wctx *wfctx.Context, input any) (any, error) {
		typed, ok := input.(I)
		if !ok {
			return nil, &FrameworkError{
				Op:      name + ".Execute",
				Kind:    "validation",
				Message: "input type mismatch",
				Err:     ErrValidation,
			}
		}
		return p.Execute(ctx, wctx, typed)
	})
}
