// Package service defines the one runtime abstraction the whole framework is
// built from: a Service has a single asynchronous operation,
// Serve(ctx, in) (out, error). Every extension point — tracing, retry, timeout,
// rate limiting, TLS, routing, proxying — is a Layer: a value that wraps one
// Service into another.
//
// A fully generic composition over layers of arbitrary, independently-typed
// input/output pairs would need variadic generics Go doesn't have, so this
// package gives two building blocks instead:
//
//   - Layer[In, Out] for the common case where every layer in a stack shares the
//     same input/output types (true of almost every cross-cutting concern:
//     tracing, timeout, retry, rate limiting, logging all wrap Service[In, Out]
//     into another Service[In, Out]). Stack folds a slice of these outer-first,
//     matching the (L1, L2, …, Ln)(S) = L1(L2(…Ln(S)…)) contract exactly.
//   - Direct nested calls (Wrap(A, Wrap(B, Wrap(C, S)))) for the rarer
//     type-changing case (e.g. a body-decoding layer turning Service[Request,
//     RawBody] into Service[Request, DecodedBody]) — written by hand at the
//     one call site that needs it instead of generated for every arity.
package service

import "context"

// Service is the single runtime abstraction: one async operation.
type Service[In, Out any] interface {
	Serve(ctx context.Context, in In) (Out, error)
}

// Func adapts a plain function to the Service interface.
type Func[In, Out any] func(ctx context.Context, in In) (Out, error)

func (f Func[In, Out]) Serve(ctx context.Context, in In) (Out, error) {
	return f(ctx, in)
}

// Layer wraps an inner Service into a new outer Service of the same shape. A
// Layer must not depend on the inner service's concrete type beyond its
// declared In/Out.
type Layer[In, Out any] interface {
	Wrap(inner Service[In, Out]) Service[In, Out]
}

// LayerFunc adapts a plain function to the Layer interface.
type LayerFunc[In, Out any] func(inner Service[In, Out]) Service[In, Out]

func (f LayerFunc[In, Out]) Wrap(inner Service[In, Out]) Service[In, Out] {
	return f(inner)
}

// Identity is the identity layer: Identity.Wrap(s) is observationally identical
// to s.
type identityLayer[In, Out any] struct{}

func Identity[In, Out any]() Layer[In, Out] {
	return identityLayer[In, Out]{}
}

func (identityLayer[In, Out]) Wrap(inner Service[In, Out]) Service[In, Out] {
	return inner
}

// Stack composes layers outer-first: Stack(A, B, C).Wrap(S) == A.Wrap(B.Wrap(C.Wrap(S))).
// This ordering is a hard contract; TestStackOrderingOuterFirst verifies it
// with a layer that records its name.
func Stack[In, Out any](layers ...Layer[In, Out]) Layer[In, Out] {
	return LayerFunc[In, Out](func(inner Service[In, Out]) Service[In, Out] {
		svc := inner
		for i := len(layers) - 1; i >= 0; i-- {
			svc = layers[i].Wrap(svc)
		}
		return svc
	})
}
