package service

import (
	"context"
	"errors"
	"time"

	"github.com/ramaframework/rama/internal/core/domain"
)

// MapErr rewrites the inner service's error, leaving Out and successful
// results untouched. The inner error is always passed through the mapping
// function, never swallowed.
func MapErr[In, Out any](mapFn func(error) error) Layer[In, Out] {
	return LayerFunc[In, Out](func(inner Service[In, Out]) Service[In, Out] {
		return Func[In, Out](func(ctx context.Context, in In) (Out, error) {
			out, err := inner.Serve(ctx, in)
			if err != nil {
				err = mapFn(err)
			}
			return out, err
		})
	})
}

// BoxError normalises any error returned by the inner service into a generic
// error value into a single boxed type, preserving Unwrap so
// errors.As/errors.Is still work against the original cause.
func BoxError[In, Out any]() Layer[In, Out] {
	return MapErr[In, Out](func(err error) error {
		if err == nil {
			return nil
		}
		return &boxedError{cause: err}
	})
}

type boxedError struct{ cause error }

func (b *boxedError) Error() string { return b.cause.Error() }
func (b *boxedError) Unwrap() error { return b.cause }

// Recover turns any error from the inner service into a well-formed Out value
// via recoverFn, consuming the error entirely so it never reaches the caller.
// A gRPC-style status-from-error layer is exactly this specialised to one Out
// type.
func Recover[In, Out any](recoverFn func(error) Out) Layer[In, Out] {
	return LayerFunc[In, Out](func(inner Service[In, Out]) Service[In, Out] {
		return Func[In, Out](func(ctx context.Context, in In) (Out, error) {
			out, err := inner.Serve(ctx, in)
			if err != nil {
				return recoverFn(err), nil
			}
			return out, nil
		})
	})
}

// Timeout races the inner service against a timer.
// On expiry it returns errFactory's value rather than a baked-in policy, so
// callers can return a cloned static error or build a fresh one.
func Timeout[In, Out any](d time.Duration, errFactory func() error) Layer[In, Out] {
	return LayerFunc[In, Out](func(inner Service[In, Out]) Service[In, Out] {
		return Func[In, Out](func(ctx context.Context, in In) (Out, error) {
			ctx, cancel := context.WithTimeout(ctx, d)
			defer cancel()

			type result struct {
				out Out
				err error
			}
			done := make(chan result, 1)

			go func() {
				out, err := inner.Serve(ctx, in)
				done <- result{out, err}
			}()

			select {
			case r := <-done:
				return r.out, r.err
			case <-ctx.Done():
				var zero Out
				if errors.Is(ctx.Err(), context.DeadlineExceeded) {
					return zero, errFactory()
				}
				return zero, &domain.CoreError{Kind: domain.KindCancelled, Op: "timeout", Err: ctx.Err()}
			}
		})
	})
}
