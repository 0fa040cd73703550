package service_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/ramaframework/rama/internal/core/service"
)

func echo() service.Service[string, string] {
	return service.Func[string, string](func(_ context.Context, in string) (string, error) {
		return in, nil
	})
}

// appendingLayer appends its name to the input before calling the inner
// service, so a stack's call order is observable in the final string.
func appendingLayer(name string) service.Layer[string, string] {
	return service.LayerFunc[string, string](func(inner service.Service[string, string]) service.Service[string, string] {
		return service.Func[string, string](func(ctx context.Context, in string) (string, error) {
			return inner.Serve(ctx, in+name)
		})
	})
}

func TestStackOrderingOuterFirst(t *testing.T) {
	stack := service.Stack(appendingLayer("A"), appendingLayer("B"), appendingLayer("C"))
	svc := stack.Wrap(echo())

	out, err := svc.Serve(context.Background(), "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// (A, B, C) applied to S == A(B(C(S))): A appends first, so its
	// contribution is the first character, whatever arrives at S should be "ABC".
	if out != "ABC" {
		t.Fatalf("expected ABC (A before B before C), got %q", out)
	}
}

func TestIdentityLayerIsTransparent(t *testing.T) {
	svc := service.Identity[string, string]().Wrap(echo())

	out, err := svc.Serve(context.Background(), "hello")
	if err != nil || out != "hello" {
		t.Fatalf("expected identity passthrough, got %q err=%v", out, err)
	}
}

func TestMapErrRewritesError(t *testing.T) {
	boom := errors.New("boom")
	failing := service.Func[string, string](func(_ context.Context, _ string) (string, error) {
		return "", boom
	})

	wrapped := service.MapErr[string, string](func(err error) error {
		return errors.New("wrapped: " + err.Error())
	}).Wrap(failing)

	_, err := wrapped.Serve(context.Background(), "x")
	if err == nil || err.Error() != "wrapped: boom" {
		t.Fatalf("expected wrapped error, got %v", err)
	}
}

func TestRecoverConsumesError(t *testing.T) {
	boom := errors.New("boom")
	failing := service.Func[string, string](func(_ context.Context, _ string) (string, error) {
		return "", boom
	})

	recovered := service.Recover[string, string](func(err error) string {
		return "recovered: " + err.Error()
	}).Wrap(failing)

	out, err := recovered.Serve(context.Background(), "x")
	if err != nil {
		t.Fatalf("expected no error after recovery, got %v", err)
	}
	if out != "recovered: boom" {
		t.Fatalf("got %q", out)
	}
}

func TestTimeoutExpiresWithFactoryError(t *testing.T) {
	slow := service.Func[string, string](func(ctx context.Context, _ string) (string, error) {
		select {
		case <-time.After(50 * time.Millisecond):
			return "done", nil
		case <-ctx.Done():
			return "", ctx.Err()
		}
	})

	timedOut := errors.New("timed out")
	wrapped := service.Timeout[string, string](5*time.Millisecond, func() error { return timedOut }).Wrap(slow)

	_, err := wrapped.Serve(context.Background(), "x")
	if !errors.Is(err, timedOut) {
		t.Fatalf("expected factory timeout error, got %v", err)
	}
}

func TestBoxErrorPreservesUnwrap(t *testing.T) {
	sentinel := errors.New("sentinel")
	failing := service.Func[string, string](func(_ context.Context, _ string) (string, error) {
		return "", sentinel
	})

	wrapped := service.BoxError[string, string]().Wrap(failing)

	_, err := wrapped.Serve(context.Background(), "x")
	if !errors.Is(err, sentinel) {
		t.Fatalf("expected boxed error to unwrap to sentinel, got %v", err)
	}
}
