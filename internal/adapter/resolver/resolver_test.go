package resolver_test

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ramaframework/rama/internal/adapter/resolver"
	"github.com/ramaframework/rama/internal/core/extensions"
)

func TestFromContextUsesOverrideWhenPresent(t *testing.T) {
	ext := extensions.New()
	override := resolver.Func(func(_ context.Context, host string, _ resolver.RecordKind) ([]string, error) {
		return []string{"203.0.113.9"}, nil
	})
	extensions.Insert(ext, resolver.Override{Resolver: override})

	def := resolver.Func(func(_ context.Context, host string, _ resolver.RecordKind) ([]string, error) {
		return []string{"should-not-be-used"}, nil
	})

	got := resolver.FromContext(ext, def)
	values, err := got.Resolve(context.Background(), "example.com", resolver.A)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(values) != 1 || values[0] != "203.0.113.9" {
		t.Fatalf("expected override resolver to win, got %v", values)
	}
}

func TestFromContextFallsBackWhenAbsent(t *testing.T) {
	ext := extensions.New()
	def := resolver.Func(func(_ context.Context, host string, _ resolver.RecordKind) ([]string, error) {
		return []string{"198.51.100.1"}, nil
	})

	got := resolver.FromContext(ext, def)
	values, _ := got.Resolve(context.Background(), "example.com", resolver.A)
	if len(values) != 1 || values[0] != "198.51.100.1" {
		t.Fatalf("expected fallback resolver, got %v", values)
	}
}

func TestCachedServesFromCacheUntilExpiry(t *testing.T) {
	var calls int32
	inner := resolver.Func(func(_ context.Context, _ string, _ resolver.RecordKind) ([]string, error) {
		atomic.AddInt32(&calls, 1)
		return []string{"10.0.0.1"}, nil
	})

	cached := resolver.Cached(inner, 20*time.Millisecond)

	for i := 0; i < 3; i++ {
		if _, err := cached.Resolve(context.Background(), "example.com", resolver.A); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if atomic.LoadInt32(&calls) != 1 {
		t.Fatalf("expected cache hit to avoid repeat lookups, got %d calls", calls)
	}

	time.Sleep(30 * time.Millisecond)
	if _, err := cached.Resolve(context.Background(), "example.com", resolver.A); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if atomic.LoadInt32(&calls) != 2 {
		t.Fatalf("expected expired entry to trigger a fresh lookup, got %d calls", calls)
	}
}

func TestDedupedCollapsesConcurrentLookups(t *testing.T) {
	var calls int32
	started := make(chan struct{})
	release := make(chan struct{})

	inner := resolver.Func(func(_ context.Context, _ string, _ resolver.RecordKind) ([]string, error) {
		atomic.AddInt32(&calls, 1)
		close(started)
		<-release
		return []string{"10.0.0.2"}, nil
	})

	deduped := resolver.Deduped(inner)

	results := make(chan []string, 2)
	go func() {
		v, _ := deduped.Resolve(context.Background(), "example.com", resolver.A)
		results <- v
	}()
	<-started
	go func() {
		v, _ := deduped.Resolve(context.Background(), "example.com", resolver.A)
		results <- v
	}()

	time.Sleep(10 * time.Millisecond)
	close(release)

	for i := 0; i < 2; i++ {
		<-results
	}
	if atomic.LoadInt32(&calls) != 1 {
		t.Fatalf("expected both lookups to share one inner call, got %d", calls)
	}
}

func TestExponentialBackoffCapsAtMax(t *testing.T) {
	d := resolver.ExponentialBackoff(10, 10*time.Millisecond, 100*time.Millisecond, 0)
	if d != 100*time.Millisecond {
		t.Fatalf("expected backoff capped at max, got %v", d)
	}

	zero := resolver.ExponentialBackoff(0, 10*time.Millisecond, 100*time.Millisecond, 0)
	if zero != 0 {
		t.Fatalf("expected zero delay for non-positive attempt, got %v", zero)
	}
}
