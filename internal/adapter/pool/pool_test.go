package pool_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ramaframework/rama/internal/adapter/pool"
	"github.com/ramaframework/rama/internal/core/domain"
)

type fakeConn struct{ id int }

func fpByField(in string) string { return in }

func newTestPool(cfg pool.Config, dialCount *int32) *pool.Pool[string, *fakeConn] {
	connector := func(_ context.Context, _ string) (*fakeConn, error) {
		n := atomic.AddInt32(dialCount, 1)
		return &fakeConn{id: int(n)}, nil
	}
	return pool.New(cfg, connector, fpByField, nil)
}

func TestAcquireReleaseReusesIdleEntry(t *testing.T) {
	var dials int32
	p := newTestPool(pool.Config{MaxTotal: 4, MaxActive: 4, WaitForPoolTimeout: time.Second}, &dials)

	lease, err := p.Acquire(context.Background(), "a")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	firstID := lease.Value.id
	lease.Release(true)

	lease2, err := p.Acquire(context.Background(), "a")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if lease2.Value.id != firstID {
		t.Fatalf("expected idle connection reuse, got fresh dial")
	}
	if atomic.LoadInt32(&dials) != 1 {
		t.Fatalf("expected exactly one dial, got %d", dials)
	}
}

func TestDiscardDoesNotReturnToIdle(t *testing.T) {
	var dials int32
	p := newTestPool(pool.Config{MaxTotal: 4, MaxActive: 4, WaitForPoolTimeout: time.Second}, &dials)

	lease, err := p.Acquire(context.Background(), "a")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	lease.Discard()

	if _, err := p.Acquire(context.Background(), "a"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if atomic.LoadInt32(&dials) != 2 {
		t.Fatalf("expected a fresh dial after discard, got %d dials", dials)
	}
}

func TestIdleEntryExpiresByTimeout(t *testing.T) {
	var dials int32
	p := newTestPool(pool.Config{MaxTotal: 4, MaxActive: 4, IdleTimeout: time.Millisecond, WaitForPoolTimeout: time.Second}, &dials)

	lease, _ := p.Acquire(context.Background(), "a")
	lease.Release(true)

	time.Sleep(5 * time.Millisecond)

	if _, err := p.Acquire(context.Background(), "a"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if atomic.LoadInt32(&dials) != 2 {
		t.Fatalf("expected expired idle entry to be discarded and a fresh dial made, got %d dials", dials)
	}
}

func TestMaxActiveBlocksUntilRelease(t *testing.T) {
	var dials int32
	p := newTestPool(pool.Config{MaxTotal: 2, MaxActive: 1, WaitForPoolTimeout: time.Second}, &dials)

	lease, err := p.Acquire(context.Background(), "a")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var wg sync.WaitGroup
	wg.Add(1)
	var secondErr error
	go func() {
		defer wg.Done()
		_, secondErr = p.Acquire(context.Background(), "b")
	}()

	time.Sleep(20 * time.Millisecond) // give the goroutine time to block
	lease.Release(false)
	wg.Wait()

	if secondErr != nil {
		t.Fatalf("expected second acquire to succeed once released, got %v", secondErr)
	}
}

func TestWaitForPoolTimeoutReturnsExhausted(t *testing.T) {
	var dials int32
	p := newTestPool(pool.Config{MaxTotal: 1, MaxActive: 1, WaitForPoolTimeout: 10 * time.Millisecond}, &dials)

	lease, err := p.Acquire(context.Background(), "a")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer lease.Release(false)

	_, err = p.Acquire(context.Background(), "b")
	if err == nil {
		t.Fatalf("expected exhaustion error")
	}
	var coreErr *domain.CoreError
	if !errors.As(err, &coreErr) || coreErr.Kind != domain.KindPoolExhausted {
		t.Fatalf("expected a pool-exhausted CoreError, got %v", err)
	}
}

func TestCircuitBreakerOpensAfterThreshold(t *testing.T) {
	cb := pool.NewCircuitBreaker()
	for i := 0; i < pool.DefaultCircuitBreakerThreshold; i++ {
		cb.RecordFailure("fp")
	}
	if !cb.IsOpen("fp") {
		t.Fatalf("expected circuit to be open after threshold failures")
	}

	cb.RecordSuccess("fp")
	if cb.IsOpen("fp") {
		t.Fatalf("expected circuit to close after a recorded success")
	}
}
