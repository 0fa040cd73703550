// Package shutdown implements cooperative graceful shutdown: a root
// cancellation context plus a join set of spawned tasks, so a server can
// stop accepting new work, let in-flight work finish (or time out trying),
// and know exactly when every child task has actually exited.
package shutdown

import (
	"context"
	"errors"
	"time"

	"github.com/sourcegraph/conc"
)

// Shutdown owns a root cancellation token and a join set of tasks spawned
// through its Guards.
type Shutdown struct {
	ctx    context.Context
	cancel context.CancelFunc
	wg     conc.WaitGroup
}

// New returns a Shutdown whose root context is derived from
// context.Background().
func New() *Shutdown {
	ctx, cancel := context.WithCancel(context.Background())
	return &Shutdown{ctx: ctx, cancel: cancel}
}

// Context returns the root cancellation context. A long-running task should
// select on Done() directly if it isn't spawned through a Guard.
func (s *Shutdown) Context() context.Context { return s.ctx }

// Guard hands out a child token: a view onto the root context that a caller
// uses to spawn tasks via Go, each of which is tracked in the join set and
// awaited by Shutdown/ShutdownWithLimit.
func (s *Shutdown) Guard() *Guard {
	return &Guard{shutdown: s}
}

// Guard is a child token issued by Shutdown.Guard. It carries no state of
// its own beyond a reference back to the owning Shutdown — every Guard for
// a given Shutdown shares the same root context and join set.
type Guard struct {
	shutdown *Shutdown
}

// Context returns the child token's context — currently identical to the
// root, since this framework has no per-guard cancellation, only the root's.
func (g *Guard) Context() context.Context { return g.shutdown.ctx }

// Go spawns fn as a tracked child task. fn must observe g.Context().Done()
// and return promptly on cancellation; a panic inside fn is recovered and
// re-raised where the join set is waited on: on the goroutine that calls
// Shutdown, or on the background goroutine ShutdownWithLimit waits with
// (not on ShutdownWithLimit's caller).
func (g *Guard) Go(fn func(ctx context.Context)) {
	ctx := g.shutdown.ctx
	g.shutdown.wg.Go(func() {
		fn(ctx)
	})
}

// ErrShutdownTimeout is returned by ShutdownWithLimit when the deadline
// elapses before every spawned task has exited.
var ErrShutdownTimeout = errors.New("shutdown: deadline exceeded waiting for tasks to exit")

// Shutdown cancels the root context and blocks until every spawned task has
// returned.
func (s *Shutdown) Shutdown() {
	s.cancel()
	s.wg.Wait()
}

// ShutdownWithLimit cancels the root context and waits for either every
// spawned task to exit or d to elapse. On timeout it returns
// ErrShutdownTimeout without aborting any task — they keep running, and a
// subsequent call still waits on (and observes) their eventual exit.
func (s *Shutdown) ShutdownWithLimit(d time.Duration) error {
	s.cancel()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-done:
		return nil
	case <-timer.C:
		return ErrShutdownTimeout
	}
}
