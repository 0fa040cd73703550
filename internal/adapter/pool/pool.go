// Package pool implements the fingerprint-keyed connection pool:
// reusable connections are cached per fingerprint with global total/active
// caps, idle eviction, and FIFO-fair acquisition back-pressure.
//
// Idle entries expire lazily: reconciliation happens on demand the next time
// a fingerprint is checked for a live idle entry, not on a periodic
// background sweep.
package pool

import (
	"container/list"
	"context"
	"sync"
	"time"

	"github.com/ramaframework/rama/internal/core/domain"
)

// State is a pool entry's lifecycle tag.
type State int

const (
	Idle State = iota
	Leased
	Discarded
)

type entry[T any] struct {
	value       T
	fingerprint string
	createdAt   time.Time
	lastUsedAt  time.Time
	state       State
	elem        *list.Element // position in the global idle LRU list, nil unless Idle
}

// Connector produces a fresh connection value for a given input. It is the
// inner service a pooled connector wraps.
type Connector[In, T any] func(ctx context.Context, in In) (T, error)

// FingerprintFunc derives a pool key from a request input. The built-in HTTP
// fingerprint is `(Protocol, Authority)`; callers compose that themselves and
// pass the resulting string in.
type FingerprintFunc[In any] func(in In) string

// Config bounds pool admission and idle retention.
type Config struct {
	MaxTotal         int           // Σ(leased+idle) across all fingerprints
	MaxActive        int           // Σ leased across all fingerprints
	IdleTimeout      time.Duration // 0 disables idle eviction by age
	WaitForPoolTimeout time.Duration
}

// Pool is a fingerprint-keyed cache of reusable connections of type T.
type Pool[In, T any] struct {
	mu sync.Mutex

	cfg       Config
	connector Connector[In, T]
	fpFunc    FingerprintFunc[In]
	breaker   *CircuitBreaker // nil disables circuit breaking

	idleByFP map[string][]*entry[T]
	idleLRU  *list.List // global idle list, front = least recently used

	leasedCount map[string]int
	totalActive int

	waiters *list.List // FIFO queue of chan struct{}, one per blocked Acquire
}

// New constructs a Pool. breaker may be nil to disable circuit breaking.
func New[In, T any](cfg Config, connector Connector[In, T], fpFunc FingerprintFunc[In], breaker *CircuitBreaker) *Pool[In, T] {
	return &Pool[In, T]{
		cfg:         cfg,
		connector:   connector,
		fpFunc:      fpFunc,
		breaker:     breaker,
		idleByFP:    make(map[string][]*entry[T]),
		idleLRU:     list.New(),
		leasedCount: make(map[string]int),
		waiters:     list.New(),
	}
}

// Lease is a borrowed connection. Callers must call Release or Discard
// exactly once.
type Lease[T any] struct {
	Value T

	pool  *poolOps
	entry interface{}
}

// poolOps is a tiny capture of the operations Lease needs back from its
// owning Pool, erased of its generic parameters so Lease[T] doesn't need to
// carry In as a phantom type parameter.
type poolOps struct {
	release func(fp string, lastUsedAt time.Time, reusable bool)
	fp      string
}

func (l *Lease[T]) Fingerprint() string { return l.pool.fp }

// Release returns the lease to the pool. reusable classifies whether the
// connection may be handed out again: HTTP/1 connections are reusable only
// after a keep-alive exchange with no framing error; HTTP/2 connections are
// reusable until GOAWAY or a transport error.
func (l *Lease[T]) Release(reusable bool) {
	l.pool.release(l.pool.fp, time.Now(), reusable)
}

// Discard is equivalent to Release(false); named separately for callers that
// never ask the reusability question (e.g. a connect attempt that failed
// mid-handshake).
func (l *Lease[T]) Discard() {
	l.pool.release(l.pool.fp, time.Now(), false)
}

// Acquire leases a connection for in, reusing an idle one if available,
// dialing a fresh one if there's room, or waiting for a permit up to
// cfg.WaitForPoolTimeout.
func (p *Pool[In, T]) Acquire(ctx context.Context, in In) (*Lease[T], error) {
	fp := p.fpFunc(in)

	if p.breaker != nil && p.breaker.IsOpen(fp) {
		return nil, domain.NewCoreError(domain.KindTransport, "pool.acquire", errCircuitOpen)
	}

	p.mu.Lock()
	for {
		if e := p.popIdleLocked(fp); e != nil {
			p.leasedCount[fp]++
			p.totalActive++
			p.mu.Unlock()
			return p.lease(fp, e.value), nil
		}

		if p.totalAllLocked() >= p.cfg.MaxTotal {
			p.evictOneIdleLocked()
		}

		if p.totalActive < p.cfg.MaxActive && p.totalAllLocked() < p.cfg.MaxTotal {
			p.totalActive++
			p.leasedCount[fp]++
			p.mu.Unlock()

			v, err := p.connector(ctx, in)
			if err != nil {
				p.mu.Lock()
				p.totalActive--
				p.leasedCount[fp]--
				p.mu.Unlock()
				if p.breaker != nil {
					p.breaker.RecordFailure(fp)
				}
				return nil, err
			}
			return p.lease(fp, v), nil
		}

		waitCh := make(chan struct{}, 1)
		elem := p.waiters.PushBack(waitCh)
		p.mu.Unlock()

		deadline := time.NewTimer(p.cfg.WaitForPoolTimeout)
		select {
		case <-waitCh:
			deadline.Stop()
			p.mu.Lock()
			continue
		case <-deadline.C:
			p.mu.Lock()
			p.waiters.Remove(elem)
			p.mu.Unlock()
			return nil, domain.NewCoreError(domain.KindPoolExhausted, "pool.acquire",
				&domain.PoolExhaustedError{Fingerprint: fp, Waited: p.cfg.WaitForPoolTimeout})
		case <-ctx.Done():
			deadline.Stop()
			p.mu.Lock()
			p.waiters.Remove(elem)
			p.mu.Unlock()
			return nil, domain.NewCoreError(domain.KindCancelled, "pool.acquire", ctx.Err())
		}
	}
}

func (p *Pool[In, T]) lease(fp string, v T) *Lease[T] {
	return &Lease[T]{
		Value: v,
		pool: &poolOps{
			fp: fp,
			release: func(fp string, lastUsedAt time.Time, reusable bool) {
				p.release(fp, v, lastUsedAt, reusable)
			},
		},
	}
}

func (p *Pool[In, T]) release(fp string, v T, lastUsedAt time.Time, reusable bool) {
	p.mu.Lock()
	p.totalActive--
	p.leasedCount[fp]--

	if reusable {
		e := &entry[T]{value: v, fingerprint: fp, lastUsedAt: lastUsedAt, state: Idle}
		e.elem = p.idleLRU.PushBack(e)
		p.idleByFP[fp] = append(p.idleByFP[fp], e)
		if p.breaker != nil {
			p.breaker.RecordSuccess(fp)
		}
	}
	p.wakeOneWaiterLocked()
	p.mu.Unlock()
}

// popIdleLocked returns (and removes) the most-recently-used non-expired
// idle entry for fp, discarding any expired entries it encounters along the
// way, rather than via a periodic background sweep.
func (p *Pool[In, T]) popIdleLocked(fp string) *entry[T] {
	list := p.idleByFP[fp]
	for len(list) > 0 {
		e := list[len(list)-1]
		list = list[:len(list)-1]
		p.idleByFP[fp] = list
		p.idleLRU.Remove(e.elem)

		if p.cfg.IdleTimeout > 0 && time.Since(e.lastUsedAt) > p.cfg.IdleTimeout {
			continue // expired: drop it and keep looking
		}
		return e
	}
	return nil
}

func (p *Pool[In, T]) evictOneIdleLocked() bool {
	front := p.idleLRU.Front()
	if front == nil {
		return false
	}
	e := front.Value.(*entry[T])
	p.idleLRU.Remove(front)
	byFP := p.idleByFP[e.fingerprint]
	for i, other := range byFP {
		if other == e {
			p.idleByFP[e.fingerprint] = append(byFP[:i], byFP[i+1:]...)
			break
		}
	}
	return true
}

func (p *Pool[In, T]) wakeOneWaiterLocked() {
	front := p.waiters.Front()
	if front == nil {
		return
	}
	p.waiters.Remove(front)
	ch := front.Value.(chan struct{})
	close(ch)
}

func (p *Pool[In, T]) totalAllLocked() int {
	return p.totalActive + p.idleLRU.Len()
}

// Stats reports the pool's current occupancy, for diagnostics/metrics.
type Stats struct {
	TotalActive int
	TotalIdle   int
}

func (p *Pool[In, T]) Stats() Stats {
	p.mu.Lock()
	defer p.mu.Unlock()
	return Stats{TotalActive: p.totalActive, TotalIdle: p.idleLRU.Len()}
}
