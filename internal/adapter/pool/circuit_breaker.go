package pool

import (
	"errors"
	"time"

	"github.com/puzpuzpuz/xsync/v4"
	"go.uber.org/atomic"
)

var errCircuitOpen = errors.New("pool: circuit breaker open for fingerprint")

// CircuitBreaker tracks failure rates per fingerprint and short-circuits
// Acquire for fingerprints whose upstream is currently unhealthy. Generalised
// from a single endpoint-URL key to an arbitrary fingerprint key so it fits
// any pooled connection type, not just HTTP upstreams.
type CircuitBreaker struct {
	states           *xsync.Map[string, *circuitState]
	failureThreshold int64
	cooldown         time.Duration
}

type circuitState struct {
	failures    atomic.Int64
	lastFailure atomic.Int64 // UnixNano
	lastAttempt atomic.Int64 // UnixNano, 0 means no half-open probe in flight
	isOpen      atomic.Bool
}

const (
	DefaultCircuitBreakerThreshold = 5
	DefaultCircuitBreakerCooldown  = 30 * time.Second
)

// NewCircuitBreaker constructs a breaker with sane production defaults.
func NewCircuitBreaker() *CircuitBreaker {
	return &CircuitBreaker{
		states:           xsync.NewMap[string, *circuitState](),
		failureThreshold: DefaultCircuitBreakerThreshold,
		cooldown:         DefaultCircuitBreakerCooldown,
	}
}

// IsOpen reports whether fingerprint is currently tripped. After cooldown
// elapses, a single caller is let through as a half-open probe; other
// callers see the circuit as open until that probe resolves or one second
// has passed since it started, after which every caller is let through.
func (cb *CircuitBreaker) IsOpen(fingerprint string) bool {
	state, ok := cb.states.Load(fingerprint)
	if !ok || !state.isOpen.Load() {
		return false
	}

	if time.Unix(0, state.lastFailure.Load()).Add(cb.cooldown).After(time.Now()) {
		return true
	}

	if state.lastAttempt.CompareAndSwap(0, time.Now().UnixNano()) {
		return false // this caller is the probe
	}

	// A probe is already in flight; give it a second to resolve before
	// letting another one through.
	return time.Unix(0, state.lastAttempt.Load()).Add(time.Second).After(time.Now())
}

// RecordSuccess clears a fingerprint's failure count and closes its circuit.
func (cb *CircuitBreaker) RecordSuccess(fingerprint string) {
	state, ok := cb.states.Load(fingerprint)
	if !ok {
		return
	}
	state.failures.Store(0)
	state.isOpen.Store(false)
	state.lastAttempt.Store(0)
}

// RecordFailure increments a fingerprint's failure count, tripping the
// circuit once the threshold is reached.
func (cb *CircuitBreaker) RecordFailure(fingerprint string) {
	state, _ := cb.states.LoadOrStore(fingerprint, &circuitState{})
	failures := state.failures.Add(1)
	state.lastFailure.Store(time.Now().UnixNano())
	state.lastAttempt.Store(0)
	if failures >= cb.failureThreshold {
		state.isOpen.Store(true)
	}
}

// Forget drops all state for fingerprint, e.g. once its pool entry set is
// fully drained and discarded.
func (cb *CircuitBreaker) Forget(fingerprint string) {
	cb.states.Delete(fingerprint)
}
