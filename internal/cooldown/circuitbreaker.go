package cooldown

import (
	"fmt"
	"sync"
	"time"
)

// state is the circuit breaker state.
type state int

const (
	stateClosed   state = 0 // normal operation, calls pass through
	stateOpen     state = 1 // tripped, calls rejected immediately
	stateHalfOpen state = 2 // probing, one call allowed through
)

// circuitBreaker guards the Redis-backed cooldown mirror: after
// maxFailures consecutive write failures it stops attempting writes for
// resetTimeout, then allows one probe through.
type circuitBreaker struct {
	mu           sync.Mutex
	state        state
	failures     int
	maxFailures  int
	resetTimeout time.Duration
	lastFailure  time.Time
}

func newCircuitBreaker(maxFailures int, resetTimeout time.Duration) *circuitBreaker {
	return &circuitBreaker{maxFailures: maxFailures, resetTimeout: resetTimeout}
}

var errCircuitOpen = fmt.Errorf("cooldown: redis circuit open")

func (cb *circuitBreaker) execute(fn func() error) error {
	cb.mu.Lock()
	switch cb.state {
	case stateOpen:
		if time.Since(cb.lastFailure) > cb.resetTimeout {
			cb.state = stateHalfOpen
		} else {
			cb.mu.Unlock()
			return errCircuitOpen
		}
	}
	cb.mu.Unlock()

	err := fn()

	cb.mu.Lock()
	defer cb.mu.Unlock()
	if err != nil {
		cb.failures++
		cb.lastFailure = time.Now()
		if cb.state == stateHalfOpen || cb.failures >= cb.maxFailures {
			cb.state = stateOpen
		}
		return err
	}
	cb.state = stateClosed
	cb.failures = 0
	return nil
}
