package rpc

import (
	"errors"
	"sync"
	"time"
)

const (
	defaultFailureThreshold = 3
	defaultCooldown         = 30 * time.Second
)

// ErrBreakerOpen is returned by read-path calls while the breaker is open.
var ErrBreakerOpen = errors.New("payy node marked unavailable, retrying shortly")

type breakerState int

const (
	stateClosed breakerState = iota
	stateOpen
	stateHalfOpen
)

// Breaker is a circuit breaker for read endpoints: after `threshold`
// consecutive transport failures it opens, rejecting calls until a cooldown
// has passed; then one probe call is allowed through (half-open) and its
// outcome decides whether the breaker closes or re-opens. It is a latency
// optimization only and never gates the transfer pipeline.
type Breaker struct {
	mu        sync.Mutex
	state     breakerState
	failures  int
	threshold int
	cooldown  time.Duration
	openedAt  time.Time
	now       func() time.Time
}

func NewBreaker(threshold int, cooldown time.Duration) *Breaker {
	return &Breaker{
		threshold: threshold,
		cooldown:  cooldown,
		now:       time.Now,
	}
}

// Allow reports whether a call may proceed. While open, exactly one caller
// per elapsed cooldown is let through as a probe.
func (b *Breaker) Allow() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case stateClosed:
		return true
	case stateHalfOpen:
		// A probe is already in flight.
		return false
	default:
		if b.now().Sub(b.openedAt) >= b.cooldown {
			b.state = stateHalfOpen
			return true
		}
		return false
	}
}

// Success records a reachable node and closes the breaker.
func (b *Breaker) Success() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.state = stateClosed
	b.failures = 0
}

// Failure records a transport failure; enough of them in a row open the
// breaker.
func (b *Breaker) Failure() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.state == stateHalfOpen {
		b.state = stateOpen
		b.openedAt = b.now()
		return
	}

	b.failures++
	if b.failures >= b.threshold {
		b.state = stateOpen
		b.openedAt = b.now()
	}
}
