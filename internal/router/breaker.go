package router

import (
	"sync"
	"time"
)

// breakerState is the circuit state for one provider
type breakerState int

const (
	breakerClosed breakerState = iota
	breakerOpen
	breakerHalfOpen
)

// Breaker is a sliding-window circuit breaker. It opens after too many
// failures inside the window, rejects calls for the cooldown, then admits
// a single probe; the probe's result closes or re-opens the circuit.
type Breaker struct {
	mu        sync.Mutex
	failures  []time.Time
	state     breakerState
	openedAt  time.Time
	threshold int
	window    time.Duration
	cooldown  time.Duration

	now func() time.Time
}

// NewBreaker creates a circuit breaker. threshold failures within window
// open the circuit for cooldown.
func NewBreaker(threshold int, window, cooldown time.Duration) *Breaker {
	return &Breaker{
		threshold: threshold,
		window:    window,
		cooldown:  cooldown,
		now:       time.Now,
	}
}

// Allow reports whether a call may proceed. In half-open state exactly one
// probe is admitted; further callers are rejected until it resolves.
func (b *Breaker) Allow() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case breakerClosed:
		return true
	case breakerOpen:
		if b.now().Sub(b.openedAt) >= b.cooldown {
			b.state = breakerHalfOpen
			return true
		}
		return false
	case breakerHalfOpen:
		// Probe already in flight
		return false
	}
	return true
}

// Success records a successful call and closes the circuit
func (b *Breaker) Success() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.state = breakerClosed
	b.failures = b.failures[:0]
}

// Failure records a failed call. A failed half-open probe re-opens the
// circuit immediately.
func (b *Breaker) Failure() {
	b.mu.Lock()
	defer b.mu.Unlock()

	now := b.now()
	if b.state == breakerHalfOpen {
		b.state = breakerOpen
		b.openedAt = now
		return
	}

	b.failures = append(b.failures, now)
	b.pruneLocked(now)
	if len(b.failures) >= b.threshold {
		b.state = breakerOpen
		b.openedAt = now
		b.failures = b.failures[:0]
	}
}

// pruneLocked drops failures that fell out of the sliding window
func (b *Breaker) pruneLocked(now time.Time) {
	cutoff := now.Add(-b.window)
	kept := b.failures[:0]
	for _, ts := range b.failures {
		if ts.After(cutoff) {
			kept = append(kept, ts)
		}
	}
	b.failures = kept
}

// State returns the current circuit state name, for health reporting
func (b *Breaker) State() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	switch b.state {
	case breakerOpen:
		return "open"
	case breakerHalfOpen:
		return "half_open"
	default:
		return "closed"
	}
}
