// SPDX-FileCopyrightText: Copyright 2025 Prism Search Authors
// SPDX-License-Identifier: Apache-2.0

// Package breaker implements the per-backend circuit breaker that isolates
// the orchestrator from failing backends.
package breaker

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/prismsearch/prism/pkg/logger"
	"github.com/prismsearch/prism/pkg/search"
)

// State represents the state of a circuit breaker.
type State string

const (
	// StateClosed indicates normal operation - requests pass through.
	StateClosed State = "closed"
	// StateOpen indicates failing state - requests fail immediately.
	StateOpen State = "open"
	// StateHalfOpen indicates recovery testing - requests pass through while
	// successes are counted toward closing.
	StateHalfOpen State = "half_open"
)

// Defaults applied by New when the config leaves fields zero.
const (
	DefaultFailureThreshold = 5
	DefaultSuccessThreshold = 3
	DefaultRecoveryTimeout  = 60 * time.Second
)

// Config tunes a circuit breaker.
type Config struct {
	// FailureThreshold is the consecutive-failure count that opens the
	// breaker from closed.
	FailureThreshold int

	// SuccessThreshold is the success count that closes the breaker from
	// half-open.
	SuccessThreshold int

	// RecoveryTimeout is how long an open breaker waits after the last
	// failure before admitting traffic again (half-open).
	RecoveryTimeout time.Duration
}

// DefaultConfig returns the documented breaker defaults.
func DefaultConfig() Config {
	return Config{
		FailureThreshold: DefaultFailureThreshold,
		SuccessThreshold: DefaultSuccessThreshold,
		RecoveryTimeout:  DefaultRecoveryTimeout,
	}
}

// CircuitBreaker manages failure isolation for a single backend.
//
// Closed: successes decrement the failure count toward zero, failures
// increment it; reaching the failure threshold opens the breaker.
// Open: calls fail fast; once the recovery timeout has elapsed since the
// last failure, the next IsOpen or CanAttempt observation moves to half-open.
// HalfOpen: calls pass through; reaching the success threshold closes the
// breaker with zeroed counters, any failure reopens it.
type CircuitBreaker struct {
	mu sync.Mutex

	// name identifies the wrapped backend in logs and snapshots.
	name string

	state            State
	failureCount     int
	successCount     int
	failureThreshold int
	successThreshold int
	recoveryTimeout  time.Duration

	lastStateChange time.Time
	lastFailureTime time.Time
}

// New creates a circuit breaker for the named backend. Zero config fields
// fall back to the defaults.
func New(name string, cfg Config) *CircuitBreaker {
	if cfg.FailureThreshold <= 0 {
		cfg.FailureThreshold = DefaultFailureThreshold
	}
	if cfg.SuccessThreshold <= 0 {
		cfg.SuccessThreshold = DefaultSuccessThreshold
	}
	if cfg.RecoveryTimeout <= 0 {
		cfg.RecoveryTimeout = DefaultRecoveryTimeout
	}
	return &CircuitBreaker{
		name:             name,
		state:            StateClosed,
		failureThreshold: cfg.FailureThreshold,
		successThreshold: cfg.SuccessThreshold,
		recoveryTimeout:  cfg.RecoveryTimeout,
		lastStateChange:  time.Now(),
	}
}

// Call wraps exactly one backend operation. When the breaker is open it
// returns search.ErrCircuitOpen without invoking op; otherwise the outcome
// of op is recorded as a success or failure.
func (cb *CircuitBreaker) Call(ctx context.Context, op func(context.Context) error) error {
	if !cb.CanAttempt() {
		return fmt.Errorf("%s: %w", cb.name, search.ErrCircuitOpen)
	}

	if err := op(ctx); err != nil {
		cb.RecordFailure()
		return err
	}

	cb.RecordSuccess()
	return nil
}

// RecordSuccess records a successful operation.
func (cb *CircuitBreaker) RecordSuccess() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	switch cb.state {
	case StateClosed:
		if cb.failureCount > 0 {
			cb.failureCount--
		}

	case StateHalfOpen:
		cb.successCount++
		if cb.successCount >= cb.successThreshold {
			cb.state = StateClosed
			cb.failureCount = 0
			cb.successCount = 0
			cb.lastStateChange = time.Now()
			logger.Infof("Circuit breaker for backend %s CLOSED (recovery successful)", cb.name)
		}

	case StateOpen:
		// A call that raced the opening transition; the open state decides
		// recovery, not stray successes.
	}
}

// RecordFailure records a failed operation.
func (cb *CircuitBreaker) RecordFailure() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.lastFailureTime = time.Now()

	switch cb.state {
	case StateClosed:
		cb.failureCount++
		if cb.failureCount >= cb.failureThreshold {
			cb.state = StateOpen
			cb.lastStateChange = time.Now()
			logger.Warnf("Circuit breaker for backend %s OPENED after %d consecutive failures", cb.name, cb.failureCount)
		}

	case StateHalfOpen:
		cb.state = StateOpen
		cb.successCount = 0
		cb.lastStateChange = time.Now()
		logger.Warnf("Circuit breaker for backend %s returned to OPEN from half-open (recovery failed)", cb.name)

	case StateOpen:
		// Already open; the failure timestamp above restarts the recovery window.
	}
}

// CanAttempt checks if an operation should be allowed based on circuit state.
// Returns true if the operation can proceed, false if it should be rejected.
func (cb *CircuitBreaker) CanAttempt() bool {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.observeLocked()
	return cb.state != StateOpen
}

// IsOpen reports whether the breaker currently rejects calls. Observing an
// open breaker whose recovery timeout has elapsed moves it to half-open.
func (cb *CircuitBreaker) IsOpen() bool {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.observeLocked()
	return cb.state == StateOpen
}

// observeLocked applies the time-based open-to-half-open transition. The
// caller must hold mu.
func (cb *CircuitBreaker) observeLocked() {
	if cb.state == StateOpen && time.Since(cb.lastFailureTime) >= cb.recoveryTimeout {
		cb.state = StateHalfOpen
		cb.successCount = 0
		cb.lastStateChange = time.Now()
		logger.Infof("Circuit breaker for backend %s HALF_OPEN (recovery window elapsed)", cb.name)
	}
}

// GetState returns the current state without applying time-based transitions.
func (cb *CircuitBreaker) GetState() State {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.state
}

// GetFailureCount returns the current failure count.
func (cb *CircuitBreaker) GetFailureCount() int {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.failureCount
}

// GetLastStateChange returns when the state last changed.
func (cb *CircuitBreaker) GetLastStateChange() time.Time {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.lastStateChange
}

// Snapshot is an immutable view of breaker state for health and stats output.
type Snapshot struct {
	Name            string    `json:"name"`
	State           State     `json:"state"`
	FailureCount    int       `json:"failure_count"`
	SuccessCount    int       `json:"success_count"`
	LastStateChange time.Time `json:"last_state_change"`
	LastFailureTime time.Time `json:"last_failure_time"`
}

// GetSnapshot returns a read-only snapshot of the circuit breaker state.
// It never triggers the open-to-half-open transition.
func (cb *CircuitBreaker) GetSnapshot() Snapshot {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	return Snapshot{
		Name:            cb.name,
		State:           cb.state,
		FailureCount:    cb.failureCount,
		SuccessCount:    cb.successCount,
		LastStateChange: cb.lastStateChange,
		LastFailureTime: cb.lastFailureTime,
	}
}
