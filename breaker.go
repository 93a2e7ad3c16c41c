package vortex

import (
	"errors"
	"sync"
	"sync/atomic"
	"time"
)

// ErrCircuitOpen is the cause of requests refused by an open circuit.
var ErrCircuitOpen = errors.New("vortex: circuit breaker is open")

// CircuitState represents the state of the circuit breaker
type CircuitState int32

const (
	StateClosed CircuitState = iota
	StateOpen
	StateHalfOpen
)

func (s CircuitState) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// CircuitBreakerConfig configures the per-endpoint circuit breakers. Zero
// fields default to 5 failures, 60s recovery and 2 trial successes.
type CircuitBreakerConfig struct {
	FailureThreshold int
	RecoveryTimeout  time.Duration
	SuccessThreshold int
}

func (c CircuitBreakerConfig) withDefaults() CircuitBreakerConfig {
	if c.FailureThreshold <= 0 {
		c.FailureThreshold = 5
	}
	if c.RecoveryTimeout <= 0 {
		c.RecoveryTimeout = 60 * time.Second
	}
	if c.SuccessThreshold <= 0 {
		c.SuccessThreshold = 2
	}
	return c
}

// CircuitBreaker trips after consecutive failures and lets trial requests through
// once the recovery timeout has elapsed. All methods are safe on a nil
// receiver, which always allows.
type CircuitBreaker struct {
	config CircuitBreakerConfig
	now    func() time.Time

	state       atomic.Int32
	failures    atomic.Int64
	successes   atomic.Int64
	lastFailure atomic.Int64
}

// NewCircuitBreaker creates a new circuit breaker
func NewCircuitBreaker(config CircuitBreakerConfig) *CircuitBreaker {
	return newCircuitBreaker(config, time.Now)
}

func newCircuitBreaker(config CircuitBreakerConfig, now func() time.Time) *CircuitBreaker {
	return &CircuitBreaker{config: config.withDefaults(), now: now}
}

// State returns the current state.
func (cb *CircuitBreaker) State() CircuitState {
	if cb == nil {
		return StateClosed
	}
	return CircuitState(cb.state.Load())
}

// Allow checks if the request should be allowed through the circuit breaker
func (cb *CircuitBreaker) Allow() bool {
	if cb == nil {
		return true
	}
	switch CircuitState(cb.state.Load()) {
	case StateClosed, StateHalfOpen:
		return true
	case StateOpen:
		elapsed := cb.now().UnixNano() - cb.lastFailure.Load()
		if elapsed >= int64(cb.config.RecoveryTimeout) &&
			cb.state.CompareAndSwap(int32(StateOpen), int32(StateHalfOpen)) {
			cb.successes.Store(0)
			return true
		}
		return false
	default:
		return false
	}
}

// RecordFailure counts a failed exchange.
func (cb *CircuitBreaker) RecordFailure() {
	if cb == nil {
		return
	}
	cb.lastFailure.Store(cb.now().UnixNano())

	switch CircuitState(cb.state.Load()) {
	case StateClosed:
		if cb.failures.Add(1) >= int64(cb.config.FailureThreshold) {
			cb.state.Store(int32(StateOpen))
		}
	case StateHalfOpen:
		// a failed trial reopens immediately
		cb.failures.Add(1)
		cb.successes.Store(0)
		cb.state.Store(int32(StateOpen))
	}
}

// RecordSuccess counts a successful exchange. In the closed state it resets
// the failure streak.
func (cb *CircuitBreaker) RecordSuccess() {
	if cb == nil {
		return
	}
	switch CircuitState(cb.state.Load()) {
	case StateClosed:
		cb.failures.Store(0)
	case StateHalfOpen:
		if cb.successes.Add(1) >= int64(cb.config.SuccessThreshold) {
			cb.state.Store(int32(StateClosed))
			cb.failures.Store(0)
			cb.successes.Store(0)
		}
	}
}

// breakerRegistry holds one breaker per endpoint, created on first use.
type breakerRegistry struct {
	mu       sync.Mutex
	config   CircuitBreakerConfig
	now      func() time.Time
	breakers map[string]*CircuitBreaker
}

func newBreakerRegistry(config CircuitBreakerConfig, now func() time.Time) *breakerRegistry {
	return &breakerRegistry{
		config:   config,
		now:      now,
		breakers: make(map[string]*CircuitBreaker),
	}
}

// get returns the breaker for endpoint, or nil when breakers are disabled.
func (r *breakerRegistry) get(endpoint string) *CircuitBreaker {
	if r == nil {
		return nil
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	cb, ok := r.breakers[endpoint]
	if !ok {
		cb = newCircuitBreaker(r.config, r.now)
		r.breakers[endpoint] = cb
	}
	return cb
}
