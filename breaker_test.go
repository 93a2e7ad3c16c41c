package vortex

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestCircuitBreakerDefaults(t *testing.T) {
	cb := NewCircuitBreaker(CircuitBreakerConfig{})
	if cb.config.FailureThreshold != 5 || cb.config.RecoveryTimeout != 60*time.Second || cb.config.SuccessThreshold != 2 {
		t.Errorf("Unexpected defaults %+v", cb.config)
	}
	if cb.State() != StateClosed || !cb.Allow() {
		t.Error("Expected a new breaker to be closed")
	}
}

func TestCircuitBreakerLifecycle(t *testing.T) {
	clock := newFakeClock()
	cb := newCircuitBreaker(CircuitBreakerConfig{
		FailureThreshold: 3,
		RecoveryTimeout:  time.Second,
		SuccessThreshold: 2,
	}, clock.Now)

	cb.RecordFailure()
	cb.RecordFailure()
	cb.RecordSuccess()
	cb.RecordFailure()
	cb.RecordFailure()
	if cb.State() != StateClosed {
		t.Fatal("Expected a success to reset the failure streak")
	}

	cb.RecordFailure()
	if cb.State() != StateOpen {
		t.Fatalf("Expected open after 3 consecutive failures, got %s", cb.State())
	}
	if cb.Allow() {
		t.Error("Expected an open breaker to refuse")
	}

	clock.Advance(time.Second)
	if !cb.Allow() || cb.State() != StateHalfOpen {
		t.Fatalf("Expected a trial request after the recovery timeout, got %s", cb.State())
	}
	cb.RecordFailure()
	if cb.State() != StateOpen {
		t.Fatal("Expected a failed trial to reopen")
	}

	clock.Advance(time.Second)
	cb.Allow()
	cb.RecordSuccess()
	if cb.State() != StateHalfOpen {
		t.Fatal("Expected to stay half-open until enough trials succeed")
	}
	cb.RecordSuccess()
	if cb.State() != StateClosed {
		t.Errorf("Expected closed after 2 successful trials, got %s", cb.State())
	}
}

func TestCircuitBreakerNilSafe(t *testing.T) {
	var cb *CircuitBreaker
	if !cb.Allow() || cb.State() != StateClosed {
		t.Error("Expected a nil breaker to allow")
	}
	cb.RecordFailure()
	cb.RecordSuccess()

	var registry *breakerRegistry
	if registry.get("users") != nil {
		t.Error("Expected no breaker from a nil registry")
	}
}

func TestCircuitBreakerConcurrentTrial(t *testing.T) {
	clock := newFakeClock()
	cb := newCircuitBreaker(CircuitBreakerConfig{FailureThreshold: 1, RecoveryTimeout: time.Second}, clock.Now)
	cb.RecordFailure()
	clock.Advance(time.Second)

	var (
		wg      sync.WaitGroup
		allowed atomic.Int32
	)
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if cb.Allow() {
				allowed.Add(1)
			}
		}()
	}
	wg.Wait()

	if allowed.Load() == 0 || cb.State() != StateHalfOpen {
		t.Errorf("Expected the breaker to half-open, got %s with %d allowed", cb.State(), allowed.Load())
	}
}

func TestCircuitStateString(t *testing.T) {
	tests := map[CircuitState]string{
		StateClosed:     "closed",
		StateOpen:       "open",
		StateHalfOpen:   "half-open",
		CircuitState(9): "unknown",
	}
	for state, want := range tests {
		if state.String() != want {
			t.Errorf("Expected %q, got %q", want, state.String())
		}
	}
}

func TestClientCircuitBreaker(t *testing.T) {
	var (
		hits    atomic.Int32
		healthy atomic.Bool
	)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		if !healthy.Load() {
			writeJSON(w, http.StatusServiceUnavailable, `{"message":"down"}`)
			return
		}
		writeJSON(w, http.StatusOK, `{"ok":true}`)
	}))
	defer server.Close()

	clock := newFakeClock()
	client := newTestClient(t, usersConfig(server.URL),
		WithClock(clock.Now),
		WithCircuitBreaker(CircuitBreakerConfig{
			FailureThreshold: 2,
			RecoveryTimeout:  10 * time.Second,
			SuccessThreshold: 1,
		}))
	users := endpoint(t, client, "users")
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		_, err := users.Get().Send(ctx)
		mustClientError(t, err, ErrorTypeHTTP)
	}
	if client.CircuitState("users") != StateOpen {
		t.Fatalf("Expected the users circuit to open, got %s", client.CircuitState("users"))
	}
	if client.CircuitState("user") != StateClosed {
		t.Error("Expected other endpoints to keep their own circuit")
	}

	_, err := users.Get().Send(ctx)
	ce := mustClientError(t, err, ErrorTypeNetwork)
	if !errors.Is(ce, ErrCircuitOpen) || ce.Metadata["circuitState"] != "open" {
		t.Errorf("Expected ErrCircuitOpen, got %v (%v)", ce, ce.Metadata)
	}
	if hits.Load() != 2 {
		t.Errorf("Expected the open circuit to short-circuit dispatch, got %d calls", hits.Load())
	}

	healthy.Store(true)
	clock.Advance(10 * time.Second)
	if _, err := users.Get().Send(ctx); err != nil {
		t.Fatalf("Expected the trial request to succeed, got %v", err)
	}
	if client.CircuitState("users") != StateClosed {
		t.Errorf("Expected the circuit to close, got %s", client.CircuitState("users"))
	}
}

func TestClientWithoutCircuitBreaker(t *testing.T) {
	client := newTestClient(t, usersConfig("http://example.invalid"))
	if client.CircuitState("users") != StateClosed {
		t.Error("Expected closed when circuit breaking is disabled")
	}
}
