package backoff

import (
	"context"
	"errors"
	"testing"
	"time"
)

func fixedRand(v float64) func() float64 {
	return func() float64 { return v }
}

func TestExponentialDelay(t *testing.T) {
	p := Policy{
		Initial:    100 * time.Millisecond,
		Max:        5 * time.Second,
		Multiplier: 2,
		Strategy:   Exponential{},
	}

	tests := []struct {
		name     string
		attempt  int
		expected time.Duration
	}{
		{"attempt 0", 0, 100 * time.Millisecond},
		{"attempt 1", 1, 200 * time.Millisecond},
		{"attempt 2", 2, 400 * time.Millisecond},
		{"negative attempt", -3, 100 * time.Millisecond},
		{"capped at max", 10, 5 * time.Second},
		{"huge attempt", 1000, 5 * time.Second},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := p.Delay(tt.attempt); got != tt.expected {
				t.Errorf("Delay(%d) = %v, want %v", tt.attempt, got, tt.expected)
			}
		})
	}
}

func TestExponentialJitter(t *testing.T) {
	p := Policy{
		Initial:    100 * time.Millisecond,
		Max:        time.Second,
		Multiplier: 2,
		Jitter:     0.5,
		Rand:       fixedRand(1),
	}

	// 200ms + 50% of 200ms
	if got := p.Delay(1); got != 300*time.Millisecond {
		t.Errorf("Delay(1) = %v, want 300ms", got)
	}

	// 800ms + 400ms jitter exceeds Max
	if got := p.Delay(3); got != time.Second {
		t.Errorf("Delay(3) = %v, want 1s", got)
	}
}

func TestDecorrelatedDelay(t *testing.T) {
	tests := []struct {
		name     string
		attempt  int
		rand     float64
		expected time.Duration
	}{
		{"attempt 0 is initial", 0, 0.9, 100 * time.Millisecond},
		{"lower bound", 1, 0, 100 * time.Millisecond},
		{"upper bound attempt 1", 1, 1, 300 * time.Millisecond},
		{"upper bound attempt 2", 2, 1, 900 * time.Millisecond},
		{"capped at max", 8, 1, 2 * time.Second},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := Policy{
				Initial:  100 * time.Millisecond,
				Max:      2 * time.Second,
				Strategy: Decorrelated{},
				Rand:     fixedRand(tt.rand),
			}
			if got := p.Delay(tt.attempt); got != tt.expected {
				t.Errorf("Delay(%d) = %v, want %v", tt.attempt, got, tt.expected)
			}
		})
	}
}

func TestPolicyDefaults(t *testing.T) {
	var p Policy

	if got := p.Delay(0); got != 100*time.Millisecond {
		t.Errorf("zero policy Delay(0) = %v, want 100ms", got)
	}
	if got := p.Delay(20); got != 10*time.Second {
		t.Errorf("zero policy Delay(20) = %v, want 10s", got)
	}
}

func TestClampJitter(t *testing.T) {
	tests := []struct {
		in, want float64
	}{
		{-1, 0},
		{0, 0},
		{0.3, 0.3},
		{1, 1},
		{2, 1},
	}
	for _, tt := range tests {
		if got := clampJitter(tt.in); got != tt.want {
			t.Errorf("clampJitter(%v) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestWait(t *testing.T) {
	if err := Wait(context.Background(), time.Millisecond); err != nil {
		t.Fatalf("Wait() error = %v", err)
	}

	cause := errors.New("stopped")
	ctx, cancel := context.WithCancelCause(context.Background())
	cancel(cause)
	if err := Wait(ctx, time.Hour); !errors.Is(err, cause) {
		t.Fatalf("Wait() on canceled context = %v, want %v", err, cause)
	}
}
