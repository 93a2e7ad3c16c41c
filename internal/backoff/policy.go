package backoff

import (
	"context"
	"math/rand/v2"
	"time"
)

// Policy describes a retry delay schedule. Zero fields take the defaults
// of Default().
type Policy struct {
	Initial    time.Duration
	Max        time.Duration
	Multiplier float64
	Jitter     float64
	Strategy   Strategy

	// Rand returns a float in [0,1); math/rand/v2 when nil.
	Rand func() float64
}

// Default is 100ms doubling up to 10s with 10% jitter.
func Default() Policy {
	return Policy{
		Initial:    100 * time.Millisecond,
		Max:        10 * time.Second,
		Multiplier: 2,
		Jitter:     0.1,
		Strategy:   Exponential{},
	}
}

func (p Policy) withDefaults() Policy {
	d := Default()
	if p.Initial <= 0 {
		p.Initial = d.Initial
	}
	if p.Max <= 0 {
		p.Max = d.Max
	}
	if p.Max < p.Initial {
		p.Max = p.Initial
	}
	if p.Multiplier <= 0 {
		p.Multiplier = d.Multiplier
	}
	if p.Strategy == nil {
		p.Strategy = d.Strategy
	}
	return p
}

func (p Policy) rand() float64 {
	if p.Rand != nil {
		return p.Rand()
	}
	return rand.Float64()
}

// Delay returns the wait before retry number attempt (0-based).
func (p Policy) Delay(attempt int) time.Duration {
	p = p.withDefaults()
	return p.Strategy.Delay(attempt, p)
}

// Wait sleeps for d or until ctx is done, whichever comes first.
func Wait(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return context.Cause(ctx)
	case <-t.C:
		return nil
	}
}
