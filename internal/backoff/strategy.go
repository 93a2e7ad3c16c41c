// Package backoff computes retry delays.
package backoff

import "time"

// Strategy computes the delay before retry number attempt (0-based).
type Strategy interface {
	Delay(attempt int, p Policy) time.Duration
}

// Exponential grows the delay by Multiplier per attempt and adds up to
// Jitter×delay of uniform noise.
type Exponential struct{}

// Delay implements Strategy.
func (Exponential) Delay(attempt int, p Policy) time.Duration {
	if attempt < 0 {
		attempt = 0
	}
	// Keep the float math finite.
	if attempt > 30 {
		attempt = 30
	}

	d := time.Duration(float64(p.Initial) * pow(p.Multiplier, attempt))
	if d < 0 || d > p.Max {
		d = p.Max
	}

	if j := clampJitter(p.Jitter); j > 0 {
		extra := time.Duration(float64(d) * j * p.rand())
		if d+extra > p.Max {
			return p.Max
		}
		d += extra
	}
	return d
}

// Decorrelated draws the delay uniformly from [Initial, min(Max, Initial·3^attempt)].
type Decorrelated struct{}

// Delay implements Strategy.
func (Decorrelated) Delay(attempt int, p Policy) time.Duration {
	if attempt <= 0 {
		return p.Initial
	}
	if attempt > 10 {
		attempt = 10
	}

	base := float64(p.Initial)
	upper := base * pow(3, attempt)
	if limit := float64(p.Max); upper > limit || upper < 0 {
		upper = limit
	}
	if upper < base {
		upper = base
	}

	d := time.Duration(base + p.rand()*(upper-base))
	if d < 0 || d > p.Max {
		d = p.Max
	}
	return d
}

func clampJitter(j float64) float64 {
	switch {
	case j < 0:
		return 0
	case j > 1:
		return 1
	}
	return j
}

func pow(base float64, exp int) float64 {
	result := 1.0
	for i := 0; i < exp; i++ {
		result *= base
	}
	return result
}
