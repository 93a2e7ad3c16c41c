package vortex

import (
	"context"
	"errors"
	"time"

	"github.com/vorthain/vorthain-vortex/internal/backoff"
)

// BackoffConfig configures RetryTransient. Zero fields use 100ms initial
// delay doubling up to 10s with 10% jitter.
type BackoffConfig struct {
	Initial    time.Duration
	Max        time.Duration
	Multiplier float64
	Jitter     float64
	// Decorrelated switches from exponential to decorrelated jitter.
	Decorrelated bool
	// Retryable overrides IsTransient as the retry condition.
	Retryable func(*ClientError) bool
}

func (b BackoffConfig) policy() backoff.Policy {
	p := backoff.Policy{
		Initial:    b.Initial,
		Max:        b.Max,
		Multiplier: b.Multiplier,
		Jitter:     b.Jitter,
	}
	if b.Decorrelated {
		p.Strategy = backoff.Decorrelated{}
	}
	return p
}

// RetryTransient returns an error interceptor that retries transient
// failures after a backoff delay, within the request's MaxRetries budget.
// Other errors are declined and continue unchanged.
func RetryTransient(cfg BackoffConfig) ErrorInterceptor {
	policy := cfg.policy()
	retryable := cfg.Retryable
	if retryable == nil {
		retryable = func(ce *ClientError) bool { return IsTransient(ce) }
	}

	return func(ctx context.Context, ce *ClientError, rc *RequestConfig, retry RetryFunc) (any, error) {
		if !retryable(ce) || rc.Attempt >= rc.MaxRetries {
			return nil, nil
		}
		if err := backoff.Wait(ctx, policy.Delay(rc.Attempt)); err != nil {
			return nil, ce
		}
		value, err := retry(ctx, nil)
		if errors.Is(err, ErrRetryBudgetExceeded) {
			return nil, ce
		}
		return value, err
	}
}
