package vortex

import (
	"context"
	"errors"
	"sync/atomic"
)

// logicalRequest is the state shared by every attempt of one Send call.
type logicalRequest struct {
	client  *Client
	retries atomic.Int32
}

// attempt runs one full attempt: fetch, mappers, error interception and
// lifecycle callbacks. OnFinally always runs last.
func (r *logicalRequest) attempt(ctx context.Context, cfg *RequestConfig) (any, error) {
	c := r.client
	c.callback("onStart", cfg, func() {
		if cfg.OnStart != nil {
			cfg.OnStart(cfg)
		}
	})
	defer c.callback("onFinally", cfg, func() {
		if cfg.OnFinally != nil {
			cfg.OnFinally(cfg)
		}
	})

	value, err := c.fetch(ctx, cfg)
	if err == nil {
		value = applyResponseMappers(value, cfg, c.logger)
		c.callback("onSuccess", cfg, func() {
			if cfg.OnSuccess != nil {
				cfg.OnSuccess(value, cfg)
			}
		})
		return value, nil
	}

	ce := Classify(err, cfg)
	if cfg.ErrorInterceptor != nil {
		recovered, next := r.intercept(ctx, ce, cfg)
		if next == nil {
			return recovered, nil
		}
		ce = next
	}

	if !ce.finalized {
		ce = applyErrorMappers(ce, cfg, c.logger)
		ce.finalized = true
		c.callback("onError", cfg, func() {
			if cfg.OnError != nil {
				cfg.OnError(ce, cfg)
			}
		})
	}
	return nil, ce
}

// intercept hands ce to the error interceptor. It returns the recovered value
// with a nil error, or the error that continues down the failure path. A nil
// value counts as recovery when a retry made through this interceptor
// succeeded; otherwise it is a decline.
func (r *logicalRequest) intercept(ctx context.Context, ce *ClientError, cfg *RequestConfig) (any, *ClientError) {
	var (
		recovered any
		retried   atomic.Bool
	)
	err := recoverError(func() error {
		v, ierr := cfg.ErrorInterceptor(ctx, ce, cfg, r.retryFunc(cfg, &retried))
		recovered = v
		return ierr
	})

	var pe *panicError
	switch {
	case errors.As(err, &pe):
		return nil, NewError(ErrorTypeConfig, "Error interceptor failed: "+pe.Error(), err, cfg)
	case errors.Is(err, ErrRetryBudgetExceeded):
		return nil, ce
	case err != nil:
		return nil, Classify(err, cfg)
	case recovered != nil, retried.Load():
		return recovered, nil
	default:
		return nil, ce
	}
}

// retryFunc builds the bounded retry callback for an attempt. The counter
// is shared by all attempts of the logical request; succeeded is set when
// the nested attempt returns without error.
func (r *logicalRequest) retryFunc(cfg *RequestConfig, succeeded *atomic.Bool) RetryFunc {
	c := r.client
	return func(ctx context.Context, overrides *Settings) (any, error) {
		var n int32
		for {
			n = r.retries.Load()
			if int(n) >= cfg.MaxRetries {
				c.metrics.RecordRetryBudgetExceeded(cfg.Endpoint)
				if c.debug.Enabled && c.debug.LogRetries {
					c.logger.Warn("retry budget exceeded",
						"requestID", cfg.RequestID, "endpoint", cfg.Endpoint, "maxRetries", cfg.MaxRetries)
				}
				return nil, ErrRetryBudgetExceeded
			}
			if r.retries.CompareAndSwap(n, n+1) {
				break
			}
		}

		next := cfg.WithOverrides(overrides)
		next.Attempt = int(n) + 1
		next.IsRetry = true

		c.metrics.RecordRetry(next.Method, next.Endpoint, next.Attempt)
		if c.debug.Enabled && c.debug.LogRetries {
			c.logger.Info("retry attempt",
				"requestID", next.RequestID, "attempt", next.Attempt, "maxRetries", next.MaxRetries, "endpoint", next.Endpoint)
		}
		value, err := r.attempt(ctx, next)
		if err == nil {
			succeeded.Store(true)
		}
		return value, err
	}
}
