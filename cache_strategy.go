package vortex

import (
	"context"
)

const revalidatePrefix = "revalidate::"

// fetch produces the raw value of one attempt, going through the
// stale-while-revalidate engine when the resolved strategy asks for it.
// The simple strategy lives inside execute.
func (c *Client) fetch(ctx context.Context, cfg *RequestConfig) (any, error) {
	if cfg.Cache.Enabled && cfg.Cache.Strategy == CacheSWR {
		return c.staleWhileRevalidate(ctx, cfg)
	}
	return c.execute(ctx, cfg)
}

// staleWhileRevalidate returns a cached value at once and refreshes it in the
// background. Without a cached value the caller waits for the refresh and
// receives its result or error. Concurrent callers share one refresh.
func (c *Client) staleWhileRevalidate(ctx context.Context, cfg *RequestConfig) (any, error) {
	fullURL, _, err := buildURL(joinURL(cfg.BaseURL, cfg.Path), cfg.PathParams, cfg.Query, cfg)
	if err != nil {
		return nil, err
	}

	pinned := cfg.clone()
	pinned.URL = fullURL
	pinned.cacheKey = CacheKey(cfg.Method, fullURL, cfg.Headers, cfg.Body)

	cache := c.cacheFor(pinned)
	stale, hasStale := c.cacheGet(ctx, cache, pinned.cacheKey, pinned)

	detached := context.WithoutCancel(ctx)
	fingerprint := revalidatePrefix + pinned.cacheKey
	ch := c.registry.Do(fingerprint, func() (any, error) {
		c.metrics.RecordInflight(c.registry.Len())
		return c.revalidate(detached, pinned)
	})

	if hasStale {
		if c.debug.Enabled && c.debug.LogCache {
			c.logger.Debug("serving stale value while revalidating",
				"requestID", cfg.RequestID, "cacheKey", pinned.cacheKey)
		}
		return stale, nil
	}

	select {
	case res := <-ch:
		return res.Val, res.Err
	case <-ctx.Done():
		return nil, classifyContext(ctx, pinned)
	}
}

// revalidate is the body of a background refresh: execute (which stores the
// fresh value), then hand the mapped value to OnRevalidate. Failures are
// logged here and only reach callers that are waiting on the refresh.
func (c *Client) revalidate(ctx context.Context, cfg *RequestConfig) (any, error) {
	value, err := c.execute(ctx, cfg)
	c.metrics.RecordRevalidation(cfg.Endpoint, err)
	if err != nil {
		c.logger.Warn("revalidation failed",
			"requestID", cfg.RequestID, "endpoint", cfg.Endpoint, "cacheKey", cfg.cacheKey, "error", err)
		return nil, err
	}

	if cfg.OnRevalidate != nil {
		mapped := applyResponseMappers(value, cfg, c.logger)
		safely(c.logger, "onRevalidate", func() error {
			cfg.OnRevalidate(mapped, cfg)
			return nil
		}, "requestID", cfg.RequestID)
	}
	return value, nil
}
