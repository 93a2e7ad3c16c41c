package vortex

import (
	"context"
	"fmt"
	"net/http"
	"strings"
)

// execute runs one attempt against the transport: request interceptor, URL
// build, simple cache lookup, transport selection, body encoding, timeout,
// dispatch, response interceptor, status validation, parsing and cache
// store, in that order. Every failure is a *ClientError.
func (c *Client) execute(ctx context.Context, cfg *RequestConfig) (any, error) {
	cfg, err := c.interceptRequest(ctx, cfg)
	if err != nil {
		return nil, err
	}

	fullURL, unused, err := buildURL(joinURL(cfg.BaseURL, cfg.Path), cfg.PathParams, cfg.Query, cfg)
	if err != nil {
		return nil, err
	}
	if len(unused) > 0 {
		c.logger.Warn("path parameters not used by the path template",
			"requestID", cfg.RequestID, "endpoint", cfg.Endpoint, "path", cfg.Path, "unused", unused)
	}
	cfg.URL = fullURL

	var (
		cache    Cache
		cacheKey string
	)
	if cfg.Cache.Enabled {
		cache = c.cacheFor(cfg)
		cacheKey = cfg.cacheKey
		if cacheKey == "" {
			cacheKey = CacheKey(cfg.Method, fullURL, cfg.Headers, cfg.Body)
		}
		if cfg.Cache.Strategy != CacheSWR {
			if v, ok := c.cacheGet(ctx, cache, cacheKey, cfg); ok {
				return v, nil
			}
		}
	}

	transport, streaming := selectTransport(cfg, c.transport, c.streaming)
	if cfg.WantsProgress() && !streaming {
		c.logger.Info("progress callbacks requested but no streaming transport is configured",
			"requestID", cfg.RequestID, "endpoint", cfg.Endpoint)
	}

	header := make(http.Header, len(cfg.Headers)+1)
	for k, v := range cfg.Headers {
		header.Set(k, v)
	}
	if header.Get("Content-Type") == "" {
		if ct := detectContentType(cfg.Body); ct != "" {
			header.Set("Content-Type", ct)
		}
	}
	body, err := encodeBody(cfg.Body, cfg)
	if err != nil {
		return nil, err
	}
	if body != nil && body.contentType != "" && header.Get("Content-Type") == "" {
		header.Set("Content-Type", body.contentType)
	}

	if cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeoutCause(ctx, cfg.Timeout, ErrTimeout)
		defer cancel()
	}

	if limiter := c.limiters.get(cfg.Endpoint); limiter != nil {
		if err := limiter.Wait(ctx); err != nil {
			if ctx.Err() != nil {
				return nil, classifyContext(ctx, cfg)
			}
			return nil, NewError(ErrorTypeNetwork, "Rate limiter refused request: "+err.Error(), err, cfg)
		}
	}

	if ctx.Err() != nil {
		return nil, classifyContext(ctx, cfg)
	}

	breaker := c.breakers.get(cfg.Endpoint)
	if !breaker.Allow() {
		ce := NewError(ErrorTypeNetwork, "Circuit breaker is open for endpoint "+cfg.Endpoint, ErrCircuitOpen, cfg)
		ce.Metadata["circuitState"] = breaker.State().String()
		return nil, ce
	}

	req, err := http.NewRequestWithContext(ctx, cfg.Method, fullURL, nil)
	if err != nil {
		return nil, NewError(ErrorTypeValidation, "Invalid request URL: "+fullURL, err, cfg)
	}
	req.Header = header
	if body != nil {
		req.Body = readCloser(body.reader)
		req.ContentLength = body.size
		if body.size == 0 {
			req.Body = http.NoBody
		}
	}
	injectHeaders(ctx, c.propagator, req.Header)

	if c.debug.Enabled && c.debug.LogRequests {
		c.logger.Debug("dispatching request",
			"requestID", cfg.RequestID, "method", cfg.Method, "url", fullURL,
			"attempt", cfg.Attempt, "streaming", streaming)
	}

	resp, err := transport.Do(req, TransportOptions{
		Redirect:           cfg.Redirect,
		OnUploadProgress:   c.progressFunc(cfg.OnUploadProgress, "onUploadProgress", cfg),
		OnDownloadProgress: c.progressFunc(cfg.OnDownloadProgress, "onDownloadProgress", cfg),
	})
	if err != nil {
		if ctx.Err() == nil {
			c.recordBreaker(breaker, false, cfg)
		}
		return nil, c.transportError(ctx, err, cfg)
	}
	c.recordBreaker(breaker, resp.StatusCode < 500, cfg)

	response, err := readResponse(resp, fullURL)
	if err != nil {
		return nil, c.transportError(ctx, err, cfg)
	}

	response, err = c.interceptResponse(ctx, response, cfg)
	if err != nil {
		return nil, err
	}

	if !cfg.ValidateStatus(response.StatusCode) {
		return nil, httpError(response, cfg)
	}

	value, err := parseBody(response, cfg)
	if err != nil {
		return nil, err
	}

	if cache != nil && value != nil {
		c.cacheStore(ctx, cache, cacheKey, value, response, cfg)
	}
	return value, nil
}

// interceptRequest runs the request interceptor and returns the attempt
// configuration. The result is always a private copy.
func (c *Client) interceptRequest(ctx context.Context, cfg *RequestConfig) (*RequestConfig, error) {
	next := cfg.clone()
	if cfg.RequestInterceptor == nil {
		return next, nil
	}

	view := &RequestView{
		URL:          joinURL(cfg.BaseURL, cfg.Path),
		Method:       cfg.Method,
		Headers:      copyStrings(cfg.Headers),
		Body:         cfg.Body,
		Timeout:      cfg.Timeout,
		ResponseType: cfg.ResponseType,
		PathParams:   copyParams(cfg.PathParams),
		Query:        copyParams(cfg.Query),
	}

	var out *RequestView
	err := recoverError(func() error {
		var ierr error
		out, ierr = cfg.RequestInterceptor(ctx, view)
		return ierr
	})
	if err != nil {
		return nil, NewError(ErrorTypeConfig, "Request interceptor failed: "+err.Error(), err, cfg)
	}
	if out == nil {
		return nil, NewError(ErrorTypeConfig, "Request interceptor must return a config object", nil, cfg)
	}

	if out.URL != view.URL {
		next.BaseURL, next.Path = "", out.URL
	}
	if out.Method != "" {
		next.Method = strings.ToUpper(out.Method)
	}
	next.Headers = map[string]string{}
	mergeHeaders(next.Headers, out.Headers)
	next.Body = out.Body
	if out.Timeout != 0 {
		next.Timeout = out.Timeout
	}
	if out.ResponseType != "" {
		next.ResponseType = out.ResponseType
	}
	next.PathParams = copyParams(out.PathParams)
	next.Query = copyParams(out.Query)
	return next, nil
}

func (c *Client) interceptResponse(ctx context.Context, resp *Response, cfg *RequestConfig) (*Response, error) {
	if cfg.ResponseInterceptor == nil {
		return resp, nil
	}
	var out *Response
	err := recoverError(func() error {
		var ierr error
		out, ierr = cfg.ResponseInterceptor(ctx, resp)
		return ierr
	})
	if err != nil {
		return nil, NewError(ErrorTypeConfig, "Response interceptor failed: "+err.Error(), err, cfg)
	}
	if out == nil {
		return resp, nil
	}
	return out, nil
}

// transportError classifies a dispatch failure. A finished context wins so
// that cancellation and timeout keep their reason.
func (c *Client) transportError(ctx context.Context, err error, cfg *RequestConfig) *ClientError {
	if ctx.Err() != nil {
		return classifyContext(ctx, cfg)
	}
	return Classify(err, cfg)
}

func (c *Client) recordBreaker(cb *CircuitBreaker, ok bool, cfg *RequestConfig) {
	if cb == nil {
		return
	}
	if ok {
		cb.RecordSuccess()
	} else {
		cb.RecordFailure()
	}
	c.metrics.RecordCircuitState(cfg.Endpoint, cb.State())
}

func (c *Client) progressFunc(fn ProgressFunc, stage string, cfg *RequestConfig) ProgressFunc {
	if fn == nil {
		return nil
	}
	return func(p Progress) {
		safely(c.logger, stage, func() error {
			fn(p)
			return nil
		}, "requestID", cfg.RequestID)
	}
}

// cacheGet reads through cache, treating read errors as a miss.
func (c *Client) cacheGet(ctx context.Context, cache Cache, key string, cfg *RequestConfig) (any, bool) {
	var (
		value any
		found bool
	)
	safely(c.logger, "cacheGet", func() error {
		v, ok, err := cache.Get(ctx, key)
		if err != nil {
			return err
		}
		value, found = v, ok && v != nil
		return nil
	}, "requestID", cfg.RequestID, "cacheKey", key)

	if found {
		c.metrics.RecordCacheHit(cfg.Method, cfg.Endpoint, cfg.Cache.Strategy)
	} else {
		c.metrics.RecordCacheMiss(cfg.Method, cfg.Endpoint, cfg.Cache.Strategy)
	}
	if c.debug.Enabled && c.debug.LogCache {
		c.logger.Debug("cache lookup", "requestID", cfg.RequestID, "cacheKey", key, "hit", found)
	}
	return value, found
}

// cacheStore writes a parsed value. Failures are logged and never fail the
// request; responses marked no-store are skipped.
func (c *Client) cacheStore(ctx context.Context, cache Cache, key string, value any, resp *Response, cfg *RequestConfig) {
	ttl := storeTTL(cfg.Cache.TTL, parseCacheControl(resp.Header.Get("Cache-Control")))
	if ttl <= 0 {
		if c.debug.Enabled && c.debug.LogCache {
			c.logger.Debug("response not cached", "requestID", cfg.RequestID, "cacheKey", key,
				"cacheControl", resp.Header.Get("Cache-Control"))
		}
		return
	}

	opts := []SetOption{WithMetadata(map[string]any{
		"status":   resp.StatusCode,
		"url":      resp.URL,
		"endpoint": cfg.Endpoint,
	})}
	if etag := resp.Header.Get("ETag"); etag != "" {
		opts = append(opts, WithETag(etag))
	}

	storeCtx := context.WithoutCancel(ctx)
	ok := safely(c.logger, "cacheSet", func() error {
		return cache.Set(storeCtx, key, value, ttl, opts...)
	}, "requestID", cfg.RequestID, "cacheKey", key)

	if ok && c.debug.Enabled && c.debug.LogCache {
		c.logger.Debug("response cached", "requestID", cfg.RequestID, "cacheKey", key, "ttl", ttl)
	}
	if ok {
		if stats, err := cache.Stats(storeCtx); err == nil {
			c.metrics.RecordCacheSize(fmt.Sprintf("%T", cache), stats.Size)
		}
	}
}
