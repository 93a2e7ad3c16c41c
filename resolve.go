package vortex

import (
	"net/http"
	"time"
)

const (
	defaultTimeout  = 30 * time.Second
	defaultCacheTTL = 5 * time.Minute
)

// Level names used in logs and mapper diagnostics.
const (
	LevelClient   = "client"
	LevelEndpoint = "endpoint"
	LevelMethod   = "method"
	LevelRequest  = "request"
	LevelRetry    = "retry"
)

// ResolvedCache is the merged cache block.
type ResolvedCache struct {
	Enabled  bool
	Strategy CacheStrategy
	TTL      time.Duration
	Instance Cache
}

type mapperLevel struct {
	name     string
	response []ResponseMapper
	errors   []ErrorMapper
	inherit  *bool
}

// RequestConfig is the effective configuration of one attempt. It is built
// by merging the four Settings levels and must not be modified once the
// attempt starts; retries derive a new value with WithOverrides.
type RequestConfig struct {
	Endpoint  string
	BaseURL   string
	Path      string
	Method    string
	URL       string
	RequestID string
	Attempt   int
	IsRetry   bool

	Headers        map[string]string
	Timeout        time.Duration
	Redirect       RedirectPolicy
	ResponseType   ResponseType
	ValidateStatus func(status int) bool
	MaxRetries     int
	Cache          ResolvedCache

	PathParams map[string]any
	Query      map[string]any
	Body       any

	OnStart            StartFunc
	OnSuccess          SuccessFunc
	OnError            ErrorFunc
	OnFinally          FinallyFunc
	OnUploadProgress   ProgressFunc
	OnDownloadProgress ProgressFunc
	OnRevalidate       RevalidateFunc

	RequestInterceptor  RequestInterceptor
	ResponseInterceptor ResponseInterceptor
	ErrorInterceptor    ErrorInterceptor

	DisableMappers        bool
	DisableResponseMapper bool
	DisableErrorMapper    bool

	mappers       []mapperLevel
	baseValidator func(status int) bool
	// cacheKey pins the key chosen before the request interceptor ran.
	cacheKey string
}

type settingsLevel struct {
	name     string
	settings *Settings
}

// resolveConfig merges defaults → client → endpoint → method → request.
func resolveConfig(endpoint, baseURL, path, method string, levels ...settingsLevel) *RequestConfig {
	cfg := &RequestConfig{
		Endpoint:     endpoint,
		BaseURL:      baseURL,
		Path:         path,
		Method:       method,
		Headers:      map[string]string{},
		Timeout:      defaultTimeout,
		Redirect:     RedirectFollow,
		ResponseType: ResponseJSON,
		Cache: ResolvedCache{
			Strategy: CacheSimple,
			TTL:      defaultCacheTTL,
		},
		PathParams: map[string]any{},
		Query:      map[string]any{},
	}

	for _, lvl := range levels {
		cfg.apply(lvl.name, lvl.settings)
	}
	cfg.finalize()
	return cfg
}

// WithOverrides derives the configuration of a retry attempt. Headers, path
// parameters and query merge structurally; every other set field replaces.
func (c *RequestConfig) WithOverrides(overrides *Settings) *RequestConfig {
	next := c.clone()
	next.cacheKey = ""
	next.apply(LevelRetry, overrides)
	next.finalize()
	return next
}

// apply merges one level onto the configuration.
func (c *RequestConfig) apply(name string, s *Settings) {
	if s == nil {
		return
	}

	mergeHeaders(c.Headers, s.Headers)
	mergeParams(c.PathParams, s.PathParams)
	mergeParams(c.Query, s.Query)
	c.Cache = mergeCache(c.Cache, s.Cache)

	if s.Timeout != 0 {
		c.Timeout = s.Timeout
	}
	if s.Redirect != "" {
		c.Redirect = s.Redirect
	}
	if s.MaxRetries != nil {
		c.MaxRetries = *s.MaxRetries
	}
	if s.ResponseType != "" {
		c.ResponseType = s.ResponseType
	}
	if s.ValidateStatus != nil {
		c.baseValidator = s.ValidateStatus
	}
	if s.Body != nil {
		c.Body = s.Body
	}

	if s.OnStart != nil {
		c.OnStart = s.OnStart
	}
	if s.OnSuccess != nil {
		c.OnSuccess = s.OnSuccess
	}
	if s.OnError != nil {
		c.OnError = s.OnError
	}
	if s.OnFinally != nil {
		c.OnFinally = s.OnFinally
	}
	if s.OnUploadProgress != nil {
		c.OnUploadProgress = s.OnUploadProgress
	}
	if s.OnDownloadProgress != nil {
		c.OnDownloadProgress = s.OnDownloadProgress
	}
	if s.OnRevalidate != nil {
		c.OnRevalidate = s.OnRevalidate
	}
	if s.RequestInterceptor != nil {
		c.RequestInterceptor = s.RequestInterceptor
	}
	if s.ResponseInterceptor != nil {
		c.ResponseInterceptor = s.ResponseInterceptor
	}
	if s.ErrorInterceptor != nil {
		c.ErrorInterceptor = s.ErrorInterceptor
	}

	c.DisableMappers = c.DisableMappers || s.DisableMappers
	c.DisableResponseMapper = c.DisableResponseMapper || s.DisableResponseMapper
	c.DisableErrorMapper = c.DisableErrorMapper || s.DisableErrorMapper

	if len(s.ResponseMappers) > 0 || len(s.ErrorMappers) > 0 || s.InheritMappers != nil {
		c.mappers = append(c.mappers, mapperLevel{
			name:     name,
			response: s.ResponseMappers,
			errors:   s.ErrorMappers,
			inherit:  s.InheritMappers,
		})
	}
}

// finalize derives the effective status validator. With a manual redirect
// policy 3xx responses are valid in addition to what the caller accepts.
func (c *RequestConfig) finalize() {
	base := c.baseValidator
	if base == nil {
		base = defaultValidateStatus
	}
	if c.Redirect == RedirectManual {
		c.ValidateStatus = func(status int) bool {
			if status >= 300 && status < 400 {
				return true
			}
			return base(status)
		}
		return
	}
	c.ValidateStatus = base
}

// WantsProgress reports whether a progress callback is configured.
func (c *RequestConfig) WantsProgress() bool {
	return c.OnUploadProgress != nil || c.OnDownloadProgress != nil
}

// Header returns a resolved header value, case-insensitively.
func (c *RequestConfig) Header(name string) string {
	return c.Headers[http.CanonicalHeaderKey(name)]
}

func (c *RequestConfig) clone() *RequestConfig {
	next := *c
	next.Headers = copyStrings(c.Headers)
	next.PathParams = copyParams(c.PathParams)
	next.Query = copyParams(c.Query)
	next.mappers = append([]mapperLevel(nil), c.mappers...)
	return &next
}

func defaultValidateStatus(status int) bool {
	return status >= 200 && status < 300
}

func mergeHeaders(dst, src map[string]string) {
	for k, v := range src {
		dst[http.CanonicalHeaderKey(k)] = v
	}
}

func mergeParams(dst, src map[string]any) {
	for k, v := range src {
		dst[k] = v
	}
}

func mergeCache(dst ResolvedCache, src *CacheSettings) ResolvedCache {
	if src == nil {
		return dst
	}
	if src.Enabled != nil {
		dst.Enabled = *src.Enabled
	}
	if src.Strategy != "" {
		dst.Strategy = src.Strategy
	}
	if src.TTL > 0 {
		dst.TTL = src.TTL
	}
	if src.Instance != nil {
		dst.Instance = src.Instance
	}
	return dst
}

func copyStrings(m map[string]string) map[string]string {
	out := make(map[string]string, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func copyParams(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
