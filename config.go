package vortex

import (
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Settings is one level of the configuration cascade. The same type is used
// for client, endpoint, method and request levels; unset fields (zero values,
// nil pointers) inherit from the level below.
type Settings struct {
	Headers        map[string]string
	Timeout        time.Duration
	Redirect       RedirectPolicy
	ResponseType   ResponseType
	ValidateStatus func(status int) bool
	MaxRetries     *int
	Cache          *CacheSettings

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

	ResponseMappers       []ResponseMapper
	ErrorMappers          []ErrorMapper
	InheritMappers        *bool
	DisableMappers        bool
	DisableResponseMapper bool
	DisableErrorMapper    bool
}

// CacheSettings is merged field by field across levels.
type CacheSettings struct {
	Enabled  *bool
	Strategy CacheStrategy
	TTL      time.Duration
	Instance Cache
}

// EndpointConfig declares one named endpoint. Methods holds per-method
// overrides keyed by HTTP method name.
type EndpointConfig struct {
	Path     string
	Settings Settings
	Methods  map[string]Settings
}

// Config is the static client configuration.
type Config struct {
	BaseURL   string
	Endpoints map[string]EndpointConfig
	Settings  Settings
}

// validate checks the static configuration eagerly. A base URL that is
// neither empty, root-relative nor absolute only produces a warning.
func (cfg *Config) validate(logger Logger) error {
	if len(cfg.Endpoints) == 0 {
		return configError("endpoints configuration is required and must define at least one endpoint")
	}
	for name, ep := range cfg.Endpoints {
		if strings.TrimSpace(ep.Path) == "" {
			return configError("endpoint %q must have a non-empty path", name)
		}
		for method := range ep.Methods {
			if !isKnownMethod(method) {
				return configError("endpoint %q declares unsupported method %q", name, method)
			}
		}
	}

	if cfg.BaseURL != "" && !strings.HasPrefix(cfg.BaseURL, "/") {
		u, err := url.Parse(cfg.BaseURL)
		if err != nil || u.Scheme == "" || u.Host == "" {
			logger.Warn("baseURL does not look like an absolute URL or a root-relative path", "baseURL", cfg.BaseURL)
		}
	}
	return nil
}

var knownMethods = []string{
	http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch,
	http.MethodDelete, http.MethodHead, http.MethodOptions,
}

func isKnownMethod(m string) bool {
	m = strings.ToUpper(m)
	for _, k := range knownMethods {
		if k == m {
			return true
		}
	}
	return false
}

func hasBody(method string) bool {
	switch method {
	case http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete:
		return true
	}
	return false
}

// mergeSettings folds src into dst with the cascade rules: maps union,
// mapper lists append, every other set field replaces.
func mergeSettings(dst, src *Settings) {
	if len(src.Headers) > 0 {
		h := make(map[string]string, len(dst.Headers)+len(src.Headers))
		mergeHeaders(h, dst.Headers)
		mergeHeaders(h, src.Headers)
		dst.Headers = h
	}
	if len(src.PathParams) > 0 {
		p := copyParams(dst.PathParams)
		mergeParams(p, src.PathParams)
		dst.PathParams = p
	}
	if len(src.Query) > 0 {
		q := copyParams(dst.Query)
		mergeParams(q, src.Query)
		dst.Query = q
	}
	if src.Cache != nil {
		merged := CacheSettings{}
		if dst.Cache != nil {
			merged = *dst.Cache
		}
		if src.Cache.Enabled != nil {
			merged.Enabled = src.Cache.Enabled
		}
		if src.Cache.Strategy != "" {
			merged.Strategy = src.Cache.Strategy
		}
		if src.Cache.TTL > 0 {
			merged.TTL = src.Cache.TTL
		}
		if src.Cache.Instance != nil {
			merged.Instance = src.Cache.Instance
		}
		dst.Cache = &merged
	}

	if src.Timeout != 0 {
		dst.Timeout = src.Timeout
	}
	if src.Redirect != "" {
		dst.Redirect = src.Redirect
	}
	if src.ResponseType != "" {
		dst.ResponseType = src.ResponseType
	}
	if src.ValidateStatus != nil {
		dst.ValidateStatus = src.ValidateStatus
	}
	if src.MaxRetries != nil {
		dst.MaxRetries = src.MaxRetries
	}
	if src.Body != nil {
		dst.Body = src.Body
	}

	if src.OnStart != nil {
		dst.OnStart = src.OnStart
	}
	if src.OnSuccess != nil {
		dst.OnSuccess = src.OnSuccess
	}
	if src.OnError != nil {
		dst.OnError = src.OnError
	}
	if src.OnFinally != nil {
		dst.OnFinally = src.OnFinally
	}
	if src.OnUploadProgress != nil {
		dst.OnUploadProgress = src.OnUploadProgress
	}
	if src.OnDownloadProgress != nil {
		dst.OnDownloadProgress = src.OnDownloadProgress
	}
	if src.OnRevalidate != nil {
		dst.OnRevalidate = src.OnRevalidate
	}
	if src.RequestInterceptor != nil {
		dst.RequestInterceptor = src.RequestInterceptor
	}
	if src.ResponseInterceptor != nil {
		dst.ResponseInterceptor = src.ResponseInterceptor
	}
	if src.ErrorInterceptor != nil {
		dst.ErrorInterceptor = src.ErrorInterceptor
	}

	if len(src.ResponseMappers) > 0 {
		dst.ResponseMappers = append(append([]ResponseMapper(nil), dst.ResponseMappers...), src.ResponseMappers...)
	}
	if len(src.ErrorMappers) > 0 {
		dst.ErrorMappers = append(append([]ErrorMapper(nil), dst.ErrorMappers...), src.ErrorMappers...)
	}
	if src.InheritMappers != nil {
		dst.InheritMappers = src.InheritMappers
	}
	dst.DisableMappers = dst.DisableMappers || src.DisableMappers
	dst.DisableResponseMapper = dst.DisableResponseMapper || src.DisableResponseMapper
	dst.DisableErrorMapper = dst.DisableErrorMapper || src.DisableErrorMapper
}
