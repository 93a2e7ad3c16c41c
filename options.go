package vortex

import (
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/time/rate"

	"github.com/vorthain/vorthain-vortex/internal/inflight"
)

// WithHTTPClient sets the *http.Client used by the default plain transport.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		c.httpClient = client
	}
}

// WithTransport replaces the plain transport.
func WithTransport(t Transport) Option {
	return func(c *Client) {
		c.transport = t
	}
}

// WithStreamingTransport sets the progress-capable transport. Passing nil
// disables progress reporting.
func WithStreamingTransport(t Transport) Option {
	return func(c *Client) {
		c.streaming = t
		c.streamingSet = true
	}
}

// WithCache sets the default cache instance used when caching is enabled
// and no level names an instance.
func WithCache(cache Cache) Option {
	return func(c *Client) {
		c.cache = cache
	}
}

// WithMemoryCacheOptions configures the client-owned memory cache.
func WithMemoryCacheOptions(opts MemoryCacheOptions) Option {
	return func(c *Client) {
		c.cacheOptions = opts
	}
}

// WithInflightRegistry shares a registry between clients. The client does
// not own a shared registry but still clears it on Destroy.
func WithInflightRegistry(r *inflight.Registry) Option {
	return func(c *Client) {
		c.registry = r
	}
}

// WithInflightMaxAge sets how long a refresh may stay registered.
func WithInflightMaxAge(d time.Duration) Option {
	return func(c *Client) {
		c.registryMaxAge = d
	}
}

// WithClock injects the clock used by the default cache and registry.
func WithClock(now func() time.Time) Option {
	return func(c *Client) {
		c.now = now
	}
}

// WithRateLimit throttles dispatches with a token bucket shared by every
// endpoint that has no limiter of its own.
func WithRateLimit(limit rate.Limit, burst int) Option {
	return func(c *Client) {
		c.limiters.setFallback(rate.NewLimiter(limit, burst))
	}
}

// WithEndpointRateLimit gives one endpoint its own token bucket.
func WithEndpointRateLimit(endpoint string, limit rate.Limit, burst int) Option {
	return func(c *Client) {
		c.limiters.register(endpoint, rate.NewLimiter(limit, burst))
	}
}

// WithCircuitBreaker enables a circuit breaker per endpoint. Network
// failures and 5xx responses count as failures.
func WithCircuitBreaker(config CircuitBreakerConfig) Option {
	return func(c *Client) {
		c.breakerConfig = &config
	}
}

// WithMetrics enables Prometheus metrics collection
func WithMetrics() Option {
	return func(c *Client) {
		c.metrics = NewMetricsCollector()
	}
}

// WithMetricsRegistry enables metrics on a specific registerer.
func WithMetricsRegistry(registry prometheus.Registerer) Option {
	return func(c *Client) {
		c.metrics = NewMetricsCollectorWithRegistry(registry)
	}
}

// WithMetricsCollector sets a custom metrics collector
func WithMetricsCollector(collector *MetricsCollector) Option {
	return func(c *Client) {
		c.metrics = collector
	}
}

// WithTracer records a client span per request.
func WithTracer(tracer trace.Tracer) Option {
	return func(c *Client) {
		c.tracer = tracer
	}
}

// WithTracerProvider takes the tracer from provider.
func WithTracerProvider(provider trace.TracerProvider) Option {
	return func(c *Client) {
		c.tracer = provider.Tracer(tracerName)
	}
}

// WithPropagator sets the propagator used to inject trace headers. The
// global propagator is used by default.
func WithPropagator(p propagation.TextMapPropagator) Option {
	return func(c *Client) {
		c.propagator = p
	}
}

// WithDebug enables debug logging of requests, cache and retries.
func WithDebug() Option {
	return func(c *Client) {
		c.debug.Enabled = true
		c.debug.LogRequests = true
		c.debug.LogCache = true
		c.debug.LogRetries = true
	}
}

// WithDebugConfig sets custom debug configuration
func WithDebugConfig(config DebugConfig) Option {
	return func(c *Client) {
		gen := c.debug.RequestIDGen
		c.debug = config
		if c.debug.RequestIDGen == nil {
			c.debug.RequestIDGen = gen
		}
	}
}

// WithLogger sets the logger for warnings and debug output.
func WithLogger(logger Logger) Option {
	return func(c *Client) {
		c.logger = logger
	}
}

// WithSimpleLogger enables debug logging with a simple console logger
func WithSimpleLogger() Option {
	return func(c *Client) {
		c.logger = NewSimpleLogger()
		WithDebug()(c)
	}
}

// WithRequestIDGenerator sets a custom function for generating request IDs
func WithRequestIDGenerator(gen func() string) Option {
	return func(c *Client) {
		c.debug.RequestIDGen = gen
	}
}

// ValidateConfiguration validates the client options and returns an error if invalid
func (c *Client) ValidateConfiguration() error {
	var errors []string

	errors = append(errors, c.validateDefaults()...)
	errors = append(errors, c.validateTransportConfig()...)
	errors = append(errors, c.validateCacheConfig()...)
	errors = append(errors, c.validateDebugConfig()...)
	errors = append(errors, c.validateExtremeValues()...)

	if len(errors) > 0 {
		return &ClientError{
			Type:    ErrorTypeConfig,
			Message: "configuration validation failed",
			Cause:   fmt.Errorf("validation errors: %v", errors),
		}
	}
	return nil
}

func (c *Client) validateDefaults() []string {
	var errors []string

	s := c.settings
	if s.MaxRetries != nil && *s.MaxRetries < 0 {
		errors = append(errors, "maxRetries must be non-negative")
	}
	if s.Timeout < 0 && s.Timeout != NoTimeout {
		errors = append(errors, "timeout must be positive or NoTimeout")
	}
	switch s.Redirect {
	case "", RedirectFollow, RedirectManual, RedirectError:
	default:
		errors = append(errors, fmt.Sprintf("unknown redirect policy %q", s.Redirect))
	}
	switch s.ResponseType {
	case "", ResponseJSON, ResponseText, ResponseBlob, ResponseBinary, ResponseForm:
	default:
		errors = append(errors, fmt.Sprintf("unknown response type %q", s.ResponseType))
	}
	return errors
}

func (c *Client) validateTransportConfig() []string {
	var errors []string

	if c.transport == nil && c.httpClient == nil {
		errors = append(errors, "HTTP client cannot be nil")
	}
	return errors
}

func (c *Client) validateCacheConfig() []string {
	var errors []string

	if cs := c.settings.Cache; cs != nil {
		if cs.TTL < 0 {
			errors = append(errors, "cache TTL must be positive")
		}
		switch cs.Strategy {
		case "", CacheSimple, CacheSWR:
		default:
			errors = append(errors, fmt.Sprintf("unknown cache strategy %q", cs.Strategy))
		}
	}
	if b := c.breakerConfig; b != nil && (b.FailureThreshold < 0 || b.SuccessThreshold < 0 || b.RecoveryTimeout < 0) {
		errors = append(errors, "circuit breaker thresholds must be non-negative")
	}
	if c.cacheOptions.MaxSize < 0 {
		errors = append(errors, "memory cache MaxSize must be non-negative")
	}
	return errors
}

func (c *Client) validateDebugConfig() []string {
	var errors []string

	if c.debug.Enabled && c.logger == nil {
		errors = append(errors, "logger must be set when debug is enabled")
	}
	if c.logger == nil {
		errors = append(errors, "logger cannot be nil")
	}
	if c.now == nil {
		errors = append(errors, "clock cannot be nil")
	}
	if c.tracer == nil {
		errors = append(errors, "tracer cannot be nil")
	}
	return errors
}

// validateExtremeValues flags values that are legal but almost certainly
// mistakes.
func (c *Client) validateExtremeValues() []string {
	var errors []string

	if r := c.settings.MaxRetries; r != nil && *r > 100 {
		errors = append(errors, "maxRetries > 100 may cause excessive resource usage")
	}
	if c.settings.Timeout > 10*time.Minute {
		errors = append(errors, "timeout > 10m may cause requests to hang for too long")
	}
	if cs := c.settings.Cache; cs != nil && cs.TTL > 24*time.Hour {
		errors = append(errors, "cache TTL > 24h may cause stale data issues")
	}
	return errors
}
