package vortex

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"

	"github.com/vorthain/vorthain-vortex/internal/inflight"
)

// Client issues requests against a set of named endpoints. Settings
// cascade client → endpoint → method → request. It is safe for concurrent
// use.
type Client struct {
	baseURL   string
	endpoints map[string]EndpointConfig
	settings  Settings

	httpClient *http.Client
	transport  Transport
	streaming  Transport
	// streamingSet records an explicit WithStreamingTransport, nil included.
	streamingSet bool

	cache          Cache
	cacheOnce      sync.Once
	cacheOptions   MemoryCacheOptions
	ownsCache      bool
	registry       *inflight.Registry
	registryMaxAge time.Duration

	logger     Logger
	debug      DebugConfig
	metrics    *MetricsCollector
	tracer     trace.Tracer
	propagator propagation.TextMapPropagator
	limiters   *limiterRegistry
	breakers   *breakerRegistry
	now        func() time.Time

	breakerConfig *CircuitBreakerConfig

	validationError error
	destroyed       atomic.Bool
	destroyOnce     sync.Once
}

// New validates cfg and constructs a Client. Configuration errors are
// returned synchronously as CONFIG errors.
func New(cfg Config, options ...Option) (*Client, error) {
	client := &Client{
		baseURL:    cfg.BaseURL,
		settings:   cfg.Settings,
		httpClient: &http.Client{},
		logger:     slog.Default(),
		debug:      DebugConfig{RequestIDGen: uuid.NewString},
		tracer:     defaultTracer(),
		limiters:   newLimiterRegistry(),
		now:        time.Now,
	}

	for _, option := range options {
		option(client)
	}

	if err := client.ValidateConfiguration(); err != nil {
		client.validationError = err
		return nil, err
	}
	if err := cfg.validate(client.logger); err != nil {
		return nil, err
	}

	client.endpoints = normalizeEndpoints(cfg.Endpoints)
	if client.breakerConfig != nil {
		client.breakers = newBreakerRegistry(*client.breakerConfig, client.now)
	}
	if client.transport == nil {
		client.transport = NewHTTPTransport(client.httpClient)
	}
	if !client.streamingSet {
		client.streaming = NewProgressTransport(client.transport)
	}
	if client.registry == nil {
		client.registry = inflight.New(inflight.Options{
			MaxAge: client.registryMaxAge,
			Now:    client.now,
			OnEvict: func(key string, age time.Duration) {
				client.logger.Warn("in-flight refresh evicted", "key", key, "age", age)
			},
		})
	}
	return client, nil
}

// normalizeEndpoints upper-cases method keys so lookups ignore case.
func normalizeEndpoints(in map[string]EndpointConfig) map[string]EndpointConfig {
	out := make(map[string]EndpointConfig, len(in))
	for name, ep := range in {
		methods := make(map[string]Settings, len(ep.Methods))
		for m, s := range ep.Methods {
			methods[strings.ToUpper(m)] = s
		}
		ep.Methods = methods
		out[name] = ep
	}
	return out
}

// Endpoint returns the request factory for a named endpoint.
func (c *Client) Endpoint(name string) (*Endpoint, error) {
	if _, ok := c.endpoints[name]; !ok {
		return nil, configError("endpoint %q is not defined (available: %s)", name, strings.Join(c.EndpointNames(), ", "))
	}
	return &Endpoint{client: c, name: name}, nil
}

// EndpointNames lists the configured endpoints in sorted order.
func (c *Client) EndpointNames() []string {
	names := make([]string, 0, len(c.endpoints))
	for name := range c.endpoints {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// resolve builds the effective configuration for a new logical request.
func (c *Client) resolve(endpoint, method string, request *Settings) *RequestConfig {
	ep := c.endpoints[endpoint]
	var methodLevel *Settings
	if s, ok := ep.Methods[method]; ok {
		methodLevel = &s
	}
	cfg := resolveConfig(endpoint, c.baseURL, ep.Path, method,
		settingsLevel{LevelClient, &c.settings},
		settingsLevel{LevelEndpoint, &ep.Settings},
		settingsLevel{LevelMethod, methodLevel},
		settingsLevel{LevelRequest, request},
	)
	if c.debug.RequestIDGen != nil {
		cfg.RequestID = c.debug.RequestIDGen()
	}
	return cfg
}

// cacheFor returns the cache instance for cfg, creating the client-owned
// memory cache on first use.
func (c *Client) cacheFor(cfg *RequestConfig) Cache {
	if cfg.Cache.Instance != nil {
		return cfg.Cache.Instance
	}
	return c.Cache()
}

// Cache returns the client's default cache instance.
func (c *Client) Cache() Cache {
	c.cacheOnce.Do(func() {
		if c.cache == nil {
			opts := c.cacheOptions
			if opts.Now == nil {
				opts.Now = c.now
			}
			c.cache = NewMemoryCache(opts)
			c.ownsCache = true
		}
	})
	return c.cache
}

// InvalidateCache removes key from the default cache.
func (c *Client) InvalidateCache(ctx context.Context, key string) (bool, error) {
	return c.Cache().Delete(ctx, key)
}

// InflightRefreshes returns how many background refreshes are registered.
func (c *Client) InflightRefreshes() int {
	return c.registry.Len()
}

// Destroy releases the client's resources: the in-flight registry and its
// sweep, and the default cache. Calling it again is a no-op.
func (c *Client) Destroy() {
	c.destroyOnce.Do(func() {
		c.destroyed.Store(true)
		c.registry.Clear()

		cache := c.Cache()
		if err := cache.Clear(context.Background()); err != nil {
			c.logger.Warn("failed to clear cache on destroy", "error", err)
		}
		if c.ownsCache {
			if closer, ok := cache.(io.Closer); ok {
				_ = closer.Close()
			}
		}
	})
}

// CircuitState returns the breaker state of endpoint. It is StateClosed
// when circuit breaking is disabled.
func (c *Client) CircuitState(endpoint string) CircuitState {
	return c.breakers.get(endpoint).State()
}

// IsValid reports whether configuration validation passed at construction.
func (c *Client) IsValid() bool {
	return c.validationError == nil
}

// ValidationError returns the configuration validation error, if any.
func (c *Client) ValidationError() error {
	return c.validationError
}

func (c *Client) callback(stage string, cfg *RequestConfig, fn func()) {
	safely(c.logger, stage, func() error {
		fn()
		return nil
	}, "requestID", cfg.RequestID, "endpoint", cfg.Endpoint)
}

// Endpoint creates request builders for one named endpoint.
type Endpoint struct {
	client *Client
	name   string
}

// Name returns the endpoint name.
func (e *Endpoint) Name() string { return e.name }

// Get starts a GET request.
func (e *Endpoint) Get() *RequestBuilder { return e.Method(http.MethodGet) }

// Post starts a POST request.
func (e *Endpoint) Post() *RequestBuilder { return e.Method(http.MethodPost) }

// Put starts a PUT request.
func (e *Endpoint) Put() *RequestBuilder { return e.Method(http.MethodPut) }

// Patch starts a PATCH request.
func (e *Endpoint) Patch() *RequestBuilder { return e.Method(http.MethodPatch) }

// Delete starts a DELETE request.
func (e *Endpoint) Delete() *RequestBuilder { return e.Method(http.MethodDelete) }

// Head starts a HEAD request.
func (e *Endpoint) Head() *RequestBuilder { return e.Method(http.MethodHead) }

// Options starts an OPTIONS request.
func (e *Endpoint) Options() *RequestBuilder { return e.Method(http.MethodOptions) }

// Method starts a request with an arbitrary method. Unknown methods fail on
// Send with a VALIDATION error.
func (e *Endpoint) Method(method string) *RequestBuilder {
	method = strings.ToUpper(method)
	b := newRequestBuilder(e.client, e.name, method)
	if !isKnownMethod(method) {
		b.fail("unsupported HTTP method " + method)
	}
	return b
}
