package vortex

import (
	"errors"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel/trace/noop"
	"golang.org/x/time/rate"
)

func TestWithOptions(t *testing.T) {
	httpClient := &http.Client{Timeout: time.Second}
	cache := NewMemoryCache(MemoryCacheOptions{})
	defer cache.Close()
	registry := prometheus.NewRegistry()
	gen := func() string { return "fixed" }

	client := newTestClient(t, usersConfig("https://api.example.com"),
		WithHTTPClient(httpClient),
		WithCache(cache),
		WithMetricsRegistry(registry),
		WithTracer(noop.NewTracerProvider().Tracer("test")),
		WithRequestIDGenerator(gen),
		WithInflightMaxAge(time.Minute),
		WithRateLimit(rate.Limit(10), 5),
		WithCircuitBreaker(CircuitBreakerConfig{FailureThreshold: 3}),
	)

	if client.httpClient != httpClient {
		t.Error("Expected the custom HTTP client")
	}
	if client.Cache() != cache {
		t.Error("Expected the custom cache")
	}
	if client.metrics == nil || client.metrics.Registerer() != registry {
		t.Error("Expected metrics on the custom registry")
	}
	if client.debug.RequestIDGen() != "fixed" {
		t.Error("Expected the custom request ID generator")
	}
	if client.limiters.get("users") == nil {
		t.Error("Expected a fallback rate limiter")
	}
	if client.breakers == nil || client.breakers.get("users").config.FailureThreshold != 3 {
		t.Error("Expected circuit breakers with the custom threshold")
	}
}

func TestWithDebugConfigKeepsRequestIDGenerator(t *testing.T) {
	client := newTestClient(t, usersConfig("https://api.example.com"),
		WithDebugConfig(DebugConfig{Enabled: true, LogCache: true}))

	if !client.debug.Enabled || !client.debug.LogCache || client.debug.LogRequests {
		t.Errorf("Unexpected debug config %+v", client.debug)
	}
	if client.debug.RequestIDGen == nil || client.debug.RequestIDGen() == "" {
		t.Error("Expected the default request ID generator to survive")
	}
}

func TestWithSimpleLoggerEnablesDebug(t *testing.T) {
	client, err := New(usersConfig("https://api.example.com"), WithSimpleLogger())
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	defer client.Destroy()
	if !client.debug.Enabled || !client.debug.LogRequests || !client.debug.LogRetries {
		t.Errorf("Expected full debug logging, got %+v", client.debug)
	}
}

func TestValidateConfiguration(t *testing.T) {
	tests := []struct {
		name     string
		settings Settings
		opts     []Option
		want     string
	}{
		{name: "valid"},
		{name: "negative retries", settings: Settings{MaxRetries: Int(-1)}, want: "maxRetries must be non-negative"},
		{name: "negative timeout", settings: Settings{Timeout: -2 * time.Second}, want: "timeout must be positive or NoTimeout"},
		{name: "no timeout", settings: Settings{Timeout: NoTimeout}},
		{name: "redirect", settings: Settings{Redirect: "sometimes"}, want: `unknown redirect policy "sometimes"`},
		{name: "response type", settings: Settings{ResponseType: "xml"}, want: `unknown response type "xml"`},
		{name: "cache strategy", settings: Settings{Cache: &CacheSettings{Strategy: "lru"}}, want: `unknown cache strategy "lru"`},
		{name: "cache ttl", settings: Settings{Cache: &CacheSettings{TTL: -time.Second}}, want: "cache TTL must be positive"},
		{name: "extreme retries", settings: Settings{MaxRetries: Int(101)}, want: "maxRetries > 100"},
		{name: "extreme timeout", settings: Settings{Timeout: time.Hour}, want: "timeout > 10m"},
		{name: "extreme ttl", settings: Settings{Cache: &CacheSettings{TTL: 48 * time.Hour}}, want: "cache TTL > 24h"},
		{name: "nil logger", opts: []Option{WithLogger(nil)}, want: "logger cannot be nil"},
		{name: "nil clock", opts: []Option{WithClock(nil)}, want: "clock cannot be nil"},
		{
			name: "breaker", opts: []Option{WithCircuitBreaker(CircuitBreakerConfig{FailureThreshold: -1})},
			want: "circuit breaker thresholds must be non-negative",
		},
		{
			name: "cache size", opts: []Option{WithMemoryCacheOptions(MemoryCacheOptions{MaxSize: -1})},
			want: "memory cache MaxSize must be non-negative",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := usersConfig("https://api.example.com")
			cfg.Settings = tt.settings
			opts := append([]Option{WithLogger(NopLogger())}, tt.opts...)

			client, err := New(cfg, opts...)
			if tt.want == "" {
				if err != nil {
					t.Fatalf("Expected a valid configuration, got %v", err)
				}
				client.Destroy()
				return
			}

			ce := mustClientError(t, err, ErrorTypeConfig)
			if ce.Message != "configuration validation failed" {
				t.Errorf("Unexpected message %q", ce.Message)
			}
			if cause := errors.Unwrap(ce); cause == nil || !strings.Contains(cause.Error(), tt.want) {
				t.Errorf("Expected cause to contain %q, got %v", tt.want, cause)
			}
		})
	}
}
