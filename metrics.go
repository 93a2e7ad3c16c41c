package vortex

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// MetricsCollector provides Prometheus metrics for the request lifecycle,
// the cache layer and retries. It is safe for concurrent use and every
// Record method is a no-op on a nil receiver.
type MetricsCollector struct {
	requestsTotal    *prometheus.CounterVec
	requestDuration  *prometheus.HistogramVec
	requestsInFlight *prometheus.GaugeVec

	retriesTotal        *prometheus.CounterVec
	retryBudgetExceeded *prometheus.CounterVec

	cacheHits   *prometheus.CounterVec
	cacheMisses *prometheus.CounterVec
	cacheSize   *prometheus.GaugeVec

	revalidations *prometheus.CounterVec
	inflight      prometheus.Gauge

	errorsTotal  *prometheus.CounterVec
	circuitState *prometheus.GaugeVec

	registry prometheus.Registerer
}

// NewMetricsCollector creates a metrics collector on the default registerer.
func NewMetricsCollector() *MetricsCollector {
	return NewMetricsCollectorWithRegistry(prometheus.DefaultRegisterer)
}

// NewMetricsCollectorWithRegistry creates a collector using supplied registerer.
func NewMetricsCollectorWithRegistry(registry prometheus.Registerer) *MetricsCollector {
	factory := promauto.With(registry)
	return &MetricsCollector{
		requestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "vortex_requests_total",
				Help: "Total number of requests sent, by outcome",
			},
			[]string{"method", "endpoint", "outcome"},
		),
		requestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "vortex_request_duration_seconds",
				Help:    "Duration of requests in seconds, retries included",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "endpoint", "outcome"},
		),
		requestsInFlight: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "vortex_requests_in_flight",
				Help: "Number of requests currently in flight",
			},
			[]string{"method", "endpoint"},
		),
		retriesTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "vortex_retries_total",
				Help: "Total number of retry attempts requested by error interceptors",
			},
			[]string{"method", "endpoint", "attempt"},
		),
		retryBudgetExceeded: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "vortex_retry_budget_exceeded_total",
				Help: "Total number of retry calls refused because the budget was used up",
			},
			[]string{"endpoint"},
		),
		cacheHits: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "vortex_cache_hits_total",
				Help: "Total number of cache hits",
			},
			[]string{"method", "endpoint", "strategy"},
		),
		cacheMisses: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "vortex_cache_misses_total",
				Help: "Total number of cache misses",
			},
			[]string{"method", "endpoint", "strategy"},
		),
		cacheSize: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "vortex_cache_size",
				Help: "Current number of entries in cache",
			},
			[]string{"name"},
		),
		revalidations: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "vortex_revalidations_total",
				Help: "Total number of stale-while-revalidate refreshes, by result",
			},
			[]string{"endpoint", "result"},
		),
		inflight: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "vortex_inflight_refreshes",
				Help: "Number of refreshes tracked by the in-flight registry",
			},
		),
		errorsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "vortex_errors_total",
				Help: "Total number of errors returned to callers",
			},
			[]string{"type", "method", "endpoint"},
		),
		circuitState: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "vortex_circuit_breaker_state",
				Help: "Circuit breaker state per endpoint (0=closed, 1=open, 2=half-open)",
			},
			[]string{"endpoint"},
		),
		registry: registry,
	}
}

// RecordRequest records request count and duration.
func (mc *MetricsCollector) RecordRequest(method, endpoint, outcome string, duration time.Duration) {
	if mc == nil {
		return
	}
	mc.requestsTotal.WithLabelValues(method, endpoint, outcome).Inc()
	mc.requestDuration.WithLabelValues(method, endpoint, outcome).Observe(duration.Seconds())
}

// RecordRequestStart increments in-flight gauge.
func (mc *MetricsCollector) RecordRequestStart(method, endpoint string) {
	if mc == nil {
		return
	}
	mc.requestsInFlight.WithLabelValues(method, endpoint).Inc()
}

// RecordRequestEnd decrements in-flight gauge.
func (mc *MetricsCollector) RecordRequestEnd(method, endpoint string) {
	if mc == nil {
		return
	}
	mc.requestsInFlight.WithLabelValues(method, endpoint).Dec()
}

// RecordRetry increments retry counter for an attempt.
func (mc *MetricsCollector) RecordRetry(method, endpoint string, attempt int) {
	if mc == nil {
		return
	}
	mc.retriesTotal.WithLabelValues(method, endpoint, strconv.Itoa(attempt)).Inc()
}

// RecordRetryBudgetExceeded increments retry budget exceeded counter.
func (mc *MetricsCollector) RecordRetryBudgetExceeded(endpoint string) {
	if mc == nil {
		return
	}
	mc.retryBudgetExceeded.WithLabelValues(endpoint).Inc()
}

// RecordCacheHit increments cache hit counter.
func (mc *MetricsCollector) RecordCacheHit(method, endpoint string, strategy CacheStrategy) {
	if mc == nil {
		return
	}
	mc.cacheHits.WithLabelValues(method, endpoint, string(strategy)).Inc()
}

// RecordCacheMiss increments cache miss counter.
func (mc *MetricsCollector) RecordCacheMiss(method, endpoint string, strategy CacheStrategy) {
	if mc == nil {
		return
	}
	mc.cacheMisses.WithLabelValues(method, endpoint, string(strategy)).Inc()
}

// RecordCacheSize sets cache size gauge.
func (mc *MetricsCollector) RecordCacheSize(name string, size int) {
	if mc == nil {
		return
	}
	mc.cacheSize.WithLabelValues(name).Set(float64(size))
}

// RecordRevalidation counts a finished background refresh.
func (mc *MetricsCollector) RecordRevalidation(endpoint string, err error) {
	if mc == nil {
		return
	}
	result := "success"
	if err != nil {
		result = "error"
	}
	mc.revalidations.WithLabelValues(endpoint, result).Inc()
}

// RecordInflight sets the in-flight registry gauge.
func (mc *MetricsCollector) RecordInflight(n int) {
	if mc == nil {
		return
	}
	mc.inflight.Set(float64(n))
}

// RecordError increments error counter by type.
func (mc *MetricsCollector) RecordError(errorType ErrorType, method, endpoint string) {
	if mc == nil {
		return
	}
	mc.errorsTotal.WithLabelValues(string(errorType), method, endpoint).Inc()
}

// RecordCircuitState sets the breaker state gauge of an endpoint.
func (mc *MetricsCollector) RecordCircuitState(endpoint string, state CircuitState) {
	if mc == nil {
		return
	}
	mc.circuitState.WithLabelValues(endpoint).Set(float64(state))
}

// Registerer exposes the registerer the collectors were created on.
func (mc *MetricsCollector) Registerer() prometheus.Registerer {
	return mc.registry
}
