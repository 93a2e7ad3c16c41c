package vortex

import (
	"sync"

	"golang.org/x/time/rate"
)

// limiterRegistry maps endpoints to token buckets. Endpoints without their
// own limiter share the fallback, if any.
type limiterRegistry struct {
	mu       sync.RWMutex
	limiters map[string]*rate.Limiter
	fallback *rate.Limiter
}

func newLimiterRegistry() *limiterRegistry {
	return &limiterRegistry{limiters: make(map[string]*rate.Limiter)}
}

func (r *limiterRegistry) register(endpoint string, l *rate.Limiter) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.limiters[endpoint] = l
}

func (r *limiterRegistry) setFallback(l *rate.Limiter) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.fallback = l
}

// get returns the limiter for endpoint, or nil when dispatch is unthrottled.
func (r *limiterRegistry) get(endpoint string) *rate.Limiter {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if l, ok := r.limiters[endpoint]; ok {
		return l
	}
	return r.fallback
}
