// Package inflight tracks in-flight refresh calls so concurrent callers
// asking for the same fingerprint share a single execution.
//
// A Registry is owned by a vortex Client. Entries are swept once they are
// older than MaxAge; the sweep goroutine only runs while the registry holds
// entries and exits on its own when it drains.
package inflight

import (
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

const (
	// DefaultMaxAge is how long an entry may stay registered before the
	// sweep forgets it.
	DefaultMaxAge = 5 * time.Minute
	// DefaultSweepInterval is the period of the background sweep.
	DefaultSweepInterval = time.Minute
)

// Result is what every caller sharing a call receives.
type Result = singleflight.Result

// Options configures a Registry. Zero values fall back to defaults.
type Options struct {
	MaxAge        time.Duration
	SweepInterval time.Duration
	// Now is the clock used to stamp and age entries.
	Now func() time.Time
	// OnEvict is called (outside the lock) for every entry removed by Sweep.
	OnEvict func(key string, age time.Duration)
}

type entry struct {
	startedAt time.Time
}

// Registry deduplicates concurrent calls by key.
type Registry struct {
	group singleflight.Group

	mu       sync.Mutex
	entries  map[string]*entry
	sweeping bool
	stop     chan struct{}

	maxAge   time.Duration
	interval time.Duration
	now      func() time.Time
	onEvict  func(key string, age time.Duration)
}

// New creates an empty registry. No goroutine is started until the first
// call is registered.
func New(opts Options) *Registry {
	r := &Registry{
		entries:  make(map[string]*entry),
		maxAge:   opts.MaxAge,
		interval: opts.SweepInterval,
		now:      opts.Now,
		onEvict:  opts.OnEvict,
	}
	if r.maxAge <= 0 {
		r.maxAge = DefaultMaxAge
	}
	if r.interval <= 0 {
		r.interval = DefaultSweepInterval
	}
	if r.now == nil {
		r.now = time.Now
	}
	return r
}

// Do runs fn unless a call for key is already in flight, in which case the
// caller joins it. The entry is registered before Do returns. The returned
// channel yields exactly one Result; Shared is set when more than one caller
// received it.
func (r *Registry) Do(key string, fn func() (any, error)) <-chan Result {
	r.mu.Lock()
	defer r.mu.Unlock()

	// An entry exists exactly while its call is in the group, so a present
	// entry means DoChan joins it.
	if _, ok := r.entries[key]; ok {
		return r.group.DoChan(key, fn)
	}

	e := &entry{startedAt: r.now()}
	r.entries[key] = e
	if !r.sweeping {
		r.sweeping = true
		r.stop = make(chan struct{})
		go r.sweepLoop(r.stop)
	}
	return r.group.DoChan(key, func() (any, error) {
		defer r.release(key, e)
		return fn()
	})
}

// InFlight reports whether a call for key is currently registered.
func (r *Registry) InFlight(key string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.entries[key]
	return ok
}

// Len returns the number of registered calls.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}

// Sweeping reports whether the background sweep goroutine is running.
func (r *Registry) Sweeping() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.sweeping
}

// Sweep forgets entries older than MaxAge and returns how many were removed.
// A forgotten call keeps running but new callers for its key start afresh.
func (r *Registry) Sweep() int {
	now := r.now()

	type evicted struct {
		key string
		age time.Duration
	}
	var removed []evicted

	r.mu.Lock()
	for key, e := range r.entries {
		age := now.Sub(e.startedAt)
		if age < r.maxAge {
			continue
		}
		delete(r.entries, key)
		r.group.Forget(key)
		removed = append(removed, evicted{key: key, age: age})
	}
	r.mu.Unlock()

	if r.onEvict != nil {
		for _, ev := range removed {
			r.onEvict(ev.key, ev.age)
		}
	}
	return len(removed)
}

// Clear forgets every entry and stops the sweep. Safe to call repeatedly.
func (r *Registry) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()

	for key := range r.entries {
		r.group.Forget(key)
	}
	r.entries = make(map[string]*entry)
	r.stopSweepLocked()
}

func (r *Registry) release(key string, e *entry) {
	r.mu.Lock()
	defer r.mu.Unlock()

	// Sweep or Clear may have dropped this entry already; they forgot the
	// key at that point, and a newer call may own it now.
	if cur, ok := r.entries[key]; ok && cur == e {
		r.group.Forget(key)
		delete(r.entries, key)
	}
	if len(r.entries) == 0 {
		r.stopSweepLocked()
	}
}

func (r *Registry) stopSweepLocked() {
	if !r.sweeping {
		return
	}
	close(r.stop)
	r.stop = nil
	r.sweeping = false
}

func (r *Registry) sweepLoop(stop chan struct{}) {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			r.Sweep()

			r.mu.Lock()
			if r.stop != stop {
				// Stopped and possibly restarted while sweeping.
				r.mu.Unlock()
				return
			}
			empty := len(r.entries) == 0
			if empty {
				r.stopSweepLocked()
			}
			r.mu.Unlock()
			if empty {
				return
			}
		}
	}
}
