package vortex

import (
	"context"
	"hash/fnv"
	"sync"
	"sync/atomic"
	"time"
)

const (
	defaultCacheMaxSize = 1000
	defaultCacheShards  = 16
)

// Cache stores parsed response values. Implementations must be safe for
// concurrent use and must tolerate keys they have never seen.
type Cache interface {
	Get(ctx context.Context, key string) (any, bool, error)
	Set(ctx context.Context, key string, value any, ttl time.Duration, opts ...SetOption) error
	Delete(ctx context.Context, key string) (bool, error)
	Has(ctx context.Context, key string) (bool, error)
	Clear(ctx context.Context) error
	Stats(ctx context.Context) (CacheStats, error)
}

// CacheStats is a snapshot of cache counters.
type CacheStats struct {
	Hits      int64
	Misses    int64
	Sets      int64
	Deletes   int64
	Evictions int64
	Size      int
	MaxSize   int
	HitRate   float64
}

// CacheEntry is one stored value.
type CacheEntry struct {
	Value     any
	ExpiresAt time.Time
	CreatedAt time.Time
	ETag      string
	Metadata  map[string]any
}

// SetOption decorates an entry on Set.
type SetOption func(*CacheEntry)

// WithETag records the validator of the response that produced the value.
func WithETag(etag string) SetOption {
	return func(e *CacheEntry) { e.ETag = etag }
}

// WithMetadata attaches arbitrary metadata to the entry.
func WithMetadata(md map[string]any) SetOption {
	return func(e *CacheEntry) { e.Metadata = md }
}

// MemoryCacheOptions configures a MemoryCache.
type MemoryCacheOptions struct {
	// MaxSize bounds the number of entries; least recently used entries are
	// evicted first. Defaults to 1000.
	MaxSize int
	// Shards splits the key space to reduce lock contention. Defaults to 16.
	Shards int
	// CleanupInterval enables a background sweep of expired entries.
	CleanupInterval time.Duration
	// Now is the clock, time.Now when nil.
	Now func() time.Time
}

// MemoryCache is a sharded TTL cache with LRU capacity eviction.
type MemoryCache struct {
	shards  []*cacheShard
	maxSize int
	now     func() time.Time

	hits      atomic.Int64
	misses    atomic.Int64
	sets      atomic.Int64
	deletes   atomic.Int64
	evictions atomic.Int64

	stopOnce sync.Once
	stop     chan struct{}
	done     chan struct{}
}

type cacheShard struct {
	mu         sync.Mutex
	store      map[string]*cacheNode
	head, tail *cacheNode
	maxSize    int
}

type cacheNode struct {
	key        string
	entry      CacheEntry
	prev, next *cacheNode
}

// NewMemoryCache creates an in-memory cache.
func NewMemoryCache(opts MemoryCacheOptions) *MemoryCache {
	if opts.MaxSize <= 0 {
		opts.MaxSize = defaultCacheMaxSize
	}
	if opts.Shards <= 0 {
		opts.Shards = defaultCacheShards
	}
	if opts.Shards > opts.MaxSize {
		opts.Shards = opts.MaxSize
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	perShard := (opts.MaxSize + opts.Shards - 1) / opts.Shards
	c := &MemoryCache{
		shards:  make([]*cacheShard, opts.Shards),
		maxSize: opts.MaxSize,
		now:     opts.Now,
	}
	for i := range c.shards {
		c.shards[i] = &cacheShard{store: make(map[string]*cacheNode), maxSize: perShard}
	}

	if opts.CleanupInterval > 0 {
		c.stop = make(chan struct{})
		c.done = make(chan struct{})
		go c.cleanupLoop(opts.CleanupInterval)
	}
	return c
}

func (c *MemoryCache) getShard(key string) *cacheShard {
	if len(c.shards) == 1 {
		return c.shards[0]
	}
	h := fnv.New32a()
	_, _ = h.Write([]byte(key))
	return c.shards[h.Sum32()%uint32(len(c.shards))]
}

// Get returns the value stored under key unless it has expired.
func (c *MemoryCache) Get(_ context.Context, key string) (any, bool, error) {
	entry, ok := c.lookup(key, true)
	if !ok {
		c.misses.Add(1)
		return nil, false, nil
	}
	c.hits.Add(1)
	return entry.Value, true, nil
}

// Entry returns the full entry without touching statistics or recency.
func (c *MemoryCache) Entry(key string) (CacheEntry, bool) {
	return c.lookup(key, false)
}

func (c *MemoryCache) lookup(key string, touch bool) (CacheEntry, bool) {
	shard := c.getShard(key)
	shard.mu.Lock()
	defer shard.mu.Unlock()

	node, ok := shard.store[key]
	if !ok {
		return CacheEntry{}, false
	}
	if !c.now().Before(node.entry.ExpiresAt) {
		shard.remove(node)
		return CacheEntry{}, false
	}
	if touch {
		shard.moveToFront(node)
	}
	return node.entry, true
}

// Set stores value for ttl. A non-positive ttl stores nothing.
func (c *MemoryCache) Set(_ context.Context, key string, value any, ttl time.Duration, opts ...SetOption) error {
	if ttl <= 0 {
		return nil
	}
	now := c.now()
	entry := CacheEntry{
		Value:     value,
		CreatedAt: now,
		ExpiresAt: now.Add(ttl),
	}
	for _, opt := range opts {
		opt(&entry)
	}

	shard := c.getShard(key)
	shard.mu.Lock()
	defer shard.mu.Unlock()

	if node, ok := shard.store[key]; ok {
		node.entry = entry
		shard.moveToFront(node)
		c.sets.Add(1)
		return nil
	}

	for len(shard.store) >= shard.maxSize && shard.tail != nil {
		shard.remove(shard.tail)
		c.evictions.Add(1)
	}

	node := &cacheNode{key: key, entry: entry}
	shard.store[key] = node
	shard.pushFront(node)
	c.sets.Add(1)
	return nil
}

// Delete removes key and reports whether it was present.
func (c *MemoryCache) Delete(_ context.Context, key string) (bool, error) {
	shard := c.getShard(key)
	shard.mu.Lock()
	defer shard.mu.Unlock()

	node, ok := shard.store[key]
	if !ok {
		return false, nil
	}
	shard.remove(node)
	c.deletes.Add(1)
	return true, nil
}

// Has reports whether an unexpired entry exists for key.
func (c *MemoryCache) Has(_ context.Context, key string) (bool, error) {
	_, ok := c.lookup(key, false)
	return ok, nil
}

// Clear drops every entry.
func (c *MemoryCache) Clear(_ context.Context) error {
	for _, shard := range c.shards {
		shard.mu.Lock()
		shard.store = make(map[string]*cacheNode)
		shard.head, shard.tail = nil, nil
		shard.mu.Unlock()
	}
	return nil
}

// Stats returns a snapshot of the counters.
func (c *MemoryCache) Stats(_ context.Context) (CacheStats, error) {
	size := 0
	for _, shard := range c.shards {
		shard.mu.Lock()
		size += len(shard.store)
		shard.mu.Unlock()
	}

	hits, misses := c.hits.Load(), c.misses.Load()
	var rate float64
	if total := hits + misses; total > 0 {
		rate = float64(hits) / float64(total)
	}
	return CacheStats{
		Hits:      hits,
		Misses:    misses,
		Sets:      c.sets.Load(),
		Deletes:   c.deletes.Load(),
		Evictions: c.evictions.Load(),
		Size:      size,
		MaxSize:   c.maxSize,
		HitRate:   rate,
	}, nil
}

// Close stops the cleanup goroutine. Safe to call more than once.
func (c *MemoryCache) Close() error {
	if c.stop == nil {
		return nil
	}
	c.stopOnce.Do(func() {
		close(c.stop)
		<-c.done
	})
	return nil
}

// Cleanup removes expired entries and returns how many were dropped.
func (c *MemoryCache) Cleanup() int {
	now := c.now()
	removed := 0
	for _, shard := range c.shards {
		shard.mu.Lock()
		for _, node := range shard.store {
			if !now.Before(node.entry.ExpiresAt) {
				shard.remove(node)
				removed++
			}
		}
		shard.mu.Unlock()
	}
	return removed
}

func (c *MemoryCache) cleanupLoop(interval time.Duration) {
	defer close(c.done)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-c.stop:
			return
		case <-ticker.C:
			c.Cleanup()
		}
	}
}

func (s *cacheShard) pushFront(n *cacheNode) {
	n.prev = nil
	n.next = s.head
	if s.head != nil {
		s.head.prev = n
	}
	s.head = n
	if s.tail == nil {
		s.tail = n
	}
}

func (s *cacheShard) unlink(n *cacheNode) {
	if n.prev != nil {
		n.prev.next = n.next
	} else {
		s.head = n.next
	}
	if n.next != nil {
		n.next.prev = n.prev
	} else {
		s.tail = n.prev
	}
	n.prev, n.next = nil, nil
}

func (s *cacheShard) moveToFront(n *cacheNode) {
	if s.head == n {
		return
	}
	s.unlink(n)
	s.pushFront(n)
}

func (s *cacheShard) remove(n *cacheNode) {
	s.unlink(n)
	delete(s.store, n.key)
}

// NoopCache never stores anything.
type NoopCache struct{}

func (NoopCache) Get(context.Context, string) (any, bool, error) { return nil, false, nil }
func (NoopCache) Set(context.Context, string, any, time.Duration, ...SetOption) error {
	return nil
}
func (NoopCache) Delete(context.Context, string) (bool, error) { return false, nil }
func (NoopCache) Has(context.Context, string) (bool, error)    { return false, nil }
func (NoopCache) Clear(context.Context) error                  { return nil }
func (NoopCache) Stats(context.Context) (CacheStats, error)    { return CacheStats{}, nil }
