package cache

import (
	"context"
	"encoding/json"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"
)

// Default TTLs. Rendered artifacts go stale faster than plain rows.
const (
	DefaultTTL  = 5 * time.Minute
	ArtifactTTL = 1 * time.Minute
)

// sweepEvery triggers a full expiry sweep after this many insertions;
// expired entries are otherwise evicted lazily on read.
const sweepEvery = 100

type entry struct {
	data       []byte
	insertedAt time.Time
	ttl        time.Duration
}

func (e *entry) expired(now time.Time) bool {
	return now.Sub(e.insertedAt) > e.ttl
}

// Stats is a snapshot of cache effectiveness counters.
type Stats struct {
	Hits    int64   `json:"hits"`
	Misses  int64   `json:"misses"`
	Entries int     `json:"entries"`
	HitRate float64 `json:"hitRate"`
}

// Cache is a process-wide TTL cache with an in-memory L1 tier and an
// optional Redis L2 tier. The L2 client may be nil; everything degrades
// gracefully to L1 only, mirroring how the repositories treat Redis.
type Cache struct {
	mu      sync.RWMutex
	items   map[string]*entry
	redis   *redis.Client
	ttl     time.Duration
	inserts uint64
	hits    int64
	misses  int64
}

// New creates a cache with the given default TTL. redisClient may be nil.
func New(redisClient *redis.Client, defaultTTL time.Duration) *Cache {
	if defaultTTL <= 0 {
		defaultTTL = DefaultTTL
	}
	return &Cache{
		items: make(map[string]*entry),
		redis: redisClient,
		ttl:   defaultTTL,
	}
}

// Get reads a key into dest (a pointer), recording hit/miss. L1 is
// consulted first, then Redis; an L2 hit repopulates L1.
func (c *Cache) Get(ctx context.Context, key string, dest interface{}) bool {
	now := time.Now()

	c.mu.RLock()
	e, ok := c.items[key]
	c.mu.RUnlock()

	if ok {
		if e.expired(now) {
			c.mu.Lock()
			delete(c.items, key)
			c.mu.Unlock()
		} else if json.Unmarshal(e.data, dest) == nil {
			atomic.AddInt64(&c.hits, 1)
			return true
		}
	}

	if c.redis != nil {
		data, err := c.redis.Get(ctx, key).Bytes()
		if err == nil && json.Unmarshal(data, dest) == nil {
			c.mu.Lock()
			c.items[key] = &entry{data: data, insertedAt: now, ttl: c.ttl}
			c.mu.Unlock()
			atomic.AddInt64(&c.hits, 1)
			return true
		}
	}

	atomic.AddInt64(&c.misses, 1)
	return false
}

// Set stores a value under the default TTL.
func (c *Cache) Set(ctx context.Context, key string, value interface{}) {
	c.SetWithTTL(ctx, key, value, c.ttl)
}

// SetWithTTL stores a value with an explicit TTL in both tiers.
func (c *Cache) SetWithTTL(ctx context.Context, key string, value interface{}, ttl time.Duration) {
	data, err := json.Marshal(value)
	if err != nil {
		return
	}

	c.mu.Lock()
	c.items[key] = &entry{data: data, insertedAt: time.Now(), ttl: ttl}
	n := atomic.AddUint64(&c.inserts, 1)
	if n%sweepEvery == 0 {
		c.sweepLocked()
	}
	c.mu.Unlock()

	if c.redis != nil {
		_ = c.redis.Set(ctx, key, data, ttl).Err()
	}
}

// Delete drops a single key from both tiers.
func (c *Cache) Delete(ctx context.Context, key string) {
	c.mu.Lock()
	delete(c.items, key)
	c.mu.Unlock()

	if c.redis != nil {
		_ = c.redis.Del(ctx, key).Err()
	}
}

// DeletePrefix drops every key with the given prefix. Used to invalidate
// per-merchant groups (lists, search results) on write.
func (c *Cache) DeletePrefix(ctx context.Context, prefix string) {
	c.mu.Lock()
	for key := range c.items {
		if strings.HasPrefix(key, prefix) {
			delete(c.items, key)
		}
	}
	c.mu.Unlock()

	if c.redis != nil {
		iter := c.redis.Scan(ctx, 0, prefix+"*", 100).Iterator()
		var keys []string
		for iter.Next(ctx) {
			keys = append(keys, iter.Val())
		}
		if len(keys) > 0 {
			_ = c.redis.Del(ctx, keys...).Err()
		}
	}
}

// Stats returns the hit/miss counters and current entry count.
func (c *Cache) Stats() Stats {
	hits := atomic.LoadInt64(&c.hits)
	misses := atomic.LoadInt64(&c.misses)

	c.mu.RLock()
	entries := len(c.items)
	c.mu.RUnlock()

	var rate float64
	if hits+misses > 0 {
		rate = float64(hits) / float64(hits+misses)
	}
	return Stats{Hits: hits, Misses: misses, Entries: entries, HitRate: rate}
}

// HitRate reports cache effectiveness for the metrics collector.
func (c *Cache) HitRate() float64 {
	return c.Stats().HitRate
}

// sweepLocked removes expired entries. Caller holds the write lock.
func (c *Cache) sweepLocked() {
	now := time.Now()
	for key, e := range c.items {
		if e.expired(now) {
			delete(c.items, key)
		}
	}
}
