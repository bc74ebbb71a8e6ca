package review

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Cache stores reviews by key.
type Cache interface {
	// Get returns the cached review. The boolean is false on a miss.
	Get(ctx context.Context, key string) (*Review, bool, error)
	Set(ctx context.Context, key string, r *Review) error
}

// CacheKey derives the cache key for a review request.
func CacheKey(provider, filename, code string) string {
	h := sha256.New()
	for _, part := range []string{provider, filename, code} {
		h.Write([]byte(part))
		h.Write([]byte{0})
	}
	return hex.EncodeToString(h.Sum(nil))
}

// MemoryCache is an in-process cache with a TTL and a size bound.
type MemoryCache struct {
	mu         sync.Mutex
	entries    map[string]memoryEntry
	ttl        time.Duration
	maxEntries int
	now        func() time.Time
}

type memoryEntry struct {
	review  Review
	expires time.Time
}

// NewMemoryCache creates a memory cache. A zero ttl keeps entries until
// they are evicted by size; maxEntries <= 0 means 1000.
func NewMemoryCache(ttl time.Duration, maxEntries int) *MemoryCache {
	if maxEntries <= 0 {
		maxEntries = 1000
	}
	return &MemoryCache{
		entries:    make(map[string]memoryEntry),
		ttl:        ttl,
		maxEntries: maxEntries,
		now:        time.Now,
	}
}

// Get implements Cache.
func (c *MemoryCache) Get(_ context.Context, key string) (*Review, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok {
		return nil, false, nil
	}
	if !e.expires.IsZero() && c.now().After(e.expires) {
		delete(c.entries, key)
		return nil, false, nil
	}

	r := e.review
	return &r, true, nil
}

// Set implements Cache.
func (c *MemoryCache) Set(_ context.Context, key string, r *Review) error {
	if r == nil {
		return nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.entries[key]; !exists && len(c.entries) >= c.maxEntries {
		c.evictLocked()
	}

	e := memoryEntry{review: *r}
	if c.ttl > 0 {
		e.expires = c.now().Add(c.ttl)
	}
	c.entries[key] = e
	return nil
}

// evictLocked drops expired entries, or the one closest to expiry when none
// have expired.
func (c *MemoryCache) evictLocked() {
	now := c.now()
	var oldestKey string
	var oldest time.Time
	for k, e := range c.entries {
		if !e.expires.IsZero() && now.After(e.expires) {
			delete(c.entries, k)
			continue
		}
		if oldestKey == "" || e.expires.Before(oldest) {
			oldestKey, oldest = k, e.expires
		}
	}
	if len(c.entries) >= c.maxEntries && oldestKey != "" {
		delete(c.entries, oldestKey)
	}
}

// Len returns the number of cached entries.
func (c *MemoryCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// RedisCache stores reviews in Redis as JSON.
type RedisCache struct {
	rdb    *redis.Client
	ttl    time.Duration
	prefix string
}

// NewRedisCache connects to Redis and verifies the connection.
func NewRedisCache(ctx context.Context, addr, password string, db int, ttl time.Duration) (*RedisCache, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return NewRedisCacheFromClient(rdb, ttl), nil
}

// NewRedisCacheFromClient wraps an existing client.
func NewRedisCacheFromClient(rdb *redis.Client, ttl time.Duration) *RedisCache {
	return &RedisCache{rdb: rdb, ttl: ttl, prefix: "codeshield:review:"}
}

// Get implements Cache.
func (c *RedisCache) Get(ctx context.Context, key string) (*Review, bool, error) {
	data, err := c.rdb.Get(ctx, c.prefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("redis get: %w", err)
	}

	var r Review
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, false, fmt.Errorf("decode cached review: %w", err)
	}
	return &r, true, nil
}

// Set implements Cache.
func (c *RedisCache) Set(ctx context.Context, key string, r *Review) error {
	if r == nil {
		return nil
	}
	data, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("encode review: %w", err)
	}
	if err := c.rdb.Set(ctx, c.prefix+key, data, c.ttl).Err(); err != nil {
		return fmt.Errorf("redis set: %w", err)
	}
	return nil
}

// Close closes the Redis connection.
func (c *RedisCache) Close() error {
	return c.rdb.Close()
}

// CachingReviewer serves repeated reviews of identical code from a cache.
// Cache failures are logged and fall through to the wrapped reviewer.
type CachingReviewer struct {
	next   Reviewer
	cache  Cache
	logger *zap.Logger
}

// NewCachingReviewer wraps next with cache.
func NewCachingReviewer(next Reviewer, cache Cache, logger *zap.Logger) *CachingReviewer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CachingReviewer{next: next, cache: cache, logger: logger}
}

// Name returns the wrapped provider's name.
func (c *CachingReviewer) Name() string {
	return c.next.Name()
}

// IsAvailable reports the wrapped provider's availability.
func (c *CachingReviewer) IsAvailable(ctx context.Context) bool {
	return c.next.IsAvailable(ctx)
}

// ReviewCode returns a cached review when present, otherwise reviews and
// stores the result. Failed reviews are not cached.
func (c *CachingReviewer) ReviewCode(ctx context.Context, filename, code string) (*Review, error) {
	key := CacheKey(c.next.Name(), filename, code)

	cached, ok, err := c.cache.Get(ctx, key)
	if err != nil {
		c.logger.Warn("review cache read failed", zap.Error(err))
	}
	if ok {
		cached.Cached = true
		return cached, nil
	}

	r, err := c.next.ReviewCode(ctx, filename, code)
	if err != nil || r == nil {
		return r, err
	}

	if err := c.cache.Set(ctx, key, r); err != nil {
		c.logger.Warn("review cache write failed", zap.Error(err))
	}
	return r, nil
}
