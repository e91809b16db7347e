package maintenance

import (
	"context"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// Cache stores whether a maintenance window was last observed active,
// keyed by window name. It exists so a tick doesn't have to call SSM for
// every schedule that shares a window.
type Cache interface {
	Get(ctx context.Context, key string) (active bool, found bool, err error)
	Set(ctx context.Context, key string, active bool, ttl time.Duration) error
}

// RedisCache backs Cache with go-redis, for orchestrator replicas that
// need to share the cache across processes.
type RedisCache struct {
	client *redis.Client
}

// NewRedisCache wraps an existing redis client. The caller owns the
// client's lifecycle (creation, Close).
func NewRedisCache(client *redis.Client) *RedisCache {
	return &RedisCache{client: client}
}

func (c *RedisCache) Get(ctx context.Context, key string) (bool, bool, error) {
	val, err := c.client.Get(ctx, cacheKey(key)).Result()
	if err == redis.Nil {
		return false, false, nil
	}
	if err != nil {
		return false, false, err
	}
	return val == "1", true, nil
}

func (c *RedisCache) Set(ctx context.Context, key string, active bool, ttl time.Duration) error {
	val := "0"
	if active {
		val = "1"
	}
	return c.client.Set(ctx, cacheKey(key), val, ttl).Err()
}

func cacheKey(key string) string {
	return "fleetsched:maintwindow:" + key
}

// InProcessCache is the fallback Cache used when Redis is unreachable or
// not configured — a single replica still gets the benefit of not calling
// SSM on every resource within the same tick.
type InProcessCache struct {
	mu      sync.Mutex
	entries map[string]inProcessEntry
}

type inProcessEntry struct {
	active  bool
	expires time.Time
}

// NewInProcessCache builds an empty in-memory cache.
func NewInProcessCache() *InProcessCache {
	return &InProcessCache{entries: make(map[string]inProcessEntry)}
}

func (c *InProcessCache) Get(_ context.Context, key string) (bool, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[key]
	if !ok || time.Now().After(e.expires) {
		return false, false, nil
	}
	return e.active, true, nil
}

func (c *InProcessCache) Set(_ context.Context, key string, active bool, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = inProcessEntry{active: active, expires: time.Now().Add(ttl)}
	return nil
}

// FallbackCache tries primary first; any error (including a down Redis)
// falls through to secondary instead of failing the caller.
type FallbackCache struct {
	primary   Cache
	secondary Cache
}

// NewFallbackCache pairs a primary cache (typically Redis) with a
// secondary one (typically InProcessCache) that absorbs primary outages.
func NewFallbackCache(primary, secondary Cache) *FallbackCache {
	return &FallbackCache{primary: primary, secondary: secondary}
}

func (c *FallbackCache) Get(ctx context.Context, key string) (bool, bool, error) {
	active, found, err := c.primary.Get(ctx, key)
	if err != nil {
		return c.secondary.Get(ctx, key)
	}
	return active, found, nil
}

func (c *FallbackCache) Set(ctx context.Context, key string, active bool, ttl time.Duration) error {
	if err := c.primary.Set(ctx, key, active, ttl); err != nil {
		return c.secondary.Set(ctx, key, active, ttl)
	}
	return nil
}
