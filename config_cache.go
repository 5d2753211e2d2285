package authxero

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/redis/go-redis/v9"
)

// ClientConfig is the generated integration configuration handed back to a
// registered client application.
type ClientConfig struct {
	ClientID     string    `json:"client_id"`
	Domain       string    `json:"domain"`
	PlatformType string    `json:"platform_type"`
	IssuedAt     time.Time `json:"issued_at"`
}

// ConfigCache is a short-TTL key/value store mapping a client identifier to
// its previously generated configuration, so repeated setup-completion
// calls inside the TTL window skip re-verification. Get returns nil on a
// miss; Put always overwrites.
type ConfigCache interface {
	Get(ctx context.Context, key string) (*ClientConfig, error)
	Put(ctx context.Context, key string, cfg *ClientConfig) error
}

type cacheEntry struct {
	config    *ClientConfig
	createdAt time.Time
}

// MemoryConfigCache keeps entries in process memory and evicts lazily on
// read once an entry outlives the TTL.
type MemoryConfigCache struct {
	mu      sync.Mutex
	entries map[string]cacheEntry

	ttl time.Duration
	now func() time.Time
}

// NewMemoryConfigCache creates a cache with the configured TTL.
func NewMemoryConfigCache(cfg Config) *MemoryConfigCache {
	return &MemoryConfigCache{
		entries: map[string]cacheEntry{},
		ttl:     cfg.GetConfigCacheTTL(),
		now:     time.Now,
	}
}

// WithClock injects a custom clock (useful for tests).
func (c *MemoryConfigCache) WithClock(clock func() time.Time) *MemoryConfigCache {
	if clock != nil {
		c.now = clock
	}
	return c
}

// Get implements ConfigCache.
func (c *MemoryConfigCache) Get(ctx context.Context, key string) (*ClientConfig, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.entries[key]
	if !ok {
		return nil, nil
	}

	if c.now().Sub(entry.createdAt) > c.ttl {
		delete(c.entries, key)
		return nil, nil
	}

	copied := *entry.config
	return &copied, nil
}

// Put implements ConfigCache.
func (c *MemoryConfigCache) Put(ctx context.Context, key string, cfg *ClientConfig) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	copied := *cfg
	c.entries[key] = cacheEntry{config: &copied, createdAt: c.now()}
	return nil
}

// RedisConfigCache shares entries across instances; the TTL is enforced by
// Redis itself via SET with expiry.
type RedisConfigCache struct {
	client redis.UniversalClient
	prefix string
	ttl    time.Duration
}

// NewRedisConfigCache creates a cache backed by the given Redis client.
func NewRedisConfigCache(client redis.UniversalClient, cfg Config) *RedisConfigCache {
	return &RedisConfigCache{
		client: client,
		prefix: "axcc:",
		ttl:    cfg.GetConfigCacheTTL(),
	}
}

// Get implements ConfigCache.
func (c *RedisConfigCache) Get(ctx context.Context, key string) (*ClientConfig, error) {
	raw, err := c.client.Get(ctx, c.prefix+key).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "config cache backend unavailable")
	}

	cfg := new(ClientConfig)
	if err := json.Unmarshal(raw, cfg); err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to decode cached config")
	}

	return cfg, nil
}

// Put implements ConfigCache.
func (c *RedisConfigCache) Put(ctx context.Context, key string, cfg *ClientConfig) error {
	raw, err := json.Marshal(cfg)
	if err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to encode config")
	}

	if err := c.client.Set(ctx, c.prefix+key, raw, c.ttl).Err(); err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "config cache backend unavailable")
	}

	return nil
}
