package services

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// cacheKeyPrefix namespaces generation results in a shared Redis instance.
const cacheKeyPrefix = "forge:generation:"

// GenerationCache stores generation results keyed by the configuration hash.
// Population is idempotent: rewriting a key with equivalent content is
// harmless, so readers need no coordination with writers.
type GenerationCache interface {
	Get(ctx context.Context, key string) (string, bool)
	Set(ctx context.Context, key, code string)
}

// NewGenerationCache returns a Redis-backed cache when a client is provided,
// otherwise an in-process cache that lives for the engine's lifetime.
func NewGenerationCache(client *redis.Client, ttl time.Duration, logger *zap.Logger) GenerationCache {
	if client == nil {
		return &memoryCache{entries: make(map[string]string)}
	}
	return &redisCache{client: client, ttl: ttl, logger: logger.Named("gencache")}
}

type redisCache struct {
	client *redis.Client
	ttl    time.Duration
	logger *zap.Logger
}

func (c *redisCache) Get(ctx context.Context, key string) (string, bool) {
	code, err := c.client.Get(ctx, cacheKeyPrefix+key).Result()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			c.logger.Warn("cache read failed", zap.Error(err))
		}
		return "", false
	}
	return code, true
}

func (c *redisCache) Set(ctx context.Context, key, code string) {
	// Cache misses are recoverable by regenerating; never fail the pipeline
	// on a cache write.
	if err := c.client.Set(ctx, cacheKeyPrefix+key, code, c.ttl).Err(); err != nil {
		c.logger.Warn("cache write failed", zap.Error(err))
	}
}

type memoryCache struct {
	mu      sync.Mutex
	entries map[string]string
}

func (c *memoryCache) Get(_ context.Context, key string) (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	code, ok := c.entries[key]
	return code, ok
}

func (c *memoryCache) Set(_ context.Context, key, code string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = code
}
