package database

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/appforge-inc/forge-engine/pkg/config"
	"github.com/appforge-inc/forge-engine/pkg/retry"
)

// NewRedisClient creates a new Redis client with the given configuration.
// Returns nil if Redis is not configured (host is empty); the generation
// cache falls back to an in-process map in that case.
func NewRedisClient(cfg *config.RedisConfig) (*redis.Client, error) {
	if cfg.Host == "" {
		return nil, nil
	}

	client := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	// Redis may still be coming up when the engine starts.
	err := retry.Do(context.Background(), nil, func() error {
		return client.Ping(context.Background()).Err()
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return client, nil
}
