package cache

import (
	"context"
	"time"

	"go.uber.org/zap"

	"storefront/internal/config"
)

// Cache is a JSON value cache used for catalog reads.
type Cache interface {
	// Get decodes the value at key into out. It reports false on a miss.
	Get(ctx context.Context, key string, out any) (bool, error)
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
	Delete(ctx context.Context, keys ...string) error
	// DeletePrefix removes every key starting with prefix.
	DeletePrefix(ctx context.Context, prefix string) error
	Ping(ctx context.Context) error
	Close() error
}

// New connects to redis when configured. Without a redis endpoint it returns
// a cache that stores nothing.
func New(cfg config.RedisConfig, log *zap.Logger) (Cache, error) {
	if !cfg.Enabled() {
		log.Info("Redis not configured, catalog cache disabled")
		return NopCache{}, nil
	}
	return NewRedisCache(cfg, WithLogger(log))
}

// NopCache misses on every read.
type NopCache struct{}

func (NopCache) Get(context.Context, string, any) (bool, error)        { return false, nil }
func (NopCache) Set(context.Context, string, any, time.Duration) error { return nil }
func (NopCache) Delete(context.Context, ...string) error               { return nil }
func (NopCache) DeletePrefix(context.Context, string) error            { return nil }
func (NopCache) Ping(context.Context) error                            { return nil }
func (NopCache) Close() error                                          { return nil }
