package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"storefront/internal/config"
)

const (
	defaultKeyPrefix     = "storefront:"
	defaultScanBatchSize = 100
	connectTimeout       = 5 * time.Second
)

// RedisCache implements Cache on redis. Values are stored as JSON.
type RedisCache struct {
	client     *redis.Client
	ownsClient bool
	prefix     string
	logger     *zap.Logger
}

// RedisCacheOption is a functional option for configuring the cache
type RedisCacheOption func(*RedisCache)

// WithLogger sets the logger for the cache
func WithLogger(logger *zap.Logger) RedisCacheOption {
	return func(c *RedisCache) {
		c.logger = logger
	}
}

// WithKeyPrefix namespaces every key.
func WithKeyPrefix(prefix string) RedisCacheOption {
	return func(c *RedisCache) {
		c.prefix = prefix
	}
}

// NewRedisCache connects from REDIS_URL when set, otherwise from host and port.
func NewRedisCache(cfg config.RedisConfig, opts ...RedisCacheOption) (*RedisCache, error) {
	var options *redis.Options
	if cfg.URL != "" {
		parsed, err := redis.ParseURL(cfg.URL)
		if err != nil {
			return nil, fmt.Errorf("invalid redis url: %w", err)
		}
		options = parsed
	} else {
		options = &redis.Options{
			Addr:     cfg.Addr(),
			Password: cfg.Password,
			DB:       cfg.DB,
		}
	}
	client := redis.NewClient(options)

	ctx, cancel := context.WithTimeout(context.Background(), connectTimeout)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	c := NewRedisCacheWithClient(client, opts...)
	c.ownsClient = true
	c.logger.Info("Connected to Redis", zap.String("addr", options.Addr), zap.Int("db", options.DB))
	return c, nil
}

// NewRedisCacheWithClient wraps an existing client. The caller keeps
// ownership of the client.
func NewRedisCacheWithClient(client *redis.Client, opts ...RedisCacheOption) *RedisCache {
	c := &RedisCache{
		client: client,
		prefix: defaultKeyPrefix,
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = c.logger.Named("cache")
	return c
}

func (c *RedisCache) key(k string) string {
	return c.prefix + k
}

func (c *RedisCache) Get(ctx context.Context, key string, out any) (bool, error) {
	data, err := c.client.Get(ctx, c.key(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		c.logger.Debug("Cache miss", zap.String("key", key))
		return false, nil
	}
	if err != nil {
		c.logger.Error("Failed to read from cache", zap.String("key", key), zap.Error(err))
		return false, fmt.Errorf("failed to get %s from cache: %w", key, err)
	}

	if err := json.Unmarshal(data, out); err != nil {
		c.logger.Error("Failed to decode cached value", zap.String("key", key), zap.Error(err))
		// Delete corrupted cache entry
		_ = c.client.Del(ctx, c.key(key))
		return false, fmt.Errorf("failed to decode %s: %w", key, err)
	}
	return true, nil
}

func (c *RedisCache) Set(ctx context.Context, key string, value any, ttl time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to encode %s: %w", key, err)
	}
	if err := c.client.Set(ctx, c.key(key), data, ttl).Err(); err != nil {
		c.logger.Error("Failed to write to cache", zap.String("key", key), zap.Error(err))
		return fmt.Errorf("failed to set %s in cache: %w", key, err)
	}
	return nil
}

func (c *RedisCache) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	full := make([]string, len(keys))
	for i, k := range keys {
		full[i] = c.key(k)
	}
	if err := c.client.Del(ctx, full...).Err(); err != nil {
		c.logger.Error("Failed to delete cache keys", zap.Strings("keys", keys), zap.Error(err))
		return fmt.Errorf("failed to delete cache keys: %w", err)
	}
	return nil
}

// DeletePrefix walks matching keys with SCAN so redis is never blocked by KEYS.
func (c *RedisCache) DeletePrefix(ctx context.Context, prefix string) error {
	var (
		cursor  uint64
		deleted int64
	)
	pattern := c.key(prefix) + "*"
	for {
		keys, next, err := c.client.Scan(ctx, cursor, pattern, defaultScanBatchSize).Result()
		if err != nil {
			c.logger.Error("Failed to scan cache keys", zap.String("pattern", pattern), zap.Error(err))
			return fmt.Errorf("failed to scan cache keys: %w", err)
		}
		if len(keys) > 0 {
			n, err := c.client.Del(ctx, keys...).Result()
			if err != nil {
				return fmt.Errorf("failed to delete cache keys: %w", err)
			}
			deleted += n
		}
		cursor = next
		if cursor == 0 {
			break
		}
	}
	c.logger.Debug("Invalidated cache prefix", zap.String("prefix", prefix), zap.Int64("deleted", deleted))
	return nil
}

func (c *RedisCache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

// Close closes the client only if this cache created it.
func (c *RedisCache) Close() error {
	if !c.ownsClient {
		return nil
	}
	return c.client.Close()
}
