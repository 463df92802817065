package services

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"time"

	"go.uber.org/zap"

	"storefront/internal/cache"
)

const (
	productListPrefix = "products:"
	categoriesKey     = "categories:all"
)

func productKey(id string) string { return "product:" + id }

// listKey derives a stable key from a listing query.
func listKey(q any) string {
	raw, _ := json.Marshal(q)
	sum := sha1.Sum(raw)
	return productListPrefix + "list:" + hex.EncodeToString(sum[:])
}

// catalogCache wraps a cache.Cache so that cache failures never fail a
// request: they are logged and treated as misses.
type catalogCache struct {
	c   cache.Cache
	ttl time.Duration
	log *zap.Logger
}

func newCatalogCache(c cache.Cache, ttl time.Duration, log *zap.Logger) catalogCache {
	if c == nil {
		c = cache.NopCache{}
	}
	return catalogCache{c: c, ttl: ttl, log: log}
}

func (cc catalogCache) get(ctx context.Context, key string, out any) bool {
	found, err := cc.c.Get(ctx, key, out)
	if err != nil {
		cc.log.Warn("Cache read failed", zap.String("key", key), zap.Error(err))
		return false
	}
	return found
}

func (cc catalogCache) set(ctx context.Context, key string, value any) {
	if err := cc.c.Set(ctx, key, value, cc.ttl); err != nil {
		cc.log.Warn("Cache write failed", zap.String("key", key), zap.Error(err))
	}
}

// invalidateProducts drops the given products and every cached listing.
func (cc catalogCache) invalidateProducts(ctx context.Context, ids ...string) {
	if len(ids) > 0 {
		keys := make([]string, len(ids))
		for i, id := range ids {
			keys[i] = productKey(id)
		}
		if err := cc.c.Delete(ctx, keys...); err != nil {
			cc.log.Warn("Cache invalidation failed", zap.Strings("keys", keys), zap.Error(err))
		}
	}
	if err := cc.c.DeletePrefix(ctx, productListPrefix); err != nil {
		cc.log.Warn("Cache invalidation failed", zap.String("prefix", productListPrefix), zap.Error(err))
	}
}

// invalidateCategories also drops listings, since they resolve category names.
func (cc catalogCache) invalidateCategories(ctx context.Context) {
	if err := cc.c.Delete(ctx, categoriesKey); err != nil {
		cc.log.Warn("Cache invalidation failed", zap.String("key", categoriesKey), zap.Error(err))
	}
	cc.invalidateProducts(ctx)
}
