package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand"
	"time"

	"github.com/example/storefront/internal/domain/catalog"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

var ErrCacheMiss = errors.New("cache miss")

// CatalogCache is a cache-aside decorator for a catalog client. Redis
// failures degrade to reading from the backend.
type CatalogCache struct {
	backend catalog.Client
	client  *redis.Client
	baseTTL time.Duration
	logger  zerolog.Logger
}

func NewCatalogCache(backend catalog.Client, client *redis.Client, ttl time.Duration, logger zerolog.Logger) *CatalogCache {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &CatalogCache{
		backend: backend,
		client:  client,
		baseTTL: ttl,
		logger:  logger,
	}
}

func (c *CatalogCache) ProductBySlug(ctx context.Context, slug string) (catalog.ProductSnapshot, error) {
	return cached(ctx, c, "catalog:slug:"+slug, func() (catalog.ProductSnapshot, error) {
		return c.backend.ProductBySlug(ctx, slug)
	})
}

func (c *CatalogCache) ProductByID(ctx context.Context, id string) (catalog.ProductSnapshot, error) {
	return cached(ctx, c, "catalog:id:"+id, func() (catalog.ProductSnapshot, error) {
		return c.backend.ProductByID(ctx, id)
	})
}

func (c *CatalogCache) ListProducts(ctx context.Context, limit int) ([]catalog.ProductSnapshot, error) {
	return cached(ctx, c, fmt.Sprintf("catalog:list:%d", limit), func() ([]catalog.ProductSnapshot, error) {
		return c.backend.ListProducts(ctx, limit)
	})
}

// Invalidate drops every cached catalog entry.
func (c *CatalogCache) Invalidate(ctx context.Context) error {
	iter := c.client.Scan(ctx, 0, "catalog:*", 100).Iterator()
	for iter.Next(ctx) {
		if err := c.client.Del(ctx, iter.Val()).Err(); err != nil {
			return fmt.Errorf("redis delete failed: %w", err)
		}
	}
	return iter.Err()
}

func cached[T any](ctx context.Context, c *CatalogCache, key string, load func() (T, error)) (T, error) {
	var v T
	err := c.get(ctx, key, &v)
	if err == nil {
		return v, nil
	}
	if !errors.Is(err, ErrCacheMiss) {
		c.logger.Warn().Err(err).Str("key", key).Msg("catalog cache read failed")
	}

	v, err = load()
	if err != nil {
		return v, err
	}
	if err := c.set(ctx, key, v); err != nil {
		c.logger.Warn().Err(err).Str("key", key).Msg("catalog cache write failed")
	}
	return v, nil
}

func (c *CatalogCache) get(ctx context.Context, key string, dst any) error {
	data, err := c.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return ErrCacheMiss
	}
	if err != nil {
		return fmt.Errorf("redis get failed: %w", err)
	}
	if err := json.Unmarshal(data, dst); err != nil {
		return fmt.Errorf("unmarshal failed: %w", err)
	}
	return nil
}

func (c *CatalogCache) set(ctx context.Context, key string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal failed: %w", err)
	}
	jitter := time.Duration(rand.Int63n(int64(c.baseTTL/5) + 1))
	if err := c.client.Set(ctx, key, data, c.baseTTL+jitter).Err(); err != nil {
		return fmt.Errorf("redis set failed: %w", err)
	}
	return nil
}
