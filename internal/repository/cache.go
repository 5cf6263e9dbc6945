package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"marketplace-api/internal/models"
)

const keyTopStores = "marketplace:stores:top"

// StoreListCache holds the public top-stores listing between writes.
type StoreListCache interface {
	GetTopStores(ctx context.Context) ([]models.Store, bool, error)
	SetTopStores(ctx context.Context, stores []models.Store) error
	Invalidate(ctx context.Context) error
}

// ClosableStoreCache is a StoreListCache owning a connection that must be
// released on shutdown.
type ClosableStoreCache interface {
	StoreListCache
	Close() error
}

type RedisStoreCache struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisStoreCache(redisURL string, ttl time.Duration) (*RedisStoreCache, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("invalid redis url: %w", err)
	}
	return &RedisStoreCache{client: redis.NewClient(opts), ttl: ttl}, nil
}

// ConnectStoreCache returns a Redis-backed cache when redisURL is set and
// answers a ping. Otherwise it returns NoopStoreCache, together with the
// reason when redis was configured but unusable.
func ConnectStoreCache(ctx context.Context, redisURL string, ttl time.Duration) (ClosableStoreCache, error) {
	if redisURL == "" {
		return NoopStoreCache{}, nil
	}

	cache, err := NewRedisStoreCache(redisURL, ttl)
	if err != nil {
		return NoopStoreCache{}, err
	}
	if err := cache.Ping(ctx); err != nil {
		cache.Close()
		return NoopStoreCache{}, fmt.Errorf("redis unreachable: %w", err)
	}
	return cache, nil
}

func (c *RedisStoreCache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

func (c *RedisStoreCache) GetTopStores(ctx context.Context) ([]models.Store, bool, error) {
	data, err := c.client.Get(ctx, keyTopStores).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to read store cache: %w", err)
	}

	var stores []models.Store
	if err := json.Unmarshal(data, &stores); err != nil {
		return nil, false, fmt.Errorf("failed to decode store cache: %w", err)
	}
	return stores, true, nil
}

func (c *RedisStoreCache) SetTopStores(ctx context.Context, stores []models.Store) error {
	data, err := json.Marshal(stores)
	if err != nil {
		return fmt.Errorf("failed to encode store cache: %w", err)
	}
	if err := c.client.Set(ctx, keyTopStores, data, c.ttl).Err(); err != nil {
		return fmt.Errorf("failed to write store cache: %w", err)
	}
	return nil
}

func (c *RedisStoreCache) Invalidate(ctx context.Context) error {
	if err := c.client.Del(ctx, keyTopStores).Err(); err != nil {
		return fmt.Errorf("failed to invalidate store cache: %w", err)
	}
	return nil
}

func (c *RedisStoreCache) Close() error {
	return c.client.Close()
}

// NoopStoreCache is used when no redis is configured.
type NoopStoreCache struct{}

func (NoopStoreCache) GetTopStores(context.Context) ([]models.Store, bool, error) { return nil, false, nil }
func (NoopStoreCache) SetTopStores(context.Context, []models.Store) error         { return nil }
func (NoopStoreCache) Invalidate(context.Context) error                           { return nil }
func (NoopStoreCache) Close() error                                               { return nil }
