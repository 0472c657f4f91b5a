package service

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// SettingsCache is the read-through cache in front of the settings store.
type SettingsCache interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string, ttl time.Duration) error
	Delete(ctx context.Context, keys ...string) error
}

type redisSettingsCache struct {
	client *redis.Client
}

// NewRedisSettingsCache wraps a Redis client as a SettingsCache.
func NewRedisSettingsCache(client *redis.Client) SettingsCache {
	return &redisSettingsCache{client: client}
}

func (c *redisSettingsCache) Get(ctx context.Context, key string) (string, bool, error) {
	val, err := c.client.Get(ctx, key).Result()
	if err == redis.Nil {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return val, true, nil
}

func (c *redisSettingsCache) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	return c.client.Set(ctx, key, value, ttl).Err()
}

func (c *redisSettingsCache) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	return c.client.Del(ctx, keys...).Err()
}
