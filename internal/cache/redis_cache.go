package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	redis "github.com/redis/go-redis/v9"

	"tiemao/storefront/internal/domain"
)

type RedisVariantCache struct {
	client *redis.Client
}

func NewRedisVariantCache(addr string, password string, db int) *RedisVariantCache {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	return &RedisVariantCache{client: client}
}

func (c *RedisVariantCache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

func (c *RedisVariantCache) Close() error {
	return c.client.Close()
}

func variantKey(productID string) string {
	return fmt.Sprintf("variants:%s", productID)
}

func (c *RedisVariantCache) Get(ctx context.Context, productID string) ([]domain.Variant, bool, error) {
	val, err := c.client.Get(ctx, variantKey(productID)).Result()
	if err == redis.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}

	var variants []domain.Variant
	if err := json.Unmarshal([]byte(val), &variants); err != nil {
		return nil, false, err
	}
	return variants, true, nil
}

func (c *RedisVariantCache) Set(ctx context.Context, productID string, variants []domain.Variant, ttl time.Duration) error {
	if variants == nil {
		return nil
	}
	payload, err := json.Marshal(variants)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, variantKey(productID), payload, ttl).Err()
}
