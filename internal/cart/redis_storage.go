package cart

import (
	"context"
	"encoding/json"
	"fmt"

	redis "github.com/redis/go-redis/v9"

	"tiemao/storefront/internal/domain"
)

// RedisStorage keeps each cart in a single Redis key and broadcasts change
// notifications over a per-cart pub/sub channel. Other tabs subscribe to the
// channel for badge updates; there is no locking between tabs.
type RedisStorage struct {
	client *redis.Client
}

func NewRedisStorage(addr string, password string, db int) *RedisStorage {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	return &RedisStorage{client: client}
}

func (s *RedisStorage) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

func (s *RedisStorage) Close() error {
	return s.client.Close()
}

func slotKey(key string) string {
	return fmt.Sprintf("cart:%s", key)
}

func channelKey(key string) string {
	return fmt.Sprintf("cart.events:%s", key)
}

func (s *RedisStorage) Load(ctx context.Context, key string) ([]byte, error) {
	val, err := s.client.Get(ctx, slotKey(key)).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return val, nil
}

func (s *RedisStorage) Save(ctx context.Context, key string, doc []byte) error {
	return s.client.Set(ctx, slotKey(key), doc, 0).Err()
}

func (s *RedisStorage) Publish(ctx context.Context, key string, snapshot domain.CartSnapshot) error {
	payload, err := json.Marshal(snapshot)
	if err != nil {
		return err
	}
	return s.client.Publish(ctx, channelKey(key), payload).Err()
}

// Subscribe returns the pub/sub handle for one cart's change channel. The
// caller owns closing it.
func (s *RedisStorage) Subscribe(ctx context.Context, key string) *redis.PubSub {
	return s.client.Subscribe(ctx, channelKey(key))
}
