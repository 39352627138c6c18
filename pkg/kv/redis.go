package kv

import (
	"context"
	"errors"
	"time"

	redisclient "github.com/angelmondragon/loyalty-portal/pkg/redis"
)

// RedisStore shares entries across processes through Redis.
type RedisStore struct {
	client *redisclient.Client
}

// NewRedisStore adapts a namespaced redis client to Store.
func NewRedisStore(client *redisclient.Client) (*RedisStore, error) {
	if client == nil {
		return nil, errors.New("redis client is required")
	}
	return &RedisStore{client: client}, nil
}

func (r *RedisStore) Get(ctx context.Context, key string) (string, error) {
	value, err := r.client.Get(ctx, key)
	if errors.Is(err, redisclient.Nil) {
		return "", ErrNotFound
	}
	return value, err
}

func (r *RedisStore) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	return r.client.Set(ctx, key, value, ttl)
}

func (r *RedisStore) Del(ctx context.Context, keys ...string) error {
	return r.client.Del(ctx, keys...)
}

func (r *RedisStore) IncrWithTTL(ctx context.Context, key string, ttl time.Duration) (int64, error) {
	return r.client.IncrWithTTL(ctx, key, ttl)
}

func (r *RedisStore) Close() error {
	return r.client.Close()
}
