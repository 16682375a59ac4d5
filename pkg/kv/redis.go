package kv

import (
	"context"
	"errors"
	"time"

	"securestop-backend/pkg/redis"

	"github.com/m-mizutani/goerr/v2"
	goredis "github.com/redis/go-redis/v9"
)

const defaultRedisPrefix = "securestop:kv:"

// RedisStore persists values as plain Redis strings without expiry
type RedisStore struct {
	client *redis.Client
	prefix string
}

func NewRedisStore(client *redis.Client, prefix string) *RedisStore {
	if prefix == "" {
		prefix = defaultRedisPrefix
	}
	return &RedisStore{client: client, prefix: prefix}
}

func (r *RedisStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	data, err := r.client.GetClient().Get(ctx, r.prefix+key).Bytes()
	if err != nil {
		if errors.Is(err, goredis.Nil) {
			return nil, false, nil // miss, not an error
		}
		return nil, false, goerr.Wrap(err, "redis get failed", goerr.V("key", key))
	}
	return data, true, nil
}

func (r *RedisStore) Put(ctx context.Context, key string, data []byte) error {
	if err := r.client.GetClient().Set(ctx, r.prefix+key, data, time.Duration(0)).Err(); err != nil {
		return goerr.Wrap(err, "redis set failed", goerr.V("key", key))
	}
	return nil
}

func (r *RedisStore) Delete(ctx context.Context, key string) error {
	if err := r.client.GetClient().Del(ctx, r.prefix+key).Err(); err != nil {
		return goerr.Wrap(err, "redis del failed", goerr.V("key", key))
	}
	return nil
}

func (r *RedisStore) Ping(ctx context.Context) error {
	return r.client.GetClient().Ping(ctx).Err()
}

// Close leaves the shared client open; its owner closes it
func (r *RedisStore) Close() error {
	return nil
}
