package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const redisNamespace = "printstore"

type redisCmdable interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value any, ttl time.Duration) *redis.StatusCmd
	Del(ctx context.Context, keys ...string) *redis.IntCmd
}

// Redis stores slots as plain string keys that expire ttl after the last write.
type Redis struct {
	client redisCmdable
	ttl    time.Duration
}

// NewRedisClient parses url and verifies connectivity.
func NewRedisClient(ctx context.Context, url string) (*redis.Client, error) {
	if url == "" {
		return nil, errors.New("redis url is required")
	}
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parsing redis url: %w", err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return client, nil
}

// NewRedis wraps client. A ttl of zero keeps slots forever.
func NewRedis(client redisCmdable, ttl time.Duration) *Redis {
	return &Redis{client: client, ttl: ttl}
}

func redisKey(key string) string {
	return redisNamespace + ":" + key
}

func (r *Redis) Read(ctx context.Context, key string) ([]byte, error) {
	raw, err := r.client.Get(ctx, redisKey(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrSlotEmpty
	}
	if err != nil {
		return nil, fmt.Errorf("redis get: %w", err)
	}
	return raw, nil
}

func (r *Redis) Write(ctx context.Context, key string, data []byte) error {
	if err := r.client.Set(ctx, redisKey(key), data, r.ttl).Err(); err != nil {
		return fmt.Errorf("redis set: %w", err)
	}
	return nil
}

func (r *Redis) Delete(ctx context.Context, key string) error {
	if err := r.client.Del(ctx, redisKey(key)).Err(); err != nil {
		return fmt.Errorf("redis del: %w", err)
	}
	return nil
}
