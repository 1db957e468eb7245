package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// RedisKV keeps values in redis so several machines can share favorites.
type RedisKV struct {
	rdb    *redis.Client
	prefix string
}

// NewRedisKV connects to redisURL, which may be a redis:// URL or host:port.
func NewRedisKV(redisURL, prefix string) (*RedisKV, error) {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		opt = &redis.Options{Addr: redisURL}
	}

	rdb := redis.NewClient(opt)
	if err := rdb.Ping(context.Background()).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}
	return &RedisKV{rdb: rdb, prefix: prefix}, nil
}

func (s *RedisKV) key(k string) string {
	return s.prefix + k
}

func (s *RedisKV) Get(ctx context.Context, key string) (string, bool, error) {
	val, err := s.rdb.Get(ctx, s.key(key)).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	} else if err != nil {
		return "", false, err
	}
	return val, true, nil
}

func (s *RedisKV) Set(ctx context.Context, key, value string) error {
	return s.rdb.Set(ctx, s.key(key), value, 0).Err()
}

func (s *RedisKV) Close() error {
	if s.rdb == nil {
		return nil
	}
	return s.rdb.Close()
}
