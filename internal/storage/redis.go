package storage

import (
	"context"
	"errors"
	"time"

	redis "github.com/redis/go-redis/v9"
)

// RedisKV stores values in Redis under a common prefix. A positive TTL is refreshed on every write.
type RedisKV struct {
	Client *redis.Client
	Prefix string
	TTL    time.Duration
}

// NewRedisKV constructs a Redis backed store.
func NewRedisKV(client *redis.Client, prefix string, ttl time.Duration) *RedisKV {
	return &RedisKV{Client: client, Prefix: prefix, TTL: ttl}
}

// Get loads the raw value for key.
func (s *RedisKV) Get(ctx context.Context, key string) (string, bool, error) {
	if s == nil || s.Client == nil {
		return "", false, ErrNotConfigured
	}
	val, err := s.Client.Get(ctx, s.Prefix+key).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", false, nil
		}
		return "", false, err
	}
	return val, true, nil
}

// Set writes value under key.
func (s *RedisKV) Set(ctx context.Context, key, value string) error {
	if s == nil || s.Client == nil {
		return ErrNotConfigured
	}
	ttl := s.TTL
	if ttl < 0 {
		ttl = 0
	}
	return s.Client.Set(ctx, s.Prefix+key, value, ttl).Err()
}

// Delete removes key. Deleting a missing key is not an error.
func (s *RedisKV) Delete(ctx context.Context, key string) error {
	if s == nil || s.Client == nil {
		return ErrNotConfigured
	}
	return s.Client.Del(ctx, s.Prefix+key).Err()
}
