package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisStore implements Store on a Redis backend. Every payload key is also
// recorded in a per-tag index set, so invalidating a tag deletes exactly the
// keys written under it.
type RedisStore struct {
	client *redis.Client
}

// NewRedisStore connects to the Redis instance at addr and verifies the
// connection before returning.
func NewRedisStore(ctx context.Context, addr string) (*RedisStore, error) {
	client := redis.NewClient(&redis.Options{Addr: addr})
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis at %s: %w", addr, err)
	}
	return &RedisStore{client: client}, nil
}

// Close releases the underlying Redis connection.
func (s *RedisStore) Close() error {
	return s.client.Close()
}

// Get returns the cached payload for the key, reporting whether it exists.
func (s *RedisStore) Get(ctx context.Context, tag Tag, key string) ([]byte, bool, error) {
	payload, err := s.client.Get(ctx, payloadKey(tag, key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return payload, true, nil
}

// Set stores a payload under the tag and records the key in the tag index.
func (s *RedisStore) Set(ctx context.Context, tag Tag, key string, payload []byte, ttl time.Duration) error {
	full := payloadKey(tag, key)
	if err := s.client.Set(ctx, full, payload, ttl).Err(); err != nil {
		return err
	}
	return s.client.SAdd(ctx, indexKey(tag), full).Err()
}

// Invalidate removes every payload recorded under each tag, then the tag
// indexes themselves.
func (s *RedisStore) Invalidate(ctx context.Context, tags ...Tag) error {
	for _, tag := range tags {
		index := indexKey(tag)
		keys, err := s.client.SMembers(ctx, index).Result()
		if err != nil {
			return err
		}
		keys = append(keys, index)
		if err := s.client.Del(ctx, keys...).Err(); err != nil {
			return err
		}
	}
	return nil
}

func payloadKey(tag Tag, key string) string {
	return fmt.Sprintf("cache:%s:%s", tag, key)
}

func indexKey(tag Tag) string {
	return fmt.Sprintf("cache:%s:keys", tag)
}
