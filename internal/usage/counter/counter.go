// Package counter provides the Redis-backed counter store used for usage
// quotas, plus an in-memory implementation for tests.
package counter

import (
	"context"
	"fmt"
	"path"
	"sync"
	"time"

	redis "github.com/redis/go-redis/v9"
	"github.com/smallbiznis/ordersignal/internal/usage/domain"
)

type redisStore struct {
	client *redis.Client
}

func NewRedis(client *redis.Client) domain.CounterStore {
	return &redisStore{client: client}
}

func (s *redisStore) IncrBy(ctx context.Context, key string, amount int64) (int64, error) {
	value, err := s.client.IncrBy(ctx, key, amount).Result()
	if err != nil {
		return 0, fmt.Errorf("counter incrby: %w", err)
	}
	return value, nil
}

func (s *redisStore) Get(ctx context.Context, key string) (int64, error) {
	value, err := s.client.Get(ctx, key).Int64()
	if err == redis.Nil {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("counter get: %w", err)
	}
	return value, nil
}

func (s *redisStore) ExpireAt(ctx context.Context, key string, at time.Time) error {
	return s.client.ExpireAt(ctx, key, at).Err()
}

func (s *redisStore) Keys(ctx context.Context, pattern string) ([]string, error) {
	var (
		cursor uint64
		keys   []string
	)
	for {
		batch, next, err := s.client.Scan(ctx, cursor, pattern, 100).Result()
		if err != nil {
			return nil, fmt.Errorf("counter scan: %w", err)
		}
		keys = append(keys, batch...)
		if next == 0 {
			return keys, nil
		}
		cursor = next
	}
}

// memoryStore mirrors the Redis semantics without expiry. Test use only.
type memoryStore struct {
	mu     sync.Mutex
	values map[string]int64
}

func NewMemory() domain.CounterStore {
	return &memoryStore{values: make(map[string]int64)}
}

func (s *memoryStore) IncrBy(ctx context.Context, key string, amount int64) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.values[key] += amount
	return s.values[key], nil
}

func (s *memoryStore) Get(ctx context.Context, key string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.values[key], nil
}

func (s *memoryStore) ExpireAt(ctx context.Context, key string, at time.Time) error {
	return nil
}

func (s *memoryStore) Keys(ctx context.Context, pattern string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var keys []string
	for key := range s.values {
		if ok, _ := path.Match(pattern, key); ok {
			keys = append(keys, key)
		}
	}
	return keys, nil
}
