// Package tracker counts repeated unmatched senders in Redis so the resolver
// can propose auto-registration once the same extracted company name shows up
// often enough. TTL on the per-sender hash handles decay of stale sightings.
package tracker

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/bwmarrin/snowflake"
	redis "github.com/redis/go-redis/v9"
	"github.com/smallbiznis/ordersignal/internal/company/domain"
)

const (
	keyUnmatchedSender = "company:unmatched:%s:%s"

	// DefaultWindow bounds how long old sightings count toward the
	// auto-registration threshold.
	DefaultWindow = 30 * 24 * time.Hour
)

type redisTracker struct {
	client *redis.Client
	window time.Duration
}

func NewRedis(client *redis.Client) domain.SenderTracker {
	return &redisTracker{client: client, window: DefaultWindow}
}

func senderKey(tenantID snowflake.ID, sender string) string {
	return fmt.Sprintf(keyUnmatchedSender, tenantID.String(), strings.ToLower(strings.TrimSpace(sender)))
}

func (t *redisTracker) Observe(ctx context.Context, tenantID snowflake.ID, sender, companyName string) (int64, error) {
	key := senderKey(tenantID, sender)
	count, err := t.client.HIncrBy(ctx, key, companyName, 1).Result()
	if err != nil {
		return 0, fmt.Errorf("tracker observe: %w", err)
	}
	if err := t.client.Expire(ctx, key, t.window).Err(); err != nil {
		return 0, fmt.Errorf("tracker expire: %w", err)
	}
	return count, nil
}

func (t *redisTracker) Counts(ctx context.Context, tenantID snowflake.ID, sender string) (map[string]int64, error) {
	raw, err := t.client.HGetAll(ctx, senderKey(tenantID, sender)).Result()
	if err != nil {
		return nil, fmt.Errorf("tracker counts: %w", err)
	}
	counts := make(map[string]int64, len(raw))
	for name, value := range raw {
		parsed, err := strconv.ParseInt(value, 10, 64)
		if err != nil {
			continue
		}
		counts[name] = parsed
	}
	return counts, nil
}

func (t *redisTracker) Reset(ctx context.Context, tenantID snowflake.ID, sender string) error {
	return t.client.Del(ctx, senderKey(tenantID, sender)).Err()
}

// memoryTracker mirrors the Redis behavior without TTL decay. Test use only.
type memoryTracker struct {
	mu     sync.Mutex
	counts map[string]map[string]int64
}

func NewMemory() domain.SenderTracker {
	return &memoryTracker{counts: make(map[string]map[string]int64)}
}

func (t *memoryTracker) Observe(ctx context.Context, tenantID snowflake.ID, sender, companyName string) (int64, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	key := senderKey(tenantID, sender)
	if t.counts[key] == nil {
		t.counts[key] = make(map[string]int64)
	}
	t.counts[key][companyName]++
	return t.counts[key][companyName], nil
}

func (t *memoryTracker) Counts(ctx context.Context, tenantID snowflake.ID, sender string) (map[string]int64, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make(map[string]int64)
	for name, count := range t.counts[senderKey(tenantID, sender)] {
		out[name] = count
	}
	return out, nil
}

func (t *memoryTracker) Reset(ctx context.Context, tenantID snowflake.ID, sender string) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.counts, senderKey(tenantID, sender))
	return nil
}
