package storage

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisClient wraps the Redis client used as a best-effort webhook
// deduplication cache. The conditional row update remains the correctness
// mechanism; this only shortcuts obvious redeliveries.
type RedisClient struct {
	client *redis.Client
	prefix string
}

// NewRedisClient creates a new Redis client
func NewRedisClient(addr, password, prefix string, db int) (*RedisClient, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	// Test connection
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	slog.Info("Redis client initialized successfully", "addr", addr)
	return &RedisClient{client: client, prefix: prefix}, nil
}

// Close closes the Redis connection
func (r *RedisClient) Close() error {
	return r.client.Close()
}

func (r *RedisClient) key(k string) string {
	return r.prefix + k
}

// MarkEventSeen records a webhook event ID and reports whether it had been
// recorded before. The set-if-absent is atomic, so concurrent redeliveries
// of the same event see it exactly once.
func (r *RedisClient) MarkEventSeen(ctx context.Context, eventID string, ttl time.Duration) (bool, error) {
	stored, err := r.client.SetNX(ctx, r.key("webhook:event:"+eventID), 1, ttl).Result()
	if err != nil {
		return false, fmt.Errorf("failed to record webhook event in Redis: %w", err)
	}
	return !stored, nil
}

// ForgetEvent drops a recorded event ID so the processor's redelivery is
// not short-circuited after a failed attempt.
func (r *RedisClient) ForgetEvent(ctx context.Context, eventID string) error {
	if err := r.client.Del(ctx, r.key("webhook:event:"+eventID)).Err(); err != nil {
		return fmt.Errorf("failed to forget webhook event in Redis: %w", err)
	}
	return nil
}
