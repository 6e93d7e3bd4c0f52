package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// AttemptStore implements cache.AttemptStore using a fixed-window
// counter: INCR per attempt, TTL set when the window opens. Counter and
// window expire together; the window does not slide.
type AttemptStore struct {
	client      *redis.Client
	prefix      string
	maxAttempts int
	window      time.Duration
}

// NewAttemptStore creates a new [AttemptStore] instance.
func NewAttemptStore(client *redis.Client, prefix string, maxAttempts int, window time.Duration) *AttemptStore {
	return &AttemptStore{
		client:      client,
		prefix:      prefix,
		maxAttempts: maxAttempts,
		window:      window,
	}
}

func (r *AttemptStore) key(ip string) string {
	return fmt.Sprintf("%s:ipattempt:%s", r.prefix, ip)
}

// Record bumps the counter for ip, opening a fresh window on the first
// attempt.
func (r *AttemptStore) Record(ctx context.Context, ip string) error {
	key := r.key(ip)

	count, err := r.client.Incr(ctx, key).Result()
	if err != nil {
		return fmt.Errorf("failed to increment attempt counter: %w", err)
	}
	if count == 1 {
		if err := r.client.Expire(ctx, key, r.window).Err(); err != nil {
			return fmt.Errorf("failed to set attempt window: %w", err)
		}
	}
	return nil
}

// IsBlocked reports whether ip exhausted its attempts in the current window.
func (r *AttemptStore) IsBlocked(ctx context.Context, ip string) (bool, error) {
	count, err := r.client.Get(ctx, r.key(ip)).Int()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to read attempt counter: %w", err)
	}
	return count >= r.maxAttempts, nil
}
