package rate

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisCounter implements [Counter] on shared Redis state so the budget is
// enforced across processes.
type RedisCounter struct {
	client redis.UniversalClient
	prefix string
}

// NewRedisCounter creates a Redis-backed window counter. Keys are namespaced
// under "<prefix>:rw:".
func NewRedisCounter(client redis.UniversalClient, prefix string) *RedisCounter {
	if prefix == "" {
		prefix = "ak"
	}
	return &RedisCounter{client: client, prefix: prefix}
}

func (c *RedisCounter) key(identity string) string {
	return c.prefix + ":rw:" + identity
}

// Incr describes the incr operation and its observable behavior.
//
// Incr may return an error when input validation, dependency calls, or security checks fail.
// Incr does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (c *RedisCounter) Incr(ctx context.Context, identity string, window time.Duration) (int64, time.Duration, error) {
	key := c.key(identity)

	count, err := c.client.Incr(ctx, key).Result()
	if err != nil {
		return 0, 0, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	// Fixed-window semantics: the first hit in the window owns the TTL.
	if count == 1 {
		if err := c.client.PExpire(ctx, key, window).Err(); err != nil {
			return 0, 0, fmt.Errorf("%w: %v", ErrUnavailable, err)
		}
		return count, window, nil
	}

	reset, err := c.client.PTTL(ctx, key).Result()
	if err != nil {
		return 0, 0, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if reset < 0 {
		// The key lost its TTL (e.g. restored snapshot); reassert the window
		// rather than leaving an immortal counter.
		if err := c.client.PExpire(ctx, key, window).Err(); err != nil {
			return 0, 0, fmt.Errorf("%w: %v", ErrUnavailable, err)
		}
		reset = window
	}

	return count, reset, nil
}
