package ledger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Redis is a [Ledger] backed by a shared Redis instance. Atomicity comes from
// single-command semantics (SET NX); expiry collection comes from key TTLs,
// so Sweep is a no-op.
type Redis struct {
	client redis.UniversalClient
	prefix string
}

// NewRedis creates a Redis-backed ledger. Keys are namespaced under
// "<prefix>:rvk:".
func NewRedis(client redis.UniversalClient, prefix string) *Redis {
	if prefix == "" {
		prefix = "ak"
	}
	return &Redis{client: client, prefix: prefix}
}

func (r *Redis) key(id string) string {
	return r.prefix + ":rvk:" + id
}

// Revoke describes the revoke operation and its observable behavior.
//
// Revoke may return an error when input validation, dependency calls, or security checks fail.
// Revoke does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (r *Redis) Revoke(ctx context.Context, id string, ttl time.Duration) error {
	if ttl <= 0 {
		// The token is already past natural expiry; a short marker keeps
		// Revoke idempotent for near-simultaneous callers.
		ttl = time.Second
	}
	if err := r.client.Set(ctx, r.key(id), "1", ttl).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return nil
}

// RevokeOnce describes the revokeonce operation and its observable behavior.
//
// RevokeOnce may return an error when input validation, dependency calls, or security checks fail.
// RevokeOnce does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (r *Redis) RevokeOnce(ctx context.Context, id string, ttl time.Duration) (bool, error) {
	if ttl <= 0 {
		ttl = time.Second
	}
	first, err := r.client.SetNX(ctx, r.key(id), "1", ttl).Result()
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return first, nil
}

// IsRevoked describes the isrevoked operation and its observable behavior.
//
// IsRevoked may return an error when input validation, dependency calls, or security checks fail.
// IsRevoked does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (r *Redis) IsRevoked(ctx context.Context, id string) (bool, error) {
	n, err := r.client.Exists(ctx, r.key(id)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return false, nil
		}
		return false, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return n > 0, nil
}

// Sweep is a no-op for the Redis backend; key TTLs collect expired entries.
func (r *Redis) Sweep(ctx context.Context, now time.Time) (int, error) {
	return 0, nil
}
