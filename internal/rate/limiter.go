package rate

import (
	"context"
	"errors"
	"time"
)

// ErrUnavailable is an exported constant or variable used by the authentication core.
var ErrUnavailable = errors.New("rate counter unavailable")

// Policy selects behavior when the counter backend fails.
type Policy int

const (
	// FailClosed rejects requests when the counter cannot be reached.
	FailClosed Policy = iota
	// FailOpen admits requests when the counter cannot be reached.
	FailOpen
)

// Config holds limiter tuning parameters.
type Config struct {
	Limit  int
	Window time.Duration
	Policy Policy
}

// Decision is the admission verdict for one request. RetryAfter is only
// meaningful when Allowed is false: the time until the current window resets.
type Decision struct {
	Allowed    bool
	Remaining  int
	RetryAfter time.Duration
}

// Counter is the storage primitive: atomically increment the key's counter
// for the current window and report the post-increment count plus the time
// remaining until the window resets.
type Counter interface {
	Incr(ctx context.Context, key string, window time.Duration) (count int64, reset time.Duration, err error)
}

// Limiter enforces a fixed-window request budget per identity key.
type Limiter struct {
	counter Counter
	config  Config
}

// New creates a [Limiter] over the given counter backend.
func New(counter Counter, cfg Config) *Limiter {
	return &Limiter{counter: counter, config: cfg}
}

// Admit records one request for key and decides whether it is within budget.
// On storage failure the returned Decision reflects the configured policy and
// err wraps ErrUnavailable so the caller can account for the degradation.
func (l *Limiter) Admit(ctx context.Context, key string) (Decision, error) {
	count, reset, err := l.counter.Incr(ctx, key, l.config.Window)
	if err != nil {
		return Decision{
			Allowed:    l.config.Policy == FailOpen,
			RetryAfter: l.config.Window,
		}, err
	}

	limit := int64(l.config.Limit)
	if count > limit {
		return Decision{
			Allowed:    false,
			RetryAfter: reset,
		}, nil
	}

	return Decision{
		Allowed:   true,
		Remaining: int(limit - count),
	}, nil
}
