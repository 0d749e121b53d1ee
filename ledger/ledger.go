package ledger

import (
	"context"
	"errors"
	"time"
)

// ErrUnavailable is an exported constant or variable used by the authentication core.
var ErrUnavailable = errors.New("revocation storage unavailable")

// Ledger is the minimal key-value surface the auth service needs from a
// revocation store. Implementations must make each operation atomic with
// respect to concurrent callers sharing the same id; cross-id operations need
// no coordination.
type Ledger interface {
	// Revoke marks id invalid for ttl. Idempotent: revoking an already
	// revoked id is not an error.
	Revoke(ctx context.Context, id string, ttl time.Duration) error

	// RevokeOnce marks id invalid for ttl and reports whether this caller was
	// the first to do so. At most one of any set of concurrent callers
	// receives first=true.
	RevokeOnce(ctx context.Context, id string, ttl time.Duration) (first bool, err error)

	// IsRevoked reports whether id is currently revoked.
	IsRevoked(ctx context.Context, id string) (bool, error)

	// Sweep removes entries whose implied expiry has passed and returns how
	// many were collected. Maintenance only; never required per request.
	Sweep(ctx context.Context, now time.Time) (int, error)
}
