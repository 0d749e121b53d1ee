package flows

import (
	"context"
	"errors"
	"time"

	"github.com/hilomagico/authkit/token"
)

// LogoutFailureKind classifies logout flow failures for root-level mapping.
type LogoutFailureKind int

const (
	LogoutFailureNone LogoutFailureKind = iota
	LogoutFailureParse
	LogoutFailureRevocation
)

// LogoutDeps captures logout flow dependencies.
type LogoutDeps struct {
	ParseRefresh  func(string) (*token.Claims, error)
	RevokeToken   func(ctx context.Context, tokenID string, ttl time.Duration) error
	RevokeLineage func(ctx context.Context, lineageID string, ttl time.Duration) error
	Now           func() time.Time

	// LineageTTL is the ledger lifetime for the lineage revocation. Rotated
	// descendants of the presented token may expire a full refresh lifetime
	// later, so the marker cannot be keyed to this token's remaining life.
	LineageTTL time.Duration
}

// LogoutResult carries revocation metadata or failure information.
type LogoutResult struct {
	Failure        LogoutFailureKind
	Err            error
	SubjectID      string
	TokenID        string
	LineageID      string
	AlreadyExpired bool
}

// RunLogout verifies the refresh token and revokes its id and lineage.
// Revocation is idempotent, so logging out twice with the same token
// succeeds both times. An expired token is a no-op success: revocation past
// natural expiry is moot.
func RunLogout(ctx context.Context, refreshToken string, deps LogoutDeps) LogoutResult {
	claims, err := deps.ParseRefresh(refreshToken)
	if err != nil {
		if errors.Is(err, token.ErrExpired) {
			return LogoutResult{AlreadyExpired: true}
		}
		return LogoutResult{
			Failure: LogoutFailureParse,
			Err:     err,
		}
	}

	remaining := claims.RemainingTTL(deps.Now())

	if err := deps.RevokeToken(ctx, claims.ID, remaining); err != nil {
		return LogoutResult{
			Failure:   LogoutFailureRevocation,
			Err:       err,
			SubjectID: claims.SubjectID,
			TokenID:   claims.ID,
			LineageID: claims.LineageID,
		}
	}
	lineageTTL := deps.LineageTTL
	if lineageTTL <= 0 {
		lineageTTL = remaining
	}
	if err := deps.RevokeLineage(ctx, claims.LineageID, lineageTTL); err != nil {
		return LogoutResult{
			Failure:   LogoutFailureRevocation,
			Err:       err,
			SubjectID: claims.SubjectID,
			TokenID:   claims.ID,
			LineageID: claims.LineageID,
		}
	}

	return LogoutResult{
		SubjectID: claims.SubjectID,
		TokenID:   claims.ID,
		LineageID: claims.LineageID,
	}
}
