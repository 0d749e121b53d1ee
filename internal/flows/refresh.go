package flows

import (
	"context"
	"time"

	"github.com/hilomagico/authkit/token"
)

// RefreshFailureKind classifies refresh flow failures for root-level mapping.
type RefreshFailureKind int

const (
	RefreshFailureNone RefreshFailureKind = iota
	RefreshFailureParse
	RefreshFailureRevocation
	RefreshFailureReuse
	RefreshFailureIssue
)

// RefreshDeps captures refresh flow dependencies.
type RefreshDeps struct {
	ParseRefresh     func(string) (*token.Claims, error)
	IsLineageRevoked func(ctx context.Context, lineageID string) (bool, error)
	RevokeTokenOnce  func(ctx context.Context, tokenID string, ttl time.Duration) (bool, error)
	RevokeLineage    func(ctx context.Context, lineageID string, ttl time.Duration) error
	IssueAccess      func(subjectID string) (string, error)
	IssueRefresh     func(subjectID, lineageID string) (tokenStr, tokenID, lineage string, err error)
	Now              func() time.Time

	// LineageTTL is the ledger lifetime for lineage revocations. It must cover
	// the longest-lived descendant, i.e. the full refresh lifetime: rotation
	// hands out refresh tokens that expire long after the replayed one.
	LineageTTL time.Duration

	// FailOpen selects the revocation-check failure policy. Fail-closed
	// (false) treats an unreachable ledger as a revoked token.
	FailOpen bool
	Warn     func(string, ...any)
}

// RefreshResult carries either the rotated token pair or failure metadata.
type RefreshResult struct {
	Failure      RefreshFailureKind
	Err          error
	SubjectID    string
	TokenID      string // old token id on failure, new token id on success
	LineageID    string
	AccessToken  string
	RefreshToken string
	StorageDown  bool // set when a ledger call failed and fail-open let the flow proceed
}

func (d RefreshDeps) lineageTTL(fallback time.Duration) time.Duration {
	if d.LineageTTL > 0 {
		return d.LineageTTL
	}
	return fallback
}

// RunRefresh executes refresh rotation and issuance logic without root
// package dependencies. Exactly one of any set of concurrent calls with the
// same token rotates; the rest fail with RefreshFailureReuse, which also
// revokes the whole lineage as a compromise response.
func RunRefresh(ctx context.Context, refreshToken string, deps RefreshDeps) RefreshResult {
	claims, err := deps.ParseRefresh(refreshToken)
	if err != nil {
		return RefreshResult{
			Failure: RefreshFailureParse,
			Err:     err,
		}
	}

	remaining := claims.RemainingTTL(deps.Now())
	storageDown := false

	lineageRevoked, err := deps.IsLineageRevoked(ctx, claims.LineageID)
	if err != nil {
		if !deps.FailOpen {
			return RefreshResult{
				Failure:   RefreshFailureRevocation,
				Err:       err,
				SubjectID: claims.SubjectID,
				TokenID:   claims.ID,
				LineageID: claims.LineageID,
			}
		}
		if deps.Warn != nil {
			deps.Warn("authkit: lineage revocation check degraded, continuing fail-open")
		}
		storageDown = true
		lineageRevoked = false
	}
	if lineageRevoked {
		return RefreshResult{
			Failure:   RefreshFailureReuse,
			SubjectID: claims.SubjectID,
			TokenID:   claims.ID,
			LineageID: claims.LineageID,
		}
	}

	first, err := deps.RevokeTokenOnce(ctx, claims.ID, remaining)
	if err != nil {
		if !deps.FailOpen {
			return RefreshResult{
				Failure:   RefreshFailureRevocation,
				Err:       err,
				SubjectID: claims.SubjectID,
				TokenID:   claims.ID,
				LineageID: claims.LineageID,
			}
		}
		if deps.Warn != nil {
			deps.Warn("authkit: rotation ledger degraded, continuing fail-open")
		}
		storageDown = true
		first = true
	}
	if !first {
		// Someone already rotated this token: replay. Kill the lineage so the
		// rotated descendant stops working too. The marker must outlive the
		// descendant, not the replayed token, or the lineage resurrects once
		// the replayed token's own expiry passes.
		if revErr := deps.RevokeLineage(ctx, claims.LineageID, deps.lineageTTL(remaining)); revErr != nil && deps.Warn != nil {
			deps.Warn("authkit: lineage revocation after reuse failed")
		}
		return RefreshResult{
			Failure:   RefreshFailureReuse,
			SubjectID: claims.SubjectID,
			TokenID:   claims.ID,
			LineageID: claims.LineageID,
		}
	}

	access, err := deps.IssueAccess(claims.SubjectID)
	if err != nil {
		return RefreshResult{
			Failure:   RefreshFailureIssue,
			Err:       err,
			SubjectID: claims.SubjectID,
			TokenID:   claims.ID,
			LineageID: claims.LineageID,
		}
	}

	refresh, newTokenID, lineage, err := deps.IssueRefresh(claims.SubjectID, claims.LineageID)
	if err != nil {
		return RefreshResult{
			Failure:   RefreshFailureIssue,
			Err:       err,
			SubjectID: claims.SubjectID,
			TokenID:   claims.ID,
			LineageID: claims.LineageID,
		}
	}

	return RefreshResult{
		Failure:      RefreshFailureNone,
		SubjectID:    claims.SubjectID,
		TokenID:      newTokenID,
		LineageID:    lineage,
		AccessToken:  access,
		RefreshToken: refresh,
		StorageDown:  storageDown,
	}
}
