package flows

import (
	"context"

	"github.com/hilomagico/authkit/token"
)

// VerifyFailureKind classifies verification failures for root-level mapping.
type VerifyFailureKind int

const (
	VerifyFailureNone VerifyFailureKind = iota
	VerifyFailureParse
)

// VerifyDeps captures access-verification dependencies.
type VerifyDeps struct {
	ParseAccess func(string) (*token.Claims, error)
}

// VerifyResult carries the authenticated subject or failure metadata.
type VerifyResult struct {
	Failure   VerifyFailureKind
	Err       error
	SubjectID string
	TokenID   string
}

// RunVerify validates an access token. The revocation ledger is deliberately
// not consulted here: access verification stays stateless for throughput, and
// logout only guarantees refresh-token invalidation.
func RunVerify(ctx context.Context, accessToken string, deps VerifyDeps) VerifyResult {
	claims, err := deps.ParseAccess(accessToken)
	if err != nil {
		return VerifyResult{
			Failure: VerifyFailureParse,
			Err:     err,
		}
	}

	return VerifyResult{
		SubjectID: claims.SubjectID,
		TokenID:   claims.ID,
	}
}
