package flows

import "context"

// LoginFailureKind classifies login flow failures for root-level mapping.
type LoginFailureKind int

const (
	LoginFailureNone LoginFailureKind = iota
	LoginFailureLookup
	LoginFailureNotFound
	LoginFailureDisabled
	LoginFailureIssue
)

// LoginUserRecord is the minimal identity view the login flow needs from the
// external user store.
type LoginUserRecord struct {
	SubjectID string
	Disabled  bool
}

// LoginDeps captures login flow dependencies.
type LoginDeps struct {
	// LookupUser resolves the subject against the external user store. A nil
	// record with nil error means the subject does not exist.
	LookupUser func(ctx context.Context, subjectID string) (*LoginUserRecord, error)

	IssueAccess func(subjectID string) (string, error)

	// IssueRefresh starts a new lineage when lineageID is empty. It returns
	// the serialized token, its token id, and the lineage id it belongs to.
	IssueRefresh func(subjectID, lineageID string) (tokenStr, tokenID, lineage string, err error)
}

// LoginResult carries either the issued token pair or failure metadata.
type LoginResult struct {
	Failure      LoginFailureKind
	Err          error
	SubjectID    string
	TokenID      string
	LineageID    string
	AccessToken  string
	RefreshToken string
}

// RunLogin executes identity lookup and pair issuance without root package
// dependencies.
func RunLogin(ctx context.Context, subjectID string, deps LoginDeps) LoginResult {
	user, err := deps.LookupUser(ctx, subjectID)
	if err != nil {
		return LoginResult{
			Failure:   LoginFailureLookup,
			Err:       err,
			SubjectID: subjectID,
		}
	}
	if user == nil {
		return LoginResult{
			Failure:   LoginFailureNotFound,
			SubjectID: subjectID,
		}
	}
	if user.Disabled {
		return LoginResult{
			Failure:   LoginFailureDisabled,
			SubjectID: subjectID,
		}
	}

	access, err := deps.IssueAccess(user.SubjectID)
	if err != nil {
		return LoginResult{
			Failure:   LoginFailureIssue,
			Err:       err,
			SubjectID: user.SubjectID,
		}
	}

	refresh, tokenID, lineage, err := deps.IssueRefresh(user.SubjectID, "")
	if err != nil {
		return LoginResult{
			Failure:   LoginFailureIssue,
			Err:       err,
			SubjectID: user.SubjectID,
		}
	}

	return LoginResult{
		Failure:      LoginFailureNone,
		SubjectID:    user.SubjectID,
		TokenID:      tokenID,
		LineageID:    lineage,
		AccessToken:  access,
		RefreshToken: refresh,
	}
}
