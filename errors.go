package authkit

import "errors"

var (
	// ErrTokenMalformed is an exported constant or variable used by the authentication core.
	ErrTokenMalformed = errors.New("malformed token")
	// ErrInvalidSignature is an exported constant or variable used by the authentication core.
	ErrInvalidSignature = errors.New("invalid token signature")
	// ErrTokenExpired is an exported constant or variable used by the authentication core.
	ErrTokenExpired = errors.New("token expired")
	// ErrWrongTokenKind is returned when an access token is presented where a
	// refresh token is required, or vice versa.
	ErrWrongTokenKind = errors.New("wrong token kind")
	// ErrTokenReused is returned when a rotated or revoked refresh token is
	// presented again. Callers should treat it as a possible compromise signal.
	ErrTokenReused = errors.New("refresh token reuse detected")
	// ErrRateLimited is an exported constant or variable used by the authentication core.
	ErrRateLimited = errors.New("rate limited")
	// ErrStorageUnavailable is returned when the revocation ledger or rate
	// counter backend cannot be reached and the configured failure policy is
	// fail-closed.
	ErrStorageUnavailable = errors.New("storage unavailable")
	// ErrUserNotFound is an exported constant or variable used by the authentication core.
	ErrUserNotFound = errors.New("user not found")
	// ErrUserDisabled is an exported constant or variable used by the authentication core.
	ErrUserDisabled = errors.New("user disabled")
	// ErrEngineNotReady is an exported constant or variable used by the authentication core.
	ErrEngineNotReady = errors.New("engine not initialized")
)
