package token

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Kind discriminates the two credential types inside the signed payload.
type Kind string

const (
	// KindAccess is an exported constant or variable used by the authentication core.
	KindAccess Kind = "access"
	// KindRefresh is an exported constant or variable used by the authentication core.
	KindRefresh Kind = "refresh"
)

var (
	// ErrMalformed is returned when the input cannot be parsed as a token.
	ErrMalformed = errors.New("malformed token")
	// ErrInvalidSignature is returned when the signature does not verify.
	ErrInvalidSignature = errors.New("invalid token signature")
	// ErrExpired is returned when a well-formed, correctly signed token is
	// past its expiry.
	ErrExpired = errors.New("token expired")
	// ErrWrongKind is returned when the token kind does not match the caller's
	// expectation.
	ErrWrongKind = errors.New("wrong token kind")
)

// Algorithm defines a public type used by authkit APIs.
//
// Algorithm instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type Algorithm string

const (
	// AlgHS256 is an exported constant or variable used by the authentication core.
	AlgHS256 Algorithm = "hs256"
	// AlgHS384 is an exported constant or variable used by the authentication core.
	AlgHS384 Algorithm = "hs384"
	// AlgHS512 is an exported constant or variable used by the authentication core.
	AlgHS512 Algorithm = "hs512"
)

// Config defines a public type used by authkit APIs.
//
// Config instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type Config struct {
	SecretKey  []byte
	Algorithm  Algorithm
	AccessTTL  time.Duration
	RefreshTTL time.Duration
	Issuer     string
	Leeway     time.Duration
	Now        func() time.Time
}

// Claims is the signed token payload. SubjectID and Kind ride in private
// claims; everything else uses the registered claim set (jti, iat, exp, iss).
type Claims struct {
	SubjectID string `json:"uid"`
	Kind      Kind   `json:"knd"`
	LineageID string `json:"lin,omitempty"`
	jwt.RegisteredClaims
}

// TokenID returns the unique identifier assigned at issue time.
func (c *Claims) TokenID() string {
	return c.ID
}

// RemainingTTL reports the time until expiry relative to now, never negative.
func (c *Claims) RemainingTTL(now time.Time) time.Duration {
	if c.ExpiresAt == nil {
		return 0
	}
	d := c.ExpiresAt.Time.Sub(now)
	if d < 0 {
		return 0
	}
	return d
}

// Codec issues and verifies signed tokens. It is immutable after NewCodec and
// safe for concurrent use.
type Codec struct {
	config Config
	method jwt.SigningMethod
}

// NewCodec describes the newcodec operation and its observable behavior.
//
// NewCodec may return an error when input validation, dependency calls, or security checks fail.
// NewCodec does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func NewCodec(cfg Config) (*Codec, error) {
	if len(cfg.SecretKey) == 0 {
		return nil, errors.New("secret key is required")
	}

	var method jwt.SigningMethod
	switch cfg.Algorithm {
	case AlgHS256, "":
		method = jwt.SigningMethodHS256
	case AlgHS384:
		method = jwt.SigningMethodHS384
	case AlgHS512:
		method = jwt.SigningMethodHS512
	default:
		return nil, errors.New("unsupported signing algorithm")
	}

	if cfg.AccessTTL <= 0 || cfg.RefreshTTL <= 0 {
		return nil, errors.New("invalid TTL configuration")
	}
	if cfg.Leeway < 0 {
		return nil, errors.New("invalid leeway configuration")
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}

	return &Codec{config: cfg, method: method}, nil
}

// AccessTTL reports the configured access-token lifetime.
func (c *Codec) AccessTTL() time.Duration { return c.config.AccessTTL }

// RefreshTTL reports the configured refresh-token lifetime.
func (c *Codec) RefreshTTL() time.Duration { return c.config.RefreshTTL }

// IssueAccess describes the issueaccess operation and its observable behavior.
//
// IssueAccess may return an error when input validation, dependency calls, or security checks fail.
// IssueAccess does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (c *Codec) IssueAccess(subjectID string) (string, *Claims, error) {
	return c.issue(subjectID, KindAccess, "", c.config.AccessTTL)
}

// IssueRefresh issues a refresh token bound to the given lineage. An empty
// lineageID starts a new lineage (login); rotations pass the existing one
// through.
func (c *Codec) IssueRefresh(subjectID, lineageID string) (string, *Claims, error) {
	if lineageID == "" {
		lineageID = uuid.NewString()
	}
	return c.issue(subjectID, KindRefresh, lineageID, c.config.RefreshTTL)
}

func (c *Codec) issue(subjectID string, kind Kind, lineageID string, ttl time.Duration) (string, *Claims, error) {
	if subjectID == "" {
		return "", nil, errors.New("empty subject id")
	}

	now := c.config.Now()
	claims := &Claims{
		SubjectID: subjectID,
		Kind:      kind,
		LineageID: lineageID,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   subjectID,
			Issuer:    c.config.Issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}

	signed, err := jwt.NewWithClaims(c.method, claims).SignedString(c.config.SecretKey)
	if err != nil {
		return "", nil, err
	}

	return signed, claims, nil
}

// Parse verifies the serialized token and returns its claims. Failures are
// always one of the typed errors above; attacker-controlled input never
// panics. The signing algorithm is pinned, so alg-substitution headers are
// rejected as invalid signatures.
func (c *Codec) Parse(serialized string, want Kind) (*Claims, error) {
	options := []jwt.ParserOption{
		jwt.WithValidMethods([]string{c.method.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithIssuedAt(),
		jwt.WithTimeFunc(c.config.Now),
	}
	if c.config.Leeway > 0 {
		options = append(options, jwt.WithLeeway(c.config.Leeway))
	}
	if c.config.Issuer != "" {
		options = append(options, jwt.WithIssuer(c.config.Issuer))
	}

	parser := jwt.NewParser(options...)
	parsed, err := parser.ParseWithClaims(serialized, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		return c.config.SecretKey, nil
	})
	if err != nil {
		return nil, mapParseError(err)
	}

	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid {
		return nil, ErrMalformed
	}
	if claims.ID == "" || claims.SubjectID == "" {
		return nil, ErrMalformed
	}
	if claims.Kind == KindRefresh && claims.LineageID == "" {
		return nil, ErrMalformed
	}
	if claims.Kind != want {
		return nil, ErrWrongKind
	}

	return claims, nil
}

// mapParseError collapses golang-jwt's error set into the codec taxonomy.
// Expiry takes precedence over generic claim errors; a correctly signed but
// expired token must surface as ErrExpired, never ErrInvalidSignature.
func mapParseError(err error) error {
	switch {
	case errors.Is(err, jwt.ErrTokenMalformed):
		return ErrMalformed
	case errors.Is(err, jwt.ErrTokenExpired):
		return ErrExpired
	case errors.Is(err, jwt.ErrTokenSignatureInvalid),
		errors.Is(err, jwt.ErrSignatureInvalid):
		return ErrInvalidSignature
	default:
		return ErrMalformed
	}
}
