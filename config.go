package authkit

import (
	"errors"
	"time"
)

// Config defines a public type used by authkit APIs.
//
// Config instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type Config struct {
	Token      TokenConfig
	RateLimit  RateLimitConfig
	Revocation RevocationConfig
	Audit      AuditConfig
	Metrics    MetricsConfig
}

/*
====================================
TOKEN CONFIG
====================================
*/

// TokenConfig defines a public type used by authkit APIs.
//
// TokenConfig instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type TokenConfig struct {
	SecretKey  []byte
	Algorithm  string // "hs256" (default), "hs384", "hs512"
	AccessTTL  time.Duration
	RefreshTTL time.Duration
	Issuer     string
	Leeway     time.Duration
}

/*
====================================
RATE LIMIT CONFIG
====================================
*/

// FailurePolicy selects the behavior when the backing store for a check
// cannot be reached: reject the request (safe) or let it through (available).
type FailurePolicy int

const (
	// FailClosed is an exported constant or variable used by the authentication core.
	FailClosed FailurePolicy = iota
	// FailOpen is an exported constant or variable used by the authentication core.
	FailOpen
)

// RateLimitConfig defines a public type used by authkit APIs.
//
// The original deployment configured a bare request count; the window it
// applies to must be explicit here. The default interprets that count as
// requests per 60-second fixed window.
type RateLimitConfig struct {
	Enabled       bool
	MaxRequests   int
	Window        time.Duration
	FailurePolicy FailurePolicy
	RedisPrefix   string
}

/*
====================================
REVOCATION CONFIG
====================================
*/

// RevocationConfig defines a public type used by authkit APIs.
//
// RevocationConfig instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type RevocationConfig struct {
	RedisPrefix   string
	FailurePolicy FailurePolicy
	SweepInterval time.Duration // 0 disables the background sweeper
}

// AuditConfig defines a public type used by authkit APIs.
//
// AuditConfig instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type AuditConfig struct {
	Enabled    bool
	BufferSize int
	DropIfFull bool
}

// MetricsConfig defines a public type used by authkit APIs.
//
// MetricsConfig instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type MetricsConfig struct {
	Enabled                 bool
	EnableLatencyHistograms bool
}

/*
====================================
DEFAULT CONFIG
====================================
*/

// DefaultConfig describes the defaultconfig operation and its observable behavior.
//
// DefaultConfig may return an error when input validation, dependency calls, or security checks fail.
// DefaultConfig does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func DefaultConfig() Config {
	return defaultConfig()
}

func defaultConfig() Config {
	return Config{
		Token: TokenConfig{
			Algorithm:  "hs256",
			AccessTTL:  15 * time.Minute,
			RefreshTTL: 30 * 24 * time.Hour,
			Leeway:     0,
		},
		RateLimit: RateLimitConfig{
			Enabled:       true,
			MaxRequests:   100,
			Window:        time.Minute,
			FailurePolicy: FailClosed,
			RedisPrefix:   "ak",
		},
		Revocation: RevocationConfig{
			RedisPrefix:   "ak",
			FailurePolicy: FailClosed,
			SweepInterval: 0,
		},
		Audit: AuditConfig{
			Enabled:    false,
			BufferSize: 1024,
			DropIfFull: true,
		},
		Metrics: MetricsConfig{
			Enabled:                 false,
			EnableLatencyHistograms: false,
		},
	}
}

func cloneConfig(cfg Config) Config {
	out := cfg
	out.Token.SecretKey = cloneBytes(cfg.Token.SecretKey)
	return out
}

func cloneBytes(b []byte) []byte {
	if len(b) == 0 {
		return nil
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out
}

/*
====================================
VALIDATION
====================================
*/

// Validate describes the validate operation and its observable behavior.
//
// Validate may return an error when input validation, dependency calls, or security checks fail.
// Validate does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (c *Config) Validate() error {
	// Token
	if len(c.Token.SecretKey) == 0 {
		return errors.New("Token SecretKey is required")
	}
	switch c.Token.Algorithm {
	case "hs256", "hs384", "hs512":
		// valid
	default:
		return errors.New("unsupported Token Algorithm")
	}
	if c.Token.AccessTTL <= 0 {
		return errors.New("Token AccessTTL must be > 0")
	}
	if c.Token.RefreshTTL <= 0 {
		return errors.New("Token RefreshTTL must be > 0")
	}
	if c.Token.AccessTTL >= c.Token.RefreshTTL {
		return errors.New("Token AccessTTL must be < RefreshTTL")
	}
	if c.Token.Leeway < 0 || c.Token.Leeway > 2*time.Minute {
		return errors.New("Token Leeway must be between 0 and 2m")
	}

	// Rate limiting
	if c.RateLimit.Enabled {
		if c.RateLimit.MaxRequests <= 0 {
			return errors.New("RateLimit MaxRequests must be > 0")
		}
		if c.RateLimit.Window <= 0 {
			return errors.New("RateLimit Window must be > 0")
		}
		switch c.RateLimit.FailurePolicy {
		case FailClosed, FailOpen:
			// valid
		default:
			return errors.New("RateLimit FailurePolicy is invalid")
		}
	}

	// Revocation
	switch c.Revocation.FailurePolicy {
	case FailClosed, FailOpen:
		// valid
	default:
		return errors.New("Revocation FailurePolicy is invalid")
	}
	if c.Revocation.SweepInterval < 0 {
		return errors.New("Revocation SweepInterval must be >= 0")
	}

	// Audit
	if c.Audit.Enabled {
		if c.Audit.BufferSize <= 0 {
			return errors.New("Audit BufferSize must be > 0 when audit is enabled")
		}
	}

	return nil
}
