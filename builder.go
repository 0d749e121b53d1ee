package authkit

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/redis/go-redis/v9"

	internalaudit "github.com/hilomagico/authkit/internal/audit"
	"github.com/hilomagico/authkit/internal/flows"
	"github.com/hilomagico/authkit/internal/rate"
	"github.com/hilomagico/authkit/ledger"
	"github.com/hilomagico/authkit/token"
)

// Builder defines a public type used by authkit APIs.
//
// Builder instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type Builder struct {
	config Config
	redis  *redis.Client

	ledger       ledger.Ledger
	userProvider UserProvider
	auditSink    AuditSink
	clock        func() time.Time

	built bool
}

// New describes the new operation and its observable behavior.
//
// New may return an error when input validation, dependency calls, or security checks fail.
// New does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func New() *Builder {
	return &Builder{
		config: defaultConfig(),
	}
}

// WithConfig describes the withconfig operation and its observable behavior.
//
// WithConfig may return an error when input validation, dependency calls, or security checks fail.
// WithConfig does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (b *Builder) WithConfig(cfg Config) *Builder {
	b.config = cloneConfig(cfg)
	return b
}

// WithRedis describes the withredis operation and its observable behavior.
//
// WithRedis may return an error when input validation, dependency calls, or security checks fail.
// WithRedis does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (b *Builder) WithRedis(client *redis.Client) *Builder {
	b.redis = client
	return b
}

// WithLedger overrides the revocation ledger backend. It takes precedence
// over the Redis-backed ledger derived from WithRedis.
func (b *Builder) WithLedger(l ledger.Ledger) *Builder {
	b.ledger = l
	return b
}

// WithUserProvider describes the withuserprovider operation and its observable behavior.
//
// WithUserProvider may return an error when input validation, dependency calls, or security checks fail.
// WithUserProvider does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (b *Builder) WithUserProvider(up UserProvider) *Builder {
	b.userProvider = up
	return b
}

// WithAuditSink describes the withauditsink operation and its observable behavior.
//
// WithAuditSink may return an error when input validation, dependency calls, or security checks fail.
// WithAuditSink does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (b *Builder) WithAuditSink(sink AuditSink) *Builder {
	b.auditSink = sink
	return b
}

// WithClock overrides the engine time source. Intended for tests; production
// builds use time.Now.
func (b *Builder) WithClock(now func() time.Time) *Builder {
	b.clock = now
	return b
}

// WithMetricsEnabled describes the withmetricsenabled operation and its observable behavior.
//
// WithMetricsEnabled may return an error when input validation, dependency calls, or security checks fail.
// WithMetricsEnabled does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (b *Builder) WithMetricsEnabled(enabled bool) *Builder {
	b.config.Metrics.Enabled = enabled
	return b
}

// WithLatencyHistograms describes the withlatencyhistograms operation and its observable behavior.
//
// WithLatencyHistograms may return an error when input validation, dependency calls, or security checks fail.
// WithLatencyHistograms does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (b *Builder) WithLatencyHistograms(enabled bool) *Builder {
	b.config.Metrics.EnableLatencyHistograms = enabled
	return b
}

// Build describes the build operation and its observable behavior.
//
// Build may return an error when input validation, dependency calls, or security checks fail.
// Build does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (b *Builder) Build() (*Engine, error) {
	if b.built {
		return nil, errors.New("builder already used")
	}

	cfg := cloneConfig(b.config)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	if b.userProvider == nil {
		return nil, errors.New("user provider required")
	}

	clock := b.clock
	if clock == nil {
		clock = time.Now
	}

	// -------- TOKEN CODEC --------
	codec, err := token.NewCodec(token.Config{
		SecretKey:  cloneBytes(cfg.Token.SecretKey),
		Algorithm:  token.Algorithm(cfg.Token.Algorithm),
		AccessTTL:  cfg.Token.AccessTTL,
		RefreshTTL: cfg.Token.RefreshTTL,
		Issuer:     cfg.Token.Issuer,
		Leeway:     cfg.Token.Leeway,
		Now:        clock,
	})
	if err != nil {
		return nil, err
	}

	// -------- REVOCATION LEDGER --------
	// Precedence: explicit ledger > Redis-backed > in-process memory.
	led := b.ledger
	if led == nil {
		if b.redis != nil {
			led = ledger.NewRedis(b.redis, cfg.Revocation.RedisPrefix)
		} else {
			led = ledger.NewMemory(clock)
		}
	}

	// -------- RATE LIMITER --------
	var limiter *rate.Limiter
	if cfg.RateLimit.Enabled {
		var counter rate.Counter
		if b.redis != nil {
			counter = rate.NewRedisCounter(b.redis, cfg.RateLimit.RedisPrefix)
		} else {
			counter = rate.NewMemoryCounter(clock)
		}
		limiter = rate.New(counter, rate.Config{
			Limit:  cfg.RateLimit.MaxRequests,
			Window: cfg.RateLimit.Window,
			Policy: ratePolicy(cfg.RateLimit.FailurePolicy),
		})
	}

	engine := &Engine{
		config:       cfg,
		codec:        codec,
		ledger:       led,
		limiter:      limiter,
		userProvider: b.userProvider,
		clock:        clock,
	}

	engine.audit = internalaudit.NewDispatcher(internalaudit.Config{
		Enabled:    cfg.Audit.Enabled,
		BufferSize: cfg.Audit.BufferSize,
		DropIfFull: cfg.Audit.DropIfFull,
	}, b.auditSink)
	engine.metrics = NewMetrics(cfg.Metrics)
	engine.service = flows.New(engine.flowDeps())

	if cfg.Revocation.SweepInterval > 0 {
		engine.startSweeper(cfg.Revocation.SweepInterval)
	}

	b.built = true

	return engine, nil
}

func ratePolicy(p FailurePolicy) rate.Policy {
	if p == FailOpen {
		return rate.FailOpen
	}
	return rate.FailClosed
}

// flowDeps wires codec and ledger closures into the flow dependency sets.
// Ledger ids are namespaced so token ids and lineage ids cannot collide:
// "t:"+jti for single tokens, "l:"+lineage for whole lineages.
func (e *Engine) flowDeps() flows.Deps {
	issueAccess := func(subjectID string) (string, error) {
		serialized, _, err := e.codec.IssueAccess(subjectID)
		return serialized, err
	}
	issueRefresh := func(subjectID, lineageID string) (string, string, string, error) {
		serialized, claims, err := e.codec.IssueRefresh(subjectID, lineageID)
		if err != nil {
			return "", "", "", err
		}
		return serialized, claims.ID, claims.LineageID, nil
	}
	parseRefresh := func(serialized string) (*token.Claims, error) {
		return e.codec.Parse(serialized, token.KindRefresh)
	}

	return flows.Deps{
		Login: flows.LoginDeps{
			LookupUser: func(ctx context.Context, subjectID string) (*flows.LoginUserRecord, error) {
				user, err := e.userProvider.GetUserByID(ctx, subjectID)
				if err != nil {
					if errors.Is(err, ErrUserNotFound) {
						return nil, nil
					}
					return nil, err
				}
				return &flows.LoginUserRecord{
					SubjectID: user.SubjectID,
					Disabled:  user.Disabled,
				}, nil
			},
			IssueAccess:  issueAccess,
			IssueRefresh: issueRefresh,
		},
		Refresh: flows.RefreshDeps{
			ParseRefresh: parseRefresh,
			IsLineageRevoked: func(ctx context.Context, lineageID string) (bool, error) {
				return e.ledger.IsRevoked(ctx, lineageKey(lineageID))
			},
			RevokeTokenOnce: func(ctx context.Context, tokenID string, ttl time.Duration) (bool, error) {
				return e.ledger.RevokeOnce(ctx, tokenKey(tokenID), ttl)
			},
			RevokeLineage: func(ctx context.Context, lineageID string, ttl time.Duration) error {
				return e.ledger.Revoke(ctx, lineageKey(lineageID), ttl)
			},
			IssueAccess:  issueAccess,
			IssueRefresh: issueRefresh,
			Now:          e.clock,
			LineageTTL:   e.codec.RefreshTTL(),
			FailOpen:     e.config.Revocation.FailurePolicy == FailOpen,
			Warn:         log.Printf,
		},
		Logout: flows.LogoutDeps{
			ParseRefresh: parseRefresh,
			RevokeToken: func(ctx context.Context, tokenID string, ttl time.Duration) error {
				return e.ledger.Revoke(ctx, tokenKey(tokenID), ttl)
			},
			RevokeLineage: func(ctx context.Context, lineageID string, ttl time.Duration) error {
				return e.ledger.Revoke(ctx, lineageKey(lineageID), ttl)
			},
			Now:        e.clock,
			LineageTTL: e.codec.RefreshTTL(),
		},
		Verify: flows.VerifyDeps{
			ParseAccess: func(serialized string) (*token.Claims, error) {
				return e.codec.Parse(serialized, token.KindAccess)
			},
		},
	}
}

func tokenKey(tokenID string) string {
	return "t:" + tokenID
}

func lineageKey(lineageID string) string {
	return "l:" + lineageID
}
