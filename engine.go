package authkit

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/hilomagico/authkit/internal/flows"
	"github.com/hilomagico/authkit/internal/rate"
	"github.com/hilomagico/authkit/ledger"
	"github.com/hilomagico/authkit/token"
)

// Engine defines a public type used by authkit APIs.
//
// Engine instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type Engine struct {
	config       Config
	codec        *token.Codec
	ledger       ledger.Ledger
	limiter      *rate.Limiter
	service      flows.Service
	audit        *auditDispatcher
	metrics      *Metrics
	userProvider UserProvider
	clock        func() time.Time

	sweepDone chan struct{}
	sweepWG   sync.WaitGroup
	closeOnce sync.Once
}

// Close describes the close operation and its observable behavior.
//
// Close may return an error when input validation, dependency calls, or security checks fail.
// Close does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (e *Engine) Close() {
	if e == nil {
		return
	}
	e.closeOnce.Do(func() {
		if e.sweepDone != nil {
			close(e.sweepDone)
			e.sweepWG.Wait()
		}
		if e.audit != nil {
			e.audit.Close()
		}
	})
}

// AuditDropped describes the auditdropped operation and its observable behavior.
//
// AuditDropped may return an error when input validation, dependency calls, or security checks fail.
// AuditDropped does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (e *Engine) AuditDropped() uint64 {
	if e == nil || e.audit == nil {
		return 0
	}
	return e.audit.Dropped()
}

// MetricsSnapshot describes the metricssnapshot operation and its observable behavior.
//
// MetricsSnapshot may return an error when input validation, dependency calls, or security checks fail.
// MetricsSnapshot does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (e *Engine) MetricsSnapshot() MetricsSnapshot {
	if e == nil || e.metrics == nil {
		return MetricsSnapshot{
			Counters:   map[MetricID]uint64{},
			Histograms: map[MetricID][]uint64{},
		}
	}
	return e.metrics.Snapshot()
}

func (e *Engine) metricInc(id MetricID) {
	if e == nil || e.metrics == nil {
		return
	}
	e.metrics.Inc(id)
}

func (e *Engine) metricAdd(id MetricID, delta uint64) {
	if e == nil || e.metrics == nil {
		return
	}
	e.metrics.Add(id, delta)
}

func (e *Engine) ready() bool {
	return e != nil && e.service.Initialized()
}

// Login describes the login operation and its observable behavior.
//
// Login may return an error when input validation, dependency calls, or security checks fail.
// Login does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (e *Engine) Login(ctx context.Context, subjectID string) (TokenPair, error) {
	if !e.ready() {
		return TokenPair{}, ErrEngineNotReady
	}
	if subjectID == "" {
		e.metricInc(MetricLoginFailure)
		return TokenPair{}, ErrUserNotFound
	}

	result := e.service.Login(ctx, subjectID)

	switch result.Failure {
	case flows.LoginFailureNone:
		e.metricInc(MetricLoginSuccess)
		e.emitAudit(ctx, auditEventLoginSuccess, true, result.SubjectID, result.TokenID, result.LineageID, nil, nil)
		return TokenPair{
			AccessToken:  result.AccessToken,
			RefreshToken: result.RefreshToken,
		}, nil

	case flows.LoginFailureNotFound:
		e.metricInc(MetricLoginFailure)
		e.emitAudit(ctx, auditEventLoginFailure, false, subjectID, "", "", ErrUserNotFound, nil)
		return TokenPair{}, ErrUserNotFound

	case flows.LoginFailureDisabled:
		e.metricInc(MetricLoginFailure)
		e.emitAudit(ctx, auditEventLoginFailure, false, subjectID, "", "", ErrUserDisabled, nil)
		return TokenPair{}, ErrUserDisabled

	case flows.LoginFailureLookup:
		e.metricInc(MetricLoginFailure)
		e.emitAudit(ctx, auditEventLoginFailure, false, subjectID, "", "", result.Err, func() map[string]string {
			return map[string]string{"reason": "user_lookup"}
		})
		return TokenPair{}, fmt.Errorf("user lookup: %w", result.Err)

	default: // flows.LoginFailureIssue
		e.metricInc(MetricLoginFailure)
		e.emitAudit(ctx, auditEventLoginFailure, false, subjectID, "", "", result.Err, func() map[string]string {
			return map[string]string{"reason": "token_issue"}
		})
		return TokenPair{}, fmt.Errorf("token issue: %w", result.Err)
	}
}

// Refresh describes the refresh operation and its observable behavior.
//
// Refresh may return an error when input validation, dependency calls, or security checks fail.
// Refresh does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (e *Engine) Refresh(ctx context.Context, refreshToken string) (TokenPair, error) {
	if !e.ready() {
		return TokenPair{}, ErrEngineNotReady
	}

	result := e.service.Refresh(ctx, refreshToken)

	if result.StorageDown {
		e.metricInc(MetricStorageDegraded)
		e.emitAudit(ctx, auditEventStorageDegraded, false, result.SubjectID, result.TokenID, result.LineageID, ErrStorageUnavailable, func() map[string]string {
			return map[string]string{"scope": "refresh"}
		})
	}

	switch result.Failure {
	case flows.RefreshFailureNone:
		e.metricInc(MetricRefreshSuccess)
		e.emitAudit(ctx, auditEventRefreshSuccess, true, result.SubjectID, result.TokenID, result.LineageID, nil, nil)
		return TokenPair{
			AccessToken:  result.AccessToken,
			RefreshToken: result.RefreshToken,
		}, nil

	case flows.RefreshFailureParse:
		e.metricInc(MetricRefreshFailure)
		err := mapTokenErr(result.Err)
		e.emitAudit(ctx, auditEventRefreshInvalid, false, "", "", "", err, nil)
		return TokenPair{}, err

	case flows.RefreshFailureReuse:
		e.metricInc(MetricRefreshReuseDetected)
		e.emitAudit(ctx, auditEventRefreshReuseDetected, false, result.SubjectID, result.TokenID, result.LineageID, ErrTokenReused, nil)
		return TokenPair{}, ErrTokenReused

	case flows.RefreshFailureRevocation:
		e.metricInc(MetricRefreshFailure)
		e.metricInc(MetricStorageDegraded)
		e.emitAudit(ctx, auditEventRefreshInvalid, false, result.SubjectID, result.TokenID, result.LineageID, ErrStorageUnavailable, nil)
		return TokenPair{}, fmt.Errorf("%w: %v", ErrStorageUnavailable, result.Err)

	default: // flows.RefreshFailureIssue
		e.metricInc(MetricRefreshFailure)
		e.emitAudit(ctx, auditEventRefreshInvalid, false, result.SubjectID, result.TokenID, result.LineageID, result.Err, func() map[string]string {
			return map[string]string{"reason": "token_issue"}
		})
		return TokenPair{}, fmt.Errorf("token issue: %w", result.Err)
	}
}

// VerifyAccess describes the verifyaccess operation and its observable behavior.
//
// VerifyAccess may return an error when input validation, dependency calls, or security checks fail.
// VerifyAccess does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
//
// VerifyAccess is a pure signature and claims check: it never consults the
// revocation ledger, so an access token stays valid until its own expiry even
// after logout. It is not audited to keep the hot path allocation-light.
func (e *Engine) VerifyAccess(ctx context.Context, accessToken string) (string, error) {
	if !e.ready() {
		return "", ErrEngineNotReady
	}

	var start time.Time
	observe := e.metrics != nil && e.metrics.LatencyEnabled()
	if observe {
		start = e.clock()
	}

	result := e.service.VerifyAccess(ctx, accessToken)

	if observe {
		e.metrics.Observe(MetricVerifyLatency, e.clock().Sub(start))
	}

	if result.Failure != flows.VerifyFailureNone {
		e.metricInc(MetricVerifyFailure)
		return "", mapTokenErr(result.Err)
	}

	e.metricInc(MetricVerifySuccess)
	return result.SubjectID, nil
}

// Logout describes the logout operation and its observable behavior.
//
// Logout may return an error when input validation, dependency calls, or security checks fail.
// Logout does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
//
// Logout is idempotent: revoking an already revoked refresh token succeeds.
// Presenting an expired refresh token is a no-op success, since revocation
// past natural expiry changes nothing.
func (e *Engine) Logout(ctx context.Context, refreshToken string) error {
	if !e.ready() {
		return ErrEngineNotReady
	}

	result := e.service.Logout(ctx, refreshToken)

	switch result.Failure {
	case flows.LogoutFailureNone:
		e.metricInc(MetricLogout)
		if !result.AlreadyExpired {
			e.emitAudit(ctx, auditEventLogout, true, result.SubjectID, result.TokenID, result.LineageID, nil, nil)
		}
		return nil

	case flows.LogoutFailureParse:
		err := mapTokenErr(result.Err)
		e.emitAudit(ctx, auditEventLogoutInvalid, false, "", "", "", err, nil)
		return err

	default: // flows.LogoutFailureRevocation
		e.metricInc(MetricStorageDegraded)
		e.emitAudit(ctx, auditEventLogoutInvalid, false, result.SubjectID, result.TokenID, result.LineageID, ErrStorageUnavailable, nil)
		return fmt.Errorf("%w: %v", ErrStorageUnavailable, result.Err)
	}
}

// Admit describes the admit operation and its observable behavior.
//
// Admit may return an error when input validation, dependency calls, or security checks fail.
// Admit does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
//
// Admit records one request for the identity key and reports whether it fits
// the fixed-window budget. Over-budget requests return ErrRateLimited with a
// Decision carrying RetryAfter. When rate limiting is disabled every request
// is admitted.
func (e *Engine) Admit(ctx context.Context, key string) (Decision, error) {
	if e == nil {
		return Decision{}, ErrEngineNotReady
	}
	if e.limiter == nil {
		return Decision{Allowed: true}, nil
	}

	decision, err := e.limiter.Admit(ctx, key)
	if err != nil {
		e.metricInc(MetricStorageDegraded)
		e.emitRateAudit(ctx, auditEventStorageDegraded, decision.Allowed, key, ErrStorageUnavailable, func() map[string]string {
			return map[string]string{"scope": "admit"}
		})
		if decision.Allowed {
			// Fail-open: degraded counter, request admitted anyway.
			e.metricInc(MetricAdmitAllowed)
			return decision, nil
		}
		e.metricInc(MetricAdmitRejected)
		return decision, fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
	}

	if !decision.Allowed {
		e.metricInc(MetricAdmitRejected)
		e.emitRateAudit(ctx, auditEventRateLimitTriggered, false, key, ErrRateLimited, nil)
		return decision, ErrRateLimited
	}

	e.metricInc(MetricAdmitAllowed)
	return decision, nil
}

// Sweep describes the sweep operation and its observable behavior.
//
// Sweep may return an error when input validation, dependency calls, or security checks fail.
// Sweep does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
//
// Sweep collects expired ledger entries and returns how many were removed.
// The Redis ledger expires entries natively, so Sweep only matters for
// backends without TTL support.
func (e *Engine) Sweep(ctx context.Context) (int, error) {
	if e == nil || e.ledger == nil {
		return 0, ErrEngineNotReady
	}

	removed, err := e.ledger.Sweep(ctx, e.clock())
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
	}
	if removed > 0 {
		e.metricAdd(MetricSweepRemoved, uint64(removed))
		e.emitAudit(ctx, auditEventSweep, true, "", "", "", nil, func() map[string]string {
			return map[string]string{"removed": fmt.Sprintf("%d", removed)}
		})
	}
	return removed, nil
}

func (e *Engine) startSweeper(interval time.Duration) {
	e.sweepDone = make(chan struct{})
	e.sweepWG.Add(1)

	go func() {
		defer e.sweepWG.Done()
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				_, _ = e.Sweep(context.Background())
			case <-e.sweepDone:
				return
			}
		}
	}()
}

// mapTokenErr translates token codec sentinels into the exported taxonomy.
func mapTokenErr(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, token.ErrExpired):
		return ErrTokenExpired
	case errors.Is(err, token.ErrInvalidSignature):
		return ErrInvalidSignature
	case errors.Is(err, token.ErrWrongKind):
		return ErrWrongTokenKind
	default:
		return ErrTokenMalformed
	}
}
