package authkit

import (
	"context"
	"errors"

	internalaudit "github.com/hilomagico/authkit/internal/audit"
)

type auditDispatcher = internalaudit.Dispatcher

const (
	auditEventLoginSuccess         = "login_success"
	auditEventLoginFailure         = "login_failure"
	auditEventRefreshSuccess       = "refresh_success"
	auditEventRefreshInvalid       = "refresh_invalid"
	auditEventRefreshReuseDetected = "refresh_reuse_detected"
	auditEventLogout               = "logout"
	auditEventLogoutInvalid        = "logout_invalid"
	auditEventRateLimitTriggered   = "rate_limit_triggered"
	auditEventStorageDegraded      = "storage_degraded"
	auditEventSweep                = "sweep"
)

// AuditErrorCode defines a public type used by authkit APIs.
//
// AuditErrorCode instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type AuditErrorCode string

const (
	auditErrInvalidToken AuditErrorCode = "invalid_token"
	auditErrTokenExpired AuditErrorCode = "token_expired"
	auditErrRefreshReuse AuditErrorCode = "refresh_reuse"
	auditErrRateLimited  AuditErrorCode = "rate_limited"
	auditErrUserNotFound AuditErrorCode = "user_not_found"
	auditErrUserDisabled AuditErrorCode = "user_disabled"
	auditErrUnavailable  AuditErrorCode = "backend_unavailable"
	auditErrInternal     AuditErrorCode = "internal_error"
)

func (e *Engine) emitAudit(
	ctx context.Context,
	eventType string,
	success bool,
	subjectID string,
	tokenID string,
	lineageID string,
	err error,
	metadataBuilder func() map[string]string,
) {
	if e == nil || e.audit == nil {
		return
	}

	var metadata map[string]string
	if metadataBuilder != nil {
		metadata = metadataBuilder()
	}

	event := AuditEvent{
		Timestamp: e.clock().UTC(),
		EventType: eventType,
		SubjectID: subjectID,
		TokenID:   tokenID,
		LineageID: lineageID,
		Success:   success,
		Metadata:  metadata,
	}
	if code := auditErrorCode(err); code != "" {
		event.Error = string(code)
	}

	e.audit.Emit(ctx, event)
}

// emitRateAudit emits admission-control events. The identity key goes in the
// dedicated Key field rather than metadata so sinks can index on it.
func (e *Engine) emitRateAudit(
	ctx context.Context,
	eventType string,
	success bool,
	key string,
	err error,
	metadataBuilder func() map[string]string,
) {
	if e == nil || e.audit == nil {
		return
	}

	var metadata map[string]string
	if metadataBuilder != nil {
		metadata = metadataBuilder()
	}

	event := AuditEvent{
		Timestamp: e.clock().UTC(),
		EventType: eventType,
		Key:       key,
		Success:   success,
		Metadata:  metadata,
	}
	if code := auditErrorCode(err); code != "" {
		event.Error = string(code)
	}

	e.audit.Emit(ctx, event)
}

func auditErrorCode(err error) AuditErrorCode {
	if err == nil {
		return ""
	}

	switch {
	case errors.Is(err, ErrTokenExpired):
		return auditErrTokenExpired
	case errors.Is(err, ErrTokenMalformed),
		errors.Is(err, ErrInvalidSignature),
		errors.Is(err, ErrWrongTokenKind):
		return auditErrInvalidToken
	case errors.Is(err, ErrTokenReused):
		return auditErrRefreshReuse
	case errors.Is(err, ErrRateLimited):
		return auditErrRateLimited
	case errors.Is(err, ErrUserNotFound):
		return auditErrUserNotFound
	case errors.Is(err, ErrUserDisabled):
		return auditErrUserDisabled
	case errors.Is(err, ErrStorageUnavailable):
		return auditErrUnavailable
	}

	return auditErrInternal
}
