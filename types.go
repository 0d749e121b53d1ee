package authkit

import (
	"context"
	"io"

	internalaudit "github.com/hilomagico/authkit/internal/audit"
	"github.com/hilomagico/authkit/internal/rate"
)

// UserRecord is the minimal identity view returned by [UserProvider]. The
// core never embeds anything beyond the subject id in tokens.
type UserRecord struct {
	SubjectID  string
	Identifier string
	Disabled   bool
}

// UserProvider is the external identity-lookup collaborator. Implementations
// return [ErrUserNotFound] (possibly wrapped) when the subject does not
// exist; any other error is treated as a lookup failure.
type UserProvider interface {
	GetUserByID(ctx context.Context, subjectID string) (UserRecord, error)
}

// TokenPair is returned by [Engine.Login] and [Engine.Refresh].
type TokenPair struct {
	AccessToken  string
	RefreshToken string
}

// Decision is the admission verdict returned by [Engine.Admit]. RetryAfter is
// only meaningful when Allowed is false: the time until the window resets.
type Decision = rate.Decision

// AuditEvent is a structured audit record emitted by the engine.
type AuditEvent = internalaudit.Event

// AuditSink receives [AuditEvent] values from the engine's audit dispatcher.
type AuditSink = internalaudit.Sink

// NoOpSink is an [AuditSink] that silently discards all events.
type NoOpSink = internalaudit.NoOpSink

// ChannelSink is a buffered channel-based [AuditSink].
type ChannelSink = internalaudit.ChannelSink

// JSONWriterSink is an [AuditSink] that writes JSON-encoded events to an
// [io.Writer].
type JSONWriterSink = internalaudit.JSONWriterSink

// NewChannelSink creates a [ChannelSink] with the given buffer capacity.
func NewChannelSink(buffer int) *ChannelSink {
	return internalaudit.NewChannelSink(buffer)
}

// NewJSONWriterSink creates a [JSONWriterSink] that writes to w.
func NewJSONWriterSink(w io.Writer) *JSONWriterSink {
	return internalaudit.NewJSONWriterSink(w)
}
