package authkit

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"
)

type countingSink struct {
	count atomic.Int64
}

func (s *countingSink) Emit(context.Context, AuditEvent) {
	s.count.Add(1)
}

func waitForEvent(t *testing.T, events <-chan AuditEvent) AuditEvent {
	t.Helper()
	select {
	case event := <-events:
		return event
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for audit event")
		return AuditEvent{}
	}
}

func auditTestEngine(t *testing.T, sink AuditSink) *Engine {
	t.Helper()

	cfg := testConfig()
	cfg.Audit.Enabled = true
	cfg.Audit.BufferSize = 64

	engine, _ := newTestEngine(t, func(b *Builder) {
		b.WithConfig(cfg).
			WithUserProvider(newMockUserProvider(
				UserRecord{SubjectID: "u1"},
			)).
			WithAuditSink(sink)
	})
	return engine
}

func TestAuditLoginSuccessEvent(t *testing.T) {
	sink := NewChannelSink(16)
	engine := auditTestEngine(t, sink)

	if _, err := engine.Login(context.Background(), "u1"); err != nil {
		t.Fatalf("Login failed: %v", err)
	}

	event := waitForEvent(t, sink.Events())
	if event.EventType != "login_success" {
		t.Fatalf("expected login_success, got %q", event.EventType)
	}
	if !event.Success {
		t.Fatal("expected Success=true")
	}
	if event.SubjectID != "u1" {
		t.Fatalf("expected subject u1, got %q", event.SubjectID)
	}
	if event.TokenID == "" || event.LineageID == "" {
		t.Fatal("expected token and lineage ids on login event")
	}
}

func TestAuditReuseEventCarriesErrorCode(t *testing.T) {
	sink := NewChannelSink(16)
	engine := auditTestEngine(t, sink)
	ctx := context.Background()

	pair, err := engine.Login(ctx, "u1")
	if err != nil {
		t.Fatalf("Login failed: %v", err)
	}
	if _, err := engine.Refresh(ctx, pair.RefreshToken); err != nil {
		t.Fatalf("Refresh failed: %v", err)
	}
	if _, err := engine.Refresh(ctx, pair.RefreshToken); !errors.Is(err, ErrTokenReused) {
		t.Fatalf("expected ErrTokenReused, got %v", err)
	}

	var reuse *AuditEvent
	deadline := time.After(2 * time.Second)
	for reuse == nil {
		select {
		case event := <-sink.Events():
			if event.EventType == "refresh_reuse_detected" {
				e := event
				reuse = &e
			}
		case <-deadline:
			t.Fatal("never saw refresh_reuse_detected event")
		}
	}

	if reuse.Error != "refresh_reuse" {
		t.Fatalf("expected error code refresh_reuse, got %q", reuse.Error)
	}
	if reuse.Success {
		t.Fatal("reuse event must not be marked successful")
	}
}

func TestAuditTokensNeverAppearInEvents(t *testing.T) {
	sink := NewChannelSink(16)
	engine := auditTestEngine(t, sink)
	ctx := context.Background()

	pair, err := engine.Login(ctx, "u1")
	if err != nil {
		t.Fatalf("Login failed: %v", err)
	}

	event := waitForEvent(t, sink.Events())
	for field, value := range map[string]string{
		"TokenID":   event.TokenID,
		"LineageID": event.LineageID,
		"Error":     event.Error,
	} {
		if value == pair.AccessToken || value == pair.RefreshToken {
			t.Fatalf("field %s leaked a full token", field)
		}
	}
}

func TestAuditDisabledEmitsNothing(t *testing.T) {
	sink := &countingSink{}
	engine, _ := newTestEngine(t, func(b *Builder) {
		b.WithAuditSink(sink) // audit stays disabled in testConfig
	})

	if _, err := engine.Login(context.Background(), "u1"); err != nil {
		t.Fatalf("Login failed: %v", err)
	}
	engine.Close()

	if got := sink.count.Load(); got != 0 {
		t.Fatalf("expected no events with audit disabled, got %d", got)
	}
}

func TestAuditCloseDrainsBuffer(t *testing.T) {
	sink := &countingSink{}
	engine := auditTestEngine(t, sink)
	ctx := context.Background()

	const logins = 20
	for i := 0; i < logins; i++ {
		if _, err := engine.Login(ctx, "u1"); err != nil {
			t.Fatalf("Login %d failed: %v", i, err)
		}
	}

	engine.Close()

	if got := sink.count.Load(); got != logins {
		t.Fatalf("expected %d drained events, got %d", logins, got)
	}
}
