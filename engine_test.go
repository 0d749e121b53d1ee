package authkit

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

type mockUserProvider struct {
	mu    sync.RWMutex
	users map[string]UserRecord
}

func newMockUserProvider(users ...UserRecord) *mockUserProvider {
	m := &mockUserProvider{users: make(map[string]UserRecord)}
	for _, u := range users {
		m.users[u.SubjectID] = u
	}
	return m
}

func (m *mockUserProvider) GetUserByID(_ context.Context, subjectID string) (UserRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	user, ok := m.users[subjectID]
	if !ok {
		return UserRecord{}, ErrUserNotFound
	}
	return user, nil
}

type failingUserProvider struct{}

func (failingUserProvider) GetUserByID(context.Context, string) (UserRecord, error) {
	return UserRecord{}, errors.New("user store down")
}

// fakeClock is a mutable time source shared between test and engine.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock(start time.Time) *fakeClock {
	return &fakeClock{now: start}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newTestRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis.Run failed: %v", err)
	}

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() {
		_ = client.Close()
		mr.Close()
	})
	return mr, client
}

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.Token.SecretKey = []byte("test-secret-key-0123456789abcdef")
	cfg.Token.Issuer = "authkit-test"
	return cfg
}

func newTestEngine(t *testing.T, mutate func(*Builder)) (*Engine, *redis.Client) {
	t.Helper()

	_, rdb := newTestRedis(t)

	builder := New().
		WithConfig(testConfig()).
		WithRedis(rdb).
		WithUserProvider(newMockUserProvider(
			UserRecord{SubjectID: "u1", Identifier: "alice"},
			UserRecord{SubjectID: "u2", Identifier: "bob", Disabled: true},
		))
	if mutate != nil {
		mutate(builder)
	}

	engine, err := builder.Build()
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	t.Cleanup(engine.Close)
	return engine, rdb
}

func TestLoginIssuesPair(t *testing.T) {
	ctx := context.Background()
	engine, _ := newTestEngine(t, nil)

	pair, err := engine.Login(ctx, "u1")
	if err != nil {
		t.Fatalf("Login failed: %v", err)
	}
	if pair.AccessToken == "" || pair.RefreshToken == "" {
		t.Fatal("expected both tokens to be issued")
	}
	if pair.AccessToken == pair.RefreshToken {
		t.Fatal("access and refresh tokens must differ")
	}

	subjectID, err := engine.VerifyAccess(ctx, pair.AccessToken)
	if err != nil {
		t.Fatalf("VerifyAccess failed: %v", err)
	}
	if subjectID != "u1" {
		t.Fatalf("expected subject u1, got %q", subjectID)
	}
}

func TestLoginUnknownUser(t *testing.T) {
	engine, _ := newTestEngine(t, nil)

	_, err := engine.Login(context.Background(), "ghost")
	if !errors.Is(err, ErrUserNotFound) {
		t.Fatalf("expected ErrUserNotFound, got %v", err)
	}
}

func TestLoginDisabledUser(t *testing.T) {
	engine, _ := newTestEngine(t, nil)

	_, err := engine.Login(context.Background(), "u2")
	if !errors.Is(err, ErrUserDisabled) {
		t.Fatalf("expected ErrUserDisabled, got %v", err)
	}
}

func TestLoginUserStoreFailure(t *testing.T) {
	engine, _ := newTestEngine(t, func(b *Builder) {
		b.WithUserProvider(failingUserProvider{})
	})

	_, err := engine.Login(context.Background(), "u1")
	if err == nil {
		t.Fatal("expected error from failing user store")
	}
	if errors.Is(err, ErrUserNotFound) {
		t.Fatal("store failure must not be reported as user-not-found")
	}
}

func TestLoginsProduceIndependentLineages(t *testing.T) {
	ctx := context.Background()
	engine, _ := newTestEngine(t, nil)

	first, err := engine.Login(ctx, "u1")
	if err != nil {
		t.Fatalf("first Login failed: %v", err)
	}
	second, err := engine.Login(ctx, "u1")
	if err != nil {
		t.Fatalf("second Login failed: %v", err)
	}

	// Logging out the first session must not affect the second.
	if err := engine.Logout(ctx, first.RefreshToken); err != nil {
		t.Fatalf("Logout failed: %v", err)
	}
	if _, err := engine.Refresh(ctx, second.RefreshToken); err != nil {
		t.Fatalf("second session refresh failed after first logout: %v", err)
	}
}

func TestVerifyAccessRejectsGarbage(t *testing.T) {
	engine, _ := newTestEngine(t, nil)

	for _, tok := range []string{"", "not-a-token", "a.b.c"} {
		if _, err := engine.VerifyAccess(context.Background(), tok); !errors.Is(err, ErrTokenMalformed) {
			t.Fatalf("token %q: expected ErrTokenMalformed, got %v", tok, err)
		}
	}
}

func TestVerifyAccessRejectsRefreshToken(t *testing.T) {
	ctx := context.Background()
	engine, _ := newTestEngine(t, nil)

	pair, err := engine.Login(ctx, "u1")
	if err != nil {
		t.Fatalf("Login failed: %v", err)
	}

	if _, err := engine.VerifyAccess(ctx, pair.RefreshToken); !errors.Is(err, ErrWrongTokenKind) {
		t.Fatalf("expected ErrWrongTokenKind, got %v", err)
	}
}

func TestRefreshRejectsAccessToken(t *testing.T) {
	ctx := context.Background()
	engine, _ := newTestEngine(t, nil)

	pair, err := engine.Login(ctx, "u1")
	if err != nil {
		t.Fatalf("Login failed: %v", err)
	}

	if _, err := engine.Refresh(ctx, pair.AccessToken); !errors.Is(err, ErrWrongTokenKind) {
		t.Fatalf("expected ErrWrongTokenKind, got %v", err)
	}
}

func TestLogoutIdempotent(t *testing.T) {
	ctx := context.Background()
	engine, _ := newTestEngine(t, nil)

	pair, err := engine.Login(ctx, "u1")
	if err != nil {
		t.Fatalf("Login failed: %v", err)
	}

	if err := engine.Logout(ctx, pair.RefreshToken); err != nil {
		t.Fatalf("first Logout failed: %v", err)
	}
	if err := engine.Logout(ctx, pair.RefreshToken); err != nil {
		t.Fatalf("second Logout failed: %v", err)
	}
}

func TestLogoutInvalidatesRefreshNotAccess(t *testing.T) {
	ctx := context.Background()
	engine, _ := newTestEngine(t, nil)

	pair, err := engine.Login(ctx, "u1")
	if err != nil {
		t.Fatalf("Login failed: %v", err)
	}

	if err := engine.Logout(ctx, pair.RefreshToken); err != nil {
		t.Fatalf("Logout failed: %v", err)
	}

	if _, err := engine.Refresh(ctx, pair.RefreshToken); !errors.Is(err, ErrTokenReused) {
		t.Fatalf("expected ErrTokenReused after logout, got %v", err)
	}

	// Access verification is stateless: the outstanding access token stays
	// valid until its own expiry.
	if _, err := engine.VerifyAccess(ctx, pair.AccessToken); err != nil {
		t.Fatalf("access token should remain valid after logout: %v", err)
	}
}

func TestLogoutRejectsTamperedToken(t *testing.T) {
	ctx := context.Background()
	engine, _ := newTestEngine(t, nil)

	pair, err := engine.Login(ctx, "u1")
	if err != nil {
		t.Fatalf("Login failed: %v", err)
	}

	tampered := pair.RefreshToken[:len(pair.RefreshToken)-2] + "xx"
	err = engine.Logout(ctx, tampered)
	if err == nil {
		t.Fatal("expected error for tampered token")
	}
	if !errors.Is(err, ErrInvalidSignature) && !errors.Is(err, ErrTokenMalformed) {
		t.Fatalf("expected signature or malformed error, got %v", err)
	}
}

func TestNilEngineGuards(t *testing.T) {
	var engine *Engine
	ctx := context.Background()

	if _, err := engine.Login(ctx, "u1"); !errors.Is(err, ErrEngineNotReady) {
		t.Fatalf("Login: expected ErrEngineNotReady, got %v", err)
	}
	if _, err := engine.Refresh(ctx, "x"); !errors.Is(err, ErrEngineNotReady) {
		t.Fatalf("Refresh: expected ErrEngineNotReady, got %v", err)
	}
	if _, err := engine.VerifyAccess(ctx, "x"); !errors.Is(err, ErrEngineNotReady) {
		t.Fatalf("VerifyAccess: expected ErrEngineNotReady, got %v", err)
	}
	if err := engine.Logout(ctx, "x"); !errors.Is(err, ErrEngineNotReady) {
		t.Fatalf("Logout: expected ErrEngineNotReady, got %v", err)
	}
	if _, err := engine.Admit(ctx, "x"); !errors.Is(err, ErrEngineNotReady) {
		t.Fatalf("Admit: expected ErrEngineNotReady, got %v", err)
	}
	engine.Close() // must not panic
}

func TestBuilderRequiresUserProvider(t *testing.T) {
	_, rdb := newTestRedis(t)

	_, err := New().WithConfig(testConfig()).WithRedis(rdb).Build()
	if err == nil {
		t.Fatal("expected Build to fail without user provider")
	}
}

func TestBuilderSingleUse(t *testing.T) {
	_, rdb := newTestRedis(t)

	builder := New().
		WithConfig(testConfig()).
		WithRedis(rdb).
		WithUserProvider(newMockUserProvider(UserRecord{SubjectID: "u1"}))

	engine, err := builder.Build()
	if err != nil {
		t.Fatalf("first Build failed: %v", err)
	}
	defer engine.Close()

	if _, err := builder.Build(); err == nil {
		t.Fatal("expected second Build to fail")
	}
}

func TestBuilderMemoryFallbackWithoutRedis(t *testing.T) {
	engine, err := New().
		WithConfig(testConfig()).
		WithUserProvider(newMockUserProvider(UserRecord{SubjectID: "u1"})).
		Build()
	if err != nil {
		t.Fatalf("Build without redis failed: %v", err)
	}
	defer engine.Close()

	ctx := context.Background()
	pair, err := engine.Login(ctx, "u1")
	if err != nil {
		t.Fatalf("Login failed: %v", err)
	}
	if _, err := engine.Refresh(ctx, pair.RefreshToken); err != nil {
		t.Fatalf("Refresh on memory ledger failed: %v", err)
	}
	if _, err := engine.Refresh(ctx, pair.RefreshToken); !errors.Is(err, ErrTokenReused) {
		t.Fatalf("expected ErrTokenReused on memory ledger, got %v", err)
	}
}
