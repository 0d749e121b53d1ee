package ledger

import (
	"context"
	"sync"
	"time"
)

// Memory is an in-process [Ledger] for embedded deployments and tests. All
// operations take the store mutex; entries are lazily dropped on read and
// eagerly dropped by Sweep.
type Memory struct {
	mu      sync.Mutex
	entries map[string]time.Time // id -> expiry
	now     func() time.Time
}

// NewMemory creates an in-memory ledger. A nil clock defaults to time.Now.
func NewMemory(now func() time.Time) *Memory {
	if now == nil {
		now = time.Now
	}
	return &Memory{
		entries: make(map[string]time.Time),
		now:     now,
	}
}

// Revoke describes the revoke operation and its observable behavior.
//
// Revoke may return an error when input validation, dependency calls, or security checks fail.
// Revoke does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (m *Memory) Revoke(ctx context.Context, id string, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = time.Second
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.entries[id] = m.now().Add(ttl)
	return nil
}

// RevokeOnce describes the revokeonce operation and its observable behavior.
//
// RevokeOnce may return an error when input validation, dependency calls, or security checks fail.
// RevokeOnce does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (m *Memory) RevokeOnce(ctx context.Context, id string, ttl time.Duration) (bool, error) {
	if ttl <= 0 {
		ttl = time.Second
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	if expiry, ok := m.entries[id]; ok && expiry.After(now) {
		return false, nil
	}
	m.entries[id] = now.Add(ttl)
	return true, nil
}

// IsRevoked describes the isrevoked operation and its observable behavior.
//
// IsRevoked may return an error when input validation, dependency calls, or security checks fail.
// IsRevoked does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (m *Memory) IsRevoked(ctx context.Context, id string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	expiry, ok := m.entries[id]
	if !ok {
		return false, nil
	}
	if !expiry.After(m.now()) {
		delete(m.entries, id)
		return false, nil
	}
	return true, nil
}

// Sweep removes entries past their implied expiry.
func (m *Memory) Sweep(ctx context.Context, now time.Time) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	removed := 0
	for id, expiry := range m.entries {
		if !expiry.After(now) {
			delete(m.entries, id)
			removed++
		}
	}
	return removed, nil
}

// Len reports the number of live entries. Test helper.
func (m *Memory) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.entries)
}
