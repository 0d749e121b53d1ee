package ledger

import (
	"context"
	"sync"
	"testing"
	"time"
)

type manualClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *manualClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *manualClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func TestMemoryRevokeLifecycle(t *testing.T) {
	ctx := context.Background()
	clock := &manualClock{now: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}
	led := NewMemory(clock.Now)

	if err := led.Revoke(ctx, "t:abc", time.Minute); err != nil {
		t.Fatalf("Revoke failed: %v", err)
	}

	revoked, err := led.IsRevoked(ctx, "t:abc")
	if err != nil || !revoked {
		t.Fatalf("expected revoked, got %v err=%v", revoked, err)
	}

	clock.Advance(2 * time.Minute)

	revoked, err = led.IsRevoked(ctx, "t:abc")
	if err != nil {
		t.Fatalf("IsRevoked failed: %v", err)
	}
	if revoked {
		t.Fatal("entry must lapse after its TTL")
	}
}

func TestMemoryRevokeOnce(t *testing.T) {
	ctx := context.Background()
	clock := &manualClock{now: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}
	led := NewMemory(clock.Now)

	first, err := led.RevokeOnce(ctx, "t:abc", time.Minute)
	if err != nil || !first {
		t.Fatalf("expected first winner, got %v err=%v", first, err)
	}

	first, err = led.RevokeOnce(ctx, "t:abc", time.Minute)
	if err != nil {
		t.Fatalf("RevokeOnce failed: %v", err)
	}
	if first {
		t.Fatal("second caller must lose")
	}

	// After the entry lapses the id is claimable again.
	clock.Advance(2 * time.Minute)
	first, err = led.RevokeOnce(ctx, "t:abc", time.Minute)
	if err != nil || !first {
		t.Fatalf("expected lapsed id to be claimable, got %v err=%v", first, err)
	}
}

func TestMemoryRevokeOnceSingleWinnerConcurrent(t *testing.T) {
	ctx := context.Background()
	led := NewMemory(nil)

	const workers = 16
	start := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(workers)

	wins := make(chan bool, workers)
	for i := 0; i < workers; i++ {
		go func() {
			defer wg.Done()
			<-start
			first, err := led.RevokeOnce(ctx, "t:contested", time.Hour)
			if err != nil {
				t.Errorf("RevokeOnce failed: %v", err)
				return
			}
			wins <- first
		}()
	}

	close(start)
	wg.Wait()
	close(wins)

	winners := 0
	for first := range wins {
		if first {
			winners++
		}
	}
	if winners != 1 {
		t.Fatalf("expected exactly one winner, got %d", winners)
	}
}

func TestMemorySweepCollectsExpired(t *testing.T) {
	ctx := context.Background()
	clock := &manualClock{now: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}
	led := NewMemory(clock.Now)

	if err := led.Revoke(ctx, "t:short", time.Minute); err != nil {
		t.Fatalf("Revoke failed: %v", err)
	}
	if err := led.Revoke(ctx, "t:long", time.Hour); err != nil {
		t.Fatalf("Revoke failed: %v", err)
	}

	clock.Advance(5 * time.Minute)

	removed, err := led.Sweep(ctx, clock.Now())
	if err != nil {
		t.Fatalf("Sweep failed: %v", err)
	}
	if removed != 1 {
		t.Fatalf("expected 1 removed, got %d", removed)
	}
	if led.Len() != 1 {
		t.Fatalf("expected 1 live entry, got %d", led.Len())
	}

	revoked, err := led.IsRevoked(ctx, "t:long")
	if err != nil || !revoked {
		t.Fatalf("long entry must survive sweep, got %v err=%v", revoked, err)
	}
}
