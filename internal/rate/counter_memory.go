package rate

import (
	"context"
	"sync"
	"time"
)

type memoryWindow struct {
	deadline time.Time
	count    int64
}

// MemoryCounter implements [Counter] in process memory for embedded
// deployments and tests. Increment and rollover happen under one mutex, so
// the count for a key is never torn across concurrent callers. Expired
// windows are purged once per window length, keeping the map bounded under
// churning identity keys.
type MemoryCounter struct {
	mu        sync.Mutex
	windows   map[string]memoryWindow
	now       func() time.Time
	nextPurge time.Time
}

// NewMemoryCounter creates an in-process window counter. A nil clock defaults
// to time.Now.
func NewMemoryCounter(now func() time.Time) *MemoryCounter {
	if now == nil {
		now = time.Now
	}
	return &MemoryCounter{
		windows: make(map[string]memoryWindow),
		now:     now,
	}
}

// Incr describes the incr operation and its observable behavior.
//
// Incr may return an error when input validation, dependency calls, or security checks fail.
// Incr does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (c *MemoryCounter) Incr(ctx context.Context, identity string, window time.Duration) (int64, time.Duration, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	if !c.nextPurge.After(now) {
		for key, w := range c.windows {
			if !w.deadline.After(now) {
				delete(c.windows, key)
			}
		}
		c.nextPurge = now.Add(window)
	}

	w, ok := c.windows[identity]
	if !ok || !w.deadline.After(now) {
		w = memoryWindow{deadline: now.Add(window)}
	}
	w.count++
	c.windows[identity] = w

	return w.count, w.deadline.Sub(now), nil
}

// Len reports the number of tracked windows. Test helper.
func (c *MemoryCounter) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.windows)
}
