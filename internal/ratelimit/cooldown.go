package ratelimit

import (
	"sync"
	"time"
)

// Cooldown tracks sources that answered with a rate-limit response.
// A tripped source is skipped for the rest of the window instead of
// wasting fan-out slots on calls that will be rejected anyway.
type Cooldown struct {
	mu    sync.Mutex
	until map[string]time.Time
	now   func() time.Time
}

// NewCooldown creates an empty cooldown tracker.
func NewCooldown() *Cooldown {
	return &Cooldown{
		until: make(map[string]time.Time),
		now:   time.Now,
	}
}

// Trip marks the named source as cooling down for the given window.
// Re-tripping extends the window from now.
func (c *Cooldown) Trip(name string, window time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.until[name] = c.now().Add(window)
}

// Active reports whether the named source is still cooling down.
// Expired entries are dropped lazily.
func (c *Cooldown) Active(name string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	deadline, ok := c.until[name]
	if !ok {
		return false
	}
	if c.now().After(deadline) {
		delete(c.until, name)
		return false
	}
	return true
}
