package takeoff

import (
	"sync"
	"time"
)

// providerCooldown holds a vision provider out of runs after it answered 429.
type providerCooldown struct {
	mu    sync.Mutex
	until time.Time
}

// active reports whether the provider is still cooling down at now.
func (c *providerCooldown) active(now time.Time) (time.Time, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.until, now.Before(c.until)
}

// trip starts or extends a cooldown. A shorter Retry-After from a
// concurrent request never cuts an existing cooldown short.
func (c *providerCooldown) trip(now time.Time, d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if until := now.Add(d); until.After(c.until) {
		c.until = until
	}
}

// clear ends the cooldown after a successful call.
func (c *providerCooldown) clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.until = time.Time{}
}
