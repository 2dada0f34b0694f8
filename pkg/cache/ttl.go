package cache

import (
	"sync"
	"time"
)

// TTL holds a single value that expires a fixed duration after it was set.
// Expiry is checked lazily on read.
type TTL[T any] struct {
	ttl time.Duration
	now func() time.Time

	mu        sync.RWMutex
	value     T
	fetchedAt time.Time
	valid     bool
}

// NewTTL creates an empty TTL cache. A nil now uses time.Now.
func NewTTL[T any](ttl time.Duration, now func() time.Time) *TTL[T] {
	if now == nil {
		now = time.Now
	}
	return &TTL[T]{ttl: ttl, now: now}
}

// Get returns the value if one was set less than ttl ago. An empty value that
// was explicitly set is still a hit.
func (c *TTL[T]) Get() (T, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if !c.valid || c.now().Sub(c.fetchedAt) >= c.ttl {
		var zero T
		return zero, false
	}
	return c.value, true
}

// Set stores v stamped with the current time.
func (c *TTL[T]) Set(v T) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.value = v
	c.fetchedAt = c.now()
	c.valid = true
}

// Reset discards the value so the next Get misses.
func (c *TTL[T]) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	var zero T
	c.value = zero
	c.fetchedAt = time.Time{}
	c.valid = false
}

// FetchedAt returns when the current value was set, or the zero time.
func (c *TTL[T]) FetchedAt() time.Time {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.fetchedAt
}
