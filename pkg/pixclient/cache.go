package pixclient

import (
	"sync"
	"time"
)

type statusEntry struct {
	status    string
	expiresAt time.Time
}

// StatusCache remembers charge statuses between poll ticks. Only terminal
// statuses are admitted: a PENDING answer must always come from the
// provider, while PAID or EXPIRED can never change again and is safe to
// serve locally until the entry expires.
type StatusCache struct {
	mu      sync.RWMutex
	entries map[string]statusEntry
	ttl     time.Duration
	limit   int
}

func NewStatusCache(limit int, ttl time.Duration) *StatusCache {
	if limit <= 0 || ttl <= 0 {
		return &StatusCache{entries: nil}
	}

	return &StatusCache{
		entries: make(map[string]statusEntry, limit),
		ttl:     ttl,
		limit:   limit,
	}
}

func isTerminalStatus(status string) bool {
	switch status {
	case StatusPaid, StatusCompleted, StatusExpired, StatusRefunded:
		return true
	}
	return false
}

func (c *StatusCache) Get(chargeID string) (string, bool) {
	if c.entries == nil {
		return "", false
	}

	c.mu.RLock()
	entry, ok := c.entries[chargeID]
	c.mu.RUnlock()

	if !ok || time.Now().After(entry.expiresAt) {
		if ok {
			c.mu.Lock()
			delete(c.entries, chargeID)
			c.mu.Unlock()
		}
		return "", false
	}

	return entry.status, true
}

// Put stores a charge status. Non-terminal statuses are dropped so the
// next poll tick reaches the provider again.
func (c *StatusCache) Put(chargeID, status string) {
	if c.entries == nil || !isTerminalStatus(status) {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	// simple eviction: if over limit, reset cache
	if len(c.entries) >= c.limit {
		c.entries = make(map[string]statusEntry, c.limit)
	}

	c.entries[chargeID] = statusEntry{
		status:    status,
		expiresAt: time.Now().Add(c.ttl),
	}
}
