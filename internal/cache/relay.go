package cache

import (
	"sync"

	"github.com/tramsim/consist/pkg/core"
)

// RelayCache remembers the newest sequence number seen per origin car, so a
// relayed announcement is forwarded once even when the consist forms a loop.
type RelayCache struct {
	mu   sync.Mutex
	seen map[core.CarID]uint32
}

// NewRelayCache creates an empty RelayCache
func NewRelayCache() *RelayCache {
	return &RelayCache{
		seen: make(map[core.CarID]uint32),
	}
}

// Mark records (origin, seq) and reports whether it is newer than anything
// seen from origin before.
func (c *RelayCache) Mark(origin core.CarID, seq uint32) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if last, ok := c.seen[origin]; ok && seq <= last {
		return false
	}
	c.seen[origin] = seq
	return true
}

// Forget drops the entry for origin, so its sequence may start over.
func (c *RelayCache) Forget(origin core.CarID) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.seen, origin)
}
