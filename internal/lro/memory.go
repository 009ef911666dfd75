package lro

import (
	"context"
	"sync"

	log "github.com/sirupsen/logrus"
)

// MemoryCache is the single-process backend: a bounded map with FIFO
// eviction. Operation names are unique per creation, so recency tracking
// buys nothing over insertion order.
type MemoryCache struct {
	mu      sync.Mutex
	entries map[string]string
	order   []string
	max     int
}

// NewMemoryCache builds a cache holding at most max entries.
func NewMemoryCache(max int) *MemoryCache {
	return &MemoryCache{
		entries: make(map[string]string),
		max:     max,
	}
}

func (c *MemoryCache) Remember(_ context.Context, op, projectID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.entries[op]; !ok {
		for len(c.order) >= c.max {
			oldest := c.order[0]
			c.order = c.order[1:]
			delete(c.entries, oldest)
			log.Debugf("Evicted operation mapping: %s", oldest)
		}
		c.order = append(c.order, op)
	}
	c.entries[op] = projectID
}

func (c *MemoryCache) Lookup(_ context.Context, op string) (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	projectID, ok := c.entries[op]
	return projectID, ok
}

func (c *MemoryCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}
