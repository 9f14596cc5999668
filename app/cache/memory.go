package cache

import (
	"context"
	"sync"
	"time"
)

type MemoryCache struct {
	mu      sync.RWMutex
	entries map[string]Entry
}

func NewMemoryCache() *MemoryCache {
	return &MemoryCache{entries: make(map[string]Entry)}
}

// Get returns nil when the reference is not cached.
func (c *MemoryCache) Get(_ context.Context, transactionRef string) (*Entry, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	entry, ok := c.entries[transactionRef]
	if !ok {
		return nil, nil
	}
	return &entry, nil
}

func (c *MemoryCache) Put(_ context.Context, transactionRef string, entry Entry) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries[transactionRef] = entry
	return nil
}

// SetStatus keeps the initiation time of an existing entry. A missing entry is created with at as
// its initiation time.
func (c *MemoryCache) SetStatus(_ context.Context, transactionRef string, status string, at time.Time) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.entries[transactionRef]
	if !ok {
		entry.InitiatedAt = at
	}
	entry.Status = status
	entry.UpdatedAt = at
	c.entries[transactionRef] = entry
	return nil
}

func (c *MemoryCache) Snapshot(_ context.Context) (map[string]Entry, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make(map[string]Entry, len(c.entries))
	for ref, entry := range c.entries {
		out[ref] = entry
	}
	return out, nil
}

func (c *MemoryCache) Delete(_ context.Context, transactionRefs ...string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, ref := range transactionRefs {
		delete(c.entries, ref)
	}
	return nil
}
