package analysis

import (
	"sync"

	"notegraph/backend/internal/graph"
)

// ContextCache holds per-user graph-context snapshots so the incremental
// pass does not query the whole neighborhood on every note. Snapshots are
// invalidated after a write rather than patched in place.
type ContextCache struct {
	mu        sync.RWMutex
	snapshots map[string][]graph.ContextEntry
}

// NewContextCache creates an empty context cache
func NewContextCache() *ContextCache {
	return &ContextCache{snapshots: make(map[string][]graph.ContextEntry)}
}

// Get returns a copy of the user's snapshot, if one is cached
func (c *ContextCache) Get(userID string) ([]graph.ContextEntry, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	entries, ok := c.snapshots[userID]
	if !ok {
		return nil, false
	}
	out := make([]graph.ContextEntry, len(entries))
	copy(out, entries)
	return out, true
}

// Put stores a snapshot for a user
func (c *ContextCache) Put(userID string, entries []graph.ContextEntry) {
	stored := make([]graph.ContextEntry, len(entries))
	copy(stored, entries)
	c.mu.Lock()
	defer c.mu.Unlock()
	c.snapshots[userID] = stored
}

// Invalidate drops the user's snapshot
func (c *ContextCache) Invalidate(userID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.snapshots, userID)
}

// Size returns the number of cached snapshots
func (c *ContextCache) Size() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.snapshots)
}
