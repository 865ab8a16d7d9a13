// ABOUTME: Thread-safe per-endpoint cache of raw backend annotation entries
// ABOUTME: Backs optimistic-concurrency and ownership checks in the CRUD path

package cache

import (
	"sync"

	"github.com/2389/annosync/internal/wire"
)

// Cache holds the last server-acknowledged raw entry per annotation id for
// one remote endpoint. It deliberately stores the raw representation, not
// the decoded annotation: ownership checks and metadata re-fetch must
// compare against exactly what the server last returned, independent of any
// local decode/encode skew.
//
// All mutations are last-write-wins on independent keys; concurrent writes
// to the same id are not serialized and the later completion wins.
type Cache struct {
	mu      sync.RWMutex
	entries map[string]wire.RawEntry
}

// newCache creates an empty cache. Callers obtain caches through a
// Registry, never directly.
func newCache() *Cache {
	return &Cache{entries: make(map[string]wire.RawEntry)}
}

// Add stores a raw entry under an id. Adding with an empty id is a no-op.
func (c *Cache) Add(id string, raw wire.RawEntry) {
	if id == "" {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[id] = raw
}

// Update is an alias for Add; the cache is last-write-wins.
func (c *Cache) Update(id string, raw wire.RawEntry) {
	c.Add(id, raw)
}

// Remove deletes the entry for an id, if present.
func (c *Cache) Remove(id string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, id)
}

// Value returns the raw entry stored under an id.
func (c *Cache) Value(id string) (wire.RawEntry, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	raw, ok := c.entries[id]
	return raw, ok
}

// Has reports whether an id is present.
func (c *Cache) Has(id string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, ok := c.entries[id]
	return ok
}

// Clear removes every entry. A bulk fetch clears its endpoint's cache
// before repopulating it; the download is a full resync, not a diff.
func (c *Cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]wire.RawEntry)
}

// Len returns the number of cached entries.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// IDs returns a snapshot of the cached ids.
func (c *Cache) IDs() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	ids := make([]string, 0, len(c.entries))
	for id := range c.entries {
		ids = append(ids, id)
	}
	return ids
}
