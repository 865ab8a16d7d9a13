// ABOUTME: Registry of annotation caches keyed by remote endpoint URL
// ABOUTME: One cache per endpoint for the registry's lifetime, with explicit eviction

package cache

import (
	"log/slog"
	"sync"
)

// Registry hands out the cache for a remote endpoint. One cache instance
// exists per distinct endpoint URL for the registry's lifetime; it is
// created lazily on first use, never per request. The registry is an
// explicit object created at session start; there is no hidden global.
type Registry struct {
	mu     sync.Mutex
	caches map[string]*Cache
	logger *slog.Logger
}

// NewRegistry creates an empty cache registry. Pass nil logger for default.
func NewRegistry(logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{
		caches: make(map[string]*Cache),
		logger: logger.With("component", "cache"),
	}
}

// For returns the cache for an endpoint URL, creating it on first use.
func (r *Registry) For(endpoint string) *Cache {
	r.mu.Lock()
	defer r.mu.Unlock()
	if c, ok := r.caches[endpoint]; ok {
		return c
	}
	c := newCache()
	r.caches[endpoint] = c
	r.logger.Debug("cache created", "endpoint", endpoint)
	return c
}

// Evict drops an endpoint's cache entirely. The next For call builds a
// fresh one.
func (r *Registry) Evict(endpoint string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.caches, endpoint)
}

// Len returns the number of endpoint caches currently held.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.caches)
}
