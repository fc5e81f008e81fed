// Package subscribers keeps the in-memory set of chats that receive the
// daily digest. Nothing is persisted; the set starts empty on every run.
package subscribers

import (
	"log/slog"
	"maps"
	"slices"
	"sync"
)

// Registry is a concurrency-safe set of chat IDs.
type Registry struct {
	mu     sync.RWMutex
	ids    map[int64]struct{}
	logger *slog.Logger
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		ids:    make(map[int64]struct{}),
		logger: slog.Default(),
	}
}

// Subscribe adds id. It reports whether id was newly added.
func (r *Registry) Subscribe(id int64) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.ids[id]; ok {
		return false
	}
	r.ids[id] = struct{}{}
	r.logger.Info("subscriber added", "chat_id", id, "total", len(r.ids))
	return true
}

// Unsubscribe removes id. It reports whether id was present.
func (r *Registry) Unsubscribe(id int64) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.ids[id]; !ok {
		return false
	}
	delete(r.ids, id)
	r.logger.Info("subscriber removed", "chat_id", id, "total", len(r.ids))
	return true
}

// Has reports whether id is subscribed.
func (r *Registry) Has(id int64) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.ids[id]
	return ok
}

// Len returns the number of subscribers.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.ids)
}

// Snapshot returns a sorted copy of the current IDs. Callers may mutate the
// registry while iterating the result.
func (r *Registry) Snapshot() []int64 {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return slices.Sorted(maps.Keys(r.ids))
}
