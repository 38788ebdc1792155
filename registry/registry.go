// Package registry provides a small concurrency-safe name → capability map
// populated at startup and consulted by the router, the function executor and
// the built-in agent tools.
package registry

import (
	"fmt"
	"sort"
	"sync"

	"github.com/hupe1980/agentkernel/core"
)

// Registry maps names onto capabilities of type T.
type Registry[T any] struct {
	mu      sync.RWMutex
	entries map[string]T
}

// New returns an empty registry.
func New[T any]() *Registry[T] {
	return &Registry[T]{entries: make(map[string]T)}
}

// Register binds name to v, replacing any previous binding.
func (r *Registry[T]) Register(name string, v T) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries[name] = v
}

// Resolve returns the capability bound to name. Unknown names fail with an
// error wrapping core.ErrNotFound.
func (r *Registry[T]) Resolve(name string) (T, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	v, ok := r.entries[name]
	if !ok {
		var zero T
		return zero, fmt.Errorf("%q: %w", name, core.ErrNotFound)
	}
	return v, nil
}

// Has reports whether name is bound.
func (r *Registry[T]) Has(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.entries[name]
	return ok
}

// Names returns the registered names in sorted order.
func (r *Registry[T]) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.entries))
	for n := range r.entries {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Values returns the registered capabilities ordered by name.
func (r *Registry[T]) Values() []T {
	names := r.Names()
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]T, 0, len(names))
	for _, n := range names {
		if v, ok := r.entries[n]; ok {
			out = append(out, v)
		}
	}
	return out
}

// Len returns the number of registered capabilities.
func (r *Registry[T]) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entries)
}
