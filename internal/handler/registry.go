package handler

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"ratchet/internal/lifecycle"
)

// Registry maps item kinds to their handlers. Registration happens at daemon
// startup; lookups are concurrent with sweeps.
type Registry struct {
	mu     sync.RWMutex
	byKind map[lifecycle.Kind]Handler
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{byKind: make(map[lifecycle.Kind]Handler)}
}

// Register binds a handler to a kind, replacing any previous binding.
func (r *Registry) Register(kind lifecycle.Kind, h Handler) error {
	if kind == "" {
		return fmt.Errorf("handler kind must not be empty")
	}
	if h == nil {
		return fmt.Errorf("handler for kind %q must not be nil", kind)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.byKind[kind] = h
	return nil
}

// For returns the handler bound to a kind.
func (r *Registry) For(kind lifecycle.Kind) (Handler, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	h, ok := r.byKind[kind]
	return h, ok
}

// Kinds returns the sorted list of registered kinds.
func (r *Registry) Kinds() []lifecycle.Kind {
	r.mu.RLock()
	defer r.mu.RUnlock()
	kinds := make([]lifecycle.Kind, 0, len(r.byKind))
	for kind := range r.byKind {
		kinds = append(kinds, kind)
	}
	sort.Slice(kinds, func(i, j int) bool { return kinds[i] < kinds[j] })
	return kinds
}

// HealthChecks runs every registered handler's health check.
func (r *Registry) HealthChecks(ctx context.Context) []Health {
	r.mu.RLock()
	handlers := make(map[lifecycle.Kind]Handler, len(r.byKind))
	for kind, h := range r.byKind {
		handlers[kind] = h
	}
	r.mu.RUnlock()

	results := make([]Health, 0, len(handlers))
	for _, kind := range sortedKinds(handlers) {
		health := handlers[kind].HealthCheck(ctx)
		if health.Name == "" {
			health.Name = string(kind)
		}
		results = append(results, health)
	}
	return results
}

func sortedKinds(handlers map[lifecycle.Kind]Handler) []lifecycle.Kind {
	kinds := make([]lifecycle.Kind, 0, len(handlers))
	for kind := range handlers {
		kinds = append(kinds, kind)
	}
	sort.Slice(kinds, func(i, j int) bool { return kinds[i] < kinds[j] })
	return kinds
}
