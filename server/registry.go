package server

import (
	"sync"

	"github.com/google/uuid"

	"github.com/spektr-org/chatyfile/session"
)

// Registry maps conversation IDs to their Managers. Managers never share
// state; the registry only owns the map.
type Registry struct {
	mu       sync.RWMutex
	managers map[string]*session.Manager
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{managers: make(map[string]*session.Manager)}
}

// Add registers m under a fresh ID.
func (r *Registry) Add(m *session.Manager) string {
	id := uuid.NewString()
	r.mu.Lock()
	r.managers[id] = m
	r.mu.Unlock()
	return id
}

// Get returns the Manager for id.
func (r *Registry) Get(id string) (*session.Manager, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	m, ok := r.managers[id]
	return m, ok
}

// Remove drops id and reports whether it was present.
func (r *Registry) Remove(id string) (*session.Manager, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	m, ok := r.managers[id]
	delete(r.managers, id)
	return m, ok
}

// Len returns the number of registered conversations.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.managers)
}
