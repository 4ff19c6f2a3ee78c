package work

import (
	"sort"
	"sync"
)

// Registry holds all registered work types and provides lookup by ID and priority ordering.
type Registry struct {
	types map[string]*WorkType
	mu    sync.RWMutex
}

// NewRegistry creates a new work type registry.
func NewRegistry() *Registry {
	return &Registry{
		types: make(map[string]*WorkType),
	}
}

// Register adds a work type to the registry.
// If a work type with the same ID already exists, it will be replaced.
func (r *Registry) Register(wt *WorkType) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.types[wt.ID] = wt
}

// Get returns a work type by ID, or nil if not found.
func (r *Registry) Get(id string) *WorkType {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return r.types[id]
}

// Has returns true if a work type with the given ID is registered.
func (r *Registry) Has(id string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	_, exists := r.types[id]
	return exists
}

// Count returns the number of registered work types.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return len(r.types)
}

// IDs returns all registered work type IDs.
func (r *Registry) IDs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ids := make([]string, 0, len(r.types))
	for id := range r.types {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// priorityOf returns the priority of a registered type, PriorityLow when unknown.
func (r *Registry) priorityOf(id string) Priority {
	if wt := r.Get(id); wt != nil {
		return wt.Priority
	}
	return PriorityLow
}
