package player

import "sync"

// Registry is the concurrency-safe store of player bindings. The controller
// uses it for all lookups; callers of the controller do not need to know
// which Registry is in use.
type Registry interface {
	// Get returns the binding for id.
	Get(id PlayerID) (*Binding, bool)

	// Put stores (or replaces) a binding.
	Put(b *Binding)

	// Delete forgets the binding for id.
	Delete(id PlayerID)

	// ByElement returns the binding currently bound to the given element.
	ByElement(id ElementID) (*Binding, bool)

	// ActiveSessionCount returns the number of bindings whose session is not
	// disposed. Used for metrics.
	ActiveSessionCount() int
}

// InMemoryRegistry is a concurrency-safe in-memory implementation of Registry.
type InMemoryRegistry struct {
	mu       sync.RWMutex
	bindings map[PlayerID]*Binding
}

// NewInMemoryRegistry returns a new empty registry.
func NewInMemoryRegistry() *InMemoryRegistry {
	return &InMemoryRegistry{bindings: make(map[PlayerID]*Binding)}
}

// Get implements Registry.Get.
func (r *InMemoryRegistry) Get(id PlayerID) (*Binding, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	b, ok := r.bindings[id]
	return b, ok
}

// Put implements Registry.Put.
func (r *InMemoryRegistry) Put(b *Binding) {
	r.mu.Lock()
	r.bindings[b.ID] = b
	r.mu.Unlock()
}

// Delete implements Registry.Delete.
func (r *InMemoryRegistry) Delete(id PlayerID) {
	r.mu.Lock()
	delete(r.bindings, id)
	r.mu.Unlock()
}

// ByElement implements Registry.ByElement.
func (r *InMemoryRegistry) ByElement(id ElementID) (*Binding, bool) {
	if id == "" {
		return nil, false
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, b := range r.bindings {
		if b.ElementID == id {
			return b, true
		}
	}
	return nil, false
}

// ActiveSessionCount implements Registry.ActiveSessionCount.
func (r *InMemoryRegistry) ActiveSessionCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	n := 0
	for _, b := range r.bindings {
		if s := b.Session(); s != nil && s.State() != StateDisposed {
			n++
		}
	}
	return n
}
