package protocol

import (
	"fmt"
	"sort"
	"sync"
)

// Registry manages available protocols
type Registry struct {
	mu        sync.RWMutex
	protocols map[string]func() Protocol
}

// NewRegistry creates a new protocol registry
func NewRegistry() *Registry {
	return &Registry{
		protocols: make(map[string]func() Protocol),
	}
}

// Register adds a protocol to the registry
func (r *Registry) Register(name string, factory func() Protocol) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.protocols[name]; exists {
		return fmt.Errorf("protocol %s already registered", name)
	}

	r.protocols[name] = factory
	return nil
}

// Get returns a new instance of the requested protocol
func (r *Registry) Get(name string) (Protocol, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	factory, exists := r.protocols[name]
	if !exists {
		return nil, fmt.Errorf("protocol %s not found", name)
	}

	return factory(), nil
}

// List returns all registered protocol names, sorted
func (r *Registry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.protocols))
	for name := range r.protocols {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// DefaultRegistry is the global protocol registry
var DefaultRegistry = NewRegistry()
