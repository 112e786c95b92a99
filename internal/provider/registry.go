package provider

import (
	"fmt"
	"net/http"
	"sort"
	"sync"
)

// BackendOptions are handed to a Factory when a backend is built.
type BackendOptions struct {
	HTTPClient *http.Client
	Language   string
}

// Factory builds a configured Backend.
type Factory func(opts BackendOptions) (Backend, error)

// Registry manages the available metadata backends
type Registry struct {
	mu         sync.RWMutex
	factories  map[string]Factory
	priorities map[string]int
}

// GlobalRegistry is the default registry instance
var GlobalRegistry = NewRegistry()

// NewRegistry creates a new backend registry
func NewRegistry() *Registry {
	return &Registry{
		factories:  make(map[string]Factory),
		priorities: make(map[string]int),
	}
}

// Register adds a backend factory to the registry
func (r *Registry) Register(name string, factory Factory, priority int) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if factory == nil {
		return fmt.Errorf("backend %s has no factory", name)
	}
	if _, exists := r.factories[name]; exists {
		return fmt.Errorf("backend %s already registered", name)
	}

	r.factories[name] = factory
	r.priorities[name] = priority
	return nil
}

// New builds the named backend
func (r *Registry) New(name string, opts BackendOptions) (Backend, error) {
	r.mu.RLock()
	factory, exists := r.factories[name]
	r.mu.RUnlock()

	if !exists {
		return nil, fmt.Errorf("backend %s not found", name)
	}
	backend, err := factory(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to build backend %s: %w", name, err)
	}
	return backend, nil
}

// List returns all registered backends, highest priority first
func (r *Registry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.factories))
	for name := range r.factories {
		names = append(names, name)
	}

	sort.Slice(names, func(i, j int) bool {
		if r.priorities[names[i]] == r.priorities[names[j]] {
			return names[i] < names[j]
		}
		return r.priorities[names[i]] > r.priorities[names[j]]
	})

	return names
}
