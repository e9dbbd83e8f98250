package stage

import (
	"fmt"
	"sort"
	"sync"
)

// Registry maps stage names to their implementations.
// It is safe for concurrent reads; Register should only be called at startup.
type Registry struct {
	mu     sync.RWMutex
	stages map[string]Stage
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{stages: make(map[string]Stage)}
}

// Register adds a stage. Panics on duplicate name to surface misconfiguration early.
func (r *Registry) Register(s Stage) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.stages[s.Name()]; exists {
		panic(fmt.Sprintf("stage registry: duplicate stage %q", s.Name()))
	}
	r.stages[s.Name()] = s
}

// Replace swaps in s regardless of whether the name is already registered.
// Used when a config reload rebuilds a stage.
func (r *Registry) Replace(s Stage) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.stages[s.Name()] = s
}

// Get returns the stage registered under name.
func (r *Registry) Get(name string) (Stage, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.stages[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownStage, name)
	}
	return s, nil
}

// Names returns all registered stage names, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.stages))
	for k := range r.stages {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
