package flow

import (
	"fmt"
	"sort"
	"sync"

	dErrors "taxportal/pkg/domain-errors"
)

// Registry holds the wizards a deployment serves, keyed by name.
type Registry struct {
	mu    sync.RWMutex
	flows map[string]Sequence
}

func NewRegistry() *Registry {
	return &Registry{flows: make(map[string]Sequence)}
}

// Register adds seq. Names must be unique.
func (r *Registry) Register(seq Sequence) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.flows[seq.Name()]; ok {
		return fmt.Errorf("wizard %s already registered", seq.Name())
	}
	r.flows[seq.Name()] = seq
	return nil
}

// Get returns the wizard called name or a not-found domain error.
func (r *Registry) Get(name string) (Sequence, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	seq, ok := r.flows[name]
	if !ok {
		return nil, dErrors.New(dErrors.CodeNotFound, "unknown wizard "+name)
	}
	return seq, nil
}

// Names lists registered wizards in sorted order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.flows))
	for name := range r.flows {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
