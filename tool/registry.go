package tool

import (
	"fmt"
	"sync"

	"github.com/hupe1980/flowstream/core"
)

// Registry is an ordered, concurrency safe set of tools keyed by name. It
// satisfies core.ToolLookup; List preserves registration order so the tool
// definitions sent to the model are stable across iterations.
type Registry struct {
	mu    sync.RWMutex
	tools map[string]core.Tool
	order []string
}

var _ core.ToolLookup = (*Registry)(nil)

// NewRegistry returns a registry holding tools. Later duplicates replace
// earlier ones.
func NewRegistry(tools ...core.Tool) *Registry {
	r := &Registry{tools: make(map[string]core.Tool, len(tools))}
	for _, t := range tools {
		r.Set(t)
	}
	return r
}

// Register adds t and fails with ErrDuplicateTool if the name is taken.
func (r *Registry) Register(t core.Tool) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.tools[t.Name()]; exists {
		return fmt.Errorf("%w: %s", ErrDuplicateTool, t.Name())
	}

	r.tools[t.Name()] = t
	r.order = append(r.order, t.Name())

	return nil
}

// Set adds t or replaces the tool registered under the same name in place.
func (r *Registry) Set(t core.Tool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.tools[t.Name()]; !exists {
		r.order = append(r.order, t.Name())
	}
	r.tools[t.Name()] = t
}

// Remove deletes the tool named name and reports whether it existed.
func (r *Registry) Remove(name string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.tools[name]; !exists {
		return false
	}

	delete(r.tools, name)

	for i, n := range r.order {
		if n == name {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}

	return true
}

// Lookup resolves a tool by name.
func (r *Registry) Lookup(name string) (core.Tool, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	t, ok := r.tools[name]
	return t, ok
}

// List returns the tools in registration order.
func (r *Registry) List() []core.Tool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]core.Tool, 0, len(r.order))
	for _, n := range r.order {
		out = append(out, r.tools[n])
	}
	return out
}

// Names returns the registered tool names in registration order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]string, len(r.order))
	copy(out, r.order)
	return out
}

// Len returns the number of registered tools.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return len(r.order)
}
