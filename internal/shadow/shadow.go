// Package shadow defines instrumentation points and the registry that holds
// their enabled flags.
package shadow

import (
	"fmt"
	"go/token"
	"maps"
	"slices"
	"sync"

	"github.com/mpyw/tmelide/internal/constraint"
)

// Shadow is one instrumentation point: a site in a procedure that emits an
// event of Symbol with the given variable bindings.
type Shadow struct {
	ID        string
	Pos       token.Pos
	Procedure string
	Symbol    string
	Bindings  map[string]constraint.Ref
}

func (s *Shadow) String() string {
	vars := slices.Sorted(maps.Keys(s.Bindings))
	out := s.ID + ":" + s.Symbol + "("
	for i, v := range vars {
		if i > 0 {
			out += ", "
		}
		out += v + "=" + string(s.Bindings[v])
	}
	return out + ")"
}

// Registry owns the enabled flag of every registered shadow.
//
// A shadow starts enabled. Disable is idempotent and the flag never returns
// to enabled. Registry is safe for concurrent use.
type Registry struct {
	mu      sync.RWMutex
	shadows map[string]*Shadow
	enabled map[string]bool
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		shadows: make(map[string]*Shadow),
		enabled: make(map[string]bool),
	}
}

// Register adds s as enabled. Registering an ID twice is an error.
func (r *Registry) Register(s *Shadow) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.shadows[s.ID]; ok {
		return fmt.Errorf("shadow %q already registered", s.ID)
	}
	r.shadows[s.ID] = s
	r.enabled[s.ID] = true
	return nil
}

// Disable turns off the shadow with the given ID. It reports whether this
// call changed the flag.
func (r *Registry) Disable(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.enabled[id] {
		return false
	}
	r.enabled[id] = false
	return true
}

// IsEnabled reports whether the shadow is registered and enabled.
func (r *Registry) IsEnabled(id string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.enabled[id]
}

// Lookup returns the registered shadow.
func (r *Registry) Lookup(id string) (*Shadow, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.shadows[id]
	return s, ok
}

// Disabled returns the IDs of all disabled shadows, sorted.
func (r *Registry) Disabled() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var ids []string
	for id, on := range r.enabled {
		if !on {
			ids = append(ids, id)
		}
	}
	slices.Sort(ids)
	return ids
}

// Len returns the number of registered shadows.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.shadows)
}
