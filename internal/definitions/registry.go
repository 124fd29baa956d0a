package definitions

import (
	"fmt"
	"sort"
	"sync"
)

// DuplicateTypeError is returned when a page type is registered twice.
type DuplicateTypeError struct {
	Type string
}

func (e DuplicateTypeError) Error() string {
	return fmt.Sprintf("page type %s already registered", e.Type)
}

// UnknownTypeError is returned when no definition exists for a page type.
type UnknownTypeError struct {
	Type string
}

func (e UnknownTypeError) Error() string {
	return fmt.Sprintf("unknown page type %s", e.Type)
}

// Registry maps page type names to their definitions. It is built at startup
// and passed to the components that need it.
type Registry struct {
	mu   sync.RWMutex
	defs map[string]PageDefinition
}

func NewRegistry() *Registry {
	return &Registry{defs: make(map[string]PageDefinition)}
}

// Register adds all definitions or none: a validation failure or a type that
// is already registered leaves the registry unchanged.
func (r *Registry) Register(defs map[string]PageDefinition) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, name := range sortedKeys(defs) {
		if name == "" {
			return fmt.Errorf("page type name is required")
		}
		if _, ok := r.defs[name]; ok {
			return DuplicateTypeError{Type: name}
		}
		if err := defs[name].Validate(); err != nil {
			return fmt.Errorf("page type %s: %w", name, err)
		}
	}
	for name, def := range defs {
		r.defs[name] = def
	}
	return nil
}

func (r *Registry) Lookup(pageType string) (PageDefinition, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	def, ok := r.defs[pageType]
	if !ok {
		return PageDefinition{}, UnknownTypeError{Type: pageType}
	}
	return def, nil
}

// Types returns the registered type names in sorted order.
func (r *Registry) Types() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return sortedKeys(r.defs)
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
