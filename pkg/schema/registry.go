package schema

import (
	"fmt"
	"reflect"
	"slices"
	"sync"
)

// Registry memoizes resolved schemas by record type name. A schema is
// resolved once and is read-only afterwards.
type Registry struct {
	mu      sync.RWMutex
	schemas map[string]entry
}

type entry struct {
	decls  []Field
	schema *Schema
}

// Default is the process-wide registry.
var Default = NewRegistry()

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{schemas: make(map[string]entry)}
}

// Register resolves decls for name, or returns the cached schema if name was
// already registered with the same declarations.
func (r *Registry) Register(name string, decls ...Field) (*Schema, error) {
	r.mu.RLock()
	e, ok := r.schemas[name]
	r.mu.RUnlock()
	if ok {
		return e.check(name, decls)
	}

	s, err := Resolve(name, decls)
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if e, ok := r.schemas[name]; ok {
		return e.check(name, decls)
	}
	r.schemas[name] = entry{decls: slices.Clone(decls), schema: s}
	return s, nil
}

func (e entry) check(name string, decls []Field) (*Schema, error) {
	if !reflect.DeepEqual(e.decls, decls) {
		return nil, fmt.Errorf("%w: %s is already registered with different fields", ErrInvalidSchema, name)
	}
	return e.schema, nil
}

// MustRegister is Register for package-level declarations.
func (r *Registry) MustRegister(name string, decls ...Field) *Schema {
	s, err := r.Register(name, decls...)
	if err != nil {
		panic(err)
	}
	return s
}

// Lookup returns a previously registered schema.
func (r *Registry) Lookup(name string) (*Schema, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.schemas[name]
	return e.schema, ok
}

// Names lists the registered record types in sorted order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.schemas))
	for n := range r.schemas {
		out = append(out, n)
	}
	slices.Sort(out)
	return out
}
