package schema

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync/atomic"
)

var (
	ErrDuplicateSchema = errors.New("schema: duplicate schema")
	ErrUnknownSchema   = errors.New("schema: unknown schema")
	ErrSchemaNil       = errors.New("schema: schema is nil")
	ErrRegistryFrozen  = errors.New("schema: registry is frozen")
)

// Registry maps type names to schemas.
//
// A Registry is populated once and read afterwards. Register is not safe to
// call concurrently with anything else; once every Register call has
// returned (and the registry has been handed to readers through a channel,
// a sync.WaitGroup or similar), Lookup, Names and Len are safe from any
// number of goroutines. Freeze marks the end of population.
type Registry struct {
	items  map[string]*Schema
	frozen atomic.Bool
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{items: make(map[string]*Schema)}
}

// Register adds s under its own name.
func (r *Registry) Register(s *Schema) error {
	if s == nil {
		return ErrSchemaNil
	}
	return r.RegisterAs(s.Name(), s)
}

// RegisterAs adds s under name, which lets one schema be published under a
// versioned alias.
func (r *Registry) RegisterAs(name string, s *Schema) error {
	if s == nil {
		return ErrSchemaNil
	}
	if r.frozen.Load() {
		return fmt.Errorf("%w: %s", ErrRegistryFrozen, name)
	}
	if strings.TrimSpace(name) == "" {
		return fmt.Errorf("%w: empty name", ErrInvalidSchema)
	}
	if err := CheckDefined(s); err != nil {
		return err
	}
	if _, ok := r.items[name]; ok {
		return fmt.Errorf("%w: %s", ErrDuplicateSchema, name)
	}
	r.items[name] = s
	return nil
}

// Lookup returns the schema registered under name.
func (r *Registry) Lookup(name string) (*Schema, error) {
	s, ok := r.items[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownSchema, name)
	}
	return s, nil
}

// Names returns registered names in sorted order.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.items))
	for name := range r.items {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Len returns the number of registered names.
func (r *Registry) Len() int {
	return len(r.items)
}

// Freeze rejects every later Register call.
func (r *Registry) Freeze() {
	r.frozen.Store(true)
}

// Frozen reports whether Freeze was called.
func (r *Registry) Frozen() bool {
	return r.frozen.Load()
}
