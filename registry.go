package gisdb

import (
	"fmt"
	"sort"
)

// Registry maps schema identifiers to schemas. Readers resolve a file's
// schema through the Registry passed with WithRegistry or WithSchemas.
type Registry struct {
	schemas map[string]Schema
}

// NewRegistry returns a registry holding schemas. It panics if two schemas
// share an ID.
func NewRegistry(schemas ...Schema) *Registry {
	r := &Registry{schemas: make(map[string]Schema, len(schemas))}
	for _, s := range schemas {
		if err := r.Register(s); err != nil {
			panic(err)
		}
	}
	return r
}

// Register adds s.
func (r *Registry) Register(s Schema) error {
	if _, ok := r.schemas[s.ID()]; ok {
		return fmt.Errorf("gisdb: schema %q registered twice", s.ID())
	}
	r.schemas[s.ID()] = s
	return nil
}

// Lookup returns the schema with the given ID.
func (r *Registry) Lookup(id string) (Schema, bool) {
	if r == nil {
		return nil, false
	}
	s, ok := r.schemas[id]
	return s, ok
}

// IDs returns the registered schema IDs in sorted order.
func (r *Registry) IDs() []string {
	ids := make([]string, 0, len(r.schemas))
	for id := range r.schemas {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
