package schema

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
)

var (
	ErrUnknownResource = errors.New("unknown resource")
	ErrUnknownField    = errors.New("unknown field")
)

// Schema holds the root fields of every resource in a mapping definition.
type Schema struct {
	resources map[string]*resource
}

type resource struct {
	mapping Mapping
	roots   []*Field

	indexOnce sync.Once
	walk      []*Field
	byPath    map[string]*Field
}

// NewSchema builds a schema from per-resource mappings. Each resource
// mapping lists its root fields under "properties".
func NewSchema(resources map[string]Mapping) (*Schema, error) {
	s := &Schema{resources: make(map[string]*resource, len(resources))}
	for name, m := range resources {
		if m == nil {
			return nil, fmt.Errorf("can't create resource %q from nil mapping: %w", name, ErrInvalidDefinition)
		}
		r := &resource{mapping: m}
		props := asMapping(m[attrProperties])
		for _, field := range sortedKeys(props) {
			fm := asMapping(props[field])
			if fm == nil {
				continue
			}
			f, err := New(name, field, fm)
			if err != nil {
				return nil, err
			}
			r.roots = append(r.roots, f)
		}
		s.resources[name] = r
	}
	return s, nil
}

func (s *Schema) Resources() []string {
	names := make([]string, 0, len(s.resources))
	for name := range s.resources {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ResourceMapping returns the raw mapping a resource was built from.
func (s *Schema) ResourceMapping(name string) (Mapping, error) {
	r, err := s.resource(name)
	if err != nil {
		return nil, err
	}
	return r.mapping, nil
}

func (s *Schema) Roots(name string) ([]*Field, error) {
	r, err := s.resource(name)
	if err != nil {
		return nil, err
	}
	return r.roots, nil
}

// Walk returns every field of the resource: each root's deep subfields in
// pre-order, with a composite field's alternate representations directly
// after it.
func (s *Schema) Walk(name string) ([]*Field, error) {
	r, err := s.resource(name)
	if err != nil {
		return nil, err
	}
	r.index()
	return r.walk, nil
}

// Facetable returns the fields of the resource that can be used as facets.
func (s *Schema) Facetable(name string) ([]*Field, error) {
	all, err := s.Walk(name)
	if err != nil {
		return nil, err
	}
	var out []*Field
	for _, f := range all {
		if f.Facetable() {
			out = append(out, f)
		}
	}
	return out, nil
}

// Lookup finds the field at path. When no field has that exact path but
// its parent is a leaf field, the last segment is taken as a variant
// suffix of the parent ("created.year" on a date field).
func (s *Schema) Lookup(name, path string) (*Field, error) {
	r, err := s.resource(name)
	if err != nil {
		return nil, err
	}
	r.index()
	if f, ok := r.byPath[path]; ok {
		return f, nil
	}

	if i := strings.LastIndexByte(path, '.'); i > 0 {
		parent, ok := r.byPath[path[:i]]
		if ok && !parent.HasSubfields() && len(parent.AlternateRepresentations()) == 0 {
			return New(parent.resource, parent.path, parent.mapping, WithVariantSuffix(path[i:]))
		}
	}
	return nil, fmt.Errorf("%s.%s: %w", name, path, ErrUnknownField)
}

func (s *Schema) resource(name string) (*resource, error) {
	r, ok := s.resources[name]
	if !ok {
		return nil, fmt.Errorf("%q: %w", name, ErrUnknownResource)
	}
	return r, nil
}

func (r *resource) index() {
	r.indexOnce.Do(func() {
		r.byPath = make(map[string]*Field)
		for _, root := range r.roots {
			for _, f := range root.SubfieldsDeep() {
				r.add(f)
				for _, alt := range f.AlternateRepresentations() {
					r.add(alt)
				}
			}
		}
	})
}

// add records f unless another field already claimed its path.
func (r *resource) add(f *Field) {
	if _, dup := r.byPath[f.path]; dup {
		return
	}
	r.byPath[f.path] = f
	r.walk = append(r.walk, f)
}

func sortedKeys(m Mapping) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
