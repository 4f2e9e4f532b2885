// Package schema resolves search-engine mapping fragments into a tree of
// field descriptors.
package schema

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
)

// ErrInvalidDefinition is returned when a descriptor is built from a nil
// mapping fragment.
var ErrInvalidDefinition = errors.New("invalid field definition")

// Mapping is one fragment of an index mapping: attribute names mapped to
// scalars or to nested fragments.
type Mapping map[string]any

// Mapping attribute names.
const (
	attrType       = "type"
	attrSort       = "sort"
	attrIndex      = "index"
	attrEnabled    = "enabled"
	attrFacet      = "facet"
	attrProperties = "properties"
	attrFields     = "fields"

	notAnalyzed = "not_analyzed"
	rawSuffix   = ".raw"
)

// Field describes one field of a resource mapping.
type Field struct {
	resource      string
	path          string
	mapping       Mapping
	variantSuffix string
	class         Class

	subfieldsOnce sync.Once
	subfields     []*Field

	alternatesOnce sync.Once
	alternates     []*Field
}

// Option configures a Field at construction.
type Option func(*Field)

// WithVariantSuffix sets the qualifier appended to the field when it is used
// as a facet or query target (e.g. ".year" on a date).
func WithVariantSuffix(suffix string) Option {
	return func(f *Field) {
		f.variantSuffix = suffix
	}
}

// New builds a descriptor for the field at path within resource.
func New(resource, path string, m Mapping, opts ...Option) (*Field, error) {
	if m == nil {
		return nil, fmt.Errorf("can't create field %q of %q from nil mapping: %w", path, resource, ErrInvalidDefinition)
	}
	f := &Field{resource: resource, path: path, mapping: m}
	for _, opt := range opts {
		opt(f)
	}
	f.class = Classify(f.Type())
	return f, nil
}

func (f *Field) Resource() string { return f.resource }
func (f *Field) Path() string { return f.path }
func (f *Field) Mapping() Mapping { return f.mapping }
func (f *Field) VariantSuffix() string { return f.variantSuffix }

// Name returns the last segment of the field's path.
func (f *Field) Name() string {
	if i := strings.LastIndexByte(f.path, '.'); i >= 0 {
		return f.path[i+1:]
	}
	return f.path
}

// Type returns the mapping's type tag, or "" when it has none.
func (f *Field) Type() string {
	t, _ := f.mapping[attrType].(string)
	return t
}

// Class is fixed when the field is built; later RegisterKind calls do not
// change it.
func (f *Field) Class() Class { return f.class }
func (f *Field) Is(c Class) bool { return f.Class() == c }
func (f *Field) IsTextField() bool { return f.Is(ClassText) }
func (f *Field) IsDateField() bool { return f.Is(ClassDate) }
func (f *Field) IsGeoPointField() bool { return f.Is(ClassGeoPoint) }
func (f *Field) IsCompositeField() bool { return f.Is(ClassComposite) }

// SortKey returns the mapping's explicit sort attribute.
func (f *Field) SortKey() (any, bool) {
	v, ok := f.mapping[attrSort]
	return v, ok && v != nil
}

func (f *Field) Sortable() bool {
	_, ok := f.SortKey()
	return ok
}

// Analyzed reports whether the field is indexed as analyzed text. Only an
// explicit "not_analyzed" index mode turns it off.
func (f *Field) Analyzed() bool {
	mode, _ := f.mapping[attrIndex].(string)
	return mode != notAnalyzed
}

// Enabled reports false only when the mapping sets enabled: false.
func (f *Field) Enabled() bool {
	enabled, ok := f.mapping[attrEnabled].(bool)
	return !ok || enabled
}

// Subfields returns one descriptor per entry of the mapping's properties.
func (f *Field) Subfields() []*Field {
	f.subfieldsOnce.Do(func() {
		f.subfields = f.children(attrProperties)
	})
	return f.subfields
}

func (f *Field) HasSubfields() bool {
	return len(f.Subfields()) > 0
}

func (f *Field) SubfieldNames() []string {
	subs := f.Subfields()
	names := make([]string, len(subs))
	for i, sf := range subs {
		names[i] = sf.path
	}
	return names
}

// SubfieldsDeep returns the field followed by the deep subfields of each
// child, depth-first. A field without subfields returns just itself.
func (f *Field) SubfieldsDeep() []*Field {
	out := []*Field{f}
	for _, sf := range f.Subfields() {
		out = append(out, sf.SubfieldsDeep()...)
	}
	return out
}

// AlternateRepresentations returns the multi-field variants of a composite
// field. Non-composite fields have none.
func (f *Field) AlternateRepresentations() []*Field {
	f.alternatesOnce.Do(func() {
		if f.IsCompositeField() {
			f.alternates = f.children(attrFields)
		} else {
			f.alternates = []*Field{}
		}
	})
	return f.alternates
}

// Facetable reports whether the field can be used as a facet. A field
// marked facet: true always is; a composite field is facetable through a
// facetable ".raw" representation. Facetability never propagates up from
// subfields.
func (f *Field) Facetable() bool {
	if f.facetFlag() {
		return true
	}
	if f.IsCompositeField() {
		return f.rawRepresentation() != nil
	}
	return false
}

// FacetPath returns the path a facet aggregation on this field targets,
// including the variant suffix.
func (f *Field) FacetPath() (string, bool) {
	if f.facetFlag() {
		return f.path + f.variantSuffix, true
	}
	if f.IsCompositeField() {
		if raw := f.rawRepresentation(); raw != nil {
			return raw.path + f.variantSuffix, true
		}
	}
	return "", false
}

func (f *Field) facetFlag() bool {
	facet, _ := f.mapping[attrFacet].(bool)
	return facet
}

func (f *Field) rawRepresentation() *Field {
	for _, alt := range f.AlternateRepresentations() {
		if strings.HasSuffix(alt.path, rawSuffix) && alt.Facetable() {
			return alt
		}
	}
	return nil
}

// children builds a descriptor for each nested fragment under key, in name
// order. Entries that are not fragments are skipped.
func (f *Field) children(key string) []*Field {
	nested := asMapping(f.mapping[key])
	if len(nested) == 0 {
		return []*Field{}
	}

	names := make([]string, 0, len(nested))
	for name := range nested {
		names = append(names, name)
	}
	sort.Strings(names)

	out := make([]*Field, 0, len(names))
	for _, name := range names {
		m := asMapping(nested[name])
		if m == nil {
			continue
		}
		child := &Field{resource: f.resource, path: f.path + "." + name, mapping: m}
		child.class = Classify(child.Type())
		out = append(out, child)
	}
	return out
}

func asMapping(v any) Mapping {
	switch m := v.(type) {
	case Mapping:
		return m
	case map[string]any:
		return Mapping(m)
	default:
		return nil
	}
}
