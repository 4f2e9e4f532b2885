package search

import (
	"github.com/dpla/fieldmap/internal/rpc"
	"github.com/dpla/fieldmap/internal/schema"
)

// Detail collects every derived property of f.
func Detail(f *schema.Field) rpc.FieldDetail {
	d := rpc.FieldDetail{
		Resource:      f.Resource(),
		Path:          f.Path(),
		Name:          f.Name(),
		Type:          f.Type(),
		Class:         f.Class().String(),
		VariantSuffix: f.VariantSuffix(),
		Analyzed:      f.Analyzed(),
		Enabled:       f.Enabled(),
		Sortable:      f.Sortable(),
		Facetable:     f.Facetable(),
		Subfields:     f.SubfieldNames(),
	}
	if key, ok := f.SortKey(); ok {
		d.SortKey = key
	}
	if p, ok := f.FacetPath(); ok {
		d.FacetPath = p
	}
	for _, alt := range f.AlternateRepresentations() {
		d.Alternates = append(d.Alternates, alt.Path())
	}
	// SubfieldsDeep starts with f itself.
	for _, sub := range f.SubfieldsDeep()[1:] {
		d.AllSubfieldPaths = append(d.AllSubfieldPaths, sub.Path())
	}
	return d
}
