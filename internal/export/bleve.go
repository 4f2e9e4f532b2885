// Package export translates resolved field descriptors into index mappings
// for other search engines.
package export

import (
	"fmt"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/mapping"

	"github.com/dpla/fieldmap/internal/schema"
)

// BleveMapping builds a bleve index mapping with one document mapping per
// resource of s.
func BleveMapping(s *schema.Schema) (*mapping.IndexMappingImpl, error) {
	im := bleve.NewIndexMapping()

	for _, name := range s.Resources() {
		roots, err := s.Roots(name)
		if err != nil {
			return nil, err
		}
		dm := mapping.NewDocumentMapping()
		for _, f := range roots {
			addField(dm, f)
		}
		im.AddDocumentMapping(name, dm)
	}

	if err := im.Validate(); err != nil {
		return nil, fmt.Errorf("validating bleve mapping: %w", err)
	}
	return im, nil
}

func addField(dm *mapping.DocumentMapping, f *schema.Field) {
	name := f.Name()

	switch {
	case !f.Enabled():
		dm.AddSubDocumentMapping(name, mapping.NewDocumentDisabledMapping())

	case f.HasSubfields():
		sub := mapping.NewDocumentMapping()
		for _, sf := range f.Subfields() {
			addField(sub, sf)
		}
		dm.AddSubDocumentMapping(name, sub)

	case f.IsCompositeField():
		var fms []*mapping.FieldMapping
		for _, alt := range f.AlternateRepresentations() {
			fm := fieldMapping(alt)
			if fm == nil {
				continue
			}
			// The representation sharing the field's name is the default one;
			// others are indexed as name.alt.
			if alt.Name() != name {
				fm.Name = name + "." + alt.Name()
			}
			fms = append(fms, fm)
		}
		if len(fms) > 0 {
			dm.AddFieldMappingsAt(name, fms...)
		}

	default:
		if fm := fieldMapping(f); fm != nil {
			dm.AddFieldMappingsAt(name, fm)
		}
	}
}

// fieldMapping returns nil for kinds bleve has no field type for.
func fieldMapping(f *schema.Field) *mapping.FieldMapping {
	var fm *mapping.FieldMapping
	switch f.Class() {
	case schema.ClassText:
		if f.Analyzed() {
			fm = mapping.NewTextFieldMapping()
		} else {
			fm = mapping.NewKeywordFieldMapping()
		}
	case schema.ClassKeyword:
		fm = mapping.NewKeywordFieldMapping()
	case schema.ClassDate:
		fm = mapping.NewDateTimeFieldMapping()
	case schema.ClassGeoPoint:
		fm = mapping.NewGeoPointFieldMapping()
	case schema.ClassNumeric:
		fm = mapping.NewNumericFieldMapping()
	case schema.ClassBoolean:
		fm = mapping.NewBooleanFieldMapping()
	default:
		return nil
	}
	if f.Facetable() || f.Sortable() {
		fm.DocValues = true
	}
	return fm
}
