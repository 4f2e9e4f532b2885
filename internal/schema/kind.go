package schema

import "sync"

// Class groups mapping type tags by how downstream query builders treat them.
type Class uint

const (
	ClassUnknown Class = iota
	ClassText
	ClassKeyword
	ClassDate
	ClassGeoPoint
	ClassNumeric
	ClassBoolean
	ClassObject
	ClassComposite
)

func (c Class) String() string {
	switch c {
	case ClassText:
		return "text"
	case ClassKeyword:
		return "keyword"
	case ClassDate:
		return "date"
	case ClassGeoPoint:
		return "geo_point"
	case ClassNumeric:
		return "numeric"
	case ClassBoolean:
		return "boolean"
	case ClassObject:
		return "object"
	case ClassComposite:
		return "composite"
	default:
		return "unknown"
	}
}

// Type tags with special meaning to the descriptor.
const (
	KindString     = "string"
	KindText       = "text"
	KindDate       = "date"
	KindGeoPoint   = "geo_point"
	KindMultiField = "multi_field"
)

var (
	kindsMu sync.RWMutex
	kinds   = map[string]Class{
		KindString:     ClassText,
		KindText:       ClassText,
		"keyword":      ClassKeyword,
		KindDate:       ClassDate,
		KindGeoPoint:   ClassGeoPoint,
		"long":         ClassNumeric,
		"integer":      ClassNumeric,
		"short":        ClassNumeric,
		"byte":         ClassNumeric,
		"double":       ClassNumeric,
		"float":        ClassNumeric,
		"boolean":      ClassBoolean,
		"object":       ClassObject,
		"nested":       ClassObject,
		KindMultiField: ClassComposite,
	}
)

// RegisterKind classifies a mapping type tag. Registering an existing tag
// replaces its class. Kinds should be registered before any fields are built,
// typically from init: a field keeps the class its tag had at construction.
func RegisterKind(kind string, class Class) {
	kindsMu.Lock()
	defer kindsMu.Unlock()
	kinds[kind] = class
}

// Classify returns the class registered for a type tag, or ClassUnknown.
func Classify(kind string) Class {
	kindsMu.RLock()
	defer kindsMu.RUnlock()
	return kinds[kind]
}
