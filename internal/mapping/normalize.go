package mapping

import (
	"fmt"

	"github.com/dpla/fieldmap/internal/schema"
)

// Normalize converts a decoded mapping document into a schema.Mapping with
// canonical string keys. Symbol-style keys (":type") lose their leading
// colon, so ":type" and "type" address the same attribute.
func Normalize(v any) (schema.Mapping, error) {
	n, err := normalizeValue(v, "")
	if err != nil {
		return nil, err
	}
	m, ok := n.(schema.Mapping)
	if !ok {
		return nil, fmt.Errorf("expected a mapping, got %T", v)
	}
	return m, nil
}

type entry struct {
	key   any
	value any
}

func normalizeValue(v any, at string) (any, error) {
	switch val := v.(type) {
	case schema.Mapping:
		return normalizeValue(map[string]any(val), at)
	case map[string]any:
		entries := make([]entry, 0, len(val))
		for k, e := range val {
			entries = append(entries, entry{k, e})
		}
		return normalizeEntries(entries, at)
	case map[any]any:
		entries := make([]entry, 0, len(val))
		for k, e := range val {
			entries = append(entries, entry{k, e})
		}
		return normalizeEntries(entries, at)
	case []any:
		out := make([]any, len(val))
		for i, e := range val {
			n, err := normalizeValue(e, fmt.Sprintf("%s[%d]", at, i))
			if err != nil {
				return nil, err
			}
			out[i] = n
		}
		return out, nil
	default:
		return v, nil
	}
}

func normalizeEntries(entries []entry, at string) (schema.Mapping, error) {
	out := make(schema.Mapping, len(entries))
	for _, e := range entries {
		key := canonicalKey(e.key)
		if _, dup := out[key]; dup {
			return nil, fmt.Errorf("%s: duplicate key %q after normalization", displayPath(at), key)
		}
		n, err := normalizeValue(e.value, joinPath(at, key))
		if err != nil {
			return nil, err
		}
		out[key] = n
	}
	return out, nil
}

func canonicalKey(k any) string {
	s, ok := k.(string)
	if !ok {
		s = fmt.Sprint(k)
	}
	if len(s) > 1 && s[0] == ':' {
		s = s[1:]
	}
	return s
}

func joinPath(at, key string) string {
	if at == "" {
		return key
	}
	return at + "." + key
}

func displayPath(at string) string {
	if at == "" {
		return "<root>"
	}
	return at
}
