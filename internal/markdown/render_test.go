package markdown

import (
	"strings"
	"testing"

	"github.com/dpla/fieldmap/internal/rpc"
)

func TestRenderField(t *testing.T) {
	t.Parallel()
	got := RenderField(rpc.FieldDetail{
		Resource:   "item",
		Path:       "isPartOf.name",
		Name:       "name",
		Type:       "multi_field",
		Class:      "composite",
		Analyzed:   true,
		Enabled:    true,
		Facetable:  true,
		FacetPath:  "isPartOf.name.raw",
		Alternates: []string{"isPartOf.name.name", "isPartOf.name.raw"},
	})

	for _, want := range []string{
		"# item.isPartOf.name",
		"| type | `multi_field` |",
		"| facetable | yes, on `isPartOf.name.raw` |",
		"| sortable | no |",
		"## Alternate representations",
		"- [isPartOf.name.raw](fieldmap://item/isPartOf.name.raw)",
	} {
		if !strings.Contains(got, want) {
			t.Errorf("missing %q in:\n%s", want, got)
		}
	}
	if strings.Contains(got, "## Subfields") {
		t.Error("unexpected subfields section")
	}
}

func TestRenderField_SortableAndSuffix(t *testing.T) {
	t.Parallel()
	got := RenderField(rpc.FieldDetail{
		Resource:      "item",
		Path:          "created.before",
		Name:          "created",
		Type:          "date",
		Class:         "date",
		Sortable:      true,
		SortKey:       "field",
		VariantSuffix: ".before",
	})
	if !strings.Contains(got, "| sortable | yes (`field`) |") {
		t.Errorf("sort key not rendered:\n%s", got)
	}
	if !strings.Contains(got, "| variant suffix | `.before` |") {
		t.Errorf("variant suffix not rendered:\n%s", got)
	}
}

func TestRenderFieldTable(t *testing.T) {
	t.Parallel()

	if got := RenderFieldTable(nil); got != "No fields found.\n" {
		t.Errorf("empty table = %q", got)
	}

	got := RenderFieldTable([]rpc.FieldResult{
		{Resource: "item", Path: "created", Type: "date", Facetable: true, FacetPath: "created", Sortable: true},
		{Resource: "item", Path: "isPartOf.name.raw", Type: "string", Alternate: true},
	})
	lines := strings.Split(strings.TrimSpace(got), "\n")
	if len(lines) != 4 {
		t.Fatalf("expected header, separator and 2 rows, got:\n%s", got)
	}
	if lines[2] != "| item | `created` | `date` | `created` | yes |" {
		t.Errorf("row 1 = %q", lines[2])
	}
	if !strings.Contains(lines[3], "(alt)") {
		t.Errorf("alternate not marked: %q", lines[3])
	}
}

func TestAddFrontMatter(t *testing.T) {
	t.Parallel()

	t.Run("basic", func(t *testing.T) {
		got := AddFrontMatter("# Doc", map[string]string{"uri": "fieldmap://item/title"})
		if !strings.HasPrefix(got, "---\n") {
			t.Error("missing opening ---")
		}
		if !strings.Contains(got, "uri: fieldmap://item/title") {
			t.Error("missing uri entry")
		}
		if !strings.HasSuffix(got, "# Doc") {
			t.Error("original content missing")
		}
	})

	t.Run("sorted_keys", func(t *testing.T) {
		got := AddFrontMatter("body", map[string]string{
			"resource": "item",
			"facet":    "created",
		})
		if strings.Index(got, "facet") > strings.Index(got, "resource") {
			t.Error("keys not sorted alphabetically")
		}
	})

	t.Run("empty_map", func(t *testing.T) {
		got := AddFrontMatter("body", nil)
		if got != "body" {
			t.Errorf("expected unchanged for empty map, got %q", got)
		}
	})
}

func TestToHTML(t *testing.T) {
	t.Parallel()
	got := ToHTML("# item.title\n\n| a | b |\n|---|---|\n| 1 | 2 |\n")
	if !strings.Contains(got, "<h1") {
		t.Errorf("heading not rendered: %s", got)
	}
	if !strings.Contains(got, "<table>") {
		t.Errorf("table not rendered: %s", got)
	}
}
