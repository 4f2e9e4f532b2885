package db

import (
	"path/filepath"
	"testing"

	"github.com/dpla/fieldmap/internal/schema"
)

func testDB(t *testing.T) *DB {
	t.Helper()
	dir := t.TempDir()
	db, err := New(filepath.Join(dir, "test.db"))
	if err != nil {
		t.Fatalf("creating test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func testSchema(t *testing.T) *schema.Schema {
	t.Helper()
	s, err := schema.NewSchema(map[string]schema.Mapping{
		"item": {
			"properties": map[string]any{
				"title":   map[string]any{"type": "string"},
				"created": map[string]any{"type": "date", "facet": true, "sort": "field"},
				"isPartOf": map[string]any{
					"properties": map[string]any{
						"name": map[string]any{
							"type": "multi_field",
							"fields": map[string]any{
								"name": map[string]any{"type": "string"},
								"raw":  map[string]any{"type": "string", "index": "not_analyzed", "facet": true},
							},
						},
					},
				},
			},
		},
	})
	if err != nil {
		t.Fatal(err)
	}
	return s
}

func TestFieldRows(t *testing.T) {
	walk, err := testSchema(t).Walk("item")
	if err != nil {
		t.Fatal(err)
	}
	rows := FieldRows(walk)

	byPath := make(map[string]Field)
	for _, r := range rows {
		byPath[r.Path] = r
	}

	raw, ok := byPath["isPartOf.name.raw"]
	if !ok {
		t.Fatal("missing isPartOf.name.raw")
	}
	if !raw.Alternate || raw.Analyzed || !raw.Facetable || raw.Depth != 2 || raw.ParentPath != "isPartOf.name" {
		t.Errorf("unexpected raw row: %+v", raw)
	}

	name := byPath["isPartOf.name"]
	if name.Alternate || !name.Facetable || name.FacetPath != "isPartOf.name.raw" {
		t.Errorf("unexpected name row: %+v", name)
	}

	parent := byPath["isPartOf"]
	if !parent.HasSubfields || parent.Facetable || parent.ParentPath != "" {
		t.Errorf("unexpected isPartOf row: %+v", parent)
	}

	created := byPath["created"]
	if !created.Sortable || created.Type != "date" || created.Resource != "item" {
		t.Errorf("unexpected created row: %+v", created)
	}
}

func TestUpsertResource(t *testing.T) {
	db := testDB(t)

	r, err := db.UpsertResource("item", "hash1")
	if err != nil {
		t.Fatal(err)
	}
	if r.Name != "item" || r.MappingHash != "hash1" {
		t.Errorf("unexpected resource: %+v", r)
	}

	r2, err := db.UpsertResource("item", "hash2")
	if err != nil {
		t.Fatal(err)
	}
	if r2.ID != r.ID {
		t.Errorf("upsert changed id: %d -> %d", r.ID, r2.ID)
	}
	if r2.MappingHash != "hash2" {
		t.Errorf("hash not updated: %q", r2.MappingHash)
	}

	missing, err := db.GetResource("collection")
	if err != nil {
		t.Fatal(err)
	}
	if missing != nil {
		t.Errorf("expected nil for unknown resource, got %+v", missing)
	}
}

func TestReplaceAndQueryFields(t *testing.T) {
	db := testDB(t)
	walk, err := testSchema(t).Walk("item")
	if err != nil {
		t.Fatal(err)
	}

	r, err := db.UpsertResource("item", "h")
	if err != nil {
		t.Fatal(err)
	}
	rows := FieldRows(walk)
	if err := db.ReplaceFields(r.ID, rows); err != nil {
		t.Fatal(err)
	}
	// Replacing again must not duplicate rows.
	if err := db.ReplaceFields(r.ID, rows); err != nil {
		t.Fatal(err)
	}

	count, err := db.CountFields(r.ID)
	if err != nil {
		t.Fatal(err)
	}
	if count != len(rows) {
		t.Errorf("count = %d, want %d", count, len(rows))
	}

	t.Run("facetable", func(t *testing.T) {
		got, err := db.QueryFields(FieldQuery{Resources: []string{"item"}, FacetableOnly: true})
		if err != nil {
			t.Fatal(err)
		}
		want := []string{"created", "isPartOf.name", "isPartOf.name.raw"}
		if len(got) != len(want) {
			t.Fatalf("got %d fields, want %d: %+v", len(got), len(want), got)
		}
		for i, f := range got {
			if f.Path != want[i] {
				t.Errorf("field %d = %q, want %q", i, f.Path, want[i])
			}
		}
	})

	t.Run("contains and type", func(t *testing.T) {
		got, err := db.QueryFields(FieldQuery{Contains: "NAME", Type: "string"})
		if err != nil {
			t.Fatal(err)
		}
		if len(got) != 2 {
			t.Fatalf("got %+v", got)
		}
	})

	t.Run("sortable with limit", func(t *testing.T) {
		got, err := db.QueryFields(FieldQuery{SortableOnly: true, Limit: 1})
		if err != nil {
			t.Fatal(err)
		}
		if len(got) != 1 || got[0].Path != "created" {
			t.Fatalf("got %+v", got)
		}
	})

	t.Run("unknown resource", func(t *testing.T) {
		got, err := db.QueryFields(FieldQuery{Resources: []string{"nope"}})
		if err != nil {
			t.Fatal(err)
		}
		if len(got) != 0 {
			t.Errorf("expected no fields, got %d", len(got))
		}
	})
}

func TestListResources(t *testing.T) {
	db := testDB(t)
	for _, name := range []string{"item", "collection"} {
		if _, err := db.UpsertResource(name, "h-"+name); err != nil {
			t.Fatal(err)
		}
	}
	got, err := db.ListResources()
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 || got[0].Name != "collection" || got[1].Name != "item" {
		t.Errorf("unexpected resources: %+v", got)
	}
}

func TestPruneResources(t *testing.T) {
	db := testDB(t)
	walk, err := testSchema(t).Walk("item")
	if err != nil {
		t.Fatal(err)
	}
	item, err := db.UpsertResource("item", "h-item")
	if err != nil {
		t.Fatal(err)
	}
	if err := db.ReplaceFields(item.ID, FieldRows(walk)); err != nil {
		t.Fatal(err)
	}
	if _, err := db.UpsertResource("collection", "h-collection"); err != nil {
		t.Fatal(err)
	}

	removed, err := db.PruneResources([]string{"collection"})
	if err != nil {
		t.Fatal(err)
	}
	if len(removed) != 1 || removed[0] != "item" {
		t.Errorf("removed = %v, want [item]", removed)
	}

	got, err := db.ListResources()
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 || got[0].Name != "collection" {
		t.Errorf("unexpected resources: %+v", got)
	}
	if n, err := db.CountFields(item.ID); err != nil || n != 0 {
		t.Errorf("fields of pruned resource = %d (%v), want 0", n, err)
	}
	if r, err := db.GetResource("item"); err != nil || r != nil {
		t.Errorf("GetResource(item) = %+v, %v; want nil", r, err)
	}

	removed, err = db.PruneResources([]string{"collection"})
	if err != nil || len(removed) != 0 {
		t.Errorf("second prune removed %v (%v)", removed, err)
	}
}
