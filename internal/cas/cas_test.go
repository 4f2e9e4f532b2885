package cas

import (
	"errors"
	"os"
	"reflect"
	"testing"

	"github.com/dpla/fieldmap/internal/schema"
)

func TestWriteRead_RoundTrip(t *testing.T) {
	t.Setenv("XDG_CACHE_HOME", t.TempDir())

	content := []byte(`{"properties":{"title":{"type":"string"}}}`)
	hash, err := Write(content)
	if err != nil {
		t.Fatal(err)
	}
	if len(hash) != 64 {
		t.Fatalf("expected sha256 hex hash, got %q", hash)
	}

	got, err := Read(hash)
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != string(content) {
		t.Errorf("round-trip failed: got %q, want %q", got, content)
	}
}

func TestWrite_Dedup(t *testing.T) {
	t.Setenv("XDG_CACHE_HOME", t.TempDir())

	content := []byte("duplicate content")
	hash1, err := Write(content)
	if err != nil {
		t.Fatal(err)
	}
	hash2, err := Write(content)
	if err != nil {
		t.Fatal(err)
	}
	if hash1 != hash2 {
		t.Errorf("same content produced different hashes: %s vs %s", hash1, hash2)
	}

	hashes, err := List()
	if err != nil {
		t.Fatal(err)
	}
	if len(hashes) != 1 || hashes[0] != hash1 {
		t.Errorf("List = %v, want [%s]", hashes, hash1)
	}
}

func TestWrite_DifferentContent(t *testing.T) {
	t.Setenv("XDG_CACHE_HOME", t.TempDir())

	hash1, err := Write([]byte("content A"))
	if err != nil {
		t.Fatal(err)
	}
	hash2, err := Write([]byte("content B"))
	if err != nil {
		t.Fatal(err)
	}
	if hash1 == hash2 {
		t.Error("different content should produce different hashes")
	}
}

func TestRead_MissingHash(t *testing.T) {
	t.Setenv("XDG_CACHE_HOME", t.TempDir())

	_, err := Read("0000000000000000000000000000000000000000000000000000000000000000")
	if err == nil {
		t.Fatal("expected error for missing hash")
	}
	if !errors.Is(err, os.ErrNotExist) {
		t.Errorf("expected not-exist error, got %v", err)
	}
}

func TestRead_InvalidHash(t *testing.T) {
	t.Setenv("XDG_CACHE_HOME", t.TempDir())

	if _, err := Read("../etc"); err == nil {
		t.Fatal("expected error for malformed hash")
	}
}

func TestWriteMapping_Stable(t *testing.T) {
	t.Setenv("XDG_CACHE_HOME", t.TempDir())

	a := schema.Mapping{"properties": map[string]any{
		"title":   map[string]any{"type": "string"},
		"created": map[string]any{"type": "date", "facet": true},
	}}
	b := schema.Mapping{"properties": map[string]any{
		"created": map[string]any{"facet": true, "type": "date"},
		"title":   map[string]any{"type": "string"},
	}}

	h1, err := WriteMapping(a)
	if err != nil {
		t.Fatal(err)
	}
	h2, err := WriteMapping(b)
	if err != nil {
		t.Fatal(err)
	}
	if h1 != h2 {
		t.Errorf("equal mappings hashed differently: %s vs %s", h1, h2)
	}

	got, err := ReadMapping(h1)
	if err != nil {
		t.Fatal(err)
	}
	want := map[string]any{"type": "date", "facet": true}
	created := got["properties"].(map[string]any)["created"]
	if !reflect.DeepEqual(created, want) {
		t.Errorf("created = %#v, want %#v", created, want)
	}
}
