package config

import (
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
)

func TestCacheBase_XDGSet(t *testing.T) {
	t.Setenv("XDG_CACHE_HOME", "/custom/cache")
	got := cacheBase()
	want := filepath.Join("/custom/cache", "fieldmap")
	if got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestCacheBase_HomeDir(t *testing.T) {
	t.Setenv("XDG_CACHE_HOME", "")
	got := cacheBase()
	home, err := os.UserHomeDir()
	if err != nil {
		t.Skip("cannot determine home dir")
	}
	want := filepath.Join(home, ".cache", "fieldmap")
	if got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestCacheBase_TmpFallback(t *testing.T) {
	t.Setenv("XDG_CACHE_HOME", "")
	t.Setenv("HOME", "")
	got := cacheBase()
	// Should use os.TempDir() when HOME is unset
	if !strings.Contains(got, "fieldmap") {
		t.Errorf("expected fieldmap in path, got %q", got)
	}
}

func TestDerivedPaths(t *testing.T) {
	t.Setenv("XDG_CACHE_HOME", "/c")
	if got := DBPath(); got != "/c/fieldmap/catalog.db" {
		t.Errorf("DBPath = %q", got)
	}
	if got := CASDir(); got != "/c/fieldmap/cas" {
		t.Errorf("CASDir = %q", got)
	}
	if got := MappingCacheDir(); got != "/c/fieldmap/mappings" {
		t.Errorf("MappingCacheDir = %q", got)
	}
}

func TestStringToFilesHook(t *testing.T) {
	hook := stringToFilesHookFunc().(func(f, t reflect.Type, data interface{}) (interface{}, error))

	got, err := hook(reflect.TypeOf(""), reflect.TypeOf([]string{}), " a.yml, b.json ")
	if err != nil {
		t.Fatal(err)
	}
	want := []string{"a.yml", "b.json"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("got %v, want %v", got, want)
	}

	got, err = hook(reflect.TypeOf(""), reflect.TypeOf([]string{}), "")
	if err != nil {
		t.Fatal(err)
	}
	if s, ok := got.([]string); !ok || len(s) != 0 {
		t.Errorf("empty string should decode to no files, got %#v", got)
	}

	got, err = hook(reflect.TypeOf(0), reflect.TypeOf(0), 5)
	if err != nil {
		t.Fatal(err)
	}
	if got != 5 {
		t.Errorf("unrelated types should pass through, got %v", got)
	}
}

func TestExpandHome(t *testing.T) {
	t.Setenv("HOME", "/home/u")
	got := expandHome([]string{"~/m.yml", "/abs.yml", "rel.yml"})
	want := []string{"/home/u/m.yml", "/abs.yml", "rel.yml"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("got %v, want %v", got, want)
	}
}
