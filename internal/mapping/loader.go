package mapping

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sort"
	"strings"

	"github.com/dpla/fieldmap/internal/schema"
	"github.com/klauspost/compress/zstd"
	"golang.org/x/sync/errgroup"
	"gopkg.in/yaml.v3"
)

const (
	keyMappings   = "mappings"
	keyProperties = "properties"

	// typelessResource names the single resource of a mapping that has no
	// type level and no enclosing index name.
	typelessResource = "_doc"
)

// Parse decodes a YAML or JSON mapping document into per-resource mappings.
//
// Accepted shapes:
//
//	{resource: {properties: ...}, ...}
//	{mappings: {resource: {properties: ...}}}
//	{mappings: {properties: ...}}
//	{index: {mappings: {resource: {properties: ...}}}}
//	{index: {mappings: {properties: ...}}}
func Parse(data []byte) (map[string]schema.Mapping, error) {
	var doc any
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("decoding mapping document: %w", err)
	}
	if doc == nil {
		return nil, errors.New("empty mapping document")
	}

	root, err := Normalize(doc)
	if err != nil {
		return nil, fmt.Errorf("normalizing mapping document: %w", err)
	}
	return resourcesOf(root)
}

func resourcesOf(root schema.Mapping) (map[string]schema.Mapping, error) {
	if m, ok := root[keyMappings].(schema.Mapping); ok && isIndexBody(root) {
		return typeLevel(typelessResource, m)
	}

	if isIndexEnvelope(root) {
		out := make(map[string]schema.Mapping)
		for _, index := range sortedNames(root) {
			mappings := root[index].(schema.Mapping)[keyMappings].(schema.Mapping)
			resources, err := typeLevel(index, mappings)
			if err != nil {
				return nil, fmt.Errorf("index %q: %w", index, err)
			}
			if err := Merge(out, resources, index); err != nil {
				return nil, err
			}
		}
		return out, nil
	}

	return typeLevel(typelessResource, root)
}

// typeLevel reads the level below "mappings": either resource names or, for
// typeless mappings, the root fields themselves.
func typeLevel(name string, m schema.Mapping) (map[string]schema.Mapping, error) {
	if _, ok := m[keyProperties]; ok {
		return map[string]schema.Mapping{name: m}, nil
	}
	out := make(map[string]schema.Mapping, len(m))
	for resource, v := range m {
		rm, ok := v.(schema.Mapping)
		if !ok {
			return nil, fmt.Errorf("resource %q: expected a mapping, got %T", resource, v)
		}
		out[resource] = rm
	}
	return out, nil
}

func isIndexEnvelope(root schema.Mapping) bool {
	if len(root) == 0 {
		return false
	}
	for _, v := range root {
		m, ok := v.(schema.Mapping)
		if !ok {
			return false
		}
		if _, ok := m[keyMappings].(schema.Mapping); !ok {
			return false
		}
	}
	return true
}

// isIndexBody reports whether root is a create-index request body: a
// "mappings" section with optional "settings" and "aliases" beside it.
func isIndexBody(root schema.Mapping) bool {
	for k := range root {
		switch k {
		case keyMappings, "settings", "aliases":
		default:
			return false
		}
	}
	return true
}

// Merge adds the resources of src to dst. origin names src in errors.
func Merge(dst, src map[string]schema.Mapping, origin string) error {
	for name, m := range src {
		if _, dup := dst[name]; dup {
			return fmt.Errorf("resource %q defined more than once (in %s)", name, origin)
		}
		dst[name] = m
	}
	return nil
}

// LoadFile reads and parses one mapping file. Files ending in ".zst" are
// zstd-compressed.
func LoadFile(path string) (map[string]schema.Mapping, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading mapping file: %w", err)
	}

	if strings.HasSuffix(path, ".zst") {
		data, err = decompress(data)
		if err != nil {
			return nil, fmt.Errorf("decompressing %s: %w", path, err)
		}
	}

	resources, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return resources, nil
}

// LoadAll loads the given mapping files concurrently and builds one schema
// from all of their resources.
func LoadAll(ctx context.Context, paths []string) (*schema.Schema, error) {
	resources, err := LoadResources(ctx, paths)
	if err != nil {
		return nil, err
	}
	return schema.NewSchema(resources)
}

// LoadResources loads the given mapping files concurrently and merges their
// resources. A resource defined by more than one file is an error.
func LoadResources(ctx context.Context, paths []string) (map[string]schema.Mapping, error) {
	results := make([]map[string]schema.Mapping, len(paths))

	g, ctx := errgroup.WithContext(ctx)
	for i, p := range paths {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			resources, err := LoadFile(p)
			if err != nil {
				return err
			}
			slog.Debug("loaded mapping file", "path", p, "resources", len(resources))
			results[i] = resources
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	all := make(map[string]schema.Mapping)
	for i, resources := range results {
		if err := Merge(all, resources, paths[i]); err != nil {
			return nil, err
		}
	}
	return all, nil
}

func decompress(data []byte) ([]byte, error) {
	r, err := zstd.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("creating zstd reader: %w", err)
	}
	defer r.Close()
	return io.ReadAll(r)
}

func sortedNames(m schema.Mapping) []string {
	names := make([]string, 0, len(m))
	for k := range m {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}
