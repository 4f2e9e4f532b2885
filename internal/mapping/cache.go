package mapping

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/dpla/fieldmap/internal/config"
	"github.com/dpla/fieldmap/internal/schema"
	"github.com/klauspost/compress/zstd"
)

// CachePath returns where the fetched mapping of index is kept.
func CachePath(index string) string {
	return filepath.Join(config.MappingCacheDir(), index+".json.zst")
}

// SaveCache compresses and saves a fetched mapping document to disk.
func SaveCache(data []byte, index string) error {
	dir := config.MappingCacheDir()
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("creating mapping cache dir: %w", err)
	}

	f, err := os.Create(CachePath(index))
	if err != nil {
		return fmt.Errorf("creating cache file: %w", err)
	}
	defer f.Close()

	w, err := zstd.NewWriter(f)
	if err != nil {
		return fmt.Errorf("creating zstd writer: %w", err)
	}

	if _, err := w.Write(data); err != nil {
		w.Close()
		return fmt.Errorf("writing compressed data: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("closing zstd writer: %w", err)
	}
	return nil
}

// LoadCache loads and parses the cached mapping of index.
func LoadCache(index string) (map[string]schema.Mapping, error) {
	f, err := os.Open(CachePath(index))
	if err != nil {
		return nil, fmt.Errorf("opening cache file: %w", err)
	}
	defer f.Close()

	r, err := zstd.NewReader(f)
	if err != nil {
		return nil, fmt.Errorf("creating zstd reader: %w", err)
	}
	defer r.Close()

	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("decompressing cached mapping: %w", err)
	}
	return Parse(data)
}

// HasCache checks whether a fetched mapping of index is cached on disk.
func HasCache(index string) bool {
	_, err := os.Stat(CachePath(index))
	return err == nil
}

// ClearCache removes every cached mapping and returns how many were removed.
func ClearCache() (int, error) {
	matches, err := filepath.Glob(filepath.Join(config.MappingCacheDir(), "*.json.zst"))
	if err != nil {
		return 0, err
	}
	removed := 0
	for _, m := range matches {
		if err := os.Remove(m); err != nil && !os.IsNotExist(err) {
			return removed, fmt.Errorf("removing %s: %w", m, err)
		}
		removed++
	}
	return removed, nil
}
