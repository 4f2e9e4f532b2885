package cas

import (
	"bytes"
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/dpla/fieldmap/internal/config"
	"github.com/dpla/fieldmap/internal/schema"
	"github.com/klauspost/compress/zstd"
)

const ext = ".json.zst"

// Dir returns the snapshot store directory.
func Dir() string {
	return config.CASDir()
}

// path returns the sharded file path for a hash: cas/<first2>/<rest>.json.zst
func path(hash string) string {
	return filepath.Join(Dir(), hash[:2], hash[2:]+ext)
}

func validHash(hash string) error {
	if len(hash) != sha256.Size*2 {
		return fmt.Errorf("invalid snapshot hash %q", hash)
	}
	return nil
}

// Write stores data in the store, returning its SHA-256 hash.
// If the content already exists, this is a no-op.
func Write(data []byte) (string, error) {
	hash := fmt.Sprintf("%x", sha256.Sum256(data))

	p := path(hash)
	if _, err := os.Stat(p); err == nil {
		return hash, nil
	}

	if err := os.MkdirAll(filepath.Dir(p), 0755); err != nil {
		return "", fmt.Errorf("creating snapshot directory: %w", err)
	}

	var buf bytes.Buffer
	w, err := zstd.NewWriter(&buf)
	if err != nil {
		return "", fmt.Errorf("creating zstd writer: %w", err)
	}
	if _, err := w.Write(data); err != nil {
		w.Close()
		return "", fmt.Errorf("compressing snapshot: %w", err)
	}
	if err := w.Close(); err != nil {
		return "", fmt.Errorf("closing zstd writer: %w", err)
	}

	// Write to a temp file first so concurrent readers never see a partial snapshot.
	tmp, err := os.CreateTemp(filepath.Dir(p), ".snapshot-*")
	if err != nil {
		return "", fmt.Errorf("creating temp file: %w", err)
	}
	if _, err := tmp.Write(buf.Bytes()); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return "", fmt.Errorf("writing snapshot: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return "", fmt.Errorf("writing snapshot: %w", err)
	}
	if err := os.Rename(tmp.Name(), p); err != nil {
		os.Remove(tmp.Name())
		return "", fmt.Errorf("renaming snapshot: %w", err)
	}

	return hash, nil
}

// Read retrieves content from the store by hash.
func Read(hash string) ([]byte, error) {
	if err := validHash(hash); err != nil {
		return nil, err
	}

	f, err := os.Open(path(hash))
	if err != nil {
		return nil, fmt.Errorf("reading snapshot %s: %w", hash, err)
	}
	defer f.Close()

	r, err := zstd.NewReader(f)
	if err != nil {
		return nil, fmt.Errorf("creating zstd reader: %w", err)
	}
	defer r.Close()

	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("decompressing snapshot %s: %w", hash, err)
	}
	return data, nil
}

// WriteMapping snapshots a resource mapping. encoding/json sorts map keys,
// so equal mappings always share a hash.
func WriteMapping(m schema.Mapping) (string, error) {
	data, err := json.Marshal(m)
	if err != nil {
		return "", fmt.Errorf("encoding mapping: %w", err)
	}
	return Write(data)
}

// ReadMapping loads a snapshot written by WriteMapping.
func ReadMapping(hash string) (schema.Mapping, error) {
	data, err := Read(hash)
	if err != nil {
		return nil, err
	}
	var m schema.Mapping
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("decoding snapshot %s: %w", hash, err)
	}
	return m, nil
}

// List returns the hashes of every stored snapshot, sorted.
func List() ([]string, error) {
	matches, err := filepath.Glob(filepath.Join(Dir(), "*", "*"+ext))
	if err != nil {
		return nil, err
	}
	hashes := make([]string, 0, len(matches))
	for _, m := range matches {
		shard := filepath.Base(filepath.Dir(m))
		hashes = append(hashes, shard+strings.TrimSuffix(filepath.Base(m), ext))
	}
	sort.Strings(hashes)
	return hashes, nil
}
