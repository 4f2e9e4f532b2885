package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/dpla/fieldmap/internal/cas"
	"github.com/dpla/fieldmap/internal/db"
	"github.com/dpla/fieldmap/internal/mapping"
	"github.com/dpla/fieldmap/internal/rpc"
	"github.com/dpla/fieldmap/internal/schema"
)

var errNoMappings = errors.New("no mapping files configured and live mapping not requested")

// currentSchema returns the loaded schema. On first use it is rebuilt from
// the snapshots recorded in the catalog, or loaded from the configured
// sources when the catalog is empty.
func (s *Server) currentSchema(ctx context.Context) (*schema.Schema, error) {
	s.schemaMu.RLock()
	sc := s.schema
	s.schemaMu.RUnlock()
	if sc != nil {
		return sc, nil
	}

	v, err, _ := s.reloadGroup.Do("restore", func() (interface{}, error) {
		sc, err := s.restoreSchema()
		if err != nil {
			return nil, err
		}
		if sc != nil {
			return sc, nil
		}
		if _, err := s.reload(ctx, s.defaultReload()); err != nil {
			return nil, err
		}
		s.schemaMu.RLock()
		defer s.schemaMu.RUnlock()
		return s.schema, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*schema.Schema), nil
}

func (s *Server) defaultReload() rpc.ReloadRequest {
	return rpc.ReloadRequest{Live: len(s.cfg.Mappings.Files) == 0}
}

// restoreSchema rebuilds the schema from catalog snapshots. It returns nil
// when the catalog has no resources yet.
func (s *Server) restoreSchema() (*schema.Schema, error) {
	resources, err := s.db.ListResources()
	if err != nil {
		return nil, fmt.Errorf("listing resources: %w", err)
	}
	if len(resources) == 0 {
		return nil, nil
	}

	mappings := make(map[string]schema.Mapping, len(resources))
	for _, r := range resources {
		m, err := cas.ReadMapping(r.MappingHash)
		if err != nil {
			slog.Warn("snapshot missing, reloading from sources", "resource", r.Name, "error", err)
			return nil, nil
		}
		mappings[r.Name] = m
	}

	sc, err := schema.NewSchema(mappings)
	if err != nil {
		return nil, err
	}
	s.setSchema(sc)
	slog.Info("restored schema from snapshots", "resources", len(resources))
	return sc, nil
}

func (s *Server) setSchema(sc *schema.Schema) {
	s.schemaMu.Lock()
	s.schema = sc
	s.schemaMu.Unlock()
}

// Reload loads mappings, snapshots every resource and refreshes the
// catalog. Concurrent identical requests share one load.
func (s *Server) Reload(ctx context.Context, req rpc.ReloadRequest) (*rpc.ReloadResponse, error) {
	key := fmt.Sprintf("%s|%t|%t", strings.Join(req.Files, ","), req.Live, req.Refresh)
	v, err, shared := s.reloadGroup.Do(key, func() (interface{}, error) {
		return s.reload(ctx, req)
	})
	if err != nil {
		return nil, err
	}
	if shared {
		slog.Debug("reload shared with concurrent request", "key", key)
	}
	return v.(*rpc.ReloadResponse), nil
}

func (s *Server) reload(ctx context.Context, req rpc.ReloadRequest) (*rpc.ReloadResponse, error) {
	files := req.Files
	if len(files) == 0 {
		files = s.cfg.Mappings.Files
	}
	if len(files) == 0 && !req.Live {
		return nil, errNoMappings
	}

	all, err := mapping.LoadResources(ctx, files)
	if err != nil {
		return nil, fmt.Errorf("loading mapping files: %w", err)
	}

	if req.Live {
		live, err := s.liveMapping(ctx, req.Refresh)
		if err != nil {
			return nil, err
		}
		if err := mapping.Merge(all, live, "live mapping of "+s.cfg.Search.Index); err != nil {
			return nil, err
		}
	}

	sc, err := schema.NewSchema(all)
	if err != nil {
		return nil, err
	}

	var resp rpc.ReloadResponse
	for _, name := range sc.Resources() {
		result, err := s.indexResource(sc, name)
		if err != nil {
			return nil, fmt.Errorf("indexing %s: %w", name, err)
		}
		resp.Resources = append(resp.Resources, result)
	}

	removed, err := s.db.PruneResources(sc.Resources())
	if err != nil {
		return nil, fmt.Errorf("pruning catalog: %w", err)
	}
	if len(removed) > 0 {
		slog.Info("dropped resources no longer loaded", "resources", removed)
	}

	s.setSchema(sc)
	slog.Info("schema reloaded", "resources", len(resp.Resources), "files", len(files), "live", req.Live)
	return &resp, nil
}

func (s *Server) liveMapping(ctx context.Context, refresh bool) (map[string]schema.Mapping, error) {
	index := s.cfg.Search.Index
	if !refresh && mapping.HasCache(index) {
		resources, err := mapping.LoadCache(index)
		if err == nil {
			slog.Debug("using cached live mapping", "index", index)
			return resources, nil
		}
		slog.Warn("cached mapping unreadable, refetching", "index", index, "error", err)
	}

	endpoint, err := s.cfg.SearchEndpoint()
	if err != nil {
		return nil, fmt.Errorf("resolving search endpoint: %w", err)
	}
	data, err := mapping.Fetch(ctx, endpoint, index)
	if err != nil {
		return nil, err
	}
	if err := mapping.SaveCache(data, index); err != nil {
		slog.Warn("failed to cache live mapping", "index", index, "error", err)
	}
	return mapping.Parse(data)
}

// indexResource snapshots one resource and rewrites its catalog rows unless
// the snapshot is unchanged since the last load.
func (s *Server) indexResource(sc *schema.Schema, name string) (rpc.ResourceResult, error) {
	result := rpc.ResourceResult{Name: name}

	m, err := sc.ResourceMapping(name)
	if err != nil {
		return result, err
	}
	hash, err := cas.WriteMapping(m)
	if err != nil {
		return result, fmt.Errorf("writing snapshot: %w", err)
	}
	result.MappingHash = hash

	existing, err := s.db.GetResource(name)
	if err != nil {
		return result, err
	}
	if existing != nil && existing.MappingHash == hash {
		if n, err := s.db.CountFields(existing.ID); err == nil && n > 0 {
			result.Fields = n
			result.Unchanged = true
			return result, nil
		}
	}

	walk, err := sc.Walk(name)
	if err != nil {
		return result, err
	}
	rows := db.FieldRows(walk)

	r, err := s.db.UpsertResource(name, hash)
	if err != nil {
		return result, err
	}
	if err := s.db.ReplaceFields(r.ID, rows); err != nil {
		return result, err
	}
	result.Fields = len(rows)
	slog.Info("indexed resource", "resource", name, "fields", len(rows), "hash", hash[:12])
	return result, nil
}
