package daemon

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/dpla/fieldmap/internal/cas"
	"github.com/dpla/fieldmap/internal/config"
	"github.com/dpla/fieldmap/internal/db"
	"github.com/dpla/fieldmap/internal/mapping"
	md "github.com/dpla/fieldmap/internal/markdown"
	"github.com/dpla/fieldmap/internal/rpc"
	"github.com/dpla/fieldmap/internal/schema"
	"github.com/dpla/fieldmap/internal/search"
	"golang.org/x/sync/singleflight"
)

type Server struct {
	db         *db.DB
	finder     *search.Finder
	cfg        *config.Config
	socketPath string
	httpServer *http.Server
	listener   net.Listener

	mu         sync.Mutex
	expTimer   *time.Timer
	expiration time.Duration

	schemaMu    sync.RWMutex
	schema      *schema.Schema
	reloadGroup singleflight.Group
}

func NewServer(cfg *config.Config, database *db.DB, socketPath string) *Server {
	expSec := cfg.Daemon.ExpirationSeconds
	if expSec <= 0 {
		expSec = 600
	}

	return &Server{
		db:         database,
		finder:     search.NewFinder(database),
		cfg:        cfg,
		socketPath: socketPath,
		expiration: time.Duration(expSec) * time.Second,
	}
}

// Handler returns the daemon's HTTP routes.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /status", s.withExpReset(s.handleStatus))
	mux.HandleFunc("POST /reload", s.withExpReset(s.handleReload))
	mux.HandleFunc("POST /fields", s.withExpReset(s.handleFields))
	mux.HandleFunc("POST /describe", s.withExpReset(s.handleDescribe))
	mux.HandleFunc("POST /facets", s.withExpReset(s.handleFacets))
	mux.HandleFunc("POST /snapshot", s.withExpReset(s.handleSnapshot))
	mux.HandleFunc("POST /clear-cache", s.withExpReset(s.handleClearCache))
	mux.HandleFunc("POST /shutdown", s.handleShutdown)
	return mux
}

func (s *Server) Start(ctx context.Context) error {
	if err := os.MkdirAll(filepath.Dir(s.socketPath), 0755); err != nil {
		return fmt.Errorf("creating socket directory: %w", err)
	}
	os.Remove(s.socketPath)

	listener, err := net.Listen("unix", s.socketPath)
	if err != nil {
		return fmt.Errorf("listening on socket: %w", err)
	}
	if err := os.Chmod(s.socketPath, 0600); err != nil {
		listener.Close()
		return fmt.Errorf("setting socket permissions: %w", err)
	}
	s.listener = listener

	s.httpServer = &http.Server{Handler: s.Handler()}

	s.mu.Lock()
	s.expTimer = time.AfterFunc(s.expiration, s.expire)
	s.mu.Unlock()

	log.Printf("daemon: listening on %s (expires after %s of inactivity)", s.socketPath, s.expiration)

	if err := s.httpServer.Serve(listener); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("serving: %w", err)
	}
	return nil
}

func (s *Server) Stop(ctx context.Context) error {
	s.mu.Lock()
	if s.expTimer != nil {
		s.expTimer.Stop()
	}
	s.mu.Unlock()

	var errs []error
	if s.httpServer != nil {
		if err := s.httpServer.Shutdown(ctx); err != nil {
			log.Printf("daemon: shutdown error: %v", err)
			errs = append(errs, err)
		}
	}
	if s.listener != nil {
		if err := s.listener.Close(); err != nil && !errors.Is(err, net.ErrClosed) {
			log.Printf("daemon: listener close error: %v", err)
			errs = append(errs, err)
		}
	}
	if err := os.Remove(s.socketPath); err != nil && !os.IsNotExist(err) {
		log.Printf("daemon: socket remove error: %v", err)
		errs = append(errs, err)
	}
	if err := s.db.Close(); err != nil {
		log.Printf("daemon: db close error: %v", err)
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

func (s *Server) expire() {
	log.Printf("daemon: expiring due to inactivity")
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	s.Stop(ctx)
	os.Exit(0)
}

func (s *Server) resetExpiration() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.expTimer != nil {
		s.expTimer.Stop()
		s.expTimer.Reset(s.expiration)
	}
}

func (s *Server) withExpReset(handler http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s.resetExpiration()
		handler(w, r)
	}
}

func (s *Server) handleReload(w http.ResponseWriter, r *http.Request) {
	var req rpc.ReloadRequest
	if !decode(w, r, &req) {
		return
	}

	resp, err := s.Reload(r.Context(), req)
	if err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleFields(w http.ResponseWriter, r *http.Request) {
	var req rpc.FieldsRequest
	if !decode(w, r, &req) {
		return
	}

	// Populates the catalog on first use.
	if _, err := s.currentSchema(r.Context()); err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}

	results, err := s.finder.Find(req)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, rpc.FieldsResponse{Results: results})
}

func (s *Server) handleDescribe(w http.ResponseWriter, r *http.Request) {
	var req rpc.DescribeRequest
	if !decode(w, r, &req) {
		return
	}

	sc, err := s.currentSchema(r.Context())
	if err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}

	f, err := sc.Lookup(req.Resource, req.Path)
	if err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}

	detail := search.Detail(f)
	text := md.AddFrontMatter(md.RenderField(detail), map[string]string{
		"uri":      search.URI(req.Resource, req.Path),
		"resource": req.Resource,
	})
	writeJSON(w, http.StatusOK, rpc.DescribeResponse{Field: detail, Markdown: text})
}

func (s *Server) handleFacets(w http.ResponseWriter, r *http.Request) {
	var req rpc.FacetsRequest
	if !decode(w, r, &req) {
		return
	}

	sc, err := s.currentSchema(r.Context())
	if err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}

	fields, err := sc.Facetable(req.Resource)
	if err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}

	facets := make([]rpc.FacetResult, 0, len(fields))
	for _, f := range fields {
		p, _ := f.FacetPath()
		facets = append(facets, rpc.FacetResult{Path: f.Path(), FacetPath: p, Type: f.Type()})
	}
	writeJSON(w, http.StatusOK, rpc.FacetsResponse{Facets: facets})
}

func (s *Server) handleSnapshot(w http.ResponseWriter, r *http.Request) {
	var req rpc.SnapshotRequest
	if !decode(w, r, &req) {
		return
	}

	res, err := s.db.GetResource(req.Resource)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if res == nil {
		writeError(w, http.StatusNotFound, fmt.Sprintf("resource %q has not been indexed", req.Resource))
		return
	}

	data, err := cas.Read(res.MappingHash)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	var pretty bytes.Buffer
	if err := json.Indent(&pretty, data, "", "  "); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, rpc.SnapshotResponse{
		Resource:    res.Name,
		MappingHash: res.MappingHash,
		JSON:        pretty.String(),
	})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	resources, err := s.db.ListResources()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	resp := rpc.StatusResponse{Resources: []rpc.ResourceStatus{}}
	for _, res := range resources {
		n, err := s.db.CountFields(res.ID)
		if err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		resp.Resources = append(resp.Resources, rpc.ResourceStatus{
			Name:        res.Name,
			MappingHash: res.MappingHash,
			Fields:      n,
			IndexedAt:   res.IndexedAt.Format(time.RFC3339),
		})
	}

	if endpoint, err := s.cfg.SearchEndpoint(); err == nil {
		resp.Search = endpoint
	} else {
		slog.Debug("search endpoint unavailable", "error", err)
	}
	resp.Repository = s.cfg.RepositoryEndpoint()

	if hashes, err := cas.List(); err == nil {
		resp.Snapshots = len(hashes)
	} else {
		slog.Debug("listing snapshots", "error", err)
	}

	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleClearCache(w http.ResponseWriter, r *http.Request) {
	removed, err := mapping.ClearCache()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	slog.Info("mapping cache cleared", "removed", removed)
	writeJSON(w, http.StatusOK, rpc.ClearCacheResponse{Removed: removed})
}

func (s *Server) handleShutdown(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "shutting down"})
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		s.Stop(ctx)
		os.Exit(0)
	}()
}

func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return false
	}
	return true
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, schema.ErrUnknownResource), errors.Is(err, schema.ErrUnknownField):
		return http.StatusNotFound
	case errors.Is(err, schema.ErrInvalidDefinition), errors.Is(err, errNoMappings):
		return http.StatusUnprocessableEntity
	}
	return http.StatusInternalServerError
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
