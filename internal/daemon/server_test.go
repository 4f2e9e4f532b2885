package daemon

import (
	"context"
	"errors"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/dpla/fieldmap/internal/config"
	"github.com/dpla/fieldmap/internal/db"
	"github.com/dpla/fieldmap/internal/rpc"
)

const itemMapping = `{
  "item": {
    "properties": {
      "title": {"type": "string"},
      "created": {"type": "date", "facet": true, "sort": "field"},
      "isPartOf": {
        "properties": {
          "name": {
            "type": "multi_field",
            "fields": {
              "name": {"type": "string"},
              "raw": {"type": "string", "index": "not_analyzed", "facet": true}
            }
          }
        }
      }
    }
  }
}`

// testClient runs a daemon server on a temporary unix socket and returns a
// client connected to it.
func testClient(t *testing.T, files ...string) (*Client, *Server) {
	t.Helper()
	t.Setenv("XDG_CACHE_HOME", t.TempDir())

	dir := t.TempDir()
	database, err := db.New(filepath.Join(dir, "catalog.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { database.Close() })

	cfg := &config.Config{
		Mappings:   config.MappingsConfig{Files: files},
		Search:     config.SearchConfig{Index: "dpla", Endpoint: "http://search.test:9200"},
		Repository: config.RepositoryConfig{ConfigFile: filepath.Join(dir, "couchdb.ini")},
	}

	// Socket paths are length limited, so keep them out of the test's temp tree.
	sockDir, err := os.MkdirTemp("", "fm")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { os.RemoveAll(sockDir) })
	socket := filepath.Join(sockDir, "d.sock")

	srv := NewServer(cfg, database, socket)
	l, err := net.Listen("unix", socket)
	if err != nil {
		t.Fatal(err)
	}
	hs := httptest.NewUnstartedServer(srv.Handler())
	hs.Listener = l
	hs.Start()
	t.Cleanup(hs.Close)

	return NewClient(socket), srv
}

func writeMapping(t *testing.T) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), "item.json")
	if err := os.WriteFile(p, []byte(itemMapping), 0644); err != nil {
		t.Fatal(err)
	}
	return p
}

func TestServer_ReloadAndQuery(t *testing.T) {
	client, _ := testClient(t, writeMapping(t))
	ctx := context.Background()

	if !client.IsAvailable() {
		t.Fatal("daemon socket not reachable")
	}

	reload, err := client.Reload(ctx, rpc.ReloadRequest{})
	if err != nil {
		t.Fatal(err)
	}
	if len(reload.Resources) != 1 || reload.Resources[0].Name != "item" || reload.Resources[0].Unchanged {
		t.Fatalf("unexpected reload: %+v", reload)
	}
	fieldCount := reload.Resources[0].Fields

	again, err := client.Reload(ctx, rpc.ReloadRequest{})
	if err != nil {
		t.Fatal(err)
	}
	if !again.Resources[0].Unchanged || again.Resources[0].Fields != fieldCount {
		t.Errorf("second reload should be unchanged: %+v", again)
	}

	t.Run("fields", func(t *testing.T) {
		resp, err := client.Fields(ctx, rpc.FieldsRequest{Query: "raw"})
		if err != nil {
			t.Fatal(err)
		}
		if len(resp.Results) != 1 || resp.Results[0].Path != "isPartOf.name.raw" || !resp.Results[0].Alternate {
			t.Errorf("unexpected results: %+v", resp.Results)
		}
	})

	t.Run("describe", func(t *testing.T) {
		resp, err := client.Describe(ctx, rpc.DescribeRequest{Resource: "item", Path: "isPartOf.name"})
		if err != nil {
			t.Fatal(err)
		}
		if !resp.Field.Facetable || resp.Field.FacetPath != "isPartOf.name.raw" {
			t.Errorf("unexpected detail: %+v", resp.Field)
		}
		if !strings.Contains(resp.Markdown, "uri: fieldmap://item/isPartOf.name") {
			t.Errorf("markdown missing front matter:\n%s", resp.Markdown)
		}
	})

	t.Run("describe variant", func(t *testing.T) {
		resp, err := client.Describe(ctx, rpc.DescribeRequest{Resource: "item", Path: "created.before"})
		if err != nil {
			t.Fatal(err)
		}
		if resp.Field.VariantSuffix != ".before" || resp.Field.FacetPath != "created.before" {
			t.Errorf("unexpected detail: %+v", resp.Field)
		}
	})

	t.Run("describe unknown", func(t *testing.T) {
		_, err := client.Describe(ctx, rpc.DescribeRequest{Resource: "item", Path: "nope"})
		var de *Error
		if !errors.As(err, &de) || de.Status != http.StatusNotFound {
			t.Errorf("expected 404, got %v", err)
		}
	})

	t.Run("facets", func(t *testing.T) {
		resp, err := client.Facets(ctx, rpc.FacetsRequest{Resource: "item"})
		if err != nil {
			t.Fatal(err)
		}
		got := make(map[string]string)
		for _, f := range resp.Facets {
			got[f.Path] = f.FacetPath
		}
		want := map[string]string{
			"created":           "created",
			"isPartOf.name":     "isPartOf.name.raw",
			"isPartOf.name.raw": "isPartOf.name.raw",
		}
		if len(got) != len(want) {
			t.Fatalf("got %v, want %v", got, want)
		}
		for k, v := range want {
			if got[k] != v {
				t.Errorf("%s: facet path %q, want %q", k, got[k], v)
			}
		}
	})

	t.Run("snapshot", func(t *testing.T) {
		resp, err := client.Snapshot(ctx, rpc.SnapshotRequest{Resource: "item"})
		if err != nil {
			t.Fatal(err)
		}
		if resp.MappingHash != reload.Resources[0].MappingHash {
			t.Errorf("hash = %s, want %s", resp.MappingHash, reload.Resources[0].MappingHash)
		}
		if !strings.Contains(resp.JSON, `"multi_field"`) {
			t.Errorf("snapshot missing mapping content:\n%s", resp.JSON)
		}
	})

	t.Run("status", func(t *testing.T) {
		resp, err := client.Status(ctx)
		if err != nil {
			t.Fatal(err)
		}
		if len(resp.Resources) != 1 || resp.Resources[0].Fields != fieldCount {
			t.Errorf("unexpected status: %+v", resp)
		}
		if resp.Search != "http://search.test:9200" || resp.Repository != "http://127.0.0.1:5984" {
			t.Errorf("unexpected endpoints: %q %q", resp.Search, resp.Repository)
		}
		if resp.Snapshots != 1 {
			t.Errorf("snapshots = %d, want 1", resp.Snapshots)
		}
	})
}

func TestServer_RestoresFromSnapshots(t *testing.T) {
	file := writeMapping(t)
	client, srv := testClient(t, file)
	ctx := context.Background()

	if _, err := client.Reload(ctx, rpc.ReloadRequest{}); err != nil {
		t.Fatal(err)
	}

	// Forget the in-memory schema and remove the source file.
	srv.setSchema(nil)
	if err := os.Remove(file); err != nil {
		t.Fatal(err)
	}

	resp, err := client.Facets(ctx, rpc.FacetsRequest{Resource: "item"})
	if err != nil {
		t.Fatal(err)
	}
	if len(resp.Facets) != 3 {
		t.Errorf("expected 3 facets after restore, got %+v", resp.Facets)
	}
}

func TestServer_NoMappings(t *testing.T) {
	client, _ := testClient(t)

	_, err := client.Reload(context.Background(), rpc.ReloadRequest{})
	var de *Error
	if !errors.As(err, &de) || de.Status != http.StatusUnprocessableEntity {
		t.Errorf("expected 422, got %v", err)
	}
}

func TestServer_ConcurrentReload(t *testing.T) {
	client, _ := testClient(t, writeMapping(t))
	ctx := context.Background()

	var wg sync.WaitGroup
	errs := make(chan error, 8)
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := client.Reload(ctx, rpc.ReloadRequest{}); err != nil {
				errs <- err
			}
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Error(err)
	}

	status, err := client.Status(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(status.Resources) != 1 {
		t.Errorf("expected one resource, got %+v", status.Resources)
	}
}

func TestServer_ClearCache(t *testing.T) {
	client, _ := testClient(t)

	resp, err := client.ClearCache(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if resp.Removed != 0 {
		t.Errorf("removed = %d, want 0", resp.Removed)
	}
}

const collectionMapping = `{
  "collection": {
    "properties": {
      "name": {"type": "string", "facet": true}
    }
  }
}`

func TestServer_ReloadDropsRemovedResources(t *testing.T) {
	itemFile := writeMapping(t)
	collectionFile := filepath.Join(t.TempDir(), "collection.json")
	if err := os.WriteFile(collectionFile, []byte(collectionMapping), 0644); err != nil {
		t.Fatal(err)
	}

	client, srv := testClient(t)
	ctx := context.Background()

	if _, err := client.Reload(ctx, rpc.ReloadRequest{Files: []string{itemFile}}); err != nil {
		t.Fatal(err)
	}
	if _, err := client.Reload(ctx, rpc.ReloadRequest{Files: []string{collectionFile}}); err != nil {
		t.Fatal(err)
	}

	status, err := client.Status(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(status.Resources) != 1 || status.Resources[0].Name != "collection" {
		t.Errorf("unexpected resources after reload: %+v", status.Resources)
	}

	fields, err := client.Fields(ctx, rpc.FieldsRequest{Query: "title"})
	if err != nil {
		t.Fatal(err)
	}
	if len(fields.Results) != 0 {
		t.Errorf("expected no item fields, got %+v", fields.Results)
	}

	// A restarted daemon rebuilds only what the last reload loaded.
	srv.setSchema(nil)
	_, err = client.Facets(ctx, rpc.FacetsRequest{Resource: "item"})
	var de *Error
	if !errors.As(err, &de) || de.Status != http.StatusNotFound {
		t.Errorf("expected 404 for dropped resource, got %v", err)
	}

	facets, err := client.Facets(ctx, rpc.FacetsRequest{Resource: "collection"})
	if err != nil {
		t.Fatal(err)
	}
	if len(facets.Facets) != 1 || facets.Facets[0].Path != "name" {
		t.Errorf("unexpected collection facets: %+v", facets.Facets)
	}
}
