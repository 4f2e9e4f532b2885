package cmd

import (
	"context"
	"fmt"
	"log"
	"path/filepath"

	"github.com/dpla/fieldmap/internal/rpc"
	"github.com/spf13/cobra"
)

var indexCmd = &cobra.Command{
	Use:   "index [mapping-file ...]",
	Short: "Load mapping definitions and rebuild the field catalog",
	Long: `Load mapping definitions, snapshot each resource and rebuild the field
catalog. Without arguments the files configured under mappings.files are used.`,
	Example: `  fieldmap index
  fieldmap index mappings/item.yml mappings/collection.json
  fieldmap index --live
  fieldmap index --live --refresh`,
	Run: runIndex,
}

var (
	indexLive    bool
	indexRefresh bool
)

func init() {
	indexCmd.Flags().BoolVar(&indexLive, "live", false, "also load the live search index mapping")
	indexCmd.Flags().BoolVar(&indexRefresh, "refresh", false, "refetch the live mapping instead of using the cache")
}

func runIndex(cmd *cobra.Command, args []string) {
	files := make([]string, len(args))
	for i, a := range args {
		abs, err := filepath.Abs(a)
		if err != nil {
			log.Fatalf("resolving %s: %v", a, err)
		}
		files[i] = abs
	}

	client, err := connectDaemon()
	if err != nil {
		log.Fatalf("failed to connect to daemon: %v", err)
	}

	resp, err := client.Reload(context.Background(), rpc.ReloadRequest{
		Files:   files,
		Live:    indexLive || indexRefresh,
		Refresh: indexRefresh,
	})
	if err != nil {
		log.Fatalf("indexing failed: %v", err)
	}

	for _, r := range resp.Resources {
		state := "indexed"
		if r.Unchanged {
			state = "unchanged"
		}
		fmt.Printf("  %s: %d fields %s (%s)\n", r.Name, r.Fields, state, shortHash(r.MappingHash))
	}
}

func shortHash(h string) string {
	if len(h) > 12 {
		return h[:12]
	}
	return h
}
