package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/dpla/fieldmap/internal/config"
	"github.com/dpla/fieldmap/internal/mapping"
	"github.com/spf13/cobra"
)

var endpointsCmd = &cobra.Command{
	Use:   "endpoints",
	Short: "Print the search engine and document repository endpoints",
	Run:   runEndpoints,
}

var endpointsJSON bool

func init() {
	endpointsCmd.Flags().BoolVar(&endpointsJSON, "json", false, "output as JSON")
}

func runEndpoints(cmd *cobra.Command, args []string) {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	search, err := cfg.SearchEndpoint()
	if err != nil {
		log.Fatalf("resolving search endpoint: %v", err)
	}
	repository := cfg.RepositoryEndpoint()

	if endpointsJSON {
		out, _ := json.MarshalIndent(map[string]string{
			"search":              search,
			"search_index":        cfg.Search.Index,
			"repository":          repository,
			"repository_database": config.RepositoryDatabase,
		}, "", "  ")
		fmt.Println(string(out))
		return
	}

	fmt.Printf("search:     %s/%s\n", search, cfg.Search.Index)
	fmt.Printf("repository: %s/%s\n", repository, config.RepositoryDatabase)
}

var fetchCmd = &cobra.Command{
	Use:   "fetch",
	Short: "Fetch the live index mapping from the search engine and cache it",
	Example: `  fieldmap fetch
  fieldmap fetch --index dpla_alias --out mapping.json`,
	Run: runFetch,
}

var (
	fetchIndex string
	fetchOut   string
)

func init() {
	fetchCmd.Flags().StringVar(&fetchIndex, "index", "", "index name (default: search.index)")
	fetchCmd.Flags().StringVarP(&fetchOut, "out", "o", "", "also write the raw mapping to this file")
}

func runFetch(cmd *cobra.Command, args []string) {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	index := fetchIndex
	if index == "" {
		index = cfg.Search.Index
	}

	endpoint, err := cfg.SearchEndpoint()
	if err != nil {
		log.Fatalf("resolving search endpoint: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	data, err := mapping.Fetch(ctx, endpoint, index)
	if err != nil {
		log.Fatalf("fetch failed: %v", err)
	}

	resources, err := mapping.Parse(data)
	if err != nil {
		log.Fatalf("parsing fetched mapping: %v", err)
	}

	if err := mapping.SaveCache(data, index); err != nil {
		log.Fatalf("caching mapping: %v", err)
	}
	if fetchOut != "" {
		if err := os.WriteFile(fetchOut, data, 0644); err != nil {
			log.Fatalf("writing %s: %v", fetchOut, err)
		}
	}

	fmt.Printf("fetched %s from %s: %d resources, cached at %s\n", index, endpoint, len(resources), mapping.CachePath(index))
}
