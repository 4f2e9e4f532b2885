package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"

	"github.com/dpla/fieldmap/internal/config"
	"github.com/dpla/fieldmap/internal/export"
	"github.com/dpla/fieldmap/internal/mapping"
	"github.com/spf13/cobra"
)

var exportCmd = &cobra.Command{
	Use:   "export [mapping-file ...]",
	Short: "Translate mappings into a bleve index mapping",
	Long: `Resolve the mapping definitions and print an equivalent bleve index
mapping as JSON. Without arguments the files configured under mappings.files
are used.`,
	Example: `  fieldmap export mappings/item.yml > item.bleve.json
  fieldmap export --out index_mapping.json`,
	Run: runExport,
}

var exportOut string

func init() {
	exportCmd.Flags().StringVarP(&exportOut, "out", "o", "", "write to this file instead of stdout")
}

func runExport(cmd *cobra.Command, args []string) {
	files := args
	if len(files) == 0 {
		cfg, err := config.Load()
		if err != nil {
			log.Fatalf("failed to load config: %v", err)
		}
		files = cfg.Mappings.Files
	}
	if len(files) == 0 {
		log.Fatal("no mapping files given or configured")
	}

	s, err := mapping.LoadAll(context.Background(), files)
	if err != nil {
		log.Fatalf("loading mappings: %v", err)
	}

	im, err := export.BleveMapping(s)
	if err != nil {
		log.Fatalf("export failed: %v", err)
	}

	out, err := json.MarshalIndent(im, "", "  ")
	if err != nil {
		log.Fatalf("encoding bleve mapping: %v", err)
	}

	if exportOut == "" {
		fmt.Println(string(out))
		return
	}
	if err := os.WriteFile(exportOut, append(out, '\n'), 0644); err != nil {
		log.Fatalf("writing %s: %v", exportOut, err)
	}
	fmt.Printf("wrote %d resources to %s\n", len(s.Resources()), exportOut)
}
