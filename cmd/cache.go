package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/dpla/fieldmap/internal/config"
	"github.com/dpla/fieldmap/internal/daemon"
	"github.com/dpla/fieldmap/internal/mapping"
	"github.com/spf13/cobra"
)

var clearCacheCmd = &cobra.Command{
	Use:   "clear-cache",
	Short: "Remove cached live index mappings",
	Run:   runClearCache,
}

func runClearCache(cmd *cobra.Command, args []string) {
	client := daemon.NewClient(config.SocketPath())
	if !client.IsAvailable() {
		removed, err := mapping.ClearCache()
		if err != nil {
			slog.Error("failed to clear cache", "error", err)
			os.Exit(1)
		}
		fmt.Printf("removed %d cached mappings\n", removed)
		return
	}

	resp, err := client.ClearCache(context.Background())
	if err != nil {
		slog.Error("failed to clear cache", "error", err)
		os.Exit(1)
	}
	fmt.Printf("removed %d cached mappings\n", resp.Removed)
}
