package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"log"

	"github.com/dpla/fieldmap/internal/config"
	"github.com/dpla/fieldmap/internal/daemon"
	"github.com/spf13/cobra"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show indexed resources and daemon state",
	Run:   runStatus,
}

var statusJSON bool

func init() {
	statusCmd.Flags().BoolVar(&statusJSON, "json", false, "output as JSON")
}

func runStatus(cmd *cobra.Command, args []string) {
	client, err := connectDaemon()
	if err != nil {
		log.Fatalf("failed to connect to daemon: %v", err)
	}

	resp, err := client.Status(context.Background())
	if err != nil {
		log.Fatalf("status failed: %v", err)
	}

	if statusJSON {
		out, _ := json.MarshalIndent(resp, "", "  ")
		fmt.Println(string(out))
		return
	}

	if resp.Search != "" {
		fmt.Printf("search:     %s\n", resp.Search)
	}
	fmt.Printf("repository: %s\n", resp.Repository)
	fmt.Printf("snapshots:  %d\n", resp.Snapshots)

	if len(resp.Resources) == 0 {
		fmt.Println("no resources indexed")
		return
	}

	for _, r := range resp.Resources {
		fmt.Printf("  %s: %d fields, indexed %s (%s)\n", r.Name, r.Fields, r.IndexedAt, shortHash(r.MappingHash))
	}
}

var stopCmd = &cobra.Command{
	Use:   "stop",
	Short: "Stop the background daemon",
	Run:   runStop,
}

func runStop(cmd *cobra.Command, args []string) {
	client := daemon.NewClient(config.SocketPath())
	if !client.IsAvailable() {
		fmt.Println("daemon is not running")
		return
	}

	// Connection reset is expected; the daemon exits after responding.
	client.Shutdown(context.Background())
	fmt.Println("daemon stopped")
}
