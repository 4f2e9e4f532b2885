package cmd

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/dpla/fieldmap/internal/config"
	"github.com/dpla/fieldmap/internal/daemon"
	"github.com/dpla/fieldmap/internal/db"
	"github.com/spf13/cobra"
)

var daemonCmd = &cobra.Command{
	Use:   "daemon",
	Short: "Run the background daemon (usually spawned automatically)",
	Run:   runDaemon,
}

var daemonVerbose bool

func init() {
	daemonCmd.Flags().BoolVarP(&daemonVerbose, "verbose", "v", false, "log at debug level")
}

func runDaemon(cmd *cobra.Command, args []string) {
	logPath := config.LogPath()
	if err := os.MkdirAll(filepath.Dir(logPath), 0755); err != nil {
		slog.Error("failed to create log directory", "error", err)
		os.Exit(1)
	}
	logFile, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		slog.Error("failed to open log file", "error", err)
		os.Exit(1)
	}
	defer logFile.Close()

	level := slog.LevelInfo
	if daemonVerbose {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(logFile, &slog.HandlerOptions{Level: level})))

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	slog.Info("config loaded", "mapping_files", len(cfg.Mappings.Files), "index", cfg.Search.Index)

	database, err := db.New(config.DBPath())
	if err != nil {
		slog.Error("failed to open database", "error", err)
		os.Exit(1)
	}

	srv := daemon.NewServer(cfg, database, config.SocketPath())
	if err := srv.Start(context.Background()); err != nil {
		slog.Error("daemon failed", "error", err)
		os.Exit(1)
	}
}
