// Package main is the entry point for the MetaPantry API server.
//
// The main package stays minimal. It reads configuration, builds the
// logger, makes sure the SQLite data directory exists, and hands off to
// internal/server. All actual logic lives in the imported packages.
package main

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/sakif/metapantry/internal/config"
	"github.com/sakif/metapantry/internal/server"
)

func main() {
	// === 1. READ CONFIGURATION ===
	// Everything comes from the environment; see internal/config for names
	// and defaults. JWT_SECRET is the only required variable.
	cfg, err := config.Load()
	if err != nil {
		slog.Error("invalid configuration", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// === 2. SET UP LOGGING ===
	// LOG_FORMAT=json for log shippers, text for terminals.
	level, _ := cfg.SlogLevel() // already checked by Validate
	opts := &slog.HandlerOptions{Level: level}
	var logHandler slog.Handler = slog.NewTextHandler(os.Stdout, opts)
	if strings.EqualFold(cfg.LogFormat, "json") {
		logHandler = slog.NewJSONHandler(os.Stdout, opts)
	}
	logger := slog.New(logHandler)
	slog.SetDefault(logger)

	// === 3. DATABASE DIRECTORY ===
	// For SQLite, DATABASE_URL is a file path; create its parent like `mkdir -p`.
	if cfg.DBDriver == "sqlite" && !strings.HasPrefix(cfg.DatabaseURL, "file:") && cfg.DatabaseURL != ":memory:" {
		dbDir := filepath.Dir(cfg.DatabaseURL)
		if err := os.MkdirAll(dbDir, 0o755); err != nil {
			logger.Error("failed to create database directory",
				slog.String("dir", dbDir),
				slog.String("error", err.Error()),
			)
			os.Exit(1)
		}
	}

	// === 4. CREATE AND START THE SERVER ===
	srv, err := server.New(context.Background(), cfg, logger)
	if err != nil {
		logger.Error("failed to create server", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// Start blocks until SIGINT/SIGTERM.
	if err := srv.Start(); err != nil {
		logger.Error("server error", slog.String("error", err.Error()))
		os.Exit(1)
	}
}
