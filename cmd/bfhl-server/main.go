package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"bfhl/go-backend/internal/composition/bfhlserver"
	"bfhl/go-backend/internal/config"
	"bfhl/go-backend/internal/platform/privacylog"
)

var (
	version   = "dev"
	commit    = "unknown"
	buildDate = "unknown"
)

func main() {
	showVersion := flag.Bool("version", false, "print version and exit")
	configPath := flag.String("config", "", "Path to config.yaml (optional)")
	envFile := flag.String("env-file", ".env", "Path to a .env file loaded before reading the environment")
	addr := flag.String("addr", "", "HTTP listen address override, e.g. :3000")
	flag.Parse()
	if *showVersion {
		fmt.Printf("bfhl-server version=%s commit=%s build_date=%s\n", version, commit, buildDate)
		return
	}

	if err := config.LoadDotEnv(*envFile); err != nil {
		log.Fatalf("bfhl-server failed to load env file: %v", err)
	}
	if *addr != "" {
		_ = os.Setenv("BFHL_ADDR", *addr)
	}
	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("bfhl-server invalid configuration: %v", err)
	}

	logger := privacylog.NewLogger(os.Stdout, privacylog.ParseLevel(cfg.LogLevel))
	slog.SetDefault(logger)
	logger.Info("bfhl-server starting",
		"version", version,
		"env", cfg.Env,
		"gemini_api_key_set", cfg.AIEnabled(),
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	srv, err := bfhlserver.New(ctx, cfg, logger)
	if err != nil {
		log.Fatalf("bfhl-server failed to initialize: %v", err)
	}
	if err := srv.Run(ctx); err != nil {
		log.Fatalf("bfhl-server failed: %v", err)
	}
	logger.Info("bfhl-server stopped")
}
