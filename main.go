package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/ToJen/crypto-news-agent/internal/app"
	"github.com/ToJen/crypto-news-agent/internal/config"
	"github.com/ToJen/crypto-news-agent/internal/logger"
)

func main() {
	// Structured logger with correlation ids pulled from the context.
	handler := logger.NewContextHandler(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(slog.New(handler))

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	deps, err := app.Bootstrap(ctx, cfg)
	if err != nil {
		slog.Error("bootstrap failed", "error", err)
		os.Exit(1)
	}

	a, err := app.New(cfg, deps.Store, deps.Embedder, deps.Chat)
	if err != nil {
		slog.Error("failed to build app", "error", err)
		os.Exit(1)
	}

	// Background ingestion, decoupled from request handling.
	go a.Scheduler.Run(ctx)

	if err := a.Run(ctx); err != nil {
		slog.Error("server failed", "error", err)
		os.Exit(1)
	}
}
