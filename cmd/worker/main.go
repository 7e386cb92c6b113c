package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/Lllllllleong/callscribe/internal/app"
	"github.com/Lllllllleong/callscribe/internal/config"
	"github.com/Lllllllleong/callscribe/internal/queue"
	"github.com/joho/godotenv"
)

func main() {
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, nil)))

	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		slog.Warn("Failed to load .env file", "error", err)
	}
	cfg, err := config.Load()
	if err != nil {
		slog.Error("Invalid configuration", "error", err)
		os.Exit(1)
	}
	if err := cfg.RequireRedis("worker"); err != nil {
		slog.Error("Invalid configuration", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := app.New(ctx, cfg)
	if err != nil {
		slog.Error("Critical error during initialization", "error", err)
		os.Exit(1)
	}
	defer a.Close()

	srv, err := queue.NewAsynqServer(cfg.RedisURL, cfg.WorkerConcurrency, cfg.WorkerQueues)
	if err != nil {
		slog.Error("Failed to create worker server", "error", err)
		os.Exit(1)
	}
	a.Jobs.Register(srv)

	slog.Info("Worker started.", "concurrency", cfg.WorkerConcurrency, "queues", cfg.WorkerQueues)
	if err := srv.Run(ctx); err != nil {
		slog.Error("Worker stopped with error", "error", err)
		return
	}
	slog.Info("Worker stopped.")
}
