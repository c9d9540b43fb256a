package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"cardpress/app"
	"cardpress/config"
	"cardpress/db"
)

func main() {
	// Load .env file in development (ignores error if file doesn't exist).
	// In production, variables should be set directly.
	if os.Getenv("ENV") != "production" {
		if err := godotenv.Overload(".env"); err != nil {
			log.Printf("Warning: .env file not found, using system environment variables")
		}
	}

	zl, err := zap.NewProduction()
	if err != nil {
		log.Fatalf("failed to initialize logger: %v", err)
	}
	defer zl.Sync()
	logger := zl.Sugar()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatalw("❌ invalid configuration", "error", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	application, err := app.Initialize(ctx, cfg, logger)
	if err != nil {
		logger.Fatalw("❌ failed to initialize application", "error", err)
	}
	defer db.CloseDB()

	if addr := os.Getenv("METRICS_ADDR"); addr != "" {
		go func() {
			logger.Infow("metrics endpoint listening", "addr", addr)
			if err := app.ServeMetrics(addr); err != nil {
				logger.Warnw("⚠️ metrics endpoint stopped", "error", err)
			}
		}()
	}

	if err := application.Workers.Start(ctx, cfg.WorkerCount); err != nil {
		logger.Fatalw("❌ failed to start print workers", "error", err)
	}

	<-ctx.Done()
	logger.Infow("shutdown signal received, draining print workers")
	application.Workers.Shutdown()
	logger.Infow("✓ shutdown complete")
}
