// cmd/historian/main.go runs the historian: it drains the action queue the game
// server pushes to and persists it to Postgres.
package main

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	"github.com/jason-s-yu/kaboom/internal/cache"
	"github.com/jason-s-yu/kaboom/internal/config"
	"github.com/jason-s-yu/kaboom/internal/database"
	"github.com/jason-s-yu/kaboom/internal/historian"
	_ "github.com/joho/godotenv/autoload"
	"github.com/sirupsen/logrus"
)

func main() {
	logger := logrus.New()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatalf("invalid configuration: %v", err)
	}
	logger.SetLevel(cfg.LogLevel)
	if cfg.PostgresDSN == "" {
		logger.Fatal("PG_HOST must be set for the historian")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := database.ConnectDB(ctx, cfg.PostgresDSN); err != nil {
		logger.Fatalf("failed to connect to postgres: %v", err)
	}
	defer database.Close()
	if err := database.EnsureSchema(ctx); err != nil {
		logger.Fatalf("failed to apply schema: %v", err)
	}

	rdb, err := cache.NewClient(ctx, cfg.RedisAddr, cfg.RedisDB)
	if err != nil {
		logger.Fatalf("failed to connect to redis: %v", err)
	}
	defer rdb.Close()

	src := historian.RedisSource{Client: rdb, Queue: cfg.QueueName, Timeout: 3 * time.Second}
	svc := historian.NewService(src, historian.PostgresSink{}, historian.Options{
		BatchSize:  cfg.HistorianBatchSize,
		FlushDelay: cfg.HistorianFlushDelay,
		Inactivity: cfg.HistorianInactivity,
	}, logger)

	svc.Run(ctx)
	logger.Info("historian shutdown complete")
}
