// cmd/historian/main.go persists the room event stream from Redis into Postgres.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/jason-s-yu/tokenrivals/internal/cache"
	"github.com/jason-s-yu/tokenrivals/internal/config"
	"github.com/jason-s-yu/tokenrivals/internal/database"
	"github.com/jason-s-yu/tokenrivals/internal/historian"
	_ "github.com/joho/godotenv/autoload"
	"github.com/sirupsen/logrus"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load(ctx)
	if err != nil {
		logrus.Fatalf("config: %v", err)
	}
	logger := cfg.Logger()

	if cfg.RedisAddr == "" || cfg.DatabaseURL == "" {
		logger.Fatal("historian needs RIVALS_REDIS_ADDR and RIVALS_DATABASE_URL")
	}

	rdb, err := cache.Connect(ctx, cfg.RedisAddr, cfg.RedisDB)
	if err != nil {
		logger.Fatalf("redis: %v", err)
	}
	defer rdb.Close()

	pool, err := database.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Fatalf("postgres: %v", err)
	}
	defer pool.Close()
	if err := database.EnsureSchema(ctx, pool); err != nil {
		logger.Fatalf("schema: %v", err)
	}

	svc := historian.NewService(
		cache.NewEventQueue(rdb, cfg.EventQueue),
		database.NewEventStore(pool),
		logrus.NewEntry(logger),
		cfg.HistorianBatchSize,
		cfg.HistorianFlushInterval,
		cfg.HistorianAbandonAfter,
	)
	svc.Run(ctx)
	logger.Info("historian shutdown complete")
}
