// prune runs a single retention sweep against the sample store and exits.
// Useful for cron-driven pruning on instances that run ledgerd with a long
// sweep interval, or for reclaiming space after lowering max_age.
//
// Usage: go run ./cmd/prune --config configs/ledgerd.local.yaml
package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"time"

	"github.com/joho/godotenv"

	"github.com/solren/marketledger/internal/config"
	"github.com/solren/marketledger/internal/database"
	"github.com/solren/marketledger/internal/timeseries"
)

func main() {
	configPath := flag.String("config", "configs/ledgerd.local.yaml", "path to config file")
	timeout := flag.Duration("timeout", 10*time.Minute, "overall sweep deadline")
	flag.Parse()

	godotenv.Load()

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelDebug,
	}))

	cfg, err := config.LoadAndValidate(*configPath)
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	pool, err := database.Connect(ctx, cfg.Database)
	if err != nil {
		logger.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer pool.Close()

	sweeper := timeseries.NewSweeper(timeseries.RetentionConfig{
		Policy:   cfg.Retention.Policy,
		MaxAge:   cfg.Retention.MaxAge,
		MaxBytes: cfg.Retention.MaxBytes,
	}, pool, logger)

	if err := sweeper.Sweep(ctx); err != nil {
		logger.Error("sweep failed", "error", err)
		os.Exit(1)
	}
}
