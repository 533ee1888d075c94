// feedtest connects to the market websocket feed and streams parsed price
// events to the console. Handy for checking scope names and feed health
// before pointing a full ledgerd instance at them.
//
// Usage: go run ./cmd/feedtest --config configs/ledgerd.local.yaml --scope Chaos
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/solren/marketledger/internal/config"
	"github.com/solren/marketledger/internal/feed"
	"github.com/solren/marketledger/internal/model"
)

func main() {
	configPath := flag.String("config", "configs/ledgerd.local.yaml", "path to config file")
	scopeFlag := flag.String("scope", "", "scope to subscribe (overrides tracking.selected)")
	flag.Parse()

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelDebug,
	}))

	cfg, err := config.LoadAndValidate(*configPath)
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	scopes := cfg.Tracking.Selected
	if *scopeFlag != "" {
		scopes = []string{*scopeFlag}
	}
	if len(scopes) == 0 {
		logger.Error("no scopes to subscribe; set tracking.selected or pass --scope")
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		logger.Info("received shutdown signal")
		cancel()
	}()

	mgr := feed.NewManager(feed.ManagerConfig{
		URL:                cfg.API.WSURL,
		UserAgent:          cfg.API.UserAgent,
		ReconnectBaseDelay: cfg.Feed.ReconnectBaseDelay,
		ReconnectMaxDelay:  cfg.Feed.ReconnectMaxDelay,
		HealthyWindow:      cfg.Feed.HealthyWindow,
		PingTimeout:        cfg.Feed.PingTimeout,
		BufferSize:         cfg.Feed.BufferSize,
	}, logger)

	mgr.AddListener(printEntry)
	for _, scope := range scopes {
		mgr.Subscribe(scope)
	}

	if err := mgr.Start(ctx); err != nil {
		logger.Error("failed to start feed", "error", err)
		os.Exit(1)
	}

	// Stats printer
	go func() {
		ticker := time.NewTicker(10 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				stats := mgr.Stats()
				logger.Info("stats",
					"state", stats.State,
					"scopes", stats.Scopes,
					"events_seen", stats.EventsSeen,
					"events_dropped", stats.EventsDropped,
					"entries", stats.Entries,
					"reconnects", stats.Reconnects,
				)
			}
		}
	}()

	logger.Info("streaming started - press Ctrl+C to stop", "scopes", scopes)

	<-ctx.Done()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	mgr.Stop(shutdownCtx)

	logger.Info("shutdown complete")
}

func printEntry(e model.PriceFeedEntry) {
	quality := "NQ"
	if e.HQ {
		quality = "HQ"
	}
	switch e.Kind {
	case model.EventListingsAdd:
		fmt.Printf("[LISTING+] item=%d world=%d %s price=%d qty=%d\n",
			e.ItemID, e.WorldID, quality, e.PricePerUnit, e.Quantity)
	case model.EventListingsRemove:
		fmt.Printf("[LISTING-] item=%d world=%d %s price=%d qty=%d\n",
			e.ItemID, e.WorldID, quality, e.PricePerUnit, e.Quantity)
	case model.EventSalesAdd:
		fmt.Printf("[SALE] item=%d world=%d %s price=%d qty=%d\n",
			e.ItemID, e.WorldID, quality, e.PricePerUnit, e.Quantity)
	}
}
