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

	"github.com/joho/godotenv"

	"github.com/solren/marketledger/internal/api"
	"github.com/solren/marketledger/internal/config"
	"github.com/solren/marketledger/internal/database"
	"github.com/solren/marketledger/internal/feed"
	"github.com/solren/marketledger/internal/metrics"
	"github.com/solren/marketledger/internal/model"
	"github.com/solren/marketledger/internal/pricecache"
	"github.com/solren/marketledger/internal/refresher"
	"github.com/solren/marketledger/internal/roster"
	"github.com/solren/marketledger/internal/sampler"
	"github.com/solren/marketledger/internal/status"
	"github.com/solren/marketledger/internal/timeseries"
	"github.com/solren/marketledger/internal/topology"
	"github.com/solren/marketledger/internal/valuation"
	"github.com/solren/marketledger/internal/version"
)

// tracking adapts the resolved scope set and configured item list to the
// refresher's Tracker interface.
type tracking struct {
	scopes []string
	items  []uint32
}

func (t tracking) ActiveScopes() []string { return t.scopes }
func (t tracking) TrackedItems() []uint32 { return t.items }

func main() {
	configPath := flag.String("config", "configs/ledgerd.local.yaml", "path to config file")
	showVersion := flag.Bool("version", false, "print version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Println("ledgerd " + version.String())
		return
	}

	// Optional .env for local development; config does the real expansion.
	godotenv.Load()

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelDebug,
	}))
	slog.SetDefault(logger)

	logger.Info("starting ledgerd",
		"version", version.Version,
		"commit", version.Commit,
		"config", *configPath,
	)

	cfg, err := config.LoadAndValidate(*configPath)
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger.Info("configuration loaded",
		"instance_id", cfg.Instance.ID,
		"api_url", cfg.API.RestURL,
		"scope_mode", cfg.Tracking.ScopeMode,
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logger.Info("received shutdown signal", "signal", sig)
		cancel()
	}()

	// Database
	logger.Info("connecting to database",
		"host", cfg.Database.Host,
		"port", cfg.Database.Port,
		"database", cfg.Database.Name,
	)
	pool, err := database.Connect(ctx, cfg.Database)
	if err != nil {
		logger.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer pool.Close()

	if err := timeseries.Migrate(ctx, pool); err != nil {
		logger.Error("failed to migrate schema", "error", err)
		os.Exit(1)
	}
	logger.Info("database ready")

	// REST client and topology
	apiClient := api.NewClient(
		cfg.API.RestURL,
		cfg.API.UserAgent,
		api.WithLogger(logger),
		api.WithTimeout(cfg.API.Timeout),
		api.WithRetries(cfg.API.MaxRetries, time.Second),
	)

	dcs, err := apiClient.GetDataCenters(ctx)
	if err != nil {
		logger.Error("failed to fetch data centers", "error", err)
		os.Exit(1)
	}
	worlds, err := apiClient.GetWorlds(ctx)
	if err != nil {
		logger.Error("failed to fetch worlds", "error", err)
		os.Exit(1)
	}

	topoDCs, topoWorlds := api.ToTopology(dcs, worlds)
	topo, err := topology.New(topoDCs, topoWorlds)
	if err != nil {
		logger.Error("invalid topology", "error", err)
		os.Exit(1)
	}

	scopes := topo.Resolve(topology.Selection{
		Mode:  topology.ScopeMode(cfg.Tracking.ScopeMode),
		Names: cfg.Tracking.Selected,
	}, logger)
	logger.Info("scopes resolved", "scopes", scopes)

	// Time-series store and retention
	store := timeseries.NewStore(timeseries.DefaultStoreConfig(), pool, logger)
	if err := store.Start(ctx); err != nil {
		logger.Error("failed to start store", "error", err)
		os.Exit(1)
	}
	defer stopComponent(store.Stop, "store", logger)

	sweeper := timeseries.NewSweeper(timeseries.RetentionConfig{
		Policy:        cfg.Retention.Policy,
		MaxAge:        cfg.Retention.MaxAge,
		MaxBytes:      cfg.Retention.MaxBytes,
		SweepInterval: cfg.Retention.SweepInterval,
	}, pool, logger)
	if err := sweeper.Start(ctx); err != nil {
		logger.Error("failed to start sweeper", "error", err)
		os.Exit(1)
	}
	defer stopComponent(sweeper.Stop, "sweeper", logger)

	// Roster and sampler
	state := roster.New(cfg.Sampler.StateFile, logger)
	if cfg.Sampler.StateFile != "" {
		if err := state.Start(ctx, cfg.Sampler.Interval); err != nil {
			logger.Error("failed to start roster", "error", err)
			os.Exit(1)
		}
		defer stopComponent(state.Stop, "roster", logger)
	}

	variables := []string{model.CurrencyVariable}
	for _, id := range cfg.Tracking.ItemIDs {
		variables = append(variables, fmt.Sprintf("%s%d", model.ItemVariablePrefix, id))
	}

	smp := sampler.New(sampler.Config{
		Interval:   cfg.Sampler.Interval,
		Quiescence: cfg.Sampler.Quiescence,
		Variables:  variables,
	}, state, store, logger)
	if err := smp.Start(ctx); err != nil {
		logger.Error("failed to start sampler", "error", err)
		os.Exit(1)
	}
	defer stopComponent(smp.Stop, "sampler", logger)

	// Price caches
	listings := pricecache.NewListingsCache(cfg.Cache.StaleAfter)
	sales := pricecache.NewRecentSalesCache(cfg.Cache.StaleAfter)

	// Live feed
	feedMgr := feed.NewManager(feed.ManagerConfig{
		URL:                cfg.API.WSURL,
		UserAgent:          cfg.API.UserAgent,
		ReconnectBaseDelay: cfg.Feed.ReconnectBaseDelay,
		ReconnectMaxDelay:  cfg.Feed.ReconnectMaxDelay,
		HealthyWindow:      cfg.Feed.HealthyWindow,
		PingTimeout:        cfg.Feed.PingTimeout,
		BufferSize:         cfg.Feed.BufferSize,
	}, logger)
	feedMgr.AddListener(func(e model.PriceFeedEntry) {
		switch e.Kind {
		case model.EventListingsAdd:
			listings.AddPrice(e.ItemID, e.WorldID, e.PricePerUnit, e.HQ)
		case model.EventSalesAdd:
			sales.AddSale(e.ItemID, e.WorldID, e.PricePerUnit, e.HQ)
		case model.EventListingsRemove:
			// The listings cache keeps the k lowest prices with no removal
			// op; withdrawn listings linger until the next batch refresh
			// replaces the bucket.
		}
	})
	for _, scope := range scopes {
		feedMgr.Subscribe(scope)
	}
	if err := feedMgr.Start(ctx); err != nil {
		logger.Error("failed to start feed", "error", err)
		os.Exit(1)
	}
	defer stopComponent(feedMgr.Stop, "feed", logger)

	// Batch refresher
	tracker := tracking{scopes: scopes, items: cfg.Tracking.ItemIDs}
	refr := refresher.New(refresher.Config{
		Interval:    cfg.Refresher.Interval,
		Concurrency: cfg.Refresher.Concurrency,
		Timeout:     cfg.Refresher.Timeout,
		ChunkSize:   cfg.Refresher.ChunkSize,
		MaxSales:    cfg.Refresher.MaxSales,
	}, apiClient, tracker, listings, sales, logger)
	if err := refr.Start(ctx); err != nil {
		logger.Error("failed to start refresher", "error", err)
		os.Exit(1)
	}
	defer stopComponent(refr.Stop, "refresher", logger)

	// Valuation
	homeWorldID := uint32(0)
	if w, ok := topo.WorldByName(cfg.Valuation.HomeWorld); ok {
		homeWorldID = w.ID
	} else if cfg.Valuation.HomeWorld != "" {
		logger.Warn("unknown home world, valuations will resolve no prices",
			"home_world", cfg.Valuation.HomeWorld,
		)
	}

	engine := valuation.NewEngine(valuation.Config{
		HomeWorldID:      homeWorldID,
		BlendMode:        cfg.Valuation.BlendMode,
		OutlierMode:      cfg.Valuation.OutlierMode,
		OutlierPercent:   cfg.Valuation.OutlierPercent,
		OutlierStdDevs:   cfg.Valuation.OutlierStdDevs,
		WorkerCount:      cfg.Valuation.WorkerCount,
		IncludeRetainers: cfg.Valuation.IncludeRetainers,
	}, state, store, listings, sales, logger)

	// Cheapest city tax on the home world, for the net-of-tax total.
	taxPercent := 0
	if homeWorldID != 0 {
		if rates, err := apiClient.GetTaxRates(ctx, homeWorldID); err != nil {
			logger.Warn("failed to fetch tax rates", "error", err)
		} else {
			taxPercent = rates.Lowest()
		}
	}
	go valuationLoop(ctx, engine, cfg.Refresher.Interval, taxPercent, logger)

	// Status server
	statusSrv := status.New(cfg.Status.Port, status.Sources{
		DB:        pool,
		Feed:      feedMgr,
		Store:     store,
		Refresher: refr,
		Listings:  listings,
		Sales:     sales,
	}, logger)
	if err := statusSrv.Start(ctx); err != nil {
		logger.Error("failed to start status server", "error", err)
		os.Exit(1)
	}
	defer stopComponent(statusSrv.Stop, "status server", logger)

	logger.Info("ledgerd running",
		"instance_id", cfg.Instance.ID,
		"status_url", fmt.Sprintf("http://localhost:%d/status", cfg.Status.Port),
	)

	<-ctx.Done()
	logger.Info("shutting down")
}

// valuationLoop logs the roster total periodically. The numbers also feed the
// valuation latency histogram.
func valuationLoop(ctx context.Context, engine *valuation.Engine, interval time.Duration, taxPercent int, logger *slog.Logger) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			start := time.Now()
			values, total, err := engine.CalculateAllValues(ctx)
			if err != nil {
				logger.Warn("roster valuation failed", "error", err)
				continue
			}
			metrics.ValuationDuration.Observe(time.Since(start).Seconds())
			logger.Info("roster valuation",
				"entities", len(values),
				"total", total.String(),
				"net_total", valuation.NetProceeds(total, taxPercent).String(),
				"currency", valuation.Currency,
				"duration", time.Since(start),
			)
		}
	}
}

// stopComponent runs a component's Stop with a bounded deadline.
func stopComponent(stop func(context.Context) error, name string, logger *slog.Logger) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := stop(ctx); err != nil {
		logger.Warn("component stop failed", "component", name, "error", err)
	}
}
