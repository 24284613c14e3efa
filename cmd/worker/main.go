// Package main provides the update worker entry point for the crypto
// tracker.
package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/crypto-tracker/internal/adapter"
	"github.com/crypto-tracker/internal/collector"
	"github.com/crypto-tracker/internal/config"
	"github.com/crypto-tracker/internal/logging"
	"github.com/crypto-tracker/internal/pricing"
	"github.com/crypto-tracker/internal/ratelimit"
	"github.com/crypto-tracker/internal/service"
	"github.com/crypto-tracker/internal/storage"
	"github.com/crypto-tracker/internal/worker"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	if err := logging.Init(cfg.Logging.Level, cfg.Logging.Format); err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer logging.Sync()
	logger := logging.L()

	postgres, err := storage.NewPostgresDB(&cfg.Database.Postgres)
	if err != nil {
		logger.Fatalw("Failed to connect to Postgres", "error", err)
	}
	defer postgres.Close()

	redis, err := storage.NewRedisCache(&cfg.Database.Redis)
	if err != nil {
		logger.Fatalw("Failed to connect to Redis", "error", err)
	}
	defer redis.Close()

	registry, err := config.LoadRegistry(cfg.Worker.RegistryPath)
	if err != nil {
		logger.Fatalw("Failed to load protocol registry", "error", err)
	}

	snapshotRepo := storage.NewSnapshotRepository(postgres)
	assetRepo := storage.NewAssetRepository(postgres)
	addressRepo := storage.NewAddressRepository(postgres)
	priceRepo := storage.NewPriceRepository(postgres)
	poolRepo := storage.NewPoolRepository(postgres)
	troveRepo := storage.NewTroveRepository(postgres)
	validatorRepo := storage.NewValidatorRepository(postgres)
	cycleErrorRepo := storage.NewCycleErrorRepository(postgres)

	chainReader, err := adapter.NewEthereumReader(&cfg.Chains)
	if err != nil {
		logger.Fatalw("Failed to initialize chain reader", "error", err)
	}
	defer chainReader.Close()

	subgraph := adapter.NewSubgraphClient(&cfg.Subgraph)
	coingecko := adapter.NewCoinGeckoClient(&cfg.PriceAPI)
	beacon := adapter.NewBeaconClient(&cfg.Beacon)

	if cfg.PriceAPI.DailyBudget > 0 {
		budget, err := ratelimit.NewBudget(&ratelimit.BudgetConfig{
			Redis: redis.Client(),
			Limit: cfg.PriceAPI.DailyBudget,
		})
		if err != nil {
			logger.Fatalw("Failed to create price API budget", "error", err)
		}
		coingecko.SetBudget(budget)
	}

	resolver := pricing.NewResolver(priceRepo, redis, coingecko, cfg.PriceAPI.CacheTTL)
	updater := pricing.NewUpdater(assetRepo, priceRepo, coingecko)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	seeder := worker.NewSeeder(assetRepo, poolRepo, &cfg.Chains, config.DefaultAssetCatalog(), registry)
	if err := seeder.Seed(ctx); err != nil {
		logger.Fatalw("Failed to seed reference data", "error", err)
	}

	writer := &collector.Writer{
		Assets: assetRepo,
		Pools:  poolRepo,
	}
	collectors := []collector.Collector{
		collector.NewWalletAssetCollector(chainReader, assetRepo, poolRepo, &cfg.Chains),
		collector.NewLiquityStakingCollector(chainReader, writer, registry),
		collector.NewLiquityStabilityPoolCollector(chainReader, writer, registry),
		collector.NewAaveLendingCollector(chainReader, writer, registry),
		collector.NewTroveCollector(subgraph, writer, troveRepo, resolver, registry),
		collector.NewUniswapCollector(subgraph, writer, registry),
		collector.NewValidatorCollector(beacon, validatorRepo),
	}

	updateWorker, err := worker.NewUpdateWorker(&worker.UpdateWorkerConfig{
		Snapshots:   service.NewSnapshotService(snapshotRepo),
		Addresses:   addressRepo,
		CycleErrors: cycleErrorRepo,
		Updater:     updater,
		Collectors:  collectors,
		Interval:    cfg.Worker.UpdateInterval,
		PoolSize:    cfg.Worker.PoolSize,
	})
	if err != nil {
		logger.Fatalw("Failed to create update worker", "error", err)
	}

	if err := updateWorker.Start(ctx); err != nil {
		logger.Fatalw("Failed to start update worker", "error", err)
	}
	logger.Infow("Update worker started",
		"interval", cfg.Worker.UpdateInterval,
		"poolSize", cfg.Worker.PoolSize,
		"collectors", len(collectors))

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh
	logger.Infow("Shutting down", "signal", sig.String())

	cancel()
	updateWorker.Stop()
	logger.Infow("Update worker stopped")
}
