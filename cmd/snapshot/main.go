// Package main runs a single update cycle and exits. Useful for cron
// driven deployments and manual reruns.
package main

import (
	"context"
	"flag"
	"log"

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
	user := flag.String("user", "", "restrict the cycle to one user's addresses")
	flag.Parse()

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

	ctx := context.Background()

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
		PoolSize:    cfg.Worker.PoolSize,
	})
	if err != nil {
		logger.Fatalw("Failed to create update worker", "error", err)
	}

	var userID *string
	if *user != "" {
		userID = user
	}
	report, err := updateWorker.RunUpdateCycle(ctx, userID)
	if err != nil {
		logger.Fatalw("Update cycle failed", "error", err)
	}
	logger.Infow("Update cycle completed",
		"cycleId", report.CycleID.String(),
		"snapshotId", report.SnapshotID,
		"attempts", len(report.Attempts),
		"failed", report.Failed)
}
