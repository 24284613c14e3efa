// Package main prints portfolio valuation and reward reports as JSON.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"log"
	"os"
	"time"

	"github.com/crypto-tracker/internal/adapter"
	"github.com/crypto-tracker/internal/config"
	"github.com/crypto-tracker/internal/logging"
	"github.com/crypto-tracker/internal/models"
	"github.com/crypto-tracker/internal/pricing"
	"github.com/crypto-tracker/internal/ratelimit"
	"github.com/crypto-tracker/internal/service"
	"github.com/crypto-tracker/internal/storage"
)

func main() {
	var (
		userID     = flag.String("user", "", "User whose addresses to value (default: all addresses)")
		date       = flag.String("date", "", "Value at the snapshot of this day (YYYY-MM-DD, default: latest)")
		rewards    = flag.Bool("rewards", false, "Print the rewards view instead of the valuation")
		showErrors = flag.Bool("errors", false, "Include cycle errors of the resolved snapshot")
	)
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
	debtAsset := "liquity-bold-2"
	if proto := registry.Protocol(config.ProtocolLiquityV2); proto != nil && proto.Subgraph != nil && proto.Subgraph.DebtAsset != "" {
		debtAsset = proto.Subgraph.DebtAsset
	}

	snapshotRepo := storage.NewSnapshotRepository(postgres)
	assetRepo := storage.NewAssetRepository(postgres)
	addressRepo := storage.NewAddressRepository(postgres)
	priceRepo := storage.NewPriceRepository(postgres)
	poolRepo := storage.NewPoolRepository(postgres)
	troveRepo := storage.NewTroveRepository(postgres)
	validatorRepo := storage.NewValidatorRepository(postgres)
	cycleErrorRepo := storage.NewCycleErrorRepository(postgres)

	coingecko := adapter.NewCoinGeckoClient(&cfg.PriceAPI)
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

	svc := service.NewValuationService(
		snapshotRepo, poolRepo, troveRepo, validatorRepo, assetRepo, cycleErrorRepo,
		resolver, cfg.PriceAPI.Currency, debtAsset,
	)

	ctx := context.Background()

	var addresses []*models.TrackedAddress
	if *userID != "" {
		addresses, err = addressRepo.ListByUser(ctx, *userID)
	} else {
		addresses, err = addressRepo.ListAll(ctx)
	}
	if err != nil {
		logger.Fatalw("Failed to list addresses", "error", err)
	}
	addressIDs := make([]int64, 0, len(addresses))
	for _, addr := range addresses {
		addressIDs = append(addressIDs, addr.ID)
	}

	var out any
	var snapshotID int64
	if *rewards {
		view, err := svc.GetRewards(ctx, addressIDs)
		if err != nil {
			logger.Fatalw("Failed to build rewards view", "error", err)
		}
		out = view
		snapshotID = view.SnapshotID
	} else if *date != "" {
		day, err := time.Parse("2006-01-02", *date)
		if err != nil {
			logger.Fatalw("Invalid date", "date", *date, "error", err)
		}
		view, err := svc.GetValuationAt(ctx, addressIDs, day)
		if err != nil {
			logger.Fatalw("Failed to build valuation", "error", err)
		}
		out = view
		snapshotID = view.SnapshotID
	} else {
		view, err := svc.GetValuation(ctx, addressIDs)
		if err != nil {
			logger.Fatalw("Failed to build valuation", "error", err)
		}
		out = view
		snapshotID = view.SnapshotID
	}

	if *showErrors {
		cycleErrors, err := svc.CycleErrors(ctx, snapshotID)
		if err != nil {
			logger.Fatalw("Failed to list cycle errors", "error", err)
		}
		out = map[string]any{"report": out, "cycleErrors": cycleErrors}
	}

	encoder := json.NewEncoder(os.Stdout)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(out); err != nil {
		logger.Fatalw("Failed to encode report", "error", err)
	}
}
