package collector

import (
	"context"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/crypto-tracker/internal/adapter"
	"github.com/crypto-tracker/internal/config"
	"github.com/crypto-tracker/internal/logging"
	"github.com/crypto-tracker/internal/models"
	"github.com/crypto-tracker/internal/pricing"
	"github.com/crypto-tracker/internal/storage"
	"github.com/crypto-tracker/internal/types"
)

const trovesQuery = `query ($borrower: String!) {
  troves(where: {borrower: $borrower, status: "active"}, orderBy: updatedAt, orderDirection: desc) {
    id
    createdAt
    deposit
    collateral {
      collIndex
    }
    interestRate
    debt
  }
}`

type troveResult struct {
	Troves []struct {
		ID         string `json:"id"`
		CreatedAt  string `json:"createdAt"`
		Deposit    string `json:"deposit"`
		Collateral struct {
			CollIndex int `json:"collIndex"`
		} `json:"collateral"`
		InterestRate string `json:"interestRate"`
		Debt         string `json:"debt"`
	} `json:"troves"`
}

// TroveCollector reads collateralized borrowing positions from the
// protocol subgraph. Net value is priced at write time for convenience;
// valuation reads recompute it from the stored quantities.
type TroveCollector struct {
	subgraph *adapter.SubgraphClient
	writer   *Writer
	troves   *storage.TroveRepository
	resolver *pricing.Resolver
	registry *config.Registry
}

// NewTroveCollector creates a new trove collector
func NewTroveCollector(subgraph *adapter.SubgraphClient, writer *Writer, troves *storage.TroveRepository, resolver *pricing.Resolver, registry *config.Registry) *TroveCollector {
	return &TroveCollector{
		subgraph: subgraph,
		writer:   writer,
		troves:   troves,
		resolver: resolver,
		registry: registry,
	}
}

func (c *TroveCollector) Name() string { return "liquity-troves" }

func (c *TroveCollector) Category() types.UpdateCategory { return types.CategoryProtocols }

func (c *TroveCollector) Collect(ctx context.Context, address *models.TrackedAddress, snapshot *models.Snapshot) error {
	proto := c.registry.Protocol(config.ProtocolLiquityV2)
	if proto == nil || proto.Subgraph == nil {
		return nil
	}
	spec := c.registry.Pool(config.ProtocolLiquityV2, types.ChainEthereum, types.PoolBorrowing)
	if spec == nil {
		return nil
	}

	var result troveResult
	variables := map[string]any{"borrower": strings.ToLower(address.PublicAddress)}
	if err := c.subgraph.Query(ctx, proto.Subgraph.ID, trovesQuery, variables, &result); err != nil {
		return err
	}
	if len(result.Troves) == 0 {
		return nil
	}

	pool, err := c.writer.Pool(ctx, config.ProtocolLiquityV2, types.ChainEthereum, spec)
	if err != nil {
		return err
	}

	debtAsset, err := c.writer.AssetByName(ctx, proto.Subgraph.DebtAsset)
	if err != nil {
		return err
	}

	log := logging.FromContext(ctx)
	for _, raw := range result.Troves {
		symbol := c.collateralSymbol(proto.Subgraph, raw.Collateral.CollIndex)
		collateralAsset, err := c.writer.AssetBySymbol(ctx, symbol)
		if err != nil {
			return err
		}

		collateral, err := types.FromRawString(raw.Deposit, types.WeiDecimals)
		if err != nil {
			return err
		}
		debt, err := types.FromRawString(raw.Debt, types.WeiDecimals)
		if err != nil {
			return err
		}
		rate, err := types.FromRawString(raw.InterestRate, types.RateDecimals)
		if err != nil {
			return err
		}

		trove, err := c.troves.GetOrCreate(ctx, &models.Trove{
			ExternalID:        raw.ID,
			AddressID:         address.ID,
			PoolID:            pool.ID,
			CollateralAssetID: collateralAsset.ID,
		})
		if err != nil {
			return err
		}

		netValue := c.netValue(ctx, snapshot, collateralAsset, collateral, debtAsset, debt, log)

		snap := &models.TroveSnapshot{
			TroveID:      trove.ID,
			SnapshotID:   snapshot.ID,
			Collateral:   collateral,
			Debt:         debt,
			NetValue:     netValue,
			InterestRate: rate,
		}
		if err := c.troves.CreateSnapshot(ctx, snap); err != nil {
			return err
		}
	}
	return nil
}

// netValue prices collateral minus debt. Missing prices degrade to zero
// here; valuation reads reprice from the stored quantities anyway.
func (c *TroveCollector) netValue(ctx context.Context, snapshot *models.Snapshot, collateralAsset *models.Asset, collateral decimal.Decimal, debtAsset *models.Asset, debt decimal.Decimal, log *zap.SugaredLogger) decimal.Decimal {
	collateralPrice, err := c.resolver.GetPrice(ctx, collateralAsset, snapshot)
	if err != nil {
		log.Warnw("No collateral price for trove net value", "asset", collateralAsset.Name, "error", err)
		return decimal.Zero
	}
	debtPrice, err := c.resolver.GetPrice(ctx, debtAsset, snapshot)
	if err != nil {
		log.Warnw("No debt price for trove net value", "asset", debtAsset.Name, "error", err)
		return decimal.Zero
	}
	return collateral.Mul(collateralPrice).Sub(debt.Mul(debtPrice))
}

func (c *TroveCollector) collateralSymbol(spec *config.SubgraphSpec, collIndex int) string {
	if symbol, ok := spec.CollateralIndex[strconv.Itoa(collIndex)]; ok {
		return symbol
	}
	return "rETH"
}
