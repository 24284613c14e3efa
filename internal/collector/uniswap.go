package collector

import (
	"context"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/crypto-tracker/internal/adapter"
	"github.com/crypto-tracker/internal/config"
	"github.com/crypto-tracker/internal/logging"
	"github.com/crypto-tracker/internal/models"
	"github.com/crypto-tracker/internal/types"
)

const positionsQuery = `query ($owner: String!) {
  positions(where: {owner: $owner, liquidity_gt: "0"}) {
    id
    liquidity
    token0 {
      symbol
      decimals
    }
    token1 {
      symbol
      decimals
    }
    depositedToken0
    depositedToken1
    collectedFeesToken0
    collectedFeesToken1
  }
}`

type positionToken struct {
	Symbol   string `json:"symbol"`
	Decimals string `json:"decimals"`
}

type positionsResult struct {
	Positions []struct {
		ID                  string        `json:"id"`
		Liquidity           string        `json:"liquidity"`
		Token0              positionToken `json:"token0"`
		Token1              positionToken `json:"token1"`
		DepositedToken0     string        `json:"depositedToken0"`
		DepositedToken1     string        `json:"depositedToken1"`
		CollectedFeesToken0 string        `json:"collectedFeesToken0"`
		CollectedFeesToken1 string        `json:"collectedFeesToken1"`
	} `json:"positions"`
}

// UniswapCollector reads open AMM liquidity positions from the Uniswap
// v3 subgraph. Deposited amounts become balances, collected fees become
// rewards; the subgraph already reports both human-scaled.
type UniswapCollector struct {
	subgraph *adapter.SubgraphClient
	writer   *Writer
	registry *config.Registry
}

// NewUniswapCollector creates a new Uniswap v3 position collector
func NewUniswapCollector(subgraph *adapter.SubgraphClient, writer *Writer, registry *config.Registry) *UniswapCollector {
	return &UniswapCollector{subgraph: subgraph, writer: writer, registry: registry}
}

func (c *UniswapCollector) Name() string { return "uniswap-positions" }

func (c *UniswapCollector) Category() types.UpdateCategory { return types.CategoryProtocols }

func (c *UniswapCollector) Collect(ctx context.Context, address *models.TrackedAddress, snapshot *models.Snapshot) error {
	proto := c.registry.Protocol(config.ProtocolUniswapV3)
	if proto == nil || proto.Subgraph == nil {
		return nil
	}
	spec := c.registry.Pool(config.ProtocolUniswapV3, types.ChainEthereum, types.PoolAMM)
	if spec == nil {
		return nil
	}

	var result positionsResult
	variables := map[string]any{"owner": strings.ToLower(address.PublicAddress)}
	if err := c.subgraph.Query(ctx, proto.Subgraph.ID, positionsQuery, variables, &result); err != nil {
		return err
	}
	if len(result.Positions) == 0 {
		return nil
	}

	pool, err := c.writer.Pool(ctx, config.ProtocolUniswapV3, types.ChainEthereum, spec)
	if err != nil {
		return err
	}

	log := logging.FromContext(ctx)
	for _, position := range result.Positions {
		sides := []struct {
			token     positionToken
			deposited string
			fees      string
		}{
			{position.Token0, position.DepositedToken0, position.CollectedFeesToken0},
			{position.Token1, position.DepositedToken1, position.CollectedFeesToken1},
		}
		for _, side := range sides {
			asset, err := c.writer.AssetBySymbol(ctx, side.token.Symbol)
			if err != nil {
				log.Warnw("Pool token not in catalog, skipping position side",
					"position", position.ID,
					"symbol", side.token.Symbol)
				continue
			}
			deposited, err := parseSubgraphAmount(side.deposited)
			if err != nil {
				return fmt.Errorf("failed to parse deposited amount for position %s: %w", position.ID, err)
			}
			fees, err := parseSubgraphAmount(side.fees)
			if err != nil {
				return fmt.Errorf("failed to parse collected fees for position %s: %w", position.ID, err)
			}

			if err := c.writer.SavePoolQuantity(ctx, pool, address, position.ID, asset, snapshot, types.SnapshotBalance, deposited); err != nil {
				return err
			}
			if err := c.writer.SavePoolQuantity(ctx, pool, address, position.ID, asset, snapshot, types.SnapshotReward, fees); err != nil {
				return err
			}
		}
	}
	return nil
}

func parseSubgraphAmount(raw string) (decimal.Decimal, error) {
	if raw == "" || raw == "0" {
		return decimal.Zero, nil
	}
	return decimal.NewFromString(raw)
}
