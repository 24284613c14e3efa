package collector

import (
	"context"
	"fmt"
	"reflect"

	"github.com/ethereum/go-ethereum/common"

	"github.com/crypto-tracker/internal/adapter"
	"github.com/crypto-tracker/internal/config"
	"github.com/crypto-tracker/internal/logging"
	"github.com/crypto-tracker/internal/models"
	"github.com/crypto-tracker/internal/types"
)

// AaveLendingCollector reads supplied balances from Aave v3 markets.
// The registry holds the addresses provider per network; the data
// provider and reserve list are resolved on every run so newly listed
// reserves are picked up without a config change.
type AaveLendingCollector struct {
	chain    adapter.ChainReader
	writer   *Writer
	registry *config.Registry
}

// NewAaveLendingCollector creates a new Aave v3 lending collector
func NewAaveLendingCollector(chain adapter.ChainReader, writer *Writer, registry *config.Registry) *AaveLendingCollector {
	return &AaveLendingCollector{chain: chain, writer: writer, registry: registry}
}

func (c *AaveLendingCollector) Name() string { return "aave-lending" }

func (c *AaveLendingCollector) Category() types.UpdateCategory { return types.CategoryProtocols }

func (c *AaveLendingCollector) Collect(ctx context.Context, address *models.TrackedAddress, snapshot *models.Snapshot) error {
	proto := c.registry.Protocol(config.ProtocolAaveV3)
	if proto == nil {
		return nil
	}
	for network := range proto.Networks {
		chain := types.ChainID(network)
		spec := c.registry.Pool(config.ProtocolAaveV3, chain, types.PoolLending)
		if spec == nil {
			continue
		}
		if err := c.collectMarket(ctx, address, snapshot, chain, spec); err != nil {
			return err
		}
	}
	return nil
}

func (c *AaveLendingCollector) collectMarket(ctx context.Context, address *models.TrackedAddress, snapshot *models.Snapshot, chain types.ChainID, spec *config.PoolSpec) error {
	log := logging.FromContext(ctx)

	results, err := c.chain.Call(ctx, chain, spec.ContractAddress, "getPoolDataProvider")
	if err != nil {
		return err
	}
	dataProvider, ok := results[0].(common.Address)
	if !ok {
		return fmt.Errorf("unexpected data provider type %T", results[0])
	}

	results, err = c.chain.Call(ctx, chain, dataProvider.Hex(), "getAllReservesTokens")
	if err != nil {
		return err
	}
	reserves, err := decodeReserveTokens(results[0])
	if err != nil {
		return err
	}

	pool, err := c.writer.Pool(ctx, config.ProtocolAaveV3, chain, spec)
	if err != nil {
		return err
	}
	user := common.HexToAddress(address.PublicAddress)

	for _, reserve := range reserves {
		results, err = c.chain.Call(ctx, chain, dataProvider.Hex(), "getUserReserveData", reserve.TokenAddress, user)
		if err != nil {
			log.Warnw("Failed to read Aave reserve data",
				"network", chain,
				"reserve", reserve.Symbol,
				"error", err)
			continue
		}
		balance, err := asBigInt(results[0], "getUserReserveData")
		if err != nil {
			return err
		}
		if balance.Sign() == 0 {
			continue
		}

		asset, err := c.writer.AssetBySymbol(ctx, reserve.Symbol)
		if err != nil {
			log.Warnw("Aave reserve token not in catalog, skipping",
				"network", chain,
				"reserve", reserve.Symbol)
			continue
		}

		if err := c.writer.SavePoolQuantity(ctx, pool, address, "", asset, snapshot, types.SnapshotBalance, types.FromWei(balance)); err != nil {
			return err
		}
	}
	return nil
}

type reserveToken struct {
	Symbol       string
	TokenAddress common.Address
}

// decodeReserveTokens unpacks the (string, address)[] tuple slice
// returned by getAllReservesTokens. The ABI decoder yields a slice of
// anonymous structs, so the fields are read through reflection.
func decodeReserveTokens(v interface{}) ([]reserveToken, error) {
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Slice {
		return nil, fmt.Errorf("unexpected reserve list type %T", v)
	}
	tokens := make([]reserveToken, 0, rv.Len())
	for i := 0; i < rv.Len(); i++ {
		item := rv.Index(i)
		symbol := item.FieldByName("Symbol")
		addr := item.FieldByName("TokenAddress")
		if !symbol.IsValid() || !addr.IsValid() {
			return nil, fmt.Errorf("unexpected reserve tuple shape %T", item.Interface())
		}
		tokenAddr, ok := addr.Interface().(common.Address)
		if !ok {
			return nil, fmt.Errorf("unexpected reserve address type %T", addr.Interface())
		}
		tokens = append(tokens, reserveToken{
			Symbol:       symbol.String(),
			TokenAddress: tokenAddr,
		})
	}
	return tokens, nil
}
