package collector

import (
	"context"
	stderrors "errors"
	"math/big"

	"github.com/crypto-tracker/internal/adapter"
	"github.com/crypto-tracker/internal/config"
	"github.com/crypto-tracker/internal/logging"
	"github.com/crypto-tracker/internal/models"
	"github.com/crypto-tracker/internal/storage"
	"github.com/crypto-tracker/internal/types"
)

// WalletAssetCollector reads directly-held wallet balances across every
// enabled chain: the native coin plus every catalog token bound to the
// chain. A failing binding does not stop the rest of the sweep.
type WalletAssetCollector struct {
	chain  adapter.ChainReader
	assets *storage.AssetRepository
	pools  *storage.PoolRepository
	chains *config.ChainsConfig
}

// NewWalletAssetCollector creates a new wallet asset collector
func NewWalletAssetCollector(chain adapter.ChainReader, assets *storage.AssetRepository, pools *storage.PoolRepository, chains *config.ChainsConfig) *WalletAssetCollector {
	return &WalletAssetCollector{chain: chain, assets: assets, pools: pools, chains: chains}
}

func (c *WalletAssetCollector) Name() string { return "wallet-assets" }

func (c *WalletAssetCollector) Category() types.UpdateCategory { return types.CategoryWalletAssets }

func (c *WalletAssetCollector) Collect(ctx context.Context, address *models.TrackedAddress, snapshot *models.Snapshot) error {
	bindings, err := c.assets.ListAllAssetNetworks(ctx)
	if err != nil {
		return err
	}

	enabled := make(map[types.ChainID]bool, len(c.chains.Enabled))
	for _, name := range c.chains.Enabled {
		enabled[types.ChainID(name)] = true
	}

	log := logging.FromContext(ctx)
	var errs []error
	for _, binding := range bindings {
		if binding.Network == nil || !enabled[binding.Network.Name] {
			continue
		}
		if err := c.collectBinding(ctx, address, snapshot, binding); err != nil {
			log.Warnw("Failed to collect wallet balance",
				"network", binding.Network.Name,
				"asset", binding.Asset.Symbol,
				"error", err)
			errs = append(errs, err)
		}
	}
	return stderrors.Join(errs...)
}

func (c *WalletAssetCollector) collectBinding(ctx context.Context, address *models.TrackedAddress, snapshot *models.Snapshot, binding *models.AssetNetwork) error {
	network := binding.Network.Name

	var raw *big.Int
	var err error
	if binding.IsNative() {
		raw, err = c.chain.NativeBalance(ctx, network, address.PublicAddress)
	} else {
		raw, err = c.chain.TokenBalance(ctx, network, *binding.TokenAddress, address.PublicAddress)
	}
	if err != nil {
		return err
	}
	if raw.Sign() == 0 {
		return nil
	}

	return c.pools.CreateWalletAssetSnapshot(ctx, &models.WalletAssetSnapshot{
		AddressID:      address.ID,
		AssetNetworkID: binding.ID,
		SnapshotID:     snapshot.ID,
		Quantity:       types.FromWei(raw),
	})
}
