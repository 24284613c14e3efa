package worker

import (
	"context"
	"fmt"

	"github.com/crypto-tracker/internal/config"
	"github.com/crypto-tracker/internal/logging"
	"github.com/crypto-tracker/internal/storage"
	"github.com/crypto-tracker/internal/types"
)

// Seeder reconciles reference data at startup: enabled networks, the
// asset catalog with its per-network token bindings, and the protocol
// registry's pools. Every write is get-or-create, so reseeding is a
// no-op once the rows exist.
type Seeder struct {
	assets   *storage.AssetRepository
	pools    *storage.PoolRepository
	chains   *config.ChainsConfig
	catalog  []config.AssetSpec
	registry *config.Registry
}

// NewSeeder creates a new reference data seeder
func NewSeeder(assets *storage.AssetRepository, pools *storage.PoolRepository, chains *config.ChainsConfig, catalog []config.AssetSpec, registry *config.Registry) *Seeder {
	return &Seeder{
		assets:   assets,
		pools:    pools,
		chains:   chains,
		catalog:  catalog,
		registry: registry,
	}
}

// Seed creates any missing networks, assets, bindings and pools
func (s *Seeder) Seed(ctx context.Context) error {
	networks, err := s.seedNetworks(ctx)
	if err != nil {
		return err
	}
	if err := s.seedAssets(ctx, networks); err != nil {
		return err
	}
	return s.seedPools(ctx, networks)
}

func (s *Seeder) seedNetworks(ctx context.Context) (map[types.ChainID]int64, error) {
	networks := make(map[types.ChainID]int64, len(s.chains.Enabled))
	for _, name := range s.chains.Enabled {
		chain := types.ChainID(name)
		network, err := s.assets.GetOrCreateNetwork(ctx, chain, s.chains.Chains[name].RPCURL)
		if err != nil {
			return nil, fmt.Errorf("failed to seed network %s: %w", name, err)
		}
		networks[chain] = network.ID
	}
	return networks, nil
}

func (s *Seeder) seedAssets(ctx context.Context, networks map[types.ChainID]int64) error {
	for _, spec := range s.catalog {
		asset, err := s.assets.GetOrCreateAsset(ctx, spec.Name, spec.Symbol)
		if err != nil {
			return fmt.Errorf("failed to seed asset %s: %w", spec.Name, err)
		}
		for chain, tokenAddress := range spec.Addresses {
			networkID, ok := networks[chain]
			if !ok {
				continue
			}
			var token *string
			if tokenAddress != "" {
				addr := tokenAddress
				token = &addr
			}
			if _, err := s.assets.GetOrCreateAssetNetwork(ctx, asset.ID, networkID, token); err != nil {
				return fmt.Errorf("failed to seed asset binding %s/%s: %w", spec.Name, chain, err)
			}
		}
	}
	return nil
}

func (s *Seeder) seedPools(ctx context.Context, networks map[types.ChainID]int64) error {
	log := logging.FromContext(ctx)
	for _, protocol := range s.registry.Protocols {
		for networkName, pools := range protocol.Networks {
			networkID, ok := networks[types.ChainID(networkName)]
			if !ok {
				log.Warnw("Registry references a disabled network, skipping its pools",
					"protocol", protocol.Name,
					"network", networkName)
				continue
			}
			for _, pool := range pools {
				var contract, collateral *string
				if pool.ContractAddress != "" {
					addr := pool.ContractAddress
					contract = &addr
				}
				if pool.Collateral != "" {
					coll := pool.Collateral
					collateral = &coll
				}
				if _, err := s.pools.GetOrCreatePool(ctx, protocol.Name, networkID, pool.Kind, contract, collateral); err != nil {
					return fmt.Errorf("failed to seed pool %s/%s: %w", protocol.Name, networkName, err)
				}
			}
		}
	}
	return nil
}
