// Package collector gathers positions from protocols, wallets and the
// beacon chain and writes them as snapshot rows. Each collector covers
// one protocol surface; a collector failing affects only its own rows.
package collector

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/crypto-tracker/internal/config"
	"github.com/crypto-tracker/internal/errors"
	"github.com/crypto-tracker/internal/models"
	"github.com/crypto-tracker/internal/types"
)

// Collector gathers one protocol surface for one tracked address and
// writes its measurements against the given snapshot. Implementations
// must be idempotent per (address, snapshot): retried runs re-read and
// re-insert, and the storage layer ignores duplicates.
type Collector interface {
	// Name identifies the collector in cycle error rows and logs
	Name() string

	// Category is the update category the orchestrator schedules this
	// collector under
	Category() types.UpdateCategory

	// Collect reads current state and writes snapshot rows
	Collect(ctx context.Context, address *models.TrackedAddress, snapshot *models.Snapshot) error
}

// AssetCatalog is the read side of the seeded reference data.
// Satisfied by storage.AssetRepository.
type AssetCatalog interface {
	GetAsset(ctx context.Context, name string) (*models.Asset, error)
	GetAssetBySymbol(ctx context.Context, symbol string) (*models.Asset, error)
	GetNetwork(ctx context.Context, name types.ChainID) (*models.Network, error)
}

// PositionStore persists pools, positions and their snapshot rows.
// Satisfied by storage.PoolRepository. Inserts are conflict-tolerant:
// a retried run against the same snapshot leaves the row set unchanged.
type PositionStore interface {
	GetOrCreatePool(ctx context.Context, protocol string, networkID int64, kind types.PoolKind, contractAddress, collateral *string) (*models.Pool, error)
	GetOrCreatePosition(ctx context.Context, poolID, addressID int64, externalID string) (*models.PoolPosition, error)
	CreatePositionSnapshot(ctx context.Context, snap *models.PositionSnapshot) error
}

// Writer bundles the stores collectors persist through, plus the
// lookups they share.
type Writer struct {
	Assets AssetCatalog
	Pools  PositionStore
}

// AssetBySymbol resolves a seeded asset by symbol. Unknown symbols are
// a not-found error; collectors report them as cycle errors rather than
// inventing price identifiers.
func (w *Writer) AssetBySymbol(ctx context.Context, symbol string) (*models.Asset, error) {
	asset, err := w.Assets.GetAssetBySymbol(ctx, symbol)
	if err != nil {
		return nil, err
	}
	if asset == nil {
		return nil, errors.NewNotFoundError("asset", symbol)
	}
	return asset, nil
}

// AssetByName resolves a seeded asset by its price API identifier
func (w *Writer) AssetByName(ctx context.Context, name string) (*models.Asset, error) {
	asset, err := w.Assets.GetAsset(ctx, name)
	if err != nil {
		return nil, err
	}
	if asset == nil {
		return nil, errors.NewNotFoundError("asset", name)
	}
	return asset, nil
}

// Pool resolves a registry pool spec to its database row, creating the
// row on first use
func (w *Writer) Pool(ctx context.Context, protocol string, chain types.ChainID, spec *config.PoolSpec) (*models.Pool, error) {
	network, err := w.Assets.GetNetwork(ctx, chain)
	if err != nil {
		return nil, err
	}
	if network == nil {
		return nil, errors.NewNotFoundError("network", chain)
	}

	var contract *string
	if spec.ContractAddress != "" {
		contract = &spec.ContractAddress
	}
	var collateral *string
	if spec.Collateral != "" {
		collateral = &spec.Collateral
	}
	return w.Pools.GetOrCreatePool(ctx, protocol, network.ID, spec.Kind, contract, collateral)
}

// SavePoolQuantity records one measured quantity for an address's
// position in a pool. Zero quantities are skipped: absent positions
// leave no rows.
func (w *Writer) SavePoolQuantity(ctx context.Context, pool *models.Pool, address *models.TrackedAddress, externalID string, asset *models.Asset, snapshot *models.Snapshot, kind types.SnapshotKind, quantity decimal.Decimal) error {
	if quantity.IsZero() {
		return nil
	}

	position, err := w.Pools.GetOrCreatePosition(ctx, pool.ID, address.ID, externalID)
	if err != nil {
		return err
	}

	return w.Pools.CreatePositionSnapshot(ctx, &models.PositionSnapshot{
		PositionID: position.ID,
		AssetID:    asset.ID,
		SnapshotID: snapshot.ID,
		Kind:       kind,
		Quantity:   quantity,
	})
}
