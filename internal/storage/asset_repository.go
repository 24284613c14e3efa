package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"

	"github.com/crypto-tracker/internal/models"
	"github.com/crypto-tracker/internal/types"
)

// AssetRepository handles asset, network and asset-network binding
// persistence
type AssetRepository struct {
	db *PostgresDB
}

// NewAssetRepository creates a new asset repository
func NewAssetRepository(db *PostgresDB) *AssetRepository {
	return &AssetRepository{db: db}
}

// GetOrCreateNetwork returns the network with the given name, creating
// it if it does not exist yet.
func (r *AssetRepository) GetOrCreateNetwork(ctx context.Context, name types.ChainID, rpcURL string) (*models.Network, error) {
	insert := `
		INSERT INTO networks (name, rpc_url)
		VALUES ($1, $2)
		ON CONFLICT (name) DO NOTHING
		RETURNING id, name, rpc_url, image
	`

	var n models.Network
	err := r.db.Pool().QueryRow(ctx, insert, name, rpcURL).Scan(&n.ID, &n.Name, &n.RPCURL, &n.Image)
	if err == nil {
		return &n, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("failed to create network: %w", err)
	}

	// Conflict path, the row already exists
	query := `SELECT id, name, rpc_url, image FROM networks WHERE name = $1`
	err = r.db.Pool().QueryRow(ctx, query, name).Scan(&n.ID, &n.Name, &n.RPCURL, &n.Image)
	if err != nil {
		return nil, fmt.Errorf("failed to get network: %w", err)
	}
	return &n, nil
}

// GetNetwork retrieves a network by name
func (r *AssetRepository) GetNetwork(ctx context.Context, name types.ChainID) (*models.Network, error) {
	query := `SELECT id, name, rpc_url, image FROM networks WHERE name = $1`

	var n models.Network
	err := r.db.Pool().QueryRow(ctx, query, name).Scan(&n.ID, &n.Name, &n.RPCURL, &n.Image)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get network: %w", err)
	}
	return &n, nil
}

// ListNetworks retrieves all networks
func (r *AssetRepository) ListNetworks(ctx context.Context) ([]*models.Network, error) {
	query := `SELECT id, name, rpc_url, image FROM networks ORDER BY name`

	rows, err := r.db.Pool().Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list networks: %w", err)
	}
	defer rows.Close()

	var networks []*models.Network
	for rows.Next() {
		var n models.Network
		if err := rows.Scan(&n.ID, &n.Name, &n.RPCURL, &n.Image); err != nil {
			return nil, fmt.Errorf("failed to scan network: %w", err)
		}
		networks = append(networks, &n)
	}
	return networks, rows.Err()
}

// GetOrCreateAsset returns the asset with the given name, creating it
// if it does not exist yet. The name doubles as the price API
// identifier so it is unique.
func (r *AssetRepository) GetOrCreateAsset(ctx context.Context, name, symbol string) (*models.Asset, error) {
	insert := `
		INSERT INTO assets (name, symbol)
		VALUES ($1, $2)
		ON CONFLICT (name) DO NOTHING
		RETURNING id, name, symbol, image
	`

	var a models.Asset
	err := r.db.Pool().QueryRow(ctx, insert, name, symbol).Scan(&a.ID, &a.Name, &a.Symbol, &a.Image)
	if err == nil {
		return &a, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("failed to create asset: %w", err)
	}

	query := `SELECT id, name, symbol, image FROM assets WHERE name = $1`
	err = r.db.Pool().QueryRow(ctx, query, name).Scan(&a.ID, &a.Name, &a.Symbol, &a.Image)
	if err != nil {
		return nil, fmt.Errorf("failed to get asset: %w", err)
	}
	return &a, nil
}

// GetAsset retrieves an asset by name
func (r *AssetRepository) GetAsset(ctx context.Context, name string) (*models.Asset, error) {
	query := `SELECT id, name, symbol, image FROM assets WHERE name = $1`

	var a models.Asset
	err := r.db.Pool().QueryRow(ctx, query, name).Scan(&a.ID, &a.Name, &a.Symbol, &a.Image)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get asset: %w", err)
	}
	return &a, nil
}

// GetAssetBySymbol retrieves an asset by symbol
func (r *AssetRepository) GetAssetBySymbol(ctx context.Context, symbol string) (*models.Asset, error) {
	query := `SELECT id, name, symbol, image FROM assets WHERE symbol = $1 LIMIT 1`

	var a models.Asset
	err := r.db.Pool().QueryRow(ctx, query, symbol).Scan(&a.ID, &a.Name, &a.Symbol, &a.Image)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get asset: %w", err)
	}
	return &a, nil
}

// GetAssetByID retrieves an asset by id
func (r *AssetRepository) GetAssetByID(ctx context.Context, id int64) (*models.Asset, error) {
	query := `SELECT id, name, symbol, image FROM assets WHERE id = $1`

	var a models.Asset
	err := r.db.Pool().QueryRow(ctx, query, id).Scan(&a.ID, &a.Name, &a.Symbol, &a.Image)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get asset: %w", err)
	}
	return &a, nil
}

// ListAssets retrieves all assets
func (r *AssetRepository) ListAssets(ctx context.Context) ([]*models.Asset, error) {
	query := `SELECT id, name, symbol, image FROM assets ORDER BY name`

	rows, err := r.db.Pool().Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list assets: %w", err)
	}
	defer rows.Close()

	var assets []*models.Asset
	for rows.Next() {
		var a models.Asset
		if err := rows.Scan(&a.ID, &a.Name, &a.Symbol, &a.Image); err != nil {
			return nil, fmt.Errorf("failed to scan asset: %w", err)
		}
		assets = append(assets, &a)
	}
	return assets, rows.Err()
}

// GetOrCreateAssetNetwork returns the binding between an asset and a
// network, creating it if it does not exist yet. A nil token address
// marks the network's native coin.
func (r *AssetRepository) GetOrCreateAssetNetwork(ctx context.Context, assetID, networkID int64, tokenAddress *string) (*models.AssetNetwork, error) {
	if tokenAddress != nil {
		lower := strings.ToLower(*tokenAddress)
		tokenAddress = &lower
	}

	insert := `
		INSERT INTO asset_networks (asset_id, network_id, token_address)
		VALUES ($1, $2, $3)
		ON CONFLICT (asset_id, network_id) DO NOTHING
		RETURNING id, asset_id, network_id, token_address
	`

	var an models.AssetNetwork
	err := r.db.Pool().QueryRow(ctx, insert, assetID, networkID, tokenAddress).Scan(
		&an.ID, &an.AssetID, &an.NetworkID, &an.TokenAddress)
	if err == nil {
		return &an, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("failed to create asset network: %w", err)
	}

	query := `
		SELECT id, asset_id, network_id, token_address
		FROM asset_networks
		WHERE asset_id = $1 AND network_id = $2
	`
	err = r.db.Pool().QueryRow(ctx, query, assetID, networkID).Scan(
		&an.ID, &an.AssetID, &an.NetworkID, &an.TokenAddress)
	if err != nil {
		return nil, fmt.Errorf("failed to get asset network: %w", err)
	}
	return &an, nil
}

// ListAssetNetworks retrieves all asset-network bindings for one
// network, with the asset and network joined in.
func (r *AssetRepository) ListAssetNetworks(ctx context.Context, networkID int64) ([]*models.AssetNetwork, error) {
	query := `
		SELECT an.id, an.asset_id, an.network_id, an.token_address,
			   a.id, a.name, a.symbol, a.image,
			   n.id, n.name, n.rpc_url, n.image
		FROM asset_networks an
		JOIN assets a ON a.id = an.asset_id
		JOIN networks n ON n.id = an.network_id
		WHERE an.network_id = $1
		ORDER BY a.name
	`

	rows, err := r.db.Pool().Query(ctx, query, networkID)
	if err != nil {
		return nil, fmt.Errorf("failed to list asset networks: %w", err)
	}
	defer rows.Close()

	return scanAssetNetworks(rows)
}

// ListAllAssetNetworks retrieves every asset-network binding with the
// asset and network joined in
func (r *AssetRepository) ListAllAssetNetworks(ctx context.Context) ([]*models.AssetNetwork, error) {
	query := `
		SELECT an.id, an.asset_id, an.network_id, an.token_address,
			   a.id, a.name, a.symbol, a.image,
			   n.id, n.name, n.rpc_url, n.image
		FROM asset_networks an
		JOIN assets a ON a.id = an.asset_id
		JOIN networks n ON n.id = an.network_id
		ORDER BY n.name, a.name
	`

	rows, err := r.db.Pool().Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list asset networks: %w", err)
	}
	defer rows.Close()

	return scanAssetNetworks(rows)
}

func scanAssetNetworks(rows pgx.Rows) ([]*models.AssetNetwork, error) {
	var bindings []*models.AssetNetwork
	for rows.Next() {
		var an models.AssetNetwork
		var a models.Asset
		var n models.Network
		err := rows.Scan(
			&an.ID, &an.AssetID, &an.NetworkID, &an.TokenAddress,
			&a.ID, &a.Name, &a.Symbol, &a.Image,
			&n.ID, &n.Name, &n.RPCURL, &n.Image,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan asset network: %w", err)
		}
		an.Asset = &a
		an.Network = &n
		bindings = append(bindings, &an)
	}
	return bindings, rows.Err()
}
