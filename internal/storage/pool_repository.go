package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/crypto-tracker/internal/models"
	"github.com/crypto-tracker/internal/types"
)

// PoolRepository handles pool, pool position and position snapshot
// persistence
type PoolRepository struct {
	db *PostgresDB
}

// NewPoolRepository creates a new pool repository
func NewPoolRepository(db *PostgresDB) *PoolRepository {
	return &PoolRepository{db: db}
}

// GetOrCreatePool returns the pool identified by (protocol, network,
// kind, collateral), creating it if it does not exist yet. Collateral
// is empty for single-collateral protocols.
func (r *PoolRepository) GetOrCreatePool(ctx context.Context, protocol string, networkID int64, kind types.PoolKind, contractAddress, collateral *string) (*models.Pool, error) {
	insert := `
		INSERT INTO pools (protocol, network_id, kind, contract_address, collateral)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (protocol, network_id, kind, collateral) DO NOTHING
		RETURNING id, protocol, network_id, kind, contract_address, collateral
	`

	var p models.Pool
	err := r.db.Pool().QueryRow(ctx, insert, protocol, networkID, kind, contractAddress, nullableToEmpty(collateral)).Scan(
		&p.ID, &p.Protocol, &p.NetworkID, &p.Kind, &p.ContractAddress, &p.Collateral)
	if err == nil {
		return &p, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("failed to create pool: %w", err)
	}

	query := `
		SELECT id, protocol, network_id, kind, contract_address, collateral
		FROM pools
		WHERE protocol = $1 AND network_id = $2 AND kind = $3 AND collateral = $4
	`
	err = r.db.Pool().QueryRow(ctx, query, protocol, networkID, kind, nullableToEmpty(collateral)).Scan(
		&p.ID, &p.Protocol, &p.NetworkID, &p.Kind, &p.ContractAddress, &p.Collateral)
	if err != nil {
		return nil, fmt.Errorf("failed to get pool: %w", err)
	}
	return &p, nil
}

// Collateral participates in the pool unique key, so NULL would make
// sibling pools indistinguishable to ON CONFLICT. Store empty string
// instead.
func nullableToEmpty(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

// ListPools retrieves all pools with their networks joined in
func (r *PoolRepository) ListPools(ctx context.Context) ([]*models.Pool, error) {
	query := `
		SELECT p.id, p.protocol, p.network_id, p.kind, p.contract_address, p.collateral,
			   n.id, n.name, n.rpc_url, n.image
		FROM pools p
		JOIN networks n ON n.id = p.network_id
		ORDER BY p.protocol, n.name
	`

	rows, err := r.db.Pool().Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list pools: %w", err)
	}
	defer rows.Close()

	var pools []*models.Pool
	for rows.Next() {
		var p models.Pool
		var n models.Network
		err := rows.Scan(
			&p.ID, &p.Protocol, &p.NetworkID, &p.Kind, &p.ContractAddress, &p.Collateral,
			&n.ID, &n.Name, &n.RPCURL, &n.Image,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan pool: %w", err)
		}
		p.Network = &n
		pools = append(pools, &p)
	}
	return pools, rows.Err()
}

// GetOrCreatePosition returns the position binding an address to a
// pool, creating it if it does not exist yet. ExternalID is empty for
// single-position pools.
func (r *PoolRepository) GetOrCreatePosition(ctx context.Context, poolID, addressID int64, externalID string) (*models.PoolPosition, error) {
	insert := `
		INSERT INTO pool_positions (pool_id, address_id, external_id)
		VALUES ($1, $2, $3)
		ON CONFLICT (pool_id, address_id, external_id) DO NOTHING
		RETURNING id, pool_id, address_id, external_id
	`

	var pos models.PoolPosition
	err := r.db.Pool().QueryRow(ctx, insert, poolID, addressID, externalID).Scan(
		&pos.ID, &pos.PoolID, &pos.AddressID, &pos.ExternalID)
	if err == nil {
		return &pos, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("failed to create position: %w", err)
	}

	query := `
		SELECT id, pool_id, address_id, external_id
		FROM pool_positions
		WHERE pool_id = $1 AND address_id = $2 AND external_id = $3
	`
	err = r.db.Pool().QueryRow(ctx, query, poolID, addressID, externalID).Scan(
		&pos.ID, &pos.PoolID, &pos.AddressID, &pos.ExternalID)
	if err != nil {
		return nil, fmt.Errorf("failed to get position: %w", err)
	}
	return &pos, nil
}

// CreatePositionSnapshot records a position measurement for a snapshot.
// Duplicate inserts for the same (position, asset, snapshot, kind) are
// silently ignored so retried collectors never double-write.
func (r *PoolRepository) CreatePositionSnapshot(ctx context.Context, snap *models.PositionSnapshot) error {
	query := `
		INSERT INTO position_snapshots (position_id, asset_id, snapshot_id, kind, quantity)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (position_id, asset_id, snapshot_id, kind) DO NOTHING
	`

	_, err := r.db.Pool().Exec(ctx, query,
		snap.PositionID,
		snap.AssetID,
		snap.SnapshotID,
		snap.Kind,
		snap.Quantity,
	)
	if err != nil {
		return fmt.Errorf("failed to create position snapshot: %w", err)
	}
	return nil
}

// ListPositionSnapshots retrieves all position measurements of one kind
// for an address at an exact snapshot, with the pool and asset joined
// in. Only rows written at exactly that snapshot are returned.
func (r *PoolRepository) ListPositionSnapshots(ctx context.Context, addressID, snapshotID int64, kind types.SnapshotKind) ([]*models.PositionSnapshot, error) {
	query := `
		SELECT ps.id, ps.position_id, ps.asset_id, ps.snapshot_id, ps.kind, ps.quantity,
			   a.id, a.name, a.symbol, a.image,
			   p.id, p.protocol, p.network_id, p.kind, p.contract_address, p.collateral
		FROM position_snapshots ps
		JOIN pool_positions pp ON pp.id = ps.position_id
		JOIN pools p ON p.id = pp.pool_id
		JOIN assets a ON a.id = ps.asset_id
		WHERE pp.address_id = $1 AND ps.snapshot_id = $2 AND ps.kind = $3
		ORDER BY p.protocol, a.name
	`

	rows, err := r.db.Pool().Query(ctx, query, addressID, snapshotID, kind)
	if err != nil {
		return nil, fmt.Errorf("failed to list position snapshots: %w", err)
	}
	defer rows.Close()

	var snapshots []*models.PositionSnapshot
	for rows.Next() {
		var ps models.PositionSnapshot
		var a models.Asset
		var pool models.Pool
		err := rows.Scan(
			&ps.ID, &ps.PositionID, &ps.AssetID, &ps.SnapshotID, &ps.Kind, &ps.Quantity,
			&a.ID, &a.Name, &a.Symbol, &a.Image,
			&pool.ID, &pool.Protocol, &pool.NetworkID, &pool.Kind, &pool.ContractAddress, &pool.Collateral,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan position snapshot: %w", err)
		}
		ps.Asset = &a
		ps.Pool = &pool
		snapshots = append(snapshots, &ps)
	}
	return snapshots, rows.Err()
}

// CreateWalletAssetSnapshot records a directly-held wallet balance for
// a snapshot. Duplicate inserts for the same (address, asset network,
// snapshot) are silently ignored.
func (r *PoolRepository) CreateWalletAssetSnapshot(ctx context.Context, snap *models.WalletAssetSnapshot) error {
	query := `
		INSERT INTO wallet_asset_snapshots (address_id, asset_network_id, snapshot_id, quantity)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (address_id, asset_network_id, snapshot_id) DO NOTHING
	`

	_, err := r.db.Pool().Exec(ctx, query,
		snap.AddressID,
		snap.AssetNetworkID,
		snap.SnapshotID,
		snap.Quantity,
	)
	if err != nil {
		return fmt.Errorf("failed to create wallet asset snapshot: %w", err)
	}
	return nil
}

// WalletHolding is a wallet balance row joined with its asset identity
type WalletHolding struct {
	Snapshot models.WalletAssetSnapshot
	Asset    models.Asset
	Network  types.ChainID
}

// ListWalletAssetSnapshots retrieves all wallet balances for an address
// at an exact snapshot
func (r *PoolRepository) ListWalletAssetSnapshots(ctx context.Context, addressID, snapshotID int64) ([]*WalletHolding, error) {
	query := `
		SELECT ws.id, ws.address_id, ws.asset_network_id, ws.snapshot_id, ws.quantity,
			   a.id, a.name, a.symbol, a.image,
			   n.name
		FROM wallet_asset_snapshots ws
		JOIN asset_networks an ON an.id = ws.asset_network_id
		JOIN assets a ON a.id = an.asset_id
		JOIN networks n ON n.id = an.network_id
		WHERE ws.address_id = $1 AND ws.snapshot_id = $2
		ORDER BY n.name, a.name
	`

	rows, err := r.db.Pool().Query(ctx, query, addressID, snapshotID)
	if err != nil {
		return nil, fmt.Errorf("failed to list wallet asset snapshots: %w", err)
	}
	defer rows.Close()

	var holdings []*WalletHolding
	for rows.Next() {
		var h WalletHolding
		err := rows.Scan(
			&h.Snapshot.ID, &h.Snapshot.AddressID, &h.Snapshot.AssetNetworkID, &h.Snapshot.SnapshotID, &h.Snapshot.Quantity,
			&h.Asset.ID, &h.Asset.Name, &h.Asset.Symbol, &h.Asset.Image,
			&h.Network,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan wallet asset snapshot: %w", err)
		}
		holdings = append(holdings, &h)
	}
	return holdings, rows.Err()
}
