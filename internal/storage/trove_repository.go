package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/crypto-tracker/internal/models"
)

// TroveRepository handles trove and trove snapshot persistence
type TroveRepository struct {
	db *PostgresDB
}

// NewTroveRepository creates a new trove repository
func NewTroveRepository(db *PostgresDB) *TroveRepository {
	return &TroveRepository{db: db}
}

// GetOrCreate returns the trove with the given external id, creating it
// if it does not exist yet. External ids are assigned by the protocol
// subgraph and globally unique.
func (r *TroveRepository) GetOrCreate(ctx context.Context, trove *models.Trove) (*models.Trove, error) {
	insert := `
		INSERT INTO troves (external_id, address_id, pool_id, collateral_asset_id)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (external_id) DO NOTHING
		RETURNING id, external_id, address_id, pool_id, collateral_asset_id
	`

	var t models.Trove
	err := r.db.Pool().QueryRow(ctx, insert,
		trove.ExternalID, trove.AddressID, trove.PoolID, trove.CollateralAssetID,
	).Scan(&t.ID, &t.ExternalID, &t.AddressID, &t.PoolID, &t.CollateralAssetID)
	if err == nil {
		return &t, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("failed to create trove: %w", err)
	}

	query := `
		SELECT id, external_id, address_id, pool_id, collateral_asset_id
		FROM troves
		WHERE external_id = $1
	`
	err = r.db.Pool().QueryRow(ctx, query, trove.ExternalID).Scan(
		&t.ID, &t.ExternalID, &t.AddressID, &t.PoolID, &t.CollateralAssetID)
	if err != nil {
		return nil, fmt.Errorf("failed to get trove: %w", err)
	}
	return &t, nil
}

// ListByAddress retrieves all troves bound to a tracked address
func (r *TroveRepository) ListByAddress(ctx context.Context, addressID int64) ([]*models.Trove, error) {
	query := `
		SELECT id, external_id, address_id, pool_id, collateral_asset_id
		FROM troves
		WHERE address_id = $1
		ORDER BY id
	`

	rows, err := r.db.Pool().Query(ctx, query, addressID)
	if err != nil {
		return nil, fmt.Errorf("failed to list troves: %w", err)
	}
	defer rows.Close()

	var troves []*models.Trove
	for rows.Next() {
		var t models.Trove
		if err := rows.Scan(&t.ID, &t.ExternalID, &t.AddressID, &t.PoolID, &t.CollateralAssetID); err != nil {
			return nil, fmt.Errorf("failed to scan trove: %w", err)
		}
		troves = append(troves, &t)
	}
	return troves, rows.Err()
}

// CreateSnapshot records the collateral and debt state of a trove for a
// snapshot. Duplicate inserts for the same (trove, snapshot) are
// silently ignored.
func (r *TroveRepository) CreateSnapshot(ctx context.Context, snap *models.TroveSnapshot) error {
	query := `
		INSERT INTO trove_snapshots (trove_id, snapshot_id, collateral, debt, net_value, interest_rate)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (trove_id, snapshot_id) DO NOTHING
	`

	_, err := r.db.Pool().Exec(ctx, query,
		snap.TroveID,
		snap.SnapshotID,
		snap.Collateral,
		snap.Debt,
		snap.NetValue,
		snap.InterestRate,
	)
	if err != nil {
		return fmt.Errorf("failed to create trove snapshot: %w", err)
	}
	return nil
}

// ListSnapshots retrieves all trove states for an address at an exact
// snapshot, with the trove and its collateral asset joined in
func (r *TroveRepository) ListSnapshots(ctx context.Context, addressID, snapshotID int64) ([]*models.TroveSnapshot, error) {
	query := `
		SELECT ts.id, ts.trove_id, ts.snapshot_id, ts.collateral, ts.debt, ts.net_value, ts.interest_rate,
			   t.id, t.external_id, t.address_id, t.pool_id, t.collateral_asset_id,
			   a.id, a.name, a.symbol, a.image
		FROM trove_snapshots ts
		JOIN troves t ON t.id = ts.trove_id
		JOIN assets a ON a.id = t.collateral_asset_id
		WHERE t.address_id = $1 AND ts.snapshot_id = $2
		ORDER BY t.id
	`

	rows, err := r.db.Pool().Query(ctx, query, addressID, snapshotID)
	if err != nil {
		return nil, fmt.Errorf("failed to list trove snapshots: %w", err)
	}
	defer rows.Close()

	var snapshots []*models.TroveSnapshot
	for rows.Next() {
		var ts models.TroveSnapshot
		var t models.Trove
		var a models.Asset
		err := rows.Scan(
			&ts.ID, &ts.TroveID, &ts.SnapshotID, &ts.Collateral, &ts.Debt, &ts.NetValue, &ts.InterestRate,
			&t.ID, &t.ExternalID, &t.AddressID, &t.PoolID, &t.CollateralAssetID,
			&a.ID, &a.Name, &a.Symbol, &a.Image,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan trove snapshot: %w", err)
		}
		t.CollateralAsset = &a
		ts.Trove = &t
		snapshots = append(snapshots, &ts)
	}
	return snapshots, rows.Err()
}
