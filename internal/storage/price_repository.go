package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"github.com/crypto-tracker/internal/models"
)

// PriceRepository handles stored asset prices. One price row exists per
// (asset, snapshot) at most; inserts against an existing pair are
// no-ops so retried cycles never duplicate or overwrite prices.
type PriceRepository struct {
	db *PostgresDB
}

// NewPriceRepository creates a new price repository
func NewPriceRepository(db *PostgresDB) *PriceRepository {
	return &PriceRepository{db: db}
}

// Create persists a price pinned to a snapshot. Duplicate inserts for
// the same (asset, snapshot) pair are silently ignored.
func (r *PriceRepository) Create(ctx context.Context, price *models.Price) error {
	query := `
		INSERT INTO prices (asset_id, snapshot_id, price)
		VALUES ($1, $2, $3)
		ON CONFLICT (asset_id, snapshot_id) DO NOTHING
	`

	_, err := r.db.Pool().Exec(ctx, query, price.AssetID, price.SnapshotID, price.Price)
	if err != nil {
		return fmt.Errorf("failed to create price: %w", err)
	}
	return nil
}

// Get retrieves the stored price of an asset at a snapshot, or nil if
// no price was recorded for that pair.
func (r *PriceRepository) Get(ctx context.Context, assetID, snapshotID int64) (*models.Price, error) {
	query := `
		SELECT id, asset_id, snapshot_id, price
		FROM prices
		WHERE asset_id = $1 AND snapshot_id = $2
	`

	var p models.Price
	err := r.db.Pool().QueryRow(ctx, query, assetID, snapshotID).Scan(&p.ID, &p.AssetID, &p.SnapshotID, &p.Price)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil // Not found, return nil without error
		}
		return nil, fmt.Errorf("failed to get price: %w", err)
	}
	return &p, nil
}

// ListForSnapshot retrieves all prices recorded at a snapshot, keyed by
// asset id
func (r *PriceRepository) ListForSnapshot(ctx context.Context, snapshotID int64) (map[int64]decimal.Decimal, error) {
	query := `SELECT asset_id, price FROM prices WHERE snapshot_id = $1`

	rows, err := r.db.Pool().Query(ctx, query, snapshotID)
	if err != nil {
		return nil, fmt.Errorf("failed to list prices: %w", err)
	}
	defer rows.Close()

	prices := make(map[int64]decimal.Decimal)
	for rows.Next() {
		var assetID int64
		var price decimal.Decimal
		if err := rows.Scan(&assetID, &price); err != nil {
			return nil, fmt.Errorf("failed to scan price: %w", err)
		}
		prices[assetID] = price
	}
	return prices, rows.Err()
}

// History retrieves the stored price series of an asset across
// snapshots, oldest first
func (r *PriceRepository) History(ctx context.Context, assetID int64, limit int) ([]*models.Price, error) {
	query := `
		SELECT p.id, p.asset_id, p.snapshot_id, p.price
		FROM prices p
		JOIN snapshots s ON s.id = p.snapshot_id
		WHERE p.asset_id = $1
		ORDER BY s.created_at DESC
		LIMIT $2
	`

	rows, err := r.db.Pool().Query(ctx, query, assetID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query price history: %w", err)
	}
	defer rows.Close()

	var prices []*models.Price
	for rows.Next() {
		var p models.Price
		if err := rows.Scan(&p.ID, &p.AssetID, &p.SnapshotID, &p.Price); err != nil {
			return nil, fmt.Errorf("failed to scan price: %w", err)
		}
		prices = append(prices, &p)
	}
	return prices, rows.Err()
}
