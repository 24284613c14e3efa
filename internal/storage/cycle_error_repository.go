package storage

import (
	"context"
	"fmt"

	"github.com/crypto-tracker/internal/models"
)

// CycleErrorRepository handles update cycle failure records
type CycleErrorRepository struct {
	db *PostgresDB
}

// NewCycleErrorRepository creates a new cycle error repository
func NewCycleErrorRepository(db *PostgresDB) *CycleErrorRepository {
	return &CycleErrorRepository{db: db}
}

// Create records a collection failure for a snapshot
func (r *CycleErrorRepository) Create(ctx context.Context, cycleErr *models.CycleError) error {
	query := `
		INSERT INTO cycle_errors (snapshot_id, address_id, category, protocol, asset, message, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, now())
		RETURNING id, created_at
	`

	err := r.db.Pool().QueryRow(ctx, query,
		cycleErr.SnapshotID,
		cycleErr.AddressID,
		cycleErr.Category,
		cycleErr.Protocol,
		cycleErr.Asset,
		cycleErr.Message,
	).Scan(&cycleErr.ID, &cycleErr.CreatedAt)

	if err != nil {
		return fmt.Errorf("failed to create cycle error: %w", err)
	}
	return nil
}

// ListForSnapshot retrieves all failures recorded during one update
// cycle
func (r *CycleErrorRepository) ListForSnapshot(ctx context.Context, snapshotID int64) ([]*models.CycleError, error) {
	query := `
		SELECT id, snapshot_id, address_id, category, protocol, asset, message, created_at
		FROM cycle_errors
		WHERE snapshot_id = $1
		ORDER BY id
	`

	rows, err := r.db.Pool().Query(ctx, query, snapshotID)
	if err != nil {
		return nil, fmt.Errorf("failed to list cycle errors: %w", err)
	}
	defer rows.Close()

	var cycleErrors []*models.CycleError
	for rows.Next() {
		var ce models.CycleError
		err := rows.Scan(
			&ce.ID,
			&ce.SnapshotID,
			&ce.AddressID,
			&ce.Category,
			&ce.Protocol,
			&ce.Asset,
			&ce.Message,
			&ce.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan cycle error: %w", err)
		}
		cycleErrors = append(cycleErrors, &ce)
	}
	return cycleErrors, rows.Err()
}

// CountForSnapshot returns the number of failures recorded during one
// update cycle
func (r *CycleErrorRepository) CountForSnapshot(ctx context.Context, snapshotID int64) (int, error) {
	var count int
	query := `SELECT count(*) FROM cycle_errors WHERE snapshot_id = $1`
	if err := r.db.Pool().QueryRow(ctx, query, snapshotID).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count cycle errors: %w", err)
	}
	return count, nil
}
