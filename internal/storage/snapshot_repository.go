package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/crypto-tracker/internal/models"
)

// SnapshotRepository handles snapshot marker persistence. Snapshots are
// append-only: they are created once per update cycle and never updated
// or deleted afterwards.
type SnapshotRepository struct {
	db *PostgresDB
}

// NewSnapshotRepository creates a new snapshot repository
func NewSnapshotRepository(db *PostgresDB) *SnapshotRepository {
	return &SnapshotRepository{db: db}
}

// Create creates a new snapshot marker and returns it with the
// database-assigned id and timestamp.
func (r *SnapshotRepository) Create(ctx context.Context) (*models.Snapshot, error) {
	query := `
		INSERT INTO snapshots (created_at)
		VALUES (now())
		RETURNING id, created_at
	`

	var snap models.Snapshot
	err := r.db.Pool().QueryRow(ctx, query).Scan(&snap.ID, &snap.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to create snapshot: %w", err)
	}
	return &snap, nil
}

// Get retrieves a snapshot by id
func (r *SnapshotRepository) Get(ctx context.Context, id int64) (*models.Snapshot, error) {
	query := `SELECT id, created_at FROM snapshots WHERE id = $1`

	var snap models.Snapshot
	err := r.db.Pool().QueryRow(ctx, query, id).Scan(&snap.ID, &snap.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil // Not found, return nil without error
		}
		return nil, fmt.Errorf("failed to get snapshot: %w", err)
	}
	return &snap, nil
}

// Latest retrieves the most recent snapshot, or nil if none exists yet
func (r *SnapshotRepository) Latest(ctx context.Context) (*models.Snapshot, error) {
	query := `SELECT id, created_at FROM snapshots ORDER BY created_at DESC, id DESC LIMIT 1`

	var snap models.Snapshot
	err := r.db.Pool().QueryRow(ctx, query).Scan(&snap.ID, &snap.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get latest snapshot: %w", err)
	}
	return &snap, nil
}

// LatestForDate retrieves the most recent snapshot taken on or before
// the end of the given calendar day (UTC), or nil if none exists.
func (r *SnapshotRepository) LatestForDate(ctx context.Context, date time.Time) (*models.Snapshot, error) {
	endOfDay := time.Date(date.Year(), date.Month(), date.Day(), 0, 0, 0, 0, time.UTC).AddDate(0, 0, 1)

	query := `
		SELECT id, created_at
		FROM snapshots
		WHERE created_at < $1
		ORDER BY created_at DESC, id DESC
		LIMIT 1
	`

	var snap models.Snapshot
	err := r.db.Pool().QueryRow(ctx, query, endOfDay).Scan(&snap.ID, &snap.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get snapshot for date: %w", err)
	}
	return &snap, nil
}

// List retrieves snapshots in a time range, oldest first
func (r *SnapshotRepository) List(ctx context.Context, from, to time.Time) ([]*models.Snapshot, error) {
	query := `
		SELECT id, created_at
		FROM snapshots
		WHERE created_at >= $1 AND created_at <= $2
		ORDER BY created_at ASC
	`

	rows, err := r.db.Pool().Query(ctx, query, from, to)
	if err != nil {
		return nil, fmt.Errorf("failed to list snapshots: %w", err)
	}
	defer rows.Close()

	var snapshots []*models.Snapshot
	for rows.Next() {
		var snap models.Snapshot
		if err := rows.Scan(&snap.ID, &snap.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan snapshot: %w", err)
		}
		snapshots = append(snapshots, &snap)
	}
	return snapshots, rows.Err()
}
