package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/crypto-tracker/internal/models"
)

// ValidatorRepository handles beacon chain validator persistence
type ValidatorRepository struct {
	db *PostgresDB
}

// NewValidatorRepository creates a new validator repository
func NewValidatorRepository(db *PostgresDB) *ValidatorRepository {
	return &ValidatorRepository{db: db}
}

// GetOrCreate returns the validator with the given index, creating it
// if it does not exist yet
func (r *ValidatorRepository) GetOrCreate(ctx context.Context, validator *models.Validator) (*models.Validator, error) {
	insert := `
		INSERT INTO validators (address_id, validator_index, public_key, activation_date)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (validator_index) DO NOTHING
		RETURNING id, address_id, validator_index, public_key, activation_date
	`

	var v models.Validator
	err := r.db.Pool().QueryRow(ctx, insert,
		validator.AddressID, validator.Index, validator.PublicKey, validator.ActivationDate,
	).Scan(&v.ID, &v.AddressID, &v.Index, &v.PublicKey, &v.ActivationDate)
	if err == nil {
		return &v, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("failed to create validator: %w", err)
	}

	query := `
		SELECT id, address_id, validator_index, public_key, activation_date
		FROM validators
		WHERE validator_index = $1
	`
	err = r.db.Pool().QueryRow(ctx, query, validator.Index).Scan(
		&v.ID, &v.AddressID, &v.Index, &v.PublicKey, &v.ActivationDate)
	if err != nil {
		return nil, fmt.Errorf("failed to get validator: %w", err)
	}
	return &v, nil
}

// ListByAddress retrieves all validators whose withdrawal credentials
// point at the tracked address
func (r *ValidatorRepository) ListByAddress(ctx context.Context, addressID int64) ([]*models.Validator, error) {
	query := `
		SELECT id, address_id, validator_index, public_key, activation_date
		FROM validators
		WHERE address_id = $1
		ORDER BY validator_index
	`

	rows, err := r.db.Pool().Query(ctx, query, addressID)
	if err != nil {
		return nil, fmt.Errorf("failed to list validators: %w", err)
	}
	defer rows.Close()

	var validators []*models.Validator
	for rows.Next() {
		var v models.Validator
		if err := rows.Scan(&v.ID, &v.AddressID, &v.Index, &v.PublicKey, &v.ActivationDate); err != nil {
			return nil, fmt.Errorf("failed to scan validator: %w", err)
		}
		validators = append(validators, &v)
	}
	return validators, rows.Err()
}

// CreateSnapshot records the balance and status of a validator for a
// snapshot. Duplicate inserts for the same (validator, snapshot) are
// silently ignored.
func (r *ValidatorRepository) CreateSnapshot(ctx context.Context, snap *models.ValidatorSnapshot) error {
	query := `
		INSERT INTO validator_snapshots (validator_id, snapshot_id, balance, status, rewards)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (validator_id, snapshot_id) DO NOTHING
	`

	_, err := r.db.Pool().Exec(ctx, query,
		snap.ValidatorID,
		snap.SnapshotID,
		snap.Balance,
		snap.Status,
		snap.Rewards,
	)
	if err != nil {
		return fmt.Errorf("failed to create validator snapshot: %w", err)
	}
	return nil
}

// ListSnapshots retrieves all validator states for an address at an
// exact snapshot
func (r *ValidatorRepository) ListSnapshots(ctx context.Context, addressID, snapshotID int64) ([]*models.ValidatorSnapshot, error) {
	query := `
		SELECT vs.id, vs.validator_id, vs.snapshot_id, vs.balance, vs.status, vs.rewards
		FROM validator_snapshots vs
		JOIN validators v ON v.id = vs.validator_id
		WHERE v.address_id = $1 AND vs.snapshot_id = $2
		ORDER BY v.validator_index
	`

	rows, err := r.db.Pool().Query(ctx, query, addressID, snapshotID)
	if err != nil {
		return nil, fmt.Errorf("failed to list validator snapshots: %w", err)
	}
	defer rows.Close()

	var snapshots []*models.ValidatorSnapshot
	for rows.Next() {
		var vs models.ValidatorSnapshot
		if err := rows.Scan(&vs.ID, &vs.ValidatorID, &vs.SnapshotID, &vs.Balance, &vs.Status, &vs.Rewards); err != nil {
			return nil, fmt.Errorf("failed to scan validator snapshot: %w", err)
		}
		snapshots = append(snapshots, &vs)
	}
	return snapshots, rows.Err()
}
