package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/jackc/pgx/v5"

	"github.com/crypto-tracker/internal/models"
	"github.com/crypto-tracker/internal/types"
)

// AddressRepository handles account and tracked address persistence
type AddressRepository struct {
	db *PostgresDB
}

// NewAddressRepository creates a new address repository
func NewAddressRepository(db *PostgresDB) *AddressRepository {
	return &AddressRepository{db: db}
}

// NormalizeAddress validates an address and returns its EIP-55
// checksummed form. Addresses are stored checksummed so the same
// address typed with different casing maps to one row.
func NormalizeAddress(address string) (string, error) {
	if !common.IsHexAddress(address) {
		return "", &types.ServiceError{
			Code:    "INVALID_ADDRESS_FORMAT",
			Message: fmt.Sprintf("invalid address format: %s (must be 0x followed by 40 hexadecimal characters)", address),
			Details: map[string]any{
				"address": address,
				"format":  "0x[a-fA-F0-9]{40}",
			},
		}
	}
	return common.HexToAddress(address).Hex(), nil
}

// CreateAccount creates a new account grouping for a user
func (r *AddressRepository) CreateAccount(ctx context.Context, account *models.Account) error {
	query := `
		INSERT INTO accounts (user_id, name)
		VALUES ($1, $2)
		RETURNING id
	`

	err := r.db.Pool().QueryRow(ctx, query, account.UserID, account.Name).Scan(&account.ID)
	if err != nil {
		return fmt.Errorf("failed to create account: %w", err)
	}
	return nil
}

// GetAccount retrieves an account by id
func (r *AddressRepository) GetAccount(ctx context.Context, id int64) (*models.Account, error) {
	query := `SELECT id, user_id, name FROM accounts WHERE id = $1`

	var acc models.Account
	err := r.db.Pool().QueryRow(ctx, query, id).Scan(&acc.ID, &acc.UserID, &acc.Name)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get account: %w", err)
	}
	return &acc, nil
}

// ListAccounts retrieves all accounts for a user
func (r *AddressRepository) ListAccounts(ctx context.Context, userID string) ([]*models.Account, error) {
	query := `SELECT id, user_id, name FROM accounts WHERE user_id = $1 ORDER BY name`

	rows, err := r.db.Pool().Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list accounts: %w", err)
	}
	defer rows.Close()

	var accounts []*models.Account
	for rows.Next() {
		var acc models.Account
		if err := rows.Scan(&acc.ID, &acc.UserID, &acc.Name); err != nil {
			return nil, fmt.Errorf("failed to scan account: %w", err)
		}
		accounts = append(accounts, &acc)
	}
	return accounts, rows.Err()
}

// Create creates a new tracked address. The public address is unique
// across all users.
func (r *AddressRepository) Create(ctx context.Context, addr *models.TrackedAddress) error {
	normalized, err := NormalizeAddress(addr.PublicAddress)
	if err != nil {
		return err
	}
	addr.PublicAddress = normalized

	if addr.WalletType == "" {
		addr.WalletType = types.WalletHot
	}

	query := `
		INSERT INTO tracked_addresses (user_id, public_address, account_id, wallet_type, name)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id
	`

	err = r.db.Pool().QueryRow(ctx, query,
		addr.UserID,
		addr.PublicAddress,
		addr.AccountID,
		addr.WalletType,
		addr.Name,
	).Scan(&addr.ID)

	if err != nil {
		return fmt.Errorf("failed to create tracked address: %w", err)
	}
	return nil
}

// Get retrieves a tracked address by public address
func (r *AddressRepository) Get(ctx context.Context, publicAddress string) (*models.TrackedAddress, error) {
	normalized, err := NormalizeAddress(publicAddress)
	if err != nil {
		return nil, err
	}

	query := `
		SELECT id, user_id, public_address, account_id, wallet_type, name
		FROM tracked_addresses
		WHERE public_address = $1
	`

	var addr models.TrackedAddress
	err = r.db.Pool().QueryRow(ctx, query, normalized).Scan(
		&addr.ID,
		&addr.UserID,
		&addr.PublicAddress,
		&addr.AccountID,
		&addr.WalletType,
		&addr.Name,
	)

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil // Not found, return nil without error
		}
		return nil, fmt.Errorf("failed to get tracked address: %w", err)
	}
	return &addr, nil
}

// GetByID retrieves a tracked address by id
func (r *AddressRepository) GetByID(ctx context.Context, id int64) (*models.TrackedAddress, error) {
	query := `
		SELECT id, user_id, public_address, account_id, wallet_type, name
		FROM tracked_addresses
		WHERE id = $1
	`

	var addr models.TrackedAddress
	err := r.db.Pool().QueryRow(ctx, query, id).Scan(
		&addr.ID,
		&addr.UserID,
		&addr.PublicAddress,
		&addr.AccountID,
		&addr.WalletType,
		&addr.Name,
	)

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get tracked address: %w", err)
	}
	return &addr, nil
}

// ListByUser retrieves all tracked addresses for a user
func (r *AddressRepository) ListByUser(ctx context.Context, userID string) ([]*models.TrackedAddress, error) {
	query := `
		SELECT id, user_id, public_address, account_id, wallet_type, name
		FROM tracked_addresses
		WHERE user_id = $1
		ORDER BY id
	`
	return r.list(ctx, query, userID)
}

// ListAll retrieves every tracked address (for the update worker)
func (r *AddressRepository) ListAll(ctx context.Context) ([]*models.TrackedAddress, error) {
	query := `
		SELECT id, user_id, public_address, account_id, wallet_type, name
		FROM tracked_addresses
		ORDER BY id
	`
	return r.list(ctx, query)
}

func (r *AddressRepository) list(ctx context.Context, query string, args ...any) ([]*models.TrackedAddress, error) {
	rows, err := r.db.Pool().Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list tracked addresses: %w", err)
	}
	defer rows.Close()

	var addresses []*models.TrackedAddress
	for rows.Next() {
		var addr models.TrackedAddress
		err := rows.Scan(
			&addr.ID,
			&addr.UserID,
			&addr.PublicAddress,
			&addr.AccountID,
			&addr.WalletType,
			&addr.Name,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan tracked address: %w", err)
		}
		addresses = append(addresses, &addr)
	}
	return addresses, rows.Err()
}

// Delete removes a tracked address. Historical snapshots referencing it
// are kept; only the tracking row goes away.
func (r *AddressRepository) Delete(ctx context.Context, publicAddress string) error {
	normalized, err := NormalizeAddress(publicAddress)
	if err != nil {
		return err
	}

	query := `DELETE FROM tracked_addresses WHERE public_address = $1`
	result, err := r.db.Pool().Exec(ctx, query, normalized)
	if err != nil {
		return fmt.Errorf("failed to delete tracked address: %w", err)
	}
	if result.RowsAffected() == 0 {
		return fmt.Errorf("tracked address not found: %s", normalized)
	}
	return nil
}
