package models

import (
	"github.com/shopspring/decimal"

	"github.com/crypto-tracker/internal/types"
)

// Account is a user-named grouping of tracked addresses
type Account struct {
	ID     int64  `json:"id" db:"id"`
	UserID string `json:"userId" db:"user_id"`
	Name   string `json:"name" db:"name"`
}

// TrackedAddress is a user-supplied blockchain address under an account.
// The public address is EIP-55 checksummed and globally unique across
// all users.
type TrackedAddress struct {
	ID            int64            `json:"id" db:"id"`
	UserID        string           `json:"userId" db:"user_id"`
	PublicAddress string           `json:"publicAddress" db:"public_address"`
	AccountID     int64            `json:"accountId" db:"account_id"`
	WalletType    types.WalletType `json:"walletType" db:"wallet_type"`
	Name          string           `json:"name,omitempty" db:"name"`
}

// WalletAssetSnapshot is the quantity of an asset held directly in a
// wallet (outside any protocol) as of a snapshot. Append-only.
type WalletAssetSnapshot struct {
	ID             int64           `json:"id" db:"id"`
	AddressID      int64           `json:"addressId" db:"address_id"`
	AssetNetworkID int64           `json:"assetNetworkId" db:"asset_network_id"`
	SnapshotID     int64           `json:"snapshotId" db:"snapshot_id"`
	Quantity       decimal.Decimal `json:"quantity" db:"quantity"`
}
