package models

import (
	"github.com/shopspring/decimal"

	"github.com/crypto-tracker/internal/types"
)

// Network represents a blockchain network assets and pools live on
type Network struct {
	ID     int64         `json:"id" db:"id"`
	Name   types.ChainID `json:"name" db:"name"`
	RPCURL string        `json:"rpcUrl" db:"rpc_url"`
	Image  string        `json:"image,omitempty" db:"image"`
}

// Asset is a fungible token identity. The same asset may exist on
// multiple networks with different contract addresses; the per-chain
// binding lives in AssetNetwork.
type Asset struct {
	ID     int64  `json:"id" db:"id"`
	Name   string `json:"name" db:"name"` // price API identifier, e.g. "ethereum"
	Symbol string `json:"symbol" db:"symbol"`
	Image  string `json:"image,omitempty" db:"image"`
}

// AssetNetwork binds an asset to a network and an on-chain contract
// address. A nil token address marks the chain's native coin.
type AssetNetwork struct {
	ID           int64   `json:"id" db:"id"`
	AssetID      int64   `json:"assetId" db:"asset_id"`
	NetworkID    int64   `json:"networkId" db:"network_id"`
	TokenAddress *string `json:"tokenAddress,omitempty" db:"token_address"`

	// Joined fields, populated by list queries
	Asset   *Asset   `json:"asset,omitempty" db:"-"`
	Network *Network `json:"network,omitempty" db:"-"`
}

// IsNative reports whether this binding is the network's native coin.
func (an *AssetNetwork) IsNative() bool {
	return an.TokenAddress == nil || *an.TokenAddress == ""
}

// Price is the fiat price of an asset pinned to a specific snapshot.
// At most one row exists per (asset, snapshot).
type Price struct {
	ID         int64           `json:"id" db:"id"`
	AssetID    int64           `json:"assetId" db:"asset_id"`
	SnapshotID int64           `json:"snapshotId" db:"snapshot_id"`
	Price      decimal.Decimal `json:"price" db:"price"`
}
