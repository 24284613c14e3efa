package models

import (
	"github.com/shopspring/decimal"

	"github.com/crypto-tracker/internal/types"
)

// Pool is a protocol-specific yield, lending or liquidity venue on one
// network. Multi-collateral protocols use the Collateral discriminator
// to tell sibling pools apart (e.g. the Liquity v2 WETH/wstETH/rETH
// stability pools).
type Pool struct {
	ID              int64          `json:"id" db:"id"`
	Protocol        string         `json:"protocol" db:"protocol"`
	NetworkID       int64          `json:"networkId" db:"network_id"`
	Kind            types.PoolKind `json:"kind" db:"kind"`
	ContractAddress *string        `json:"contractAddress,omitempty" db:"contract_address"`
	Collateral      *string        `json:"collateral,omitempty" db:"collateral"`

	Network *Network `json:"network,omitempty" db:"-"`
}

// PoolPosition is the relationship between one tracked address and one
// pool. ExternalID disambiguates concurrent positions in the same pool
// (AMM positions); it is empty for single-position pools. Unique per
// (pool, address, external id).
type PoolPosition struct {
	ID         int64  `json:"id" db:"id"`
	PoolID     int64  `json:"poolId" db:"pool_id"`
	AddressID  int64  `json:"addressId" db:"address_id"`
	ExternalID string `json:"externalId,omitempty" db:"external_id"`

	Pool *Pool `json:"pool,omitempty" db:"-"`
}

// PositionSnapshot is the quantity of an asset held or earned by a pool
// position as of a snapshot. Kind discriminates principal balances from
// rewards. Append-only: rows are created once per cycle and never
// mutated.
type PositionSnapshot struct {
	ID         int64              `json:"id" db:"id"`
	PositionID int64              `json:"positionId" db:"position_id"`
	AssetID    int64              `json:"assetId" db:"asset_id"`
	SnapshotID int64              `json:"snapshotId" db:"snapshot_id"`
	Kind       types.SnapshotKind `json:"kind" db:"kind"`
	Quantity   decimal.Decimal    `json:"quantity" db:"quantity"`

	Asset *Asset `json:"asset,omitempty" db:"-"`
	Pool  *Pool  `json:"pool,omitempty" db:"-"`
}
