package models

import "github.com/shopspring/decimal"

// Trove is a collateralized borrowing position identified by a
// subgraph-assigned external id, bound to one address, one borrowing
// pool and one collateral asset.
type Trove struct {
	ID                int64  `json:"id" db:"id"`
	ExternalID        string `json:"externalId" db:"external_id"`
	AddressID         int64  `json:"addressId" db:"address_id"`
	PoolID            int64  `json:"poolId" db:"pool_id"`
	CollateralAssetID int64  `json:"collateralAssetId" db:"collateral_asset_id"`

	CollateralAsset *Asset `json:"collateralAsset,omitempty" db:"-"`
}

// TroveSnapshot is the collateral and debt state of a trove as of a
// snapshot. NetValue is the fiat collateral minus fiat debt computed at
// write time; valuation reads recompute it from the stored quantities
// so it stays correct if price resolution changes.
type TroveSnapshot struct {
	ID           int64           `json:"id" db:"id"`
	TroveID      int64           `json:"troveId" db:"trove_id"`
	SnapshotID   int64           `json:"snapshotId" db:"snapshot_id"`
	Collateral   decimal.Decimal `json:"collateral" db:"collateral"`
	Debt         decimal.Decimal `json:"debt" db:"debt"`
	NetValue     decimal.Decimal `json:"netValue" db:"net_value"`
	InterestRate decimal.Decimal `json:"interestRate" db:"interest_rate"`

	Trove *Trove `json:"trove,omitempty" db:"-"`
}
