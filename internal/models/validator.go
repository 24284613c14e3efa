package models

import "github.com/shopspring/decimal"

// Validator is a beacon chain validator whose withdrawal credentials
// point at a tracked address
type Validator struct {
	ID             int64  `json:"id" db:"id"`
	AddressID      int64  `json:"addressId" db:"address_id"`
	Index          int64  `json:"index" db:"validator_index"`
	PublicKey      string `json:"publicKey" db:"public_key"`
	ActivationDate string `json:"activationDate" db:"activation_date"`
}

// ValidatorSnapshot is the balance, status and accumulated rewards of a
// validator as of a snapshot. Append-only.
type ValidatorSnapshot struct {
	ID          int64           `json:"id" db:"id"`
	ValidatorID int64           `json:"validatorId" db:"validator_id"`
	SnapshotID  int64           `json:"snapshotId" db:"snapshot_id"`
	Balance     decimal.Decimal `json:"balance" db:"balance"`
	Status      string          `json:"status" db:"status"`
	Rewards     decimal.Decimal `json:"rewards" db:"rewards"`
}
