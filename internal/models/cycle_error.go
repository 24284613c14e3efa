package models

import "time"

// CycleError records a single collection failure inside an update
// cycle: which snapshot it belongs to, which address and collector were
// affected, and why. Failures become rows and omissions, never crashed
// cycles.
type CycleError struct {
	ID         int64     `json:"id" db:"id"`
	SnapshotID int64     `json:"snapshotId" db:"snapshot_id"`
	AddressID  *int64    `json:"addressId,omitempty" db:"address_id"`
	Category   string    `json:"category" db:"category"`
	Protocol   *string   `json:"protocol,omitempty" db:"protocol"`
	Asset      *string   `json:"asset,omitempty" db:"asset"`
	Message    string    `json:"message" db:"message"`
	CreatedAt  time.Time `json:"createdAt" db:"created_at"`
}
