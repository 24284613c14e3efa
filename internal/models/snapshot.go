// Package models provides data models for the crypto tracker system.
package models

import "time"

// Snapshot is an immutable timestamp marker. Every measurement written
// during one update cycle references the same snapshot, making the
// stored data an append-only time series. Snapshots are never updated
// or deleted by normal operation.
type Snapshot struct {
	ID        int64     `json:"id" db:"id"`
	CreatedAt time.Time `json:"createdAt" db:"created_at"`
}
