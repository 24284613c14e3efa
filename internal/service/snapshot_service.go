package service

import (
	"context"
	"fmt"
	"time"

	"github.com/crypto-tracker/internal/models"
)

// SnapshotStore is the snapshot persistence surface the services need
type SnapshotStore interface {
	Create(ctx context.Context) (*models.Snapshot, error)
	Get(ctx context.Context, id int64) (*models.Snapshot, error)
	Latest(ctx context.Context) (*models.Snapshot, error)
	LatestForDate(ctx context.Context, date time.Time) (*models.Snapshot, error)
	List(ctx context.Context, from, to time.Time) ([]*models.Snapshot, error)
}

// SnapshotService manages the append-only snapshot axis. Every update
// cycle pins one snapshot; every read resolves one.
type SnapshotService struct {
	snapshots SnapshotStore
}

// NewSnapshotService creates a new snapshot service
func NewSnapshotService(snapshots SnapshotStore) *SnapshotService {
	return &SnapshotService{snapshots: snapshots}
}

// CreateSnapshot opens a new snapshot marker at the current time
func (s *SnapshotService) CreateSnapshot(ctx context.Context) (*models.Snapshot, error) {
	snap, err := s.snapshots.Create(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create snapshot: %w", err)
	}
	return snap, nil
}

// LatestSnapshot returns the most recent snapshot, nil when none exists
func (s *SnapshotService) LatestSnapshot(ctx context.Context) (*models.Snapshot, error) {
	return s.snapshots.Latest(ctx)
}

// SnapshotForDate returns the most recent snapshot taken on or before
// the given calendar day, nil when none exists
func (s *SnapshotService) SnapshotForDate(ctx context.Context, date time.Time) (*models.Snapshot, error) {
	return s.snapshots.LatestForDate(ctx, date)
}

// SnapshotRange returns all snapshots inside [from, to]
func (s *SnapshotService) SnapshotRange(ctx context.Context, from, to time.Time) ([]*models.Snapshot, error) {
	return s.snapshots.List(ctx, from, to)
}
