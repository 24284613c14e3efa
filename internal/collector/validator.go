package collector

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/crypto-tracker/internal/adapter"
	"github.com/crypto-tracker/internal/models"
	"github.com/crypto-tracker/internal/storage"
	"github.com/crypto-tracker/internal/types"
)

// ValidatorCollector discovers beacon chain validators whose withdrawal
// credentials point at the tracked address and records their balance,
// status and accumulated rewards.
type ValidatorCollector struct {
	beacon     *adapter.BeaconClient
	validators *storage.ValidatorRepository
}

// NewValidatorCollector creates a new beacon validator collector
func NewValidatorCollector(beacon *adapter.BeaconClient, validators *storage.ValidatorRepository) *ValidatorCollector {
	return &ValidatorCollector{beacon: beacon, validators: validators}
}

func (c *ValidatorCollector) Name() string { return "beacon-validators" }

func (c *ValidatorCollector) Category() types.UpdateCategory { return types.CategoryStaking }

func (c *ValidatorCollector) Collect(ctx context.Context, address *models.TrackedAddress, snapshot *models.Snapshot) error {
	indexes, err := c.beacon.ValidatorIndexes(ctx, address.PublicAddress)
	if err != nil {
		return err
	}
	if len(indexes) == 0 {
		return nil
	}

	details, err := c.beacon.Validators(ctx, indexes)
	if err != nil {
		return err
	}
	if len(details) == 0 {
		return nil
	}

	rewards, err := c.beacon.Rewards(ctx, indexes)
	if err != nil {
		return err
	}

	for _, detail := range details {
		validator, err := c.validators.GetOrCreate(ctx, &models.Validator{
			AddressID:      address.ID,
			Index:          detail.Index,
			PublicKey:      detail.PublicKey,
			ActivationDate: detail.ActivationDate,
		})
		if err != nil {
			return err
		}

		reward, ok := rewards[detail.Index]
		if !ok {
			reward = decimal.Zero
		}

		snap := &models.ValidatorSnapshot{
			ValidatorID: validator.ID,
			SnapshotID:  snapshot.ID,
			Balance:     detail.Balance,
			Status:      detail.Status,
			Rewards:     reward,
		}
		if err := c.validators.CreateSnapshot(ctx, snap); err != nil {
			return err
		}
	}
	return nil
}
