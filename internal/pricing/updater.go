package pricing

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/crypto-tracker/internal/logging"
	"github.com/crypto-tracker/internal/models"
)

// SpotSource fetches current prices for a batch of asset ids
type SpotSource interface {
	SpotPrices(ctx context.Context, ids []string) (map[string]decimal.Decimal, error)
}

// AssetLister enumerates the known assets
type AssetLister interface {
	ListAssets(ctx context.Context) ([]*models.Asset, error)
}

// PriceWriter persists cycle prices
type PriceWriter interface {
	Create(ctx context.Context, price *models.Price) error
}

// Updater records the spot price of every known asset against a
// snapshot at the start of each update cycle
type Updater struct {
	assets AssetLister
	prices PriceWriter
	spot   SpotSource
}

// NewUpdater creates a new price updater
func NewUpdater(assets AssetLister, prices PriceWriter, spot SpotSource) *Updater {
	return &Updater{
		assets: assets,
		prices: prices,
		spot:   spot,
	}
}

// UpdatePrices fetches the current price of every asset and pins the
// results to the snapshot. Assets the API does not quote are skipped
// and reported in the returned slice; a partial result is not an error.
func (u *Updater) UpdatePrices(ctx context.Context, snapshot *models.Snapshot) (missing []string, err error) {
	assets, err := u.assets.ListAssets(ctx)
	if err != nil {
		return nil, err
	}
	if len(assets) == 0 {
		return nil, nil
	}

	ids := make([]string, len(assets))
	for i, a := range assets {
		ids[i] = a.Name
	}

	quotes, err := u.spot.SpotPrices(ctx, ids)
	if err != nil {
		return nil, err
	}

	log := logging.FromContext(ctx)
	for _, a := range assets {
		price, ok := quotes[a.Name]
		if !ok {
			missing = append(missing, a.Name)
			continue
		}
		err := u.prices.Create(ctx, &models.Price{
			AssetID:    a.ID,
			SnapshotID: snapshot.ID,
			Price:      price,
		})
		if err != nil {
			return missing, err
		}
	}

	if len(missing) > 0 {
		log.Warnw("Spot prices missing for some assets", "count", len(missing), "assets", missing)
	}
	log.Infow("Cycle prices recorded", "snapshotId", snapshot.ID, "assets", len(assets)-len(missing))
	return missing, nil
}
