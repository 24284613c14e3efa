// Package pricing resolves asset prices for valuations and records
// cycle prices. Stored prices win; the historical API is a read-only
// fallback that never writes to the price table, so the snapshot store
// stays an exact record of what each cycle observed.
package pricing

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/crypto-tracker/internal/errors"
	"github.com/crypto-tracker/internal/logging"
	"github.com/crypto-tracker/internal/models"
	"github.com/crypto-tracker/internal/storage"
)

// PriceStore reads stored cycle prices
type PriceStore interface {
	Get(ctx context.Context, assetID, snapshotID int64) (*models.Price, error)
}

// HistoricalSource fetches a price for a calendar date when the store
// has none
type HistoricalSource interface {
	HistoricalPrice(ctx context.Context, id string, date time.Time) (decimal.Decimal, error)
}

// Resolver resolves the price of an asset at a snapshot
type Resolver struct {
	prices     PriceStore
	cache      *storage.RedisCache
	historical HistoricalSource
	cacheTTL   time.Duration
}

// NewResolver creates a new price resolver. Cache may be nil; the
// resolver then goes straight to the historical API on store misses.
func NewResolver(prices PriceStore, cache *storage.RedisCache, historical HistoricalSource, cacheTTL time.Duration) *Resolver {
	if cacheTTL == 0 {
		cacheTTL = 24 * time.Hour
	}
	return &Resolver{
		prices:     prices,
		cache:      cache,
		historical: historical,
		cacheTTL:   cacheTTL,
	}
}

// GetPrice resolves the fiat price of an asset at a snapshot. The
// stored cycle price wins; on a miss the historical API provides the
// price for the snapshot's calendar date without persisting anything.
// Returns an error wrapping ErrPriceUnavailable when neither source has
// the price.
func (r *Resolver) GetPrice(ctx context.Context, asset *models.Asset, snapshot *models.Snapshot) (decimal.Decimal, error) {
	stored, err := r.prices.Get(ctx, asset.ID, snapshot.ID)
	if err != nil {
		return decimal.Zero, err
	}
	if stored != nil {
		return stored.Price, nil
	}

	date := snapshot.CreatedAt.UTC().Truncate(24 * time.Hour)
	dateKey := date.Format("2006-01-02")

	if r.cache != nil {
		cacheKey := fmt.Sprintf("price:hist:%s:%s", asset.Name, dateKey)
		if cached, err := r.cache.Get(ctx, cacheKey); err == nil {
			if price, perr := decimal.NewFromString(cached); perr == nil {
				return price, nil
			}
		}
	}

	if r.historical == nil {
		return decimal.Zero, errors.NewPriceUnavailableError(asset.Name, dateKey, fmt.Errorf("no stored price"))
	}

	price, err := r.historical.HistoricalPrice(ctx, asset.Name, date)
	if err != nil {
		if errors.IsPriceUnavailable(err) {
			return decimal.Zero, err
		}
		return decimal.Zero, errors.NewPriceUnavailableError(asset.Name, dateKey, err)
	}

	if r.cache != nil {
		cacheKey := fmt.Sprintf("price:hist:%s:%s", asset.Name, dateKey)
		if err := r.cache.Set(ctx, cacheKey, price.String(), r.cacheTTL); err != nil {
			logging.FromContext(ctx).Warnw("Failed to cache historical price",
				"asset", asset.Name, "date", dateKey, "error", err)
		}
	}

	return price, nil
}
