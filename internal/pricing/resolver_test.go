package pricing

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/crypto-tracker/internal/config"
	"github.com/crypto-tracker/internal/errors"
	"github.com/crypto-tracker/internal/models"
	"github.com/crypto-tracker/internal/storage"
)

type fakePriceStore struct {
	prices map[int64]*models.Price
	err    error
}

func (f *fakePriceStore) Get(ctx context.Context, assetID, snapshotID int64) (*models.Price, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.prices[assetID], nil
}

type fakeHistoricalSource struct {
	prices map[string]decimal.Decimal
	calls  int
	err    error
}

func (f *fakeHistoricalSource) HistoricalPrice(ctx context.Context, id string, date time.Time) (decimal.Decimal, error) {
	f.calls++
	if f.err != nil {
		return decimal.Zero, f.err
	}
	price, ok := f.prices[id]
	if !ok {
		return decimal.Zero, errors.NewPriceUnavailableError(id, date.Format("2006-01-02"), nil)
	}
	return price, nil
}

func testCache(t *testing.T) *storage.RedisCache {
	t.Helper()
	mr := miniredis.RunT(t)
	cache, err := storage.NewRedisCache(&config.RedisConfig{
		Host: mr.Host(),
		Port: mr.Port(),
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = cache.Close() })
	return cache
}

func TestResolverStoredPriceWins(t *testing.T) {
	store := &fakePriceStore{prices: map[int64]*models.Price{
		1: {AssetID: 1, SnapshotID: 7, Price: decimal.RequireFromString("2500.12")},
	}}
	hist := &fakeHistoricalSource{prices: map[string]decimal.Decimal{
		"ethereum": decimal.RequireFromString("9999"),
	}}
	resolver := NewResolver(store, nil, hist, 0)

	asset := &models.Asset{ID: 1, Name: "ethereum"}
	snapshot := &models.Snapshot{ID: 7, CreatedAt: time.Now()}

	price, err := resolver.GetPrice(context.Background(), asset, snapshot)
	require.NoError(t, err)
	assert.True(t, price.Equal(decimal.RequireFromString("2500.12")))
	assert.Equal(t, 0, hist.calls, "historical API must not be hit when the store has the price")
}

func TestResolverFallsBackToHistorical(t *testing.T) {
	store := &fakePriceStore{}
	hist := &fakeHistoricalSource{prices: map[string]decimal.Decimal{
		"liquity": decimal.RequireFromString("1.42"),
	}}
	resolver := NewResolver(store, nil, hist, 0)

	asset := &models.Asset{ID: 3, Name: "liquity"}
	snapshot := &models.Snapshot{ID: 9, CreatedAt: time.Date(2024, 3, 10, 14, 30, 0, 0, time.UTC)}

	price, err := resolver.GetPrice(context.Background(), asset, snapshot)
	require.NoError(t, err)
	assert.True(t, price.Equal(decimal.RequireFromString("1.42")))
	assert.Equal(t, 1, hist.calls)
}

func TestResolverCachesHistoricalPrice(t *testing.T) {
	cache := testCache(t)
	store := &fakePriceStore{}
	hist := &fakeHistoricalSource{prices: map[string]decimal.Decimal{
		"ethereum": decimal.RequireFromString("3211.07"),
	}}
	resolver := NewResolver(store, cache, hist, time.Hour)

	asset := &models.Asset{ID: 1, Name: "ethereum"}
	snapshot := &models.Snapshot{ID: 4, CreatedAt: time.Date(2024, 5, 1, 8, 0, 0, 0, time.UTC)}

	price, err := resolver.GetPrice(context.Background(), asset, snapshot)
	require.NoError(t, err)
	assert.True(t, price.Equal(decimal.RequireFromString("3211.07")))

	// Second resolution for the same date must be served from the
	// cache without another API call.
	price, err = resolver.GetPrice(context.Background(), asset, snapshot)
	require.NoError(t, err)
	assert.True(t, price.Equal(decimal.RequireFromString("3211.07")))
	assert.Equal(t, 1, hist.calls)

	cached, err := cache.Get(context.Background(), "price:hist:ethereum:2024-05-01")
	require.NoError(t, err)
	assert.Equal(t, "3211.07", cached)
}

func TestResolverCacheHitSkipsAPI(t *testing.T) {
	cache := testCache(t)
	require.NoError(t, cache.Set(context.Background(), "price:hist:ethereum:2024-05-01", "1800.5", time.Hour))

	store := &fakePriceStore{}
	hist := &fakeHistoricalSource{}
	resolver := NewResolver(store, cache, hist, time.Hour)

	asset := &models.Asset{ID: 1, Name: "ethereum"}
	snapshot := &models.Snapshot{ID: 4, CreatedAt: time.Date(2024, 5, 1, 23, 59, 0, 0, time.UTC)}

	price, err := resolver.GetPrice(context.Background(), asset, snapshot)
	require.NoError(t, err)
	assert.True(t, price.Equal(decimal.RequireFromString("1800.5")))
	assert.Equal(t, 0, hist.calls)
}

func TestResolverUnavailableWithoutSources(t *testing.T) {
	resolver := NewResolver(&fakePriceStore{}, nil, nil, 0)

	asset := &models.Asset{ID: 2, Name: "rocket-pool-eth"}
	snapshot := &models.Snapshot{ID: 1, CreatedAt: time.Now()}

	_, err := resolver.GetPrice(context.Background(), asset, snapshot)
	require.Error(t, err)
	assert.True(t, errors.IsPriceUnavailable(err))
}

func TestResolverWrapsAPIError(t *testing.T) {
	hist := &fakeHistoricalSource{err: fmt.Errorf("boom")}
	resolver := NewResolver(&fakePriceStore{}, nil, hist, 0)

	asset := &models.Asset{ID: 2, Name: "ethereum"}
	snapshot := &models.Snapshot{ID: 1, CreatedAt: time.Now()}

	_, err := resolver.GetPrice(context.Background(), asset, snapshot)
	require.Error(t, err)
	assert.True(t, errors.IsPriceUnavailable(err))
}

func TestResolverStoreErrorPropagates(t *testing.T) {
	store := &fakePriceStore{err: fmt.Errorf("connection refused")}
	resolver := NewResolver(store, nil, &fakeHistoricalSource{}, 0)

	asset := &models.Asset{ID: 1, Name: "ethereum"}
	snapshot := &models.Snapshot{ID: 1, CreatedAt: time.Now()}

	_, err := resolver.GetPrice(context.Background(), asset, snapshot)
	require.Error(t, err)
	assert.False(t, errors.IsPriceUnavailable(err))
}
