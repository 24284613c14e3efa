package service

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/crypto-tracker/internal/errors"
	"github.com/crypto-tracker/internal/models"
	"github.com/crypto-tracker/internal/storage"
	"github.com/crypto-tracker/internal/types"
)

type fakeSnapshotStore struct {
	latest *models.Snapshot
	byDate *models.Snapshot
}

func (f *fakeSnapshotStore) Create(ctx context.Context) (*models.Snapshot, error) {
	return nil, nil
}

func (f *fakeSnapshotStore) Get(ctx context.Context, id int64) (*models.Snapshot, error) {
	return f.latest, nil
}

func (f *fakeSnapshotStore) Latest(ctx context.Context) (*models.Snapshot, error) {
	return f.latest, nil
}

func (f *fakeSnapshotStore) LatestForDate(ctx context.Context, date time.Time) (*models.Snapshot, error) {
	return f.byDate, nil
}

func (f *fakeSnapshotStore) List(ctx context.Context, from, to time.Time) ([]*models.Snapshot, error) {
	return nil, nil
}

type fakePositionStore struct {
	positions []*models.PositionSnapshot
	holdings  []*storage.WalletHolding
	calls     int
}

func (f *fakePositionStore) ListPositionSnapshots(ctx context.Context, addressID, snapshotID int64, kind types.SnapshotKind) ([]*models.PositionSnapshot, error) {
	f.calls++
	var out []*models.PositionSnapshot
	for _, ps := range f.positions {
		if ps.SnapshotID == snapshotID && ps.Kind == kind {
			out = append(out, ps)
		}
	}
	return out, nil
}

func (f *fakePositionStore) ListWalletAssetSnapshots(ctx context.Context, addressID, snapshotID int64) ([]*storage.WalletHolding, error) {
	var out []*storage.WalletHolding
	for _, h := range f.holdings {
		if h.Snapshot.SnapshotID == snapshotID {
			out = append(out, h)
		}
	}
	return out, nil
}

type fakeTroveStore struct {
	rows []*models.TroveSnapshot
}

func (f *fakeTroveStore) ListSnapshots(ctx context.Context, addressID, snapshotID int64) ([]*models.TroveSnapshot, error) {
	return f.rows, nil
}

type fakeValidatorStore struct {
	rows []*models.ValidatorSnapshot
}

func (f *fakeValidatorStore) ListSnapshots(ctx context.Context, addressID, snapshotID int64) ([]*models.ValidatorSnapshot, error) {
	return f.rows, nil
}

type fakeAssetStore struct {
	byName   map[string]*models.Asset
	bySymbol map[string]*models.Asset
}

func (f *fakeAssetStore) GetAsset(ctx context.Context, name string) (*models.Asset, error) {
	if a, ok := f.byName[name]; ok {
		return a, nil
	}
	return nil, apperrors.NewNotFoundError("asset", name)
}

func (f *fakeAssetStore) GetAssetBySymbol(ctx context.Context, symbol string) (*models.Asset, error) {
	if a, ok := f.bySymbol[symbol]; ok {
		return a, nil
	}
	return nil, apperrors.NewNotFoundError("asset", symbol)
}

type fakeCycleErrorStore struct {
	rows []*models.CycleError
}

func (f *fakeCycleErrorStore) ListForSnapshot(ctx context.Context, snapshotID int64) ([]*models.CycleError, error) {
	return f.rows, nil
}

type fakePriceSource struct {
	prices map[string]decimal.Decimal
}

func (f *fakePriceSource) GetPrice(ctx context.Context, asset *models.Asset, snapshot *models.Snapshot) (decimal.Decimal, error) {
	if p, ok := f.prices[asset.Name]; ok {
		return p, nil
	}
	return decimal.Zero, apperrors.ErrPriceUnavailable
}

func dec(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

func newTestService(snapshots SnapshotStore, positions PositionStore, troves TroveStore, validators ValidatorStore, assets AssetStore, prices PriceSource) *ValuationService {
	if troves == nil {
		troves = &fakeTroveStore{}
	}
	if validators == nil {
		validators = &fakeValidatorStore{}
	}
	if assets == nil {
		assets = &fakeAssetStore{}
	}
	return NewValuationService(snapshots, positions, troves, validators, assets, &fakeCycleErrorStore{}, prices, "eur", "liquity-bold-2")
}

func stakingPool() *models.Pool {
	return &models.Pool{ID: 1, Protocol: "Liquity v1", Kind: types.PoolStaking}
}

func TestGetValuationStakedBalance(t *testing.T) {
	snap := &models.Snapshot{ID: 7, CreatedAt: time.Now()}
	lqty := &models.Asset{ID: 1, Name: "liquity", Symbol: "LQTY"}

	positions := &fakePositionStore{
		positions: []*models.PositionSnapshot{
			{SnapshotID: 7, Kind: types.SnapshotBalance, Quantity: dec("1000"), Asset: lqty, Pool: stakingPool()},
		},
	}
	prices := &fakePriceSource{prices: map[string]decimal.Decimal{"liquity": dec("2.50")}}

	svc := newTestService(&fakeSnapshotStore{latest: snap}, positions, nil, nil, nil, prices)

	view, err := svc.GetValuation(context.Background(), []int64{1})
	require.NoError(t, err)

	require.Len(t, view.Protocols, 1)
	require.Len(t, view.Protocols[0].Pools, 1)
	pool := view.Protocols[0].Pools[0]
	require.Len(t, pool.Balances, 1)
	assert.Equal(t, "1000", pool.Balances[0].Quantity.String())
	assert.Equal(t, "2500", pool.Balances[0].Value.String())
	assert.Equal(t, "2500", view.TotalValue.String())
}

func TestGetValuationTroveNet(t *testing.T) {
	snap := &models.Snapshot{ID: 3, CreatedAt: time.Now()}
	weth := &models.Asset{ID: 2, Name: "weth", Symbol: "WETH"}
	bold := &models.Asset{ID: 3, Name: "liquity-bold-2", Symbol: "BOLD"}

	troves := &fakeTroveStore{
		rows: []*models.TroveSnapshot{
			{
				SnapshotID:   3,
				Collateral:   dec("10"),
				Debt:         dec("8000"),
				InterestRate: dec("0.055"),
				// stale write-time value, must be ignored by the read
				NetValue: dec("1"),
				Trove:    &models.Trove{ExternalID: "0xabc:0", CollateralAsset: weth},
			},
		},
	}
	assets := &fakeAssetStore{byName: map[string]*models.Asset{"liquity-bold-2": bold}}
	prices := &fakePriceSource{prices: map[string]decimal.Decimal{
		"weth":           dec("3000"),
		"liquity-bold-2": dec("1"),
	}}

	svc := newTestService(&fakeSnapshotStore{latest: snap}, &fakePositionStore{}, troves, nil, assets, prices)

	view, err := svc.GetValuation(context.Background(), []int64{1})
	require.NoError(t, err)

	require.Len(t, view.Troves, 1)
	assert.Equal(t, "22000", view.Troves[0].NetValue.String())
	assert.Equal(t, "22000", view.TroveNet.String())
	assert.Equal(t, "22000", view.TotalValue.String())
}

func TestGetValuationMissingPriceValuesAtZero(t *testing.T) {
	snap := &models.Snapshot{ID: 5, CreatedAt: time.Now()}
	lqty := &models.Asset{ID: 1, Name: "liquity", Symbol: "LQTY"}
	ssv := &models.Asset{ID: 4, Name: "ssv-network", Symbol: "SSV"}

	positions := &fakePositionStore{
		positions: []*models.PositionSnapshot{
			{SnapshotID: 5, Kind: types.SnapshotBalance, Quantity: dec("1000"), Asset: lqty, Pool: stakingPool()},
		},
		holdings: []*storage.WalletHolding{
			{
				Snapshot: models.WalletAssetSnapshot{SnapshotID: 5, Quantity: dec("12")},
				Asset:    *ssv,
				Network:  types.ChainEthereum,
			},
		},
	}
	// no price for ssv-network
	prices := &fakePriceSource{prices: map[string]decimal.Decimal{"liquity": dec("2.50")}}

	svc := newTestService(&fakeSnapshotStore{latest: snap}, positions, nil, nil, nil, prices)

	view, err := svc.GetValuation(context.Background(), []int64{1})
	require.NoError(t, err)

	require.Len(t, view.Wallets, 1)
	assert.Equal(t, "12", view.Wallets[0].Balance.String())
	assert.True(t, view.Wallets[0].Value.IsZero())
	assert.Equal(t, "2500", view.TotalValue.String())
}

func TestGetValuationIsIdempotent(t *testing.T) {
	snap := &models.Snapshot{ID: 9, CreatedAt: time.Now()}
	lqty := &models.Asset{ID: 1, Name: "liquity", Symbol: "LQTY"}

	positions := &fakePositionStore{
		positions: []*models.PositionSnapshot{
			{SnapshotID: 9, Kind: types.SnapshotBalance, Quantity: dec("50"), Asset: lqty, Pool: stakingPool()},
		},
	}
	prices := &fakePriceSource{prices: map[string]decimal.Decimal{"liquity": dec("2")}}

	svc := newTestService(&fakeSnapshotStore{latest: snap}, positions, nil, nil, nil, prices)

	first, err := svc.GetValuation(context.Background(), []int64{1})
	require.NoError(t, err)
	second, err := svc.GetValuation(context.Background(), []int64{1})
	require.NoError(t, err)

	assert.Equal(t, first, second)
}

func TestGetValuationNoSnapshot(t *testing.T) {
	svc := newTestService(&fakeSnapshotStore{}, &fakePositionStore{}, nil, nil, nil, &fakePriceSource{})

	_, err := svc.GetValuation(context.Background(), []int64{1})
	assert.ErrorIs(t, err, apperrors.ErrNoSnapshot)
}

func TestGetValuationStaking(t *testing.T) {
	snap := &models.Snapshot{ID: 2, CreatedAt: time.Now()}
	eth := &models.Asset{ID: 5, Name: "ethereum", Symbol: "ETH"}

	validators := &fakeValidatorStore{
		rows: []*models.ValidatorSnapshot{
			{SnapshotID: 2, Balance: dec("32.1"), Status: "active_online", Rewards: dec("1.5")},
			{SnapshotID: 2, Balance: dec("32.0"), Status: "active_online", Rewards: dec("0.5")},
		},
	}
	assets := &fakeAssetStore{bySymbol: map[string]*models.Asset{"ETH": eth}}
	prices := &fakePriceSource{prices: map[string]decimal.Decimal{"ethereum": dec("2000")}}

	svc := newTestService(&fakeSnapshotStore{latest: snap}, &fakePositionStore{}, nil, validators, assets, prices)

	view, err := svc.GetValuation(context.Background(), []int64{1})
	require.NoError(t, err)

	assert.Equal(t, 2, view.Staking.ValidatorCount)
	assert.Equal(t, "64.1", view.Staking.Balance.String())
	assert.Equal(t, "128200", view.Staking.Value.String())
	assert.Equal(t, "2", view.Staking.Rewards.String())
	assert.Equal(t, "128200", view.TotalValue.String())
}

func TestGetRewardsKeepsQuantitiesOnly(t *testing.T) {
	snap := &models.Snapshot{ID: 4, CreatedAt: time.Now()}
	ethAsset := &models.Asset{ID: 5, Name: "ethereum", Symbol: "ETH"}
	lusd := &models.Asset{ID: 6, Name: "liquity-usd", Symbol: "LUSD"}

	positions := &fakePositionStore{
		positions: []*models.PositionSnapshot{
			{SnapshotID: 4, Kind: types.SnapshotReward, Quantity: dec("0.25"), Asset: ethAsset, Pool: stakingPool()},
			{SnapshotID: 4, Kind: types.SnapshotReward, Quantity: dec("17"), Asset: lusd, Pool: stakingPool()},
		},
	}

	svc := newTestService(&fakeSnapshotStore{latest: snap}, positions, nil, nil, nil, &fakePriceSource{})

	view, err := svc.GetRewards(context.Background(), []int64{1})
	require.NoError(t, err)

	require.Len(t, view.Protocols, 1)
	require.Len(t, view.Protocols[0].Rewards, 2)
	assert.Equal(t, "ethereum", view.Protocols[0].Rewards[0].Asset)
	assert.True(t, view.Protocols[0].Rewards[0].Value.IsZero())
	assert.Equal(t, "17", view.Protocols[0].Rewards[1].Quantity.String())
}
