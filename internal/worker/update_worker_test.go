package worker

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/crypto-tracker/internal/models"
	"github.com/crypto-tracker/internal/pricing"
	"github.com/crypto-tracker/internal/service"
	"github.com/crypto-tracker/internal/types"
)

type fakeSnapshotStore struct {
	nextID int64
}

func (f *fakeSnapshotStore) Create(ctx context.Context) (*models.Snapshot, error) {
	f.nextID++
	return &models.Snapshot{ID: f.nextID, CreatedAt: time.Now().UTC()}, nil
}

func (f *fakeSnapshotStore) Get(ctx context.Context, id int64) (*models.Snapshot, error) {
	return nil, nil
}

func (f *fakeSnapshotStore) Latest(ctx context.Context) (*models.Snapshot, error) {
	return nil, nil
}

func (f *fakeSnapshotStore) LatestForDate(ctx context.Context, date time.Time) (*models.Snapshot, error) {
	return nil, nil
}

func (f *fakeSnapshotStore) List(ctx context.Context, from, to time.Time) ([]*models.Snapshot, error) {
	return nil, nil
}

type fakeAddressLister struct {
	all    []*models.TrackedAddress
	byUser map[string][]*models.TrackedAddress
}

func (f *fakeAddressLister) ListAll(ctx context.Context) ([]*models.TrackedAddress, error) {
	return f.all, nil
}

func (f *fakeAddressLister) ListByUser(ctx context.Context, userID string) ([]*models.TrackedAddress, error) {
	return f.byUser[userID], nil
}

type fakeCycleErrorWriter struct {
	mu   sync.Mutex
	rows []*models.CycleError
}

func (f *fakeCycleErrorWriter) Create(ctx context.Context, cycleErr *models.CycleError) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.rows = append(f.rows, cycleErr)
	return nil
}

type fakeAssetLister struct {
	assets []*models.Asset
}

func (f *fakeAssetLister) ListAssets(ctx context.Context) ([]*models.Asset, error) {
	return f.assets, nil
}

type fakePriceWriter struct{}

func (f *fakePriceWriter) Create(ctx context.Context, price *models.Price) error {
	return nil
}

type fakeSpotSource struct {
	quotes map[string]decimal.Decimal
}

func (f *fakeSpotSource) SpotPrices(ctx context.Context, ids []string) (map[string]decimal.Decimal, error) {
	return f.quotes, nil
}

type fakeCollector struct {
	name     string
	category types.UpdateCategory
	err      error

	mu    sync.Mutex
	calls []string
}

func (f *fakeCollector) Name() string                   { return f.name }
func (f *fakeCollector) Category() types.UpdateCategory { return f.category }

func (f *fakeCollector) Collect(ctx context.Context, addr *models.TrackedAddress, snap *models.Snapshot) error {
	f.mu.Lock()
	f.calls = append(f.calls, addr.PublicAddress)
	f.mu.Unlock()
	return f.err
}

func addr(id int64, user, public string) *models.TrackedAddress {
	return &models.TrackedAddress{ID: id, UserID: user, PublicAddress: public, WalletType: types.WalletHot}
}

func newTestWorker(t *testing.T, addresses AddressLister, errs *fakeCycleErrorWriter, collectors ...*fakeCollector) (*UpdateWorker, *fakeCycleErrorWriter) {
	t.Helper()
	if errs == nil {
		errs = &fakeCycleErrorWriter{}
	}
	updater := pricing.NewUpdater(
		&fakeAssetLister{assets: []*models.Asset{{ID: 1, Name: "ethereum"}}},
		&fakePriceWriter{},
		&fakeSpotSource{quotes: map[string]decimal.Decimal{"ethereum": decimal.NewFromInt(2500)}},
	)
	cfg := &UpdateWorkerConfig{
		Snapshots:   service.NewSnapshotService(&fakeSnapshotStore{}),
		Addresses:   addresses,
		CycleErrors: errs,
		Updater:     updater,
		PoolSize:    4,
	}
	for _, c := range collectors {
		cfg.Collectors = append(cfg.Collectors, c)
	}
	w, err := NewUpdateWorker(cfg)
	require.NoError(t, err)
	return w, errs
}

func TestRunUpdateCycleFansOutAllPairs(t *testing.T) {
	addresses := &fakeAddressLister{all: []*models.TrackedAddress{
		addr(1, "alice", "0xA"),
		addr(2, "bob", "0xB"),
	}}
	c1 := &fakeCollector{name: "wallet-assets", category: types.CategoryWalletAssets}
	c2 := &fakeCollector{name: "liquity-staking", category: types.CategoryProtocols}
	w, errs := newTestWorker(t, addresses, nil, c1, c2)

	report, err := w.RunUpdateCycle(context.Background(), nil)
	require.NoError(t, err)

	// one price attempt plus 2 collectors x 2 addresses
	assert.Len(t, report.Attempts, 5)
	assert.Zero(t, report.Failed)
	assert.ElementsMatch(t, []string{"0xA", "0xB"}, c1.calls)
	assert.ElementsMatch(t, []string{"0xA", "0xB"}, c2.calls)
	assert.Empty(t, errs.rows)
}

func TestRunUpdateCycleIsolatesFailures(t *testing.T) {
	addresses := &fakeAddressLister{all: []*models.TrackedAddress{
		addr(1, "alice", "0xA"),
		addr(2, "bob", "0xB"),
	}}
	good := &fakeCollector{name: "wallet-assets", category: types.CategoryWalletAssets}
	bad := &fakeCollector{name: "aave-lending", category: types.CategoryProtocols, err: fmt.Errorf("rpc refused")}
	w, errs := newTestWorker(t, addresses, nil, good, bad)

	report, err := w.RunUpdateCycle(context.Background(), nil)
	require.NoError(t, err)

	assert.Equal(t, 2, report.Failed, "one failure per address for the broken collector")
	assert.Len(t, good.calls, 2, "healthy collector still ran for every address")

	require.Len(t, errs.rows, 2)
	for _, row := range errs.rows {
		assert.Equal(t, string(types.CategoryProtocols), row.Category)
		require.NotNil(t, row.Protocol)
		assert.Equal(t, "aave-lending", *row.Protocol)
		assert.NotNil(t, row.AddressID)
	}
}

func TestRunUpdateCycleUserFilter(t *testing.T) {
	addresses := &fakeAddressLister{
		all: []*models.TrackedAddress{addr(1, "alice", "0xA"), addr(2, "bob", "0xB")},
		byUser: map[string][]*models.TrackedAddress{
			"alice": {addr(1, "alice", "0xA")},
		},
	}
	c := &fakeCollector{name: "wallet-assets", category: types.CategoryWalletAssets}
	w, _ := newTestWorker(t, addresses, nil, c)

	user := "alice"
	report, err := w.RunUpdateCycle(context.Background(), &user)
	require.NoError(t, err)

	assert.Equal(t, []string{"0xA"}, c.calls)
	assert.Len(t, report.Attempts, 2)
}

func TestStartUpdateCycleHandle(t *testing.T) {
	addresses := &fakeAddressLister{all: []*models.TrackedAddress{addr(1, "alice", "0xA")}}
	c := &fakeCollector{name: "wallet-assets", category: types.CategoryWalletAssets}
	w, _ := newTestWorker(t, addresses, nil, c)

	handle := w.StartUpdateCycle(context.Background(), nil)
	report, err := handle.Wait()
	require.NoError(t, err)
	assert.True(t, handle.Poll())
	assert.Equal(t, handle.ID, report.CycleID)
	assert.Equal(t, []string{"0xA"}, c.calls)
}

func TestMissingSpotPriceBecomesErrorRow(t *testing.T) {
	addresses := &fakeAddressLister{}
	errs := &fakeCycleErrorWriter{}
	updater := pricing.NewUpdater(
		&fakeAssetLister{assets: []*models.Asset{
			{ID: 1, Name: "ethereum"},
			{ID: 2, Name: "liquity-bold-2"},
		}},
		&fakePriceWriter{},
		&fakeSpotSource{quotes: map[string]decimal.Decimal{"ethereum": decimal.NewFromInt(2500)}},
	)
	w, err := NewUpdateWorker(&UpdateWorkerConfig{
		Snapshots:   service.NewSnapshotService(&fakeSnapshotStore{}),
		Addresses:   addresses,
		CycleErrors: errs,
		Updater:     updater,
	})
	require.NoError(t, err)

	report, err := w.RunUpdateCycle(context.Background(), nil)
	require.NoError(t, err)
	assert.Zero(t, report.Failed, "a missing quote is an omission, not a cycle failure")

	require.Len(t, errs.rows, 1)
	assert.Equal(t, string(types.CategoryPrices), errs.rows[0].Category)
	require.NotNil(t, errs.rows[0].Asset)
	assert.Equal(t, "liquity-bold-2", *errs.rows[0].Asset)
}

func TestStartStop(t *testing.T) {
	addresses := &fakeAddressLister{}
	w, _ := newTestWorker(t, addresses, nil)
	w.interval = time.Hour

	require.NoError(t, w.Start(context.Background()))
	require.Error(t, w.Start(context.Background()), "double start is rejected")

	w.Stop()
	w.Stop() // second stop is a no-op

	require.NoError(t, w.Start(context.Background()))
	w.Stop()
}
