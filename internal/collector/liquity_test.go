package collector

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/crypto-tracker/internal/config"
	"github.com/crypto-tracker/internal/models"
	"github.com/crypto-tracker/internal/types"
)

// fakeChainReader serves canned call results keyed by contract and
// method. Every call against failOn fails.
type fakeChainReader struct {
	mu      sync.Mutex
	calls   []chainCall
	failOn  string
	amounts map[string]*big.Int
}

type chainCall struct {
	contract string
	method   string
}

func (f *fakeChainReader) Call(_ context.Context, _ types.ChainID, contract, method string, _ ...interface{}) ([]interface{}, error) {
	f.mu.Lock()
	f.calls = append(f.calls, chainCall{contract: contract, method: method})
	f.mu.Unlock()

	if contract == f.failOn {
		return nil, errors.New("execution reverted")
	}
	if amount, ok := f.amounts[contract+"/"+method]; ok {
		return []interface{}{new(big.Int).Set(amount)}, nil
	}
	return []interface{}{big.NewInt(0)}, nil
}

func (f *fakeChainReader) NativeBalance(context.Context, types.ChainID, string) (*big.Int, error) {
	return big.NewInt(0), nil
}

func (f *fakeChainReader) TokenBalance(context.Context, types.ChainID, string, string) (*big.Int, error) {
	return big.NewInt(0), nil
}

// queried returns the contracts that received the given method, in
// call order.
func (f *fakeChainReader) queried(method string) []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	var contracts []string
	for _, call := range f.calls {
		if call.method == method {
			contracts = append(contracts, call.contract)
		}
	}
	return contracts
}

type fakeAssetCatalog struct {
	network *models.Network
	assets  map[string]*models.Asset
}

func (f *fakeAssetCatalog) GetAsset(_ context.Context, name string) (*models.Asset, error) {
	for _, asset := range f.assets {
		if asset.Name == name {
			return asset, nil
		}
	}
	return nil, nil
}

func (f *fakeAssetCatalog) GetAssetBySymbol(_ context.Context, symbol string) (*models.Asset, error) {
	return f.assets[symbol], nil
}

func (f *fakeAssetCatalog) GetNetwork(context.Context, types.ChainID) (*models.Network, error) {
	return f.network, nil
}

// fakePositionStore keys every insert by its unique tuple and ignores
// duplicates, matching the conflict-tolerant Postgres repositories.
type fakePositionStore struct {
	mu        sync.Mutex
	nextID    int64
	pools     map[string]*models.Pool
	positions map[string]*models.PoolPosition
	rows      map[string]*models.PositionSnapshot
}

func newFakePositionStore() *fakePositionStore {
	return &fakePositionStore{
		pools:     make(map[string]*models.Pool),
		positions: make(map[string]*models.PoolPosition),
		rows:      make(map[string]*models.PositionSnapshot),
	}
}

func (f *fakePositionStore) GetOrCreatePool(_ context.Context, protocol string, networkID int64, kind types.PoolKind, contractAddress, collateral *string) (*models.Pool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	var coll string
	if collateral != nil {
		coll = *collateral
	}
	key := fmt.Sprintf("%s/%d/%s/%s", protocol, networkID, kind, coll)
	if pool, ok := f.pools[key]; ok {
		return pool, nil
	}
	f.nextID++
	pool := &models.Pool{ID: f.nextID, Protocol: protocol, NetworkID: networkID, Kind: kind, ContractAddress: contractAddress, Collateral: collateral}
	f.pools[key] = pool
	return pool, nil
}

func (f *fakePositionStore) GetOrCreatePosition(_ context.Context, poolID, addressID int64, externalID string) (*models.PoolPosition, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	key := fmt.Sprintf("%d/%d/%s", poolID, addressID, externalID)
	if position, ok := f.positions[key]; ok {
		return position, nil
	}
	f.nextID++
	position := &models.PoolPosition{ID: f.nextID, PoolID: poolID, AddressID: addressID, ExternalID: externalID}
	f.positions[key] = position
	return position, nil
}

func (f *fakePositionStore) CreatePositionSnapshot(_ context.Context, snap *models.PositionSnapshot) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	key := fmt.Sprintf("%d/%d/%d/%s", snap.PositionID, snap.AssetID, snap.SnapshotID, snap.Kind)
	if _, ok := f.rows[key]; ok {
		return nil
	}
	f.rows[key] = snap
	return nil
}

func (f *fakePositionStore) rowCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.rows)
}

func stabilityPoolFixture() *fakeAssetCatalog {
	catalog := &fakeAssetCatalog{
		network: &models.Network{ID: 1, Name: types.ChainEthereum},
		assets:  make(map[string]*models.Asset),
	}
	symbols := []string{"LUSD", "ETH", "LQTY", "BOLD", "WETH", "wstETH", "rETH"}
	for i, symbol := range symbols {
		catalog.assets[symbol] = &models.Asset{ID: int64(i + 1), Symbol: symbol}
	}
	return catalog
}

func TestStabilityPoolSiblingFailureSweepsRemaining(t *testing.T) {
	registry := config.DefaultRegistry()
	specs := registry.Pools(config.ProtocolLiquityV2, types.ChainEthereum, types.PoolStabilityPool)
	require.Len(t, specs, 3)

	catalog := stabilityPoolFixture()
	reader := &fakeChainReader{failOn: specs[0].ContractAddress}
	c := NewLiquityStabilityPoolCollector(reader, &Writer{Assets: catalog, Pools: newFakePositionStore()}, registry)

	address := &models.TrackedAddress{ID: 1, PublicAddress: "0x1111111111111111111111111111111111111111"}
	err := c.Collect(context.Background(), address, &models.Snapshot{ID: 1})
	require.Error(t, err)

	want := []string{specs[0].ContractAddress, specs[1].ContractAddress, specs[2].ContractAddress}
	assert.ElementsMatch(t, want, reader.queried("deposits"))
}

func TestStabilityPoolV1FailureStillSweepsV2(t *testing.T) {
	registry := config.DefaultRegistry()
	v1Spec := registry.Pool(config.ProtocolLiquityV1, types.ChainEthereum, types.PoolStabilityPool)
	require.NotNil(t, v1Spec)
	specs := registry.Pools(config.ProtocolLiquityV2, types.ChainEthereum, types.PoolStabilityPool)
	require.Len(t, specs, 3)

	catalog := stabilityPoolFixture()
	reader := &fakeChainReader{failOn: v1Spec.ContractAddress}
	c := NewLiquityStabilityPoolCollector(reader, &Writer{Assets: catalog, Pools: newFakePositionStore()}, registry)

	address := &models.TrackedAddress{ID: 1, PublicAddress: "0x1111111111111111111111111111111111111111"}
	err := c.Collect(context.Background(), address, &models.Snapshot{ID: 1})
	require.Error(t, err)

	want := []string{specs[0].ContractAddress, specs[1].ContractAddress, specs[2].ContractAddress}
	assert.ElementsMatch(t, want, reader.queried("deposits"))
}

func TestStabilityPoolDoubleRunLeavesRowsUnchanged(t *testing.T) {
	registry := config.DefaultRegistry()
	v1Spec := registry.Pool(config.ProtocolLiquityV1, types.ChainEthereum, types.PoolStabilityPool)
	require.NotNil(t, v1Spec)
	specs := registry.Pools(config.ProtocolLiquityV2, types.ChainEthereum, types.PoolStabilityPool)
	require.Len(t, specs, 3)

	one := new(big.Int).Exp(big.NewInt(10), big.NewInt(18), nil)
	amounts := map[string]*big.Int{
		v1Spec.ContractAddress + "/depositsV1":           one,
		v1Spec.ContractAddress + "/getDepositorETHGain":  one,
		v1Spec.ContractAddress + "/getDepositorLQTYGain": one,
	}
	for _, spec := range specs {
		amounts[spec.ContractAddress+"/deposits"] = one
		amounts[spec.ContractAddress+"/getDepositorCollGain"] = one
		amounts[spec.ContractAddress+"/getDepositorYieldGain"] = one
	}

	catalog := stabilityPoolFixture()
	store := newFakePositionStore()
	reader := &fakeChainReader{amounts: amounts}
	c := NewLiquityStabilityPoolCollector(reader, &Writer{Assets: catalog, Pools: store}, registry)

	address := &models.TrackedAddress{ID: 1, PublicAddress: "0x1111111111111111111111111111111111111111"}
	snapshot := &models.Snapshot{ID: 1}

	require.NoError(t, c.Collect(context.Background(), address, snapshot))
	// 3 rows for the v1 pool, 3 per v2 pool
	require.Equal(t, 12, store.rowCount())

	require.NoError(t, c.Collect(context.Background(), address, snapshot))
	assert.Equal(t, 12, store.rowCount())
	assert.Len(t, store.pools, 4)
	assert.Len(t, store.positions, 4)
}
