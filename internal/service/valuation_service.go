package service

import (
	"context"
	"sort"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	apperrors "github.com/crypto-tracker/internal/errors"
	"github.com/crypto-tracker/internal/logging"
	"github.com/crypto-tracker/internal/models"
	"github.com/crypto-tracker/internal/storage"
	"github.com/crypto-tracker/internal/types"
)

// PositionStore is the position read surface the valuation needs
type PositionStore interface {
	ListPositionSnapshots(ctx context.Context, addressID, snapshotID int64, kind types.SnapshotKind) ([]*models.PositionSnapshot, error)
	ListWalletAssetSnapshots(ctx context.Context, addressID, snapshotID int64) ([]*storage.WalletHolding, error)
}

// TroveStore is the trove read surface the valuation needs
type TroveStore interface {
	ListSnapshots(ctx context.Context, addressID, snapshotID int64) ([]*models.TroveSnapshot, error)
}

// ValidatorStore is the validator read surface the valuation needs
type ValidatorStore interface {
	ListSnapshots(ctx context.Context, addressID, snapshotID int64) ([]*models.ValidatorSnapshot, error)
}

// AssetStore resolves asset identities for pricing
type AssetStore interface {
	GetAsset(ctx context.Context, name string) (*models.Asset, error)
	GetAssetBySymbol(ctx context.Context, symbol string) (*models.Asset, error)
}

// CycleErrorStore is the error-row read surface
type CycleErrorStore interface {
	ListForSnapshot(ctx context.Context, snapshotID int64) ([]*models.CycleError, error)
}

// PriceSource resolves the fiat price of an asset at a snapshot
type PriceSource interface {
	GetPrice(ctx context.Context, asset *models.Asset, snapshot *models.Snapshot) (decimal.Decimal, error)
}

// AssetAmount is one asset quantity, optionally priced. Value is zero
// when no price could be resolved or when the line is a reward.
type AssetAmount struct {
	Asset    string          `json:"asset"`
	Symbol   string          `json:"symbol"`
	Quantity decimal.Decimal `json:"quantity"`
	Value    decimal.Decimal `json:"value"`
}

// WalletLine is one aggregated wallet holding
type WalletLine struct {
	Network types.ChainID   `json:"network"`
	Symbol  string          `json:"symbol"`
	Asset   string          `json:"asset"`
	Balance decimal.Decimal `json:"balance"`
	Value   decimal.Decimal `json:"value"`
}

// PoolValuation is one pool's balances and rewards
type PoolValuation struct {
	Kind       types.PoolKind  `json:"kind"`
	Collateral string          `json:"collateral,omitempty"`
	Balances   []AssetAmount   `json:"balances"`
	Rewards    []AssetAmount   `json:"rewards"`
	Value      decimal.Decimal `json:"value"`
}

// ProtocolValuation groups pool valuations under one protocol
type ProtocolValuation struct {
	Protocol string          `json:"protocol"`
	Pools    []PoolValuation `json:"pools"`
	Value    decimal.Decimal `json:"value"`
}

// TroveLine is one collateralized borrowing position
type TroveLine struct {
	ExternalID       string          `json:"externalId"`
	CollateralSymbol string          `json:"collateralSymbol"`
	Collateral       decimal.Decimal `json:"collateral"`
	Debt             decimal.Decimal `json:"debt"`
	InterestRate     decimal.Decimal `json:"interestRate"`
	NetValue         decimal.Decimal `json:"netValue"`
}

// StakingValuation sums beacon validator state
type StakingValuation struct {
	ValidatorCount int             `json:"validatorCount"`
	Balance        decimal.Decimal `json:"balance"`
	Value          decimal.Decimal `json:"value"`
	Rewards        decimal.Decimal `json:"rewards"`
}

// ValuationView is the full portfolio valuation pinned to one snapshot
type ValuationView struct {
	SnapshotID int64               `json:"snapshotId"`
	CreatedAt  time.Time           `json:"createdAt"`
	Currency   string              `json:"currency"`
	Wallets    []WalletLine        `json:"wallets"`
	Protocols  []ProtocolValuation `json:"protocols"`
	Troves     []TroveLine         `json:"troves"`
	TroveNet   decimal.Decimal     `json:"troveNet"`
	Staking    StakingValuation    `json:"staking"`
	TotalValue decimal.Decimal     `json:"totalValue"`
}

// ProtocolRewards is the reward quantities one protocol accrued
type ProtocolRewards struct {
	Protocol string        `json:"protocol"`
	Rewards  []AssetAmount `json:"rewards"`
}

// RewardsView reports accrued rewards pinned to one snapshot, kept
// apart from principal valuation
type RewardsView struct {
	SnapshotID     int64             `json:"snapshotId"`
	CreatedAt      time.Time         `json:"createdAt"`
	Protocols      []ProtocolRewards `json:"protocols"`
	StakingRewards decimal.Decimal   `json:"stakingRewards"`
}

// ValuationService aggregates stored measurements of one snapshot into
// portfolio views. The read path never writes: two sequential calls
// with no new cycle in between return identical views.
type ValuationService struct {
	snapshots   SnapshotStore
	positions   PositionStore
	troves      TroveStore
	validators  ValidatorStore
	assets      AssetStore
	cycleErrors CycleErrorStore
	prices      PriceSource
	currency    string
	debtAsset   string
}

// NewValuationService creates a new valuation service. debtAsset is the
// price identity used for trove debt.
func NewValuationService(snapshots SnapshotStore, positions PositionStore, troves TroveStore, validators ValidatorStore, assets AssetStore, cycleErrors CycleErrorStore, prices PriceSource, currency, debtAsset string) *ValuationService {
	return &ValuationService{
		snapshots:   snapshots,
		positions:   positions,
		troves:      troves,
		validators:  validators,
		assets:      assets,
		cycleErrors: cycleErrors,
		prices:      prices,
		currency:    currency,
		debtAsset:   debtAsset,
	}
}

// GetValuation values the portfolio at the latest snapshot
func (s *ValuationService) GetValuation(ctx context.Context, addressIDs []int64) (*ValuationView, error) {
	snap, err := s.snapshots.Latest(ctx)
	if err != nil {
		return nil, err
	}
	if snap == nil {
		return nil, apperrors.ErrNoSnapshot
	}
	return s.valueAt(ctx, addressIDs, snap)
}

// GetValuationAt values the portfolio at the most recent snapshot of
// the given calendar day
func (s *ValuationService) GetValuationAt(ctx context.Context, addressIDs []int64, date time.Time) (*ValuationView, error) {
	snap, err := s.snapshots.LatestForDate(ctx, date)
	if err != nil {
		return nil, err
	}
	if snap == nil {
		return nil, apperrors.ErrNoSnapshot
	}
	return s.valueAt(ctx, addressIDs, snap)
}

func (s *ValuationService) valueAt(ctx context.Context, addressIDs []int64, snap *models.Snapshot) (*ValuationView, error) {
	log := logging.FromContext(ctx)
	view := &ValuationView{
		SnapshotID: snap.ID,
		CreatedAt:  snap.CreatedAt,
		Currency:   s.currency,
	}

	wallets, walletValue, err := s.valueWallets(ctx, addressIDs, snap, log)
	if err != nil {
		return nil, err
	}
	view.Wallets = wallets

	protocols, poolValue, err := s.valuePools(ctx, addressIDs, snap, log)
	if err != nil {
		return nil, err
	}
	view.Protocols = protocols

	troveLines, troveNet, err := s.valueTroves(ctx, addressIDs, snap, log)
	if err != nil {
		return nil, err
	}
	view.Troves = troveLines
	view.TroveNet = troveNet

	staking, err := s.valueStaking(ctx, addressIDs, snap, log)
	if err != nil {
		return nil, err
	}
	view.Staking = staking

	view.TotalValue = walletValue.Add(poolValue).Add(troveNet).Add(staking.Value)
	return view, nil
}

// valueWallets aggregates wallet balances across addresses per
// (network, asset) and prices them
func (s *ValuationService) valueWallets(ctx context.Context, addressIDs []int64, snap *models.Snapshot, log *zap.SugaredLogger) ([]WalletLine, decimal.Decimal, error) {
	type key struct {
		network types.ChainID
		asset   string
	}
	grouped := make(map[key]*WalletLine)
	assets := make(map[string]*models.Asset)

	for _, addressID := range addressIDs {
		holdings, err := s.positions.ListWalletAssetSnapshots(ctx, addressID, snap.ID)
		if err != nil {
			return nil, decimal.Zero, err
		}
		for _, h := range holdings {
			k := key{network: h.Network, asset: h.Asset.Name}
			line, ok := grouped[k]
			if !ok {
				line = &WalletLine{Network: h.Network, Symbol: h.Asset.Symbol, Asset: h.Asset.Name}
				grouped[k] = line
				asset := h.Asset
				assets[h.Asset.Name] = &asset
			}
			line.Balance = line.Balance.Add(h.Snapshot.Quantity)
		}
	}

	total := decimal.Zero
	lines := make([]WalletLine, 0, len(grouped))
	for k, line := range grouped {
		price := s.priceOrZero(ctx, assets[k.asset], snap, log)
		line.Value = line.Balance.Mul(price)
		total = total.Add(line.Value)
		lines = append(lines, *line)
	}
	sort.Slice(lines, func(i, j int) bool {
		if lines[i].Network != lines[j].Network {
			return lines[i].Network < lines[j].Network
		}
		return lines[i].Asset < lines[j].Asset
	})
	return lines, total, nil
}

// valuePools groups balance and reward rows per protocol and pool.
// Balances are priced; rewards stay quantity-only.
func (s *ValuationService) valuePools(ctx context.Context, addressIDs []int64, snap *models.Snapshot, log *zap.SugaredLogger) ([]ProtocolValuation, decimal.Decimal, error) {
	type poolKey struct {
		protocol   string
		kind       types.PoolKind
		collateral string
	}
	balances := make(map[poolKey]map[string]*AssetAmount)
	rewards := make(map[poolKey]map[string]*AssetAmount)
	assets := make(map[string]*models.Asset)

	accumulate := func(dest map[poolKey]map[string]*AssetAmount, rows []*models.PositionSnapshot) {
		for _, row := range rows {
			k := poolKey{protocol: row.Pool.Protocol, kind: row.Pool.Kind}
			if row.Pool.Collateral != nil {
				k.collateral = *row.Pool.Collateral
			}
			byAsset, ok := dest[k]
			if !ok {
				byAsset = make(map[string]*AssetAmount)
				dest[k] = byAsset
			}
			amount, ok := byAsset[row.Asset.Name]
			if !ok {
				amount = &AssetAmount{Asset: row.Asset.Name, Symbol: row.Asset.Symbol}
				byAsset[row.Asset.Name] = amount
				asset := *row.Asset
				assets[row.Asset.Name] = &asset
			}
			amount.Quantity = amount.Quantity.Add(row.Quantity)
		}
	}

	for _, addressID := range addressIDs {
		balanceRows, err := s.positions.ListPositionSnapshots(ctx, addressID, snap.ID, types.SnapshotBalance)
		if err != nil {
			return nil, decimal.Zero, err
		}
		accumulate(balances, balanceRows)

		rewardRows, err := s.positions.ListPositionSnapshots(ctx, addressID, snap.ID, types.SnapshotReward)
		if err != nil {
			return nil, decimal.Zero, err
		}
		accumulate(rewards, rewardRows)
	}

	keys := make(map[poolKey]bool)
	for k := range balances {
		keys[k] = true
	}
	for k := range rewards {
		keys[k] = true
	}

	total := decimal.Zero
	byProtocol := make(map[string]*ProtocolValuation)
	for k := range keys {
		pool := PoolValuation{Kind: k.kind, Collateral: k.collateral}
		for _, amount := range balances[k] {
			price := s.priceOrZero(ctx, assets[amount.Asset], snap, log)
			amount.Value = amount.Quantity.Mul(price)
			pool.Value = pool.Value.Add(amount.Value)
			pool.Balances = append(pool.Balances, *amount)
		}
		for _, amount := range rewards[k] {
			pool.Rewards = append(pool.Rewards, *amount)
		}
		sortAmounts(pool.Balances)
		sortAmounts(pool.Rewards)

		proto, ok := byProtocol[k.protocol]
		if !ok {
			proto = &ProtocolValuation{Protocol: k.protocol}
			byProtocol[k.protocol] = proto
		}
		proto.Pools = append(proto.Pools, pool)
		proto.Value = proto.Value.Add(pool.Value)
		total = total.Add(pool.Value)
	}

	protocols := make([]ProtocolValuation, 0, len(byProtocol))
	for _, proto := range byProtocol {
		sort.Slice(proto.Pools, func(i, j int) bool {
			if proto.Pools[i].Kind != proto.Pools[j].Kind {
				return proto.Pools[i].Kind < proto.Pools[j].Kind
			}
			return proto.Pools[i].Collateral < proto.Pools[j].Collateral
		})
		protocols = append(protocols, *proto)
	}
	sort.Slice(protocols, func(i, j int) bool { return protocols[i].Protocol < protocols[j].Protocol })
	return protocols, total, nil
}

// valueTroves reprices every trove from its stored collateral and debt
// quantities. The net value written at collection time is ignored so
// the view stays consistent with current price resolution.
func (s *ValuationService) valueTroves(ctx context.Context, addressIDs []int64, snap *models.Snapshot, log *zap.SugaredLogger) ([]TroveLine, decimal.Decimal, error) {
	var debtAsset *models.Asset
	total := decimal.Zero
	var lines []TroveLine

	for _, addressID := range addressIDs {
		rows, err := s.troves.ListSnapshots(ctx, addressID, snap.ID)
		if err != nil {
			return nil, decimal.Zero, err
		}
		for _, row := range rows {
			if debtAsset == nil {
				debtAsset, err = s.assets.GetAsset(ctx, s.debtAsset)
				if err != nil {
					return nil, decimal.Zero, err
				}
			}
			collateralPrice := s.priceOrZero(ctx, row.Trove.CollateralAsset, snap, log)
			debtPrice := s.priceOrZero(ctx, debtAsset, snap, log)
			net := row.Collateral.Mul(collateralPrice).Sub(row.Debt.Mul(debtPrice))

			lines = append(lines, TroveLine{
				ExternalID:       row.Trove.ExternalID,
				CollateralSymbol: row.Trove.CollateralAsset.Symbol,
				Collateral:       row.Collateral,
				Debt:             row.Debt,
				InterestRate:     row.InterestRate,
				NetValue:         net,
			})
			total = total.Add(net)
		}
	}
	sort.Slice(lines, func(i, j int) bool { return lines[i].ExternalID < lines[j].ExternalID })
	return lines, total, nil
}

func (s *ValuationService) valueStaking(ctx context.Context, addressIDs []int64, snap *models.Snapshot, log *zap.SugaredLogger) (StakingValuation, error) {
	staking := StakingValuation{}

	for _, addressID := range addressIDs {
		rows, err := s.validators.ListSnapshots(ctx, addressID, snap.ID)
		if err != nil {
			return staking, err
		}
		for _, row := range rows {
			staking.ValidatorCount++
			staking.Balance = staking.Balance.Add(row.Balance)
			staking.Rewards = staking.Rewards.Add(row.Rewards)
		}
	}
	if staking.ValidatorCount == 0 {
		return staking, nil
	}

	eth, err := s.assets.GetAssetBySymbol(ctx, "ETH")
	if err != nil {
		return staking, err
	}
	price := s.priceOrZero(ctx, eth, snap, log)
	staking.Value = staking.Balance.Mul(price)
	return staking, nil
}

// GetRewards reports accrued reward quantities at the latest snapshot
func (s *ValuationService) GetRewards(ctx context.Context, addressIDs []int64) (*RewardsView, error) {
	snap, err := s.snapshots.Latest(ctx)
	if err != nil {
		return nil, err
	}
	if snap == nil {
		return nil, apperrors.ErrNoSnapshot
	}

	grouped := make(map[string]map[string]*AssetAmount)
	for _, addressID := range addressIDs {
		rows, err := s.positions.ListPositionSnapshots(ctx, addressID, snap.ID, types.SnapshotReward)
		if err != nil {
			return nil, err
		}
		for _, row := range rows {
			byAsset, ok := grouped[row.Pool.Protocol]
			if !ok {
				byAsset = make(map[string]*AssetAmount)
				grouped[row.Pool.Protocol] = byAsset
			}
			amount, ok := byAsset[row.Asset.Name]
			if !ok {
				amount = &AssetAmount{Asset: row.Asset.Name, Symbol: row.Asset.Symbol}
				byAsset[row.Asset.Name] = amount
			}
			amount.Quantity = amount.Quantity.Add(row.Quantity)
		}
	}

	view := &RewardsView{SnapshotID: snap.ID, CreatedAt: snap.CreatedAt}
	for protocol, byAsset := range grouped {
		proto := ProtocolRewards{Protocol: protocol}
		for _, amount := range byAsset {
			proto.Rewards = append(proto.Rewards, *amount)
		}
		sortAmounts(proto.Rewards)
		view.Protocols = append(view.Protocols, proto)
	}
	sort.Slice(view.Protocols, func(i, j int) bool { return view.Protocols[i].Protocol < view.Protocols[j].Protocol })

	for _, addressID := range addressIDs {
		rows, err := s.validators.ListSnapshots(ctx, addressID, snap.ID)
		if err != nil {
			return nil, err
		}
		for _, row := range rows {
			view.StakingRewards = view.StakingRewards.Add(row.Rewards)
		}
	}
	return view, nil
}

// CycleErrors returns the structured error rows recorded during the
// cycle that produced a snapshot
func (s *ValuationService) CycleErrors(ctx context.Context, snapshotID int64) ([]*models.CycleError, error) {
	return s.cycleErrors.ListForSnapshot(ctx, snapshotID)
}

// priceOrZero resolves a price and degrades to zero on failure so one
// unpriceable asset cannot take down the whole view
func (s *ValuationService) priceOrZero(ctx context.Context, asset *models.Asset, snap *models.Snapshot, log *zap.SugaredLogger) decimal.Decimal {
	if asset == nil {
		return decimal.Zero
	}
	price, err := s.prices.GetPrice(ctx, asset, snap)
	if err != nil {
		log.Warnw("No price for asset, valuing at zero",
			"asset", asset.Name,
			"snapshotId", snap.ID,
			"error", err)
		return decimal.Zero
	}
	return price
}

func sortAmounts(amounts []AssetAmount) {
	sort.Slice(amounts, func(i, j int) bool { return amounts[i].Asset < amounts[j].Asset })
}
