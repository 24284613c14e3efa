// Package types provides common type definitions for the crypto tracker system.
package types

// ChainID represents supported blockchain networks
type ChainID string

const (
	// ChainEthereum represents the Ethereum mainnet
	ChainEthereum ChainID = "ethereum"
	// ChainArbitrum represents the Arbitrum network
	ChainArbitrum ChainID = "arbitrum"
	// ChainAvalanche represents the Avalanche C-Chain
	ChainAvalanche ChainID = "avalanche"
	// ChainGnosis represents the Gnosis Chain
	ChainGnosis ChainID = "gnosis"
	// ChainBase represents the Base network
	ChainBase ChainID = "base"
)

// PoolKind represents the kind of on-chain venue a pool is
type PoolKind string

const (
	// PoolStaking represents a protocol staking contract
	PoolStaking PoolKind = "staking"
	// PoolLending represents a lending market
	PoolLending PoolKind = "lending"
	// PoolStabilityPool represents a stability pool
	PoolStabilityPool PoolKind = "stability_pool"
	// PoolBorrowing represents a collateralized borrowing venue
	PoolBorrowing PoolKind = "borrowing"
	// PoolAMM represents an automated market maker pool
	PoolAMM PoolKind = "amm"
)

// SnapshotKind discriminates position snapshot rows between principal
// balances and accrued rewards. It is carried explicitly through the
// write path instead of being inferred from a boolean flag.
type SnapshotKind string

const (
	// SnapshotBalance represents a principal balance measurement
	SnapshotBalance SnapshotKind = "balance"
	// SnapshotReward represents an accrued reward measurement
	SnapshotReward SnapshotKind = "reward"
)

// WalletType classifies a tracked address
type WalletType string

const (
	// WalletHot represents a hot wallet
	WalletHot WalletType = "HOT"
	// WalletCold represents a cold wallet
	WalletCold WalletType = "COLD"
	// WalletSmart represents a custodial smart-contract wallet
	WalletSmart WalletType = "SMART"
)

// CycleStatus represents the state of an update cycle
type CycleStatus string

const (
	// CycleRunning represents a cycle with outstanding work
	CycleRunning CycleStatus = "running"
	// CycleCompleted represents a cycle whose work units all finished
	CycleCompleted CycleStatus = "completed"
)

// UpdateCategory identifies one of the top-level units of work in an
// update cycle
type UpdateCategory string

const (
	// CategoryPrices is the per-cycle price update
	CategoryPrices UpdateCategory = "prices"
	// CategoryWalletAssets is wallet balance collection
	CategoryWalletAssets UpdateCategory = "wallet_assets"
	// CategoryStaking is validator staking collection
	CategoryStaking UpdateCategory = "staking"
	// CategoryProtocols is protocol position collection
	CategoryProtocols UpdateCategory = "protocols"
)

// ServiceError represents a structured error response
type ServiceError struct {
	Code    string                 `json:"code"`
	Message string                 `json:"message"`
	Details map[string]interface{} `json:"details,omitempty"`
}

func (e *ServiceError) Error() string {
	return e.Message
}
