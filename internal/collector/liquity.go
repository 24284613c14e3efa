package collector

import (
	"context"
	stderrors "errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"github.com/crypto-tracker/internal/adapter"
	"github.com/crypto-tracker/internal/config"
	"github.com/crypto-tracker/internal/logging"
	"github.com/crypto-tracker/internal/models"
	"github.com/crypto-tracker/internal/types"
)

// LiquityStakingCollector reads LQTY stakes for both protocol versions.
// Both versions stake through the same v1 staking contract; v2 stakes
// sit behind a per-user governance proxy resolved on every run.
type LiquityStakingCollector struct {
	chain    adapter.ChainReader
	writer   *Writer
	registry *config.Registry
}

// NewLiquityStakingCollector creates a new LQTY staking collector
func NewLiquityStakingCollector(chain adapter.ChainReader, writer *Writer, registry *config.Registry) *LiquityStakingCollector {
	return &LiquityStakingCollector{chain: chain, writer: writer, registry: registry}
}

func (c *LiquityStakingCollector) Name() string { return "liquity-staking" }

func (c *LiquityStakingCollector) Category() types.UpdateCategory { return types.CategoryProtocols }

// Collect reads v1 and v2 stakes and their pending gains. The two
// versions are read independently so one failing leaves the other's
// rows intact; errors are joined after both ran.
func (c *LiquityStakingCollector) Collect(ctx context.Context, address *models.TrackedAddress, snapshot *models.Snapshot) error {
	var errs []error
	if spec := c.registry.Pool(config.ProtocolLiquityV1, types.ChainEthereum, types.PoolStaking); spec != nil {
		if err := c.collectStakes(ctx, address, snapshot, config.ProtocolLiquityV1, spec, address.PublicAddress); err != nil {
			errs = append(errs, err)
		}
	}
	if spec := c.registry.Pool(config.ProtocolLiquityV2, types.ChainEthereum, types.PoolStaking); spec != nil {
		if err := c.collectV2Stakes(ctx, address, snapshot, spec); err != nil {
			errs = append(errs, err)
		}
	}
	return stderrors.Join(errs...)
}

func (c *LiquityStakingCollector) collectV2Stakes(ctx context.Context, address *models.TrackedAddress, snapshot *models.Snapshot, spec *config.PoolSpec) error {
	// v2 stakes are held by a proxy derived from the governance contract
	results, err := c.chain.Call(ctx, types.ChainEthereum, spec.ContractAddress, "deriveUserProxyAddress", common.HexToAddress(address.PublicAddress))
	if err != nil {
		return err
	}
	proxy, ok := results[0].(common.Address)
	if !ok {
		return fmt.Errorf("unexpected proxy address type %T", results[0])
	}
	return c.collectStakes(ctx, address, snapshot, config.ProtocolLiquityV2, spec, proxy.Hex())
}

// collectStakes reads stakes held by staker from the v1 staking
// contract and records them against the given protocol's pool
func (c *LiquityStakingCollector) collectStakes(ctx context.Context, address *models.TrackedAddress, snapshot *models.Snapshot, protocol string, spec *config.PoolSpec, staker string) error {
	v1Spec := c.registry.Pool(config.ProtocolLiquityV1, types.ChainEthereum, types.PoolStaking)
	stakingContract := v1Spec.ContractAddress
	stakerAddr := common.HexToAddress(staker)

	stakes, err := c.callAmount(ctx, stakingContract, "stakes", stakerAddr)
	if err != nil {
		return err
	}
	if stakes.Sign() == 0 {
		return nil
	}

	ethGain, err := c.callAmount(ctx, stakingContract, "getPendingETHGain", stakerAddr)
	if err != nil {
		return err
	}
	lusdGain, err := c.callAmount(ctx, stakingContract, "getPendingLUSDGain", stakerAddr)
	if err != nil {
		return err
	}

	pool, err := c.writer.Pool(ctx, protocol, types.ChainEthereum, spec)
	if err != nil {
		return err
	}

	lqty, err := c.writer.AssetBySymbol(ctx, "LQTY")
	if err != nil {
		return err
	}
	eth, err := c.writer.AssetBySymbol(ctx, "ETH")
	if err != nil {
		return err
	}
	lusd, err := c.writer.AssetBySymbol(ctx, "LUSD")
	if err != nil {
		return err
	}

	if err := c.writer.SavePoolQuantity(ctx, pool, address, "", lqty, snapshot, types.SnapshotBalance, types.FromWei(stakes)); err != nil {
		return err
	}
	if err := c.writer.SavePoolQuantity(ctx, pool, address, "", eth, snapshot, types.SnapshotReward, types.FromWei(ethGain)); err != nil {
		return err
	}
	return c.writer.SavePoolQuantity(ctx, pool, address, "", lusd, snapshot, types.SnapshotReward, types.FromWei(lusdGain))
}

func (c *LiquityStakingCollector) callAmount(ctx context.Context, contract, method string, args ...interface{}) (*big.Int, error) {
	results, err := c.chain.Call(ctx, types.ChainEthereum, contract, method, args...)
	if err != nil {
		return nil, err
	}
	return asBigInt(results[0], method)
}

// LiquityStabilityPoolCollector reads stability pool deposits and gains
// for both protocol versions. The v2 deployment runs one pool per
// collateral; each is read independently.
type LiquityStabilityPoolCollector struct {
	chain    adapter.ChainReader
	writer   *Writer
	registry *config.Registry
}

// NewLiquityStabilityPoolCollector creates a new stability pool collector
func NewLiquityStabilityPoolCollector(chain adapter.ChainReader, writer *Writer, registry *config.Registry) *LiquityStabilityPoolCollector {
	return &LiquityStabilityPoolCollector{chain: chain, writer: writer, registry: registry}
}

func (c *LiquityStabilityPoolCollector) Name() string { return "liquity-stability-pool" }

func (c *LiquityStabilityPoolCollector) Category() types.UpdateCategory {
	return types.CategoryProtocols
}

func (c *LiquityStabilityPoolCollector) Collect(ctx context.Context, address *models.TrackedAddress, snapshot *models.Snapshot) error {
	var errs []error
	if err := c.collectV1(ctx, address, snapshot); err != nil {
		errs = append(errs, err)
	}
	if err := c.collectV2(ctx, address, snapshot); err != nil {
		errs = append(errs, err)
	}
	return stderrors.Join(errs...)
}

func (c *LiquityStabilityPoolCollector) collectV1(ctx context.Context, address *models.TrackedAddress, snapshot *models.Snapshot) error {
	spec := c.registry.Pool(config.ProtocolLiquityV1, types.ChainEthereum, types.PoolStabilityPool)
	if spec == nil {
		return nil
	}
	user := common.HexToAddress(address.PublicAddress)

	// v1 deposits return (initialValue, frontEndTag)
	results, err := c.chain.Call(ctx, types.ChainEthereum, spec.ContractAddress, "depositsV1", user)
	if err != nil {
		return err
	}
	deposit, err := asBigInt(results[0], "depositsV1")
	if err != nil {
		return err
	}
	if deposit.Sign() == 0 {
		return nil
	}

	ethGain, err := c.callAmount(ctx, spec.ContractAddress, "getDepositorETHGain", user)
	if err != nil {
		return err
	}
	lqtyGain, err := c.callAmount(ctx, spec.ContractAddress, "getDepositorLQTYGain", user)
	if err != nil {
		return err
	}

	pool, err := c.writer.Pool(ctx, config.ProtocolLiquityV1, types.ChainEthereum, spec)
	if err != nil {
		return err
	}

	lusd, err := c.writer.AssetBySymbol(ctx, "LUSD")
	if err != nil {
		return err
	}
	eth, err := c.writer.AssetBySymbol(ctx, "ETH")
	if err != nil {
		return err
	}
	lqty, err := c.writer.AssetBySymbol(ctx, "LQTY")
	if err != nil {
		return err
	}

	if err := c.writer.SavePoolQuantity(ctx, pool, address, "", lusd, snapshot, types.SnapshotBalance, types.FromWei(deposit)); err != nil {
		return err
	}
	if err := c.writer.SavePoolQuantity(ctx, pool, address, "", eth, snapshot, types.SnapshotReward, types.FromWei(ethGain)); err != nil {
		return err
	}
	return c.writer.SavePoolQuantity(ctx, pool, address, "", lqty, snapshot, types.SnapshotReward, types.FromWei(lqtyGain))
}

// collectV2 sweeps every v2 stability pool. Each pool is read
// independently; one pool failing does not stop its siblings, and the
// per-pool errors are joined after the sweep.
func (c *LiquityStabilityPoolCollector) collectV2(ctx context.Context, address *models.TrackedAddress, snapshot *models.Snapshot) error {
	specs := c.registry.Pools(config.ProtocolLiquityV2, types.ChainEthereum, types.PoolStabilityPool)
	user := common.HexToAddress(address.PublicAddress)
	log := logging.FromContext(ctx)

	var errs []error
	for i := range specs {
		if err := c.collectV2Pool(ctx, address, snapshot, &specs[i], user); err != nil {
			log.Warnw("Failed to collect stability pool position",
				"contract", specs[i].ContractAddress,
				"error", err)
			errs = append(errs, err)
		}
	}
	return stderrors.Join(errs...)
}

func (c *LiquityStabilityPoolCollector) collectV2Pool(ctx context.Context, address *models.TrackedAddress, snapshot *models.Snapshot, spec *config.PoolSpec, user common.Address) error {
	deposit, err := c.callAmount(ctx, spec.ContractAddress, "deposits", user)
	if err != nil {
		return err
	}
	if deposit.Sign() == 0 {
		return nil
	}

	collGain, err := c.callAmount(ctx, spec.ContractAddress, "getDepositorCollGain", user)
	if err != nil {
		return err
	}
	yieldGain, err := c.callAmount(ctx, spec.ContractAddress, "getDepositorYieldGain", user)
	if err != nil {
		return err
	}

	pool, err := c.writer.Pool(ctx, config.ProtocolLiquityV2, types.ChainEthereum, spec)
	if err != nil {
		return err
	}

	bold, err := c.writer.AssetBySymbol(ctx, "BOLD")
	if err != nil {
		return err
	}

	if err := c.writer.SavePoolQuantity(ctx, pool, address, "", bold, snapshot, types.SnapshotBalance, types.FromWei(deposit)); err != nil {
		return err
	}
	if err := c.writer.SavePoolQuantity(ctx, pool, address, "", bold, snapshot, types.SnapshotReward, types.FromWei(yieldGain)); err != nil {
		return err
	}

	if spec.Collateral == "" {
		logging.FromContext(ctx).Warnw("Stability pool has no collateral symbol, skipping collateral gain",
			"contract", spec.ContractAddress)
		return nil
	}
	collateral, err := c.writer.AssetBySymbol(ctx, spec.Collateral)
	if err != nil {
		return err
	}
	return c.writer.SavePoolQuantity(ctx, pool, address, "", collateral, snapshot, types.SnapshotReward, types.FromWei(collGain))
}

func (c *LiquityStabilityPoolCollector) callAmount(ctx context.Context, contract, method string, args ...interface{}) (*big.Int, error) {
	results, err := c.chain.Call(ctx, types.ChainEthereum, contract, method, args...)
	if err != nil {
		return nil, err
	}
	return asBigInt(results[0], method)
}

func asBigInt(v interface{}, method string) (*big.Int, error) {
	amount, ok := v.(*big.Int)
	if !ok {
		return nil, fmt.Errorf("unexpected %s result type %T", method, v)
	}
	return amount, nil
}
