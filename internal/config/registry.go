package config

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/crypto-tracker/internal/types"
)

// Registry is the versioned protocol configuration handed to the
// collectors at startup. It replaces hard-coded address tables: tests
// substitute a small registry, production loads either the compiled-in
// default below or a JSON override file.
type Registry struct {
	Version   int            `json:"version"`
	Protocols []ProtocolSpec `json:"protocols"`
}

// ProtocolSpec describes one protocol and its pools per network
type ProtocolSpec struct {
	Name     string                `json:"name"`
	Networks map[string][]PoolSpec `json:"networks"`
	Subgraph *SubgraphSpec         `json:"subgraph,omitempty"`
}

// PoolSpec describes a single pool of a protocol on one network
type PoolSpec struct {
	Kind            types.PoolKind `json:"kind"`
	ContractAddress string         `json:"contractAddress,omitempty"`
	Collateral      string         `json:"collateral,omitempty"`
}

// SubgraphSpec describes the subgraph a protocol's off-chain collector
// queries, plus the protocol-specific decoding hints.
type SubgraphSpec struct {
	ID string `json:"id"`
	// CollateralIndex maps the subgraph collIndex to a token symbol
	CollateralIndex map[string]string `json:"collateralIndex,omitempty"`
	// DebtAsset is the price API identifier of the debt-side asset
	DebtAsset string `json:"debtAsset,omitempty"`
}

// Protocol names used by the default registry
const (
	ProtocolLiquityV1 = "Liquity v1"
	ProtocolLiquityV2 = "Liquity v2"
	ProtocolAaveV3    = "Aave v3"
	ProtocolUniswapV3 = "Uniswap v3"
)

// DefaultRegistry returns the compiled-in protocol registry.
func DefaultRegistry() *Registry {
	return &Registry{
		Version: 1,
		Protocols: []ProtocolSpec{
			{
				Name: ProtocolLiquityV1,
				Networks: map[string][]PoolSpec{
					string(types.ChainEthereum): {
						{Kind: types.PoolStaking, ContractAddress: "0x4f9Fbb3f1E99B56e0Fe2892e623Ed36A76Fc605d"},
						{Kind: types.PoolStabilityPool, ContractAddress: "0x66017D22b0f8556afDd19FC67041899Eb65a21bb"},
						{Kind: types.PoolBorrowing},
					},
				},
			},
			{
				Name: ProtocolLiquityV2,
				Networks: map[string][]PoolSpec{
					string(types.ChainEthereum): {
						{Kind: types.PoolBorrowing},
						{Kind: types.PoolStaking, ContractAddress: "0x807def5e7d057df05c796f4bc75c3fe82bd6eee1"},
						{Kind: types.PoolStabilityPool, ContractAddress: "0x5721cbbd64fc7ae3ef44a0a3f9a790a9264cf9bf", Collateral: "WETH"},
						{Kind: types.PoolStabilityPool, ContractAddress: "0x9502b7c397e9aa22fe9db7ef7daf21cd2aebe56b", Collateral: "wstETH"},
						{Kind: types.PoolStabilityPool, ContractAddress: "0xd442e41019b7f5c4dd78f50dc03726c446148695", Collateral: "rETH"},
					},
				},
				Subgraph: &SubgraphSpec{
					ID: "6bg574MHrEZXopJDYTu7S7TAvJKEMsV111gpKLM7ZCA7",
					CollateralIndex: map[string]string{
						"0": "WETH",
						"1": "wstETH",
						"2": "rETH",
					},
					DebtAsset: "liquity-bold-2",
				},
			},
			{
				Name: ProtocolAaveV3,
				Networks: map[string][]PoolSpec{
					string(types.ChainEthereum): {
						{Kind: types.PoolLending, ContractAddress: "0x2f39d218133AFaB8F2B819B1066c7E434Ad94E9e"},
					},
					string(types.ChainArbitrum): {
						{Kind: types.PoolLending, ContractAddress: "0xa97684ead0e402dC232d5A977953DF7ECBaB3CDb"},
					},
					string(types.ChainAvalanche): {
						{Kind: types.PoolLending, ContractAddress: "0xa97684ead0e402dC232d5A977953DF7ECBaB3CDb"},
					},
					string(types.ChainGnosis): {
						{Kind: types.PoolLending, ContractAddress: "0x36616cf17557639614c1cdDb356b1B83fc0B2132"},
					},
					string(types.ChainBase): {
						{Kind: types.PoolLending, ContractAddress: "0xe20fCBdBfFC4Dd138cE8b2E6FBb6CB49777ad64D"},
					},
				},
			},
			{
				Name: ProtocolUniswapV3,
				Networks: map[string][]PoolSpec{
					string(types.ChainEthereum): {
						{Kind: types.PoolAMM},
					},
				},
				Subgraph: &SubgraphSpec{
					ID: "5zvR82QoaXYFyDEKLZ9t6v9adgnptxYpKpSbxtgVENFV",
				},
			},
		},
	}
}

// LoadRegistry returns the protocol registry: the JSON file at path
// when given, the compiled-in default otherwise.
func LoadRegistry(path string) (*Registry, error) {
	if path == "" {
		return DefaultRegistry(), nil
	}

	data, err := os.ReadFile(path) // #nosec G304 - operator-supplied path
	if err != nil {
		return nil, fmt.Errorf("failed to read protocol registry: %w", err)
	}

	var registry Registry
	if err := json.Unmarshal(data, &registry); err != nil {
		return nil, fmt.Errorf("failed to parse protocol registry: %w", err)
	}
	if registry.Version == 0 {
		return nil, fmt.Errorf("protocol registry missing version")
	}

	return &registry, nil
}

// Protocol returns the ProtocolSpec with the given name, or nil.
func (r *Registry) Protocol(name string) *ProtocolSpec {
	for i := range r.Protocols {
		if r.Protocols[i].Name == name {
			return &r.Protocols[i]
		}
	}
	return nil
}

// Pools returns the pools of a protocol on one network filtered by
// kind. Missing protocol or network yields an empty slice.
func (r *Registry) Pools(protocol string, chain types.ChainID, kind types.PoolKind) []PoolSpec {
	spec := r.Protocol(protocol)
	if spec == nil {
		return nil
	}

	var pools []PoolSpec
	for _, pool := range spec.Networks[string(chain)] {
		if pool.Kind == kind {
			pools = append(pools, pool)
		}
	}
	return pools
}

// Pool returns the single pool of a protocol on one network with the
// given kind, or nil when absent or ambiguous.
func (r *Registry) Pool(protocol string, chain types.ChainID, kind types.PoolKind) *PoolSpec {
	pools := r.Pools(protocol, chain, kind)
	if len(pools) != 1 {
		return nil
	}
	return &pools[0]
}
