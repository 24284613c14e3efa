package adapter

import (
	"context"
	"fmt"
	"math/big"
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethclient"

	"github.com/crypto-tracker/internal/config"
	"github.com/crypto-tracker/internal/errors"
	"github.com/crypto-tracker/internal/types"
)

// Read-only protocol methods the collectors call. Each entry carries a
// one-function ABI; Liquity v1 and v2 stability pools both expose
// "deposits" with different signatures, so the v1 variant is registered
// under its own key.
var methodABIs = map[string]methodSpec{
	"stakes": {
		method: "stakes",
		json:   `[{"name":"stakes","type":"function","stateMutability":"view","inputs":[{"name":"user","type":"address"}],"outputs":[{"name":"","type":"uint256"}]}]`,
	},
	"getPendingETHGain": {
		method: "getPendingETHGain",
		json:   `[{"name":"getPendingETHGain","type":"function","stateMutability":"view","inputs":[{"name":"user","type":"address"}],"outputs":[{"name":"","type":"uint256"}]}]`,
	},
	"getPendingLUSDGain": {
		method: "getPendingLUSDGain",
		json:   `[{"name":"getPendingLUSDGain","type":"function","stateMutability":"view","inputs":[{"name":"user","type":"address"}],"outputs":[{"name":"","type":"uint256"}]}]`,
	},
	"depositsV1": {
		method: "deposits",
		json:   `[{"name":"deposits","type":"function","stateMutability":"view","inputs":[{"name":"depositor","type":"address"}],"outputs":[{"name":"initialValue","type":"uint256"},{"name":"frontEndTag","type":"address"}]}]`,
	},
	"deposits": {
		method: "deposits",
		json:   `[{"name":"deposits","type":"function","stateMutability":"view","inputs":[{"name":"depositor","type":"address"}],"outputs":[{"name":"","type":"uint256"}]}]`,
	},
	"getDepositorETHGain": {
		method: "getDepositorETHGain",
		json:   `[{"name":"getDepositorETHGain","type":"function","stateMutability":"view","inputs":[{"name":"depositor","type":"address"}],"outputs":[{"name":"","type":"uint256"}]}]`,
	},
	"getDepositorLQTYGain": {
		method: "getDepositorLQTYGain",
		json:   `[{"name":"getDepositorLQTYGain","type":"function","stateMutability":"view","inputs":[{"name":"depositor","type":"address"}],"outputs":[{"name":"","type":"uint256"}]}]`,
	},
	"getDepositorCollGain": {
		method: "getDepositorCollGain",
		json:   `[{"name":"getDepositorCollGain","type":"function","stateMutability":"view","inputs":[{"name":"depositor","type":"address"}],"outputs":[{"name":"","type":"uint256"}]}]`,
	},
	"getDepositorYieldGain": {
		method: "getDepositorYieldGain",
		json:   `[{"name":"getDepositorYieldGain","type":"function","stateMutability":"view","inputs":[{"name":"depositor","type":"address"}],"outputs":[{"name":"","type":"uint256"}]}]`,
	},
	"deriveUserProxyAddress": {
		method: "deriveUserProxyAddress",
		json:   `[{"name":"deriveUserProxyAddress","type":"function","stateMutability":"view","inputs":[{"name":"user","type":"address"}],"outputs":[{"name":"","type":"address"}]}]`,
	},
	"getPoolDataProvider": {
		method: "getPoolDataProvider",
		json:   `[{"name":"getPoolDataProvider","type":"function","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"address"}]}]`,
	},
	"getAllReservesTokens": {
		method: "getAllReservesTokens",
		json:   `[{"name":"getAllReservesTokens","type":"function","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"tuple[]","components":[{"name":"symbol","type":"string"},{"name":"tokenAddress","type":"address"}]}]}]`,
	},
	"getUserReserveData": {
		method: "getUserReserveData",
		json:   `[{"name":"getUserReserveData","type":"function","stateMutability":"view","inputs":[{"name":"asset","type":"address"},{"name":"user","type":"address"}],"outputs":[{"name":"currentATokenBalance","type":"uint256"},{"name":"currentStableDebt","type":"uint256"},{"name":"currentVariableDebt","type":"uint256"},{"name":"principalStableDebt","type":"uint256"},{"name":"scaledVariableDebt","type":"uint256"},{"name":"stableBorrowRate","type":"uint256"},{"name":"liquidityRate","type":"uint256"},{"name":"stableRateLastUpdated","type":"uint40"},{"name":"usageAsCollateralEnabled","type":"bool"}]}]`,
	},
	"balanceOf": {
		method: "balanceOf",
		json:   `[{"name":"balanceOf","type":"function","stateMutability":"view","inputs":[{"name":"owner","type":"address"}],"outputs":[{"name":"","type":"uint256"}]}]`,
	},
}

type methodSpec struct {
	method string
	json   string
}

type parsedMethod struct {
	abi    abi.ABI
	method string
}

// EthereumReader implements ChainReader on go-ethereum JSON-RPC
// clients. Clients are dialed lazily per network and reused.
type EthereumReader struct {
	chains  *config.ChainsConfig
	methods map[string]parsedMethod

	mu      sync.Mutex
	clients map[types.ChainID]*ethclient.Client
}

// NewEthereumReader creates a chain reader for the configured networks
func NewEthereumReader(chains *config.ChainsConfig) (*EthereumReader, error) {
	methods := make(map[string]parsedMethod, len(methodABIs))
	for name, spec := range methodABIs {
		parsed, err := abi.JSON(strings.NewReader(spec.json))
		if err != nil {
			return nil, fmt.Errorf("failed to parse ABI for %s: %w", name, err)
		}
		methods[name] = parsedMethod{abi: parsed, method: spec.method}
	}

	return &EthereumReader{
		chains:  chains,
		methods: methods,
		clients: make(map[types.ChainID]*ethclient.Client),
	}, nil
}

// client returns the JSON-RPC client for a network, dialing on first use
func (r *EthereumReader) client(network types.ChainID) (*ethclient.Client, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if c, ok := r.clients[network]; ok {
		return c, nil
	}

	chainCfg, ok := r.chains.Chains[string(network)]
	if !ok || chainCfg.RPCURL == "" {
		return nil, errors.NewChainError(network, "dial", fmt.Errorf("no RPC URL configured"))
	}

	c, err := ethclient.Dial(chainCfg.RPCURL)
	if err != nil {
		return nil, errors.NewChainError(network, "dial", err)
	}
	r.clients[network] = c
	return c, nil
}

// NativeBalance returns the native coin balance of an address in wei
func (r *EthereumReader) NativeBalance(ctx context.Context, network types.ChainID, address string) (*big.Int, error) {
	if !common.IsHexAddress(address) {
		return nil, NewAdapterError(network, "NativeBalance", fmt.Errorf("invalid address: %s", address), nil)
	}

	c, err := r.client(network)
	if err != nil {
		return nil, err
	}

	balance, err := c.BalanceAt(ctx, common.HexToAddress(address), nil)
	if err != nil {
		return nil, errors.NewChainError(network, "NativeBalance", err)
	}
	return balance, nil
}

// TokenBalance returns the ERC-20 balance of a holder
func (r *EthereumReader) TokenBalance(ctx context.Context, network types.ChainID, token, holder string) (*big.Int, error) {
	results, err := r.Call(ctx, network, token, "balanceOf", common.HexToAddress(holder))
	if err != nil {
		return nil, err
	}
	balance, ok := results[0].(*big.Int)
	if !ok {
		return nil, NewAdapterError(network, "TokenBalance", fmt.Errorf("unexpected balanceOf result type %T", results[0]), nil)
	}
	return balance, nil
}

// Call executes a registered read-only contract method and returns the
// unpacked results in declaration order
func (r *EthereumReader) Call(ctx context.Context, network types.ChainID, contract, method string, args ...interface{}) ([]interface{}, error) {
	spec, ok := r.methods[method]
	if !ok {
		return nil, NewAdapterError(network, "Call", fmt.Errorf("unknown method: %s", method), nil)
	}
	if !common.IsHexAddress(contract) {
		return nil, NewAdapterError(network, "Call", fmt.Errorf("invalid contract address: %s", contract), map[string]interface{}{
			"method": method,
		})
	}

	c, err := r.client(network)
	if err != nil {
		return nil, err
	}

	data, err := spec.abi.Pack(spec.method, args...)
	if err != nil {
		return nil, NewAdapterError(network, "Call", fmt.Errorf("failed to pack %s: %w", method, err), nil)
	}

	to := common.HexToAddress(contract)
	raw, err := c.CallContract(ctx, ethereum.CallMsg{To: &to, Data: data}, nil)
	if err != nil {
		return nil, errors.NewChainError(network, method, err)
	}

	results, err := spec.abi.Unpack(spec.method, raw)
	if err != nil {
		return nil, NewAdapterError(network, "Call", fmt.Errorf("failed to unpack %s: %w", method, err), nil)
	}
	return results, nil
}

// Close closes all dialed clients
func (r *EthereumReader) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, c := range r.clients {
		c.Close()
	}
	r.clients = make(map[types.ChainID]*ethclient.Client)
}
