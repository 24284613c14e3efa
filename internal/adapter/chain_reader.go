// Package adapter provides clients for the external surfaces the
// tracker reads from: EVM JSON-RPC nodes, The Graph gateway, the price
// API and the beacon chain explorer.
package adapter

import (
	"context"
	"fmt"
	"math/big"

	"github.com/crypto-tracker/internal/types"
)

// ChainReader reads on-chain state. Implementations are safe for
// concurrent use by collectors running in parallel.
type ChainReader interface {
	// NativeBalance returns the native coin balance of an address in wei
	NativeBalance(ctx context.Context, network types.ChainID, address string) (*big.Int, error)

	// TokenBalance returns the ERC-20 balance of a holder in the token's
	// smallest unit
	TokenBalance(ctx context.Context, network types.ChainID, token, holder string) (*big.Int, error)

	// Call executes a read-only contract call. The method must be one of
	// the registered protocol methods; results are returned unpacked in
	// declaration order.
	Call(ctx context.Context, network types.ChainID, contract, method string, args ...interface{}) ([]interface{}, error)
}

// AdapterError wraps errors with the chain and operation that failed
type AdapterError struct {
	Chain   types.ChainID
	Op      string
	Err     error
	Details map[string]interface{}
}

func (e *AdapterError) Error() string {
	if len(e.Details) > 0 {
		return fmt.Sprintf("chain adapter error [%s:%s]: %v (details: %+v)", e.Chain, e.Op, e.Err, e.Details)
	}
	return fmt.Sprintf("chain adapter error [%s:%s]: %v", e.Chain, e.Op, e.Err)
}

func (e *AdapterError) Unwrap() error {
	return e.Err
}

// NewAdapterError creates a new AdapterError
func NewAdapterError(chain types.ChainID, op string, err error, details map[string]interface{}) *AdapterError {
	return &AdapterError{
		Chain:   chain,
		Op:      op,
		Err:     err,
		Details: details,
	}
}
