// Package errors provides categorized error values for the crypto
// tracker core.
package errors

import (
	"errors"
	"fmt"

	"github.com/crypto-tracker/internal/types"
)

// ErrPriceUnavailable is returned when no price can be resolved for an
// asset on a date, after the persisted store and the historical API
// fallback have both been exhausted. Callers must not substitute zero
// or a stale price implicitly.
var ErrPriceUnavailable = errors.New("price unavailable")

// ErrNoSnapshot is returned by read paths that require at least one
// snapshot to exist.
var ErrNoSnapshot = errors.New("no snapshot exists")

// ErrorCategory represents the category of an error
type ErrorCategory string

const (
	// CategoryProvider represents external data provider errors
	// (price API, beacon API, RPC transport)
	CategoryProvider ErrorCategory = "provider"
	// CategorySubgraph represents subgraph query errors
	CategorySubgraph ErrorCategory = "subgraph"
	// CategoryChain represents on-chain read errors
	CategoryChain ErrorCategory = "chain"
	// CategoryDatabase represents database errors
	CategoryDatabase ErrorCategory = "database"
	// CategoryValidation represents validation errors
	CategoryValidation ErrorCategory = "validation"
	// CategoryNotFound represents not found errors
	CategoryNotFound ErrorCategory = "not_found"
	// CategoryPrice represents price resolution errors
	CategoryPrice ErrorCategory = "price"
)

// CategorizedError represents an error with a category and structured
// context
type CategorizedError struct {
	Category ErrorCategory
	Code     string
	Message  string
	Details  map[string]interface{}
	Cause    error
}

// Error implements the error interface
func (e *CategorizedError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause
func (e *CategorizedError) Unwrap() error {
	return e.Cause
}

// ToServiceError converts to a ServiceError
func (e *CategorizedError) ToServiceError() *types.ServiceError {
	return &types.ServiceError{
		Code:    e.Code,
		Message: e.Message,
		Details: e.Details,
	}
}

// NewInvalidAddressError creates an invalid address error
func NewInvalidAddressError(address string) *CategorizedError {
	return &CategorizedError{
		Category: CategoryValidation,
		Code:     "INVALID_ADDRESS",
		Message:  fmt.Sprintf("invalid address format: %s", address),
		Details: map[string]interface{}{
			"address": address,
		},
	}
}

// NewNotFoundError creates a not found error for a named entity
func NewNotFoundError(entity string, key interface{}) *CategorizedError {
	return &CategorizedError{
		Category: CategoryNotFound,
		Code:     "NOT_FOUND",
		Message:  fmt.Sprintf("%s not found", entity),
		Details: map[string]interface{}{
			"entity": entity,
			"key":    key,
		},
	}
}

// NewProviderError creates an external provider error
func NewProviderError(provider string, cause error) *CategorizedError {
	return &CategorizedError{
		Category: CategoryProvider,
		Code:     "PROVIDER_ERROR",
		Message:  fmt.Sprintf("%s request failed", provider),
		Details: map[string]interface{}{
			"provider": provider,
		},
		Cause: cause,
	}
}

// NewSubgraphError creates a subgraph query error
func NewSubgraphError(subgraphID string, cause error) *CategorizedError {
	return &CategorizedError{
		Category: CategorySubgraph,
		Code:     "SUBGRAPH_ERROR",
		Message:  "subgraph query failed",
		Details: map[string]interface{}{
			"subgraphId": subgraphID,
		},
		Cause: cause,
	}
}

// NewChainError creates an on-chain read error
func NewChainError(network types.ChainID, method string, cause error) *CategorizedError {
	return &CategorizedError{
		Category: CategoryChain,
		Code:     "CHAIN_READ_ERROR",
		Message:  fmt.Sprintf("contract read %s failed on %s", method, network),
		Details: map[string]interface{}{
			"network": network,
			"method":  method,
		},
		Cause: cause,
	}
}

// NewDatabaseError creates a database error
func NewDatabaseError(operation string, cause error) *CategorizedError {
	return &CategorizedError{
		Category: CategoryDatabase,
		Code:     "DATABASE_ERROR",
		Message:  fmt.Sprintf("database operation failed: %s", operation),
		Details: map[string]interface{}{
			"operation": operation,
		},
		Cause: cause,
	}
}

// NewPriceUnavailableError wraps ErrPriceUnavailable with asset and
// date context so errors.Is(err, ErrPriceUnavailable) still holds.
func NewPriceUnavailableError(asset string, date string, cause error) error {
	if cause == nil {
		cause = ErrPriceUnavailable
	} else {
		cause = fmt.Errorf("%w: %w", ErrPriceUnavailable, cause)
	}
	return &CategorizedError{
		Category: CategoryPrice,
		Code:     "PRICE_UNAVAILABLE",
		Message:  fmt.Sprintf("price data for %s on %s not found", asset, date),
		Details: map[string]interface{}{
			"asset": asset,
			"date":  date,
		},
		Cause: cause,
	}
}

// IsPriceUnavailable reports whether err stems from price resolution
// exhausting both the store and the API fallback.
func IsPriceUnavailable(err error) bool {
	return errors.Is(err, ErrPriceUnavailable)
}
