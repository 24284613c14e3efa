package types

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestServiceError(t *testing.T) {
	err := &ServiceError{
		Code:    "PRICE_UNAVAILABLE",
		Message: "price data for ethereum on 2024-05-01 not found",
		Details: map[string]interface{}{"asset": "ethereum"},
	}
	assert.Equal(t, "price data for ethereum on 2024-05-01 not found", err.Error())
}

func TestUpdateCategories(t *testing.T) {
	// Category values are persisted in cycle error rows; renaming one
	// breaks historical reports.
	assert.Equal(t, UpdateCategory("prices"), CategoryPrices)
	assert.Equal(t, UpdateCategory("wallet_assets"), CategoryWalletAssets)
	assert.Equal(t, UpdateCategory("staking"), CategoryStaking)
	assert.Equal(t, UpdateCategory("protocols"), CategoryProtocols)
}
