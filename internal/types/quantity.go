package types

import (
	"math/big"

	"github.com/shopspring/decimal"
)

// Fixed-point scales used by the chains and APIs this system reads.
// Raw integer quantities are converted to human-scaled decimals exactly
// once, at the collector boundary; everything downstream (storage,
// valuation) only ever sees human-scaled values.
const (
	// WeiDecimals is the scale of wei-denominated EVM quantities
	WeiDecimals = 18
	// GweiDecimals is the scale of gwei-denominated beacon chain quantities
	GweiDecimals = 9
	// RateDecimals is the scale of Liquity interest rates (1e16 = 1%)
	RateDecimals = 16
)

// FromRawAmount converts a raw fixed-point integer amount to a
// human-scaled decimal using the given number of decimals.
func FromRawAmount(raw *big.Int, decimals int32) decimal.Decimal {
	if raw == nil {
		return decimal.Zero
	}
	return decimal.NewFromBigInt(raw, -decimals)
}

// FromWei converts a wei amount to a human-scaled decimal.
func FromWei(raw *big.Int) decimal.Decimal {
	return FromRawAmount(raw, WeiDecimals)
}

// FromGwei converts a gwei amount to a human-scaled decimal.
func FromGwei(raw *big.Int) decimal.Decimal {
	return FromRawAmount(raw, GweiDecimals)
}

// FromRawString converts a raw fixed-point integer rendered as a decimal
// string (the form subgraphs return) to a human-scaled decimal.
func FromRawString(raw string, decimals int32) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Zero, err
	}
	return d.Shift(-decimals), nil
}
