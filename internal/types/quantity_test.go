package types

import (
	"math/big"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func TestFromWei(t *testing.T) {
	oneEther := new(big.Int)
	oneEther.SetString("1000000000000000000", 10)

	got := FromWei(oneEther)
	require.True(t, got.Equal(decimal.NewFromInt(1)), "1e18 wei should be exactly 1")

	half := new(big.Int)
	half.SetString("500000000000000000", 10)
	require.Equal(t, "0.5", FromWei(half).String())
}

func TestFromGwei(t *testing.T) {
	balance := big.NewInt(32_000_000_000) // 32 ETH in gwei
	require.Equal(t, "32", FromGwei(balance).String())
}

func TestFromRawAmountNil(t *testing.T) {
	require.True(t, FromRawAmount(nil, WeiDecimals).IsZero())
}

func TestFromRawString(t *testing.T) {
	got, err := FromRawString("12345000000000000000000", WeiDecimals)
	require.NoError(t, err)
	require.Equal(t, "12345", got.String())

	_, err = FromRawString("not-a-number", WeiDecimals)
	require.Error(t, err)
}

func TestScalingProperties(t *testing.T) {
	properties := gopter.NewProperties(nil)

	// Scaling a raw amount down and shifting back up must round-trip
	// exactly: the conversion is a pure base-10 exponent shift.
	properties.Property("wei scaling round-trips", prop.ForAll(
		func(raw int64) bool {
			v := FromWei(big.NewInt(raw))
			return v.Shift(WeiDecimals).Equal(decimal.NewFromInt(raw))
		},
		gen.Int64(),
	))

	properties.Property("scaling preserves sign", prop.ForAll(
		func(raw int64) bool {
			return FromWei(big.NewInt(raw)).Sign() == big.NewInt(raw).Sign()
		},
		gen.Int64(),
	))

	properties.TestingRun(t)
}
