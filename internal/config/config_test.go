package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/crypto-tracker/internal/types"
)

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, "crypto_tracker", cfg.Database.Postgres.Database)
	assert.Equal(t, "eur", cfg.PriceAPI.Currency)
	assert.Equal(t, "json", cfg.Logging.Format)
	assert.NotZero(t, cfg.Worker.PoolSize)
	assert.Contains(t, cfg.Chains.Chains, "ethereum")
}

func TestLoadConfigEnvOverride(t *testing.T) {
	t.Setenv("PRICE_CURRENCY", "usd")
	t.Setenv("ETHEREUM_RPC_URL", "https://eth.example.test")

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, "usd", cfg.PriceAPI.Currency)
	assert.Equal(t, "https://eth.example.test", cfg.Chains.Chains["ethereum"].RPCURL)
}

func TestDefaultRegistry(t *testing.T) {
	reg := DefaultRegistry()
	require.NotNil(t, reg)
	assert.Equal(t, 1, reg.Version)

	staking := reg.Pool(ProtocolLiquityV1, types.ChainEthereum, types.PoolStaking)
	require.NotNil(t, staking)
	assert.NotEmpty(t, staking.ContractAddress)

	siblings := reg.Pools(ProtocolLiquityV2, types.ChainEthereum, types.PoolStabilityPool)
	assert.Len(t, siblings, 3, "Liquity v2 has one stability pool per collateral")

	lending := reg.Pools(ProtocolAaveV3, types.ChainGnosis, types.PoolLending)
	assert.Len(t, lending, 1)

	troveSpec := reg.Protocol(ProtocolLiquityV2)
	require.NotNil(t, troveSpec.Subgraph)
	assert.Equal(t, "WETH", troveSpec.Subgraph.CollateralIndex["0"])
}

func TestRegistryUnknownLookups(t *testing.T) {
	reg := DefaultRegistry()
	assert.Nil(t, reg.Protocol("Compound"))
	assert.Empty(t, reg.Pools(ProtocolAaveV3, "solana", types.PoolLending))
	assert.Nil(t, reg.Pool(ProtocolLiquityV2, types.ChainEthereum, types.PoolStabilityPool),
		"ambiguous pool lookups return nil")
}

func TestLoadRegistryFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "registry.json")
	payload := `{
		"version": 2,
		"protocols": [
			{
				"name": "Testnet Staking",
				"networks": {
					"ethereum": [{"kind": "staking", "contractAddress": "0x1"}]
				}
			}
		]
	}`
	require.NoError(t, os.WriteFile(path, []byte(payload), 0o600))

	reg, err := LoadRegistry(path)
	require.NoError(t, err)
	assert.Equal(t, 2, reg.Version)
	require.NotNil(t, reg.Pool("Testnet Staking", types.ChainEthereum, types.PoolStaking))
}

func TestLoadRegistryRejectsUnversioned(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "registry.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"protocols": []}`), 0o600))

	_, err := LoadRegistry(path)
	require.Error(t, err)
}
