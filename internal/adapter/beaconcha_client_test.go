package adapter

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/crypto-tracker/internal/config"
)

func mustDate(t *testing.T, value string) time.Time {
	t.Helper()
	date, err := time.Parse("2006-01-02", value)
	require.NoError(t, err)
	return date
}

func TestValidatorIndexes(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/withdrawalCredentials/0xAbC", r.URL.Path)
		_, _ = w.Write([]byte(`{"data": [{"validatorindex": 101}, {"validatorindex": 202}]}`))
	}))
	defer server.Close()

	client := NewBeaconClient(&config.BeaconConfig{BaseURL: server.URL})

	indexes, err := client.ValidatorIndexes(context.Background(), "0xAbC")
	require.NoError(t, err)
	assert.Equal(t, []int64{101, 202}, indexes)
}

func TestValidatorsDecodesArrayAndScalesGwei(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"data": [
			{"validatorindex": 1, "pubkey": "0xaa", "balance": 32050000000, "status": "active_online", "activationepoch": 0},
			{"validatorindex": 2, "pubkey": "0xbb", "balance": 0, "status": "exited", "activationepoch": 0}
		]}`))
	}))
	defer server.Close()

	client := NewBeaconClient(&config.BeaconConfig{BaseURL: server.URL})

	validators, err := client.Validators(context.Background(), []int64{1, 2})
	require.NoError(t, err)

	require.Len(t, validators, 1, "exited validators are dropped")
	assert.Equal(t, int64(1), validators[0].Index)
	assert.Equal(t, "32.05", validators[0].Balance.String())
	assert.Equal(t, "2020-12-01", validators[0].ActivationDate)
}

func TestValidatorsDecodesSingleObject(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"data": {"validatorindex": 7, "pubkey": "0xcc", "balance": 32000000000, "status": "active_online", "activationepoch": 100}}`))
	}))
	defer server.Close()

	client := NewBeaconClient(&config.BeaconConfig{BaseURL: server.URL})

	validators, err := client.Validators(context.Background(), []int64{7})
	require.NoError(t, err)
	require.Len(t, validators, 1)
	assert.Equal(t, "0xcc", validators[0].PublicKey)
}

func TestRewardsSumsExecutionAndConsensus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/1/execution/performance":
			// wei
			_, _ = w.Write([]byte(`{"data": [{"validatorindex": 1, "performanceTotal": 1000000000000000000}]}`))
		case "/1/performance":
			// gwei
			_, _ = w.Write([]byte(`{"data": [{"validatorindex": 1, "performancetotal": 2000000000}]}`))
		default:
			t.Errorf("unexpected path %s", r.URL.Path)
		}
	}))
	defer server.Close()

	client := NewBeaconClient(&config.BeaconConfig{BaseURL: server.URL})

	rewards, err := client.Rewards(context.Background(), []int64{1})
	require.NoError(t, err)
	assert.True(t, rewards[1].Equal(decimal.NewFromInt(3)), "1 ETH execution + 2 ETH consensus")
}

func TestRewardsEmptyIndexes(t *testing.T) {
	client := NewBeaconClient(&config.BeaconConfig{BaseURL: "http://unused"})

	rewards, err := client.Rewards(context.Background(), nil)
	require.NoError(t, err)
	assert.Nil(t, rewards)
}

func TestJoinIndexes(t *testing.T) {
	assert.Equal(t, "1,42,7", joinIndexes([]int64{1, 42, 7}))
	assert.Equal(t, "", joinIndexes(nil))
}

func TestEpochToDate(t *testing.T) {
	assert.Equal(t, "2020-12-01", epochToDate(0))
	// 225 epochs per day
	assert.Equal(t, "2020-12-02", epochToDate(226))
}
