package adapter

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/crypto-tracker/internal/config"
	"github.com/crypto-tracker/internal/errors"
	"github.com/crypto-tracker/internal/ratelimit"
)

func priceAPIConfig(baseURL string) *config.PriceAPIConfig {
	return &config.PriceAPIConfig{
		BaseURL:    baseURL,
		Currency:   "eur",
		RatePerSec: 1000,
	}
}

func TestSpotPricesBatchesToPageCap(t *testing.T) {
	var batches []string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/simple/price", r.URL.Path)
		batches = append(batches, r.URL.Query().Get("ids"))
		_, _ = w.Write([]byte(`{"ethereum": {"eur": 2500.5}, "liquity": {"eur": 1.05}}`))
	}))
	defer server.Close()

	cfg := priceAPIConfig(server.URL)
	cfg.SpotPageCap = 2
	client := NewCoinGeckoClient(cfg)

	prices, err := client.SpotPrices(context.Background(), []string{"ethereum", "liquity", "aave"})
	require.NoError(t, err)

	require.Len(t, batches, 2)
	assert.Equal(t, "ethereum,liquity", batches[0])
	assert.Equal(t, "aave", batches[1])

	assert.True(t, prices["ethereum"].Equal(decimal.RequireFromString("2500.5")))
	_, ok := prices["aave"]
	assert.False(t, ok, "unquoted ids are absent, not zero")
}

func TestHistoricalPrice(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/coins/ethereum/history", r.URL.Path)
		assert.Equal(t, "01-05-2024", r.URL.Query().Get("date"))
		_, _ = w.Write([]byte(`{"market_data": {"current_price": {"eur": 3211.07, "usd": 3500.0}}}`))
	}))
	defer server.Close()

	client := NewCoinGeckoClient(priceAPIConfig(server.URL))

	price, err := client.HistoricalPrice(context.Background(), "ethereum", mustDate(t, "2024-05-01"))
	require.NoError(t, err)
	assert.True(t, price.Equal(decimal.RequireFromString("3211.07")))
}

func TestHistoricalPriceNoMarketData(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"id": "ethereum"}`))
	}))
	defer server.Close()

	client := NewCoinGeckoClient(priceAPIConfig(server.URL))

	_, err := client.HistoricalPrice(context.Background(), "ethereum", mustDate(t, "2024-05-01"))
	require.Error(t, err)
	assert.True(t, errors.IsPriceUnavailable(err))
}

func TestBudgetStopsRequests(t *testing.T) {
	var requests atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests.Add(1)
		_, _ = w.Write([]byte(`{"ethereum": {"eur": 2500}}`))
	}))
	defer server.Close()

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	budget, err := ratelimit.NewBudget(&ratelimit.BudgetConfig{Redis: rdb, Limit: 1})
	require.NoError(t, err)

	client := NewCoinGeckoClient(priceAPIConfig(server.URL))
	client.SetBudget(budget)

	_, err = client.SpotPrices(context.Background(), []string{"ethereum"})
	require.NoError(t, err)

	_, err = client.SpotPrices(context.Background(), []string{"ethereum"})
	require.ErrorIs(t, err, ratelimit.ErrBudgetExhausted)
	assert.Equal(t, int32(1), requests.Load(), "exhausted budget must not reach the API")
}
