package adapter

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/time/rate"

	"github.com/crypto-tracker/internal/config"
	"github.com/crypto-tracker/internal/errors"
	"github.com/crypto-tracker/internal/ratelimit"
	"github.com/crypto-tracker/internal/retry"
)

// CoinGeckoClient fetches spot and historical fiat prices. All requests
// share one rate limiter sized to the API plan; the free tier allows
// well under one request per second.
type CoinGeckoClient struct {
	baseURL    string
	apiKey     string
	currency   string
	pageCap    int
	httpClient *http.Client
	limiter    *rate.Limiter
	budget     *ratelimit.Budget
	retryCfg   *retry.Config
}

// NewCoinGeckoClient creates a new price API client
func NewCoinGeckoClient(cfg *config.PriceAPIConfig) *CoinGeckoClient {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	ratePerSec := cfg.RatePerSec
	if ratePerSec <= 0 {
		ratePerSec = 0.5
	}
	pageCap := cfg.SpotPageCap
	if pageCap <= 0 {
		pageCap = 250
	}
	currency := cfg.Currency
	if currency == "" {
		currency = "eur"
	}

	return &CoinGeckoClient{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:     cfg.APIKey,
		currency:   currency,
		pageCap:    pageCap,
		httpClient: &http.Client{Timeout: timeout},
		limiter:    rate.NewLimiter(rate.Limit(ratePerSec), 1),
		retryCfg:   retry.DefaultConfig(),
	}
}

// SetBudget attaches a shared request budget. Requests beyond the
// budget fail with ratelimit.ErrBudgetExhausted instead of hitting the
// API.
func (c *CoinGeckoClient) SetBudget(budget *ratelimit.Budget) {
	c.budget = budget
}

// Currency returns the fiat currency all prices are quoted in
func (c *CoinGeckoClient) Currency() string {
	return c.currency
}

// SpotPrices fetches the current price of each asset id, batched to the
// page cap. Ids missing from the response are absent from the result,
// not an error.
func (c *CoinGeckoClient) SpotPrices(ctx context.Context, ids []string) (map[string]decimal.Decimal, error) {
	prices := make(map[string]decimal.Decimal, len(ids))

	for start := 0; start < len(ids); start += c.pageCap {
		end := start + c.pageCap
		if end > len(ids) {
			end = len(ids)
		}
		batch := ids[start:end]

		params := url.Values{}
		params.Set("ids", strings.Join(batch, ","))
		params.Set("vs_currencies", c.currency)

		var payload map[string]map[string]decimal.Decimal
		if err := c.get(ctx, "/simple/price", params, &payload); err != nil {
			return nil, err
		}

		for id, quote := range payload {
			if price, ok := quote[c.currency]; ok {
				prices[id] = price
			}
		}
	}

	return prices, nil
}

// HistoricalPrice fetches the price of an asset on a calendar date.
// Returns ErrPriceUnavailable when the API has no data for that day.
func (c *CoinGeckoClient) HistoricalPrice(ctx context.Context, id string, date time.Time) (decimal.Decimal, error) {
	params := url.Values{}
	params.Set("date", date.Format("02-01-2006"))

	var payload struct {
		MarketData *struct {
			CurrentPrice map[string]decimal.Decimal `json:"current_price"`
		} `json:"market_data"`
	}
	if err := c.get(ctx, fmt.Sprintf("/coins/%s/history", id), params, &payload); err != nil {
		return decimal.Zero, err
	}

	if payload.MarketData == nil {
		return decimal.Zero, errors.NewPriceUnavailableError(id, date.Format("2006-01-02"), fmt.Errorf("no market data"))
	}
	price, ok := payload.MarketData.CurrentPrice[c.currency]
	if !ok {
		return decimal.Zero, errors.NewPriceUnavailableError(id, date.Format("2006-01-02"), fmt.Errorf("no %s quote", c.currency))
	}
	return price, nil
}

func (c *CoinGeckoClient) get(ctx context.Context, path string, params url.Values, out any) error {
	fullURL := c.baseURL + path
	if len(params) > 0 {
		fullURL += "?" + params.Encode()
	}

	if c.budget != nil {
		if err := c.budget.Allow(ctx); err != nil {
			return err
		}
	}

	return retry.Do(ctx, c.retryCfg, "price api "+path, func() error {
		if err := c.limiter.Wait(ctx); err != nil {
			return retry.Permanent(err)
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, fullURL, nil)
		if err != nil {
			return retry.Permanent(err)
		}
		if c.apiKey != "" {
			req.Header.Set("x-cg-demo-api-key", c.apiKey)
		}

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close() // nolint:errcheck

		if resp.StatusCode != http.StatusOK {
			body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
			err := fmt.Errorf("price api request failed with status %d: %s", resp.StatusCode, string(body))
			if resp.StatusCode == http.StatusNotFound {
				return retry.Permanent(err)
			}
			return err
		}

		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("failed to decode price api response: %w", err)
		}
		return nil
	})
}
