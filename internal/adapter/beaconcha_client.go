package adapter

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/crypto-tracker/internal/config"
	"github.com/crypto-tracker/internal/retry"
	"github.com/crypto-tracker/internal/types"
)

// Beacon chain genesis, used to convert activation epochs to dates
// (12 second slots, 32 slots per epoch).
var beaconGenesis = time.Date(2020, 12, 1, 12, 0, 23, 0, time.UTC)

// ValidatorDetails is the state of one validator as reported by the
// beacon chain explorer. Balance is in ETH, already scaled from gwei.
type ValidatorDetails struct {
	Index                 int64
	PublicKey             string
	WithdrawalCredentials string
	Balance               decimal.Decimal
	Status                string
	ActivationDate        string
}

// BeaconClient reads validator state from the beaconcha.in API
type BeaconClient struct {
	baseURL    string
	httpClient *http.Client
	retryCfg   *retry.Config
}

// NewBeaconClient creates a new beacon chain explorer client
func NewBeaconClient(cfg *config.BeaconConfig) *BeaconClient {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}

	return &BeaconClient{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
		retryCfg:   retry.DefaultConfig(),
	}
}

// ValidatorIndexes returns the indexes of all validators whose
// withdrawal credentials point at the given address
func (c *BeaconClient) ValidatorIndexes(ctx context.Context, address string) ([]int64, error) {
	params := url.Values{}
	params.Set("limit", "10")
	params.Set("offset", "0")

	var payload struct {
		Data []struct {
			ValidatorIndex int64 `json:"validatorindex"`
		} `json:"data"`
	}
	path := fmt.Sprintf("/withdrawalCredentials/%s", address)
	if err := c.get(ctx, path, params, &payload); err != nil {
		return nil, err
	}

	indexes := make([]int64, 0, len(payload.Data))
	for _, v := range payload.Data {
		indexes = append(indexes, v.ValidatorIndex)
	}
	return indexes, nil
}

// Validators returns the details of the given validators. Exited
// validators are filtered out.
func (c *BeaconClient) Validators(ctx context.Context, indexes []int64) ([]*ValidatorDetails, error) {
	if len(indexes) == 0 {
		return nil, nil
	}

	var payload struct {
		Data json.RawMessage `json:"data"`
	}
	if err := c.get(ctx, "/"+joinIndexes(indexes), nil, &payload); err != nil {
		return nil, err
	}

	type rawValidator struct {
		ValidatorIndex        int64  `json:"validatorindex"`
		PubKey                string `json:"pubkey"`
		WithdrawalCredentials string `json:"withdrawalcredentials"`
		Balance               int64  `json:"balance"` // gwei
		Status                string `json:"status"`
		ActivationEpoch       int64  `json:"activationepoch"`
	}

	// The API returns an object for one validator and an array for many
	var raw []rawValidator
	if err := json.Unmarshal(payload.Data, &raw); err != nil {
		var single rawValidator
		if err := json.Unmarshal(payload.Data, &single); err != nil {
			return nil, fmt.Errorf("failed to decode validator data: %w", err)
		}
		raw = []rawValidator{single}
	}

	details := make([]*ValidatorDetails, 0, len(raw))
	for _, v := range raw {
		if v.Status == "exited" {
			continue
		}
		details = append(details, &ValidatorDetails{
			Index:                 v.ValidatorIndex,
			PublicKey:             v.PubKey,
			WithdrawalCredentials: v.WithdrawalCredentials,
			Balance:               decimal.NewFromInt(v.Balance).Shift(-types.GweiDecimals),
			Status:                v.Status,
			ActivationDate:        epochToDate(v.ActivationEpoch),
		})
	}
	return details, nil
}

// Rewards returns the total accumulated rewards per validator index in
// ETH: execution performance (wei-denominated) plus consensus
// performance (gwei-denominated).
func (c *BeaconClient) Rewards(ctx context.Context, indexes []int64) (map[int64]decimal.Decimal, error) {
	if len(indexes) == 0 {
		return nil, nil
	}

	rewards := make(map[int64]decimal.Decimal, len(indexes))
	joined := joinIndexes(indexes)

	var execution struct {
		Data []struct {
			ValidatorIndex   int64       `json:"validatorindex"`
			PerformanceTotal json.Number `json:"performanceTotal"`
		} `json:"data"`
	}
	if err := c.get(ctx, "/"+joined+"/execution/performance", nil, &execution); err != nil {
		return nil, err
	}
	for _, v := range execution.Data {
		total, err := decimal.NewFromString(v.PerformanceTotal.String())
		if err != nil {
			continue
		}
		rewards[v.ValidatorIndex] = total.Shift(-types.WeiDecimals)
	}

	var consensus struct {
		Data []struct {
			ValidatorIndex   int64       `json:"validatorindex"`
			PerformanceTotal json.Number `json:"performancetotal"`
		} `json:"data"`
	}
	if err := c.get(ctx, "/"+joined+"/performance", nil, &consensus); err != nil {
		return nil, err
	}
	for _, v := range consensus.Data {
		total, err := decimal.NewFromString(v.PerformanceTotal.String())
		if err != nil {
			continue
		}
		rewards[v.ValidatorIndex] = rewards[v.ValidatorIndex].Add(total.Shift(-types.GweiDecimals))
	}

	return rewards, nil
}

func (c *BeaconClient) get(ctx context.Context, path string, params url.Values, out any) error {
	fullURL := c.baseURL + path
	if len(params) > 0 {
		fullURL += "?" + params.Encode()
	}

	return retry.Do(ctx, c.retryCfg, "beacon api "+path, func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, fullURL, nil)
		if err != nil {
			return retry.Permanent(err)
		}

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close() // nolint:errcheck

		if resp.StatusCode != http.StatusOK {
			body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
			return fmt.Errorf("beacon api request failed with status %d: %s", resp.StatusCode, string(body))
		}

		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("failed to decode beacon api response: %w", err)
		}
		return nil
	})
}

func joinIndexes(indexes []int64) string {
	parts := make([]string, len(indexes))
	for i, idx := range indexes {
		parts[i] = strconv.FormatInt(idx, 10)
	}
	return strings.Join(parts, ",")
}

func epochToDate(epoch int64) string {
	activation := beaconGenesis.Add(time.Duration(epoch*32*12) * time.Second)
	return activation.Format("2006-01-02")
}
