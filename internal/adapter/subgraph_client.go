package adapter

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/crypto-tracker/internal/circuitbreaker"
	"github.com/crypto-tracker/internal/config"
	"github.com/crypto-tracker/internal/errors"
	"github.com/crypto-tracker/internal/retry"
)

// SubgraphClient queries The Graph gateway. One client serves all
// subgraphs; the subgraph id selects the deployment per request.
type SubgraphClient struct {
	gatewayURL string
	apiKey     string
	httpClient *http.Client
	breaker    *circuitbreaker.CircuitBreaker
	retryCfg   *retry.Config
}

// NewSubgraphClient creates a new Graph gateway client
func NewSubgraphClient(cfg *config.SubgraphConfig) *SubgraphClient {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}

	return &SubgraphClient{
		gatewayURL: strings.TrimRight(cfg.GatewayURL, "/"),
		apiKey:     cfg.APIKey,
		httpClient: &http.Client{Timeout: timeout},
		breaker:    circuitbreaker.New(circuitbreaker.DefaultConfig("subgraph")),
		retryCfg:   retry.DefaultConfig(),
	}
}

type graphqlRequest struct {
	Query     string         `json:"query"`
	Variables map[string]any `json:"variables,omitempty"`
}

type graphqlResponse struct {
	Data   json.RawMessage `json:"data"`
	Errors []graphqlError  `json:"errors,omitempty"`
}

type graphqlError struct {
	Message string `json:"message"`
}

// Query sends a GraphQL query to a subgraph and unmarshals the data
// object into out
func (c *SubgraphClient) Query(ctx context.Context, subgraphID, query string, variables map[string]any, out any) error {
	body, err := json.Marshal(graphqlRequest{Query: query, Variables: variables})
	if err != nil {
		return fmt.Errorf("failed to marshal query: %w", err)
	}

	url := fmt.Sprintf("%s/%s", c.gatewayURL, subgraphID)

	var data json.RawMessage
	err = c.breaker.Execute(ctx, func() error {
		return retry.Do(ctx, c.retryCfg, "subgraph query", func() error {
			req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
			if err != nil {
				return retry.Permanent(err)
			}
			req.Header.Set("Content-Type", "application/json")
			if c.apiKey != "" {
				req.Header.Set("Authorization", "Bearer "+c.apiKey)
			}

			resp, err := c.httpClient.Do(req)
			if err != nil {
				return err
			}
			defer resp.Body.Close() // nolint:errcheck

			if resp.StatusCode != http.StatusOK {
				respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
				return fmt.Errorf("subgraph request failed with status %d: %s", resp.StatusCode, string(respBody))
			}

			var gqlResp graphqlResponse
			if err := json.NewDecoder(resp.Body).Decode(&gqlResp); err != nil {
				return fmt.Errorf("failed to decode subgraph response: %w", err)
			}
			if len(gqlResp.Errors) > 0 {
				// Query-level errors are not transient
				return retry.Permanent(fmt.Errorf("subgraph query error: %s", gqlResp.Errors[0].Message))
			}

			data = gqlResp.Data
			return nil
		})
	})
	if err != nil {
		return errors.NewSubgraphError(subgraphID, err)
	}

	if out != nil && len(data) > 0 {
		if err := json.Unmarshal(data, out); err != nil {
			return errors.NewSubgraphError(subgraphID, fmt.Errorf("failed to unmarshal data: %w", err))
		}
	}
	return nil
}

// BreakerStats exposes gateway circuit breaker statistics
func (c *SubgraphClient) BreakerStats() *circuitbreaker.Stats {
	return c.breaker.GetStats()
}
