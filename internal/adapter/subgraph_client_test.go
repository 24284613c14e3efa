package adapter

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/crypto-tracker/internal/config"
	"github.com/crypto-tracker/internal/errors"
)

func TestSubgraphQueryUnmarshalsData(t *testing.T) {
	var gotAuth string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		assert.Equal(t, "/sub-1", r.URL.Path)
		_, _ = w.Write([]byte(`{"data": {"troves": [{"id": "t1"}, {"id": "t2"}]}}`))
	}))
	defer server.Close()

	client := NewSubgraphClient(&config.SubgraphConfig{GatewayURL: server.URL, APIKey: "key"})

	var out struct {
		Troves []struct {
			ID string `json:"id"`
		} `json:"troves"`
	}
	err := client.Query(context.Background(), "sub-1", "{ troves { id } }", nil, &out)
	require.NoError(t, err)
	require.Len(t, out.Troves, 2)
	assert.Equal(t, "t1", out.Troves[0].ID)
	assert.Equal(t, "Bearer key", gotAuth)
}

func TestSubgraphQueryErrorNotRetried(t *testing.T) {
	var requests atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests.Add(1)
		_, _ = w.Write([]byte(`{"errors": [{"message": "undefined field"}]}`))
	}))
	defer server.Close()

	client := NewSubgraphClient(&config.SubgraphConfig{GatewayURL: server.URL})

	err := client.Query(context.Background(), "sub-1", "{ bogus }", nil, nil)
	require.Error(t, err)

	var categorized *errors.CategorizedError
	require.ErrorAs(t, err, &categorized)
	assert.Equal(t, errors.CategorySubgraph, categorized.Category)
	assert.Equal(t, int32(1), requests.Load(), "query-level errors must not be retried")
}

func TestSubgraphHTTPErrorWrapped(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	client := NewSubgraphClient(&config.SubgraphConfig{GatewayURL: server.URL})

	err := client.Query(context.Background(), "missing", "{ troves { id } }", nil, nil)
	require.Error(t, err)

	var categorized *errors.CategorizedError
	require.ErrorAs(t, err, &categorized)
	assert.Equal(t, "missing", categorized.Details["subgraphId"])
}
