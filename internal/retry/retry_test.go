package retry

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fastConfig() *Config {
	return &Config{
		MaxAttempts:     3,
		InitialInterval: time.Millisecond,
		MaxInterval:     5 * time.Millisecond,
		MaxElapsedTime:  time.Second,
	}
}

func TestDoSucceedsAfterTransientFailures(t *testing.T) {
	calls := 0
	err := Do(context.Background(), fastConfig(), "test", func() error {
		calls++
		if calls < 3 {
			return errors.New("connection refused")
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestDoExhaustsAttempts(t *testing.T) {
	calls := 0
	err := Do(context.Background(), fastConfig(), "test", func() error {
		calls++
		return errors.New("request timeout")
	})
	require.Error(t, err)
	assert.Equal(t, 3, calls)
}

func TestDoStopsOnPermanentError(t *testing.T) {
	calls := 0
	dataErr := errors.New("unexpected payload shape")
	err := Do(context.Background(), fastConfig(), "test", func() error {
		calls++
		return Permanent(dataErr)
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, dataErr)
	assert.Equal(t, 1, calls, "permanent errors must not be retried")
}

func TestDoDoesNotRetryDataShapeErrors(t *testing.T) {
	calls := 0
	err := Do(context.Background(), fastConfig(), "test", func() error {
		calls++
		return fmt.Errorf("failed to parse response: invalid character")
	})
	require.Error(t, err)
	assert.Equal(t, 1, calls, "non-transient errors must not be retried")
}

func TestDoRespectsContextCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := Do(ctx, fastConfig(), "test", func() error {
		return errors.New("connection reset")
	})
	require.Error(t, err)
}

func TestIsTransient(t *testing.T) {
	assert.True(t, IsTransient(errors.New("dial tcp: connection refused")))
	assert.True(t, IsTransient(errors.New("unexpected status 503")))
	assert.True(t, IsTransient(errors.New("too many requests")))
	assert.False(t, IsTransient(errors.New("invalid JSON payload")))
	assert.False(t, IsTransient(context.Canceled))
	assert.False(t, IsTransient(nil))
}
