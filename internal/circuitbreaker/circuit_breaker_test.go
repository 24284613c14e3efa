package circuitbreaker

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errUpstream = errors.New("upstream down")

func testConfig() *Config {
	return &Config{
		Name:             "test",
		MaxFailures:      3,
		FailureThreshold: 0.5,
		Timeout:          50 * time.Millisecond,
		HalfOpenMaxCalls: 2,
	}
}

func fail() error    { return errUpstream }
func succeed() error { return nil }

func TestOpensAfterConsecutiveFailures(t *testing.T) {
	cb := New(testConfig())
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		err := cb.Execute(ctx, fail)
		require.ErrorIs(t, err, errUpstream)
	}
	assert.Equal(t, StateOpen, cb.GetState())

	err := cb.Execute(ctx, succeed)
	assert.ErrorIs(t, err, ErrCircuitOpen)
}

func TestStaysClosedOnSuccesses(t *testing.T) {
	cb := New(testConfig())
	ctx := context.Background()

	for i := 0; i < 10; i++ {
		require.NoError(t, cb.Execute(ctx, succeed))
	}
	assert.Equal(t, StateClosed, cb.GetState())
}

func TestSuccessResetsConsecutiveFailures(t *testing.T) {
	cb := New(testConfig())
	ctx := context.Background()

	// Isolated failures never reach the consecutive limit, and with a
	// healthy mix the failure rate stays below the threshold.
	for i := 0; i < 4; i++ {
		_ = cb.Execute(ctx, fail)
		_ = cb.Execute(ctx, succeed)
		_ = cb.Execute(ctx, succeed)
		_ = cb.Execute(ctx, succeed)
	}
	assert.Equal(t, StateClosed, cb.GetState())
}

func TestRecoversThroughHalfOpen(t *testing.T) {
	cb := New(testConfig())
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_ = cb.Execute(ctx, fail)
	}
	require.Equal(t, StateOpen, cb.GetState())

	time.Sleep(60 * time.Millisecond)

	// Two successful probes close the circuit again.
	require.NoError(t, cb.Execute(ctx, succeed))
	assert.Equal(t, StateHalfOpen, cb.GetState())
	require.NoError(t, cb.Execute(ctx, succeed))
	assert.Equal(t, StateClosed, cb.GetState())
}

func TestHalfOpenFailureReopens(t *testing.T) {
	cb := New(testConfig())
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_ = cb.Execute(ctx, fail)
	}
	time.Sleep(60 * time.Millisecond)

	err := cb.Execute(ctx, fail)
	require.ErrorIs(t, err, errUpstream)
	assert.Equal(t, StateOpen, cb.GetState())

	err = cb.Execute(ctx, succeed)
	assert.ErrorIs(t, err, ErrCircuitOpen)
}

func TestHalfOpenLimitsProbes(t *testing.T) {
	cfg := testConfig()
	cfg.HalfOpenMaxCalls = 1
	cb := New(cfg)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_ = cb.Execute(ctx, fail)
	}
	time.Sleep(60 * time.Millisecond)

	// First probe transitions to half-open; with a single-probe limit
	// it immediately closes on success.
	require.NoError(t, cb.Execute(ctx, succeed))
	assert.Equal(t, StateClosed, cb.GetState())
}

func TestManualReset(t *testing.T) {
	cb := New(testConfig())
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_ = cb.Execute(ctx, fail)
	}
	require.Equal(t, StateOpen, cb.GetState())

	cb.Reset()
	assert.Equal(t, StateClosed, cb.GetState())
	assert.NoError(t, cb.Execute(ctx, succeed))
}

func TestStats(t *testing.T) {
	cb := New(testConfig())
	ctx := context.Background()

	_ = cb.Execute(ctx, fail)
	_ = cb.Execute(ctx, succeed)

	stats := cb.GetStats()
	assert.Equal(t, "test", stats.Name)
	assert.Equal(t, 1, stats.Failures)
	assert.Equal(t, 1, stats.Successes)
	assert.Equal(t, 2, stats.TotalCalls)
	assert.InDelta(t, 0.5, stats.FailureRate, 1e-9)
}
