// Package retry provides bounded exponential backoff for network
// calls. Transient transport failures are retried; anything wrapped as
// permanent (data-shape errors, cancellation) is surfaced immediately.
package retry

import (
	"context"
	"errors"
	"net"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/crypto-tracker/internal/logging"
)

// Config configures retry behavior
type Config struct {
	MaxAttempts     uint64        // Total attempts including the first
	InitialInterval time.Duration // Delay before the first retry
	MaxInterval     time.Duration // Ceiling for a single delay
	MaxElapsedTime  time.Duration // Ceiling on total wait across retries
}

// DefaultConfig returns the retry configuration used for external API
// and RPC calls: 3 attempts, 1s/2s pattern, 3 minutes total at most.
func DefaultConfig() *Config {
	return &Config{
		MaxAttempts:     3,
		InitialInterval: 1 * time.Second,
		MaxInterval:     30 * time.Second,
		MaxElapsedTime:  3 * time.Minute,
	}
}

// Permanent marks an error as not retryable.
func Permanent(err error) error {
	return backoff.Permanent(err)
}

// Do executes fn with exponential backoff. fn is retried on transient
// errors until the attempt or elapsed-time budget is exhausted; the
// last error is returned. Errors marked Permanent stop retrying at
// once.
func Do(ctx context.Context, cfg *Config, operation string, fn func() error) error {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	logger := logging.FromContext(ctx)

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = cfg.InitialInterval
	b.MaxInterval = cfg.MaxInterval
	b.MaxElapsedTime = cfg.MaxElapsedTime

	attempts := 0
	wrapped := func() error {
		attempts++
		err := fn()
		if err == nil {
			return nil
		}
		var permanent *backoff.PermanentError
		if errors.As(err, &permanent) {
			return err
		}
		if !IsTransient(err) {
			return backoff.Permanent(err)
		}
		return err
	}

	notify := func(err error, wait time.Duration) {
		logger.Warnw("backing off",
			"operation", operation,
			"attempt", attempts,
			"wait", wait,
			"error", err)
	}

	policy := backoff.WithContext(
		backoff.WithMaxRetries(b, cfg.MaxAttempts-1), ctx)

	err := backoff.RetryNotify(wrapped, policy, notify)
	if err != nil && attempts > 1 {
		logger.Warnw("operation failed after retries",
			"operation", operation,
			"attempts", attempts,
			"error", err)
	}
	return err
}

// IsTransient reports whether an error looks like a transient
// transport failure worth retrying. Context cancellation is never
// transient.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}

	msg := strings.ToLower(err.Error())
	for _, marker := range []string{
		"timeout",
		"connection refused",
		"connection reset",
		"no such host",
		"too many requests",
		"status 429",
		"status 5",
		"eof",
	} {
		if strings.Contains(msg, marker) {
			return true
		}
	}
	return false
}
