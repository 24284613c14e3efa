// Package ratelimit coordinates the shared price API request budget
// across processes using Redis. The free CoinGecko tier caps total
// calls, so the worker and the CLI tools draw from one counter.
package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Default budget configuration values.
const (
	DefaultWindowSize = 24 * time.Hour
	DefaultKeyPrefix  = "pricebudget:"
)

// ErrBudgetExhausted is returned when the request budget for the
// current window is spent.
var ErrBudgetExhausted = errors.New("price API request budget exhausted")

// Budget is a Redis-backed fixed-window request counter shared by every
// process talking to the price API.
type Budget struct {
	redis      redis.Cmdable
	limit      int
	windowSize time.Duration
	keyPrefix  string
}

// BudgetConfig holds configuration for a request budget.
type BudgetConfig struct {
	// Redis is the client used for cross-process coordination. Required.
	Redis redis.Cmdable

	// Limit is the number of requests allowed per window. Required.
	Limit int

	// WindowSize is the budget window. Default: 24h.
	WindowSize time.Duration

	// KeyPrefix namespaces the Redis keys. Default: "pricebudget:".
	KeyPrefix string
}

// NewBudget creates a new shared request budget
func NewBudget(cfg *BudgetConfig) (*Budget, error) {
	if cfg.Redis == nil {
		return nil, errors.New("redis client is required")
	}
	if cfg.Limit <= 0 {
		return nil, errors.New("limit must be positive")
	}

	windowSize := cfg.WindowSize
	if windowSize == 0 {
		windowSize = DefaultWindowSize
	}
	keyPrefix := cfg.KeyPrefix
	if keyPrefix == "" {
		keyPrefix = DefaultKeyPrefix
	}

	return &Budget{
		redis:      cfg.Redis,
		limit:      cfg.Limit,
		windowSize: windowSize,
		keyPrefix:  keyPrefix,
	}, nil
}

// Allow consumes one request from the current window. It returns
// ErrBudgetExhausted when the window's budget is spent; Redis failures
// are returned as-is and callers decide whether to fail open.
func (b *Budget) Allow(ctx context.Context) error {
	key := b.windowKey(time.Now())

	count, err := b.redis.Incr(ctx, key).Result()
	if err != nil {
		return fmt.Errorf("failed to consume request budget: %w", err)
	}
	if count == 1 {
		// first hit of the window owns the expiry
		if err := b.redis.Expire(ctx, key, b.windowSize+time.Minute).Err(); err != nil {
			return fmt.Errorf("failed to expire budget key: %w", err)
		}
	}
	if count > int64(b.limit) {
		return ErrBudgetExhausted
	}
	return nil
}

// Used reports the number of requests consumed in the current window
func (b *Budget) Used(ctx context.Context) (int, error) {
	key := b.windowKey(time.Now())

	count, err := b.redis.Get(ctx, key).Int()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return 0, nil
		}
		return 0, fmt.Errorf("failed to read request budget: %w", err)
	}
	return count, nil
}

// Limit returns the configured per-window limit
func (b *Budget) Limit() int {
	return b.limit
}

func (b *Budget) windowKey(now time.Time) string {
	windowStart := now.UTC().Truncate(b.windowSize)
	return b.keyPrefix + windowStart.Format(time.RFC3339)
}
