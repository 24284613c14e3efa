// Package config provides configuration management for the crypto
// tracker. It loads configuration from environment variables and .env
// files, and owns the versioned protocol registry handed to collectors.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all application configuration
type Config struct {
	Database DatabaseConfig
	Chains   ChainsConfig
	PriceAPI PriceAPIConfig
	Subgraph SubgraphConfig
	Beacon   BeaconConfig
	Worker   WorkerConfig
	Logging  LoggingConfig
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Postgres PostgresConfig
	Redis    RedisConfig
}

// PostgresConfig holds Postgres configuration
type PostgresConfig struct {
	Host           string
	Port           string
	Database       string
	User           string
	Password       string
	MaxConnections int
}

// URL returns the connection URL used by the migration runner.
func (c *PostgresConfig) URL() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=disable",
		c.User, c.Password, c.Host, c.Port, c.Database)
}

// RedisConfig holds Redis configuration
type RedisConfig struct {
	Host     string
	Port     string
	Password string
	DB       int
}

// ChainsConfig holds chain RPC configuration
type ChainsConfig struct {
	Enabled []string
	Chains  map[string]ChainConfig
}

// ChainConfig holds configuration for a specific chain
type ChainConfig struct {
	RPCURL string
}

// PriceAPIConfig holds price API (CoinGecko) configuration
type PriceAPIConfig struct {
	BaseURL     string
	APIKey      string
	Currency    string  // fiat currency for all valuations
	RatePerSec  float64 // request rate ceiling
	Timeout     time.Duration
	CacheTTL    time.Duration // TTL for cached historical prices
	SpotPageCap int           // max asset ids per batch spot request
	DailyBudget int           // shared request budget per day, 0 = unlimited
}

// SubgraphConfig holds The Graph gateway configuration
type SubgraphConfig struct {
	GatewayURL string
	APIKey     string
	Timeout    time.Duration
}

// BeaconConfig holds beaconcha.in API configuration
type BeaconConfig struct {
	BaseURL string
	Timeout time.Duration
}

// WorkerConfig holds update worker configuration
type WorkerConfig struct {
	UpdateInterval time.Duration // period between automatic update cycles
	PoolSize       int           // concurrent workers in the cycle pool
	RegistryPath   string        // optional protocol registry JSON override
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string
	Format string
}

// LoadConfig loads configuration from .env file and environment variables
func LoadConfig() (*Config, error) {
	// .env file is optional - environment variables can be set directly
	if err := godotenv.Load(); err != nil {
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("error loading .env file: %w", err)
		}
	}

	config := &Config{
		Database: DatabaseConfig{
			Postgres: PostgresConfig{
				Host:           getEnv("POSTGRES_HOST", "localhost"),
				Port:           getEnv("POSTGRES_PORT", "5432"),
				Database:       getEnv("POSTGRES_DB", "crypto_tracker"),
				User:           getEnv("POSTGRES_USER", "tracker"),
				Password:       getEnv("POSTGRES_PASSWORD", ""),
				MaxConnections: getEnvAsInt("POSTGRES_MAX_CONNECTIONS", 50),
			},
			Redis: RedisConfig{
				Host:     getEnv("REDIS_HOST", "localhost"),
				Port:     getEnv("REDIS_PORT", "6379"),
				Password: getEnv("REDIS_PASSWORD", ""),
				DB:       getEnvAsInt("REDIS_DB", 0),
			},
		},
		PriceAPI: PriceAPIConfig{
			BaseURL:     getEnv("PRICE_API_URL", "https://api.coingecko.com/api/v3"),
			APIKey:      getEnv("PRICE_API_KEY", ""),
			Currency:    getEnv("PRICE_CURRENCY", "eur"),
			RatePerSec:  getEnvAsFloat("PRICE_API_RATE_PER_SEC", 0.5),
			Timeout:     getEnvAsDuration("PRICE_API_TIMEOUT", 30*time.Second),
			CacheTTL:    getEnvAsDuration("PRICE_CACHE_TTL", 24*time.Hour),
			SpotPageCap: getEnvAsInt("PRICE_API_SPOT_PAGE_CAP", 250),
			DailyBudget: getEnvAsInt("PRICE_API_DAILY_BUDGET", 0),
		},
		Subgraph: SubgraphConfig{
			GatewayURL: getEnv("SUBGRAPH_GATEWAY_URL", "https://gateway.thegraph.com/api/subgraphs/id"),
			APIKey:     getEnv("API_KEY_THE_GRAPH", ""),
			Timeout:    getEnvAsDuration("SUBGRAPH_TIMEOUT", 30*time.Second),
		},
		Beacon: BeaconConfig{
			BaseURL: getEnv("BEACON_API_URL", "https://beaconcha.in/api/v1/validator"),
			Timeout: getEnvAsDuration("BEACON_API_TIMEOUT", 30*time.Second),
		},
		Worker: WorkerConfig{
			UpdateInterval: getEnvAsDuration("UPDATE_INTERVAL", 24*time.Hour),
			PoolSize:       getEnvAsInt("WORKER_POOL_SIZE", 8),
			RegistryPath:   getEnv("PROTOCOL_REGISTRY_PATH", ""),
		},
		Logging: LoggingConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "json"),
		},
	}

	config.Chains = loadChainConfigs()

	return config, nil
}

// loadChainConfigs loads chain-specific RPC configurations
func loadChainConfigs() ChainsConfig {
	enabledChains := strings.Split(getEnv("ENABLED_CHAINS", "ethereum,arbitrum,avalanche,gnosis,base"), ",")

	chains := make(map[string]ChainConfig)
	for _, chain := range enabledChains {
		chain = strings.TrimSpace(chain)
		if chain == "" {
			continue
		}

		prefix := strings.ToUpper(chain)
		chains[chain] = ChainConfig{
			RPCURL: getEnv(prefix+"_RPC_URL", ""),
		}
	}

	return ChainsConfig{
		Enabled: enabledChains,
		Chains:  chains,
	}
}

// getEnv retrieves an environment variable with a default value
func getEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

// getEnvAsInt retrieves an environment variable as an integer
func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

// getEnvAsFloat retrieves an environment variable as a float
func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseFloat(valueStr, 64)
	if err != nil {
		return defaultValue
	}
	return value
}

// getEnvAsDuration retrieves an environment variable as a duration
func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}
	value, err := time.ParseDuration(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}
