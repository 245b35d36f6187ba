package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config holds all application configuration loaded from environment variables.
// All required fields are validated at startup to ensure fail-fast behavior.
type Config struct {
	// Server configuration
	ServerAddr string
	// ServerURL is the base URL the worker and CLI use to reach the
	// server's HTTP API.
	ServerURL string
	LogLevel  string

	// Database configuration
	DatabaseURL string

	// NATS configuration
	NATSURL string

	// Wallet provider configuration
	// ProviderMode selects the wallet provider implementation: "rpc" talks
	// to a real Ethereum JSON-RPC endpoint, "mock" runs the in-memory
	// provider (demo mode, no node required).
	ProviderMode         string
	EthRPCURL            string
	ProviderTimeout      time.Duration
	ProviderPollInterval time.Duration

	// Temporal configuration
	TemporalHost      string
	TemporalNamespace string
	TemporalTaskQueue string

	// Prediction market configuration
	MinStake float64
	MaxStake float64

	// Scan configuration
	ScanLatency           time.Duration
	DefaultRescanInterval time.Duration
	MinRescanInterval     time.Duration
}

// Load reads configuration from environment variables and validates all required fields.
// Returns an error if any required configuration is missing or invalid.
func Load() (*Config, error) {
	cfg := &Config{}
	var errs []error

	// Server configuration
	cfg.ServerAddr = getEnvOrDefault("SERVER_ADDR", ":8080")
	cfg.ServerURL = getEnvOrDefault("SERVER_URL", "http://localhost:8080")
	cfg.LogLevel = getEnvOrDefault("LOG_LEVEL", "info")

	// Database configuration
	cfg.DatabaseURL = os.Getenv("DATABASE_URL")
	if cfg.DatabaseURL == "" {
		errs = append(errs, fmt.Errorf("DATABASE_URL is required"))
	}

	// NATS configuration
	cfg.NATSURL = getEnvOrDefault("NATS_URL", "nats://localhost:4222")

	// Wallet provider configuration
	cfg.ProviderMode = getEnvOrDefault("PROVIDER_MODE", "rpc")
	if cfg.ProviderMode != "rpc" && cfg.ProviderMode != "mock" {
		errs = append(errs, fmt.Errorf("PROVIDER_MODE must be 'rpc' or 'mock', got %q", cfg.ProviderMode))
	}

	cfg.EthRPCURL = os.Getenv("ETH_RPC_URL")
	if cfg.EthRPCURL == "" && cfg.ProviderMode == "rpc" {
		errs = append(errs, fmt.Errorf("ETH_RPC_URL is required when PROVIDER_MODE is 'rpc'"))
	}

	providerTimeout, err := parseDuration("PROVIDER_TIMEOUT", "10s")
	if err != nil {
		errs = append(errs, err)
	} else {
		cfg.ProviderTimeout = providerTimeout
	}

	providerPoll, err := parseDuration("PROVIDER_POLL_INTERVAL", "15s")
	if err != nil {
		errs = append(errs, err)
	} else {
		cfg.ProviderPollInterval = providerPoll
	}

	// Temporal configuration
	cfg.TemporalHost = getEnvOrDefault("TEMPORAL_HOST", "localhost:7233")
	cfg.TemporalNamespace = getEnvOrDefault("TEMPORAL_NAMESPACE", "default")
	cfg.TemporalTaskQueue = getEnvOrDefault("TEMPORAL_TASK_QUEUE", "rugmarket-contract-scans")

	// Prediction market configuration
	minStake, err := parseFloat("MIN_STAKE", 1)
	if err != nil {
		errs = append(errs, err)
	} else {
		cfg.MinStake = minStake
	}

	maxStake, err := parseFloat("MAX_STAKE", 1000)
	if err != nil {
		errs = append(errs, err)
	} else {
		cfg.MaxStake = maxStake
	}

	if cfg.MinStake <= 0 {
		errs = append(errs, fmt.Errorf("MIN_STAKE must be positive, got %v", cfg.MinStake))
	}
	if cfg.MaxStake < cfg.MinStake {
		errs = append(errs, fmt.Errorf("MAX_STAKE (%v) cannot be less than MIN_STAKE (%v)",
			cfg.MaxStake, cfg.MinStake))
	}

	// Scan configuration
	scanLatency, err := parseDuration("SCAN_LATENCY", "3s")
	if err != nil {
		errs = append(errs, err)
	} else {
		cfg.ScanLatency = scanLatency
	}

	defaultRescan, err := parseDuration("DEFAULT_RESCAN_INTERVAL", "24h")
	if err != nil {
		errs = append(errs, err)
	} else {
		cfg.DefaultRescanInterval = defaultRescan
	}

	minRescan, err := parseDuration("MIN_RESCAN_INTERVAL", "1h")
	if err != nil {
		errs = append(errs, err)
	} else {
		cfg.MinRescanInterval = minRescan
	}

	if cfg.MinRescanInterval > cfg.DefaultRescanInterval {
		errs = append(errs, fmt.Errorf("MIN_RESCAN_INTERVAL (%v) cannot be greater than DEFAULT_RESCAN_INTERVAL (%v)",
			cfg.MinRescanInterval, cfg.DefaultRescanInterval))
	}

	// Return all validation errors
	if len(errs) > 0 {
		return nil, fmt.Errorf("configuration validation failed: %v", errs)
	}

	return cfg, nil
}

// MustLoad is like Load but panics if configuration is invalid.
// Useful for server initialization where misconfiguration should halt startup.
func MustLoad() *Config {
	cfg, err := Load()
	if err != nil {
		panic(fmt.Sprintf("failed to load configuration: %v", err))
	}
	return cfg
}

// Validate checks if the configuration is valid.
// This is useful for testing configuration without loading from env.
func (c *Config) Validate() error {
	var errs []error

	if c.DatabaseURL == "" {
		errs = append(errs, fmt.Errorf("DatabaseURL is required"))
	}

	if c.ProviderMode != "rpc" && c.ProviderMode != "mock" {
		errs = append(errs, fmt.Errorf("ProviderMode must be 'rpc' or 'mock'"))
	}

	if c.ProviderMode == "rpc" && c.EthRPCURL == "" {
		errs = append(errs, fmt.Errorf("EthRPCURL is required in rpc mode"))
	}

	if c.ProviderTimeout < time.Second {
		errs = append(errs, fmt.Errorf("ProviderTimeout must be at least 1 second"))
	}

	if c.TemporalHost == "" {
		errs = append(errs, fmt.Errorf("TemporalHost is required"))
	}

	if c.TemporalNamespace == "" {
		errs = append(errs, fmt.Errorf("TemporalNamespace is required"))
	}

	if c.TemporalTaskQueue == "" {
		errs = append(errs, fmt.Errorf("TemporalTaskQueue is required"))
	}

	if c.MinStake <= 0 {
		errs = append(errs, fmt.Errorf("MinStake must be positive"))
	}

	if c.MaxStake < c.MinStake {
		errs = append(errs, fmt.Errorf("MaxStake cannot be less than MinStake"))
	}

	if c.MinRescanInterval > c.DefaultRescanInterval {
		errs = append(errs, fmt.Errorf("MinRescanInterval cannot be greater than DefaultRescanInterval"))
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration validation failed: %v", errs)
	}

	return nil
}

// getEnvOrDefault returns the environment variable value or a default if not set.
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// parseDuration parses a duration from an environment variable or uses a default.
func parseDuration(key, defaultValue string) (time.Duration, error) {
	value := getEnvOrDefault(key, defaultValue)
	duration, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("%s: invalid duration %q: %w", key, value, err)
	}
	return duration, nil
}

// parseFloat parses a float from an environment variable or uses a default.
func parseFloat(key string, defaultValue float64) (float64, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	result, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return 0, fmt.Errorf("%s: invalid number %q: %w", key, value, err)
	}
	return result, nil
}
