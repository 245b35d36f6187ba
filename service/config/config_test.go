package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// setRequiredEnv sets the minimum environment for Load to succeed.
func setRequiredEnv(t *testing.T) {
	t.Helper()
	t.Setenv("DATABASE_URL", "postgres://localhost:5432/rugmarket_test")
	t.Setenv("ETH_RPC_URL", "http://localhost:8545")
}

func TestLoad_Defaults(t *testing.T) {
	setRequiredEnv(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.ServerAddr)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, "nats://localhost:4222", cfg.NATSURL)
	assert.Equal(t, "rpc", cfg.ProviderMode)
	assert.Equal(t, 10*time.Second, cfg.ProviderTimeout)
	assert.Equal(t, 15*time.Second, cfg.ProviderPollInterval)
	assert.Equal(t, "localhost:7233", cfg.TemporalHost)
	assert.Equal(t, "default", cfg.TemporalNamespace)
	assert.Equal(t, "rugmarket-contract-scans", cfg.TemporalTaskQueue)
	assert.Equal(t, 1.0, cfg.MinStake)
	assert.Equal(t, 1000.0, cfg.MaxStake)
	assert.Equal(t, 3*time.Second, cfg.ScanLatency)
	assert.Equal(t, 24*time.Hour, cfg.DefaultRescanInterval)
	assert.Equal(t, time.Hour, cfg.MinRescanInterval)
}

func TestLoad_MissingDatabaseURL(t *testing.T) {
	t.Setenv("DATABASE_URL", "")
	t.Setenv("ETH_RPC_URL", "http://localhost:8545")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "DATABASE_URL is required")
}

func TestLoad_MockModeDoesNotRequireRPCURL(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost:5432/rugmarket_test")
	t.Setenv("ETH_RPC_URL", "")
	t.Setenv("PROVIDER_MODE", "mock")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "mock", cfg.ProviderMode)
}

func TestLoad_RPCModeRequiresRPCURL(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost:5432/rugmarket_test")
	t.Setenv("ETH_RPC_URL", "")
	t.Setenv("PROVIDER_MODE", "rpc")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ETH_RPC_URL is required")
}

func TestLoad_InvalidProviderMode(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("PROVIDER_MODE", "browser")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "PROVIDER_MODE must be 'rpc' or 'mock'")
}

func TestLoad_StakeBounds(t *testing.T) {
	tests := []struct {
		name     string
		minStake string
		maxStake string
		wantErr  string
	}{
		{
			name:     "custom valid bounds",
			minStake: "5",
			maxStake: "500",
		},
		{
			name:     "zero min stake",
			minStake: "0",
			maxStake: "1000",
			wantErr:  "MIN_STAKE must be positive",
		},
		{
			name:     "negative min stake",
			minStake: "-1",
			maxStake: "1000",
			wantErr:  "MIN_STAKE must be positive",
		},
		{
			name:     "max below min",
			minStake: "100",
			maxStake: "10",
			wantErr:  "cannot be less than MIN_STAKE",
		},
		{
			name:     "not a number",
			minStake: "one",
			maxStake: "1000",
			wantErr:  "invalid number",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			setRequiredEnv(t)
			t.Setenv("MIN_STAKE", tt.minStake)
			t.Setenv("MAX_STAKE", tt.maxStake)

			cfg, err := Load()
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, 5.0, cfg.MinStake)
			assert.Equal(t, 500.0, cfg.MaxStake)
		})
	}
}

func TestLoad_InvalidDuration(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("PROVIDER_TIMEOUT", "soon")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid duration")
}

func TestLoad_RescanIntervalOrdering(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("DEFAULT_RESCAN_INTERVAL", "1h")
	t.Setenv("MIN_RESCAN_INTERVAL", "2h")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "MIN_RESCAN_INTERVAL")
}

func TestValidate(t *testing.T) {
	valid := &Config{
		DatabaseURL:           "postgres://localhost/db",
		ProviderMode:          "mock",
		ProviderTimeout:       10 * time.Second,
		TemporalHost:          "localhost:7233",
		TemporalNamespace:     "default",
		TemporalTaskQueue:     "rugmarket-contract-scans",
		MinStake:              1,
		MaxStake:              1000,
		DefaultRescanInterval: 24 * time.Hour,
		MinRescanInterval:     time.Hour,
	}
	require.NoError(t, valid.Validate())

	invalid := *valid
	invalid.MaxStake = 0.5
	require.Error(t, invalid.Validate())
}
