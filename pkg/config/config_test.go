package config

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func clearEnv(t *testing.T, keys ...string) {
	t.Helper()
	for _, k := range keys {
		orig, had := os.LookupEnv(k)
		os.Unsetenv(k)
		t.Cleanup(func() {
			if had {
				os.Setenv(k, orig)
			}
		})
	}
}

func TestLoadDefaults(t *testing.T) {
	clearEnv(t, "SERVER_HOST", "SERVER_PORT", "EXECUTION_INTERVAL_SECONDS",
		"MAX_EXECUTIONS_PER_BATCH", "MAX_GAS_PRICE_GWEI")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "0.0.0.0", cfg.ServerHost)
	assert.Equal(t, 3000, cfg.ServerPort)
	assert.Equal(t, 30, cfg.ExecutionIntervalSeconds)
	assert.Equal(t, 10, cfg.MaxExecutionsPerBatch)
	assert.Equal(t, int64(50), cfg.MaxGasPriceGwei)
	assert.Contains(t, cfg.Chains, "sepolia")
	assert.Contains(t, cfg.Chains, "base")
}

func TestValidateRequiresCoreFields(t *testing.T) {
	cfg := &Config{Chains: map[string]ChainConfig{}}
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "DATABASE_URL")
	assert.Contains(t, err.Error(), "RELAYER_PRIVATE_KEY")
	assert.Contains(t, err.Error(), "RELAYER_ADDRESS")
}

func TestValidateRequiresZeroAddressInSupportedTokens(t *testing.T) {
	cfg := &Config{
		DatabaseURL:       "postgres://localhost/db",
		RelayerPrivateKey: "deadbeef",
		RelayerAddress:    "0xabc",
		Chains: map[string]ChainConfig{
			"sepolia": {
				Tag:                     "sepolia",
				RPCURL:                  "https://rpc.sepolia",
				SubscriptionManagerAddr: "0x1",
				SupportedTokens:         []string{"0xPYUSD"},
			},
		},
	}
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "must include the zero address")
}

func TestValidateDAConfigAllOrNothing(t *testing.T) {
	cfg := baseValidConfig()
	cfg.DARPCURL = "https://da.example"
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "DA_RPC_URL")
}

func TestValidatePasses(t *testing.T) {
	cfg := baseValidConfig()
	assert.NoError(t, cfg.Validate())
}

func baseValidConfig() *Config {
	return &Config{
		DatabaseURL:       "postgres://localhost/db",
		RelayerPrivateKey: "deadbeef",
		RelayerAddress:    "0xabc",
		Chains: map[string]ChainConfig{
			"sepolia": {
				Tag:                     "sepolia",
				RPCURL:                  "https://rpc.sepolia",
				SubscriptionManagerAddr: "0x1",
				SupportedTokens:         []string{zeroAddress, "0xPYUSD"},
			},
		},
	}
}
