// Package config loads relayer configuration from the environment.
package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// ChainConfig holds the per-chain wiring the gateway needs to talk to one EVM chain.
type ChainConfig struct {
	Tag                       string // e.g. "sepolia", "base"
	RPCURL                    string
	SubscriptionManagerAddr   string
	PYUSDAddr                 string
	SupportedTokens           []string
}

// Config holds all configuration for the relayer service.
type Config struct {
	// Database
	DatabaseURL         string
	DatabaseMaxConns    int
	DatabaseMinConns    int
	DatabaseMaxIdleTime int // seconds
	DatabaseMaxLifetime int // seconds

	// Relayer signing identity
	RelayerPrivateKey string
	RelayerAddress    string

	// Chains, keyed by tag ("sepolia", "base")
	Chains map[string]ChainConfig

	// HTTP server
	ServerHost string
	ServerPort int

	// Scheduler
	ExecutionIntervalSeconds int
	MaxExecutionsPerBatch    int
	MaxGasPriceGwei          int64

	// Data-availability publisher (optional, all-or-nothing)
	DARPCURL     string
	DAAppID      string
	DASigningKey string

	// Indexer (optional, all-or-nothing)
	IndexerGraphQLEndpoint string
	IndexerExplorerURL     string

	// Ambient
	LogLevel string
	JWTSecret string
}

// Load reads configuration from environment variables, loading a local .env
// file first on a best-effort basis (missing files are not an error).
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		log.Printf("[config] no .env file loaded: %v", err)
	}

	cfg := &Config{
		DatabaseURL:         getEnv("DATABASE_URL", ""),
		DatabaseMaxConns:    getEnvInt("DATABASE_MAX_CONNS", 25),
		DatabaseMinConns:    getEnvInt("DATABASE_MIN_CONNS", 5),
		DatabaseMaxIdleTime: getEnvInt("DATABASE_MAX_IDLE_TIME", 300),
		DatabaseMaxLifetime: getEnvInt("DATABASE_MAX_LIFETIME", 3600),

		RelayerPrivateKey: getEnv("RELAYER_PRIVATE_KEY", ""),
		RelayerAddress:    getEnv("RELAYER_ADDRESS", ""),

		ServerHost: getEnv("SERVER_HOST", "0.0.0.0"),
		ServerPort: getEnvInt("SERVER_PORT", 3000),

		ExecutionIntervalSeconds: getEnvInt("EXECUTION_INTERVAL_SECONDS", 30),
		MaxExecutionsPerBatch:    getEnvInt("MAX_EXECUTIONS_PER_BATCH", 10),
		MaxGasPriceGwei:          getEnvInt64("MAX_GAS_PRICE_GWEI", 50),

		DARPCURL:     getEnv("DA_RPC_URL", ""),
		DAAppID:      getEnv("DA_APPLICATION_ID", ""),
		DASigningKey: getEnv("DA_SIGNING_KEY", ""),

		IndexerGraphQLEndpoint: getEnv("INDEXER_GRAPHQL_ENDPOINT", ""),
		IndexerExplorerURL:     getEnv("INDEXER_EXPLORER_URL", ""),

		LogLevel:  getEnv("LOG_LEVEL", "info"),
		JWTSecret: getEnv("JWT_SECRET", ""),
	}

	cfg.Chains = make(map[string]ChainConfig)
	for _, tag := range []string{"sepolia", "base"} {
		upper := strings.ToUpper(tag)
		chainCfg := ChainConfig{
			Tag:                     tag,
			RPCURL:                  getEnv(rpcURLVar(tag), ""),
			SubscriptionManagerAddr: getEnv("SUBSCRIPTION_MANAGER_ADDRESS_"+upper, ""),
			PYUSDAddr:               getEnv("PYUSD_"+upper, ""),
			SupportedTokens:         splitCSV(getEnv("SUPPORTED_TOKENS_"+upper, "")),
		}
		cfg.Chains[tag] = chainCfg
	}

	return cfg, nil
}

func rpcURLVar(tag string) string {
	switch tag {
	case "sepolia":
		return "ETHEREUM_RPC_URL"
	case "base":
		return "BASE_RPC_URL"
	default:
		return strings.ToUpper(tag) + "_RPC_URL"
	}
}

// Validate checks that all required configuration is present.
func (c *Config) Validate() error {
	var errs []string

	if c.DatabaseURL == "" {
		errs = append(errs, "DATABASE_URL is required but not set")
	}
	if c.RelayerPrivateKey == "" {
		errs = append(errs, "RELAYER_PRIVATE_KEY is required but not set")
	}
	if c.RelayerAddress == "" {
		errs = append(errs, "RELAYER_ADDRESS is required but not set")
	}

	for tag, chainCfg := range c.Chains {
		upper := strings.ToUpper(tag)
		if chainCfg.RPCURL == "" {
			errs = append(errs, fmt.Sprintf("%s is required but not set", rpcURLVar(tag)))
		}
		if chainCfg.SubscriptionManagerAddr == "" {
			errs = append(errs, "SUBSCRIPTION_MANAGER_ADDRESS_"+upper+" is required but not set")
		}
		if len(chainCfg.SupportedTokens) == 0 {
			errs = append(errs, "SUPPORTED_TOKENS_"+upper+" is required but not set")
		} else {
			hasZero := false
			for _, t := range chainCfg.SupportedTokens {
				if strings.EqualFold(t, zeroAddress) {
					hasZero = true
					break
				}
			}
			if !hasZero {
				errs = append(errs, "SUPPORTED_TOKENS_"+upper+" must include the zero address for native")
			}
		}
	}

	if err := c.validateDAConfig(); err != nil {
		errs = append(errs, err.Error())
	}
	if err := c.validateIndexerConfig(); err != nil {
		errs = append(errs, err.Error())
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}

const zeroAddress = "0x0000000000000000000000000000000000000000"

// validateDAConfig enforces the all-or-nothing rule for the optional DA publisher.
func (c *Config) validateDAConfig() error {
	set := []bool{c.DARPCURL != "", c.DAAppID != "", c.DASigningKey != ""}
	if allEqual(set) {
		return nil
	}
	return fmt.Errorf("DA_RPC_URL, DA_APPLICATION_ID, DA_SIGNING_KEY must all be set or all unset")
}

// validateIndexerConfig enforces the all-or-nothing rule for the optional indexer.
func (c *Config) validateIndexerConfig() error {
	set := []bool{c.IndexerGraphQLEndpoint != "", c.IndexerExplorerURL != ""}
	if allEqual(set) {
		return nil
	}
	return fmt.Errorf("INDEXER_GRAPHQL_ENDPOINT, INDEXER_EXPLORER_URL must both be set or both unset")
}

func allEqual(bs []bool) bool {
	for _, b := range bs {
		if b != bs[0] {
			return false
		}
	}
	return true
}

func splitCSV(value string) []string {
	if value == "" {
		return nil
	}
	parts := strings.Split(value, ",")
	result := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			result = append(result, p)
		}
	}
	return result
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvInt64(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.ParseInt(value, 10, 64); err == nil {
			return intValue
		}
	}
	return defaultValue
}
