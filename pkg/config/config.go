package config

import (
	"fmt"
	"math/big"
	"os"
	"strconv"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/joho/godotenv"

	"github.com/eggman-xyz/eggman-go/pkg/network"
	"github.com/eggman-xyz/eggman-go/pkg/registry"
	"github.com/eggman-xyz/eggman-go/pkg/types"
)

// Config holds the application configuration
type Config struct {
	Host string
	Port string

	// Payment gating
	FacilitatorURL string
	Network        types.Network
	PayTo          string
	Price          string // smallest token units, e.g. "25000" for 0.025 USDC
	Asset          string

	// Walrus storage
	WalrusPublisherURL  string
	WalrusAggregatorURL string
	WalrusEpochs        int

	// Chain registry
	RPCURL           string
	EVMPrivateKey    string
	RegistryContract string

	// Token ledger
	TokenTTL  time.Duration
	RedisAddr string

	// Local scratch storage
	TmpDir string

	// Admin surface
	AdminJWTSecret string
}

// LoadConfig loads configuration from environment variables
func LoadConfig() (*Config, error) {
	// Try to load .env file (ignore error if not found)
	_ = godotenv.Load()

	cfg := &Config{
		Host:                getEnvOrDefault("HOST", "0.0.0.0"),
		Port:                getEnvOrDefault("PORT", "8080"),
		FacilitatorURL:      getEnvOrDefault("FACILITATOR_URL", "https://x402.org/facilitator"),
		Network:             types.Network(getEnvOrDefault("NETWORK", string(types.NetworkBaseSepolia))),
		PayTo:               os.Getenv("PAY_TO_ADDRESS"),
		Price:               getEnvOrDefault("PRICE", "25000"),
		Asset:               getEnvOrDefault("ASSET_ADDRESS", "0x036CbD53842c5426634e7929541eC2318f3dCF7e"), // USDC on Base Sepolia
		WalrusPublisherURL:  getEnvOrDefault("WALRUS_PUBLISHER_URL", "https://publisher.walrus-testnet.walrus.space"),
		WalrusAggregatorURL: getEnvOrDefault("WALRUS_AGGREGATOR_URL", "https://aggregator.walrus-testnet.walrus.space"),
		WalrusEpochs:        getEnvIntOrDefault("WALRUS_EPOCHS", 1),
		RPCURL:              os.Getenv("RPC_URL_BASE_CHAIN"),
		EVMPrivateKey:       os.Getenv("EVM_PRIVATE_KEY"),
		RegistryContract:    os.Getenv("REGISTRY_CONTRACT_ADDRESS"),
		TokenTTL:            time.Duration(getEnvIntOrDefault("TOKEN_TTL_SECONDS", 600)) * time.Second,
		RedisAddr:           os.Getenv("REDIS_ADDR"),
		TmpDir:              getEnvOrDefault("TMP_DIR", "tmp"),
		AdminJWTSecret:      os.Getenv("ADMIN_JWT_SECRET"),
	}

	if cfg.PayTo == "" {
		return nil, fmt.Errorf("PAY_TO_ADDRESS is required")
	}
	if !cfg.Network.IsEVM() {
		return nil, fmt.Errorf("unsupported network: %s", cfg.Network)
	}

	return cfg, nil
}

// RegistryEnabled reports whether the on-chain registry is configured.
func (c *Config) RegistryEnabled() bool {
	return c.RPCURL != "" && c.EVMPrivateKey != "" && c.RegistryContract != ""
}

// InitializeRegistry creates the chain registry client from the configuration
func (c *Config) InitializeRegistry() (*registry.Client, error) {
	if !c.RegistryEnabled() {
		return nil, fmt.Errorf("registry is not configured (RPC_URL_BASE_CHAIN, EVM_PRIVATE_KEY, REGISTRY_CONTRACT_ADDRESS)")
	}

	netInfo, err := network.GetInfo(c.Network)
	if err != nil {
		return nil, fmt.Errorf("failed to get network info for %s: %w", c.Network, err)
	}

	chainID := big.NewInt(int64(netInfo.ChainID))
	client, err := registry.NewClient(c.RPCURL, chainID, c.EVMPrivateKey, common.HexToAddress(c.RegistryContract))
	if err != nil {
		return nil, fmt.Errorf("failed to create registry client for %s: %w", netInfo.Name, err)
	}
	return client, nil
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvIntOrDefault(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if v, err := strconv.Atoi(value); err == nil {
			return v
		}
	}
	return defaultValue
}
