package config

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
)

// MintConfig holds the configuration for the NFT mint command
type MintConfig struct {
	Contract   string
	PrivateKey string
	RPCURL     string
	Recipient  string
}

// LoadMintConfig loads the mint command configuration from environment variables
func LoadMintConfig() (*MintConfig, error) {
	_ = godotenv.Load()

	cfg := &MintConfig{
		Contract:   os.Getenv("NFT_CONTRACT_ADDRESS"),
		PrivateKey: os.Getenv("EVM_PRIVATE_KEY"),
		RPCURL:     getEnvOrDefault("RPC_URL_BASE_CHAIN", "https://sepolia.base.org"),
		Recipient:  os.Getenv("RECIPIENT_ADDRESS"),
	}

	if cfg.Contract == "" {
		return nil, fmt.Errorf("NFT_CONTRACT_ADDRESS is required")
	}
	if cfg.PrivateKey == "" {
		return nil, fmt.Errorf("EVM_PRIVATE_KEY is required")
	}

	return cfg, nil
}
