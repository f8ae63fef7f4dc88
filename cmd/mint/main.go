// Command mint submits a mint(to) transaction against a configured
// ERC-721 contract and waits for the receipt.
//
// Environment: NFT_CONTRACT_ADDRESS, EVM_PRIVATE_KEY, RPC_URL_BASE_CHAIN,
// RECIPIENT_ADDRESS (defaults to the signer's own address).
package main

import (
	"context"
	"log"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"

	"github.com/eggman-xyz/eggman-go/pkg/config"
)

const mintABIJSON = `[{"inputs":[{"internalType":"address","name":"to","type":"address"}],"name":"mint","outputs":[{"internalType":"uint256","name":"","type":"uint256"}],"stateMutability":"nonpayable","type":"function"}]`

func main() {
	log.SetFlags(log.Ldate | log.Ltime)

	cfg, err := config.LoadMintConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	privateKey, err := crypto.HexToECDSA(strings.TrimPrefix(cfg.PrivateKey, "0x"))
	if err != nil {
		log.Fatalf("Invalid private key: %v", err)
	}
	signerAddr := crypto.PubkeyToAddress(privateKey.PublicKey)

	recipient := signerAddr
	if cfg.Recipient != "" {
		if !common.IsHexAddress(cfg.Recipient) {
			log.Fatalf("Invalid RECIPIENT_ADDRESS: %s", cfg.Recipient)
		}
		recipient = common.HexToAddress(cfg.Recipient)
	}

	client, err := ethclient.Dial(cfg.RPCURL)
	if err != nil {
		log.Fatalf("Failed to connect to RPC: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	chainID, err := client.ChainID(ctx)
	if err != nil {
		log.Fatalf("Failed to get chain ID: %v", err)
	}

	parsed, err := abi.JSON(strings.NewReader(mintABIJSON))
	if err != nil {
		log.Fatalf("Failed to parse ABI: %v", err)
	}
	data, err := parsed.Pack("mint", recipient)
	if err != nil {
		log.Fatalf("Failed to pack mint call: %v", err)
	}

	contract := common.HexToAddress(cfg.Contract)

	nonce, err := client.PendingNonceAt(ctx, signerAddr)
	if err != nil {
		log.Fatalf("Failed to get nonce: %v", err)
	}
	gasPrice, err := client.SuggestGasPrice(ctx)
	if err != nil {
		log.Fatalf("Failed to get gas price: %v", err)
	}
	gasLimit, err := client.EstimateGas(ctx, ethereum.CallMsg{
		From: signerAddr,
		To:   &contract,
		Data: data,
	})
	if err != nil {
		log.Fatalf("Mint simulation failed: %v", err)
	}

	tx := types.NewTransaction(nonce, contract, big.NewInt(0), gasLimit, gasPrice, data)
	signedTx, err := types.SignTx(tx, types.NewEIP155Signer(chainID), privateKey)
	if err != nil {
		log.Fatalf("Failed to sign tx: %v", err)
	}

	log.Printf("Minting to %s with signer %s", recipient.Hex(), signerAddr.Hex())
	if err := client.SendTransaction(ctx, signedTx); err != nil {
		log.Fatalf("Failed to send tx: %v", err)
	}
	log.Printf("Transaction hash: %s", signedTx.Hash().Hex())

	receipt, err := bind.WaitMined(ctx, client, signedTx)
	if err != nil {
		log.Fatalf("Waiting for tx failed: %v", err)
	}
	if receipt.Status != types.ReceiptStatusSuccessful {
		log.Fatalf("Mint transaction reverted")
	}
	log.Printf("Mint confirmed in block %d", receipt.BlockNumber.Uint64())
}
