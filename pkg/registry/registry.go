// Package registry writes blob ownership records to an EVM registry
// contract: addBlob(blobId, userAddress) associates a stored blob with
// the wallet that paid for the upload.
package registry

import (
	"context"
	"crypto/ecdsa"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"
)

const registryABIJSON = `[{"inputs":[{"internalType":"string","name":"blobId","type":"string"},{"internalType":"address","name":"userAddress","type":"address"}],"name":"addBlob","outputs":[],"stateMutability":"nonpayable","type":"function"},{"inputs":[{"internalType":"address","name":"userAddress","type":"address"}],"name":"getUserBlobs","outputs":[{"internalType":"string[]","name":"","type":"string[]"}],"stateMutability":"view","type":"function"},{"inputs":[{"internalType":"string","name":"blobId","type":"string"}],"name":"getBlobOf","outputs":[{"internalType":"address","name":"","type":"address"}],"stateMutability":"view","type":"function"},{"inputs":[],"name":"blobCount","outputs":[{"internalType":"uint256","name":"","type":"uint256"}],"stateMutability":"view","type":"function"}]`

// Registry is the narrow interface the HTTP surface depends on.
type Registry interface {
	// AddBlob records blob ownership on-chain and returns the tx hash.
	AddBlob(ctx context.Context, blobID string, user common.Address) (string, error)
	// UserBlobs returns every blob id registered to the given wallet.
	UserBlobs(ctx context.Context, user common.Address) ([]string, error)
}

// Client talks to the blob registry contract over an EVM RPC endpoint.
type Client struct {
	client     *ethclient.Client
	chainID    *big.Int
	signer     *ecdsa.PrivateKey
	signerAddr common.Address
	contract   common.Address
	abi        abi.ABI
}

// NewClient connects to the RPC endpoint and prepares the signing key.
func NewClient(rpcURL string, chainID *big.Int, privateKeyHex string, contract common.Address) (*Client, error) {
	client, err := ethclient.Dial(rpcURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to RPC: %w", err)
	}

	keyHex := strings.TrimPrefix(privateKeyHex, "0x")
	privateKey, err := crypto.HexToECDSA(keyHex)
	if err != nil {
		return nil, fmt.Errorf("invalid private key: %w", err)
	}

	publicKey, ok := privateKey.Public().(*ecdsa.PublicKey)
	if !ok {
		return nil, fmt.Errorf("error casting public key to ECDSA")
	}

	parsed, err := abi.JSON(strings.NewReader(registryABIJSON))
	if err != nil {
		return nil, fmt.Errorf("failed to parse registry ABI: %w", err)
	}

	return &Client{
		client:     client,
		chainID:    chainID,
		signer:     privateKey,
		signerAddr: crypto.PubkeyToAddress(*publicKey),
		contract:   contract,
		abi:        parsed,
	}, nil
}

// SignerAddress returns the address the client signs transactions with.
func (c *Client) SignerAddress() common.Address {
	return c.signerAddr
}

// AddBlob submits addBlob(blobId, user), waits for the receipt and
// returns the transaction hash.
func (c *Client) AddBlob(ctx context.Context, blobID string, user common.Address) (string, error) {
	data, err := c.abi.Pack("addBlob", blobID, user)
	if err != nil {
		return "", fmt.Errorf("failed to pack addBlob: %w", err)
	}

	tx, err := c.submit(ctx, data)
	if err != nil {
		return "", err
	}

	receipt, err := bind.WaitMined(ctx, c.client, tx)
	if err != nil {
		return "", fmt.Errorf("waiting for tx failed: %w", err)
	}
	if receipt.Status != types.ReceiptStatusSuccessful {
		return "", fmt.Errorf("addBlob transaction reverted")
	}

	return tx.Hash().Hex(), nil
}

// UserBlobs returns every blob id registered to the given wallet.
func (c *Client) UserBlobs(ctx context.Context, user common.Address) ([]string, error) {
	data, err := c.abi.Pack("getUserBlobs", user)
	if err != nil {
		return nil, fmt.Errorf("failed to pack getUserBlobs: %w", err)
	}

	result, err := c.call(ctx, data)
	if err != nil {
		return nil, err
	}

	var blobs []string
	if err := c.abi.UnpackIntoInterface(&blobs, "getUserBlobs", result); err != nil {
		return nil, fmt.Errorf("failed to unpack getUserBlobs result: %w", err)
	}
	return blobs, nil
}

// BlobOwner resolves the wallet a blob id was registered to.
func (c *Client) BlobOwner(ctx context.Context, blobID string) (common.Address, error) {
	data, err := c.abi.Pack("getBlobOf", blobID)
	if err != nil {
		return common.Address{}, fmt.Errorf("failed to pack getBlobOf: %w", err)
	}

	result, err := c.call(ctx, data)
	if err != nil {
		return common.Address{}, err
	}

	var owner common.Address
	if err := c.abi.UnpackIntoInterface(&owner, "getBlobOf", result); err != nil {
		return common.Address{}, fmt.Errorf("failed to unpack getBlobOf result: %w", err)
	}
	return owner, nil
}

func (c *Client) call(ctx context.Context, data []byte) ([]byte, error) {
	msg := ethereum.CallMsg{
		To:   &c.contract,
		Data: data,
	}
	result, err := c.client.CallContract(ctx, msg, nil)
	if err != nil {
		return nil, fmt.Errorf("registry call failed: %w", err)
	}
	return result, nil
}

func (c *Client) submit(ctx context.Context, data []byte) (*types.Transaction, error) {
	nonce, err := c.client.PendingNonceAt(ctx, c.signerAddr)
	if err != nil {
		return nil, fmt.Errorf("failed to get nonce: %w", err)
	}

	gasPrice, err := c.client.SuggestGasPrice(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get gas price: %w", err)
	}

	gasLimit, err := c.client.EstimateGas(ctx, ethereum.CallMsg{
		From: c.signerAddr,
		To:   &c.contract,
		Data: data,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to estimate gas: %w", err)
	}

	tx := types.NewTransaction(nonce, c.contract, big.NewInt(0), gasLimit, gasPrice, data)

	signedTx, err := types.SignTx(tx, types.NewEIP155Signer(c.chainID), c.signer)
	if err != nil {
		return nil, fmt.Errorf("failed to sign tx: %w", err)
	}

	if err := c.client.SendTransaction(ctx, signedTx); err != nil {
		return nil, fmt.Errorf("failed to send tx: %w", err)
	}
	return signedTx, nil
}
