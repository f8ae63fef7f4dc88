// Command walletgen generates a fresh EVM wallet and prints the private
// key and address. Save the key in .env as EVM_PRIVATE_KEY.
package main

import (
	"encoding/hex"
	"fmt"
	"log"

	"github.com/ethereum/go-ethereum/crypto"
)

func main() {
	privateKey, err := crypto.GenerateKey()
	if err != nil {
		log.Fatalf("Failed to generate key: %v", err)
	}

	keyHex := hex.EncodeToString(crypto.FromECDSA(privateKey))
	address := crypto.PubkeyToAddress(privateKey.PublicKey)

	fmt.Println("Private Key:")
	fmt.Printf("  0x%s\n", keyHex)
	fmt.Println("Wallet Address:")
	fmt.Printf("  %s\n", address.Hex())
}
