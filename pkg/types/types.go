package types

import (
	"encoding/json"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
)

// X402Version represents the protocol version
type X402Version string

const (
	X402VersionV1 X402Version = "1"
)

// Scheme represents the payment scheme
type Scheme string

const (
	SchemeExact Scheme = "exact"
)

// Network represents supported blockchain networks
type Network string

const (
	NetworkBaseSepolia Network = "base-sepolia"
	NetworkBase        Network = "base"
	NetworkPolygonAmoy Network = "polygon-amoy"
	NetworkPolygon     Network = "polygon"
)

// PaymentRequirements specifies what payment is required for a route
type PaymentRequirements struct {
	Version           X402Version     `json:"version"`
	Scheme            Scheme          `json:"scheme"`
	Network           Network         `json:"network"`
	PayTo             string          `json:"payTo"`
	MaxAmountRequired string          `json:"maxAmountRequired"`
	Resource          string          `json:"resource"`
	Description       string          `json:"description"`
	MimeType          string          `json:"mimeType"`
	MaxTimeoutSeconds int             `json:"maxTimeoutSeconds"`
	Asset             common.Address  `json:"asset"`
	OutputSchema      json.RawMessage `json:"outputSchema"`
	Extra             json.RawMessage `json:"extra"`
}

// ExactEvmPayloadAuthorization represents EIP-3009 transfer authorization data
type ExactEvmPayloadAuthorization struct {
	From        common.Address `json:"from"`
	To          common.Address `json:"to"`
	Value       string         `json:"value"`
	ValidAfter  string         `json:"validAfter"`
	ValidBefore string         `json:"validBefore"`
	Nonce       string         `json:"nonce"` // hex-encoded
}

// ExactEvmPayload contains the signed EVM payment payload
type ExactEvmPayload struct {
	Signature     string                       `json:"signature"` // hex-encoded
	Authorization ExactEvmPayloadAuthorization `json:"authorization"`
}

// PaymentPayload contains the complete payment information from the client
type PaymentPayload struct {
	X402Version int             `json:"x402Version"`
	Scheme      Scheme          `json:"scheme"`
	Network     Network         `json:"network"`
	Payload     ExactEvmPayload `json:"payload"`
}

// VerifyRequest is the request sent to the facilitator's /verify endpoint
type VerifyRequest struct {
	X402Version         int                 `json:"x402Version"`
	PaymentPayload      PaymentPayload      `json:"paymentPayload"`
	PaymentRequirements PaymentRequirements `json:"paymentRequirements"`
}

// SettleRequest is the request sent to the facilitator's /settle endpoint
type SettleRequest struct {
	PaymentPayload      PaymentPayload      `json:"paymentPayload"`
	PaymentRequirements PaymentRequirements `json:"paymentRequirements"`
}

// VerifyResponse is the facilitator's answer to a verification request
type VerifyResponse struct {
	IsValid bool   `json:"isValid"`
	Payer   string `json:"payer,omitempty"`
	Reason  string `json:"reason,omitempty"`
}

// SettleResponse is the facilitator's answer to a settlement request
type SettleResponse struct {
	Success         bool   `json:"success"`
	TransactionHash string `json:"transaction_hash,omitempty"`
	Error           string `json:"error,omitempty"`
}

// PaymentError represents a payment-protocol level failure
type PaymentError struct {
	Type    string
	Message string
	Payer   string
}

func (e *PaymentError) Error() string {
	if e.Payer != "" {
		return fmt.Sprintf("%s: %s (payer: %s)", e.Type, e.Message, e.Payer)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

func NewVerificationFailedError(reason, payer string) *PaymentError {
	return &PaymentError{
		Type:    "VerificationFailed",
		Message: reason,
		Payer:   payer,
	}
}

func NewSettlementFailedError(reason string) *PaymentError {
	return &PaymentError{
		Type:    "SettlementFailed",
		Message: reason,
	}
}

func NewDecodingError(message string) *PaymentError {
	return &PaymentError{
		Type:    "DecodingError",
		Message: message,
	}
}

// IsEVM returns true if the network is EVM-compatible
func (n Network) IsEVM() bool {
	switch n {
	case NetworkBaseSepolia, NetworkBase, NetworkPolygonAmoy, NetworkPolygon:
		return true
	default:
		return false
	}
}
