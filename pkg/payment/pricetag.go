package payment

import (
	"github.com/ethereum/go-ethereum/common"

	"github.com/eggman-xyz/eggman-go/pkg/types"
)

// NewPriceTag builds the fixed-price requirements for a protected route.
func NewPriceTag(network types.Network, amount, payTo, resource, description string, asset common.Address) *PriceTag {
	return &PriceTag{
		Requirements: types.PaymentRequirements{
			Version:           types.X402VersionV1,
			Scheme:            types.SchemeExact,
			Network:           network,
			PayTo:             payTo,
			MaxAmountRequired: amount,
			Resource:          resource,
			Description:       description,
			MimeType:          "application/json",
			MaxTimeoutSeconds: 60,
			Asset:             asset,
		},
	}
}
