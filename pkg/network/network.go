package network

import (
	"fmt"

	"github.com/eggman-xyz/eggman-go/pkg/types"
)

// ChainID represents an EVM chain ID
type ChainID uint64

const (
	ChainIDBaseSepolia ChainID = 84532
	ChainIDBase        ChainID = 8453
	ChainIDPolygonAmoy ChainID = 80002
	ChainIDPolygon     ChainID = 137
)

// Info contains metadata about a network
type Info struct {
	Network types.Network
	ChainID ChainID
	Name    string
}

var infoMap = map[types.Network]Info{
	types.NetworkBaseSepolia: {
		Network: types.NetworkBaseSepolia,
		ChainID: ChainIDBaseSepolia,
		Name:    "Base Sepolia",
	},
	types.NetworkBase: {
		Network: types.NetworkBase,
		ChainID: ChainIDBase,
		Name:    "Base",
	},
	types.NetworkPolygonAmoy: {
		Network: types.NetworkPolygonAmoy,
		ChainID: ChainIDPolygonAmoy,
		Name:    "Polygon Amoy",
	},
	types.NetworkPolygon: {
		Network: types.NetworkPolygon,
		ChainID: ChainIDPolygon,
		Name:    "Polygon",
	},
}

// GetInfo returns metadata for a supported network
func GetInfo(n types.Network) (Info, error) {
	info, ok := infoMap[n]
	if !ok {
		return Info{}, fmt.Errorf("unsupported network: %s", n)
	}
	return info, nil
}
