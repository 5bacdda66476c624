package domain

import (
	"fmt"
	"strconv"
)

// ChainID is the EIP-155 network identifier.
type ChainID uint64

const (
	ChainIDEthereum ChainID = 1
	ChainIDOptimism ChainID = 10
	ChainIDPolygon  ChainID = 137
	ChainIDBase     ChainID = 8453
	ChainIDArbitrum ChainID = 42161
	ChainIDSepolia  ChainID = 11155111
)

// ChainIDToName maps well known chain IDs to a display name.
var ChainIDToName = map[ChainID]string{
	ChainIDEthereum: "ethereum",
	ChainIDOptimism: "optimism",
	ChainIDPolygon:  "polygon",
	ChainIDBase:     "base",
	ChainIDArbitrum: "arbitrum",
	ChainIDSepolia:  "sepolia",
}

// ParseChainID parses a decimal chain identifier.
func ParseChainID(s string) (ChainID, error) {
	id, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid chain id %q: %w", s, err)
	}
	return ChainID(id), nil
}

func (c ChainID) String() string {
	return strconv.FormatUint(uint64(c), 10)
}

// Name returns the display name for the chain, or its numeric ID if unknown.
func (c ChainID) Name() string {
	if name, ok := ChainIDToName[c]; ok {
		return name
	}
	return c.String()
}
