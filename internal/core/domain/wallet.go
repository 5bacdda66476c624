package domain

import (
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"
)

// WalletKey identifies one Safe on one network.
// Addresses are held as 20 raw bytes so hex case never affects equality.
type WalletKey struct {
	ChainID ChainID
	Address common.Address
}

// NewWalletKey parses a hex wallet address for the given chain.
func NewWalletKey(chainID ChainID, address string) (WalletKey, error) {
	if !common.IsHexAddress(address) {
		return WalletKey{}, fmt.Errorf("invalid wallet address %q", address)
	}
	return WalletKey{ChainID: chainID, Address: common.HexToAddress(address)}, nil
}

// String renders the key as "<chain>-<lowercase address>".
func (k WalletKey) String() string {
	return k.ChainID.String() + "-" + strings.ToLower(k.Address.Hex())
}
