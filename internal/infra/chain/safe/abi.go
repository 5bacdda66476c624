package safe

import (
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
)

// safeABI is the subset of the Safe singleton ABI (v1.3.0 / v1.4.1) the
// gateway calls.
const safeABI = `[
	{
		"inputs": [],
		"name": "nonce",
		"outputs": [{"internalType": "uint256", "name": "", "type": "uint256"}],
		"stateMutability": "view",
		"type": "function"
	},
	{
		"inputs": [
			{"internalType": "address", "name": "to", "type": "address"},
			{"internalType": "uint256", "name": "value", "type": "uint256"},
			{"internalType": "bytes", "name": "data", "type": "bytes"},
			{"internalType": "enum Enum.Operation", "name": "operation", "type": "uint8"},
			{"internalType": "uint256", "name": "safeTxGas", "type": "uint256"},
			{"internalType": "uint256", "name": "baseGas", "type": "uint256"},
			{"internalType": "uint256", "name": "gasPrice", "type": "uint256"},
			{"internalType": "address", "name": "gasToken", "type": "address"},
			{"internalType": "address", "name": "refundReceiver", "type": "address"},
			{"internalType": "uint256", "name": "_nonce", "type": "uint256"}
		],
		"name": "encodeTransactionData",
		"outputs": [{"internalType": "bytes", "name": "", "type": "bytes"}],
		"stateMutability": "view",
		"type": "function"
	},
	{
		"inputs": [
			{"internalType": "bytes32", "name": "dataHash", "type": "bytes32"},
			{"internalType": "bytes", "name": "data", "type": "bytes"},
			{"internalType": "bytes", "name": "signatures", "type": "bytes"},
			{"internalType": "uint256", "name": "requiredSignatures", "type": "uint256"}
		],
		"name": "checkNSignatures",
		"outputs": [],
		"stateMutability": "view",
		"type": "function"
	}
]`

const (
	methodNonce            = "nonce"
	methodEncodeTxData     = "encodeTransactionData"
	methodCheckNSignatures = "checkNSignatures"
)

var parsedABI = mustParseABI()

func mustParseABI() abi.ABI {
	parsed, err := abi.JSON(strings.NewReader(safeABI))
	if err != nil {
		panic("safe: invalid embedded ABI: " + err.Error())
	}
	return parsed
}
