package api

import (
	"math/big"
	"strconv"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/vietddude/stager/internal/core/domain"
)

// StagedResponse is the wire form of one staged transaction.
type StagedResponse struct {
	Nonce uint64      `json:"nonce"`
	Txn   TxnResponse `json:"txn"`
	Sigs  []string    `json:"sigs"`
}

// TxnResponse mirrors TxnRequest with canonical encodings: checksummed
// addresses, decimal integers and 0x hex data.
type TxnResponse struct {
	To             string `json:"to"`
	Value          string `json:"value"`
	Data           string `json:"data"`
	Operation      string `json:"operation"`
	SafeTxGas      string `json:"safeTxGas"`
	BaseGas        string `json:"baseGas"`
	GasPrice       string `json:"gasPrice"`
	GasToken       string `json:"gasToken"`
	RefundReceiver string `json:"refundReceiver"`
}

// ErrorResponse is returned with every non-200 status.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}

func toResponse(entries []domain.StagedTransaction) []StagedResponse {
	out := make([]StagedResponse, len(entries))
	for i, e := range entries {
		sigs := make([]string, len(e.Signatures))
		for j, s := range e.Signatures {
			sigs[j] = hexutil.Encode(s)
		}
		out[i] = StagedResponse{
			Nonce: e.Nonce,
			Txn: TxnResponse{
				To:             e.Tx.To.Hex(),
				Value:          decimal(e.Tx.Value),
				Data:           hexutil.Encode(e.Tx.Data),
				Operation:      strconv.Itoa(int(e.Tx.Operation)),
				SafeTxGas:      decimal(e.Tx.SafeTxGas),
				BaseGas:        decimal(e.Tx.BaseGas),
				GasPrice:       decimal(e.Tx.GasPrice),
				GasToken:       e.Tx.GasToken.Hex(),
				RefundReceiver: e.Tx.RefundReceiver.Hex(),
			},
			Sigs: sigs,
		}
	}
	return out
}

func decimal(v *big.Int) string {
	if v == nil {
		return "0"
	}
	return v.String()
}
