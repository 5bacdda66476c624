package api

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/common/math"
	"github.com/vietddude/stager/internal/core/domain"
)

// ErrInvalidRequest marks bodies and paths that fail to parse. It is never
// returned by the store.
var ErrInvalidRequest = errors.New("invalid request")

// ProposeRequest is the POST body: one signed staged transaction.
type ProposeRequest struct {
	Nonce json.RawMessage `json:"nonce"`
	Txn   *TxnRequest     `json:"txn"`
	Sigs  []string        `json:"sigs"`
}

// TxnRequest carries the Safe transaction fields as sent by wallet clients.
// Numeric fields accept decimal strings, 0x-hex strings or JSON numbers.
type TxnRequest struct {
	To             *string         `json:"to"`
	Value          json.RawMessage `json:"value"`
	Data           string          `json:"data"`
	Operation      json.RawMessage `json:"operation"`
	SafeTxGas      json.RawMessage `json:"safeTxGas"`
	BaseGas        json.RawMessage `json:"baseGas"`
	GasPrice       json.RawMessage `json:"gasPrice"`
	GasToken       string          `json:"gasToken"`
	RefundReceiver string          `json:"refundReceiver"`
}

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidRequest, fmt.Sprintf(format, args...))
}

// Staged validates the request and converts it to a staged transaction.
func (r *ProposeRequest) Staged() (domain.StagedTransaction, error) {
	var staged domain.StagedTransaction

	if isAbsent(r.Nonce) {
		return staged, invalid("nonce is required")
	}
	nonce, err := parseUint256(r.Nonce)
	if err != nil {
		return staged, invalid("nonce: %v", err)
	}
	if !nonce.IsUint64() {
		return staged, invalid("nonce %s out of range", nonce)
	}
	staged.Nonce = nonce.Uint64()

	if r.Txn == nil {
		return staged, invalid("txn is required")
	}
	tx, err := r.Txn.transaction()
	if err != nil {
		return staged, err
	}
	staged.Tx = tx

	if len(r.Sigs) == 0 {
		return staged, invalid("sigs must contain at least one signature")
	}
	staged.Signatures = make([][]byte, len(r.Sigs))
	for i, s := range r.Sigs {
		sig, err := hexutil.Decode(s)
		if err != nil || len(sig) == 0 {
			return staged, invalid("sigs[%d]: malformed hex signature", i)
		}
		staged.Signatures[i] = sig
	}
	return staged, nil
}

func (t *TxnRequest) transaction() (domain.Transaction, error) {
	var tx domain.Transaction
	var err error

	if t.To == nil || *t.To == "" {
		return tx, invalid("txn.to is required")
	}
	if tx.To, err = parseAddress(*t.To); err != nil {
		return tx, invalid("txn.to: %v", err)
	}
	if tx.GasToken, err = parseAddress(t.GasToken); err != nil {
		return tx, invalid("txn.gasToken: %v", err)
	}
	if tx.RefundReceiver, err = parseAddress(t.RefundReceiver); err != nil {
		return tx, invalid("txn.refundReceiver: %v", err)
	}

	if tx.Data, err = parseBytes(t.Data); err != nil {
		return tx, invalid("txn.data: %v", err)
	}

	op, err := parseUint256(t.Operation)
	if err != nil {
		return tx, invalid("txn.operation: %v", err)
	}
	if !op.IsUint64() || op.Uint64() > 255 || !domain.Operation(op.Uint64()).Valid() {
		return tx, invalid("txn.operation: unknown operation %s", op)
	}
	tx.Operation = domain.Operation(op.Uint64())

	fields := []struct {
		name string
		raw  json.RawMessage
		dst  **big.Int
	}{
		{"value", t.Value, &tx.Value},
		{"safeTxGas", t.SafeTxGas, &tx.SafeTxGas},
		{"baseGas", t.BaseGas, &tx.BaseGas},
		{"gasPrice", t.GasPrice, &tx.GasPrice},
	}
	for _, f := range fields {
		v, err := parseUint256(f.raw)
		if err != nil {
			return tx, invalid("txn.%s: %v", f.name, err)
		}
		*f.dst = v
	}
	return tx, nil
}

func isAbsent(raw json.RawMessage) bool {
	trimmed := bytes.TrimSpace(raw)
	return len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null"))
}

// parseUint256 accepts "123", "0x7b" or 123. Absent values are zero.
func parseUint256(raw json.RawMessage) (*big.Int, error) {
	if isAbsent(raw) {
		return new(big.Int), nil
	}

	var s string
	if raw[0] == '"' {
		if err := json.Unmarshal(raw, &s); err != nil {
			return nil, err
		}
	} else {
		s = string(bytes.TrimSpace(raw))
	}
	s = strings.TrimSpace(s)

	if strings.HasPrefix(s, "-") {
		return nil, fmt.Errorf("negative value %q", s)
	}
	v, ok := math.ParseBig256(s)
	if !ok {
		return nil, fmt.Errorf("invalid uint256 %q", s)
	}
	return v, nil
}

// parseAddress accepts any hex case. Empty means the zero address.
func parseAddress(s string) (common.Address, error) {
	if s == "" {
		return common.Address{}, nil
	}
	if !common.IsHexAddress(s) {
		return common.Address{}, fmt.Errorf("malformed address %q", s)
	}
	return common.HexToAddress(s), nil
}

// parseBytes accepts 0x-prefixed hex. Empty means no data.
func parseBytes(s string) ([]byte, error) {
	if s == "" || s == "0x" || s == "0X" {
		return []byte{}, nil
	}
	b, err := hexutil.Decode(s)
	if err != nil {
		return nil, fmt.Errorf("malformed hex: %w", err)
	}
	return b, nil
}
