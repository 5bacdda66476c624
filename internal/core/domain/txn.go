package domain

import (
	"bytes"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// Operation is the Safe execution mode.
type Operation uint8

const (
	OperationCall         Operation = 0
	OperationDelegateCall Operation = 1
)

// Valid reports whether the Safe contract accepts the operation.
func (o Operation) Valid() bool {
	return o == OperationCall || o == OperationDelegateCall
}

// Transaction is the payload a Safe would execute.
type Transaction struct {
	To             common.Address
	Value          *big.Int
	Data           []byte
	Operation      Operation
	SafeTxGas      *big.Int
	BaseGas        *big.Int
	GasPrice       *big.Int
	GasToken       common.Address
	RefundReceiver common.Address
}

// Equal compares every field exactly. Two payloads that differ only in a gas
// field are different transactions.
func (t Transaction) Equal(o Transaction) bool {
	return t.To == o.To &&
		bigEqual(t.Value, o.Value) &&
		bytes.Equal(t.Data, o.Data) &&
		t.Operation == o.Operation &&
		bigEqual(t.SafeTxGas, o.SafeTxGas) &&
		bigEqual(t.BaseGas, o.BaseGas) &&
		bigEqual(t.GasPrice, o.GasPrice) &&
		t.GasToken == o.GasToken &&
		t.RefundReceiver == o.RefundReceiver
}

// Clone returns a deep copy.
func (t Transaction) Clone() Transaction {
	c := t
	c.Value = bigCopy(t.Value)
	c.SafeTxGas = bigCopy(t.SafeTxGas)
	c.BaseGas = bigCopy(t.BaseGas)
	c.GasPrice = bigCopy(t.GasPrice)
	c.Data = common.CopyBytes(t.Data)
	return c
}

// StagedTransaction is one candidate in a wallet's queue: the nonce it is
// meant to execute at, the payload, and the signatures collected so far.
// Signatures keep the order the submitter gave them; Safe requires them
// sorted by owner address.
type StagedTransaction struct {
	Nonce      uint64
	Tx         Transaction
	Signatures [][]byte
}

// SignatureCount returns the number of signature blobs.
func (s StagedTransaction) SignatureCount() int {
	return len(s.Signatures)
}

// PackedSignatures concatenates the signature blobs in order.
func (s StagedTransaction) PackedSignatures() []byte {
	return bytes.Join(s.Signatures, nil)
}

// Clone returns a deep copy.
func (s StagedTransaction) Clone() StagedTransaction {
	sigs := make([][]byte, len(s.Signatures))
	for i, sig := range s.Signatures {
		sigs[i] = common.CopyBytes(sig)
	}
	return StagedTransaction{
		Nonce:      s.Nonce,
		Tx:         s.Tx.Clone(),
		Signatures: sigs,
	}
}

func bigEqual(a, b *big.Int) bool {
	if a == nil || b == nil {
		return zeroIfNil(a).Cmp(zeroIfNil(b)) == 0
	}
	return a.Cmp(b) == 0
}

func zeroIfNil(v *big.Int) *big.Int {
	if v == nil {
		return new(big.Int)
	}
	return v
}

func bigCopy(v *big.Int) *big.Int {
	if v == nil {
		return nil
	}
	return new(big.Int).Set(v)
}
