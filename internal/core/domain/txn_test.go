package domain

import (
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleTx() Transaction {
	return Transaction{
		To:             common.HexToAddress("0x00000000000000000000000000000000000000aa"),
		Value:          big.NewInt(1000),
		Data:           []byte{0xde, 0xad},
		Operation:      OperationCall,
		SafeTxGas:      big.NewInt(0),
		BaseGas:        big.NewInt(0),
		GasPrice:       big.NewInt(0),
		GasToken:       common.Address{},
		RefundReceiver: common.Address{},
	}
}

func TestTransaction_Equal(t *testing.T) {
	base := sampleTx()

	tests := []struct {
		name   string
		mutate func(tx *Transaction)
		equal  bool
	}{
		{"identical", func(tx *Transaction) {}, true},
		{"nil gas equals zero gas", func(tx *Transaction) { tx.SafeTxGas = nil }, true},
		{"different value", func(tx *Transaction) { tx.Value = big.NewInt(1001) }, false},
		{"different data", func(tx *Transaction) { tx.Data = []byte{0xde} }, false},
		{"different operation", func(tx *Transaction) { tx.Operation = OperationDelegateCall }, false},
		{"different base gas", func(tx *Transaction) { tx.BaseGas = big.NewInt(21000) }, false},
		{"different gas price", func(tx *Transaction) { tx.GasPrice = big.NewInt(1) }, false},
		{"different gas token", func(tx *Transaction) { tx.GasToken = common.HexToAddress("0x01") }, false},
		{"different refund receiver", func(tx *Transaction) { tx.RefundReceiver = common.HexToAddress("0x02") }, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			other := base.Clone()
			tt.mutate(&other)
			assert.Equal(t, tt.equal, base.Equal(other))
			assert.Equal(t, tt.equal, other.Equal(base))
		})
	}
}

func TestStagedTransaction_CloneIsDeep(t *testing.T) {
	orig := StagedTransaction{
		Nonce:      3,
		Tx:         sampleTx(),
		Signatures: [][]byte{{0x01, 0x02}},
	}
	c := orig.Clone()
	c.Signatures[0][0] = 0xff
	c.Tx.Value.SetInt64(7)
	c.Tx.Data[0] = 0x00

	assert.Equal(t, byte(0x01), orig.Signatures[0][0])
	assert.Equal(t, int64(1000), orig.Tx.Value.Int64())
	assert.Equal(t, byte(0xde), orig.Tx.Data[0])
}

func TestStagedTransaction_PackedSignatures(t *testing.T) {
	s := StagedTransaction{Signatures: [][]byte{{0x01}, {0x02, 0x03}}}
	assert.Equal(t, []byte{0x01, 0x02, 0x03}, s.PackedSignatures())
	assert.Equal(t, 2, s.SignatureCount())
}

func TestNewWalletKey_NormalisesCase(t *testing.T) {
	lower, err := NewWalletKey(ChainIDEthereum, "0xabcdefabcdefabcdefabcdefabcdefabcdefabcd")
	require.NoError(t, err)
	upper, err := NewWalletKey(ChainIDEthereum, "0xABCDEFABCDEFABCDEFABCDEFABCDEFABCDEFABCD")
	require.NoError(t, err)

	assert.Equal(t, lower, upper)
	assert.Equal(t, "1-0xabcdefabcdefabcdefabcdefabcdefabcdefabcd", upper.String())

	other, err := NewWalletKey(ChainIDPolygon, "0xabcdefabcdefabcdefabcdefabcdefabcdefabcd")
	require.NoError(t, err)
	assert.NotEqual(t, lower, other)
}

func TestNewWalletKey_RejectsMalformed(t *testing.T) {
	for _, addr := range []string{"", "0x1234", "not-an-address", "0xzzzzzzzzzzzzzzzzzzzzzzzzzzzzzzzzzzzzzzzz"} {
		_, err := NewWalletKey(ChainIDEthereum, addr)
		assert.Error(t, err, addr)
	}
}

func TestParseChainID(t *testing.T) {
	id, err := ParseChainID("137")
	require.NoError(t, err)
	assert.Equal(t, ChainIDPolygon, id)
	assert.Equal(t, "polygon", id.Name())
	assert.Equal(t, "999", ChainID(999).Name())

	_, err = ParseChainID("-1")
	assert.Error(t, err)
	_, err = ParseChainID("0x1")
	assert.Error(t, err)
}
