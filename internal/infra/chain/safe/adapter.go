// Package safe implements chain.Gateway for Safe smart-contract wallets
// over plain JSON-RPC eth_call.
package safe

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/big"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/vietddude/stager/internal/core/domain"
	"github.com/vietddude/stager/internal/infra/chain"
	"github.com/vietddude/stager/internal/infra/rpc"
)

// Gateway reads Safe state through a chain-scoped RPC client. Nothing is
// cached; every call reaches the node.
type Gateway struct {
	chainID domain.ChainID
	client  rpc.RPCClient
	abi     abi.ABI
	log     *slog.Logger
}

var _ chain.Gateway = (*Gateway)(nil)

// NewGateway creates a Safe gateway for one chain.
func NewGateway(chainID domain.ChainID, client rpc.RPCClient) *Gateway {
	return &Gateway{
		chainID: chainID,
		client:  client,
		abi:     parsedABI,
		log:     slog.Default().With("component", "safe", "chain", chainID.Name()),
	}
}

// CurrentNonce calls nonce() on the wallet at the latest block.
func (g *Gateway) CurrentNonce(ctx context.Context, key domain.WalletKey) (uint64, error) {
	raw, err := g.call(ctx, key.Address, methodNonce)
	if err != nil {
		return 0, err
	}
	if len(raw) == 0 {
		return 0, fmt.Errorf("%w: %s returned no data for nonce()", chain.ErrNotWallet, key.Address.Hex())
	}

	out, err := g.abi.Unpack(methodNonce, raw)
	if err != nil {
		return 0, fmt.Errorf("decode nonce(): %w", err)
	}
	n, ok := out[0].(*big.Int)
	if !ok {
		return 0, fmt.Errorf("decode nonce(): unexpected type %T", out[0])
	}
	if !n.IsUint64() {
		return 0, fmt.Errorf("nonce %s out of range", n)
	}
	return n.Uint64(), nil
}

// VerifySignatures asks the wallet to encode the transaction data for the
// staged nonce and then checks all staged signatures against its hash.
func (g *Gateway) VerifySignatures(ctx context.Context, key domain.WalletKey, staged domain.StagedTransaction) (bool, error) {
	txData, err := g.EncodeTransactionData(ctx, key, staged)
	if err != nil {
		return false, err
	}

	hash := crypto.Keccak256Hash(txData)
	sigs := staged.PackedSignatures()
	required := big.NewInt(int64(staged.SignatureCount()))

	_, err = g.call(ctx, key.Address, methodCheckNSignatures, [32]byte(hash), txData, sigs, required)
	if err != nil {
		var rpcErr *rpc.RPCError
		if errors.As(err, &rpcErr) && rpcErr.ExecutionReverted() {
			g.log.Debug("Signature check reverted",
				"wallet", key.Address.Hex(),
				"nonce", staged.Nonce,
				"reason", rpcErr.Message,
			)
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// EncodeTransactionData returns the EIP-712 encoded transaction data the
// wallet computes for staged.
func (g *Gateway) EncodeTransactionData(ctx context.Context, key domain.WalletKey, staged domain.StagedTransaction) ([]byte, error) {
	tx := staged.Tx
	raw, err := g.call(ctx, key.Address, methodEncodeTxData,
		tx.To,
		orZero(tx.Value),
		nonNil(tx.Data),
		uint8(tx.Operation),
		orZero(tx.SafeTxGas),
		orZero(tx.BaseGas),
		orZero(tx.GasPrice),
		tx.GasToken,
		tx.RefundReceiver,
		new(big.Int).SetUint64(staged.Nonce),
	)
	if err != nil {
		var rpcErr *rpc.RPCError
		if errors.As(err, &rpcErr) && rpcErr.ExecutionReverted() {
			return nil, fmt.Errorf("%w: encodeTransactionData reverted: %s", chain.ErrNotWallet, rpcErr.Message)
		}
		return nil, err
	}
	if len(raw) == 0 {
		return nil, fmt.Errorf("%w: %s returned no data for encodeTransactionData()", chain.ErrNotWallet, key.Address.Hex())
	}

	out, err := g.abi.Unpack(methodEncodeTxData, raw)
	if err != nil {
		return nil, fmt.Errorf("decode encodeTransactionData(): %w", err)
	}
	data, ok := out[0].([]byte)
	if !ok {
		return nil, fmt.Errorf("decode encodeTransactionData(): unexpected type %T", out[0])
	}
	return data, nil
}

// call packs method with args, runs eth_call against wallet and returns the
// raw return data. Reverts keep their *rpc.RPCError so callers can inspect
// them; every other failure is wrapped as chain unavailable.
func (g *Gateway) call(ctx context.Context, wallet common.Address, method string, args ...any) ([]byte, error) {
	input, err := g.abi.Pack(method, args...)
	if err != nil {
		return nil, fmt.Errorf("pack %s: %w", method, err)
	}

	msg := map[string]any{
		"to":   wallet.Hex(),
		"data": hexutil.Encode(input),
	}
	result, err := g.client.Call(ctx, "eth_call", []any{msg, "latest"})
	if err != nil {
		var rpcErr *rpc.RPCError
		if errors.As(err, &rpcErr) && rpcErr.ExecutionReverted() {
			return nil, fmt.Errorf("eth_call %s: %w", method, err)
		}
		return nil, fmt.Errorf("%w: eth_call %s: %w", chain.ErrChainUnavailable, method, err)
	}

	s, ok := result.(string)
	if !ok {
		return nil, fmt.Errorf("%w: eth_call %s: invalid response type %T", chain.ErrChainUnavailable, method, result)
	}
	raw, err := hexutil.Decode(s)
	if err != nil {
		return nil, fmt.Errorf("%w: eth_call %s: %w", chain.ErrChainUnavailable, method, err)
	}
	return raw, nil
}

func orZero(v *big.Int) *big.Int {
	if v == nil {
		return new(big.Int)
	}
	return v
}

func nonNil(b []byte) []byte {
	if b == nil {
		return []byte{}
	}
	return b
}
