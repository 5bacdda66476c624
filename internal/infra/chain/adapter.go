// Package chain defines the read-only view of wallet state the staging
// store needs from a network, and the per-network registry of gateways.
package chain

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/vietddude/stager/internal/core/domain"
)

var (
	// ErrChainUnavailable marks transport failures and timeouts. Callers may
	// retry the whole request.
	ErrChainUnavailable = errors.New("chain unavailable")

	// ErrUnknownNetwork is returned when no gateway is configured for a chain.
	ErrUnknownNetwork = errors.New("unsupported network")

	// ErrNotWallet is returned when the address does not answer as a wallet
	// contract (no code, or an empty call result).
	ErrNotWallet = errors.New("not a wallet")
)

// Gateway exposes the two wallet capabilities admission depends on.
type Gateway interface {
	// CurrentNonce returns the wallet's on-chain transaction counter.
	CurrentNonce(ctx context.Context, key domain.WalletKey) (uint64, error)

	// VerifySignatures reports whether the staged signatures are valid for the
	// transaction hash the wallet itself computes. A false result is a
	// rejection, not an error; errors are transport failures.
	VerifySignatures(ctx context.Context, key domain.WalletKey, staged domain.StagedTransaction) (bool, error)
}

// Registry maps chain IDs to gateways. It is built once at startup and read
// concurrently afterwards.
type Registry struct {
	gateways map[domain.ChainID]Gateway
}

// NewRegistry copies the given gateways into a new registry.
func NewRegistry(gateways map[domain.ChainID]Gateway) *Registry {
	r := &Registry{gateways: make(map[domain.ChainID]Gateway, len(gateways))}
	for id, g := range gateways {
		r.gateways[id] = g
	}
	return r
}

// Gateway returns the gateway registered for chainID.
func (r *Registry) Gateway(chainID domain.ChainID) (Gateway, error) {
	g, ok := r.gateways[chainID]
	if !ok {
		return nil, fmt.Errorf("%w: chain %s", ErrUnknownNetwork, chainID)
	}
	return g, nil
}

// Networks returns the registered chain IDs in ascending order.
func (r *Registry) Networks() []domain.ChainID {
	ids := make([]domain.ChainID, 0, len(r.gateways))
	for id := range r.gateways {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}

type timeoutGateway struct {
	next    Gateway
	timeout time.Duration
}

// WithTimeout bounds every call on g. Failures, including the deadline
// expiring, are reported as ErrChainUnavailable. ErrNotWallet passes through.
func WithTimeout(g Gateway, timeout time.Duration) Gateway {
	return &timeoutGateway{next: g, timeout: timeout}
}

func (g *timeoutGateway) CurrentNonce(ctx context.Context, key domain.WalletKey) (uint64, error) {
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	nonce, err := g.next.CurrentNonce(ctx, key)
	if err != nil {
		return 0, unavailable(err)
	}
	return nonce, nil
}

func (g *timeoutGateway) VerifySignatures(
	ctx context.Context,
	key domain.WalletKey,
	staged domain.StagedTransaction,
) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	ok, err := g.next.VerifySignatures(ctx, key, staged)
	if err != nil {
		return false, unavailable(err)
	}
	return ok, nil
}

func unavailable(err error) error {
	if errors.Is(err, ErrChainUnavailable) || errors.Is(err, ErrNotWallet) {
		return err
	}
	return fmt.Errorf("%w: %w", ErrChainUnavailable, err)
}
