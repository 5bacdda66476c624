// Package staging holds the per-wallet queues of staged Safe transactions
// and enforces the admission rules for them.
//
// The store lives only in memory. A process restart clears every queue.
package staging

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/vietddude/stager/internal/core/domain"
	"github.com/vietddude/stager/internal/infra/chain"
	"github.com/vietddude/stager/internal/ops/metrics"
)

// Store is the only mutator of wallet queues.
type Store struct {
	mu     sync.RWMutex
	queues map[domain.WalletKey]*queue
	log    *slog.Logger
}

// queue is one wallet's append-only list of staged transactions.
//
// admit serialises proposals for the wallet, chain calls included. mu guards
// entries and is only held for the snapshot read and the commit, so List
// never waits on an in-flight chain call.
type queue struct {
	admit   chan struct{}
	mu      sync.RWMutex
	entries []domain.StagedTransaction
}

// Stats summarises store contents.
type Stats struct {
	Wallets int `json:"wallets"`
	Entries int `json:"entries"`
}

// NewStore creates an empty store.
func NewStore(log *slog.Logger) *Store {
	if log == nil {
		log = slog.Default()
	}
	return &Store{
		queues: make(map[domain.WalletKey]*queue),
		log:    log.With("component", "staging"),
	}
}

// List returns a copy of the wallet's queue in insertion order. The result
// is empty, never nil, when nothing is staged.
func (s *Store) List(key domain.WalletKey) []domain.StagedTransaction {
	s.mu.RLock()
	q := s.queues[key]
	s.mu.RUnlock()

	if q == nil {
		return []domain.StagedTransaction{}
	}
	return q.snapshot()
}

// Propose admits a new staged transaction or upgrades the signatures of an
// existing one with the same payload, then returns the updated queue.
//
// Every admission is checked against gw. Proposals for one wallet run one at
// a time; proposals for different wallets do not wait on each other.
func (s *Store) Propose(
	ctx context.Context,
	gw chain.Gateway,
	key domain.WalletKey,
	candidate domain.StagedTransaction,
) ([]domain.StagedTransaction, error) {
	q := s.queueFor(key)

	select {
	case q.admit <- struct{}{}:
	case <-ctx.Done():
		return nil, fmt.Errorf("waiting for wallet %s: %w", key, ctx.Err())
	}
	defer func() { <-q.admit }()

	start := time.Now()
	defer func() {
		metrics.AdmissionDuration.WithLabelValues(key.ChainID.String()).Observe(time.Since(start).Seconds())
	}()

	log := s.log.With("wallet", key.String(), "nonce", candidate.Nonce, "sigs", candidate.SignatureCount())

	entries := q.snapshot()
	idx := indexOfPayload(entries, candidate.Tx)

	next := candidate.Clone()
	if idx < 0 {
		current, err := gw.CurrentNonce(ctx, key)
		if err != nil {
			return nil, fmt.Errorf("fetch nonce: %w", err)
		}

		if candidate.Nonce < current {
			log.Debug("Rejected proposal", "reason", ErrStaleNonce, "current_nonce", current)
			return nil, fmt.Errorf("%w: nonce %d is below on-chain nonce %d", ErrStaleNonce, candidate.Nonce, current)
		}
		if candidate.Nonce > current && !hasNonce(entries, candidate.Nonce-1) {
			log.Debug("Rejected proposal", "reason", ErrNonceGap, "current_nonce", current)
			return nil, fmt.Errorf("%w: no staged transaction at nonce %d", ErrNonceGap, candidate.Nonce-1)
		}
	} else {
		existing := entries[idx]
		if candidate.SignatureCount() <= existing.SignatureCount() {
			log.Debug("Rejected proposal", "reason", ErrSignatureCountNotIncreased, "stored_sigs", existing.SignatureCount())
			return nil, fmt.Errorf("%w: have %d, got %d",
				ErrSignatureCountNotIncreased, existing.SignatureCount(), candidate.SignatureCount())
		}
		// Only the signature set changes on an update.
		next = existing
		next.Signatures = candidate.Clone().Signatures
	}

	ok, err := gw.VerifySignatures(ctx, key, next)
	if err != nil {
		return nil, fmt.Errorf("verify signatures: %w", err)
	}
	if !ok {
		log.Debug("Rejected proposal", "reason", ErrInvalidSignatures)
		return nil, ErrInvalidSignatures
	}

	q.mu.Lock()
	if idx < 0 {
		q.entries = append(q.entries, next)
		metrics.StagedTransactions.WithLabelValues(key.ChainID.String()).Inc()
	} else {
		q.entries[idx] = next
	}
	q.mu.Unlock()

	if idx < 0 {
		log.Info("Staged new transaction", "position", len(entries))
	} else {
		log.Info("Updated staged signatures", "position", idx)
	}

	return q.snapshot(), nil
}

// Stats counts wallets with at least one staged entry and the total number
// of entries.
func (s *Store) Stats() Stats {
	s.mu.RLock()
	queues := make([]*queue, 0, len(s.queues))
	for _, q := range s.queues {
		queues = append(queues, q)
	}
	s.mu.RUnlock()

	var st Stats
	for _, q := range queues {
		q.mu.RLock()
		n := len(q.entries)
		q.mu.RUnlock()
		if n > 0 {
			st.Wallets++
			st.Entries += n
		}
	}
	return st
}

func (s *Store) queueFor(key domain.WalletKey) *queue {
	s.mu.RLock()
	q := s.queues[key]
	s.mu.RUnlock()
	if q != nil {
		return q
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if q = s.queues[key]; q == nil {
		q = &queue{admit: make(chan struct{}, 1)}
		s.queues[key] = q
	}
	return q
}

func (q *queue) snapshot() []domain.StagedTransaction {
	q.mu.RLock()
	defer q.mu.RUnlock()

	out := make([]domain.StagedTransaction, len(q.entries))
	for i, e := range q.entries {
		out[i] = e.Clone()
	}
	return out
}

func indexOfPayload(entries []domain.StagedTransaction, tx domain.Transaction) int {
	for i := range entries {
		if entries[i].Tx.Equal(tx) {
			return i
		}
	}
	return -1
}

func hasNonce(entries []domain.StagedTransaction, nonce uint64) bool {
	for i := range entries {
		if entries[i].Nonce == nonce {
			return true
		}
	}
	return false
}
