package staging

import (
	"context"
	"errors"
	"math/big"
	"math/rand"
	"sort"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vietddude/stager/internal/core/domain"
	"github.com/vietddude/stager/internal/infra/chain"
)

// =============================================================================
// Mocks
// =============================================================================

type fakeGateway struct {
	mu       sync.Mutex
	nonce    uint64
	nonceErr error
	verify   func(domain.StagedTransaction) bool
	block    chan struct{} // when set, calls wait for it to close or ctx

	nonceCalls  atomic.Int32
	verifyCalls atomic.Int32
	verified    []domain.StagedTransaction
}

func (g *fakeGateway) wait(ctx context.Context) error {
	if g.block == nil {
		return nil
	}
	select {
	case <-g.block:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (g *fakeGateway) CurrentNonce(ctx context.Context, _ domain.WalletKey) (uint64, error) {
	g.nonceCalls.Add(1)
	if err := g.wait(ctx); err != nil {
		return 0, err
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.nonce, g.nonceErr
}

func (g *fakeGateway) VerifySignatures(ctx context.Context, _ domain.WalletKey, s domain.StagedTransaction) (bool, error) {
	g.verifyCalls.Add(1)
	if err := g.wait(ctx); err != nil {
		return false, err
	}
	g.mu.Lock()
	g.verified = append(g.verified, s)
	g.mu.Unlock()
	if g.verify == nil {
		return true, nil
	}
	return g.verify(s), nil
}

var walletA = domain.WalletKey{
	ChainID: domain.ChainIDEthereum,
	Address: common.HexToAddress("0x1111111111111111111111111111111111111111"),
}

var walletB = domain.WalletKey{
	ChainID: domain.ChainIDEthereum,
	Address: common.HexToAddress("0x2222222222222222222222222222222222222222"),
}

func payload(value int64) domain.Transaction {
	return domain.Transaction{
		To:        common.HexToAddress("0x00000000000000000000000000000000000000aa"),
		Value:     big.NewInt(value),
		Data:      []byte{},
		Operation: domain.OperationCall,
		SafeTxGas: big.NewInt(0),
		BaseGas:   big.NewInt(0),
		GasPrice:  big.NewInt(0),
	}
}

func staged(nonce uint64, value int64, sigs int) domain.StagedTransaction {
	s := domain.StagedTransaction{Nonce: nonce, Tx: payload(value)}
	for i := 0; i < sigs; i++ {
		sig := make([]byte, 65)
		sig[0] = byte(i + 1)
		s.Signatures = append(s.Signatures, sig)
	}
	return s
}

func nonces(entries []domain.StagedTransaction) []uint64 {
	out := make([]uint64, len(entries))
	for i, e := range entries {
		out[i] = e.Nonce
	}
	return out
}

// =============================================================================
// Tests
// =============================================================================

func TestStore_ListEmpty(t *testing.T) {
	s := NewStore(nil)
	got := s.List(walletA)
	require.NotNil(t, got)
	assert.Empty(t, got)
}

func TestStore_AdmitsAtCurrentNonce(t *testing.T) {
	s := NewStore(nil)
	gw := &fakeGateway{nonce: 5}

	queue, err := s.Propose(context.Background(), gw, walletA, staged(5, 1, 1))
	require.NoError(t, err)
	require.Len(t, queue, 1)
	assert.Equal(t, uint64(5), queue[0].Nonce)
	assert.Equal(t, queue, s.List(walletA))
	assert.Empty(t, s.List(walletB))
}

func TestStore_StaleNonceRejected(t *testing.T) {
	s := NewStore(nil)
	gw := &fakeGateway{nonce: 5}

	_, err := s.Propose(context.Background(), gw, walletA, staged(4, 1, 2))
	assert.ErrorIs(t, err, ErrStaleNonce)
	assert.True(t, IsRejection(err))
	assert.Zero(t, gw.verifyCalls.Load(), "stale proposals are rejected before signature checks")
	assert.Empty(t, s.List(walletA))
}

func TestStore_NonceGapThenAdmitted(t *testing.T) {
	s := NewStore(nil)
	gw := &fakeGateway{nonce: 5}
	ctx := context.Background()

	_, err := s.Propose(ctx, gw, walletA, staged(7, 2, 1))
	assert.ErrorIs(t, err, ErrNonceGap)

	_, err = s.Propose(ctx, gw, walletA, staged(6, 1, 1))
	assert.ErrorIs(t, err, ErrNonceGap, "nonce 6 needs a staged nonce 5")

	_, err = s.Propose(ctx, gw, walletA, staged(5, 0, 1))
	require.NoError(t, err)
	_, err = s.Propose(ctx, gw, walletA, staged(6, 1, 1))
	require.NoError(t, err)
	queue, err := s.Propose(ctx, gw, walletA, staged(7, 2, 1))
	require.NoError(t, err)

	assert.Equal(t, []uint64{5, 6, 7}, nonces(queue))
}

func TestStore_CompetingCandidatesShareNonceSlot(t *testing.T) {
	s := NewStore(nil)
	gw := &fakeGateway{nonce: 0}
	ctx := context.Background()

	_, err := s.Propose(ctx, gw, walletA, staged(0, 1, 1))
	require.NoError(t, err)
	queue, err := s.Propose(ctx, gw, walletA, staged(0, 2, 1))
	require.NoError(t, err)

	assert.Equal(t, []uint64{0, 0}, nonces(queue))
}

func TestStore_ResubmissionNeedsMoreSignatures(t *testing.T) {
	s := NewStore(nil)
	gw := &fakeGateway{nonce: 0}
	ctx := context.Background()

	_, err := s.Propose(ctx, gw, walletA, staged(0, 1, 2))
	require.NoError(t, err)

	_, err = s.Propose(ctx, gw, walletA, staged(0, 1, 2))
	assert.ErrorIs(t, err, ErrSignatureCountNotIncreased)

	_, err = s.Propose(ctx, gw, walletA, staged(0, 1, 1))
	assert.ErrorIs(t, err, ErrSignatureCountNotIncreased)

	assert.Equal(t, 2, s.List(walletA)[0].SignatureCount())
}

func TestStore_ResubmissionReplacesInPlace(t *testing.T) {
	s := NewStore(nil)
	gw := &fakeGateway{nonce: 0}
	ctx := context.Background()

	_, err := s.Propose(ctx, gw, walletA, staged(0, 1, 1))
	require.NoError(t, err)
	_, err = s.Propose(ctx, gw, walletA, staged(1, 2, 1))
	require.NoError(t, err)

	nonceCalls := gw.nonceCalls.Load()
	queue, err := s.Propose(ctx, gw, walletA, staged(0, 1, 3))
	require.NoError(t, err)

	require.Len(t, queue, 2)
	assert.Equal(t, 3, queue[0].SignatureCount())
	assert.Equal(t, uint64(0), queue[0].Nonce)
	assert.True(t, queue[0].Tx.Equal(payload(1)))
	assert.Equal(t, 1, queue[1].SignatureCount())
	assert.Equal(t, nonceCalls, gw.nonceCalls.Load(), "updates skip the nonce check")
}

func TestStore_UpdateKeepsStoredNonce(t *testing.T) {
	s := NewStore(nil)
	gw := &fakeGateway{nonce: 3}
	ctx := context.Background()

	_, err := s.Propose(ctx, gw, walletA, staged(3, 1, 1))
	require.NoError(t, err)

	// Same payload claimed at another nonce: the stored nonce wins and the
	// signatures are verified against it.
	queue, err := s.Propose(ctx, gw, walletA, staged(9, 1, 2))
	require.NoError(t, err)
	require.Len(t, queue, 1)
	assert.Equal(t, uint64(3), queue[0].Nonce)

	last := gw.verified[len(gw.verified)-1]
	assert.Equal(t, uint64(3), last.Nonce)
	assert.Equal(t, 2, last.SignatureCount())
}

func TestStore_InvalidSignaturesRejected(t *testing.T) {
	s := NewStore(nil)
	gw := &fakeGateway{
		nonce:  0,
		verify: func(st domain.StagedTransaction) bool { return st.SignatureCount() < 3 },
	}
	ctx := context.Background()

	_, err := s.Propose(ctx, gw, walletA, staged(0, 1, 3))
	assert.ErrorIs(t, err, ErrInvalidSignatures)
	assert.Empty(t, s.List(walletA))

	_, err = s.Propose(ctx, gw, walletA, staged(0, 1, 2))
	require.NoError(t, err)

	_, err = s.Propose(ctx, gw, walletA, staged(0, 1, 3))
	assert.ErrorIs(t, err, ErrInvalidSignatures)
	assert.Equal(t, 2, s.List(walletA)[0].SignatureCount(), "rejected update leaves entry untouched")
}

func TestStore_ChainUnavailableLeavesQueueUntouched(t *testing.T) {
	s := NewStore(nil)
	gw := &fakeGateway{nonce: 0}
	ctx := context.Background()

	_, err := s.Propose(ctx, gw, walletA, staged(0, 1, 1))
	require.NoError(t, err)

	gw.nonceErr = chain.ErrChainUnavailable
	_, err = s.Propose(ctx, gw, walletA, staged(1, 2, 1))
	assert.ErrorIs(t, err, chain.ErrChainUnavailable)
	assert.False(t, IsRejection(err))
	assert.Len(t, s.List(walletA), 1)
}

func TestStore_GatewayTimeoutReleasesLock(t *testing.T) {
	s := NewStore(nil)
	stuck := &fakeGateway{nonce: 0, block: make(chan struct{})}
	gw := chain.WithTimeout(stuck, 20*time.Millisecond)
	ctx := context.Background()

	_, err := s.Propose(ctx, gw, walletA, staged(0, 1, 1))
	assert.ErrorIs(t, err, chain.ErrChainUnavailable)
	assert.Empty(t, s.List(walletA))

	close(stuck.block)
	_, err = s.Propose(ctx, gw, walletA, staged(0, 1, 1))
	require.NoError(t, err, "lock is free again after the timeout")
}

func TestStore_ReturnedQueueIsACopy(t *testing.T) {
	s := NewStore(nil)
	gw := &fakeGateway{nonce: 0}

	queue, err := s.Propose(context.Background(), gw, walletA, staged(0, 1, 1))
	require.NoError(t, err)
	queue[0].Signatures[0][0] = 0xff
	queue[0].Nonce = 42

	stored := s.List(walletA)[0]
	assert.Equal(t, byte(1), stored.Signatures[0][0])
	assert.Equal(t, uint64(0), stored.Nonce)
}

func TestStore_ConcurrentChainIsContiguous(t *testing.T) {
	const n = 16
	const base = 10

	s := NewStore(nil)
	gw := &fakeGateway{nonce: base}

	order := rand.Perm(n)
	var wg sync.WaitGroup
	errs := make(chan error, n)

	for _, i := range order {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			proposal := staged(uint64(base+i), int64(i), 1)
			deadline := time.Now().Add(5 * time.Second)
			for {
				_, err := s.Propose(context.Background(), gw, walletA, proposal)
				if err == nil {
					return
				}
				if !errors.Is(err, ErrNonceGap) || time.Now().After(deadline) {
					errs <- err
					return
				}
				time.Sleep(time.Millisecond)
			}
		}(i)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	got := nonces(s.List(walletA))
	require.Len(t, got, n)
	sort.Slice(got, func(i, j int) bool { return got[i] < got[j] })
	for i, nonce := range got {
		assert.Equal(t, uint64(base+i), nonce)
	}
}

func TestStore_ConcurrentDuplicatesAdmitOnce(t *testing.T) {
	s := NewStore(nil)
	gw := &fakeGateway{nonce: 0}

	var wg sync.WaitGroup
	var admitted atomic.Int32
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := s.Propose(context.Background(), gw, walletA, staged(0, 1, 1)); err == nil {
				admitted.Add(1)
			} else {
				assert.ErrorIs(t, err, ErrSignatureCountNotIncreased)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), admitted.Load())
	assert.Len(t, s.List(walletA), 1)
}

func TestStore_SlowWalletDoesNotBlockOthers(t *testing.T) {
	s := NewStore(nil)
	slow := &fakeGateway{nonce: 0, block: make(chan struct{})}
	fast := &fakeGateway{nonce: 0}
	defer close(slow.block)

	go func() {
		_, _ = s.Propose(context.Background(), slow, walletA, staged(0, 1, 1))
	}()
	require.Eventually(t, func() bool { return slow.nonceCalls.Load() == 1 }, time.Second, time.Millisecond)

	done := make(chan error, 1)
	go func() {
		_, err := s.Propose(context.Background(), fast, walletB, staged(0, 1, 1))
		done <- err
	}()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("proposal for wallet B waited on wallet A")
	}

	listed := make(chan []domain.StagedTransaction, 1)
	go func() { listed <- s.List(walletA) }()
	select {
	case got := <-listed:
		assert.Empty(t, got)
	case <-time.After(time.Second):
		t.Fatal("List blocked on an in-flight admission")
	}
}

func TestStore_WaitingHonoursContext(t *testing.T) {
	s := NewStore(nil)
	slow := &fakeGateway{nonce: 0, block: make(chan struct{})}
	defer close(slow.block)

	go func() {
		_, _ = s.Propose(context.Background(), slow, walletA, staged(0, 1, 1))
	}()
	require.Eventually(t, func() bool { return slow.nonceCalls.Load() == 1 }, time.Second, time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err := s.Propose(ctx, &fakeGateway{}, walletA, staged(0, 2, 1))
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestStore_Stats(t *testing.T) {
	s := NewStore(nil)
	gw := &fakeGateway{nonce: 0}
	ctx := context.Background()

	_, _ = s.Propose(ctx, gw, walletA, staged(0, 1, 1))
	_, _ = s.Propose(ctx, gw, walletA, staged(1, 2, 1))
	_, _ = s.Propose(ctx, gw, walletB, staged(0, 1, 1))
	_, _ = s.Propose(ctx, gw, walletB, staged(5, 9, 1)) // rejected

	assert.Equal(t, Stats{Wallets: 2, Entries: 3}, s.Stats())
}
