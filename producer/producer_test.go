package producer

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/lumenhq/lumen/executor"
	"github.com/lumenhq/lumen/executor/noop"
	"github.com/lumenhq/lumen/primitives/address"
	"github.com/lumenhq/lumen/primitives/block"
	"github.com/lumenhq/lumen/primitives/class"
	"github.com/lumenhq/lumen/primitives/felt"
	"github.com/lumenhq/lumen/primitives/transaction"
	"github.com/lumenhq/lumen/txpool"
)

// fakeSink is an in-memory Sink sufficient to drive a Producer in tests,
// without a real provider/trie layer.
type fakeSink struct {
	mu      sync.Mutex
	head    block.Header
	commits []block.Block
}

func newFakeSink() *fakeSink {
	return &fakeSink{head: block.Header{Number: 0}}
}

func (s *fakeSink) LatestHeader(context.Context) (block.Header, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.head, nil
}

func (s *fakeSink) StateAt(context.Context, block.Number) (executor.StateReader, error) {
	return nil, nil
}

func (s *fakeSink) Commit(_ context.Context, b block.Block, _ executor.Output) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.commits = append(s.commits, b)
	s.head = b.Header
	return nil
}

func (s *fakeSink) StateRoot(context.Context, block.Number, executor.Output) (felt.Felt, error) {
	return felt.FromUint64(1), nil
}

func (s *fakeSink) committedCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.commits)
}

func invokeTx(sender felt.Felt, nonce, tip uint64) transaction.TxWithHash {
	tx := transaction.Transaction{
		Kind:    transaction.KindInvoke,
		Version: transaction.V3,
		Sender:  address.FromFelt(sender),
		Nonce:   address.NonceFromUint64(nonce),
		FeeV3: &transaction.FeeV3{
			Tip: tip,
			Bounds: map[transaction.Resource]transaction.ResourceBounds{
				transaction.ResourceL1Gas:     {},
				transaction.ResourceL2Gas:     {},
				transaction.ResourceL1DataGas: {},
			},
		},
		Invoke: &transaction.InvokePayload{},
	}
	return transaction.TxWithHash{Transaction: tx, Hash: transaction.Hash{Felt: felt.FromUint64(nonce + 777)}}
}

func newTestPool() *txpool.Pool {
	validator := txpool.NewStatefulValidator(fixedNonce{}, noDeclared{})
	return txpool.NewPool(validator, txpool.NewFiFo(), nil)
}

type fixedNonce struct{}

func (fixedNonce) Nonce(address.ContractAddress) (address.Nonce, error) {
	return address.NonceFromUint64(0), nil
}

type noDeclared struct{}

func (noDeclared) IsDeclared(class.Hash) (bool, error) { return false, nil }

func TestInstantProducerCommitsOneBlockPerTransaction(t *testing.T) {
	pool := newTestPool()
	sink := newFakeSink()
	producer := NewInstant(sink, pool, noop.NewFactory())

	require.NoError(t, producer.Start(context.Background()))
	defer producer.Stop()

	_, err := pool.AddTransaction(context.Background(), invokeTx(felt.FromUint64(1), 0, 5))
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		return sink.committedCount() == 1
	}, time.Second, 10*time.Millisecond)

	txs, _, ok := producer.Pending()
	require.False(t, ok, "instant mode never exposes a pending block")
	require.Nil(t, txs)
}

func TestIntervalProducerSealsOnMineNow(t *testing.T) {
	pool := newTestPool()
	sink := newFakeSink()
	producer := NewInterval(sink, pool, noop.NewFactory(), time.Hour)

	require.NoError(t, producer.Start(context.Background()))
	defer producer.Stop()

	_, err := pool.AddTransaction(context.Background(), invokeTx(felt.FromUint64(1), 0, 5))
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		txs, _, ok := producer.Pending()
		return ok && len(txs) == 1
	}, time.Second, 10*time.Millisecond)

	producer.MineNow()

	require.Eventually(t, func() bool {
		return sink.committedCount() == 1
	}, time.Second, 10*time.Millisecond)

	txs, _, ok := producer.Pending()
	require.True(t, ok)
	require.Empty(t, txs, "pending block should reset after sealing")
}

func TestStateStringers(t *testing.T) {
	require.Equal(t, "idle", Idle.String())
	require.Equal(t, "pending", PendingState.String())
	require.Equal(t, "sealing", Sealing.String())
}
