package rpc

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/lumenhq/lumen/executor"
	"github.com/lumenhq/lumen/primitives/address"
	"github.com/lumenhq/lumen/primitives/felt"
	"github.com/lumenhq/lumen/primitives/transaction"
)

type fakeProducer struct {
	txs   []transaction.TxWithHash
	state executor.StateReader
	ok    bool
}

func (f fakeProducer) Pending() ([]transaction.TxWithHash, executor.StateReader, bool) {
	return f.txs, f.state, f.ok
}

type stubStateReader struct{}

func (stubStateReader) Nonce(address.ContractAddress) (address.Nonce, error) {
	return address.Nonce{}, nil
}

func (stubStateReader) Storage(address.ContractAddress, address.StorageKey) (address.StorageValue, error) {
	return address.StorageValue{}, nil
}

func TestWatcherPendingProviderStartsEmpty(t *testing.T) {
	w := NewWatcherPendingProvider()
	_, ok := w.PendingState(context.Background())
	require.False(t, ok)
	_, ok = w.PendingTransactions(context.Background())
	require.False(t, ok)
}

func TestWatcherPendingProviderSetPublishesSnapshot(t *testing.T) {
	w := NewWatcherPendingProvider()
	twh := transaction.TxWithHash{Hash: transaction.Hash{Felt: felt.FromUint64(1)}}
	w.Set([]transaction.TxWithHash{twh}, stubStateReader{})

	st, ok := w.PendingState(context.Background())
	require.True(t, ok)
	require.NotNil(t, st)

	txs, ok := w.PendingTransactions(context.Background())
	require.True(t, ok)
	require.Equal(t, []transaction.TxWithHash{twh}, txs)
}

func TestProducerPendingProviderReadsThroughProducer(t *testing.T) {
	twh := transaction.TxWithHash{Hash: transaction.Hash{Felt: felt.FromUint64(2)}}
	p := NewProducerPendingProvider(fakeProducer{txs: []transaction.TxWithHash{twh}, state: stubStateReader{}, ok: true})

	txs, ok := p.PendingTransactions(context.Background())
	require.True(t, ok)
	require.Equal(t, []transaction.TxWithHash{twh}, txs)

	st, ok := p.PendingState(context.Background())
	require.True(t, ok)
	require.NotNil(t, st)
}

func TestProducerPendingProviderNotOk(t *testing.T) {
	p := NewProducerPendingProvider(fakeProducer{ok: false})
	_, ok := p.PendingTransactions(context.Background())
	require.False(t, ok)
}
