package optimistic

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

type stubBase struct{}

func (stubBase) LatestHeader(context.Context) (block.Header, error) { return block.Header{Number: 5}, nil }
func (stubBase) StateAt(context.Context, block.Number) (executor.StateReader, error) {
	return stubState{}, nil
}

type stubState struct{}

func (stubState) Nonce(address.ContractAddress) (address.Nonce, error) {
	return address.NonceFromUint64(0), nil
}
func (stubState) Storage(address.ContractAddress, address.StorageKey) (address.StorageValue, error) {
	return address.ValueFromFelt(felt.Zero), nil
}

type noDeclared struct{}

func (noDeclared) IsDeclared(class.Hash) (bool, error) { return false, nil }

func invokeTx(sender felt.Felt, nonce uint64) transaction.TxWithHash {
	tx := transaction.Transaction{
		Kind:   transaction.KindInvoke,
		Sender: address.FromFelt(sender),
		Nonce:  address.NonceFromUint64(nonce),
		Invoke: &transaction.InvokePayload{},
	}
	return transaction.TxWithHash{Transaction: tx, Hash: transaction.Hash{Felt: felt.FromUint64(nonce + 42)}}
}

func TestRunMergesSpeculativeNonceIntoOverlay(t *testing.T) {
	pool := txpool.NewPool(txpool.NewStatefulValidator(stubState{}, noDeclared{}), txpool.NewFiFo(), nil)
	exec := New(stubBase{}, pool, noop.NewFactory())

	ctx, cancel := context.WithCancel(context.Background())
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		exec.Run(ctx)
	}()

	sender := felt.FromUint64(3)
	_, err := pool.AddTransaction(context.Background(), invokeTx(sender, 0))
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		state, ok := exec.State()
		if !ok {
			return false
		}
		n, err := state.Nonce(address.FromFelt(sender))
		return err == nil && n.BigInt().Uint64() == 1
	}, time.Second, 10*time.Millisecond)

	cancel()
	wg.Wait()
}

func TestStateUnavailableBeforeFirstTransaction(t *testing.T) {
	pool := txpool.NewPool(txpool.NewStatefulValidator(stubState{}, noDeclared{}), txpool.NewFiFo(), nil)
	exec := New(stubBase{}, pool, noop.NewFactory())
	_, ok := exec.State()
	require.False(t, ok)
}
