package txpool

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/lumenhq/lumen/primitives/address"
	"github.com/lumenhq/lumen/primitives/class"
	"github.com/lumenhq/lumen/primitives/felt"
	"github.com/lumenhq/lumen/primitives/transaction"
)

// fixedNonceReader and noDeclaredClasses back a StatefulValidator for tests
// without a real storage engine.
type fixedNonceReader struct{ nonce uint64 }

func (r fixedNonceReader) Nonce(address.ContractAddress) (address.Nonce, error) {
	return address.NonceFromUint64(r.nonce), nil
}

type noDeclaredClasses struct{}

func (noDeclaredClasses) IsDeclared(class.Hash) (bool, error) { return false, nil }

func invokeTx(sender felt.Felt, nonce uint64, tip uint64) transaction.TxWithHash {
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
	return transaction.TxWithHash{Transaction: tx, Hash: transaction.Hash{Felt: felt.FromUint64(nonce + 1000)}}
}

func TestAddTransactionValidGoesPending(t *testing.T) {
	validator := NewStatefulValidator(fixedNonceReader{nonce: 0}, noDeclaredClasses{})
	pool := NewPool(validator, NewFiFo(), nil)

	outcome, err := pool.AddTransaction(context.Background(), invokeTx(felt.FromUint64(1), 0, 5))
	require.NoError(t, err)
	require.Equal(t, Valid, outcome)
	require.Equal(t, 1, pool.PendingLen())
}

func TestAddTransactionDependentIsQueuedThenPromoted(t *testing.T) {
	validator := NewStatefulValidator(fixedNonceReader{nonce: 0}, noDeclaredClasses{})
	pool := NewPool(validator, NewFiFo(), nil)

	sender := felt.FromUint64(1)
	ahead, err := pool.AddTransaction(context.Background(), invokeTx(sender, 1, 5))
	require.NoError(t, err)
	require.Equal(t, Dependent, ahead)
	require.Equal(t, 0, pool.PendingLen())

	ready, err := pool.AddTransaction(context.Background(), invokeTx(sender, 0, 5))
	require.NoError(t, err)
	require.Equal(t, Valid, ready)
	require.Equal(t, 2, pool.PendingLen(), "submitting nonce 0 should promote the queued nonce-1 tx too")
}

func TestAddTransactionInvalidNonceRejected(t *testing.T) {
	validator := NewStatefulValidator(fixedNonceReader{nonce: 5}, noDeclaredClasses{})
	pool := NewPool(validator, NewFiFo(), nil)

	outcome, err := pool.AddTransaction(context.Background(), invokeTx(felt.FromUint64(1), 2, 5))
	require.Error(t, err)
	require.Equal(t, Invalid, outcome)
}

func TestPendingStreamReceivesNewEntries(t *testing.T) {
	validator := NewStatefulValidator(fixedNonceReader{nonce: 0}, noDeclaredClasses{})
	pool := NewPool(validator, NewFiFo(), nil)

	stream, cancel := pool.PendingStream(4)
	defer cancel()

	_, err := pool.AddTransaction(context.Background(), invokeTx(felt.FromUint64(1), 0, 5))
	require.NoError(t, err)

	select {
	case entry := <-stream:
		require.Equal(t, uint64(0), entry.ID.Nonce)
	default:
		t.Fatal("expected a pending notification")
	}
}
