package noop

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/lumenhq/lumen/executor"
	"github.com/lumenhq/lumen/primitives/address"
	"github.com/lumenhq/lumen/primitives/felt"
	"github.com/lumenhq/lumen/primitives/transaction"
)

func invokeTx(sender felt.Felt, nonce uint64) transaction.TxWithHash {
	tx := transaction.Transaction{
		Kind:   transaction.KindInvoke,
		Sender: address.FromFelt(sender),
		Nonce:  address.NonceFromUint64(nonce),
		Invoke: &transaction.InvokePayload{},
	}
	return transaction.TxWithHash{Transaction: tx, Hash: transaction.Hash{Felt: felt.FromUint64(nonce + 1)}}
}

func TestExecuteTransactionsAlwaysSucceeds(t *testing.T) {
	f := NewFactory()
	exec := f.NewExecutor(nil, executor.BlockEnv{Number: 1})

	sender := felt.FromUint64(9)
	applied, err := exec.ExecuteTransactions([]transaction.TxWithHash{invokeTx(sender, 0), invokeTx(sender, 1)})
	require.NoError(t, err)
	require.Equal(t, 2, applied)

	results := exec.Transactions()
	require.Len(t, results, 2)
	for _, r := range results {
		require.True(t, r.Result.IsSuccess())
	}
}

func TestTakeOutputDrainsAccumulatedDiff(t *testing.T) {
	f := NewFactory()
	exec := f.NewExecutor(nil, executor.BlockEnv{Number: 1})

	sender := felt.FromUint64(3)
	_, err := exec.ExecuteTransactions([]transaction.TxWithHash{invokeTx(sender, 0)})
	require.NoError(t, err)

	out, err := exec.TakeOutput()
	require.NoError(t, err)
	require.Len(t, out.Transactions, 1)

	nonce, ok := out.States.NonceUpdates.Get(sender)
	require.True(t, ok)
	require.Equal(t, uint64(1), nonce.BigInt().Uint64())

	out2, err := exec.TakeOutput()
	require.NoError(t, err)
	require.Empty(t, out2.Transactions)
}

func TestSetStorageAtIsReflectedInNextOutput(t *testing.T) {
	f := NewFactory()
	exec := f.NewExecutor(nil, executor.BlockEnv{Number: 1})

	addr := address.FromFelt(felt.FromUint64(1))
	key := address.KeyFromFelt(felt.FromUint64(2))
	value := address.ValueFromFelt(felt.FromUint64(42))

	require.NoError(t, exec.SetStorageAt(addr, key, value))

	out, err := exec.TakeOutput()
	require.NoError(t, err)
	got, ok := out.States.StorageUpdates[addr.Felt].Get(key)
	require.True(t, ok)
	require.True(t, got.Felt.Equal(value.Felt))
}
