package txpool

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/lumenhq/lumen/primitives/felt"
	"github.com/lumenhq/lumen/primitives/transaction"
)

func pendingTxWithPriority(sender felt.Felt, nonce, priority uint64) *PendingTx {
	return &PendingTx{ID: TxID{Sender: sender, Nonce: nonce}, Priority: priority}
}

func TestOrderingSameSenderIsByNonceOnly(t *testing.T) {
	sender := felt.FromUint64(1)

	tx1 := pendingTxWithPriority(sender, 2, 10)
	tx2 := pendingTxWithPriority(sender, 0, 20)
	tx3 := pendingTxWithPriority(sender, 1, 5)

	require.True(t, Less(tx2, tx3))
	require.True(t, Less(tx3, tx1))
	require.True(t, Less(tx2, tx1))
}

func TestOrderingDifferentSendersIsByPriority(t *testing.T) {
	senderA := felt.FromUint64(0xA)
	senderB := felt.FromUint64(0xB)

	// Different senders: higher priority sorts first regardless of nonce.
	highPriority := pendingTxWithPriority(senderA, 5, 30)
	lowPriority := pendingTxWithPriority(senderB, 0, 10)
	require.True(t, Less(highPriority, lowPriority))
	require.False(t, Less(lowPriority, highPriority))
}

func TestOrderingSameSenderIgnoresPriority(t *testing.T) {
	sender := felt.FromUint64(1)

	// Same sender: nonce dominates even when priority says the opposite.
	lowNonceLowPriority := pendingTxWithPriority(sender, 0, 5)
	highNonceHighPriority := pendingTxWithPriority(sender, 1, 999)
	require.True(t, Less(lowNonceLowPriority, highNonceHighPriority))
}

func TestFiFoPriorityIsDescendingBySubmissionOrder(t *testing.T) {
	f := NewFiFo()
	var twh transaction.TxWithHash
	p1 := f.Priority(twh)
	p2 := f.Priority(twh)
	p3 := f.Priority(twh)
	require.Greater(t, p1, p2)
	require.Greater(t, p2, p3)
}

func TestTipOrderingPriorityIsTip(t *testing.T) {
	o := NewTipOrdering()
	twh := transaction.TxWithHash{Transaction: transaction.Transaction{
		Version: transaction.V3,
		FeeV3:   &transaction.FeeV3{Tip: 7},
	}}
	require.Equal(t, uint64(7), o.Priority(twh))
}
