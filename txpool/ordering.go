// Copyright 2024 The Lumen Authors
// This file is part of Lumen.
//
// Lumen is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// Lumen is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with Lumen. If not, see <http://www.gnu.org/licenses/>.

package txpool

import (
	"sync/atomic"

	"github.com/lumenhq/lumen/primitives/felt"
	"github.com/lumenhq/lumen/primitives/transaction"
)

// TxID identifies a pool entry by (sender, nonce), the ordering key used
// for the same-sender-nonce-dominates rule.
type TxID struct {
	Sender felt.Felt
	Nonce  uint64
}

// Orderer assigns a priority value to a transaction; higher values sort
// first among transactions from *different* senders. Within one sender,
// nonce always dominates priority (see Less below): transactions are
// ordered purely by nonce regardless of priority for the same sender.
type Orderer interface {
	Priority(tx transaction.TxWithHash) uint64
}

// FiFo assigns priority by submission order: the earlier a transaction was
// submitted, the higher its priority. Ported from ordering.rs's FiFo,
// which hands out a monotonically increasing per-pool counter and treats
// the smaller counter as higher priority — here expressed directly as a
// descending priority value so Orderer's "higher sorts first" contract
// stays uniform across implementations.
type FiFo struct {
	counter atomic.Uint64
}

func NewFiFo() *FiFo { return &FiFo{} }

func (f *FiFo) Priority(transaction.TxWithHash) uint64 {
	n := f.counter.Add(1)
	return ^n // later submissions get a smaller value than earlier ones
}

// TipOrdering assigns priority by the transaction's fee tip, ported from
// ordering.rs's TipOrdering ("mostly used for testing" per the original's
// doc comment, kept here for the same reason plus mention
// of tip-based ordering as a pool-configurable strategy).
type TipOrdering struct{}

func NewTipOrdering() *TipOrdering { return &TipOrdering{} }

func (TipOrdering) Priority(tx transaction.TxWithHash) uint64 { return tx.Transaction.Tip() }

// PendingTx is one entry in the pool's ordered pending set.
type PendingTx struct {
	ID       TxID
	Tx       transaction.TxWithHash
	Priority uint64
}

// Less implements the pool's total order: same-sender entries compare by
// nonce only (ascending), regardless of priority; different-sender entries
// compare by priority (descending, i.e. higher Priority sorts first), with
// nonce then sender as deterministic tie-breakers. This mirrors the two
// ordering.rs tests ordering_same_sender_is_by_nonce_only and
// ordering_different_senders_is_by_priority_then_nonce_within_sender.
func Less(a, b *PendingTx) bool {
	if a.ID.Sender.Equal(b.ID.Sender) {
		return a.ID.Nonce < b.ID.Nonce
	}
	if a.Priority != b.Priority {
		return a.Priority > b.Priority
	}
	if a.ID.Nonce != b.ID.Nonce {
		return a.ID.Nonce < b.ID.Nonce
	}
	return a.ID.Sender.Cmp(b.ID.Sender) < 0
}
