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
	"context"
	"sync"

	"github.com/tidwall/btree"

	"github.com/lumenhq/lumen/internal/lumenmetrics"
	"github.com/lumenhq/lumen/primitives/felt"
	"github.com/lumenhq/lumen/primitives/transaction"
)

// Pool holds the pending (ready for inclusion) and queued (nonce-gapped)
// transaction sets, and notifies subscribers as transactions become
// pending. Subscribers are served over buffered channels rather than an
// async Stream/Waker model, Go's idiomatic fan-out mechanism.
type Pool struct {
	mu       sync.Mutex
	validator Validator
	orderer   Orderer

	pending *btree.BTreeG[*PendingTx]
	queued  map[felt.Felt]map[uint64]transaction.TxWithHash // sender -> nonce -> tx
	byHash  map[felt.Felt]*PendingTx

	subs    []chan *PendingTx
	metrics *lumenmetrics.TxPoolMetrics
}

// NewPool builds an empty pool using validator for admission control and
// orderer for pending-set priority.
func NewPool(validator Validator, orderer Orderer, metrics *lumenmetrics.TxPoolMetrics) *Pool {
	return &Pool{
		validator: validator,
		orderer:   orderer,
		pending:   btree.NewBTreeG(Less),
		queued:    make(map[felt.Felt]map[uint64]transaction.TxWithHash),
		byHash:    make(map[felt.Felt]*PendingTx),
		metrics:   metrics,
	}
}

// AddTransaction validates tx and routes it to the pending set, the queued
// set, or rejects it
func (p *Pool) AddTransaction(ctx context.Context, tx transaction.TxWithHash) (OutcomeKind, error) {
	outcome, err := p.validator.Validate(ctx, tx)
	if err != nil {
		return 0, err
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	switch outcome.Kind {
	case Invalid:
		return Invalid, outcome.Err
	case Dependent:
		p.enqueueDependent(tx, outcome)
		if p.metrics != nil {
			p.metrics.ValidationByOutcome.WithLabelValues("dependent").Inc()
			p.metrics.QueuedCount.Set(float64(p.queuedLen()))
		}
		return Dependent, nil
	default:
		p.insertPending(tx)
		p.promoteQueued(tx.Transaction.Sender.Felt, tx.Transaction.Nonce.Next().Felt)
		if p.metrics != nil {
			p.metrics.ValidationByOutcome.WithLabelValues("valid").Inc()
			p.metrics.PendingCount.Set(float64(p.pending.Len()))
		}
		return Valid, nil
	}
}

func (p *Pool) enqueueDependent(tx transaction.TxWithHash, outcome Outcome) {
	sender := tx.Transaction.Sender.Felt
	bucket, ok := p.queued[sender]
	if !ok {
		bucket = make(map[uint64]transaction.TxWithHash)
		p.queued[sender] = bucket
	}
	bucket[outcome.TxNonce] = tx
}

// promoteQueued moves any queued transaction for sender whose nonce now
// matches nextNonce into the pending set, and recurses to absorb a run of
// consecutive nonces becoming ready.
func (p *Pool) promoteQueued(sender felt.Felt, nextNonce felt.Felt) {
	bucket, ok := p.queued[sender]
	if !ok {
		return
	}
	n := nextNonce.BigInt().Uint64()
	tx, ok := bucket[n]
	if !ok {
		return
	}
	delete(bucket, n)
	if len(bucket) == 0 {
		delete(p.queued, sender)
	}
	p.insertPending(tx)
	p.promoteQueued(sender, tx.Transaction.Nonce.Next().Felt)
}

func (p *Pool) insertPending(tx transaction.TxWithHash) {
	entry := &PendingTx{
		ID:       TxID{Sender: tx.Transaction.Sender.Felt, Nonce: tx.Transaction.Nonce.BigInt().Uint64()},
		Tx:       tx,
		Priority: p.orderer.Priority(tx),
	}
	p.pending.Set(entry)
	p.byHash[tx.Hash.Felt] = entry
	p.notify(entry)
}

func (p *Pool) notify(entry *PendingTx) {
	for _, ch := range p.subs {
		select {
		case ch <- entry:
		default: // slow subscriber drops; it already has the stream's backlog
		}
	}
}

func (p *Pool) queuedLen() int {
	n := 0
	for _, bucket := range p.queued {
		n += len(bucket)
	}
	return n
}

// PendingLen reports the number of transactions ready for inclusion.
func (p *Pool) PendingLen() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.pending.Len()
}

// Get returns a pending transaction by hash, if present.
func (p *Pool) Get(hash transaction.Hash) (transaction.TxWithHash, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	entry, ok := p.byHash[hash.Felt]
	if !ok {
		return transaction.TxWithHash{}, false
	}
	return entry.Tx, true
}

// Remove drops a transaction from the pending set, e.g. once it has been
// included in a sealed block.
func (p *Pool) Remove(hash transaction.Hash) {
	p.mu.Lock()
	defer p.mu.Unlock()
	entry, ok := p.byHash[hash.Felt]
	if !ok {
		return
	}
	p.pending.Delete(entry)
	delete(p.byHash, hash.Felt)
}

// PendingStream returns a channel of newly-pending transactions in
// insertion order; the returned function unsubscribes and must be called
// to release the channel.
func (p *Pool) PendingStream(buffer int) (<-chan *PendingTx, func()) {
	p.mu.Lock()
	ch := make(chan *PendingTx, buffer)
	p.subs = append(p.subs, ch)
	p.mu.Unlock()

	cancel := func() {
		p.mu.Lock()
		defer p.mu.Unlock()
		for i, c := range p.subs {
			if c == ch {
				p.subs = append(p.subs[:i], p.subs[i+1:]...)
				close(ch)
				return
			}
		}
	}
	return ch, cancel
}

// Pending returns up to max entries of the pending set (all of them when
// max is 0) in priority order, snapshotting at call time. It removes
// nothing; entries leave the set through Remove.
func (p *Pool) Pending(max int) []*PendingTx {
	p.mu.Lock()
	defer p.mu.Unlock()

	out := make([]*PendingTx, 0, max)
	p.pending.Scan(func(entry *PendingTx) bool {
		out = append(out, entry)
		return len(out) < max || max <= 0
	})
	return out
}
