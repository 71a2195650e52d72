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

package rpc

import (
	"context"
	"sync"

	"github.com/lumenhq/lumen/executor"
	"github.com/lumenhq/lumen/primitives/transaction"
)

// PendingBlockProvider is the pluggable extension point names:
// reads against the "pending" block tag resolve through here instead of
// through a sealed block in storage.
type PendingBlockProvider interface {
	PendingState(ctx context.Context) (executor.StateReader, bool)
	PendingTransactions(ctx context.Context) ([]transaction.TxWithHash, bool)
}

// Producer is the subset of producer.Producer a ProducerPendingProvider
// reads from. Declared locally (rather than importing package producer)
// so rpc depends on a capability, not a concrete producer implementation.
type Producer interface {
	Pending() (txs []transaction.TxWithHash, state executor.StateReader, ok bool)
}

// ProducerPendingProvider is the default PendingBlockProvider for a full
// sequencer node: it reads directly off the local block producer's
// in-flight executor.
type ProducerPendingProvider struct {
	producer Producer
}

func NewProducerPendingProvider(p Producer) *ProducerPendingProvider {
	return &ProducerPendingProvider{producer: p}
}

func (p *ProducerPendingProvider) PendingState(context.Context) (executor.StateReader, bool) {
	_, state, ok := p.producer.Pending()
	return state, ok
}

func (p *ProducerPendingProvider) PendingTransactions(context.Context) ([]transaction.TxWithHash, bool) {
	txs, _, ok := p.producer.Pending()
	return txs, ok
}

// WatcherPendingProvider is the PendingBlockProvider for a full-node
// tracking a remote sequencer: a background watcher outside this package
// fetches pre-confirmed blocks from the feeder and calls Set, publishing
// them into this shared mutable cell.
type WatcherPendingProvider struct {
	mu    sync.RWMutex
	txs   []transaction.TxWithHash
	state executor.StateReader
}

func NewWatcherPendingProvider() *WatcherPendingProvider {
	return &WatcherPendingProvider{}
}

// Set replaces the current pending snapshot; called by the feeder watcher
// loop each time it observes a new pre-confirmed block.
func (w *WatcherPendingProvider) Set(txs []transaction.TxWithHash, state executor.StateReader) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.txs, w.state = txs, state
}

func (w *WatcherPendingProvider) PendingState(context.Context) (executor.StateReader, bool) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.state, w.state != nil
}

func (w *WatcherPendingProvider) PendingTransactions(context.Context) ([]transaction.TxWithHash, bool) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.txs, w.state != nil
}
