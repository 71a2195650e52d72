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

// Package producer implements the block producer: instant
// and interval mining behind one interface, the Idle/Pending/Sealing state
// machine, and pending-block reads for RPC.
package producer

import (
	"context"
	"sync"
	"time"

	"github.com/lumenhq/lumen/executor"
	"github.com/lumenhq/lumen/internal/lumenlog"
	"github.com/lumenhq/lumen/primitives/block"
	"github.com/lumenhq/lumen/primitives/felt"
	"github.com/lumenhq/lumen/primitives/transaction"
	"github.com/lumenhq/lumen/txpool"
)

// State is one node of the producer's Idle -> Pending -> Sealing -> Pending
// cycle.
type State uint8

const (
	Idle State = iota
	PendingState
	Sealing
)

func (s State) String() string {
	switch s {
	case PendingState:
		return "pending"
	case Sealing:
		return "sealing"
	default:
		return "idle"
	}
}

// Sink is the subset of the provider layer (C) a Producer commits sealed
// blocks through, and computes state roots against (J).
type Sink interface {
	LatestHeader(ctx context.Context) (block.Header, error)
	StateAt(ctx context.Context, n block.Number) (executor.StateReader, error)
	Commit(ctx context.Context, b block.Block, out executor.Output) error
	StateRoot(ctx context.Context, blockNumber block.Number, out executor.Output) (felt.Felt, error)
}

// Pool is the subset of txpool.Pool a Producer consumes from.
type Pool interface {
	PendingStream(buffer int) (<-chan *txpool.PendingTx, func())
	Remove(hash transaction.Hash)
}

// Producer is the polymorphic interface both mining modes satisfy.
type Producer interface {
	Start(ctx context.Context) error
	Stop()
	State() State

	// Pending reports the in-flight block's accumulated transactions and a
	// StateReader over its speculative state, or ok=false when no pending
	// block is observable (instant mode, or interval mode while Idle).
	Pending() (txs []transaction.TxWithHash, state executor.StateReader, ok bool)
}

// pendingState is the mutable snapshot behind Pending(); nil until a
// producer has an in-flight executor to expose.
type pendingState struct {
	mu    sync.RWMutex
	txs   []transaction.TxWithHash
	state executor.StateReader
}

func (p *pendingState) get() ([]transaction.TxWithHash, executor.StateReader, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.state == nil {
		return nil, nil, false
	}
	return append([]transaction.TxWithHash(nil), p.txs...), p.state, true
}

func (p *pendingState) set(txs []transaction.TxWithHash, state executor.StateReader) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.txs = txs
	p.state = state
}

func (p *pendingState) clear() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.txs = nil
	p.state = nil
}

var log = lumenlog.Named("producer")

func now() uint64 { return uint64(time.Now().Unix()) }
