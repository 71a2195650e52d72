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

// Package optimistic implements the advisory-only speculative executor.
// An OptimisticExecutor removes a
// transaction from the pool as soon as it has been optimistically executed,
// treating the speculative result as authoritative for a single-sequencer
// node. This package deliberately does not: the real producer (package
// producer) remains the only component that commits blocks or removes
// transactions from the pool, so this executor's output is read-only
// acceleration for dev-UX "fast read" endpoints, never a substitute for
// inclusion.
package optimistic

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/lumenhq/lumen/executor"
	"github.com/lumenhq/lumen/internal/lumenlog"
	"github.com/lumenhq/lumen/primitives/address"
	"github.com/lumenhq/lumen/primitives/block"
	"github.com/lumenhq/lumen/primitives/felt"
	"github.com/lumenhq/lumen/primitives/transaction"
	"github.com/lumenhq/lumen/txpool"
)

var log = lumenlog.Named("optimistic_executor")

// Base is the component's view of confirmed state, matching producer.Sink's
// read surface.
type Base interface {
	LatestHeader(ctx context.Context) (block.Header, error)
	StateAt(ctx context.Context, n block.Number) (executor.StateReader, error)
}

// Pool is the subset of txpool.Pool this component observes.
type Pool interface {
	PendingStream(buffer int) (<-chan *txpool.PendingTx, func())
}

// overlay layers speculative nonce/storage writes atop a confirmed base
// StateReader, implementing executor.StateReader itself so RPC "fast read"
// handlers can use it transparently.
type overlay struct {
	mu      sync.RWMutex
	base    executor.StateReader
	nonces  map[string]address.Nonce
	storage map[string]address.StorageValue
}

func newOverlay(base executor.StateReader) *overlay {
	return &overlay{base: base, nonces: map[string]address.Nonce{}, storage: map[string]address.StorageValue{}}
}

func (o *overlay) Nonce(addr address.ContractAddress) (address.Nonce, error) {
	o.mu.RLock()
	defer o.mu.RUnlock()
	if n, ok := o.nonces[addr.Hex()]; ok {
		return n, nil
	}
	return o.base.Nonce(addr)
}

func (o *overlay) Storage(addr address.ContractAddress, key address.StorageKey) (address.StorageValue, error) {
	o.mu.RLock()
	defer o.mu.RUnlock()
	if v, ok := o.storage[addr.Hex()+key.Hex()]; ok {
		return v, nil
	}
	return o.base.Storage(addr, key)
}

func (o *overlay) merge(out executor.Output) {
	o.mu.Lock()
	defer o.mu.Unlock()
	out.States.NonceUpdates.Scan(func(addrFelt felt.Felt, n address.Nonce) bool {
		o.nonces[address.FromFelt(addrFelt).Hex()] = n
		return true
	})
	for addrFelt, diff := range out.States.StorageUpdates {
		addr := address.FromFelt(addrFelt)
		diff.Range(func(key address.StorageKey, value address.StorageValue) bool {
			o.storage[addr.Hex()+key.Hex()] = value
			return true
		})
	}
}

// Executor runs ready pool transactions speculatively against the latest
// confirmed state, maintaining a read-only overlay of their effects.
type Executor struct {
	base    Base
	pool    Pool
	factory executor.Factory

	overlayMu sync.RWMutex
	ov        *overlay
}

func New(base Base, pool Pool, factory executor.Factory) *Executor {
	return &Executor{base: base, pool: pool, factory: factory}
}

// State returns the current speculative StateReader, or ok=false before the
// first transaction has been processed.
func (e *Executor) State() (executor.StateReader, bool) {
	e.overlayMu.RLock()
	defer e.overlayMu.RUnlock()
	if e.ov == nil {
		return nil, false
	}
	return e.ov, true
}

// Run drains the pool's pending stream until ctx is cancelled, executing
// each ready transaction speculatively and merging its effects into the
// overlay. It never errors out of the loop: a single transaction's failure
// is logged and skipped, mirroring the original's per-transaction error
// isolation in OptimisticExecutorActor::poll.
func (e *Executor) Run(ctx context.Context) {
	stream, unsubscribe := e.pool.PendingStream(256)
	defer unsubscribe()
	for {
		select {
		case <-ctx.Done():
			return
		case entry := <-stream:
			if entry == nil {
				continue
			}
			e.executeOne(ctx, entry.Tx)
		}
	}
}

func (e *Executor) executeOne(ctx context.Context, tx transaction.TxWithHash) {
	head, err := e.base.LatestHeader(ctx)
	if err != nil {
		log.Error("read latest header", zap.Error(err))
		return
	}
	base, err := e.base.StateAt(ctx, head.Number)
	if err != nil {
		log.Error("open latest state", zap.Error(err))
		return
	}

	e.overlayMu.Lock()
	if e.ov == nil {
		e.ov = newOverlay(base)
	} else {
		e.ov.base = base
	}
	ov := e.ov
	e.overlayMu.Unlock()

	exec := e.factory.NewExecutor(ov, executor.BlockEnv{Number: head.Number + 1, Timestamp: 0})
	if _, err := exec.ExecuteTransactions([]transaction.TxWithHash{tx}); err != nil {
		log.Error("speculative execution failed", zap.String("tx", tx.Hash.Hex()), zap.Error(err))
		return
	}
	out, err := exec.TakeOutput()
	if err != nil {
		log.Error("take speculative output", zap.Error(err))
		return
	}
	ov.merge(out)
}
