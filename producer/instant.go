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

package producer

import (
	"context"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/lumenhq/lumen/executor"
	"github.com/lumenhq/lumen/primitives/block"
	"github.com/lumenhq/lumen/primitives/transaction"
)

// Instant opens an executor over latest state per ready transaction and
// commits a single-tx block immediately; no pending block is ever
// observable.
type Instant struct {
	sink    Sink
	pool    Pool
	factory executor.Factory

	mu     sync.Mutex
	state  atomic.Int32
	cancel context.CancelFunc
	done   chan struct{}
}

func NewInstant(sink Sink, pool Pool, factory executor.Factory) *Instant {
	return &Instant{sink: sink, pool: pool, factory: factory}
}

func (p *Instant) State() State { return State(p.state.Load()) }

func (p *Instant) Pending() ([]transaction.TxWithHash, executor.StateReader, bool) { return nil, nil, false }

func (p *Instant) Start(ctx context.Context) error {
	p.mu.Lock()
	if p.cancel != nil {
		p.mu.Unlock()
		return nil
	}
	runCtx, cancel := context.WithCancel(ctx)
	p.cancel = cancel
	p.done = make(chan struct{})
	p.mu.Unlock()

	stream, unsubscribe := p.pool.PendingStream(64)
	p.state.Store(int32(PendingState))
	go func() {
		defer close(p.done)
		defer unsubscribe()
		for {
			select {
			case <-runCtx.Done():
				p.state.Store(int32(Idle))
				return
			case entry := <-stream:
				if entry == nil {
					continue
				}
				p.seal(runCtx, entry.Tx)
			}
		}
	}()
	return nil
}

func (p *Instant) seal(ctx context.Context, tx transaction.TxWithHash) {
	p.state.Store(int32(Sealing))
	defer p.state.Store(int32(PendingState))

	parent, err := p.sink.LatestHeader(ctx)
	if err != nil {
		log.Error("read latest header", zap.Error(err))
		return
	}
	nextNumber := parent.Number + 1
	state, err := p.sink.StateAt(ctx, parent.Number)
	if err != nil {
		log.Error("open state for instant block", zap.Error(err))
		return
	}

	exec := p.factory.NewExecutor(state, executor.BlockEnv{
		Number:           nextNumber,
		Timestamp:        now(),
		SequencerAddress: parent.SequencerAddress,
		L1GasPrices:      parent.L1GasPrices,
		L2GasPrices:      parent.L2GasPrices,
	})

	if _, err := exec.ExecuteTransactions([]transaction.TxWithHash{tx}); err != nil {
		log.Error("fatal executor error, discarding cycle", zap.Error(err))
		return
	}

	out, err := exec.TakeOutput()
	if err != nil {
		log.Error("take execution output", zap.Error(err))
		return
	}
	if len(out.Transactions) == 0 {
		// Rejected at the pool-validation boundary inside the executor:
		// not included, and removed so it isn't retried forever.
		p.pool.Remove(tx.Hash)
		return
	}

	stateRoot, err := p.sink.StateRoot(ctx, nextNumber, out)
	if err != nil {
		log.Error("compute state root", zap.Error(err))
		return
	}

	header := block.Header{
		Number:           nextNumber,
		ParentHash:       parent.Seal(),
		Timestamp:        out2Timestamp(exec),
		SequencerAddress: parent.SequencerAddress,
		StateRoot:        stateRoot,
		TransactionCount: uint64(len(out.Transactions)),
		L1GasPrices:      parent.L1GasPrices,
		L2GasPrices:      parent.L2GasPrices,
	}

	sealed := block.Block{Header: header, Body: block.Body{Transactions: []transaction.TxWithHash{tx}}}
	if err := p.sink.Commit(ctx, sealed, out); err != nil {
		log.Error("commit instant block", zap.Error(err))
		return
	}
	p.pool.Remove(tx.Hash)
}

func out2Timestamp(exec executor.Executor) uint64 { return exec.BlockEnv().Timestamp }

func (p *Instant) Stop() {
	p.mu.Lock()
	cancel := p.cancel
	done := p.done
	p.mu.Unlock()
	if cancel == nil {
		return
	}
	cancel()
	<-done
	p.mu.Lock()
	p.cancel = nil
	p.mu.Unlock()
}
