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
	"time"

	"go.uber.org/zap"

	"github.com/lumenhq/lumen/executor"
	"github.com/lumenhq/lumen/primitives/block"
	"github.com/lumenhq/lumen/primitives/transaction"
)

// Interval maintains one long-lived executor against a pending BlockEnv,
// feeding it ready transactions from the pool until a timer fires or
// MineNow is called, at which point it seals, commits, and opens the next
// pending executor.
type Interval struct {
	sink     Sink
	pool     Pool
	factory  executor.Factory
	interval time.Duration

	mu      sync.Mutex
	state   atomic.Int32
	cancel  context.CancelFunc
	done    chan struct{}
	pending *pendingState
	mineNow chan struct{}

	cur    executor.Executor
	curTxs []transaction.TxWithHash
}

func NewInterval(sink Sink, pool Pool, factory executor.Factory, interval time.Duration) *Interval {
	return &Interval{sink: sink, pool: pool, factory: factory, interval: interval,
		pending: &pendingState{}, mineNow: make(chan struct{}, 1)}
}

func (p *Interval) State() State { return State(p.state.Load()) }

func (p *Interval) Pending() ([]transaction.TxWithHash, executor.StateReader, bool) {
	return p.pending.get()
}

// MineNow requests an immediate seal, equivalent to the timer firing early.
func (p *Interval) MineNow() {
	select {
	case p.mineNow <- struct{}{}:
	default:
	}
}

func (p *Interval) Start(ctx context.Context) error {
	p.mu.Lock()
	if p.cancel != nil {
		p.mu.Unlock()
		return nil
	}
	runCtx, cancel := context.WithCancel(ctx)
	p.cancel = cancel
	p.done = make(chan struct{})
	p.mu.Unlock()

	if err := p.openPendingExecutor(runCtx); err != nil {
		return err
	}

	stream, unsubscribe := p.pool.PendingStream(256)
	go func() {
		defer close(p.done)
		defer unsubscribe()
		timer := time.NewTimer(p.interval)
		defer timer.Stop()
		for {
			select {
			case <-runCtx.Done():
				p.state.Store(int32(Idle))
				return
			case entry := <-stream:
				if entry != nil {
					p.feed(entry.Tx)
				}
			case <-timer.C:
				p.seal(runCtx)
				timer.Reset(p.interval)
			case <-p.mineNow:
				p.seal(runCtx)
				timer.Reset(p.interval)
			}
		}
	}()
	return nil
}

func (p *Interval) openPendingExecutor(ctx context.Context) error {
	head, err := p.sink.LatestHeader(ctx)
	if err != nil {
		return err
	}
	state, err := p.sink.StateAt(ctx, head.Number)
	if err != nil {
		return err
	}
	p.mu.Lock()
	p.cur = p.factory.NewExecutor(state, executor.BlockEnv{
		Number:           head.Number + 1,
		Timestamp:        now(),
		SequencerAddress: head.SequencerAddress,
		L1GasPrices:      head.L1GasPrices,
		L2GasPrices:      head.L2GasPrices,
	})
	p.curTxs = nil
	p.mu.Unlock()
	p.pending.set(nil, state)
	p.state.Store(int32(PendingState))
	return nil
}

func (p *Interval) feed(tx transaction.TxWithHash) {
	p.mu.Lock()
	exec := p.cur
	p.mu.Unlock()
	if exec == nil {
		return
	}
	if _, err := exec.ExecuteTransactions([]transaction.TxWithHash{tx}); err != nil {
		log.Error("fatal executor error feeding pending block", zap.Error(err))
		return
	}
	p.mu.Lock()
	p.curTxs = append(p.curTxs, tx)
	txs := append([]transaction.TxWithHash(nil), p.curTxs...)
	p.mu.Unlock()
	p.pending.set(txs, exec)
}

func (p *Interval) seal(ctx context.Context) {
	p.mu.Lock()
	exec := p.cur
	txs := p.curTxs
	p.mu.Unlock()
	if exec == nil || len(txs) == 0 {
		return
	}
	p.state.Store(int32(Sealing))

	out, err := exec.TakeOutput()
	if err != nil {
		log.Error("take execution output", zap.Error(err))
		p.state.Store(int32(PendingState))
		return
	}

	parent, err := p.sink.LatestHeader(ctx)
	if err != nil {
		log.Error("read latest header during seal", zap.Error(err))
		p.state.Store(int32(PendingState))
		return
	}
	nextNumber := parent.Number + 1
	stateRoot, err := p.sink.StateRoot(ctx, nextNumber, out)
	if err != nil {
		log.Error("compute state root", zap.Error(err))
		p.state.Store(int32(PendingState))
		return
	}

	header := block.Header{
		Number:           nextNumber,
		ParentHash:       parent.Seal(),
		Timestamp:        exec.BlockEnv().Timestamp,
		SequencerAddress: parent.SequencerAddress,
		StateRoot:        stateRoot,
		TransactionCount: uint64(len(out.Transactions)),
		L1GasPrices:      parent.L1GasPrices,
		L2GasPrices:      parent.L2GasPrices,
	}
	sealed := block.Block{Header: header, Body: block.Body{Transactions: txs}}

	if err := p.sink.Commit(ctx, sealed, out); err != nil {
		log.Error("commit interval block", zap.Error(err))
		p.state.Store(int32(PendingState))
		return
	}
	for _, tx := range txs {
		p.pool.Remove(tx.Hash)
	}

	if err := p.openPendingExecutor(ctx); err != nil {
		log.Error("reopen pending executor after seal", zap.Error(err))
	}
}

func (p *Interval) Stop() {
	p.mu.Lock()
	cancel := p.cancel
	done := p.done
	p.mu.Unlock()
	if cancel == nil {
		return
	}
	cancel()
	<-done
	p.pending.clear()
	p.mu.Lock()
	p.cancel = nil
	p.cur = nil
	p.mu.Unlock()
}
