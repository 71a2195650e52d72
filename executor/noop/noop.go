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

// Package noop provides a no-VM Executor/Factory: every transaction
// succeeds with an empty receipt, and the only state change it records is
// the sender's nonce advancing by one in the accumulated diff. The concrete
// Cairo VM is out of scope; this implementation
// exists so the producer, txpool, and RPC packages can be built and tested
// against the executor.Executor interface without one.
package noop

import (
	"sync"

	"github.com/lumenhq/lumen/executor"
	"github.com/lumenhq/lumen/primitives/address"
	"github.com/lumenhq/lumen/primitives/receipt"
	"github.com/lumenhq/lumen/primitives/state"
	"github.com/lumenhq/lumen/primitives/transaction"
)

// Factory builds noop Executors. Its only state is the SimulationFlags it
// reports.
type Factory struct {
	flags executor.SimulationFlags
}

func NewFactory() *Factory { return &Factory{flags: executor.DefaultSimulationFlags()} }

// NewFactoryWithFlags builds a Factory whose SimulationFlags depart from the
// defaults, e.g. a development node running with fee charging or account
// validation disabled.
func NewFactoryWithFlags(flags executor.SimulationFlags) *Factory { return &Factory{flags: flags} }

func (f *Factory) NewExecutor(_ executor.StateReader, env executor.BlockEnv) executor.Executor {
	return &Executor{env: env, diff: state.New()}
}

func (f *Factory) SimulationFlags() executor.SimulationFlags { return f.flags }

// Executor accumulates transactions and always reports success, without
// touching the contracts/storage/class tries it claims to diff.
type Executor struct {
	mu   sync.Mutex
	env  executor.BlockEnv
	diff *state.StateUpdates
	txs  []executor.TxResult
}

func (e *Executor) ExecuteTransactions(txs []transaction.TxWithHash) (int, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	for _, tx := range txs {
		e.diff.SetNonce(tx.Transaction.Sender, tx.Transaction.Nonce.Next())
		r := receipt.Receipt{}
		e.txs = append(e.txs, executor.TxResult{Tx: tx, Result: executor.Success(r, receipt.FromReceipt(r))})
	}
	return len(txs), nil
}

func (e *Executor) TakeOutput() (executor.Output, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := executor.Output{States: *e.diff, Transactions: e.txs}
	e.diff = state.New()
	e.txs = nil
	return out, nil
}

func (e *Executor) Transactions() []executor.TxResult {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]executor.TxResult(nil), e.txs...)
}

func (e *Executor) BlockEnv() executor.BlockEnv { return e.env }

func (e *Executor) SetStorageAt(addr address.ContractAddress, key address.StorageKey, value address.StorageValue) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.diff.StorageFor(addr).Set(key, value)
	return nil
}
