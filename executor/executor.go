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

// Package executor defines the boundary between the node and whatever
// Cairo VM executes transactions: the ExecutorFactory/Executor surface.
package executor

import (
	"github.com/lumenhq/lumen/primitives/address"
	"github.com/lumenhq/lumen/primitives/block"
	"github.com/lumenhq/lumen/primitives/receipt"
	"github.com/lumenhq/lumen/primitives/state"
	"github.com/lumenhq/lumen/primitives/transaction"
)

// BlockLimits bounds per-block execution, e.g. the Cairo step budget.
// Default mirrors the original's documented Starknet chain-info limit.
type BlockLimits struct {
	CairoSteps uint64
}

func DefaultBlockLimits() BlockLimits { return BlockLimits{CairoSteps: 50_000_000} }

// SimulationFlags toggles the checks a transaction normally goes through,
// for simulate/estimate-fee RPC paths.
type SimulationFlags struct {
	AccountValidation bool
	Fee               bool
	NonceCheck        bool
}

func DefaultSimulationFlags() SimulationFlags {
	return SimulationFlags{AccountValidation: true, Fee: true, NonceCheck: true}
}

// Stats summarizes resource consumption across a batch of executions.
type Stats struct {
	L1GasUsed     uint64
	CairoStepsUsed uint64
}

// Result is one transaction's execution outcome: success with its receipt
// and trace, or failure with an error — never both.
type Result struct {
	Receipt *receipt.Receipt
	Trace   *receipt.Trace
	Err     error
}

func Success(r receipt.Receipt, t receipt.Trace) Result { return Result{Receipt: &r, Trace: &t} }
func Failed(err error) Result                           { return Result{Err: err} }

func (r Result) IsSuccess() bool { return r.Err == nil }

// Output is what an Executor hands back after take_execution_output: the
// accumulated state diff, the declared classes within it, stats, and the
// per-transaction results in execution order.
type Output struct {
	Stats        Stats
	States       state.StateUpdates
	Transactions []TxResult
}

// TxResult pairs an executed transaction with its Result.
type TxResult struct {
	Tx     transaction.TxWithHash
	Result Result
}

// StateReader is the minimal read surface an Executor needs from the
// storage engine.
type StateReader interface {
	Nonce(addr address.ContractAddress) (address.Nonce, error)
	Storage(addr address.ContractAddress, key address.StorageKey) (address.StorageValue, error)
}

// BlockEnv is the per-block execution context (number, timestamp, gas
// prices, sequencer address) an Executor needs to run transactions
// against, taken directly from the header being built.
type BlockEnv struct {
	Number           block.Number
	Timestamp        uint64
	SequencerAddress address.ContractAddress
	L1GasPrices      block.GasPrices
	L2GasPrices      block.GasPrices
}

// Factory creates an Executor bound to a state view and block environment.
type Factory interface {
	NewExecutor(state StateReader, env BlockEnv) Executor
	SimulationFlags() SimulationFlags
}

// Executor runs transactions against one state view and accumulates their
// effects until TakeOutput is called.
type Executor interface {
	// ExecuteTransactions runs txs in order, returning how many were
	// applied before a fatal (non-transaction) error, if any.
	ExecuteTransactions(txs []transaction.TxWithHash) (applied int, err error)

	// TakeOutput drains the accumulated Output, resetting the executor's
	// internal accumulation for the next batch.
	TakeOutput() (Output, error)

	// Transactions returns every transaction executed so far with its
	// Result, in execution order.
	Transactions() []TxResult

	BlockEnv() BlockEnv

	// SetStorageAt directly overwrites one storage slot, used only by dev
	// endpoints to keep pending state
	// consistent with an out-of-band write.
	SetStorageAt(addr address.ContractAddress, key address.StorageKey, value address.StorageValue) error
}
