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

// Package provider is the typed facade over storage: a non-forked Local
// provider reads/writes the store directly; Fork
// additionally consults a remote node for blocks at or before its fork
// point. Both satisfy producer.Sink. Neither is a trie.BaseReader or a sync
// stage writer: trie bootstrap reads go through *kv.HistoricalView (see
// StateAt) and the sync stages write through *kv.Store directly.
package provider

import (
	"context"
	"sync"

	"github.com/lumenhq/lumen/executor"
	"github.com/lumenhq/lumen/kv"
	"github.com/lumenhq/lumen/primitives/address"
	"github.com/lumenhq/lumen/primitives/block"
	"github.com/lumenhq/lumen/primitives/class"
	"github.com/lumenhq/lumen/primitives/felt"
	"github.com/lumenhq/lumen/primitives/receipt"
	"github.com/lumenhq/lumen/primitives/transaction"
	"github.com/lumenhq/lumen/trie"
)

// Local is the non-forked provider: every read and write goes straight
// through to the storage engine and the live tries.
type Local struct {
	store *kv.Store
	tries *trie.Tries

	mu   sync.RWMutex
	head block.Header
}

// NewLocal wraps a store and trie pair, seeded with the chain's current
// head (block.Header{} for a fresh chain before genesis is committed).
func NewLocal(store *kv.Store, tries *trie.Tries, head block.Header) *Local {
	return &Local{store: store, tries: tries, head: head}
}

func (l *Local) LatestHeader(context.Context) (block.Header, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.head, nil
}

// BlockAt reads a sealed block back out of storage, for RPC's
// get_block_with_txs family and the fork provider's memoization check.
func (l *Local) BlockAt(ctx context.Context, n block.Number) (block.Block, bool, error) {
	return l.store.BlockByNumber(ctx, n)
}

// BlockNumberByHash resolves a sealed block hash to its number, for RPC's
// block_id-by-hash reads.
func (l *Local) BlockNumberByHash(ctx context.Context, hash block.Hash) (block.Number, bool, error) {
	return l.store.BlockNumberByHash(ctx, hash)
}

// TransactionByHash resolves a transaction hash to its transaction and
// owning block position, for RPC's get_transaction_by_hash.
func (l *Local) TransactionByHash(ctx context.Context, hash transaction.Hash) (transaction.TxWithHash, block.Number, int, bool, error) {
	return l.store.TransactionByHash(ctx, hash)
}

// ReceiptByHash resolves a transaction hash to its receipt, for RPC's
// get_transaction_receipt.
func (l *Local) ReceiptByHash(ctx context.Context, hash transaction.Hash) (receipt.Receipt, block.Number, bool, error) {
	return l.store.ReceiptByHash(ctx, hash)
}

// ReceiptsForBlock returns every receipt for a block in transaction order,
// for RPC's get_block_with_receipts.
func (l *Local) ReceiptsForBlock(ctx context.Context, n block.Number, txCount int) ([]receipt.Receipt, error) {
	return l.store.ReceiptsByBlock(ctx, n, txCount)
}

// TraceByHash resolves a transaction hash to its execution trace, for RPC's
// trace_transaction.
func (l *Local) TraceByHash(ctx context.Context, hash transaction.Hash) (receipt.Trace, block.Number, bool, error) {
	return l.store.TraceByHash(ctx, hash)
}

// TracesForBlock returns every trace for a block in transaction order, for
// RPC's trace_block_transactions.
func (l *Local) TracesForBlock(ctx context.Context, n block.Number, txCount int) ([]receipt.Trace, error) {
	return l.store.TracesByBlock(ctx, n, txCount)
}

// ClassArtifact decodes a stored class artifact by hash, for RPC's
// get_class family.
func (l *Local) ClassArtifact(ctx context.Context, hash class.Hash) (class.Class, bool, error) {
	return l.store.ClassArtifact(ctx, hash)
}

// ClassHashOfContractAt resolves the class a contract address was pointed
// at as of block n, for RPC's get_class_hash_at and get_class_at.
func (l *Local) ClassHashOfContractAt(ctx context.Context, n block.Number, addr address.ContractAddress) (class.Hash, error) {
	view, err := l.store.Historical(ctx, n)
	if err != nil {
		return class.Hash{}, err
	}
	defer view.Close()
	return view.ClassHashOfContract(addr)
}

// StateAt opens a read-only view as of block n (executor.StateReader and
// trie.BaseReader are both satisfied by *kv.HistoricalView, so the same
// value backs both the executor's reads and any trie bootstrap lookup).
func (l *Local) StateAt(ctx context.Context, n block.Number) (executor.StateReader, error) {
	return l.store.Historical(ctx, n)
}

// StateRoot folds a freshly executed block's state diff into the live
// tries and returns the combined state_root for the header.
// This is the only place the tries mutate; Commit only persists the
// already-computed diff to the store. *kv.HistoricalView satisfies
// trie.BaseReader the same way it satisfies executor.StateReader in
// StateAt.
func (l *Local) StateRoot(ctx context.Context, blockNumber block.Number, out executor.Output) (felt.Felt, error) {
	base, err := l.store.Historical(ctx, blockNumber-1)
	if err != nil {
		return felt.Felt{}, err
	}
	contractsRoot, err := l.tries.InsertContractUpdates(&out.States, base)
	if err != nil {
		return felt.Felt{}, err
	}
	classesRoot, err := l.tries.InsertDeclaredClasses(declaredCompiledHashes(out))
	if err != nil {
		return felt.Felt{}, err
	}
	return trie.StateRoot(contractsRoot, classesRoot), nil
}

func declaredCompiledHashes(out executor.Output) map[class.Hash]class.CompiledHash {
	declared := map[class.Hash]class.CompiledHash{}
	out.States.DeclaredClasses.Scan(func(hashFelt felt.Felt, compiled class.CompiledHash) bool {
		declared[class.Hash{Felt: hashFelt}] = compiled
		return true
	})
	return declared
}

// Commit persists a sealed block: its receipts, state diff, and any class
// artifacts its Declare transactions carried inline.
func (l *Local) Commit(ctx context.Context, b block.Block, out executor.Output) error {
	receipts := make([]receipt.Receipt, 0, len(out.Transactions))
	traces := make([]receipt.Trace, 0, len(out.Transactions))
	for _, txr := range out.Transactions {
		if txr.Result.Receipt != nil {
			receipts = append(receipts, *txr.Result.Receipt)
		}
		if txr.Result.Trace != nil {
			traces = append(traces, *txr.Result.Trace)
		} else if txr.Result.Receipt != nil {
			traces = append(traces, receipt.FromReceipt(*txr.Result.Receipt))
		}
	}

	su := kv.StateUpdatesWithClasses{Diff: &out.States, Classes: declaredClassArtifacts(b)}
	if err := l.store.InsertBlockWithStatesAndReceipts(ctx, b, su, receipts, traces); err != nil {
		return err
	}

	l.mu.Lock()
	l.head = b.Header
	l.mu.Unlock()
	return nil
}

func declaredClassArtifacts(b block.Block) map[class.Hash]class.Class {
	out := map[class.Hash]class.Class{}
	for _, twh := range b.Body.Transactions {
		if twh.Kind == transaction.KindDeclare && twh.Declare != nil {
			out[twh.Declare.Class.ComputeHash()] = twh.Declare.Class
		}
	}
	return out
}

// Nonce and Storage let Local double as an executor.StateReader directly
// against the current head, for callers (RPC "pending"-less reads) that
// don't need a point-in-time historical view.
func (l *Local) Nonce(addr address.ContractAddress) (address.Nonce, error) {
	l.mu.RLock()
	head := l.head.Number
	l.mu.RUnlock()
	view, err := l.store.Historical(context.Background(), head)
	if err != nil {
		return address.Nonce{}, err
	}
	defer view.Close()
	return view.Nonce(addr)
}

func (l *Local) Storage(addr address.ContractAddress, key address.StorageKey) (address.StorageValue, error) {
	l.mu.RLock()
	head := l.head.Number
	l.mu.RUnlock()
	view, err := l.store.Historical(context.Background(), head)
	if err != nil {
		return address.StorageValue{}, err
	}
	defer view.Close()
	return view.Storage(addr, key)
}
