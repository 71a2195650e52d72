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

package kv

import (
	"context"
	"fmt"
	"sync"

	"github.com/lumenhq/lumen/internal/lumenerr"
	"github.com/lumenhq/lumen/primitives/address"
	"github.com/lumenhq/lumen/primitives/block"
	"github.com/lumenhq/lumen/primitives/class"
	"github.com/lumenhq/lumen/primitives/felt"
	"github.com/lumenhq/lumen/primitives/receipt"
	"github.com/lumenhq/lumen/primitives/state"
	"github.com/lumenhq/lumen/primitives/transaction"
)

// Store is the typed facade over the storage engine: atomic block
// insertion, historical views, and unwind. It serializes writers with
// writeMu.
type Store struct {
	db      DB
	writeMu sync.Mutex

	headers  *Versioned[block.Header]
	classes  *Versioned[class.Class]
	receipts *Versioned[receipt.Receipt]
	txs      *Versioned[transaction.TxWithHash]
	traces   *Versioned[receipt.Trace]
}

// NewStore wraps an opened DB with the codecs this node version writes.
func NewStore(db DB, headers *Versioned[block.Header], classes *Versioned[class.Class], receipts *Versioned[receipt.Receipt], txs *Versioned[transaction.TxWithHash], traces *Versioned[receipt.Trace]) *Store {
	return &Store{db: db, headers: headers, classes: classes, receipts: receipts, txs: txs, traces: traces}
}

// StateUpdatesWithClasses bundles a block's state diff with the class
// artifacts it declares, since declaring a class requires storing its
// artifact atomically with the block that declared it.
type StateUpdatesWithClasses struct {
	Diff    *state.StateUpdates
	Classes map[class.Hash]class.Class
}

// txNumber packs (blockNumber, index-within-block) into the TxNumber key
// space used by the BlockTransaction/Receipt/TraceOutput tables.
func txNumber(blockNumber uint64, index int) []byte {
	return EncodeBlockNumber(blockNumber<<20 | uint64(index))
}

// InsertBlockWithStatesAndReceipts atomically appends a block, its
// receipts/traces, applies nonce/storage/class-hash updates to the "latest"
// tables, appends historical change-log rows, and persists declared class
// artifacts.
func (s *Store) InsertBlockWithStatesAndReceipts(
	ctx context.Context,
	b block.Block,
	su StateUpdatesWithClasses,
	receipts []receipt.Receipt,
	traces []receipt.Trace,
) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	if len(b.Body.Transactions) != len(receipts) {
		return lumenerr.New(lumenerr.InvalidRequest, "tx/receipt count mismatch")
	}
	if len(b.Body.Transactions) != len(traces) {
		return lumenerr.New(lumenerr.InvalidRequest, "tx/trace count mismatch")
	}
	if !su.Diff.DisjointDeployedAndReplaced() {
		return lumenerr.New(lumenerr.Internal, "deployed and replaced contracts overlap")
	}

	return Update(ctx, s.db, func(tx RwTx) error {
		num := uint64(b.Header.Number)
		numKey := EncodeBlockNumber(num)
		sealed := b.Header.Seal()

		if err := tx.Put(Headers, numKey, s.headers.Encode(b.Header)); err != nil {
			return err
		}
		sealedBytes := sealed.Bytes()
		if err := tx.Put(HeaderCanonical, numKey, sealedBytes[:]); err != nil {
			return err
		}
		if err := tx.Put(HeaderNumber, sealedBytes[:], numKey); err != nil {
			return err
		}
		bodyIdx := make([]byte, 16)
		// first_tx_index is always 0 in this layout since TxNumber already
		// encodes the owning block; tx_count follows.
		putUint64(bodyIdx[8:], uint64(len(b.Body.Transactions)))
		if err := tx.Put(BlockBody, numKey, bodyIdx); err != nil {
			return err
		}

		for i, twh := range b.Body.Transactions {
			key := txNumber(num, i)
			if err := tx.Put(BlockTransaction, key, s.txs.Encode(twh)); err != nil {
				return err
			}
			hashBytes := twh.Hash.Bytes()
			if err := tx.Put(TxLookup, hashBytes[:], key); err != nil {
				return err
			}
			if err := tx.Put(Receipts, key, s.receipts.Encode(receipts[i])); err != nil {
				return err
			}
			if err := tx.Put(TraceOutputs, key, s.traces.Encode(traces[i])); err != nil {
				return err
			}
		}

		if err := applyNonceUpdates(tx, num, su.Diff); err != nil {
			return err
		}
		if err := applyStorageUpdates(tx, num, su.Diff); err != nil {
			return err
		}
		if err := applyClassHashUpdates(tx, num, su.Diff); err != nil {
			return err
		}
		for hash, c := range su.Classes {
			hb := hash.Bytes()
			if err := tx.Put(ClassArtifacts, hb[:], s.classes.Encode(c)); err != nil {
				return err
			}
		}
		var declErr error
		su.Diff.DeclaredClasses.Scan(func(hashFelt felt.Felt, compiled class.CompiledHash) bool {
			hb := hashFelt.Bytes()
			cb := compiled.Bytes()
			if err := tx.Put(CompiledClassHashes, hb[:], cb[:]); err != nil {
				declErr = err
				return false
			}
			return true
		})
		return declErr
	})
}

func putUint64(b []byte, v uint64) {
	for i := 7; i >= 0; i-- {
		b[i] = byte(v)
		v >>= 8
	}
}

func getUint64(b []byte) uint64 {
	var v uint64
	for i := 0; i < 8; i++ {
		v = v<<8 | uint64(b[i])
	}
	return v
}

func applyNonceUpdates(tx RwTx, blockNumber uint64, su *state.StateUpdates) error {
	var outerErr error
	su.NonceUpdates.Scan(func(addrFelt felt.Felt, n address.Nonce) bool {
		key := addrFelt.Bytes()
		prior, found, err := tx.Get(PlainNonce, key[:])
		if err != nil {
			outerErr = err
			return false
		}
		var priorCopy []byte
		if found {
			priorCopy = append([]byte{}, prior...)
		}
		val := n.Bytes()
		if err := tx.Put(PlainNonce, key[:], val[:]); err != nil {
			outerErr = err
			return false
		}
		if err := RecordChange(tx, HistoryNonce, key[:], blockNumber, priorCopy); err != nil {
			outerErr = err
			return false
		}
		return true
	})
	return outerErr
}

func applyStorageUpdates(tx RwTx, blockNumber uint64, su *state.StateUpdates) error {
	var outerErr error
	for addrFelt, diff := range su.StorageUpdates {
		addrBytes := addrFelt.Bytes()
		diff.Range(func(key address.StorageKey, value address.StorageValue) bool {
			kk := key.Bytes()
			composite := append(append([]byte{}, addrBytes[:]...), kk[:]...)
			prior, found, err := tx.Get(PlainStorage, composite)
			if err != nil {
				outerErr = err
				return false
			}
			var priorCopy []byte
			if found {
				priorCopy = append([]byte{}, prior...)
			}
			val := value.Bytes()
			if err := tx.Put(PlainStorage, composite, val[:]); err != nil {
				outerErr = err
				return false
			}
			if err := RecordChange(tx, HistoryStorage, composite, blockNumber, priorCopy); err != nil {
				outerErr = err
				return false
			}
			return true
		})
		if outerErr != nil {
			return outerErr
		}
	}
	return nil
}

func applyClassHashUpdates(tx RwTx, blockNumber uint64, su *state.StateUpdates) error {
	apply := func(addrFelt felt.Felt, hash class.Hash) error {
		key := addrFelt.Bytes()
		prior, found, err := tx.Get(PlainClassHashOfContract, key[:])
		if err != nil {
			return err
		}
		var priorCopy []byte
		if found {
			priorCopy = append([]byte{}, prior...)
		}
		hb := hash.Bytes()
		if err := tx.Put(PlainClassHashOfContract, key[:], hb[:]); err != nil {
			return err
		}
		return RecordChange(tx, HistoryClassHashOfContract, key[:], blockNumber, priorCopy)
	}
	var outerErr error
	su.DeployedContracts.Scan(func(k felt.Felt, v class.Hash) bool {
		if err := apply(k, v); err != nil {
			outerErr = err
			return false
		}
		return true
	})
	if outerErr != nil {
		return outerErr
	}
	su.ReplacedClasses.Scan(func(k felt.Felt, v class.Hash) bool {
		if err := apply(k, v); err != nil {
			outerErr = err
			return false
		}
		return true
	})
	return outerErr
}

// HasClassArtifact reports whether a class artifact is already stored,
// letting the Classes sync stage skip re-downloading it.
func (s *Store) HasClassArtifact(ctx context.Context, hash class.Hash) (bool, error) {
	var found bool
	err := View(ctx, s.db, func(tx Tx) error {
		hb := hash.Bytes()
		_, f, err := tx.Get(ClassArtifacts, hb[:])
		found = f
		return err
	})
	return found, err
}

// ClassArtifact decodes a stored class artifact by hash, for RPC's
// get_class family.
func (s *Store) ClassArtifact(ctx context.Context, hash class.Hash) (class.Class, bool, error) {
	var c class.Class
	var found bool
	err := View(ctx, s.db, func(tx Tx) error {
		hb := hash.Bytes()
		cb, f, err := tx.Get(ClassArtifacts, hb[:])
		if err != nil || !f {
			return err
		}
		c, err = s.classes.Decode(cb)
		found = true
		return err
	})
	return c, found, err
}

// StoreClassArtifact persists a class artifact fetched independently of a
// block's atomic insert, used by the Classes sync stage to backfill
// artifacts a block's state diff declares by hash but doesn't carry inline.
func (s *Store) StoreClassArtifact(ctx context.Context, hash class.Hash, c class.Class) error {
	return Update(ctx, s.db, func(tx RwTx) error {
		hb := hash.Bytes()
		return tx.Put(ClassArtifacts, hb[:], s.classes.Encode(c))
	})
}

// HasHeader reports whether a block has been persisted locally, letting the
// fork provider decide whether a read needs a remote fetch.
func (s *Store) HasHeader(ctx context.Context, n block.Number) (bool, error) {
	var found bool
	err := View(ctx, s.db, func(tx Tx) error {
		_, f, err := tx.Get(Headers, EncodeBlockNumber(uint64(n)))
		found = f
		return err
	})
	return found, err
}

// BlockByNumber reconstitutes a sealed block from the Headers/BlockBody/
// BlockTransaction tables, for the provider facade and RPC block reads.
func (s *Store) BlockByNumber(ctx context.Context, n block.Number) (block.Block, bool, error) {
	var b block.Block
	var found bool
	err := View(ctx, s.db, func(tx Tx) error {
		numKey := EncodeBlockNumber(uint64(n))
		headerBytes, f, err := tx.Get(Headers, numKey)
		if err != nil || !f {
			return err
		}
		header, err := s.headers.Decode(headerBytes)
		if err != nil {
			return err
		}
		bodyIdx, f, err := tx.Get(BlockBody, numKey)
		if err != nil || !f {
			return err
		}
		count := getUint64(bodyIdx[8:])
		txs := make([]transaction.TxWithHash, 0, count)
		for i := uint64(0); i < count; i++ {
			txBytes, f, err := tx.Get(BlockTransaction, txNumber(uint64(n), int(i)))
			if err != nil {
				return err
			}
			if !f {
				return fmt.Errorf("kv: block %d missing tx %d", n, i)
			}
			twh, err := s.txs.Decode(txBytes)
			if err != nil {
				return err
			}
			txs = append(txs, twh)
		}
		b = block.Block{Header: header, Body: block.Body{Transactions: txs}}
		found = true
		return nil
	})
	return b, found, err
}

// ReceiptsByBlock returns every receipt for a block in transaction order.
func (s *Store) ReceiptsByBlock(ctx context.Context, n block.Number, txCount int) ([]receipt.Receipt, error) {
	receipts := make([]receipt.Receipt, 0, txCount)
	err := View(ctx, s.db, func(tx Tx) error {
		for i := 0; i < txCount; i++ {
			rBytes, f, err := tx.Get(Receipts, txNumber(uint64(n), i))
			if err != nil {
				return err
			}
			if !f {
				return fmt.Errorf("kv: block %d missing receipt %d", n, i)
			}
			r, err := s.receipts.Decode(rBytes)
			if err != nil {
				return err
			}
			receipts = append(receipts, r)
		}
		return nil
	})
	return receipts, err
}

// TracesByBlock returns every trace for a block in transaction order.
func (s *Store) TracesByBlock(ctx context.Context, n block.Number, txCount int) ([]receipt.Trace, error) {
	traces := make([]receipt.Trace, 0, txCount)
	err := View(ctx, s.db, func(tx Tx) error {
		for i := 0; i < txCount; i++ {
			tBytes, f, err := tx.Get(TraceOutputs, txNumber(uint64(n), i))
			if err != nil {
				return err
			}
			if !f {
				return fmt.Errorf("kv: block %d missing trace %d", n, i)
			}
			t, err := s.traces.Decode(tBytes)
			if err != nil {
				return err
			}
			traces = append(traces, t)
		}
		return nil
	})
	return traces, err
}

// decodeTxNumber splits a BlockTransaction/Receipt/TraceOutput key back into
// its (blockNumber, index-within-block) components, the inverse of txNumber.
func decodeTxNumber(key []byte) (blockNumber uint64, index int) {
	v := getUint64(key)
	return v >> 20, int(v & 0xFFFFF)
}

// BlockNumberByHash resolves a sealed block hash to its number via the
// HeaderNumber index, for RPC's block_id-by-hash family.
func (s *Store) BlockNumberByHash(ctx context.Context, hash block.Hash) (block.Number, bool, error) {
	var n block.Number
	var found bool
	hb := hash.Bytes()
	err := View(ctx, s.db, func(tx Tx) error {
		numBytes, f, err := tx.Get(HeaderNumber, hb[:])
		if err != nil || !f {
			return err
		}
		n = block.Number(getUint64(numBytes))
		found = true
		return nil
	})
	return n, found, err
}

// TransactionByHash resolves a transaction hash to its decoded transaction,
// owning block number, and index within that block, via the TxLookup index.
func (s *Store) TransactionByHash(ctx context.Context, hash transaction.Hash) (transaction.TxWithHash, block.Number, int, bool, error) {
	var twh transaction.TxWithHash
	var blockNumber block.Number
	var index int
	var found bool
	hb := hash.Bytes()
	err := View(ctx, s.db, func(tx Tx) error {
		key, f, err := tx.Get(TxLookup, hb[:])
		if err != nil || !f {
			return err
		}
		txBytes, f, err := tx.Get(BlockTransaction, key)
		if err != nil || !f {
			return err
		}
		twh, err = s.txs.Decode(txBytes)
		if err != nil {
			return err
		}
		n, i := decodeTxNumber(key)
		blockNumber, index = block.Number(n), i
		found = true
		return nil
	})
	return twh, blockNumber, index, found, err
}

// ReceiptByHash resolves a transaction hash to its receipt and owning block
// number, via the same TxLookup index TransactionByHash uses.
func (s *Store) ReceiptByHash(ctx context.Context, hash transaction.Hash) (receipt.Receipt, block.Number, bool, error) {
	var r receipt.Receipt
	var blockNumber block.Number
	var found bool
	hb := hash.Bytes()
	err := View(ctx, s.db, func(tx Tx) error {
		key, f, err := tx.Get(TxLookup, hb[:])
		if err != nil || !f {
			return err
		}
		rBytes, f, err := tx.Get(Receipts, key)
		if err != nil || !f {
			return err
		}
		r, err = s.receipts.Decode(rBytes)
		if err != nil {
			return err
		}
		n, _ := decodeTxNumber(key)
		blockNumber = block.Number(n)
		found = true
		return nil
	})
	return r, blockNumber, found, err
}

// TraceByHash resolves a transaction hash to its trace and owning block
// number, via the same TxLookup index ReceiptByHash uses.
func (s *Store) TraceByHash(ctx context.Context, hash transaction.Hash) (receipt.Trace, block.Number, bool, error) {
	var t receipt.Trace
	var blockNumber block.Number
	var found bool
	hb := hash.Bytes()
	err := View(ctx, s.db, func(tx Tx) error {
		key, f, err := tx.Get(TxLookup, hb[:])
		if err != nil || !f {
			return err
		}
		tBytes, f, err := tx.Get(TraceOutputs, key)
		if err != nil || !f {
			return err
		}
		t, err = s.traces.Decode(tBytes)
		if err != nil {
			return err
		}
		n, _ := decodeTxNumber(key)
		blockNumber = block.Number(n)
		found = true
		return nil
	})
	return t, blockNumber, found, err
}

// Historical returns a read-only view whose Nonce/Storage/ClassHashOfContract
// accessors read as-of the given block.
func (s *Store) Historical(ctx context.Context, at block.Number) (*HistoricalView, error) {
	roTx, err := s.db.BeginRo(ctx)
	if err != nil {
		return nil, err
	}
	return &HistoricalView{tx: roTx, at: uint64(at)}, nil
}

// HistoricalView reads the latest tables overlaid with reverse-applied
// changes for all blocks after `at`.
type HistoricalView struct {
	tx Tx
	at uint64
}

func (v *HistoricalView) Close() error { return v.tx.Rollback() }

func (v *HistoricalView) Nonce(addr address.ContractAddress) (address.Nonce, error) {
	key := addr.Bytes()
	latest, _, err := v.tx.Get(PlainNonce, key[:])
	if err != nil {
		return address.Nonce{}, err
	}
	raw, err := ValueBeforeOrAt(v.tx, HistoryNonce, key[:], v.at, latest)
	if err != nil {
		return address.Nonce{}, err
	}
	if raw == nil {
		return address.Nonce{}, nil
	}
	var b [32]byte
	copy(b[:], raw)
	return address.Nonce{Felt: felt.FromBytes(b)}, nil
}

func (v *HistoricalView) Storage(addr address.ContractAddress, key address.StorageKey) (address.StorageValue, error) {
	ak := addr.Bytes()
	kk := key.Bytes()
	composite := append(append([]byte{}, ak[:]...), kk[:]...)
	latest, _, err := v.tx.Get(PlainStorage, composite)
	if err != nil {
		return address.StorageValue{}, err
	}
	raw, err := ValueBeforeOrAt(v.tx, HistoryStorage, composite, v.at, latest)
	if err != nil {
		return address.StorageValue{}, err
	}
	if raw == nil {
		return address.StorageValue{}, nil
	}
	var b [32]byte
	copy(b[:], raw)
	return address.StorageValue{Felt: felt.FromBytes(b)}, nil
}

func (v *HistoricalView) ClassHashOfContract(addr address.ContractAddress) (class.Hash, error) {
	key := addr.Bytes()
	latest, _, err := v.tx.Get(PlainClassHashOfContract, key[:])
	if err != nil {
		return class.Hash{}, err
	}
	raw, err := ValueBeforeOrAt(v.tx, HistoryClassHashOfContract, key[:], v.at, latest)
	if err != nil {
		return class.Hash{}, err
	}
	if raw == nil {
		return class.Hash{}, nil
	}
	var b [32]byte
	copy(b[:], raw)
	return class.Hash{Felt: felt.FromBytes(b)}, nil
}

// UnwindTo truncates the store to retain only blocks <= n: for every
// affected table it reverts the "latest" value back to what the change log
// recorded immediately <= n (or deletes the row if it had no prior value),
// deletes rows for blocks > n across every block-indexed table (headers,
// the hash indexes, bodies, transactions/receipts/traces, and trie nodes
// whose root marker is > n), so none of the discarded fork's data remains
// queryable afterward.
func (s *Store) UnwindTo(ctx context.Context, n block.Number) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	return Update(ctx, s.db, func(tx RwTx) error {
		target := uint64(n)
		affected, err := AffectedEntitiesAfter(tx, target)
		if err != nil {
			return err
		}
		for _, pair := range []struct{ plain, history string }{
			{PlainNonce, HistoryNonce},
			{PlainStorage, HistoryStorage},
			{PlainClassHashOfContract, HistoryClassHashOfContract},
		} {
			if err := unwindTable(tx, pair.plain, pair.history, affected, target); err != nil {
				return fmt.Errorf("kv: unwind %s: %w", pair.plain, err)
			}
		}
		if err := deleteKeysAbove(tx, Headers, target); err != nil {
			return err
		}
		if err := deleteKeysAbove(tx, HeaderCanonical, target); err != nil {
			return err
		}
		if err := deleteHeaderNumberAbove(tx, target); err != nil {
			return err
		}
		if err := deleteKeysAbove(tx, BlockBody, target); err != nil {
			return err
		}
		if err := s.deleteTxIndexedAbove(tx, target); err != nil {
			return err
		}
		if err := deleteKeysAbove(tx, TrieContractsNodes, target); err != nil {
			return err
		}
		return deleteKeysAbove(tx, TrieClassesNodes, target)
	})
}

// deleteHeaderNumberAbove drops HeaderNumber's (BlockHash -> BlockNumber)
// rows for every block above target; HeaderNumber is keyed by hash, not
// number, so it can't use deleteKeysAbove's number-keyed cursor seek and
// instead scans looking up each row's decoded number.
func deleteHeaderNumberAbove(tx RwTx, target uint64) error {
	cursor, err := tx.Cursor(HeaderNumber)
	if err != nil {
		return err
	}
	defer cursor.Close()
	var toDelete [][]byte
	for k, v, err := cursor.First(); k != nil && err == nil; k, v, err = cursor.Next() {
		if getUint64(v) > target {
			toDelete = append(toDelete, append([]byte{}, k...))
		}
	}
	for _, k := range toDelete {
		if err := tx.Delete(HeaderNumber, k); err != nil {
			return err
		}
	}
	return nil
}

// deleteTxIndexedAbove drops BlockTransaction/Receipt/TraceOutput rows
// whose TxNumber encodes a block above target, and their TxLookup (hash ->
// TxNumber) entries, so TransactionByHash/ReceiptByHash/TraceByHash stop
// resolving hashes from the discarded fork once it's unwound.
func (s *Store) deleteTxIndexedAbove(tx RwTx, target uint64) error {
	cursor, err := tx.Cursor(BlockTransaction)
	if err != nil {
		return err
	}
	defer cursor.Close()
	k, v, err := cursor.Seek(EncodeBlockNumber((target + 1) << 20))
	for ; k != nil && err == nil; k, v, err = cursor.Next() {
		blockNumber, _ := decodeTxNumber(k)
		if blockNumber <= target {
			continue
		}
		if twh, decErr := s.txs.Decode(v); decErr == nil {
			hb := twh.Hash.Bytes()
			if lookupErr := tx.Delete(TxLookup, hb[:]); lookupErr != nil {
				return lookupErr
			}
		}
		if err := tx.Delete(BlockTransaction, k); err != nil {
			return err
		}
		if err := tx.Delete(Receipts, k); err != nil {
			return err
		}
		if err := tx.Delete(TraceOutputs, k); err != nil {
			return err
		}
	}
	return err
}

// unwindTable reverts a single (plain, history) table pair for every
// affected entity: the prior value recorded by the entity's earliest change
// at a block > target becomes the new "latest" value (or the row is deleted
// if that prior value is empty), and every history row for a block > target
// is dropped.
func unwindTable(tx RwTx, plainTable, historyTable string, affected [][]byte, target uint64) error {
	cursor, err := tx.CursorDupSort(historyTable)
	if err != nil {
		return err
	}
	defer cursor.Close()

	for _, entity := range affected {
		v, err := cursor.SeekBothRange(entity, EncodeBlockNumber(target+1))
		if err == nil && v != nil {
			// the nearest recorded change after target carries the prior
			// value the entity held at target: restore the plain table
			// to it (or delete the row if the entity didn't exist yet).
			_, prior := decodeChange(v)
			if len(prior) == 0 {
				if err := tx.Delete(plainTable, entity); err != nil {
					return err
				}
			} else if err := tx.Put(plainTable, entity, prior); err != nil {
				return err
			}
		}
		if err := deleteDupRowsAbove(tx, historyTable, entity, target); err != nil {
			return err
		}
	}
	return nil
}

// deleteDupRowsAbove drops every dup-sort change row for entity whose
// recorded block number is > target, leaving rows at or before target
// intact for future historical reads.
func deleteDupRowsAbove(tx RwTx, table string, entity []byte, target uint64) error {
	cursor, err := tx.CursorDupSort(table)
	if err != nil {
		return err
	}
	defer cursor.Close()
	for {
		v, err := cursor.SeekBothRange(entity, EncodeBlockNumber(target+1))
		if err != nil || v == nil {
			return nil
		}
		if err := tx.DeleteExact(table, entity, v); err != nil {
			return err
		}
	}
}

func deleteKeysAbove(tx RwTx, table string, target uint64) error {
	cursor, err := tx.Cursor(table)
	if err != nil {
		return err
	}
	defer cursor.Close()
	k, _, err := cursor.Seek(EncodeBlockNumber(target + 1))
	for ; k != nil && err == nil; k, _, err = cursor.Next() {
		if err := tx.Delete(table, k); err != nil {
			return err
		}
	}
	return nil
}
