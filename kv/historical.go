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
	"encoding/binary"
	"sort"
)

// ChangeEntry is one historical change-log row: the value an entity held
// immediately before the block that changed it. Written to the table's
// dup-sort history table (e.g. HistoryNonce) keyed by (entity, blockNumber).
type ChangeEntry struct {
	BlockNumber uint64
	PriorValue  []byte // nil means "was absent before this block"
}

// EncodeBlockNumber big-endian encodes a block number so dup-sort tables
// iterate numerically, matching mdbx's default byte-lexicographic dup
// ordering.
func EncodeBlockNumber(n uint64) []byte {
	b := make([]byte, 8)
	binary.BigEndian.PutUint64(b, n)
	return b
}

func DecodeBlockNumber(b []byte) uint64 { return binary.BigEndian.Uint64(b) }

// encodeChange packs a dup-sort value for a history table: the 8-byte
// block number prefix keeps per-entity dups ordered numerically regardless
// of priorValue's contents (mdbx dup-sort compares the full value
// byte-lexicographically), followed by the prior value itself (possibly
// empty, meaning the entity was absent before this block).
func encodeChange(blockNumber uint64, priorValue []byte) []byte {
	out := make([]byte, 8+len(priorValue))
	copy(out, EncodeBlockNumber(blockNumber))
	copy(out[8:], priorValue)
	return out
}

func decodeChange(v []byte) (blockNumber uint64, priorValue []byte) {
	return DecodeBlockNumber(v[:8]), v[8:]
}

// RecordChange appends (blockNumber, priorValue) as a dup-sort row keyed by
// entityKey in historyTable, and records blockNumber against entityKey in
// ChangeSetBlocks so UnwindTo can enumerate affected entities without a full
// table scan.
func RecordChange(tx RwTx, historyTable string, entityKey []byte, blockNumber uint64, priorValue []byte) error {
	if err := tx.Put(historyTable, entityKey, encodeChange(blockNumber, priorValue)); err != nil {
		return err
	}
	return tx.Put(ChangeSetBlocks, EncodeBlockNumber(blockNumber), entityKey)
}

// ValueBeforeOrAt finds the history row for entityKey whose block number is
// the smallest one strictly greater than asOf, and returns the prior value
// recorded there — i.e. the value the entity held at block asOf.
//
// latest is the current ("HEAD") value read from the plain table, returned
// unchanged when there is no recorded change after asOf.
func ValueBeforeOrAt(tx Tx, historyTable string, entityKey []byte, asOf uint64, latest []byte) ([]byte, error) {
	cursor, err := tx.CursorDupSort(historyTable)
	if err != nil {
		return nil, err
	}
	defer cursor.Close()

	v, err := cursor.SeekBothRange(entityKey, EncodeBlockNumber(asOf+1))
	if err != nil || v == nil {
		return latest, nil // no change after asOf: HEAD value is correct
	}
	_, prior := decodeChange(v)
	return prior, nil
}

// UnwindEntity captures the rows a single table's UnwindTo needs to process:
// the entity key and the change rows at blocks > n, oldest first.
type UnwindEntity struct {
	EntityKey []byte
	Changes   []ChangeEntry
}

// AffectedEntitiesAfter returns every distinct entity key with at least one
// recorded change at a block number > n, using the ChangeSetBlocks index
// rather than scanning every history table directly.
func AffectedEntitiesAfter(tx Tx, n uint64) ([][]byte, error) {
	cursor, err := tx.CursorDupSort(ChangeSetBlocks)
	if err != nil {
		return nil, err
	}
	defer cursor.Close()

	seen := map[string]struct{}{}
	var out [][]byte
	k, v, err := cursor.Seek(EncodeBlockNumber(n + 1))
	for ; k != nil && err == nil; k, v, err = cursor.Next() {
		if _, dup := seen[string(v)]; !dup {
			seen[string(v)] = struct{}{}
			out = append(out, append([]byte{}, v...))
		}
	}
	sort.Slice(out, func(i, j int) bool { return string(out[i]) < string(out[j]) })
	return out, nil
}
