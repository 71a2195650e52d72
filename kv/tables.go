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

// Package kv is the page-based ordered-KV storage engine:
// static table name constants, a Simple/DupSort table-kind distinction, and
// cursor-based access.
package kv

// DBSchemaVersion tracks the on-disk layout. Bump Minor for additive,
// backward-compatible changes (new Versioned variant appended); bump Major
// only for a break that requires a migration tool, which this engine does
// not ship (old data must stay readable forever).
var DBSchemaVersion = struct{ Major, Minor, Patch uint32 }{Major: 1, Minor: 0, Patch: 0}

// TableKind distinguishes unique-key tables from duplicate-sort
// ("multi-value") tables
type TableKind uint8

const (
	Simple TableKind = iota
	DupSort
)

// TableSchema describes one logical table: its name and kind. The (Key,
// Value) codec pair for each table lives beside its reader/writer in the
// owning package (historical.go, versioned.go), not here — this file only
// fixes the static namespace.
type TableSchema struct {
	Name string
	Kind TableKind
}

// Headers: BlockNumber -> Header (Versioned, see versioned.go).
const Headers = "Header"

// HeaderCanonical: BlockNumber -> BlockHash.
const HeaderCanonical = "CanonicalHeader"

// HeaderNumber: BlockHash -> BlockNumber.
const HeaderNumber = "HeaderNumber"

// BlockBody: BlockNumber -> (first_tx_index, tx_count).
const BlockBody = "BlockBody"

// BlockTransaction: TxNumber -> Tx (Versioned).
const BlockTransaction = "BlockTransaction"

// TxLookup: TxHash -> TxNumber.
const TxLookup = "BlockTransactionLookup"

// Receipts: TxNumber -> Receipt (Versioned).
const Receipts = "Receipt"

// TraceOutputs: TxNumber -> receipt.Trace (Versioned).
const TraceOutputs = "TraceOutput"

// PlainNonce: ContractAddress -> Nonce (latest).
const PlainNonce = "PlainNonce"

// HistoryNonce: dup-sort (ContractAddress, BlockNumber) -> Nonce-before-block.
const HistoryNonce = "HistoryNonce"

// PlainStorage: (ContractAddress, StorageKey) -> StorageValue (latest).
const PlainStorage = "PlainStorage"

// HistoryStorage: dup-sort (ContractAddress+StorageKey, BlockNumber) -> value-before-block.
const HistoryStorage = "HistoryStorage"

// PlainClassHashOfContract: ContractAddress -> ClassHash (latest).
const PlainClassHashOfContract = "PlainClassHashOfContract"

// HistoryClassHashOfContract: dup-sort (ContractAddress, BlockNumber) -> hash-before-block.
const HistoryClassHashOfContract = "HistoryClassHashOfContract"

// CompiledClassHashes: ClassHash -> CompiledClassHash.
const CompiledClassHashes = "CompiledClassHash"

// ClassArtifacts: ClassHash -> Class (Versioned).
const ClassArtifacts = "ClassArtifact"

// TrieContractsNodes: (root_marker=BlockNumber, node_path) -> node bytes.
const TrieContractsNodes = "TrieContractsNode"

// TrieClassesNodes: (root_marker=BlockNumber, node_path) -> node bytes.
const TrieClassesNodes = "TrieClassesNode"

// SyncStageProgress: StageId -> BlockNumber.
const SyncStageProgress = "SyncStage"

// ChangeSetBlocks: dup-sort BlockNumber -> entity keys changed in that block
// (auxiliary index supporting the historical overlay and unwind).
const ChangeSetBlocks = "ChangeSetBlocks"

// Schema is the full table catalogue, in declaration order (blocks, then
// txs/receipts, then state, then trie, then sync bookkeeping).
var Schema = []TableSchema{
	{Name: Headers, Kind: Simple},
	{Name: HeaderCanonical, Kind: Simple},
	{Name: HeaderNumber, Kind: Simple},
	{Name: BlockBody, Kind: Simple},
	{Name: BlockTransaction, Kind: Simple},
	{Name: TxLookup, Kind: Simple},
	{Name: Receipts, Kind: Simple},
	{Name: TraceOutputs, Kind: Simple},
	{Name: PlainNonce, Kind: Simple},
	{Name: HistoryNonce, Kind: DupSort},
	{Name: PlainStorage, Kind: Simple},
	{Name: HistoryStorage, Kind: DupSort},
	{Name: PlainClassHashOfContract, Kind: Simple},
	{Name: HistoryClassHashOfContract, Kind: DupSort},
	{Name: CompiledClassHashes, Kind: Simple},
	{Name: ClassArtifacts, Kind: Simple},
	{Name: TrieContractsNodes, Kind: Simple},
	{Name: TrieClassesNodes, Kind: Simple},
	{Name: SyncStageProgress, Kind: Simple},
	{Name: ChangeSetBlocks, Kind: DupSort},
}
