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

package rpc

import (
	"bytes"
	"context"
	"encoding/json"

	"github.com/lumenhq/lumen/executor"
	"github.com/lumenhq/lumen/internal/lumenerr"
	"github.com/lumenhq/lumen/pipeline"
	"github.com/lumenhq/lumen/primitives/address"
	"github.com/lumenhq/lumen/primitives/block"
	"github.com/lumenhq/lumen/primitives/class"
	"github.com/lumenhq/lumen/primitives/felt"
	"github.com/lumenhq/lumen/primitives/receipt"
	"github.com/lumenhq/lumen/primitives/transaction"
	"github.com/lumenhq/lumen/txpool"
)

// ChainReader is the read surface methods.go needs out of the storage
// engine, satisfied structurally by *provider.Local and *provider.Fork so
// this package never imports package provider directly.
type ChainReader interface {
	LatestHeader(ctx context.Context) (block.Header, error)
	BlockAt(ctx context.Context, n block.Number) (block.Block, bool, error)
	BlockNumberByHash(ctx context.Context, hash block.Hash) (block.Number, bool, error)
	TransactionByHash(ctx context.Context, hash transaction.Hash) (transaction.TxWithHash, block.Number, int, bool, error)
	ReceiptByHash(ctx context.Context, hash transaction.Hash) (receipt.Receipt, block.Number, bool, error)
	ReceiptsForBlock(ctx context.Context, n block.Number, txCount int) ([]receipt.Receipt, error)
	TraceByHash(ctx context.Context, hash transaction.Hash) (receipt.Trace, block.Number, bool, error)
	TracesForBlock(ctx context.Context, n block.Number, txCount int) ([]receipt.Trace, error)
	ClassArtifact(ctx context.Context, hash class.Hash) (class.Class, bool, error)
	ClassHashOfContractAt(ctx context.Context, n block.Number, addr address.ContractAddress) (class.Hash, error)
	StateAt(ctx context.Context, n block.Number) (executor.StateReader, error)
}

// Deps wires methods.go's handlers to the rest of the node: storage,
// mempool, the executor factory driving call/estimate/simulate, and the
// pending-block extension point.
type Deps struct {
	Reader      ChainReader
	ChainID     transaction.ChainID
	Pool        *txpool.Pool
	Factory     executor.Factory
	Pending     PendingBlockProvider
	Tip         *pipeline.TipWatcher // nil on a sequencer node with no sync pipeline
	SpecVersion string
}

// RegisterMethods binds every starknet_* method to d using deps.
func RegisterMethods(d *Dispatcher, deps Deps) {
	d.Register("starknet_chainId", deps.chainID)
	d.Register("starknet_blockNumber", deps.blockNumber)
	d.Register("starknet_blockHashAndNumber", deps.blockHashAndNumber)
	d.Register("starknet_getBlockWithTxHashes", deps.getBlockWithTxHashes)
	d.Register("starknet_getBlockWithTxs", deps.getBlockWithTxs)
	d.Register("starknet_getBlockWithReceipts", deps.getBlockWithReceipts)
	d.Register("starknet_getBlockTransactionCount", deps.getBlockTransactionCount)
	d.Register("starknet_getStateUpdate", deps.getStateUpdate)
	d.Register("starknet_getStorageAt", deps.getStorageAt)
	d.Register("starknet_getNonce", deps.getNonce)
	d.Register("starknet_getClass", deps.getClass)
	d.Register("starknet_getClassHashAt", deps.getClassHashAt)
	d.Register("starknet_getClassAt", deps.getClassAt)
	d.Register("starknet_getTransactionByHash", deps.getTransactionByHash)
	d.Register("starknet_getTransactionByBlockIdAndIndex", deps.getTransactionByBlockIDAndIndex)
	d.Register("starknet_getTransactionReceipt", deps.getTransactionReceipt)
	d.Register("starknet_getTransactionStatus", deps.getTransactionStatus)
	d.Register("starknet_getEvents", deps.getEvents)
	d.Register("starknet_call", deps.call)
	d.Register("starknet_estimateFee", deps.estimateFee)
	d.Register("starknet_estimateMessageFee", deps.estimateMessageFee)
	d.Register("starknet_simulateTransactions", deps.simulateTransactions)
	d.Register("starknet_traceTransaction", deps.traceTransaction)
	d.Register("starknet_traceBlockTransactions", deps.traceBlockTransactions)
	d.Register("starknet_syncing", deps.syncing)
	d.Register("starknet_specVersion", deps.specVersion)
	d.Register("starknet_addInvokeTransaction", deps.addInvokeTransaction)
	d.Register("starknet_addDeclareTransaction", deps.addDeclareTransaction)
	d.Register("starknet_addDeployAccountTransaction", deps.addDeployAccountTransaction)
}

// ---- params decoding -------------------------------------------------

// paramAt reads the index'th positional parameter, or the name'd field of
// an object-shaped params — both are valid per the Starknet JSON-RPC
// convention for "params".
func paramAt(params json.RawMessage, index int, name string) (json.RawMessage, error) {
	trimmed := bytes.TrimSpace(params)
	if len(trimmed) > 0 && trimmed[0] == '[' {
		var arr []json.RawMessage
		if err := json.Unmarshal(trimmed, &arr); err != nil {
			return nil, lumenerr.Wrap(lumenerr.InvalidRequest, "decoding params array", err)
		}
		if index >= len(arr) {
			return nil, lumenerr.New(lumenerr.InvalidRequest, "missing parameter: "+name)
		}
		return arr[index], nil
	}
	var obj map[string]json.RawMessage
	if err := json.Unmarshal(trimmed, &obj); err != nil {
		return nil, lumenerr.Wrap(lumenerr.InvalidRequest, "decoding params object", err)
	}
	v, ok := obj[name]
	if !ok {
		return nil, lumenerr.New(lumenerr.InvalidRequest, "missing parameter: "+name)
	}
	return v, nil
}

func decodeBlockID(params json.RawMessage, index int) (BlockID, error) {
	raw, err := paramAt(params, index, "block_id")
	if err != nil {
		return BlockID{}, err
	}
	var id BlockID
	if err := json.Unmarshal(raw, &id); err != nil {
		return BlockID{}, lumenerr.Wrap(lumenerr.InvalidRequest, "decoding block_id", err)
	}
	return id, nil
}

func decodeFeltParam(params json.RawMessage, index int, name string) (felt.Felt, error) {
	raw, err := paramAt(params, index, name)
	if err != nil {
		return felt.Zero, err
	}
	var f felt.Felt
	if err := json.Unmarshal(raw, &f); err != nil {
		return felt.Zero, lumenerr.Wrap(lumenerr.InvalidRequest, "decoding "+name, err)
	}
	return f, nil
}

func decodeTxHashParam(params json.RawMessage, index int, name string) (transaction.Hash, error) {
	f, err := decodeFeltParam(params, index, name)
	return transaction.Hash{Felt: f}, err
}

// ---- block resolution --------------------------------------------------

func resolveBlockNumber(ctx context.Context, r ChainReader, id BlockID) (block.Number, error) {
	switch {
	case id.Number != nil:
		return block.Number(*id.Number), nil
	case id.Hash != nil:
		n, ok, err := r.BlockNumberByHash(ctx, block.Hash{Felt: *id.Hash})
		if err != nil {
			return 0, err
		}
		if !ok {
			return 0, lumenerr.New(lumenerr.NotFound, "block not found")
		}
		return n, nil
	default: // "latest", "", or an unrecognized tag all resolve to the head
		h, err := r.LatestHeader(ctx)
		return h.Number, err
	}
}

func (d Deps) pendingTxs(ctx context.Context) ([]transaction.TxWithHash, bool) {
	if d.Pending == nil {
		return nil, false
	}
	return d.Pending.PendingTransactions(ctx)
}

func (d Deps) pendingState(ctx context.Context) (executor.StateReader, bool) {
	if d.Pending == nil {
		return nil, false
	}
	return d.Pending.PendingState(ctx)
}

// resolveBlock returns the block an id names, or a synthesized pending
// block (header left zero-valued; pending responses omit
// block_hash/block_number/new_root) when id is the "pending" tag.
func (d Deps) resolveBlock(ctx context.Context, id BlockID) (block.Block, bool, error) {
	if id.IsPending() {
		txs, ok := d.pendingTxs(ctx)
		if !ok {
			return block.Block{}, false, lumenerr.New(lumenerr.NotFound, "no pending block available")
		}
		parent, err := d.Reader.LatestHeader(ctx)
		if err != nil {
			return block.Block{}, false, err
		}
		return block.Block{
			Header: block.Header{Number: parent.Number + 1, ParentHash: parent.Seal()},
			Body:   block.Body{Transactions: txs},
		}, true, nil
	}
	n, err := resolveBlockNumber(ctx, d.Reader, id)
	if err != nil {
		return block.Block{}, false, err
	}
	b, ok, err := d.Reader.BlockAt(ctx, n)
	if err != nil {
		return block.Block{}, false, err
	}
	if !ok {
		return block.Block{}, false, lumenerr.New(lumenerr.NotFound, "block not found")
	}
	return b, false, nil
}

func (d Deps) stateReaderFor(ctx context.Context, id BlockID) (executor.StateReader, block.Number, error) {
	if id.IsPending() {
		st, ok := d.pendingState(ctx)
		if !ok {
			return nil, 0, lumenerr.New(lumenerr.NotFound, "no pending state available")
		}
		h, err := d.Reader.LatestHeader(ctx)
		return st, h.Number + 1, err
	}
	n, err := resolveBlockNumber(ctx, d.Reader, id)
	if err != nil {
		return nil, 0, err
	}
	st, err := d.Reader.StateAt(ctx, n)
	return st, n, err
}

// ---- chain metadata ------------------------------------------------

func (d Deps) chainID(context.Context, json.RawMessage) (any, error) {
	return d.ChainID.Felt.Hex(), nil
}

func (d Deps) specVersion(context.Context, json.RawMessage) (any, error) {
	return d.SpecVersion, nil
}

func (d Deps) blockNumber(ctx context.Context, _ json.RawMessage) (any, error) {
	h, err := d.Reader.LatestHeader(ctx)
	if err != nil {
		return nil, err
	}
	return uint64(h.Number), nil
}

func (d Deps) blockHashAndNumber(ctx context.Context, _ json.RawMessage) (any, error) {
	h, err := d.Reader.LatestHeader(ctx)
	if err != nil {
		return nil, err
	}
	return struct {
		BlockHash   felt.Felt `json:"block_hash"`
		BlockNumber uint64    `json:"block_number"`
	}{h.Seal().Felt, uint64(h.Number)}, nil
}

type syncStatusView struct {
	StartingBlockNum  uint64 `json:"starting_block_num"`
	CurrentBlockNum   uint64 `json:"current_block_num"`
	HighestBlockNum   uint64 `json:"highest_block_num"`
}

func (d Deps) syncing(ctx context.Context, _ json.RawMessage) (any, error) {
	if d.Tip == nil {
		return false, nil
	}
	h, err := d.Reader.LatestHeader(ctx)
	if err != nil {
		return nil, err
	}
	highest := d.Tip.Current()
	if highest <= h.Number {
		return false, nil
	}
	return syncStatusView{CurrentBlockNum: uint64(h.Number), HighestBlockNum: uint64(highest)}, nil
}

// ---- block reads --------------------------------------------------

func txHashes(b block.Block) []felt.Felt {
	out := make([]felt.Felt, len(b.Body.Transactions))
	for i, twh := range b.Body.Transactions {
		out[i] = twh.Hash.Felt
	}
	return out
}

type blockWithTxHashesView struct {
	headerView
	Status       string      `json:"status"`
	Transactions []felt.Felt `json:"transactions"`
}

func (d Deps) getBlockWithTxHashes(ctx context.Context, params json.RawMessage) (any, error) {
	id, err := decodeBlockID(params, 0)
	if err != nil {
		return nil, err
	}
	b, pending, err := d.resolveBlock(ctx, id)
	if err != nil {
		return nil, err
	}
	if pending {
		return map[string]any{"transactions": txHashes(b), "parent_hash": b.Header.ParentHash.Felt}, nil
	}
	return blockWithTxHashesView{toHeaderView(b.Header), "ACCEPTED_ON_L2", txHashes(b)}, nil
}

type blockWithTxsView struct {
	headerView
	Status       string   `json:"status"`
	Transactions []wireTx `json:"transactions"`
}

func wireTxs(b block.Block) []wireTx {
	out := make([]wireTx, len(b.Body.Transactions))
	for i, twh := range b.Body.Transactions {
		out[i] = toWireTx(twh)
	}
	return out
}

func (d Deps) getBlockWithTxs(ctx context.Context, params json.RawMessage) (any, error) {
	id, err := decodeBlockID(params, 0)
	if err != nil {
		return nil, err
	}
	b, pending, err := d.resolveBlock(ctx, id)
	if err != nil {
		return nil, err
	}
	if pending {
		return map[string]any{"transactions": wireTxs(b), "parent_hash": b.Header.ParentHash.Felt}, nil
	}
	return blockWithTxsView{toHeaderView(b.Header), "ACCEPTED_ON_L2", wireTxs(b)}, nil
}

type receiptView struct {
	TransactionHash felt.Felt `json:"transaction_hash"`
	ActualFee       feeView   `json:"actual_fee"`
	FinalityStatus  string    `json:"finality_status"`
	ExecutionStatus string    `json:"execution_status"`
	RevertReason    *string   `json:"revert_reason,omitempty"`
	Events          []eventView `json:"events"`
	Messages        []messageView `json:"messages_sent"`
}

type feeView struct {
	Amount felt.Felt `json:"amount"`
	Unit   string    `json:"unit"`
}

type eventView struct {
	FromAddress felt.Felt   `json:"from_address"`
	Keys        []felt.Felt `json:"keys"`
	Data        []felt.Felt `json:"data"`
}

type messageView struct {
	FromAddress felt.Felt   `json:"from_address"`
	ToAddress   felt.Felt   `json:"to_address"`
	Payload     []felt.Felt `json:"payload"`
}

func toReceiptView(hash felt.Felt, r receipt.Receipt) receiptView {
	events := make([]eventView, len(r.Events))
	for i, e := range r.Events {
		events[i] = eventView{FromAddress: e.FromAddress, Keys: e.Keys, Data: e.Data}
	}
	messages := make([]messageView, len(r.Messages))
	for i, m := range r.Messages {
		messages[i] = messageView{FromAddress: m.FromAddress, ToAddress: m.ToAddress, Payload: m.Payload}
	}
	unit := "WEI"
	if r.ActualFee.Unit == receipt.UnitFri {
		unit = "FRI"
	}
	executionStatus := "SUCCEEDED"
	if r.Failed() {
		executionStatus = "REVERTED"
	}
	return receiptView{
		TransactionHash: hash,
		ActualFee:       feeView{Amount: r.ActualFee.Amount, Unit: unit},
		FinalityStatus:  "ACCEPTED_ON_L2",
		ExecutionStatus: executionStatus,
		RevertReason:    r.RevertReason,
		Events:          events,
		Messages:        messages,
	}
}

func (d Deps) getBlockWithReceipts(ctx context.Context, params json.RawMessage) (any, error) {
	id, err := decodeBlockID(params, 0)
	if err != nil {
		return nil, err
	}
	b, pending, err := d.resolveBlock(ctx, id)
	if err != nil {
		return nil, err
	}
	if pending {
		return nil, lumenerr.New(lumenerr.Unsupported, "receipts are not available for the pending block")
	}
	receipts, err := d.Reader.ReceiptsForBlock(ctx, b.Header.Number, len(b.Body.Transactions))
	if err != nil {
		return nil, err
	}
	views := make([]receiptView, len(receipts))
	for i, r := range receipts {
		views[i] = toReceiptView(b.Body.Transactions[i].Hash.Felt, r)
	}
	return struct {
		headerView
		Status   string        `json:"status"`
		Receipts []receiptView `json:"transactions"`
	}{toHeaderView(b.Header), "ACCEPTED_ON_L2", views}, nil
}

func (d Deps) getBlockTransactionCount(ctx context.Context, params json.RawMessage) (any, error) {
	id, err := decodeBlockID(params, 0)
	if err != nil {
		return nil, err
	}
	b, _, err := d.resolveBlock(ctx, id)
	if err != nil {
		return nil, err
	}
	return len(b.Body.Transactions), nil
}

// getStateUpdate reports only the block's committed state root, not a
// per-contract diff: the storage engine folds state diffs directly into the
// plain/history tables and never persists the raw StateUpdates blob a block
// produced, so there is nothing to reconstruct a full nonces/storage_diffs/
// deployed_contracts breakdown from after the fact.
func (d Deps) getStateUpdate(ctx context.Context, params json.RawMessage) (any, error) {
	id, err := decodeBlockID(params, 0)
	if err != nil {
		return nil, err
	}
	b, pending, err := d.resolveBlock(ctx, id)
	if err != nil {
		return nil, err
	}
	resp := map[string]any{
		"new_root":    b.Header.StateRoot,
		"state_diff": map[string]any{
			"storage_diffs":              []any{},
			"deprecated_declared_classes": []any{},
			"declared_classes":           []any{},
			"deployed_contracts":        []any{},
			"replaced_classes":           []any{},
			"nonces":                     []any{},
		},
	}
	if !pending {
		resp["block_hash"] = b.Header.Seal().Felt
		resp["old_root"] = felt.Zero
	} else {
		resp["old_root"] = felt.Zero
	}
	return resp, nil
}

func (d Deps) getStorageAt(ctx context.Context, params json.RawMessage) (any, error) {
	addrFelt, err := decodeFeltParam(params, 0, "contract_address")
	if err != nil {
		return nil, err
	}
	keyFelt, err := decodeFeltParam(params, 1, "key")
	if err != nil {
		return nil, err
	}
	id, err := decodeBlockID(params, 2)
	if err != nil {
		return nil, err
	}
	st, _, err := d.stateReaderFor(ctx, id)
	if err != nil {
		return nil, err
	}
	v, err := st.Storage(address.FromFelt(addrFelt), address.KeyFromFelt(keyFelt))
	if err != nil {
		return nil, err
	}
	return v.Felt, nil
}

func (d Deps) getNonce(ctx context.Context, params json.RawMessage) (any, error) {
	id, err := decodeBlockID(params, 0)
	if err != nil {
		return nil, err
	}
	addrFelt, err := decodeFeltParam(params, 1, "contract_address")
	if err != nil {
		return nil, err
	}
	st, _, err := d.stateReaderFor(ctx, id)
	if err != nil {
		return nil, err
	}
	n, err := st.Nonce(address.FromFelt(addrFelt))
	if err != nil {
		return nil, err
	}
	return n.Felt, nil
}

func classView(c class.Class) any {
	switch c.Kind {
	case class.KindSierra:
		return map[string]any{
			"sierra_program":         c.Sierra.Program,
			"contract_class_version": c.Sierra.ContractClassVersion,
			"entry_points_by_type":   entryPointsView(c.Sierra.EntryPointsByType),
			"abi":                    string(c.Sierra.ABI),
		}
	default:
		return map[string]any{
			"program":              c.Legacy.Bytecode,
			"entry_points_by_type": entryPointsView(c.Legacy.EntryPoints),
			"abi":                  string(c.Legacy.ABI),
		}
	}
}

func entryPointsView(m map[string][]class.EntryPoint) map[string]any {
	out := make(map[string]any, len(m))
	for k, eps := range m {
		views := make([]map[string]any, len(eps))
		for i, ep := range eps {
			views[i] = map[string]any{"selector": ep.Selector, "offset": ep.Offset}
		}
		out[k] = views
	}
	return out
}

func (d Deps) getClass(ctx context.Context, params json.RawMessage) (any, error) {
	if _, err := decodeBlockID(params, 0); err != nil {
		return nil, err
	}
	hashFelt, err := decodeFeltParam(params, 1, "class_hash")
	if err != nil {
		return nil, err
	}
	c, ok, err := d.Reader.ClassArtifact(ctx, class.Hash{Felt: hashFelt})
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, lumenerr.New(lumenerr.NotFound, "class not found")
	}
	return classView(c), nil
}

func (d Deps) getClassHashAt(ctx context.Context, params json.RawMessage) (any, error) {
	id, err := decodeBlockID(params, 0)
	if err != nil {
		return nil, err
	}
	addrFelt, err := decodeFeltParam(params, 1, "contract_address")
	if err != nil {
		return nil, err
	}
	n, err := resolveBlockNumber(ctx, d.Reader, id)
	if err != nil {
		return nil, err
	}
	ch, err := d.Reader.ClassHashOfContractAt(ctx, n, address.FromFelt(addrFelt))
	if err != nil {
		return nil, err
	}
	return ch.Felt, nil
}

func (d Deps) getClassAt(ctx context.Context, params json.RawMessage) (any, error) {
	id, err := decodeBlockID(params, 0)
	if err != nil {
		return nil, err
	}
	addrFelt, err := decodeFeltParam(params, 1, "contract_address")
	if err != nil {
		return nil, err
	}
	n, err := resolveBlockNumber(ctx, d.Reader, id)
	if err != nil {
		return nil, err
	}
	ch, err := d.Reader.ClassHashOfContractAt(ctx, n, address.FromFelt(addrFelt))
	if err != nil {
		return nil, err
	}
	c, ok, err := d.Reader.ClassArtifact(ctx, ch)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, lumenerr.New(lumenerr.NotFound, "class not found")
	}
	return classView(c), nil
}

// ---- transaction reads --------------------------------------------

func (d Deps) getTransactionByHash(ctx context.Context, params json.RawMessage) (any, error) {
	hash, err := decodeTxHashParam(params, 0, "transaction_hash")
	if err != nil {
		return nil, err
	}
	twh, _, _, ok, err := d.Reader.TransactionByHash(ctx, hash)
	if err != nil {
		return nil, err
	}
	if !ok {
		if d.Pool != nil {
			if pooled, ok := d.Pool.Get(hash); ok {
				return toWireTx(pooled), nil
			}
		}
		return nil, lumenerr.New(lumenerr.NotFound, "transaction not found")
	}
	return toWireTx(twh), nil
}

func (d Deps) getTransactionByBlockIDAndIndex(ctx context.Context, params json.RawMessage) (any, error) {
	id, err := decodeBlockID(params, 0)
	if err != nil {
		return nil, err
	}
	raw, err := paramAt(params, 1, "index")
	if err != nil {
		return nil, err
	}
	var index int
	if err := json.Unmarshal(raw, &index); err != nil {
		return nil, lumenerr.Wrap(lumenerr.InvalidRequest, "decoding index", err)
	}
	b, _, err := d.resolveBlock(ctx, id)
	if err != nil {
		return nil, err
	}
	if index < 0 || index >= len(b.Body.Transactions) {
		return nil, lumenerr.New(lumenerr.InvalidRequest, "transaction index out of range")
	}
	return toWireTx(b.Body.Transactions[index]), nil
}

func (d Deps) getTransactionReceipt(ctx context.Context, params json.RawMessage) (any, error) {
	hash, err := decodeTxHashParam(params, 0, "transaction_hash")
	if err != nil {
		return nil, err
	}
	r, _, ok, err := d.Reader.ReceiptByHash(ctx, hash)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, lumenerr.New(lumenerr.NotFound, "transaction not found")
	}
	return toReceiptView(hash.Felt, r), nil
}

func (d Deps) getTransactionStatus(ctx context.Context, params json.RawMessage) (any, error) {
	hash, err := decodeTxHashParam(params, 0, "transaction_hash")
	if err != nil {
		return nil, err
	}
	r, _, ok, err := d.Reader.ReceiptByHash(ctx, hash)
	if err != nil {
		return nil, err
	}
	if !ok {
		if d.Pool != nil {
			if _, ok := d.Pool.Get(hash); ok {
				return map[string]string{"finality_status": "RECEIVED"}, nil
			}
		}
		return nil, lumenerr.New(lumenerr.NotFound, "transaction not found")
	}
	executionStatus := "SUCCEEDED"
	if r.Failed() {
		executionStatus = "REVERTED"
	}
	return map[string]string{"finality_status": "ACCEPTED_ON_L2", "execution_status": executionStatus}, nil
}

// ---- events ---------------------------------------------------------

type eventsFilter struct {
	FromBlock  BlockID     `json:"from_block"`
	ToBlock    BlockID     `json:"to_block"`
	Address    *felt.Felt  `json:"address"`
	Keys       [][]felt.Felt `json:"keys"`
	ChunkSize  int         `json:"chunk_size"`
	ContinuationToken string `json:"continuation_token"`
}

func (d Deps) getEvents(ctx context.Context, params json.RawMessage) (any, error) {
	raw, err := paramAt(params, 0, "filter")
	if err != nil {
		return nil, err
	}
	var f eventsFilter
	if err := json.Unmarshal(raw, &f); err != nil {
		return nil, lumenerr.Wrap(lumenerr.InvalidRequest, "decoding events filter", err)
	}
	if f.ChunkSize <= 0 {
		f.ChunkSize = 1000
	}

	from, err := resolveBlockNumber(ctx, d.Reader, f.FromBlock)
	if err != nil {
		return nil, err
	}
	to, err := resolveBlockNumber(ctx, d.Reader, f.ToBlock)
	if err != nil {
		return nil, err
	}

	cursor := ContinuationToken{BlockNumber: from}
	if f.ContinuationToken != "" {
		cursor, err = ParseContinuationToken(f.ContinuationToken)
		if err != nil {
			return nil, err
		}
	}

	type matched struct {
		BlockHash       felt.Felt `json:"block_hash"`
		BlockNumber     uint64    `json:"block_number"`
		TransactionHash felt.Felt `json:"transaction_hash"`
		eventView
	}
	var out []matched

	for n := cursor.BlockNumber; n <= to && len(out) < f.ChunkSize; n++ {
		b, ok, err := d.Reader.BlockAt(ctx, block.Number(n))
		if err != nil {
			return nil, err
		}
		if !ok {
			continue
		}
		receipts, err := d.Reader.ReceiptsForBlock(ctx, block.Number(n), len(b.Body.Transactions))
		if err != nil {
			return nil, err
		}
		for txIdx, r := range receipts {
			if n == cursor.BlockNumber && uint64(txIdx) < cursor.TxIndex {
				continue
			}
			for evIdx, ev := range r.Events {
				if n == cursor.BlockNumber && uint64(txIdx) == cursor.TxIndex && uint64(evIdx) < cursor.EventIndex {
					continue
				}
				if f.Address != nil && !ev.FromAddress.Equal(*f.Address) {
					continue
				}
				if !keysMatch(f.Keys, ev.Keys) {
					continue
				}
				out = append(out, matched{
					BlockHash:       b.Header.Seal().Felt,
					BlockNumber:     uint64(n),
					TransactionHash: b.Body.Transactions[txIdx].Hash.Felt,
					eventView:       eventView{FromAddress: ev.FromAddress, Keys: ev.Keys, Data: ev.Data},
				})
				if len(out) >= f.ChunkSize {
					next := ContinuationToken{BlockNumber: n, TxIndex: uint64(txIdx), EventIndex: uint64(evIdx) + 1}
					return map[string]any{"events": out, "continuation_token": next.Encode()}, nil
				}
			}
		}
	}
	return map[string]any{"events": out}, nil
}

// keysMatch implements the per-position OR-of-alternatives / AND-across-
// positions rule the Starknet RPC spec defines for the "keys" filter: an
// empty outer list matches anything, and a missing key past the event's own
// length is only a mismatch if that position listed alternatives.
func keysMatch(filter [][]felt.Felt, keys []felt.Felt) bool {
	for i, alts := range filter {
		if len(alts) == 0 {
			continue
		}
		if i >= len(keys) {
			return false
		}
		found := false
		for _, alt := range alts {
			if keys[i].Equal(alt) {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

// ---- execution (call / estimate / simulate / trace) -----------------

// call has no supported implementation: executing an arbitrary read-only
// entry point requires invoking the Cairo VM directly, and the executor
// boundary this node defines (executor.Executor) only runs whole
// transactions, never a bare entry-point call. A VM integration providing
// that capability would add it here.
func (d Deps) call(context.Context, json.RawMessage) (any, error) {
	return nil, lumenerr.New(lumenerr.Unsupported, "starknet_call requires a Cairo VM entry-point call, not wired")
}

type feeEstimateView struct {
	GasConsumed     felt.Felt `json:"gas_consumed"`
	GasPrice        felt.Felt `json:"gas_price"`
	DataGasConsumed felt.Felt `json:"data_gas_consumed"`
	DataGasPrice    felt.Felt `json:"data_gas_price"`
	OverallFee      felt.Felt `json:"overall_fee"`
	Unit            string    `json:"unit"`
}

func feeEstimateFrom(r receipt.Receipt) feeEstimateView {
	unit := "WEI"
	if r.ActualFee.Unit == receipt.UnitFri {
		unit = "FRI"
	}
	return feeEstimateView{
		GasConsumed: felt.FromUint64(r.Resources.Steps),
		OverallFee:  r.ActualFee.Amount,
		Unit:        unit,
	}
}

// executeForEstimate decodes and runs a batch of candidate transactions
// against the Factory bound to the requested block, for estimate_fee and
// simulate_transactions alike. The transactions are never admitted to the
// pool or committed; TakeOutput's diff is discarded once read.
func (d Deps) executeForEstimate(ctx context.Context, rawTxs []json.RawMessage, id BlockID) ([]executor.TxResult, error) {
	if d.Factory == nil {
		return nil, lumenerr.New(lumenerr.Unsupported, "no executor factory configured")
	}
	st, n, err := d.stateReaderFor(ctx, id)
	if err != nil {
		return nil, err
	}
	h, err := d.Reader.LatestHeader(ctx)
	if err != nil {
		return nil, err
	}
	env := executor.BlockEnv{Number: n, Timestamp: h.Timestamp, SequencerAddress: h.SequencerAddress, L1GasPrices: h.L1GasPrices, L2GasPrices: h.L2GasPrices}

	txs := make([]transaction.TxWithHash, len(rawTxs))
	for i, raw := range rawTxs {
		var probe struct {
			Type string `json:"type"`
		}
		if err := json.Unmarshal(raw, &probe); err != nil {
			return nil, lumenerr.Wrap(lumenerr.InvalidRequest, "decoding transaction type", err)
		}
		kind, err := kindFromWireType(probe.Type)
		if err != nil {
			return nil, err
		}
		tx, err := decodeWireTx(kind, raw)
		if err != nil {
			return nil, err
		}
		txs[i] = transaction.TxWithHash{Transaction: tx, Hash: tx.ComputeHash(d.ChainID)}
	}

	ex := d.Factory.NewExecutor(st, env)
	if _, err := ex.ExecuteTransactions(txs); err != nil {
		return nil, lumenerr.Wrap(lumenerr.Execution, "executing transaction batch", err)
	}
	return ex.Transactions(), nil
}

func kindFromWireType(t string) (transaction.Kind, error) {
	switch t {
	case "INVOKE":
		return transaction.KindInvoke, nil
	case "DECLARE":
		return transaction.KindDeclare, nil
	case "DEPLOY_ACCOUNT":
		return transaction.KindDeployAccount, nil
	case "L1_HANDLER":
		return transaction.KindL1Handler, nil
	default:
		return 0, lumenerr.New(lumenerr.InvalidRequest, "unknown transaction type: "+t)
	}
}

func (d Deps) estimateFee(ctx context.Context, params json.RawMessage) (any, error) {
	raw, err := paramAt(params, 0, "request")
	if err != nil {
		return nil, err
	}
	var rawTxs []json.RawMessage
	if err := json.Unmarshal(raw, &rawTxs); err != nil {
		return nil, lumenerr.Wrap(lumenerr.InvalidRequest, "decoding request batch", err)
	}
	id, err := decodeBlockID(params, 1)
	if err != nil {
		return nil, err
	}
	results, err := d.executeForEstimate(ctx, rawTxs, id)
	if err != nil {
		return nil, err
	}
	out := make([]feeEstimateView, len(results))
	for i, r := range results {
		if r.Result.Err != nil {
			return nil, lumenerr.Wrap(lumenerr.Execution, "transaction reverted during estimation", r.Result.Err)
		}
		out[i] = feeEstimateFrom(*r.Result.Receipt)
	}
	return out, nil
}

func (d Deps) estimateMessageFee(ctx context.Context, params json.RawMessage) (any, error) {
	fromAddr, err := decodeFeltParam(params, 0, "from_address")
	if err != nil {
		return nil, err
	}
	toAddr, err := decodeFeltParam(params, 0, "to_address")
	if err != nil {
		return nil, err
	}
	selector, err := decodeFeltParam(params, 0, "entry_point_selector")
	if err != nil {
		return nil, err
	}
	raw, err := paramAt(params, 0, "payload")
	if err != nil {
		return nil, err
	}
	var payload []felt.Felt
	if err := json.Unmarshal(raw, &payload); err != nil {
		return nil, lumenerr.Wrap(lumenerr.InvalidRequest, "decoding payload", err)
	}
	id, err := decodeBlockID(params, 1)
	if err != nil {
		return nil, err
	}

	tx := transaction.Transaction{
		Kind:      transaction.KindL1Handler,
		Version:   transaction.V1,
		L1Handler: &transaction.L1HandlerPayload{EntryPointSelector: selector, CallData: payload, FromAddress: fromAddr},
	}
	_ = toAddr // not folded into the hash; the original entry point's contract is toAddr, conveyed via the call itself

	st, n, err := d.stateReaderFor(ctx, id)
	if err != nil {
		return nil, err
	}
	if d.Factory == nil {
		return nil, lumenerr.New(lumenerr.Unsupported, "no executor factory configured")
	}
	h, err := d.Reader.LatestHeader(ctx)
	if err != nil {
		return nil, err
	}
	env := executor.BlockEnv{Number: n, Timestamp: h.Timestamp, SequencerAddress: h.SequencerAddress}
	twh := transaction.TxWithHash{Transaction: tx, Hash: tx.ComputeHash(d.ChainID)}
	ex := d.Factory.NewExecutor(st, env)
	if _, err := ex.ExecuteTransactions([]transaction.TxWithHash{twh}); err != nil {
		return nil, lumenerr.Wrap(lumenerr.Execution, "executing L1 handler", err)
	}
	results := ex.Transactions()
	if len(results) == 0 || results[0].Result.Err != nil {
		return nil, lumenerr.New(lumenerr.Execution, "message execution failed")
	}
	return feeEstimateFrom(*results[0].Result.Receipt), nil
}

func (d Deps) simulateTransactions(ctx context.Context, params json.RawMessage) (any, error) {
	id, err := decodeBlockID(params, 0)
	if err != nil {
		return nil, err
	}
	raw, err := paramAt(params, 1, "transactions")
	if err != nil {
		return nil, err
	}
	var rawTxs []json.RawMessage
	if err := json.Unmarshal(raw, &rawTxs); err != nil {
		return nil, lumenerr.Wrap(lumenerr.InvalidRequest, "decoding transactions", err)
	}
	results, err := d.executeForEstimate(ctx, rawTxs, id)
	if err != nil {
		return nil, err
	}
	type simulated struct {
		TransactionTrace map[string]any  `json:"transaction_trace"`
		FeeEstimation    feeEstimateView `json:"fee_estimation"`
	}
	out := make([]simulated, len(results))
	for i, r := range results {
		trace := map[string]any{"execute_invocation": nil}
		var fee feeEstimateView
		if r.Result.Err == nil {
			fee = feeEstimateFrom(*r.Result.Receipt)
		}
		out[i] = simulated{TransactionTrace: trace, FeeEstimation: fee}
	}
	return out, nil
}

// traceTransaction and traceBlockTransactions read the trace stored
// alongside the receipt at execution time. There is no recorded call-tree
// (the Cairo VM that would produce one is out of scope), so these never
// report function_invocations, only the resources/events/messages a full
// trace would also carry.
func traceView(t receipt.Trace) map[string]any {
	view := map[string]any{
		"events":    t.Events,
		"messages":  t.Messages,
		"resources": t.Resources,
	}
	if t.RevertReason != nil {
		return map[string]any{"revert_reason": *t.RevertReason, "revert_invocation": view}
	}
	return map[string]any{"execute_invocation": view}
}

func (d Deps) traceTransaction(ctx context.Context, params json.RawMessage) (any, error) {
	hash, err := decodeTxHashParam(params, 0, "transaction_hash")
	if err != nil {
		return nil, err
	}
	t, _, ok, err := d.Reader.TraceByHash(ctx, hash)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, lumenerr.New(lumenerr.NotFound, "transaction not found")
	}
	return traceView(t), nil
}

func (d Deps) traceBlockTransactions(ctx context.Context, params json.RawMessage) (any, error) {
	id, err := decodeBlockID(params, 0)
	if err != nil {
		return nil, err
	}
	b, _, err := d.resolveBlock(ctx, id)
	if err != nil {
		return nil, err
	}
	traces, err := d.Reader.TracesForBlock(ctx, b.Header.Number, len(b.Body.Transactions))
	if err != nil {
		return nil, err
	}
	out := make([]map[string]any, len(traces))
	for i, t := range traces {
		out[i] = map[string]any{
			"transaction_hash": b.Body.Transactions[i].Hash.Felt,
			"trace_root":       traceView(t),
		}
	}
	return out, nil
}

// ---- writes ---------------------------------------------------------

type addTxResponse struct {
	TransactionHash felt.Felt `json:"transaction_hash"`
}

func (d Deps) submit(ctx context.Context, kind transaction.Kind, raw json.RawMessage) (any, error) {
	tx, err := decodeWireTx(kind, raw)
	if err != nil {
		return nil, err
	}
	if err := tx.Validate(); err != nil {
		return nil, lumenerr.Wrap(lumenerr.InvalidRequest, "validating transaction", err)
	}
	twh := transaction.TxWithHash{Transaction: tx, Hash: tx.ComputeHash(d.ChainID)}
	outcome, err := d.Pool.AddTransaction(ctx, twh)
	if err != nil {
		return nil, lumenerr.Wrap(lumenerr.InvalidRequest, "rejected by pool", err)
	}
	_ = outcome
	resp := addTxResponse{TransactionHash: twh.Hash.Felt}
	if kind == transaction.KindDeclare {
		return struct {
			addTxResponse
			ClassHash felt.Felt `json:"class_hash"`
		}{resp, tx.Declare.Class.ComputeHash().Felt}, nil
	}
	if kind == transaction.KindDeployAccount {
		return struct {
			addTxResponse
			ContractAddress felt.Felt `json:"contract_address"`
		}{resp, tx.Sender.Felt}, nil
	}
	return resp, nil
}

func (d Deps) addInvokeTransaction(ctx context.Context, params json.RawMessage) (any, error) {
	raw, err := paramAt(params, 0, "invoke_transaction")
	if err != nil {
		return nil, err
	}
	return d.submit(ctx, transaction.KindInvoke, raw)
}

func (d Deps) addDeclareTransaction(ctx context.Context, params json.RawMessage) (any, error) {
	raw, err := paramAt(params, 0, "declare_transaction")
	if err != nil {
		return nil, err
	}
	return d.submit(ctx, transaction.KindDeclare, raw)
}

func (d Deps) addDeployAccountTransaction(ctx context.Context, params json.RawMessage) (any, error) {
	raw, err := paramAt(params, 0, "deploy_account_transaction")
	if err != nil {
		return nil, err
	}
	return d.submit(ctx, transaction.KindDeployAccount, raw)
}
