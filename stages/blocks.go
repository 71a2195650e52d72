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

package stages

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/lumenhq/lumen/internal/lumenlog"
	"github.com/lumenhq/lumen/kv"
	"github.com/lumenhq/lumen/primitives/block"
	"github.com/lumenhq/lumen/primitives/class"
	"github.com/lumenhq/lumen/primitives/receipt"
	"github.com/lumenhq/lumen/primitives/state"
)

// FetchedBlock bundles one remote block with its state update and receipts,
// the shape the Blocks stage writes through the provider.
type FetchedBlock struct {
	Block       block.Block
	StateUpdate *state.StateUpdates
	Classes     map[class.Hash]class.Class
	Receipts    []receipt.Receipt
}

// BlockWriter is the subset of kv.Store the Blocks stage needs; *kv.Store
// satisfies it directly.
type BlockWriter interface {
	InsertBlockWithStatesAndReceipts(ctx context.Context, b block.Block, su kv.StateUpdatesWithClasses, receipts []receipt.Receipt, traces []receipt.Trace) error
	UnwindTo(ctx context.Context, n block.Number) error
}

// Blocks is the sync pipeline's first stage: it downloads
// block+state-update pairs from the feeder in bounded batches and writes
// them through the provider.
type Blocks struct {
	writer     BlockWriter
	downloader *BatchDownloader[block.Number, FetchedBlock]
}

var blocksLog = lumenlog.Named("stage_blocks")

func NewBlocks(writer BlockWriter, source Downloader[block.Number, FetchedBlock], concurrency int) *Blocks {
	return &Blocks{writer: writer, downloader: NewBatchDownloader(source, concurrency)}
}

func (s *Blocks) ID() string { return "Blocks" }

func (s *Blocks) Execute(ctx context.Context, input ExecutionInput) (ExecutionOutput, error) {
	keys := sortedRange(input.From(), input.To())
	fetched, err := s.downloader.Download(ctx, keys)
	if err != nil {
		return ExecutionOutput{}, fmt.Errorf("stage blocks: download [%d,%d]: %w", input.From(), input.To(), err)
	}

	for i, fb := range fetched {
		su := kv.StateUpdatesWithClasses{Diff: fb.StateUpdate, Classes: fb.Classes}
		// Sync-replayed blocks carry receipts from the feeder but no
		// execution trace; derive the root-level fields the receipt already
		// has rather than storing a trace-less row.
		traces := make([]receipt.Trace, len(fb.Receipts))
		for j, r := range fb.Receipts {
			traces[j] = receipt.FromReceipt(r)
		}
		if err := s.writer.InsertBlockWithStatesAndReceipts(ctx, fb.Block, su, fb.Receipts, traces); err != nil {
			return ExecutionOutput{}, fmt.Errorf("stage blocks: insert block %d: %w", keys[i], err)
		}
		blocksLog.Debug("inserted block", zap.Uint64("number", uint64(keys[i])))
	}
	return ExecutionOutput{LastBlockProcessed: input.To()}, nil
}

func (s *Blocks) Unwind(ctx context.Context, target block.Number) error {
	return s.writer.UnwindTo(ctx, target)
}
