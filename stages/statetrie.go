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

	"github.com/lumenhq/lumen/primitives/block"
	"github.com/lumenhq/lumen/primitives/class"
	"github.com/lumenhq/lumen/primitives/state"
	"github.com/lumenhq/lumen/trie"
)

// StateUpdateForTrie is one block's worth of input the StateTrie stage
// needs to recompute and verify the header's committed state_root.
type StateUpdateForTrie struct {
	Header          block.Header
	StateUpdate     *state.StateUpdates
	DeclaredClasses map[class.Hash]class.CompiledHash
}

// StateTrie is the sync pipeline's third stage: for each
// block in range it feeds the stored state update to the contracts/classes
// tries, recomputes state_root, and compares it against the header's
// state_root. A mismatch fails the stage fatally, backed by trie.Tries.
type StateTrie struct {
	tries  *trie.Tries
	base   trie.BaseReader
	source Downloader[block.Number, StateUpdateForTrie]
}

func NewStateTrie(tries *trie.Tries, base trie.BaseReader, source Downloader[block.Number, StateUpdateForTrie]) *StateTrie {
	return &StateTrie{tries: tries, base: base, source: source}
}

func (s *StateTrie) ID() string { return "StateTrie" }

// Execute processes blocks strictly in order: trie roots accumulate across
// blocks, so a later block's correctness depends on every earlier one
// having been folded in first. It stops at the first mismatch rather than
// batching ahead, since nothing past a bad block can be trusted.
func (s *StateTrie) Execute(ctx context.Context, input ExecutionInput) (ExecutionOutput, error) {
	for n := input.From(); n <= input.To(); n++ {
		upd, err := s.source.Download(ctx, n)
		if err != nil {
			return ExecutionOutput{}, fmt.Errorf("stage state_trie: fetch state update %d: %w", n, err)
		}

		contractsRoot, err := s.tries.InsertContractUpdates(upd.StateUpdate, s.base)
		if err != nil {
			return ExecutionOutput{}, fmt.Errorf("stage state_trie: insert contract updates at %d: %w", n, err)
		}
		classesRoot, err := s.tries.InsertDeclaredClasses(upd.DeclaredClasses)
		if err != nil {
			return ExecutionOutput{}, fmt.Errorf("stage state_trie: insert declared classes at %d: %w", n, err)
		}

		computed := trie.StateRoot(contractsRoot, classesRoot)
		if !computed.Equal(upd.Header.StateRoot) {
			return ExecutionOutput{}, fmt.Errorf("stage state_trie: state root mismatch at block %d: computed %s, header %s", n, computed, upd.Header.StateRoot)
		}
	}
	return ExecutionOutput{LastBlockProcessed: input.To()}, nil
}

// Unwind is a no-op: trie.Tries keeps only the current live leaf set, not a
// per-block history, so there is nothing to truncate here. The pipeline's
// Blocks.Unwind already drops the state diffs for blocks above target; the
// next StateTrie.Execute call naturally only re-derives roots from what
// remains.
func (s *StateTrie) Unwind(context.Context, block.Number) error { return nil }
