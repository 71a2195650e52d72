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

package provider

import (
	"context"
	"sync"

	"github.com/lumenhq/lumen/executor"
	"github.com/lumenhq/lumen/kv"
	"github.com/lumenhq/lumen/primitives/block"
	"github.com/lumenhq/lumen/primitives/class"
	"github.com/lumenhq/lumen/primitives/receipt"
	"github.com/lumenhq/lumen/primitives/state"
)

// RemoteBlock is what a RemoteReader returns for one block: enough to
// replay it through InsertBlockWithStatesAndReceipts exactly as the sync
// pipeline's Blocks stage would.
type RemoteBlock struct {
	Block       block.Block
	StateUpdate *state.StateUpdates
	Classes     map[class.Hash]class.Class
	Receipts    []receipt.Receipt
}

// RemoteReader is the capability a Fork provider needs from a remote
// Starknet node; external.FeederClient (or a raw JSON-RPC client) satisfies
// it.
type RemoteReader interface {
	BlockByNumber(ctx context.Context, n block.Number) (RemoteBlock, error)
}

// Fork is the forked provider from: it wraps a Local store and
// a remote node client, parameterized by fork_point. Reads at or below
// fork_point serve locally if the block was already imported (at fork init,
// or memoized by an earlier read) and otherwise fetch-and-store from the
// remote node. Reads above fork_point never consult the remote — that range
// is this node's own chain, not the forked network's.
type Fork struct {
	*Local

	store     *kv.Store
	remote    RemoteReader
	forkPoint block.Number

	// fetchMu serializes ensureLocal so two readers racing on the same
	// unmemoized block issue exactly one remote call, matching the
	// "memoize on first read, remote call count unchanged afterward"
	// property.
	fetchMu sync.Mutex
}

// NewFork wraps local storage with a remote node, fixed at forkPoint.
func NewFork(local *Local, remote RemoteReader, forkPoint block.Number) *Fork {
	return &Fork{Local: local, store: local.store, remote: remote, forkPoint: forkPoint}
}

// BlockAt serves a block at or below fork_point from local storage,
// fetching and memoizing it from the remote node on a local miss. Above
// fork_point it behaves exactly like Local.
func (f *Fork) BlockAt(ctx context.Context, n block.Number) (block.Block, bool, error) {
	if n <= f.forkPoint {
		if err := f.ensureLocal(ctx, n); err != nil {
			return block.Block{}, false, err
		}
	}
	return f.Local.BlockAt(ctx, n)
}

// StateAt opens a historical view at n, memoizing the block from the remote
// node first if n is within the forked range and not yet local.
func (f *Fork) StateAt(ctx context.Context, n block.Number) (executor.StateReader, error) {
	if n <= f.forkPoint {
		if err := f.ensureLocal(ctx, n); err != nil {
			return nil, err
		}
	}
	return f.Local.StateAt(ctx, n)
}

func (f *Fork) ensureLocal(ctx context.Context, n block.Number) error {
	f.fetchMu.Lock()
	defer f.fetchMu.Unlock()

	has, err := f.store.HasHeader(ctx, n)
	if err != nil || has {
		return err
	}

	rb, err := f.remote.BlockByNumber(ctx, n)
	if err != nil {
		return err
	}
	su := kv.StateUpdatesWithClasses{Diff: rb.StateUpdate, Classes: rb.Classes}
	// The remote feeder gateway hands back receipts but no execution trace;
	// derive the root-level trace fields the receipt already carries rather
	// than storing a trace-less row.
	traces := make([]receipt.Trace, len(rb.Receipts))
	for i, r := range rb.Receipts {
		traces[i] = receipt.FromReceipt(r)
	}
	return f.store.InsertBlockWithStatesAndReceipts(ctx, rb.Block, su, rb.Receipts, traces)
}
