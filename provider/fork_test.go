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
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/lumenhq/lumen/primitives/block"
	"github.com/lumenhq/lumen/primitives/state"
	"github.com/lumenhq/lumen/trie"
)

type countingRemote struct {
	mu    sync.Mutex
	calls map[block.Number]int
}

func newCountingRemote() *countingRemote { return &countingRemote{calls: map[block.Number]int{}} }

func (r *countingRemote) BlockByNumber(_ context.Context, n block.Number) (RemoteBlock, error) {
	r.mu.Lock()
	r.calls[n]++
	r.mu.Unlock()
	return RemoteBlock{
		Block:       block.Block{Header: block.Header{Number: n}},
		StateUpdate: state.New(),
	}, nil
}

func (r *countingRemote) callCount(n block.Number) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.calls[n]
}

func TestForkReadBelowForkPointFetchesOnceAndMemoizes(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	local := NewLocal(store, trie.New(), block.Header{})
	remote := newCountingRemote()
	fork := NewFork(local, remote, 100)

	_, found, err := fork.BlockAt(ctx, 50)
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, 1, remote.callCount(50))

	_, found, err = fork.BlockAt(ctx, 50)
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, 1, remote.callCount(50)) // memoized, no second remote call
}

func TestForkReadAboveForkPointNeverCallsRemote(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	local := NewLocal(store, trie.New(), block.Header{})
	remote := newCountingRemote()
	fork := NewFork(local, remote, 100)

	_, found, err := fork.BlockAt(ctx, 101)
	require.NoError(t, err)
	require.False(t, found) // not local, and above fork_point so never fetched
	require.Equal(t, 0, remote.callCount(101))
}
