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
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/lumenhq/lumen/primitives/address"
	"github.com/lumenhq/lumen/primitives/block"
	"github.com/lumenhq/lumen/primitives/class"
	"github.com/lumenhq/lumen/primitives/felt"
	"github.com/lumenhq/lumen/primitives/receipt"
	"github.com/lumenhq/lumen/primitives/state"
	"github.com/lumenhq/lumen/primitives/transaction"
)

func jsonVersioned[T any]() *Versioned[T] {
	return NewVersioned(Codec[T]{
		VersionTag: 1,
		Encode: func(v T) []byte {
			b, err := json.Marshal(v)
			if err != nil {
				panic(err)
			}
			return b
		},
		Decode: func(b []byte) (T, error) {
			var v T
			err := json.Unmarshal(b, &v)
			return v, err
		},
	})
}

func newTestStore() *Store {
	return NewStore(NewMemDB(), jsonVersioned[block.Header](), jsonVersioned[class.Class](), jsonVersioned[receipt.Receipt](), jsonVersioned[transaction.TxWithHash](), jsonVersioned[receipt.Trace]())
}

func TestStoreInsertAndBlockByNumberRoundtrip(t *testing.T) {
	ctx := context.Background()
	s := newTestStore()

	b := block.Block{Header: block.Header{Number: 1}}
	require.NoError(t, s.InsertBlockWithStatesAndReceipts(ctx, b, StateUpdatesWithClasses{Diff: state.New()}, nil, nil))

	got, found, err := s.BlockByNumber(ctx, 1)
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, block.Number(1), got.Header.Number)

	has, err := s.HasHeader(ctx, 1)
	require.NoError(t, err)
	require.True(t, has)

	has, err = s.HasHeader(ctx, 2)
	require.NoError(t, err)
	require.False(t, has)
}

func TestStoreHistoricalReadsReflectAsOfBlock(t *testing.T) {
	ctx := context.Background()
	s := newTestStore()
	addr := address.FromFelt(felt.FromUint64(1))

	su1 := state.New()
	su1.SetNonce(addr, address.NonceFromUint64(1))
	require.NoError(t, s.InsertBlockWithStatesAndReceipts(ctx, block.Block{Header: block.Header{Number: 0}}, StateUpdatesWithClasses{Diff: su1}, nil, nil))

	su2 := state.New()
	su2.SetNonce(addr, address.NonceFromUint64(2))
	require.NoError(t, s.InsertBlockWithStatesAndReceipts(ctx, block.Block{Header: block.Header{Number: 1}}, StateUpdatesWithClasses{Diff: su2}, nil, nil))

	view0, err := s.Historical(ctx, 0)
	require.NoError(t, err)
	defer view0.Close()
	n0, err := view0.Nonce(addr)
	require.NoError(t, err)
	require.True(t, n0.Equal(felt.FromUint64(1)))

	view1, err := s.Historical(ctx, 1)
	require.NoError(t, err)
	defer view1.Close()
	n1, err := view1.Nonce(addr)
	require.NoError(t, err)
	require.True(t, n1.Equal(felt.FromUint64(2)))
}

func TestStoreUnwindToRevertsNonceAndDropsBlocks(t *testing.T) {
	ctx := context.Background()
	s := newTestStore()
	addr := address.FromFelt(felt.FromUint64(5))

	su1 := state.New()
	su1.SetNonce(addr, address.NonceFromUint64(1))
	require.NoError(t, s.InsertBlockWithStatesAndReceipts(ctx, block.Block{Header: block.Header{Number: 0}}, StateUpdatesWithClasses{Diff: su1}, nil, nil))

	su2 := state.New()
	su2.SetNonce(addr, address.NonceFromUint64(2))
	require.NoError(t, s.InsertBlockWithStatesAndReceipts(ctx, block.Block{Header: block.Header{Number: 1}}, StateUpdatesWithClasses{Diff: su2}, nil, nil))

	require.NoError(t, s.UnwindTo(ctx, 0))

	_, found, err := s.BlockByNumber(ctx, 1)
	require.NoError(t, err)
	require.False(t, found)

	view, err := s.Historical(ctx, 0)
	require.NoError(t, err)
	defer view.Close()
	n, err := view.Nonce(addr)
	require.NoError(t, err)
	require.True(t, n.Equal(felt.FromUint64(1)))
}

func TestStoreClassArtifactLifecycle(t *testing.T) {
	ctx := context.Background()
	s := newTestStore()
	hash := class.Hash{Felt: felt.FromUint64(9)}

	has, err := s.HasClassArtifact(ctx, hash)
	require.NoError(t, err)
	require.False(t, has)

	c := class.NewLegacy(&class.LegacyProgram{Bytecode: []felt.Felt{felt.FromUint64(1)}})
	require.NoError(t, s.StoreClassArtifact(ctx, hash, c))

	has, err = s.HasClassArtifact(ctx, hash)
	require.NoError(t, err)
	require.True(t, has)
}

func TestStoreReceiptsByBlock(t *testing.T) {
	ctx := context.Background()
	s := newTestStore()

	tx := transaction.TxWithHash{Hash: transaction.Hash{Felt: felt.FromUint64(42)}}
	b := block.Block{Header: block.Header{Number: 3}, Body: block.Body{Transactions: []transaction.TxWithHash{tx}}}
	r := receipt.Receipt{}
	require.NoError(t, s.InsertBlockWithStatesAndReceipts(ctx, b, StateUpdatesWithClasses{Diff: state.New()}, []receipt.Receipt{r}, []receipt.Trace{{}}))

	receipts, err := s.ReceiptsByBlock(ctx, 3, 1)
	require.NoError(t, err)
	require.Len(t, receipts, 1)
}
