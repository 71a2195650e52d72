package stages

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/lumenhq/lumen/kv"
	"github.com/lumenhq/lumen/primitives/block"
	"github.com/lumenhq/lumen/primitives/class"
	"github.com/lumenhq/lumen/primitives/receipt"
	"github.com/lumenhq/lumen/primitives/state"
)

type fakeBlockSource struct{}

func (fakeBlockSource) Download(_ context.Context, n block.Number) (FetchedBlock, error) {
	return FetchedBlock{
		Block:       block.Block{Header: block.Header{Number: n}},
		StateUpdate: state.New(),
		Classes:     map[class.Hash]class.Class{},
		Receipts:    nil,
	}, nil
}

type fakeBlockWriter struct {
	inserted []block.Number
	unwound  *block.Number
}

func (w *fakeBlockWriter) InsertBlockWithStatesAndReceipts(_ context.Context, b block.Block, _ kv.StateUpdatesWithClasses, _ []receipt.Receipt, _ []receipt.Trace) error {
	w.inserted = append(w.inserted, b.Header.Number)
	return nil
}

func (w *fakeBlockWriter) UnwindTo(_ context.Context, n block.Number) error {
	w.unwound = &n
	return nil
}

func TestBlocksExecuteInsertsEveryBlockInRange(t *testing.T) {
	writer := &fakeBlockWriter{}
	stage := NewBlocks(writer, fakeBlockSource{}, 2)

	input, err := NewExecutionInput(10, 13)
	require.NoError(t, err)

	out, err := stage.Execute(context.Background(), input)
	require.NoError(t, err)
	require.Equal(t, block.Number(13), out.LastBlockProcessed)
	require.Equal(t, []block.Number{10, 11, 12, 13}, writer.inserted)
}

func TestBlocksUnwindDelegatesToWriter(t *testing.T) {
	writer := &fakeBlockWriter{}
	stage := NewBlocks(writer, fakeBlockSource{}, 2)

	require.NoError(t, stage.Unwind(context.Background(), 5))
	require.NotNil(t, writer.unwound)
	require.Equal(t, block.Number(5), *writer.unwound)
}
