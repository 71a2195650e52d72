package rpc

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/lumenhq/lumen/executor"
	"github.com/lumenhq/lumen/executor/noop"
	"github.com/lumenhq/lumen/primitives/address"
	"github.com/lumenhq/lumen/primitives/block"
	"github.com/lumenhq/lumen/primitives/class"
	"github.com/lumenhq/lumen/primitives/felt"
	"github.com/lumenhq/lumen/primitives/receipt"
	"github.com/lumenhq/lumen/primitives/transaction"
)

// fakeChainReader is a minimal in-memory ChainReader for exercising
// methods.go's handlers without a real storage engine.
type fakeChainReader struct {
	head     block.Header
	blocks   map[uint64]block.Block
	receipts map[uint64][]receipt.Receipt
	traces   map[uint64][]receipt.Trace
}

func newFakeChainReader() *fakeChainReader {
	return &fakeChainReader{
		blocks:   map[uint64]block.Block{},
		receipts: map[uint64][]receipt.Receipt{},
		traces:   map[uint64][]receipt.Trace{},
	}
}

func (f *fakeChainReader) LatestHeader(context.Context) (block.Header, error) { return f.head, nil }

func (f *fakeChainReader) BlockAt(_ context.Context, n block.Number) (block.Block, bool, error) {
	b, ok := f.blocks[uint64(n)]
	return b, ok, nil
}

func (f *fakeChainReader) BlockNumberByHash(context.Context, block.Hash) (block.Number, bool, error) {
	return 0, false, nil
}

func (f *fakeChainReader) TransactionByHash(context.Context, transaction.Hash) (transaction.TxWithHash, block.Number, int, bool, error) {
	return transaction.TxWithHash{}, 0, 0, false, nil
}

func (f *fakeChainReader) ReceiptByHash(context.Context, transaction.Hash) (receipt.Receipt, block.Number, bool, error) {
	return receipt.Receipt{}, 0, false, nil
}

func (f *fakeChainReader) ReceiptsForBlock(_ context.Context, n block.Number, _ int) ([]receipt.Receipt, error) {
	return f.receipts[uint64(n)], nil
}

func (f *fakeChainReader) TraceByHash(context.Context, transaction.Hash) (receipt.Trace, block.Number, bool, error) {
	return receipt.Trace{}, 0, false, nil
}

func (f *fakeChainReader) TracesForBlock(_ context.Context, n block.Number, _ int) ([]receipt.Trace, error) {
	return f.traces[uint64(n)], nil
}

func (f *fakeChainReader) ClassArtifact(context.Context, class.Hash) (class.Class, bool, error) {
	return class.Class{}, false, nil
}

func (f *fakeChainReader) ClassHashOfContractAt(context.Context, block.Number, address.ContractAddress) (class.Hash, error) {
	return class.Hash{}, nil
}

func (f *fakeChainReader) StateAt(context.Context, block.Number) (executor.StateReader, error) {
	return stubStateReader{}, nil
}

func TestParamAtPositional(t *testing.T) {
	raw, err := paramAt(json.RawMessage(`["a","b"]`), 1, "second")
	require.NoError(t, err)
	require.JSONEq(t, `"b"`, string(raw))
}

func TestParamAtNamed(t *testing.T) {
	raw, err := paramAt(json.RawMessage(`{"second":"b"}`), 1, "second")
	require.NoError(t, err)
	require.JSONEq(t, `"b"`, string(raw))
}

func TestParamAtMissingPositional(t *testing.T) {
	_, err := paramAt(json.RawMessage(`["a"]`), 5, "sixth")
	require.Error(t, err)
}

func TestKeysMatchEmptyFilterMatchesAnything(t *testing.T) {
	require.True(t, keysMatch(nil, []felt.Felt{felt.FromUint64(1)}))
}

func TestKeysMatchPerPositionOr(t *testing.T) {
	keys := []felt.Felt{felt.FromUint64(1), felt.FromUint64(2)}
	filter := [][]felt.Felt{{felt.FromUint64(9), felt.FromUint64(1)}, {felt.FromUint64(2)}}
	require.True(t, keysMatch(filter, keys))
}

func TestKeysMatchFailsWhenPositionAbsent(t *testing.T) {
	keys := []felt.Felt{felt.FromUint64(1)}
	filter := [][]felt.Felt{{}, {felt.FromUint64(2)}}
	require.False(t, keysMatch(filter, keys))
}

func TestGetBlockNumber(t *testing.T) {
	reader := newFakeChainReader()
	reader.head = block.Header{Number: 7}
	d := Deps{Reader: reader}

	result, err := d.blockNumber(context.Background(), nil)
	require.NoError(t, err)
	require.Equal(t, uint64(7), result)
}

func TestGetBlockWithTxHashesByNumber(t *testing.T) {
	reader := newFakeChainReader()
	sender := address.FromFelt(felt.FromUint64(1))
	twh := transaction.TxWithHash{
		Transaction: transaction.Transaction{Kind: transaction.KindInvoke, Version: transaction.V1, Sender: sender, Invoke: &transaction.InvokePayload{}},
		Hash:        transaction.Hash{Felt: felt.FromUint64(99)},
	}
	reader.blocks[5] = block.Block{Header: block.Header{Number: 5}, Body: block.Body{Transactions: []transaction.TxWithHash{twh}}}
	reader.head = block.Header{Number: 5}
	d := Deps{Reader: reader}

	params, err := json.Marshal([]any{map[string]any{"block_number": 5}})
	require.NoError(t, err)
	result, err := d.getBlockWithTxHashes(context.Background(), params)
	require.NoError(t, err)

	view, ok := result.(blockWithTxHashesView)
	require.True(t, ok)
	require.Len(t, view.Transactions, 1)
	require.True(t, view.Transactions[0].Equal(felt.FromUint64(99)))
}

func TestGetNonceReadsThroughStateAt(t *testing.T) {
	reader := newFakeChainReader()
	reader.head = block.Header{Number: 1}
	d := Deps{Reader: reader}

	params, err := json.Marshal([]any{"latest", "0x1"})
	require.NoError(t, err)
	result, err := d.getNonce(context.Background(), params)
	require.NoError(t, err)
	_, ok := result.(felt.Felt)
	require.True(t, ok)
}

func TestEstimateFeeWithNoopExecutor(t *testing.T) {
	reader := newFakeChainReader()
	reader.head = block.Header{Number: 3}
	d := Deps{Reader: reader, Factory: noop.NewFactory(), ChainID: transaction.ChainID{Felt: felt.FromUint64(1)}}

	txJSON, err := json.Marshal(map[string]any{
		"type":           "INVOKE",
		"version":        "0x3",
		"sender_address": "0x1",
		"nonce":          "0x0",
		"calldata":       []string{},
		"tip":            "0x0",
		"resource_bounds": map[string]any{
			"l1_gas":      map[string]string{"max_amount": "0x0", "max_price_per_unit": "0x0"},
			"l2_gas":      map[string]string{"max_amount": "0x0", "max_price_per_unit": "0x0"},
			"l1_data_gas": map[string]string{"max_amount": "0x0", "max_price_per_unit": "0x0"},
		},
	})
	require.NoError(t, err)
	params, err := json.Marshal([]any{[]json.RawMessage{txJSON}, "latest"})
	require.NoError(t, err)

	result, err := d.estimateFee(context.Background(), params)
	require.NoError(t, err)
	estimates, ok := result.([]feeEstimateView)
	require.True(t, ok)
	require.Len(t, estimates, 1)
}

func TestCallIsUnsupported(t *testing.T) {
	d := Deps{}
	_, err := d.call(context.Background(), nil)
	require.Error(t, err)
}
