package stages

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/lumenhq/lumen/primitives/block"
)

type intDoubler struct {
	calls atomic.Int64
}

func (d *intDoubler) Download(_ context.Context, key int) (int, error) {
	d.calls.Add(1)
	return key * 2, nil
}

func TestBatchDownloaderPreservesOrder(t *testing.T) {
	d := &intDoubler{}
	bd := NewBatchDownloader[int, int](d, 4)

	out, err := bd.Download(context.Background(), []int{1, 2, 3, 4, 5})
	require.NoError(t, err)
	require.Equal(t, []int{2, 4, 6, 8, 10}, out)
}

type flakyDownloader struct {
	failuresBeforeSuccess map[int]int
	attempts              map[int]int
}

func (d *flakyDownloader) Download(_ context.Context, key int) (int, error) {
	d.attempts[key]++
	if d.attempts[key] <= d.failuresBeforeSuccess[key] {
		return 0, Retry(errors.New("rate limited"))
	}
	return key, nil
}

func TestBatchDownloaderRetriesRetryableErrors(t *testing.T) {
	d := &flakyDownloader{
		failuresBeforeSuccess: map[int]int{7: 2},
		attempts:              map[int]int{},
	}
	bd := NewBatchDownloader[int, int](d, 2)

	out, err := bd.Download(context.Background(), []int{7})
	require.NoError(t, err)
	require.Equal(t, []int{7}, out)
	require.Equal(t, 3, d.attempts[7])
}

type alwaysFails struct{ err error }

func (d alwaysFails) Download(context.Context, int) (int, error) { return 0, d.err }

func TestBatchDownloaderPropagatesPermanentError(t *testing.T) {
	sentinel := errors.New("not found")
	bd := NewBatchDownloader[int, int](alwaysFails{err: sentinel}, 2)

	_, err := bd.Download(context.Background(), []int{1})
	require.ErrorIs(t, err, sentinel)
}

func TestSortedRangeEmptyWhenInverted(t *testing.T) {
	require.Nil(t, sortedRange(block.Number(10), block.Number(5)))
}

func TestSortedRangeInclusive(t *testing.T) {
	require.Equal(t, []block.Number{3, 4, 5}, sortedRange(block.Number(3), block.Number(5)))
}
