package pipeline

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/lumenhq/lumen/primitives/block"
	"github.com/lumenhq/lumen/stages"
)

type memCheckpoints struct {
	mu sync.Mutex
	m  map[string]block.Number
}

func newMemCheckpoints() *memCheckpoints { return &memCheckpoints{m: map[string]block.Number{}} }

func (c *memCheckpoints) Get(_ context.Context, stageID string) (block.Number, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.m[stageID], nil
}

func (c *memCheckpoints) Set(_ context.Context, stageID string, n block.Number) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.m[stageID] = n
	return nil
}

type recordingStage struct {
	mu       sync.Mutex
	id       string
	executed []stages.ExecutionInput
	failAt   block.Number
}

func (s *recordingStage) ID() string { return s.id }

func (s *recordingStage) Execute(_ context.Context, input stages.ExecutionInput) (stages.ExecutionOutput, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failAt != 0 && input.To() >= s.failAt {
		return stages.ExecutionOutput{}, errors.New("injected failure")
	}
	s.executed = append(s.executed, input)
	return stages.ExecutionOutput{LastBlockProcessed: input.To()}, nil
}

func (s *recordingStage) Unwind(_ context.Context, target block.Number) error { return nil }

func TestPipelineAdvancesInChunksUpToTip(t *testing.T) {
	checkpoints := newMemCheckpoints()
	tip := NewTipWatcher()
	stage := &recordingStage{id: "Blocks"}
	p := New(checkpoints, tip, 10, stage)

	tip.Set(25)
	require.NoError(t, p.advance(context.Background(), tip.Current()))

	got, err := checkpoints.Get(context.Background(), "Blocks")
	require.NoError(t, err)
	require.Equal(t, block.Number(25), got)
	require.Len(t, stage.executed, 3) // [1,10] [11,20] [21,25]
}

func TestPipelineStopsAdvancingOnStageFailure(t *testing.T) {
	checkpoints := newMemCheckpoints()
	tip := NewTipWatcher()
	stage := &recordingStage{id: "Blocks", failAt: 21}
	p := New(checkpoints, tip, 10, stage)

	tip.Set(30)
	err := p.advance(context.Background(), tip.Current())
	require.Error(t, err)

	got, err := checkpoints.Get(context.Background(), "Blocks")
	require.NoError(t, err)
	require.Equal(t, block.Number(20), got) // advanced past [1,10] and [11,20]; [21,30] failed
}

func TestPipelineUnwindResetsCheckpointsInReverseOrder(t *testing.T) {
	checkpoints := newMemCheckpoints()
	tip := NewTipWatcher()
	first := &recordingStage{id: "Blocks"}
	second := &recordingStage{id: "StateTrie"}
	p := New(checkpoints, tip, 10, first, second)

	require.NoError(t, checkpoints.Set(context.Background(), "Blocks", 50))
	require.NoError(t, checkpoints.Set(context.Background(), "StateTrie", 50))

	require.NoError(t, p.Unwind(context.Background(), 30))

	got, err := checkpoints.Get(context.Background(), "Blocks")
	require.NoError(t, err)
	require.Equal(t, block.Number(30), got)
	got, err = checkpoints.Get(context.Background(), "StateTrie")
	require.NoError(t, err)
	require.Equal(t, block.Number(30), got)
}

func TestTipWatcherWaitPastUnblocksOnSet(t *testing.T) {
	w := NewTipWatcher()
	done := make(chan block.Number, 1)
	go func() {
		n, err := w.WaitPast(context.Background(), 0)
		require.NoError(t, err)
		done <- n
	}()

	time.Sleep(10 * time.Millisecond)
	w.Set(5)

	select {
	case n := <-done:
		require.Equal(t, block.Number(5), n)
	case <-time.After(time.Second):
		t.Fatal("WaitPast did not unblock")
	}
}

func TestTipWatcherWaitPastRespectsContextCancellation(t *testing.T) {
	w := NewTipWatcher()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := w.WaitPast(ctx, 0)
	require.ErrorIs(t, err, context.Canceled)
}
