package stages

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/lumenhq/lumen/primitives/block"
	"github.com/lumenhq/lumen/primitives/class"
	"github.com/lumenhq/lumen/primitives/felt"
)

type fakeDeclaredSource struct {
	byBlock map[block.Number][]class.Hash
}

func (s fakeDeclaredSource) Download(_ context.Context, n block.Number) ([]class.Hash, error) {
	return s.byBlock[n], nil
}

type fakeArtifactSource struct{ fetched []class.Hash }

func (s *fakeArtifactSource) Download(_ context.Context, h class.Hash) (class.Class, error) {
	s.fetched = append(s.fetched, h)
	return class.Class{}, nil
}

type fakeArtifactStore struct {
	present map[class.Hash]bool
	stored  []class.Hash
}

func (s *fakeArtifactStore) HasClassArtifact(_ context.Context, h class.Hash) (bool, error) {
	return s.present[h], nil
}

func (s *fakeArtifactStore) StoreClassArtifact(_ context.Context, h class.Hash, _ class.Class) error {
	s.stored = append(s.stored, h)
	return nil
}

func TestClassesExecuteFetchesOnlyMissingArtifacts(t *testing.T) {
	have := class.Hash{Felt: felt.FromUint64(1)}
	missing := class.Hash{Felt: felt.FromUint64(2)}

	declared := fakeDeclaredSource{byBlock: map[block.Number][]class.Hash{
		5: {have},
		6: {have, missing},
	}}
	artifacts := &fakeArtifactSource{}
	store := &fakeArtifactStore{present: map[class.Hash]bool{have: true}}

	stage := NewClasses(store, declared, artifacts, 2)
	input, err := NewExecutionInput(5, 6)
	require.NoError(t, err)

	out, err := stage.Execute(context.Background(), input)
	require.NoError(t, err)
	require.Equal(t, block.Number(6), out.LastBlockProcessed)
	require.Equal(t, []class.Hash{missing}, artifacts.fetched)
	require.Equal(t, []class.Hash{missing}, store.stored)
}

func TestClassesUnwindIsNoop(t *testing.T) {
	stage := NewClasses(&fakeArtifactStore{present: map[class.Hash]bool{}}, fakeDeclaredSource{}, &fakeArtifactSource{}, 1)
	require.NoError(t, stage.Unwind(context.Background(), 1))
}
