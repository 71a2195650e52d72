package block

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSealDeterministic(t *testing.T) {
	h := Header{Number: 1, TransactionCount: 0}
	require.True(t, h.Seal().Equal(h.Seal()))
}

func TestSealChainingInvariant(t *testing.T) {
	genesis := Header{Number: 0}
	genesisHash := genesis.Seal()

	next := Header{Number: 1, ParentHash: genesisHash}
	require.True(t, next.ParentHash.Equal(genesisHash.Felt))
}

func TestEmptyBlock(t *testing.T) {
	b := Block{}
	require.True(t, b.IsEmpty())
}
