package poseidon

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/lumenhq/lumen/primitives/felt"
)

func TestHash2Deterministic(t *testing.T) {
	a := felt.FromUint64(1)
	b := felt.FromUint64(2)
	h1 := Hash2(a, b)
	h2 := Hash2(a, b)
	require.True(t, h1.Equal(h2))
}

func TestHash2SensitiveToOrder(t *testing.T) {
	a := felt.FromUint64(1)
	b := felt.FromUint64(2)
	require.False(t, Hash2(a, b).Equal(Hash2(b, a)))
}

func TestHashNMatchesHash2ForTwoElements(t *testing.T) {
	a := felt.FromUint64(7)
	b := felt.FromUint64(9)
	// With two elements HashN absorbs (a, b) with tag 2 in a single
	// permutation, the same state Hash2 starts from.
	require.True(t, HashN(a, b).Equal(Hash2(a, b)))
}

func TestHashNEmpty(t *testing.T) {
	require.True(t, HashN().IsZero())
}
