package trie

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/lumenhq/lumen/primitives/address"
	"github.com/lumenhq/lumen/primitives/class"
	"github.com/lumenhq/lumen/primitives/felt"
	"github.com/lumenhq/lumen/primitives/felt/poseidon"
	"github.com/lumenhq/lumen/primitives/state"
)

var errNotFound = errors.New("not found")

func TestMerkleRootEmptyIsZero(t *testing.T) {
	require.True(t, merkleRoot(nil, poseidon.Hash2).IsZero())
}

func TestMerkleRootDeterministicRegardlessOfInsertionOrder(t *testing.T) {
	leaves := map[felt.Felt]felt.Felt{
		felt.FromUint64(1): felt.FromUint64(100),
		felt.FromUint64(2): felt.FromUint64(200),
		felt.FromUint64(3): felt.FromUint64(300),
	}
	r1 := merkleRoot(leaves, poseidon.Hash2)
	r2 := merkleRoot(leaves, poseidon.Hash2)
	require.True(t, r1.Equal(r2))
}

func TestMerkleRootSensitiveToValue(t *testing.T) {
	a := map[felt.Felt]felt.Felt{felt.FromUint64(1): felt.FromUint64(100)}
	b := map[felt.Felt]felt.Felt{felt.FromUint64(1): felt.FromUint64(101)}
	require.False(t, merkleRoot(a, poseidon.Hash2).Equal(merkleRoot(b, poseidon.Hash2)))
}

type noBase struct{}

func (noBase) Nonce(address.ContractAddress) (address.Nonce, error) { return address.Nonce{}, errNotFound }
func (noBase) ClassHashOfContract(address.ContractAddress) (class.Hash, error) {
	return class.Hash{}, errNotFound
}

func TestInsertContractUpdatesChangesRootOnStorageWrite(t *testing.T) {
	tries := New()
	addr := address.FromFelt(felt.FromUint64(42))

	su := state.New()
	su.StorageFor(addr).Set(address.KeyFromFelt(felt.FromUint64(1)), address.ValueFromFelt(felt.FromUint64(7)))

	root1, err := tries.InsertContractUpdates(su, noBase{})
	require.NoError(t, err)
	require.False(t, root1.IsZero())

	su2 := state.New()
	su2.StorageFor(addr).Set(address.KeyFromFelt(felt.FromUint64(1)), address.ValueFromFelt(felt.FromUint64(8)))
	root2, err := tries.InsertContractUpdates(su2, noBase{})
	require.NoError(t, err)
	require.False(t, root2.Equal(root1))
}

func TestInsertDeclaredClassesIsDeterministic(t *testing.T) {
	tries := New()
	declared := map[class.Hash]class.CompiledHash{
		{Felt: felt.FromUint64(9)}: {Felt: felt.FromUint64(10)},
	}
	root1, err := tries.InsertDeclaredClasses(declared)
	require.NoError(t, err)
	require.False(t, root1.IsZero())

	tries2 := New()
	root2, err := tries2.InsertDeclaredClasses(declared)
	require.NoError(t, err)
	require.True(t, root1.Equal(root2))
}

func TestStateRootFallsBackToContractsRootWhenClassesEmpty(t *testing.T) {
	contracts := felt.FromUint64(5)
	require.True(t, StateRoot(contracts, felt.Zero).Equal(contracts))
}

func TestStateRootCombinesBothRootsWhenClassesNonEmpty(t *testing.T) {
	contracts := felt.FromUint64(5)
	classes := felt.FromUint64(6)
	combined := StateRoot(contracts, classes)
	require.False(t, combined.Equal(contracts))
	require.False(t, combined.Equal(classes))
}
