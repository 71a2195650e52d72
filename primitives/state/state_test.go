package state

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/lumenhq/lumen/primitives/address"
	"github.com/lumenhq/lumen/primitives/class"
	"github.com/lumenhq/lumen/primitives/felt"
)

func TestStorageDiffSetGet(t *testing.T) {
	d := NewStorageDiff()
	key := address.KeyFromFelt(felt.FromUint64(0x20))
	d.Set(key, address.ValueFromFelt(felt.FromUint64(0xABC)))

	v, ok := d.Get(key)
	require.True(t, ok)
	require.True(t, v.Equal(felt.FromUint64(0xABC)))
}

func TestStorageDiffRangeIsAscending(t *testing.T) {
	d := NewStorageDiff()
	d.Set(address.KeyFromFelt(felt.FromUint64(3)), address.ValueFromFelt(felt.FromUint64(1)))
	d.Set(address.KeyFromFelt(felt.FromUint64(1)), address.ValueFromFelt(felt.FromUint64(1)))
	d.Set(address.KeyFromFelt(felt.FromUint64(2)), address.ValueFromFelt(felt.FromUint64(1)))

	var keys []uint64
	d.Range(func(k address.StorageKey, _ address.StorageValue) bool {
		keys = append(keys, k.BigInt().Uint64())
		return true
	})
	require.Equal(t, []uint64{1, 2, 3}, keys)
}

func TestDisjointDeployedAndReplaced(t *testing.T) {
	s := New()
	a := felt.FromUint64(1)
	s.DeployedContracts.Set(a, class.Hash{Felt: felt.FromUint64(9)})
	require.True(t, s.DisjointDeployedAndReplaced())

	s.ReplacedClasses.Set(a, class.Hash{Felt: felt.FromUint64(9)})
	require.False(t, s.DisjointDeployedAndReplaced())
}

func TestSortedContractAddresses(t *testing.T) {
	s := New()
	s.StorageFor(address.FromFelt(felt.FromUint64(5)))
	s.SetNonce(address.FromFelt(felt.FromUint64(2)), address.NonceFromUint64(1))
	s.DeployedContracts.Set(felt.FromUint64(8), class.Hash{})

	addrs := s.SortedContractAddresses()
	require.Len(t, addrs, 3)
	require.True(t, addrs[0].Equal(felt.FromUint64(2)))
	require.True(t, addrs[1].Equal(felt.FromUint64(5)))
	require.True(t, addrs[2].Equal(felt.FromUint64(8)))
}
