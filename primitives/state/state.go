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

// Package state defines per-block StateUpdates. Deterministic iteration
// matters for reproducible trie-root recomputation, so this package keeps
// the felt.Felt-keyed collections in a github.com/tidwall/btree.BTreeG
// ordered by feltLess rather than a native map, whose iteration order is
// randomized. The one exception is StateUpdates.StorageUpdates, a native
// map keyed by contract address; SortedContractAddresses gives its keys
// (with every other touched address) in ascending order. felt.Felt is a
// fixed-size struct, not one of btree.Map's built-in ordered key types, so
// the generic BTreeG + explicit less
// function is used throughout instead of btree.Map — the same pattern
// txpool/pending.go already uses for its own non-scalar ordering key.
package state

import (
	"github.com/tidwall/btree"

	"github.com/lumenhq/lumen/primitives/address"
	"github.com/lumenhq/lumen/primitives/class"
	"github.com/lumenhq/lumen/primitives/felt"
)

func feltLess(a, b felt.Felt) bool { return a.Cmp(b) < 0 }

// feltEntry is one key/value pair in a feltMap, ordered by Key.
type feltEntry[V any] struct {
	Key   felt.Felt
	Value V
}

func feltEntryLess[V any](a, b feltEntry[V]) bool { return feltLess(a.Key, b.Key) }

// feltMap is a felt.Felt-keyed ordered map backed by btree.BTreeG, the
// generic custom-less variant (not btree.Map, whose built-in ordered
// constraint only covers scalar key types).
type feltMap[V any] struct {
	t *btree.BTreeG[feltEntry[V]]
}

func newFeltMap[V any]() *feltMap[V] {
	return &feltMap[V]{t: btree.NewBTreeG(feltEntryLess[V])}
}

func (m *feltMap[V]) Set(k felt.Felt, v V) {
	m.t.Set(feltEntry[V]{Key: k, Value: v})
}

func (m *feltMap[V]) Get(k felt.Felt) (V, bool) {
	e, ok := m.t.Get(feltEntry[V]{Key: k})
	return e.Value, ok
}

func (m *feltMap[V]) Len() int { return m.t.Len() }

// Scan iterates entries in ascending key order.
func (m *feltMap[V]) Scan(fn func(k felt.Felt, v V) bool) {
	m.t.Scan(func(e feltEntry[V]) bool { return fn(e.Key, e.Value) })
}

// StorageDiff is the set of storage slot updates for one contract, keyed by
// StorageKey in deterministic ascending order.
type StorageDiff struct {
	m *feltMap[felt.Felt]
}

func NewStorageDiff() *StorageDiff {
	return &StorageDiff{m: newFeltMap[felt.Felt]()}
}

func (d *StorageDiff) Set(key address.StorageKey, value address.StorageValue) {
	d.m.Set(key.Felt, value.Felt)
}

func (d *StorageDiff) Get(key address.StorageKey) (address.StorageValue, bool) {
	v, ok := d.m.Get(key.Felt)
	return address.ValueFromFelt(v), ok
}

func (d *StorageDiff) Len() int { return d.m.Len() }

// Range iterates entries in ascending key order, the order required for
// reproducible trie-root recomputation.
func (d *StorageDiff) Range(fn func(key address.StorageKey, value address.StorageValue) bool) {
	d.m.Scan(func(k, v felt.Felt) bool {
		return fn(address.KeyFromFelt(k), address.ValueFromFelt(v))
	})
}

// StateUpdates is the per-block state diff.
//
// Invariants:
//   - DeployedContracts and ReplacedClasses are disjoint at commit time.
//   - Every hash in DeclaredClasses/DeprecatedDeclaredClasses has a stored
//     class artifact. The storage engine does not check this on insert;
//     artifacts a block does not carry inline are stored separately
//     (kv.Store.StoreClassArtifact).
type StateUpdates struct {
	NonceUpdates              *feltMap[address.Nonce]
	StorageUpdates            map[felt.Felt]*StorageDiff // per contract-address
	DeployedContracts         *feltMap[class.Hash]
	ReplacedClasses           *feltMap[class.Hash]
	DeclaredClasses           *feltMap[class.CompiledHash]
	DeprecatedDeclaredClasses *feltMap[struct{}]
}

// New returns an empty, ready-to-populate StateUpdates.
func New() *StateUpdates {
	return &StateUpdates{
		NonceUpdates:              newFeltMap[address.Nonce](),
		StorageUpdates:            make(map[felt.Felt]*StorageDiff),
		DeployedContracts:         newFeltMap[class.Hash](),
		ReplacedClasses:           newFeltMap[class.Hash](),
		DeclaredClasses:           newFeltMap[class.CompiledHash](),
		DeprecatedDeclaredClasses: newFeltMap[struct{}](),
	}
}

// StorageFor returns (creating if absent) the per-contract storage diff.
func (s *StateUpdates) StorageFor(addr address.ContractAddress) *StorageDiff {
	d, ok := s.StorageUpdates[addr.Felt]
	if !ok {
		d = NewStorageDiff()
		s.StorageUpdates[addr.Felt] = d
	}
	return d
}

// SetNonce records the new nonce (after the block) for a sender.
func (s *StateUpdates) SetNonce(addr address.ContractAddress, n address.Nonce) {
	s.NonceUpdates.Set(addr.Felt, n)
}

// DisjointDeployedAndReplaced validates the commit-time invariant that
// deployed and replaced contracts are disjoint sets.
func (s *StateUpdates) DisjointDeployedAndReplaced() bool {
	ok := true
	s.DeployedContracts.Scan(func(k felt.Felt, _ class.Hash) bool {
		if _, exists := s.ReplacedClasses.Get(k); exists {
			ok = false
			return false
		}
		return true
	})
	return ok
}

// SortedContractAddresses returns every contract address touched by this
// diff (storage, nonce, deploy, or replace) in ascending order — the
// iteration order the contracts trie writer relies on.
func (s *StateUpdates) SortedContractAddresses() []felt.Felt {
	seen := map[felt.Felt]struct{}{}
	for addr := range s.StorageUpdates {
		seen[addr] = struct{}{}
	}
	s.NonceUpdates.Scan(func(k felt.Felt, _ address.Nonce) bool { seen[k] = struct{}{}; return true })
	s.DeployedContracts.Scan(func(k felt.Felt, _ class.Hash) bool { seen[k] = struct{}{}; return true })
	s.ReplacedClasses.Scan(func(k felt.Felt, _ class.Hash) bool { seen[k] = struct{}{}; return true })

	out := make([]felt.Felt, 0, len(seen))
	for addr := range seen {
		out = append(out, addr)
	}
	sortFelts(out)
	return out
}

func sortFelts(xs []felt.Felt) {
	for i := 1; i < len(xs); i++ {
		for j := i; j > 0 && xs[j-1].Cmp(xs[j]) > 0; j-- {
			xs[j-1], xs[j] = xs[j], xs[j-1]
		}
	}
}
