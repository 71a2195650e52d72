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

package trie

import (
	"sync"

	"github.com/lumenhq/lumen/primitives/address"
	"github.com/lumenhq/lumen/primitives/class"
	"github.com/lumenhq/lumen/primitives/felt"
	"github.com/lumenhq/lumen/primitives/felt/poseidon"
	"github.com/lumenhq/lumen/primitives/state"
)

// BaseReader bootstraps a contract's nonce/class-hash the first time Tries
// encounters it without having seen the prior block that set them —
// satisfied by *kv.Store's HistoricalView.
type BaseReader interface {
	Nonce(addr address.ContractAddress) (address.Nonce, error)
	ClassHashOfContract(addr address.ContractAddress) (class.Hash, error)
}

type contractState struct {
	classHash felt.Felt
	nonce     felt.Felt
}

// Tries holds the live, in-memory leaf sets for both Merkle-Patricia tries
// across the node's lifetime, incrementally updated block by block.
//
// Known limitation: on process restart, Tries starts empty and must be
// reseeded by replaying state_update history through InsertContractUpdates/
// InsertDeclaredClasses before its roots are trustworthy again. Insert*
// write nothing to storage, so there is no persisted trie to rebuild from.
type Tries struct {
	mu sync.Mutex

	contracts    map[felt.Felt]*contractState
	storageTries map[felt.Felt]map[felt.Felt]felt.Felt // contract addr -> (storage key -> value)
	declared     map[felt.Felt]felt.Felt                // class hash -> leaf value
}

func New() *Tries {
	return &Tries{
		contracts:    make(map[felt.Felt]*contractState),
		storageTries: make(map[felt.Felt]map[felt.Felt]felt.Felt),
		declared:     make(map[felt.Felt]felt.Felt),
	}
}

func (t *Tries) stateFor(addrFelt felt.Felt, base BaseReader) (*contractState, error) {
	if cs, ok := t.contracts[addrFelt]; ok {
		return cs, nil
	}
	cs := &contractState{}
	if base != nil {
		addr := address.FromFelt(addrFelt)
		if n, err := base.Nonce(addr); err == nil {
			cs.nonce = n.Felt
		}
		if h, err := base.ClassHashOfContract(addr); err == nil {
			cs.classHash = h.Felt
		}
	}
	t.contracts[addrFelt] = cs
	return cs, nil
}

// InsertContractUpdates applies one block's StateUpdates to the contracts
// trie (and each touched contract's storage sub-trie), returning the new
// contracts_trie_root. Storage sub-tries are updated before any
// contract-leaf hash is recomputed, matching the writer ordering the
// combined state root requires.
func (t *Tries) InsertContractUpdates(su *state.StateUpdates, base BaseReader) (felt.Felt, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	touched := map[felt.Felt]struct{}{}

	for addrFelt, diff := range su.StorageUpdates {
		leaves, ok := t.storageTries[addrFelt]
		if !ok {
			leaves = make(map[felt.Felt]felt.Felt)
			t.storageTries[addrFelt] = leaves
		}
		diff.Range(func(key address.StorageKey, value address.StorageValue) bool {
			leaves[key.Felt] = value.Felt
			return true
		})
		touched[addrFelt] = struct{}{}
	}

	su.NonceUpdates.Scan(func(addrFelt felt.Felt, n address.Nonce) bool {
		cs, _ := t.stateFor(addrFelt, base)
		cs.nonce = n.Felt
		touched[addrFelt] = struct{}{}
		return true
	})
	su.DeployedContracts.Scan(func(addrFelt felt.Felt, h class.Hash) bool {
		cs, _ := t.stateFor(addrFelt, base)
		cs.classHash = h.Felt
		touched[addrFelt] = struct{}{}
		return true
	})
	su.ReplacedClasses.Scan(func(addrFelt felt.Felt, h class.Hash) bool {
		cs, _ := t.stateFor(addrFelt, base)
		cs.classHash = h.Felt
		touched[addrFelt] = struct{}{}
		return true
	})

	for addrFelt := range touched {
		if _, err := t.stateFor(addrFelt, base); err != nil {
			return felt.Felt{}, err
		}
	}

	leaves := make(map[felt.Felt]felt.Felt, len(t.contracts))
	for addrFelt, cs := range t.contracts {
		storageRoot := merkleRoot(t.storageTries[addrFelt], poseidon.Hash2)
		leaves[addrFelt] = poseidon.HashN(cs.classHash, storageRoot, cs.nonce, felt.Zero)
	}
	return merkleRoot(leaves, poseidon.Hash2), nil
}
