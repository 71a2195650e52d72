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
	"github.com/lumenhq/lumen/primitives/class"
	"github.com/lumenhq/lumen/primitives/felt"
	"github.com/lumenhq/lumen/primitives/felt/poseidon"
)

// classLeafLabel is the domain-separation constant baked into every
// classes-trie leaf, encoded as a Starknet short string
// (ASCII bytes right-aligned into the 32-byte felt representation).
var classLeafLabel = shortString("CONTRACT_CLASS_LEAF_V0")

func shortString(s string) felt.Felt {
	var buf [32]byte
	copy(buf[32-len(s):], s)
	return felt.FromBytes(buf)
}

// InsertDeclaredClasses folds one block's newly declared classes into the
// classes trie, returning the new classes_trie_root. The classes trie is updated independently
// of the contracts trie — declaring a class never touches a contract leaf
// by itself, only a subsequent deploy/replace does.
func (t *Tries) InsertDeclaredClasses(declared map[class.Hash]class.CompiledHash) (felt.Felt, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	for hash, compiledHash := range declared {
		t.declared[hash.Felt] = poseidon.Hash2(classLeafLabel, compiledHash.Felt)
	}
	return merkleRoot(t.declared, poseidon.Hash2), nil
}
