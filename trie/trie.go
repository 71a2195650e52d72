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

// Package trie implements the two Merkle-Patricia tries and the combined
// state root built from them (contracts trie, classes trie): a height-251
// sparse binary Merkle trie over the exact leaf encodings, hashed with the
// Poseidon permutation from primitives/felt/poseidon (consensys/gnark-crypto
// backed). Roots are computed by recursively partitioning the full live leaf
// set on each bit from the top rather than maintaining persisted,
// path-compressed edge nodes node-by-node — see DESIGN.md for why
// incremental node persistence was judged out of proportion to this
// package's scope.
package trie

import (
	"math/big"

	"github.com/lumenhq/lumen/primitives/felt"
)

// TreeHeight is the Starknet Merkle-Patricia tree height (251 bits).
const TreeHeight = 251

type leaf struct {
	key   *big.Int
	value felt.Felt
}

// merkleRoot computes the root of a sparse binary trie of TreeHeight over
// leaves, recursively splitting on each bit from the most significant down.
// An empty subtree (len(leaves) == 0) is felt.Zero and short-circuits
// without descending further, so cost is proportional to the number of
// leaves, not 2^TreeHeight.
func merkleRoot(leaves map[felt.Felt]felt.Felt, hash func(a, b felt.Felt) felt.Felt) felt.Felt {
	if len(leaves) == 0 {
		return felt.Zero
	}
	entries := make([]leaf, 0, len(leaves))
	for k, v := range leaves {
		entries = append(entries, leaf{key: k.BigInt(), value: v})
	}
	return computeRoot(entries, TreeHeight-1, hash)
}

func computeRoot(entries []leaf, bitIndex int, hash func(a, b felt.Felt) felt.Felt) felt.Felt {
	if len(entries) == 0 {
		return felt.Zero
	}
	if bitIndex < 0 {
		// Paths are 251-bit and distinct, so exactly one leaf should
		// remain once every bit has been consumed.
		return entries[len(entries)-1].value
	}
	var left, right []leaf
	for _, e := range entries {
		if e.key.Bit(bitIndex) == 0 {
			left = append(left, e)
		} else {
			right = append(right, e)
		}
	}
	l := computeRoot(left, bitIndex-1, hash)
	r := computeRoot(right, bitIndex-1, hash)
	if l.IsZero() && r.IsZero() {
		return felt.Zero
	}
	return hash(l, r)
}
