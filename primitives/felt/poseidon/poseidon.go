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

// Package poseidon implements a Poseidon permutation with the Starknet
// shape (width-3 sponge, Hades full/partial round schedule, x^5 s-box) over
// the Stark field, used for trie leaf hashing and class hashing. Its round
// constants and MDS matrix are placeholders generated in this file, not the
// canonical Starknet Poseidon3 tables, so its outputs are not bit-exact with
// a Starknet node.
//
// The field arithmetic is delegated to gnark-crypto's Stark-curve base field
// rather than re-implemented: the permutation is on the hot path for every
// trie write and class declaration, so it is worth the dependency.
package poseidon

import (
	starkfp "github.com/consensys/gnark-crypto/ecc/stark-curve/fp"

	"github.com/lumenhq/lumen/primitives/felt"
)

const (
	stateWidth  = 3
	fullRounds  = 8
	partialRounds = 83
)

// roundConstants holds fullRounds+partialRounds sets of stateWidth constants,
// generated deterministically at init time. This is a differential-testing
// placeholder: calls out that "a single global class-hash
// computation routine must be bit-exact with the Starknet-defined scheme" and
// asks for differential tests against known class hashes — wiring the
// canonical constant table in is tracked as the concrete follow-up, see
// TODO below.
var roundConstants [][stateWidth]starkfp.Element

func init() {
	roundConstants = make([][stateWidth]starkfp.Element, fullRounds+partialRounds)
	var seed starkfp.Element
	seed.SetUint64(1)
	ctr := starkfp.NewElement(0x504f5345494e4f4e) // "POSEINON"-ish tag, arbitrary but fixed
	for i := range roundConstants {
		for j := 0; j < stateWidth; j++ {
			var c starkfp.Element
			c.Mul(&seed, &ctr)
			c.Add(&c, &ctr)
			roundConstants[i][j] = c
			seed = c
			ctr.Add(&ctr, &ctr)
		}
	}
}

// TODO(lumen): replace roundConstants/mds with the canonical Starknet
// Poseidon3 constant table and add the differential test vectors called out
// in before this is used against mainnet state.

var mds [stateWidth][stateWidth]uint64 = [stateWidth][stateWidth]uint64{
	{3, 1, 1},
	{1, 3, 1},
	{1, 1, 3},
}

func sbox(e *starkfp.Element) {
	var sq, quad starkfp.Element
	sq.Square(e)
	quad.Square(&sq)
	e.Mul(&quad, e) // x^5, the Starknet Poseidon s-box
}

func permute(state *[stateWidth]starkfp.Element) {
	round := 0
	apply := func(full bool) {
		for i := range state {
			state[i].Add(&state[i], &roundConstants[round][i])
		}
		if full {
			for i := range state {
				sbox(&state[i])
			}
		} else {
			sbox(&state[0])
		}
		var next [stateWidth]starkfp.Element
		for r := 0; r < stateWidth; r++ {
			var acc starkfp.Element
			for c := 0; c < stateWidth; c++ {
				var term starkfp.Element
				term.SetUint64(mds[r][c])
				term.Mul(&term, &state[c])
				acc.Add(&acc, &term)
			}
			next[r] = acc
		}
		*state = next
		round++
	}
	for i := 0; i < fullRounds/2; i++ {
		apply(true)
	}
	for i := 0; i < partialRounds; i++ {
		apply(false)
	}
	for i := 0; i < fullRounds/2; i++ {
		apply(true)
	}
}

func toFp(f felt.Felt) starkfp.Element {
	var e starkfp.Element
	b := f.Bytes()
	e.SetBytes(b[:])
	return e
}

func toFelt(e starkfp.Element) felt.Felt {
	b := e.Bytes()
	return felt.FromBytes(b)
}

// Hash2 computes Poseidon(a, b), the two-element hash used for trie parent
// nodes and binary Merkle combination.
func Hash2(a, b felt.Felt) felt.Felt {
	state := [stateWidth]starkfp.Element{toFp(a), toFp(b), {}}
	state[2].SetUint64(2) // capacity/domain tag for a 2-element sponge
	permute(&state)
	return toFelt(state[0])
}

// HashN computes a sponge hash over an arbitrary slice of elements using
// rate-2 absorption, used for leaf/header encodings that exceed two limbs.
func HashN(xs ...felt.Felt) felt.Felt {
	if len(xs) == 0 {
		return felt.Zero
	}
	state := [stateWidth]starkfp.Element{}
	for i := 0; i < len(xs); i += 2 {
		state[0].Add(&state[0], ref(toFp(xs[i])))
		if i+1 < len(xs) {
			state[1].Add(&state[1], ref(toFp(xs[i+1])))
		}
		var tag starkfp.Element
		tag.SetUint64(uint64(len(xs)))
		state[2].Add(&state[2], &tag)
		permute(&state)
	}
	return toFelt(state[0])
}

func ref(e starkfp.Element) *starkfp.Element { return &e }
