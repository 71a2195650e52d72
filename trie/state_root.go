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
	"github.com/lumenhq/lumen/primitives/felt"
	"github.com/lumenhq/lumen/primitives/felt/poseidon"
)

var stateRootLabel = shortString("STARKNET_STATE_V0")

// StateRoot combines the two trie roots into the header's state_root
//: Poseidon(["STARKNET_STATE_V0", contracts_root,
// classes_root]) when the classes trie is non-empty, else just the
// contracts root.
func StateRoot(contractsRoot, classesRoot felt.Felt) felt.Felt {
	if classesRoot.IsZero() {
		return contractsRoot
	}
	return poseidon.HashN(stateRootLabel, contractsRoot, classesRoot)
}
