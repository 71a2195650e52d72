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

package transaction

import (
	"math/big"

	"github.com/lumenhq/lumen/primitives/felt"
	"github.com/lumenhq/lumen/primitives/felt/poseidon"
)

// ChainID tags a Starknet chain (e.g. "KATANA", "SN_MAIN") as its ASCII
// felt encoding/§8 scenario S1.
type ChainID struct{ felt.Felt }

// ChainIDFromASCII packs a short ASCII string into a felt the way Starknet
// chain ids are encoded on the wire.
func ChainIDFromASCII(s string) ChainID {
	return ChainID{felt.New(new(big.Int).SetBytes([]byte(s)))}
}

var kindTag = map[Kind]felt.Felt{
	KindInvoke:        felt.FromUint64(uint64(KindInvoke) + 1),
	KindDeclare:       felt.FromUint64(uint64(KindDeclare) + 1),
	KindDeployAccount: felt.FromUint64(uint64(KindDeployAccount) + 1),
	KindL1Handler:     felt.FromUint64(uint64(KindL1Handler) + 1),
}

// ComputeHash deterministically hashes the transaction together with the
// chain id. Every field that
// participates in signing must be folded in so that two transactions that
// differ in any semantic field never collide.
func (t Transaction) ComputeHash(chainID ChainID) Hash {
	elems := []felt.Felt{
		kindTag[t.Kind],
		felt.FromUint64(uint64(t.Version)),
		chainID.Felt,
		t.Sender.Felt,
		t.Nonce.Felt,
	}
	if t.FeeV1V2 != nil {
		elems = append(elems, felt.FromUint64(t.FeeV1V2.MaxFee.Lo), felt.FromUint64(t.FeeV1V2.MaxFee.Hi))
	}
	if t.FeeV3 != nil {
		elems = append(elems, felt.FromUint64(t.FeeV3.Tip))
		for _, r := range []Resource{ResourceL1Gas, ResourceL2Gas, ResourceL1DataGas} {
			b := t.FeeV3.Bounds[r]
			elems = append(elems, felt.FromUint64(uint64(r)), felt.FromUint64(b.MaxAmount), felt.FromUint64(b.MaxPricePerUnit.Lo), felt.FromUint64(b.MaxPricePerUnit.Hi))
		}
	}
	switch t.Kind {
	case KindInvoke:
		if t.Invoke != nil {
			elems = append(elems, t.Invoke.CallData...)
		}
	case KindDeclare:
		if t.Declare != nil {
			h := t.Declare.Class.ComputeHash()
			elems = append(elems, h.Felt, t.Declare.CompiledClassHash.Felt)
		}
	case KindDeployAccount:
		if t.DeployAccount != nil {
			elems = append(elems, t.DeployAccount.ClassHash.Felt, t.DeployAccount.ContractAddressSalt)
			elems = append(elems, t.DeployAccount.ConstructorCalldata...)
		}
	case KindL1Handler:
		if t.L1Handler != nil {
			elems = append(elems, t.L1Handler.FromAddress, t.L1Handler.EntryPointSelector, felt.FromUint64(t.L1Handler.Nonce))
			elems = append(elems, t.L1Handler.CallData...)
		}
	}
	return Hash{poseidon.HashN(elems...)}
}
