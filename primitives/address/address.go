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

// Package address defines ContractAddress, a Felt tagged by role.
package address

import "github.com/lumenhq/lumen/primitives/felt"

// ContractAddress identifies a deployed contract instance.
type ContractAddress struct {
	felt.Felt
}

// FromFelt tags a raw field element as a contract address.
func FromFelt(f felt.Felt) ContractAddress { return ContractAddress{f} }

// FromHex parses a contract address from its canonical hex form.
func FromHex(s string) (ContractAddress, error) {
	f, err := felt.FromHex(s)
	if err != nil {
		return ContractAddress{}, err
	}
	return ContractAddress{f}, nil
}

// StorageKey is a Felt identifying a slot within a contract's storage trie.
type StorageKey struct{ felt.Felt }

// StorageValue is the Felt stored at a StorageKey.
type StorageValue struct{ felt.Felt }

func KeyFromFelt(f felt.Felt) StorageKey     { return StorageKey{f} }
func ValueFromFelt(f felt.Felt) StorageValue { return StorageValue{f} }

// Nonce is a monotone, sender-local sequence number.
type Nonce struct{ felt.Felt }

func NonceFromUint64(v uint64) Nonce { return Nonce{felt.FromUint64(v)} }

// Next returns the nonce incremented by one, used after a tx is included.
func (n Nonce) Next() Nonce { return Nonce{n.Add(felt.FromUint64(1))} }
