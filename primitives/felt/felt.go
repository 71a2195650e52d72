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

// Package felt implements the Starknet prime field element, the universal
// scalar type underlying hashes, addresses, storage keys and values.
package felt

import (
	"encoding/hex"
	"errors"
	"fmt"
	"math/big"
	"strings"
)

// Modulus is the Starknet field prime:
// 2^251 + 17*2^192 + 1.
var Modulus = func() *big.Int {
	m, ok := new(big.Int).SetString("800000000000011000000000000000000000000000000000000000000000001", 16)
	if !ok {
		panic("felt: invalid modulus literal")
	}
	return m
}()

// Felt is an element of the Starknet prime field, stored as four 64-bit
// limbs (252 bits used), always kept reduced modulo Modulus. Bytes gives
// its 32-byte big-endian encoding.
type Felt struct {
	words [4]uint64 // little-endian 64-bit limbs, words[3] only uses 60 bits
}

// Zero and One are canonical constants.
var (
	Zero = Felt{}
	One  = Felt{words: [4]uint64{1, 0, 0, 0}}
)

// ErrMalformedHex is returned when a hex string contains non-hex
// characters. Values >= Modulus are reduced modulo the field instead of
// rejected, matching the Starknet libraries' permissive parsing behavior.
var ErrMalformedHex = errors.New("felt: malformed hex string")

// New builds a Felt from a big.Int, reducing modulo the field prime.
func New(v *big.Int) Felt {
	r := new(big.Int).Mod(v, Modulus)
	return fromBigInt(r)
}

// FromUint64 builds a Felt from a small unsigned integer.
func FromUint64(v uint64) Felt {
	return Felt{words: [4]uint64{v, 0, 0, 0}}
}

func fromBigInt(v *big.Int) Felt {
	var f Felt
	buf := v.Bytes()
	// buf is big-endian, up to 32 bytes.
	var padded [32]byte
	copy(padded[32-len(buf):], buf)
	for i := 0; i < 4; i++ {
		start := 32 - (i+1)*8
		f.words[i] = beUint64(padded[start : start+8])
	}
	return f
}

func beUint64(b []byte) uint64 {
	var v uint64
	for _, c := range b {
		v = v<<8 | uint64(c)
	}
	return v
}

// BigInt returns the value as a big.Int in [0, Modulus).
func (f Felt) BigInt() *big.Int {
	buf := make([]byte, 32)
	for i := 0; i < 4; i++ {
		start := 32 - (i+1)*8
		putBeUint64(buf[start:start+8], f.words[i])
	}
	return new(big.Int).SetBytes(buf)
}

func putBeUint64(b []byte, v uint64) {
	for i := 7; i >= 0; i-- {
		b[i] = byte(v)
		v >>= 8
	}
}

// FromHex parses a "0x"-prefixed (or bare) hex string into a Felt, reducing
// modulo the field. Accepts both upper and lower case, matching the
// permissive parsing used by Starknet JSON-RPC payloads.
func FromHex(s string) (Felt, error) {
	s = strings.TrimPrefix(s, "0x")
	s = strings.TrimPrefix(s, "0X")
	if s == "" {
		return Zero, nil
	}
	if len(s)%2 != 0 {
		s = "0" + s
	}
	raw, err := hex.DecodeString(s)
	if err != nil {
		return Zero, fmt.Errorf("%w: %v", ErrMalformedHex, err)
	}
	v := new(big.Int).SetBytes(raw)
	return New(v), nil
}

// MustFromHex is a test/constant helper that panics on error.
func MustFromHex(s string) Felt {
	f, err := FromHex(s)
	if err != nil {
		panic(err)
	}
	return f
}

// FromDecimal parses a base-10 string into a Felt.
func FromDecimal(s string) (Felt, error) {
	v, ok := new(big.Int).SetString(s, 10)
	if !ok {
		return Zero, fmt.Errorf("felt: malformed decimal string %q", s)
	}
	return New(v), nil
}

// Hex renders the canonical "0x"-prefixed lowercase hex form, no leading
// zero padding beyond a single required digit.
func (f Felt) Hex() string {
	return "0x" + f.BigInt().Text(16)
}

func (f Felt) String() string { return f.Hex() }

// IsZero reports whether the element is the additive identity.
func (f Felt) IsZero() bool { return f == Zero }

// Equal reports value equality.
func (f Felt) Equal(o Felt) bool { return f == o }

// Add, Sub, Mul are defined as opaque field arithmetic operations per
// ("supports arithmetic as opaque"); implemented via big.Int
// reduction rather than Montgomery-form limb arithmetic, since the field ops
// here are not on any hot path (hashing goes through primitives/felt/poseidon
// which uses gnark-crypto's optimized field).
func (f Felt) Add(o Felt) Felt { return New(new(big.Int).Add(f.BigInt(), o.BigInt())) }
func (f Felt) Sub(o Felt) Felt {
	v := new(big.Int).Sub(f.BigInt(), o.BigInt())
	return New(v)
}
func (f Felt) Mul(o Felt) Felt { return New(new(big.Int).Mul(f.BigInt(), o.BigInt())) }

// Cmp orders two field elements by their canonical integer representation;
// used only for deterministic iteration/tie-breaking, not for field math.
func (f Felt) Cmp(o Felt) int {
	for i := 3; i >= 0; i-- {
		if f.words[i] != o.words[i] {
			if f.words[i] < o.words[i] {
				return -1
			}
			return 1
		}
	}
	return 0
}

// Bytes returns the 32-byte big-endian encoding.
func (f Felt) Bytes() [32]byte {
	var out [32]byte
	for i := 0; i < 4; i++ {
		start := 32 - (i+1)*8
		putBeUint64(out[start:start+8], f.words[i])
	}
	return out
}

// FromBytes decodes a 32-byte big-endian buffer, reducing modulo the field.
func FromBytes(b [32]byte) Felt {
	return New(new(big.Int).SetBytes(b[:]))
}

// MarshalJSON renders the Starknet JSON-RPC canonical hex string form.
func (f Felt) MarshalJSON() ([]byte, error) {
	return []byte(`"` + f.Hex() + `"`), nil
}

// UnmarshalJSON accepts either a hex string or a JSON number.
func (f *Felt) UnmarshalJSON(data []byte) error {
	if len(data) > 0 && data[0] != '"' {
		v, err := FromDecimal(string(data))
		if err != nil {
			return err
		}
		*f = v
		return nil
	}
	s := strings.Trim(string(data), `"`)
	v, err := FromHex(s)
	if err != nil {
		return err
	}
	*f = v
	return nil
}
