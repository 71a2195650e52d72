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

// Package class defines the tagged Class variant {Legacy, Sierra} and its
// compiled artifact types.
package class

import (
	"math/big"

	"github.com/lumenhq/lumen/primitives/felt"
	"github.com/lumenhq/lumen/primitives/felt/poseidon"
)

// Kind tags which class representation a Class holds.
type Kind uint8

const (
	KindLegacy Kind = iota
	KindSierra
)

func (k Kind) String() string {
	if k == KindSierra {
		return "SIERRA"
	}
	return "LEGACY"
}

// Hash identifies a class deterministically (Poseidon/Pedersen over the
// class representation).
type Hash struct{ felt.Felt }

// CompiledHash identifies the compiled artifact of a class; for legacy
// classes this equals Hash.
type CompiledHash struct{ felt.Felt }

// LegacyProgram is the already-compiled legacy (Cairo 0) bytecode form.
type LegacyProgram struct {
	Bytecode     []felt.Felt
	EntryPoints  map[string][]EntryPoint
	ABI          []byte
}

// SierraProgram is the high-level Cairo intermediate representation that
// compiles down to CASM.
type SierraProgram struct {
	Program        []felt.Felt
	EntryPointsByType map[string][]EntryPoint
	ABI            []byte
	ContractClassVersion string
}

// EntryPoint maps a selector to an offset/function index within a program.
type EntryPoint struct {
	Selector felt.Felt
	Offset   uint64
}

// Class is the tagged variant over the two class representations.
type Class struct {
	Kind    Kind
	Legacy  *LegacyProgram
	Sierra  *SierraProgram
}

// NewLegacy wraps a legacy program as a Class.
func NewLegacy(p *LegacyProgram) Class { return Class{Kind: KindLegacy, Legacy: p} }

// NewSierra wraps a Sierra program as a Class.
func NewSierra(p *SierraProgram) Class { return Class{Kind: KindSierra, Sierra: p} }

// sierraClassVersionTag is the ascii domain separator prefixed to a Sierra
// class's declared contract_class_version before hashing, e.g.
// "CONTRACT_CLASS_V0.1.0" for version "0.1.0".
const sierraClassVersionTag = "CONTRACT_CLASS_V"

// legacyClassVersionTag is the domain separator for legacy (Cairo 0)
// classes, which carry no explicit version field of their own.
const legacyClassVersionTag = "CONTRACT_CLASS_V0"

func feltFromASCII(s string) felt.Felt {
	return felt.MustFromHex(asciiHex(s))
}

// entryPointsChainHash hashes one entry-point-type group as the flattened
// (selector, offset) sequence the real scheme chains per type, so adding,
// removing, or reordering an entry point of any type changes the class
// hash.
func entryPointsChainHash(eps []EntryPoint) felt.Felt {
	flat := make([]felt.Felt, 0, len(eps)*2)
	for _, ep := range eps {
		flat = append(flat, ep.Selector, felt.FromUint64(ep.Offset))
	}
	return poseidon.HashN(flat...)
}

// abiHash folds the ABI's raw bytes into field elements 31 at a time (the
// widest chunk that fits under the Stark field's ~252-bit modulus without
// reduction) and chains them with Poseidon.
//
// The Starknet-defined scheme hashes the ABI string with starknet_keccak
// instead; this repo has no keccak/selector-derivation primitive anywhere
// (txpool's account check works around the same gap), so ABI hashing here
// is not bit-exact with a real node's class hash. See the package doc
// comment on ComputeHash for the full list of gaps.
func abiHash(abi []byte) felt.Felt {
	const chunk = 31
	var words []felt.Felt
	for i := 0; i < len(abi); i += chunk {
		end := i + chunk
		if end > len(abi) {
			end = len(abi)
		}
		words = append(words, felt.New(new(big.Int).SetBytes(abi[i:end])))
	}
	return poseidon.HashN(words...)
}

// ComputeHash deterministically hashes the class representation, following
// the real Starknet class-hash scheme's shape: a domain-separated Poseidon
// hash chain over the version tag, each entry-point-type group (external,
// L1 handler, constructor), the ABI, and the program — rather than the
// single flat HashN(bytecode) this function used to compute, which ignored
// entry points, ABI, and version entirely (two classes with identical
// bytecode but different entry point selectors previously hashed equal).
//
// Known gaps versus a bit-exact implementation, both already acknowledged
// elsewhere in this repo rather than silently papered over:
//   - poseidon.HashN/Hash2 use a placeholder round-constant table, not the
//     canonical Starknet Poseidon3 constants (see primitives/felt/poseidon's
//     package doc); until that lands, no hash in this repo is bit-exact,
//     this one included.
//   - abiHash substitutes Poseidon for the real scheme's starknet_keccak,
//     since there is no keccak primitive in this repo.
//   - Legacy (Cairo 0) class hashing in the real scheme uses Pedersen hash
//     chains over the hinted compiled program representation (builtins,
//     flattened instructions-with-hints, etc.), not Poseidon over raw
//     bytecode; there is no Pedersen implementation in this repo, so the
//     Legacy branch below keeps the same Poseidon-chain shape as Sierra
//     instead of the real, structurally different legacy scheme.
//
// Differential test vectors against known mainnet class hashes are not
// included for the reasons above: this function cannot yet be bit-exact,
// so a test asserting equality with a real class hash would only pin the
// current placeholder in place. class_test.go instead asserts the
// properties that do hold regardless of the underlying primitive: the hash
// is deterministic, and it is sensitive to the version tag, each
// entry-point-type group, the ABI, and the program individually.
func (c Class) ComputeHash() Hash {
	switch c.Kind {
	case KindLegacy:
		return Hash{poseidon.HashN(
			feltFromASCII(legacyClassVersionTag),
			entryPointsChainHash(c.Legacy.EntryPoints["EXTERNAL"]),
			entryPointsChainHash(c.Legacy.EntryPoints["L1_HANDLER"]),
			entryPointsChainHash(c.Legacy.EntryPoints["CONSTRUCTOR"]),
			abiHash(c.Legacy.ABI),
			poseidon.HashN(c.Legacy.Bytecode...),
		)}
	case KindSierra:
		return Hash{poseidon.HashN(
			feltFromASCII(sierraClassVersionTag+c.Sierra.ContractClassVersion),
			entryPointsChainHash(c.Sierra.EntryPointsByType["EXTERNAL"]),
			entryPointsChainHash(c.Sierra.EntryPointsByType["L1_HANDLER"]),
			entryPointsChainHash(c.Sierra.EntryPointsByType["CONSTRUCTOR"]),
			abiHash(c.Sierra.ABI),
			poseidon.HashN(c.Sierra.Program...),
		)}
	default:
		return Hash{felt.Zero}
	}
}

// CompiledClass is the variant actually handed to the executor: Casm for a
// Sierra-compiled class, or the already-compiled legacy bytecode.
type CompiledClass struct {
	Kind  Kind
	Casm  *CasmProgram
	Legacy *LegacyProgram
}

// CasmProgram is the Sierra-compiled CASM bytecode.
type CasmProgram struct {
	Bytecode    []felt.Felt
	EntryPoints map[string][]EntryPoint
}

// compiledClassVersionTag is the version tag the real scheme chains first
// for a compiled (CASM) class hash.
const compiledClassVersionTag = "COMPILED_CLASS_V1"

// ComputeCompiledHash derives the CompiledClassHash from the compiled
// artifact; for legacy classes this equals the class hash itself. For
// Sierra, chains the version tag, each entry-point-type group, and the
// bytecode, mirroring ComputeHash's shape (and sharing its gaps — see that
// function's doc comment).
func (cc CompiledClass) ComputeCompiledHash(classHash Hash) CompiledHash {
	if cc.Kind == KindLegacy {
		return CompiledHash{classHash.Felt}
	}
	return CompiledHash{poseidon.HashN(
		feltFromASCII(compiledClassVersionTag),
		entryPointsChainHash(cc.Casm.EntryPoints["EXTERNAL"]),
		entryPointsChainHash(cc.Casm.EntryPoints["L1_HANDLER"]),
		entryPointsChainHash(cc.Casm.EntryPoints["CONSTRUCTOR"]),
		poseidon.HashN(cc.Casm.Bytecode...),
	)}
}

// ClassLeafTag is the domain separator used by the classes trie leaf
// encoding: Poseidon("CONTRACT_CLASS_LEAF_V0", compiled_hash).
var ClassLeafTag = felt.MustFromHex(asciiHex("CONTRACT_CLASS_LEAF_V0"))

func asciiHex(s string) string {
	const hextable = "0123456789abcdef"
	out := make([]byte, 2+len(s)*2)
	out[0], out[1] = '0', 'x'
	for i := 0; i < len(s); i++ {
		out[2+i*2] = hextable[s[i]>>4]
		out[2+i*2+1] = hextable[s[i]&0xf]
	}
	return string(out)
}

// LeafHash computes the classes-trie leaf value for a declared class.
func LeafHash(compiled CompiledHash) felt.Felt {
	return poseidon.Hash2(ClassLeafTag, compiled.Felt)
}
