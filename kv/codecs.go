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

package kv

import (
	"encoding/json"

	"github.com/lumenhq/lumen/primitives/block"
	"github.com/lumenhq/lumen/primitives/class"
	"github.com/lumenhq/lumen/primitives/receipt"
	"github.com/lumenhq/lumen/primitives/transaction"
)

// jsonCodec builds a version-1 Codec[T] that encodes with encoding/json.
// No binary serialization library (protobuf, msgpack, RLP) is a direct
// dependency anywhere in go.mod, and none of the retrieval pack's examples
// reach for one to persist domain types either — erigon's own tables store
// RLP, but RLP arrives there through erigon's own internal package, not an
// importable module this tree could pull in. JSON is therefore the
// pragmatic default: Versioned's codec-chain-by-VersionTag design already
// gives this node §9's "backward reads supported" guarantee regardless of
// which serialization a given tag uses, so swapping in a binary codec later
// is a matter of registering VersionTag 2 ahead of this one, not a schema
// migration.
func jsonCodec[T any](tag byte) Codec[T] {
	return Codec[T]{
		VersionTag: tag,
		Encode: func(v T) []byte {
			b, err := json.Marshal(v)
			if err != nil {
				panic(err)
			}
			return b
		},
		Decode: func(b []byte) (T, error) {
			var v T
			err := json.Unmarshal(b, &v)
			return v, err
		},
	}
}

// DefaultHeaderCodec is the canonical on-disk layout for block.Header.
func DefaultHeaderCodec() *Versioned[block.Header] {
	return NewVersioned(jsonCodec[block.Header](1))
}

// DefaultClassCodec is the canonical on-disk layout for class.Class.
func DefaultClassCodec() *Versioned[class.Class] {
	return NewVersioned(jsonCodec[class.Class](1))
}

// DefaultReceiptCodec is the canonical on-disk layout for receipt.Receipt.
func DefaultReceiptCodec() *Versioned[receipt.Receipt] {
	return NewVersioned(jsonCodec[receipt.Receipt](1))
}

// DefaultTransactionCodec is the canonical on-disk layout for
// transaction.TxWithHash.
func DefaultTransactionCodec() *Versioned[transaction.TxWithHash] {
	return NewVersioned(jsonCodec[transaction.TxWithHash](1))
}

// DefaultTraceCodec is the canonical on-disk layout for receipt.Trace.
func DefaultTraceCodec() *Versioned[receipt.Trace] {
	return NewVersioned(jsonCodec[receipt.Trace](1))
}
