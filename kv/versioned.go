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

import "fmt"

// Codec decodes/encodes one historical on-disk layout of T. Decoders are
// tried newest-first; VersionTag identifies which variant a
// Codec produces/consumes.
type Codec[T any] struct {
	VersionTag byte
	Encode     func(T) []byte
	Decode     func([]byte) (T, error)
}

// Versioned wraps a chain of codecs for one logical entity, newest first.
// Encode always uses codecs[0] (the canonical latest layout); Decode tries
// each codec in order, so older on-disk rows remain readable forever
// without a migration pass.
type Versioned[T any] struct {
	codecs []Codec[T]
}

// NewVersioned builds a Versioned wrapper. Pass codecs newest-first; the
// first entry is used for all new writes.
func NewVersioned[T any](codecs ...Codec[T]) *Versioned[T] {
	if len(codecs) == 0 {
		panic("kv: Versioned requires at least one codec")
	}
	return &Versioned[T]{codecs: codecs}
}

// Encode serializes using the newest (canonical) codec, tagging the byte
// stream with its version so Decode can dispatch without guessing.
func (v *Versioned[T]) Encode(value T) []byte {
	c := v.codecs[0]
	body := c.Encode(value)
	out := make([]byte, 1+len(body))
	out[0] = c.VersionTag
	copy(out[1:], body)
	return out
}

// Decode tries every registered codec in newest-first order, matching on the
// leading version tag. Older decoders are cold paths: most reads hit the
// first (current) codec and return immediately.
func (v *Versioned[T]) Decode(raw []byte) (T, error) {
	var zero T
	if len(raw) == 0 {
		return zero, fmt.Errorf("kv: empty versioned payload")
	}
	tag, body := raw[0], raw[1:]
	for _, c := range v.codecs {
		if c.VersionTag == tag {
			return c.Decode(body)
		}
	}
	return zero, fmt.Errorf("kv: unknown version tag %d for versioned value", tag)
}
