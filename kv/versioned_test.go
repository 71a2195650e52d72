package kv

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/require"
)

func uint64Versioned() *Versioned[uint64] {
	return NewVersioned(
		Codec[uint64]{
			VersionTag: 2,
			Encode: func(v uint64) []byte {
				b := make([]byte, 8)
				binary.BigEndian.PutUint64(b, v)
				return b
			},
			Decode: func(b []byte) (uint64, error) {
				return binary.BigEndian.Uint64(b), nil
			},
		},
		Codec[uint64]{
			VersionTag: 1,
			Encode: func(v uint64) []byte {
				b := make([]byte, 4)
				binary.BigEndian.PutUint32(b, uint32(v))
				return b
			},
			Decode: func(b []byte) (uint64, error) {
				return uint64(binary.BigEndian.Uint32(b)), nil
			},
		},
	)
}

func TestVersionedRoundTripNewest(t *testing.T) {
	v := uint64Versioned()
	enc := v.Encode(42)
	dec, err := v.Decode(enc)
	require.NoError(t, err)
	require.Equal(t, uint64(42), dec)
}

func TestVersionedDecodesOlderVariant(t *testing.T) {
	v := uint64Versioned()
	old := append([]byte{1}, 0, 0, 0, 7)
	dec, err := v.Decode(old)
	require.NoError(t, err)
	require.Equal(t, uint64(7), dec)
}

func TestVersionedUnknownTag(t *testing.T) {
	v := uint64Versioned()
	_, err := v.Decode([]byte{99, 1, 2, 3})
	require.Error(t, err)
}
