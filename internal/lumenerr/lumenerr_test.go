package lumenerr

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNewCarriesKind(t *testing.T) {
	err := New(NotFound, "block 5 absent")
	require.Equal(t, NotFound, KindOf(err))
	require.True(t, Is(err, NotFound))
	require.False(t, Is(err, Internal))
}

func TestWrapPreservesCauseForUnwrap(t *testing.T) {
	cause := errors.New("mdbx: disk full")
	err := Wrap(ResourceExhausted, "commit failed", cause)
	require.ErrorIs(t, err, cause)
	require.Equal(t, ResourceExhausted, KindOf(err))
}

func TestKindOfDefaultsToInternal(t *testing.T) {
	require.Equal(t, Internal, KindOf(errors.New("plain")))
}

func TestWithDataAttachesPayload(t *testing.T) {
	err := WithData(New(InvalidRequest, "bad nonce"), map[string]any{"expected": 3})
	var le *Error
	require.True(t, errors.As(err, &le))
	require.Equal(t, map[string]any{"expected": 3}, le.Data)
}
