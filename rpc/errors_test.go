package rpc

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/lumenhq/lumen/internal/lumenerr"
)

func TestToJSONRPCErrorMapsKindToCode(t *testing.T) {
	err := lumenerr.New(lumenerr.NotFound, "block not found")
	out := ToJSONRPCError(err)
	require.Equal(t, codeNotFound, out.Code)
	require.Contains(t, out.Message, "block not found")
}

func TestToJSONRPCErrorUnknownKindFallsBackToInternal(t *testing.T) {
	out := ToJSONRPCError(assertPlainError{})
	require.Equal(t, InternalErrorCode, out.Code)
}

func TestToJSONRPCErrorCarriesData(t *testing.T) {
	err := lumenerr.WithData(lumenerr.New(lumenerr.InvalidRequest, "bad nonce"), map[string]any{"expected": 3})
	out := ToJSONRPCError(err)
	require.Equal(t, codeInvalidRequest, out.Code)
	require.Equal(t, map[string]any{"expected": 3}, out.Data)
}

func TestToJSONRPCErrorNilIsNil(t *testing.T) {
	require.Nil(t, ToJSONRPCError(nil))
}

type assertPlainError struct{}

func (assertPlainError) Error() string { return "boom" }
