package executor

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/lumenhq/lumen/primitives/receipt"
)

func TestSuccessResultIsSuccess(t *testing.T) {
	r := Success(receipt.Receipt{}, receipt.Trace{})
	require.True(t, r.IsSuccess())
	require.NotNil(t, r.Receipt)
	require.NoError(t, r.Err)
}

func TestFailedResultIsNotSuccess(t *testing.T) {
	r := Failed(errors.New("reverted"))
	require.False(t, r.IsSuccess())
	require.Nil(t, r.Receipt)
	require.Error(t, r.Err)
}

func TestDefaultBlockLimitsMatchesChainInfo(t *testing.T) {
	require.Equal(t, uint64(50_000_000), DefaultBlockLimits().CairoSteps)
}

func TestDefaultSimulationFlagsEnableEverything(t *testing.T) {
	f := DefaultSimulationFlags()
	require.True(t, f.AccountValidation)
	require.True(t, f.Fee)
	require.True(t, f.NonceCheck)
}
