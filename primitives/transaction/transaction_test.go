package transaction

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/lumenhq/lumen/primitives/address"
	"github.com/lumenhq/lumen/primitives/felt"
)

func sampleV3Invoke(nonce uint64) Transaction {
	return Transaction{
		Kind:    KindInvoke,
		Version: V3,
		Sender:  address.FromFelt(felt.MustFromHex("0xfeefee")),
		Nonce:   address.NonceFromUint64(nonce),
		FeeV3: &FeeV3{
			Tip: 1,
			Bounds: map[Resource]ResourceBounds{
				ResourceL1Gas:     {MaxAmount: 1000},
				ResourceL2Gas:     {MaxAmount: 1000},
				ResourceL1DataGas: {MaxAmount: 1000},
			},
		},
		Invoke: &InvokePayload{CallData: []felt.Felt{felt.FromUint64(1), felt.FromUint64(2)}},
	}
}

func TestValidateRejectsVersionZero(t *testing.T) {
	tx := sampleV3Invoke(0)
	tx.Version = 0
	require.ErrorIs(t, tx.Validate(), ErrUnsupportedVersion)
}

func TestValidateRequiresAllV3Bounds(t *testing.T) {
	tx := sampleV3Invoke(0)
	delete(tx.FeeV3.Bounds, ResourceL2Gas)
	require.Error(t, tx.Validate())
}

func TestComputeHashDeterministic(t *testing.T) {
	chain := ChainIDFromASCII("KATANA")
	tx := sampleV3Invoke(0)
	h1 := tx.ComputeHash(chain)
	h2 := tx.ComputeHash(chain)
	require.True(t, h1.Equal(h2))
}

func TestComputeHashDiffersByNonce(t *testing.T) {
	chain := ChainIDFromASCII("KATANA")
	a := sampleV3Invoke(0).ComputeHash(chain)
	b := sampleV3Invoke(1).ComputeHash(chain)
	require.False(t, a.Equal(b))
}

func TestTipFromV3(t *testing.T) {
	tx := sampleV3Invoke(0)
	require.Equal(t, uint64(1), tx.Tip())
}

func TestTipZeroForLegacy(t *testing.T) {
	tx := Transaction{Kind: KindInvoke, Version: V1, FeeV1V2: &FeeV1V2{}}
	require.Equal(t, uint64(0), tx.Tip())
}
