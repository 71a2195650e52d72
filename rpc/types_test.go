package rpc

import (
	"bytes"
	"compress/gzip"
	"encoding/base64"
	"encoding/json"
	"math/big"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/lumenhq/lumen/internal/lumenerr"
	"github.com/lumenhq/lumen/primitives/felt"
	"github.com/lumenhq/lumen/primitives/transaction"
)

func TestHiLoFeltRoundTrip(t *testing.T) {
	hi, lo := uint64(0xDEADBEEF), uint64(0xCAFEBABE12345678)
	f := feltFromHiLo(hi, lo)
	gotHi, gotLo := hiLoFromFelt(f)
	require.Equal(t, hi, gotHi)
	require.Equal(t, lo, gotLo)
}

func TestHiLoFeltZero(t *testing.T) {
	hi, lo := hiLoFromFelt(felt.Zero)
	require.Equal(t, uint64(0), hi)
	require.Equal(t, uint64(0), lo)
}

func TestParseVersionAccepted(t *testing.T) {
	for s, want := range map[string]transaction.Version{
		"0x1": transaction.V1,
		"0x2": transaction.V2,
		"0x3": transaction.V3,
	} {
		got, err := parseVersion(s)
		require.NoError(t, err)
		require.Equal(t, want, got)
	}
}

func TestParseVersionRejectsQueryOnly(t *testing.T) {
	queryV3 := new(big.Int).Add(queryVersionBase, big.NewInt(3))
	_, err := parseVersion("0x" + queryV3.Text(16))
	require.Error(t, err)
	require.Equal(t, lumenerr.Unsupported, lumenerr.KindOf(err))
}

func TestParseVersionRejectsUnknown(t *testing.T) {
	_, err := parseVersion("0x9")
	require.ErrorIs(t, err, transaction.ErrUnsupportedVersion)
}

func TestDecodeWireTxInvokeV3(t *testing.T) {
	raw, err := json.Marshal(map[string]any{
		"type":           "INVOKE",
		"version":        "0x3",
		"sender_address": "0x1",
		"nonce":          "0x5",
		"signature":      []string{},
		"calldata":       []string{"0x2a"},
		"tip":            "0x0",
		"resource_bounds": map[string]any{
			"l1_gas":      map[string]string{"max_amount": "0x100", "max_price_per_unit": "0x1"},
			"l2_gas":      map[string]string{"max_amount": "0x0", "max_price_per_unit": "0x0"},
			"l1_data_gas": map[string]string{"max_amount": "0x0", "max_price_per_unit": "0x0"},
		},
	})
	require.NoError(t, err)

	tx, err := decodeWireTx(transaction.KindInvoke, raw)
	require.NoError(t, err)
	require.Equal(t, transaction.V3, tx.Version)
	require.NotNil(t, tx.FeeV3)
	require.Equal(t, uint64(0x100), tx.FeeV3.Bounds[transaction.ResourceL1Gas].MaxAmount)
	require.NotNil(t, tx.Invoke)
	require.Len(t, tx.Invoke.CallData, 1)
	require.NoError(t, tx.Validate())
}

func TestDecodeWireTxMissingFeeModelRejected(t *testing.T) {
	raw, err := json.Marshal(map[string]any{
		"type":           "INVOKE",
		"version":        "0x1",
		"sender_address": "0x1",
		"nonce":          "0x0",
	})
	require.NoError(t, err)
	_, err = decodeWireTx(transaction.KindInvoke, raw)
	require.Error(t, err)
}

func gzipBase64JSON(t *testing.T, data []string) string {
	var body bytes.Buffer
	gz := gzip.NewWriter(&body)
	payload, err := json.Marshal(map[string]any{"data": data})
	require.NoError(t, err)
	_, err = gz.Write(payload)
	require.NoError(t, err)
	require.NoError(t, gz.Close())
	return base64.StdEncoding.EncodeToString(body.Bytes())
}

func TestDecodeContractClassLegacy(t *testing.T) {
	program := gzipBase64JSON(t, []string{"0x1", "0x2", "0x3"})
	raw, err := json.Marshal(map[string]any{
		"program":              program,
		"entry_points_by_type": map[string]any{"CONSTRUCTOR": []any{}},
		"abi":                  "[]",
	})
	require.NoError(t, err)

	cls, compiledHash, err := decodeContractClass(raw, nil)
	require.NoError(t, err)
	require.NotNil(t, cls.Legacy)
	require.Len(t, cls.Legacy.Bytecode, 3)
	require.Equal(t, cls.ComputeHash().Felt, compiledHash.Felt)
}

func TestDecodeContractClassSierraRequiresCompiledClassHash(t *testing.T) {
	raw, err := json.Marshal(map[string]any{
		"sierra_program":         []string{"0x1"},
		"contract_class_version": "0.1.0",
		"entry_points_by_type":   map[string]any{},
		"abi":                    "[]",
	})
	require.NoError(t, err)

	_, _, err = decodeContractClass(raw, nil)
	require.Error(t, err)
}

func TestBlockIDUnmarshalsTagAndExplicit(t *testing.T) {
	var tagged BlockID
	require.NoError(t, json.Unmarshal([]byte(`"pending"`), &tagged))
	require.True(t, tagged.IsPending())

	var byNumber BlockID
	require.NoError(t, json.Unmarshal([]byte(`{"block_number":42}`), &byNumber))
	require.NotNil(t, byNumber.Number)
	require.Equal(t, uint64(42), *byNumber.Number)
}
