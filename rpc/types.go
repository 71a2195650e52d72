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

package rpc

import (
	"bytes"
	"compress/gzip"
	"encoding/base64"
	"encoding/json"
	"io"
	"math/big"

	"github.com/lumenhq/lumen/internal/lumenerr"
	"github.com/lumenhq/lumen/primitives/address"
	"github.com/lumenhq/lumen/primitives/block"
	"github.com/lumenhq/lumen/primitives/class"
	"github.com/lumenhq/lumen/primitives/felt"
	"github.com/lumenhq/lumen/primitives/transaction"
)

// BlockID is the starknet_* "block_id" union: a tag ("latest"/"pending") or
// an explicit hash/number.
type BlockID struct {
	Tag    string
	Hash   *felt.Felt
	Number *uint64
}

func (b *BlockID) UnmarshalJSON(data []byte) error {
	var tag string
	if err := json.Unmarshal(data, &tag); err == nil {
		b.Tag = tag
		return nil
	}
	var obj struct {
		BlockHash   *felt.Felt `json:"block_hash"`
		BlockNumber *uint64    `json:"block_number"`
	}
	if err := json.Unmarshal(data, &obj); err != nil {
		return err
	}
	b.Hash, b.Number = obj.BlockHash, obj.BlockNumber
	return nil
}

// IsPending reports whether this id names the pending block tag.
func (b BlockID) IsPending() bool { return b.Tag == "pending" }

// headerView is the JSON shape get_block_with_* returns for a header.
type headerView struct {
	BlockHash        felt.Felt `json:"block_hash"`
	ParentHash       felt.Felt `json:"parent_hash"`
	BlockNumber      uint64    `json:"block_number"`
	NewRoot          felt.Felt `json:"new_root"`
	Timestamp        uint64    `json:"timestamp"`
	SequencerAddress felt.Felt `json:"sequencer_address"`
	StarknetVersion  string    `json:"starknet_version"`
}

func toHeaderView(h block.Header) headerView {
	return headerView{
		BlockHash:        h.Seal().Felt,
		ParentHash:       h.ParentHash.Felt,
		BlockNumber:      uint64(h.Number),
		NewRoot:          h.StateRoot,
		Timestamp:        h.Timestamp,
		SequencerAddress: h.SequencerAddress.Felt,
		StarknetVersion:  h.StarknetVersion,
	}
}

// wireTx is the JSON shape a transaction reads/writes as, shared across
// get_transaction_by_* and add_*_transaction. Not every field applies to
// every Kind; omitempty keeps each response shaped like the method's
// variant of the union.
type wireTx struct {
	Type            string      `json:"type"`
	Version         string      `json:"version"`
	TransactionHash *felt.Felt  `json:"transaction_hash,omitempty"`
	SenderAddress   *felt.Felt  `json:"sender_address,omitempty"`
	Nonce           *felt.Felt  `json:"nonce,omitempty"`
	Signature       []felt.Felt `json:"signature,omitempty"`

	MaxFee         *felt.Felt          `json:"max_fee,omitempty"`
	Tip            *string             `json:"tip,omitempty"`
	ResourceBounds *resourceBoundsView `json:"resource_bounds,omitempty"`

	Calldata []felt.Felt `json:"calldata,omitempty"`

	ClassHash           *felt.Felt  `json:"class_hash,omitempty"`
	CompiledClassHash   *felt.Felt  `json:"compiled_class_hash,omitempty"`
	ContractAddressSalt *felt.Felt  `json:"contract_address_salt,omitempty"`
	ConstructorCalldata []felt.Felt `json:"constructor_calldata,omitempty"`

	ContractClass json.RawMessage `json:"contract_class,omitempty"`

	EntryPointSelector *felt.Felt `json:"entry_point_selector,omitempty"`
	FromAddress        *felt.Felt `json:"from_address,omitempty"`
}

type resourceBoundsView struct {
	L1Gas     resourceBoundView `json:"l1_gas"`
	L2Gas     resourceBoundView `json:"l2_gas"`
	L1DataGas resourceBoundView `json:"l1_data_gas"`
}

type resourceBoundView struct {
	MaxAmount       string `json:"max_amount"`
	MaxPricePerUnit string `json:"max_price_per_unit"`
}

// toWireTx renders a stored transaction for get_transaction_by_* responses.
func toWireTx(twh transaction.TxWithHash) wireTx {
	w := wireTx{
		Type:            twh.Kind.String(),
		Version:         versionString(twh.Version),
		TransactionHash: &twh.Hash.Felt,
		Signature:       twh.Signature,
	}
	if !twh.Sender.IsZero() {
		w.SenderAddress = &twh.Sender.Felt
	}
	nonce := twh.Nonce.Felt
	w.Nonce = &nonce

	if twh.FeeV1V2 != nil {
		mf := feltFromHiLo(twh.FeeV1V2.MaxFee.Hi, twh.FeeV1V2.MaxFee.Lo)
		w.MaxFee = &mf
	}
	if twh.FeeV3 != nil {
		tip := feltHexFromUint64(twh.FeeV3.Tip)
		w.Tip = &tip
		w.ResourceBounds = &resourceBoundsView{
			L1Gas:     boundView(twh.FeeV3.Bounds[transaction.ResourceL1Gas]),
			L2Gas:     boundView(twh.FeeV3.Bounds[transaction.ResourceL2Gas]),
			L1DataGas: boundView(twh.FeeV3.Bounds[transaction.ResourceL1DataGas]),
		}
	}

	switch twh.Kind {
	case transaction.KindInvoke:
		if twh.Invoke != nil {
			w.Calldata = twh.Invoke.CallData
		}
	case transaction.KindDeclare:
		if twh.Declare != nil {
			ch := twh.Declare.Class.ComputeHash().Felt
			cch := twh.Declare.CompiledClassHash.Felt
			w.ClassHash, w.CompiledClassHash = &ch, &cch
		}
	case transaction.KindDeployAccount:
		if twh.DeployAccount != nil {
			ch := twh.DeployAccount.ClassHash.Felt
			w.ClassHash = &ch
			w.ContractAddressSalt = &twh.DeployAccount.ContractAddressSalt
			w.ConstructorCalldata = twh.DeployAccount.ConstructorCalldata
		}
	case transaction.KindL1Handler:
		if twh.L1Handler != nil {
			w.EntryPointSelector = &twh.L1Handler.EntryPointSelector
			w.FromAddress = &twh.L1Handler.FromAddress
			w.Calldata = twh.L1Handler.CallData
		}
	}
	return w
}

func boundView(b transaction.ResourceBounds) resourceBoundView {
	return resourceBoundView{
		MaxAmount:       feltHexFromUint64(b.MaxAmount),
		MaxPricePerUnit: feltHexFromHiLo(b.MaxPricePerUnit.Hi, b.MaxPricePerUnit.Lo),
	}
}

func feltHexFromUint64(v uint64) string { return felt.FromUint64(v).Hex() }

func feltFromHiLo(hi, lo uint64) felt.Felt {
	v := new(big.Int).Lsh(new(big.Int).SetUint64(hi), 64)
	v.Or(v, new(big.Int).SetUint64(lo))
	return felt.New(v)
}

func feltHexFromHiLo(hi, lo uint64) string { return feltFromHiLo(hi, lo).Hex() }

// hiLoFromFelt splits a felt's 32-byte big-endian encoding into the top and
// bottom 64-bit halves of its low 128 bits, the inverse of feltFromHiLo.
// Values above 2^128 (never legitimate fee caps or unit prices) lose their
// high bits; that ceiling is far beyond any real max_fee/max_price_per_unit.
func hiLoFromFelt(f felt.Felt) (hi, lo uint64) {
	b := f.Bytes()
	for i := 16; i < 24; i++ {
		hi = hi<<8 | uint64(b[i])
	}
	for i := 24; i < 32; i++ {
		lo = lo<<8 | uint64(b[i])
	}
	return hi, lo
}

// decodeWireTx parses an add_*_transaction request body into a
// transaction.Transaction ready for ComputeHash + pool submission. Only the
// v1 (legacy fee) and v3 (resource-bounds) fee shapes are handled — v0/v2
// invoke/deploy_account are not accepted by any Starknet node still in
// service, matching transaction.Validate's floor of V1.
func decodeWireTx(kind transaction.Kind, raw json.RawMessage) (transaction.Transaction, error) {
	var w wireTx
	if err := json.Unmarshal(raw, &w); err != nil {
		return transaction.Transaction{}, lumenerr.Wrap(lumenerr.InvalidRequest, "decoding transaction", err)
	}
	version, err := parseVersion(w.Version)
	if err != nil {
		return transaction.Transaction{}, err
	}

	t := transaction.Transaction{Kind: kind, Version: version, Signature: w.Signature}
	if w.SenderAddress != nil {
		t.Sender = address.FromFelt(*w.SenderAddress)
	}
	if w.Nonce != nil {
		t.Nonce = address.Nonce{Felt: *w.Nonce}
	}

	switch {
	case w.MaxFee != nil:
		hi, lo := hiLoFromFelt(*w.MaxFee)
		t.FeeV1V2 = &transaction.FeeV1V2{MaxFee: transaction.Uint128FromHiLo(hi, lo)}
	case w.ResourceBounds != nil:
		tip, err := parseFeltHex(derefString(w.Tip))
		if err != nil {
			return transaction.Transaction{}, err
		}
		bounds, err := boundsFromView(*w.ResourceBounds)
		if err != nil {
			return transaction.Transaction{}, err
		}
		t.FeeV3 = &transaction.FeeV3{Bounds: bounds, Tip: tip.BigInt().Uint64()}
	default:
		return transaction.Transaction{}, lumenerr.New(lumenerr.InvalidRequest, "transaction missing a fee model")
	}

	switch kind {
	case transaction.KindInvoke:
		t.Invoke = &transaction.InvokePayload{CallData: w.Calldata}
	case transaction.KindDeclare:
		cls, compiledHash, err := decodeContractClass(w.ContractClass, w.CompiledClassHash)
		if err != nil {
			return transaction.Transaction{}, err
		}
		t.Declare = &transaction.DeclarePayload{Class: cls, CompiledClassHash: compiledHash}
	case transaction.KindDeployAccount:
		if w.ClassHash == nil || w.ContractAddressSalt == nil {
			return transaction.Transaction{}, lumenerr.New(lumenerr.InvalidRequest, "deploy_account missing class_hash or salt")
		}
		t.DeployAccount = &transaction.DeployAccountPayload{
			ClassHash:           class.Hash{Felt: *w.ClassHash},
			ContractAddressSalt: *w.ContractAddressSalt,
			ConstructorCalldata: w.ConstructorCalldata,
		}
	}
	return t, nil
}

func derefString(s *string) string {
	if s == nil {
		return "0x0"
	}
	return *s
}

func parseFeltHex(s string) (felt.Felt, error) {
	f, err := felt.FromHex(s)
	if err != nil {
		return felt.Zero, lumenerr.Wrap(lumenerr.InvalidRequest, "malformed felt", err)
	}
	return f, nil
}

func boundsFromView(v resourceBoundsView) (map[transaction.Resource]transaction.ResourceBounds, error) {
	entries := []struct {
		resource transaction.Resource
		view     resourceBoundView
	}{
		{transaction.ResourceL1Gas, v.L1Gas},
		{transaction.ResourceL2Gas, v.L2Gas},
		{transaction.ResourceL1DataGas, v.L1DataGas},
	}
	out := make(map[transaction.Resource]transaction.ResourceBounds, len(entries))
	for _, e := range entries {
		amount, err := parseFeltHex(e.view.MaxAmount)
		if err != nil {
			return nil, err
		}
		price, err := parseFeltHex(e.view.MaxPricePerUnit)
		if err != nil {
			return nil, err
		}
		hi, lo := hiLoFromFelt(price)
		out[e.resource] = transaction.ResourceBounds{MaxAmount: amount.BigInt().Uint64(), MaxPricePerUnit: transaction.Uint128FromHiLo(hi, lo)}
	}
	return out, nil
}

// queryVersionBase is 2**128, the offset Starknet adds to a transaction
// version to mark it "simulate only, never broadcast"; versions at or above
// it are rejected on the write path.
var queryVersionBase = new(big.Int).Lsh(big.NewInt(1), 128)

func parseVersion(s string) (transaction.Version, error) {
	f, err := felt.FromHex(s)
	if err != nil {
		return 0, lumenerr.Wrap(lumenerr.InvalidRequest, "malformed version", err)
	}
	bi := f.BigInt()
	if bi.Cmp(queryVersionBase) >= 0 {
		return 0, lumenerr.New(lumenerr.Unsupported, "query-only transaction version rejected")
	}
	if !bi.IsUint64() {
		return 0, transaction.ErrUnsupportedVersion
	}
	switch bi.Uint64() {
	case 1:
		return transaction.V1, nil
	case 2:
		return transaction.V2, nil
	case 3:
		return transaction.V3, nil
	default:
		return 0, transaction.ErrUnsupportedVersion
	}
}

func versionString(v transaction.Version) string { return feltHexFromUint64(uint64(v)) }

// wireEntryPoint is one entry_points_by_type[...] element; legacy classes
// key an offset, Sierra classes key a function_idx, never both.
type wireEntryPoint struct {
	Selector    felt.Felt `json:"selector"`
	Offset      *string   `json:"offset,omitempty"`
	FunctionIdx *uint64   `json:"function_idx,omitempty"`
}

type wireSierraClass struct {
	SierraProgram        []felt.Felt                 `json:"sierra_program"`
	ContractClassVersion string                      `json:"contract_class_version"`
	EntryPointsByType    map[string][]wireEntryPoint `json:"entry_points_by_type"`
	ABI                  string                      `json:"abi"`
}

type wireLegacyClass struct {
	Program           string                      `json:"program"`
	EntryPointsByType map[string][]wireEntryPoint `json:"entry_points_by_type"`
	ABI               json.RawMessage             `json:"abi"`
}

// decodeContractClass parses a declare transaction's inline contract_class
// into the stored class representation. Sierra classes carry a
// compiled_class_hash in the outer request; legacy classes derive their
// compiled hash from the class hash itself (per class.CompiledClass's
// legacy-equals-class-hash invariant).
func decodeContractClass(raw json.RawMessage, compiledClassHash *felt.Felt) (class.Class, class.CompiledHash, error) {
	if len(raw) == 0 {
		return class.Class{}, class.CompiledHash{}, lumenerr.New(lumenerr.InvalidRequest, "declare transaction missing contract_class")
	}
	var probe struct {
		SierraProgram []felt.Felt `json:"sierra_program"`
	}
	if err := json.Unmarshal(raw, &probe); err == nil && len(probe.SierraProgram) > 0 {
		var w wireSierraClass
		if err := json.Unmarshal(raw, &w); err != nil {
			return class.Class{}, class.CompiledHash{}, lumenerr.Wrap(lumenerr.InvalidRequest, "decoding sierra class", err)
		}
		if compiledClassHash == nil {
			return class.Class{}, class.CompiledHash{}, lumenerr.New(lumenerr.InvalidRequest, "declare v2/v3 missing compiled_class_hash")
		}
		entryPoints, err := entryPointsFromWire(w.EntryPointsByType)
		if err != nil {
			return class.Class{}, class.CompiledHash{}, err
		}
		sierra := &class.SierraProgram{
			Program:               w.SierraProgram,
			EntryPointsByType:     entryPoints,
			ABI:                   []byte(w.ABI),
			ContractClassVersion:  w.ContractClassVersion,
		}
		return class.NewSierra(sierra), class.CompiledHash{Felt: *compiledClassHash}, nil
	}

	var w wireLegacyClass
	if err := json.Unmarshal(raw, &w); err != nil {
		return class.Class{}, class.CompiledHash{}, lumenerr.Wrap(lumenerr.InvalidRequest, "decoding legacy class", err)
	}
	bytecode, err := decodeLegacyProgram(w.Program)
	if err != nil {
		return class.Class{}, class.CompiledHash{}, err
	}
	entryPoints, err := entryPointsFromWire(w.EntryPointsByType)
	if err != nil {
		return class.Class{}, class.CompiledHash{}, err
	}
	legacy := &class.LegacyProgram{Bytecode: bytecode, EntryPoints: entryPoints, ABI: []byte(w.ABI)}
	cls := class.NewLegacy(legacy)
	return cls, class.CompiledHash{Felt: cls.ComputeHash().Felt}, nil
}

// decodeLegacyProgram unpacks a base64(gzip(json)) legacy Cairo 0 program
// into its flat felt data segment; hints, builtins and debug info are not
// needed by this node's executor and are dropped.
func decodeLegacyProgram(encoded string) ([]felt.Felt, error) {
	compressed, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, lumenerr.Wrap(lumenerr.InvalidRequest, "decoding legacy program base64", err)
	}
	r, err := gzip.NewReader(bytes.NewReader(compressed))
	if err != nil {
		return nil, lumenerr.Wrap(lumenerr.InvalidRequest, "decompressing legacy program", err)
	}
	defer r.Close()
	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, lumenerr.Wrap(lumenerr.InvalidRequest, "reading legacy program", err)
	}
	var body struct {
		Data []string `json:"data"`
	}
	if err := json.Unmarshal(raw, &body); err != nil {
		return nil, lumenerr.Wrap(lumenerr.InvalidRequest, "decoding legacy program body", err)
	}
	out := make([]felt.Felt, len(body.Data))
	for i, s := range body.Data {
		f, err := felt.FromHex(s)
		if err != nil {
			return nil, lumenerr.Wrap(lumenerr.InvalidRequest, "decoding legacy program data element", err)
		}
		out[i] = f
	}
	return out, nil
}

func entryPointsFromWire(m map[string][]wireEntryPoint) (map[string][]class.EntryPoint, error) {
	out := make(map[string][]class.EntryPoint, len(m))
	for k, eps := range m {
		conv := make([]class.EntryPoint, len(eps))
		for i, ep := range eps {
			var offset uint64
			switch {
			case ep.Offset != nil:
				f, err := felt.FromHex(*ep.Offset)
				if err != nil {
					return nil, lumenerr.Wrap(lumenerr.InvalidRequest, "decoding entry point offset", err)
				}
				offset = f.BigInt().Uint64()
			case ep.FunctionIdx != nil:
				offset = *ep.FunctionIdx
			}
			conv[i] = class.EntryPoint{Selector: ep.Selector, Offset: offset}
		}
		out[k] = conv
	}
	return out, nil
}
