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

// Package external models the collaborators this node reaches over the
// network rather than through its own storage: the feeder gateway, the
// sequencer gateway's write side, and an L1 contract reader. The core never
// imports a concrete HTTP client directly — provider.Fork and the sync
// pipeline's stages consume these through the small interfaces they already
// declare (provider.RemoteReader, stages.Downloader).
package external

import (
	"bytes"
	"compress/gzip"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"math/big"
	"net/http"
	"net/url"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/lumenhq/lumen/internal/lumenerr"
	"github.com/lumenhq/lumen/internal/lumenlog"
	"github.com/lumenhq/lumen/primitives/address"
	"github.com/lumenhq/lumen/primitives/block"
	"github.com/lumenhq/lumen/primitives/class"
	"github.com/lumenhq/lumen/primitives/felt"
	"github.com/lumenhq/lumen/primitives/receipt"
	"github.com/lumenhq/lumen/primitives/state"
	"github.com/lumenhq/lumen/primitives/transaction"
	"github.com/lumenhq/lumen/provider"
)

var log = lumenlog.Named("external")

// ChainNetwork selects the feeder/gateway base URL the way the chain id
// does in the original sequencer gateway client.
type ChainNetwork string

const (
	Mainnet ChainNetwork = "mainnet"
	Sepolia ChainNetwork = "sepolia"
)

func defaultFeederBaseURL(n ChainNetwork) string {
	if n == Sepolia {
		return "https://alpha-sepolia.starknet.io/feeder_gateway"
	}
	return "https://alpha-mainnet.starknet.io/feeder_gateway"
}

func defaultGatewayBaseURL(n ChainNetwork) string {
	if n == Sepolia {
		return "https://alpha-sepolia.starknet.io/gateway"
	}
	return "https://alpha-mainnet.starknet.io/gateway"
}

// Block is what the feeder gateway's get_block returns, trimmed to the
// fields this node persists; a FeederClient decodes its wire response
// straight into this shape.
type Block struct {
	Block       block.Block
	StateUpdate *state.StateUpdates
	Classes     map[class.Hash]class.Class
	Receipts    []receipt.Receipt
}

// FeederClient is the read side of feeder gateway surface.
type FeederClient interface {
	GetBlock(ctx context.Context, n block.Number) (Block, error)
	GetStateUpdate(ctx context.Context, n block.Number) (*state.StateUpdates, error)
	GetClassByHash(ctx context.Context, h class.Hash) (class.Class, error)
	GetPublicKey(ctx context.Context) (felt.Felt, error)
	LatestBlockNumber(ctx context.Context) (block.Number, error)
}

// RateLimitedError marks a feeder response that should be retried with
// backoff rather than treated as a hard failure.
type RateLimitedError struct{ RetryAfter time.Duration }

func (e RateLimitedError) Error() string { return "feeder gateway: rate limited" }

// HTTPFeederClient is the concrete FeederClient, rate-limited on the client
// side (golang.org/x/time/rate) and retried with exponential backoff
// (github.com/cenkalti/backoff/v4, the same library stages.BatchDownloader
// uses for its own Retryable errors) on a 429 response.
type HTTPFeederClient struct {
	baseURL string
	http    *http.Client
	limiter *rate.Limiter
}

// NewHTTPFeederClient builds a feeder client for network, or baseURL if
// non-empty (test/private-network override).
func NewHTTPFeederClient(network ChainNetwork, baseURL string, requestsPerSecond float64) *HTTPFeederClient {
	if baseURL == "" {
		baseURL = defaultFeederBaseURL(network)
	}
	if requestsPerSecond <= 0 {
		requestsPerSecond = 10
	}
	return &HTTPFeederClient{
		baseURL: baseURL,
		http:    &http.Client{Timeout: 30 * time.Second},
		limiter: rate.NewLimiter(rate.Limit(requestsPerSecond), 1),
	}
}

func (c *HTTPFeederClient) getJSON(ctx context.Context, path string, query url.Values, out any) error {
	op := func() error {
		if err := c.limiter.Wait(ctx); err != nil {
			return backoff.Permanent(err)
		}
		u := c.baseURL + path
		if len(query) > 0 {
			u += "?" + query.Encode()
		}
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
		if err != nil {
			return backoff.Permanent(err)
		}
		resp, err := c.http.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()

		if resp.StatusCode == http.StatusTooManyRequests {
			return RateLimitedError{}
		}
		if resp.StatusCode != http.StatusOK {
			return backoff.Permanent(lumenerr.Newf(lumenerr.Internal, "feeder gateway %s: status %d", path, resp.StatusCode))
		}
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return backoff.Permanent(lumenerr.Wrap(lumenerr.Internal, "decoding feeder response", err))
		}
		return nil
	}

	bo := backoff.WithContext(backoff.NewExponentialBackOff(), ctx)
	if err := backoff.Retry(op, bo); err != nil {
		if pe, ok := err.(*backoff.PermanentError); ok {
			return pe.Unwrap()
		}
		return err
	}
	return nil
}

func (c *HTTPFeederClient) GetBlock(ctx context.Context, n block.Number) (Block, error) {
	var wire feederBlock
	if err := c.getJSON(ctx, "/get_block", url.Values{"blockNumber": {fmt.Sprint(uint64(n))}}, &wire); err != nil {
		return Block{}, err
	}
	log.Debug("fetched block from feeder", zap.Uint64("number", uint64(n)))
	return decodeFeederBlock(wire)
}

// LatestBlockNumber returns the feeder's current chain tip, the number a
// sync driver polls to decide how far the pipeline should advance.
func (c *HTTPFeederClient) LatestBlockNumber(ctx context.Context) (block.Number, error) {
	var wire feederBlock
	if err := c.getJSON(ctx, "/get_block", url.Values{"blockNumber": {"latest"}}, &wire); err != nil {
		return 0, err
	}
	return block.Number(wire.BlockNumber), nil
}

func (c *HTTPFeederClient) GetStateUpdate(ctx context.Context, n block.Number) (*state.StateUpdates, error) {
	var wire feederStateUpdate
	if err := c.getJSON(ctx, "/get_state_update", url.Values{"blockNumber": {fmt.Sprint(uint64(n))}}, &wire); err != nil {
		return nil, err
	}
	return decodeFeederStateUpdate(wire)
}

func (c *HTTPFeederClient) GetClassByHash(ctx context.Context, h class.Hash) (class.Class, error) {
	var wire feederClass
	if err := c.getJSON(ctx, "/get_class_by_hash", url.Values{"classHash": {h.Felt.Hex()}}, &wire); err != nil {
		return class.Class{}, err
	}
	return decodeFeederClass(wire)
}

func (c *HTTPFeederClient) GetPublicKey(ctx context.Context) (felt.Felt, error) {
	var hex string
	if err := c.getJSON(ctx, "/get_public_key", nil, &hex); err != nil {
		return felt.Zero, err
	}
	return felt.FromHex(hex)
}

// BlockByNumber implements provider.RemoteReader so a Fork can be
// parameterized directly with an HTTPFeederClient.
func (c *HTTPFeederClient) BlockByNumber(ctx context.Context, n block.Number) (provider.RemoteBlock, error) {
	b, err := c.GetBlock(ctx, n)
	if err != nil {
		return provider.RemoteBlock{}, err
	}
	return provider.RemoteBlock{Block: b.Block, StateUpdate: b.StateUpdate, Classes: b.Classes, Receipts: b.Receipts}, nil
}

// ---- wire decoding ---------------------------------------------------

type feederGasPrices struct {
	PriceInWei string `json:"price_in_wei"`
	PriceInFri string `json:"price_in_fri"`
}

type feederBlock struct {
	BlockNumber       uint64              `json:"block_number"`
	ParentBlockHash   string              `json:"parent_block_hash"`
	Timestamp         uint64              `json:"timestamp"`
	SequencerAddress  string              `json:"sequencer_address"`
	StateRoot         string              `json:"state_root"`
	L1GasPrice        feederGasPrices     `json:"l1_gas_price"`
	L2GasPrice        feederGasPrices     `json:"l2_gas_price"`
	L1DataGasPrice    feederGasPrices     `json:"l1_data_gas_price"`
	StarknetVersion   string              `json:"starknet_version"`
	Transactions      []feederTransaction `json:"transactions"`
	TransactionReceipts []feederReceipt   `json:"transaction_receipts"`
	StateUpdate       feederStateUpdate   `json:"state_update"`
}

type feederTransaction struct {
	Type             string   `json:"type"`
	Version          string   `json:"version"`
	TransactionHash  string   `json:"transaction_hash"`
	SenderAddress    string   `json:"sender_address"`
	Nonce            string   `json:"nonce"`
	MaxFee           string   `json:"max_fee"`
	Signature        []string `json:"signature"`
	Calldata         []string `json:"calldata"`
	ClassHash        string   `json:"class_hash"`
	ContractAddressSalt string `json:"contract_address_salt"`
	ConstructorCalldata []string `json:"constructor_calldata"`
}

type feederEvent struct {
	FromAddress string   `json:"from_address"`
	Keys        []string `json:"keys"`
	Data        []string `json:"data"`
}

type feederMessage struct {
	FromAddress string   `json:"from_address"`
	ToAddress   string   `json:"to_address"`
	Payload     []string `json:"payload"`
}

type feederReceipt struct {
	TransactionHash string          `json:"transaction_hash"`
	ActualFee       string          `json:"actual_fee"`
	Events          []feederEvent   `json:"events"`
	L2ToL1Messages  []feederMessage `json:"l2_to_l1_messages"`
	ExecutionStatus string          `json:"execution_status"`
	RevertError     *string         `json:"revert_error,omitempty"`
	ExecutionResources struct {
		Steps uint64 `json:"n_steps"`
	} `json:"execution_resources"`
}

type feederStorageDiff struct {
	Address string `json:"address"`
	Key     string `json:"key"`
	Value   string `json:"value"`
}

type feederNonceUpdate struct {
	ContractAddress string `json:"contract_address"`
	Nonce           string `json:"nonce"`
}

type feederDeployedContract struct {
	Address   string `json:"address"`
	ClassHash string `json:"class_hash"`
}

type feederDeclaredClass struct {
	ClassHash         string `json:"class_hash"`
	CompiledClassHash string `json:"compiled_class_hash"`
}

type feederStateUpdate struct {
	NewRoot   string `json:"new_root"`
	StateDiff struct {
		StorageDiffs              map[string][]feederStorageDiff `json:"storage_diffs"`
		Nonces                    []feederNonceUpdate             `json:"nonces"`
		DeployedContracts         []feederDeployedContract        `json:"deployed_contracts"`
		ReplacedClasses           []feederDeployedContract        `json:"replaced_classes"`
		DeclaredClasses           []feederDeclaredClass           `json:"declared_classes"`
		OldDeclaredContracts      []string                        `json:"old_declared_contracts"`
	} `json:"state_diff"`
}

type feederEntryPoint struct {
	Selector string `json:"selector"`
	Offset   string `json:"offset"`
}

type feederClass struct {
	Program           json.RawMessage             `json:"program,omitempty"`
	SierraProgram     []string                    `json:"sierra_program,omitempty"`
	ContractClassVersion string                   `json:"contract_class_version,omitempty"`
	EntryPointsByType map[string][]feederEntryPoint `json:"entry_points_by_type"`
	ABI               json.RawMessage             `json:"abi"`
}

func feltHex(s string) felt.Felt {
	if s == "" {
		return felt.Zero
	}
	f, err := felt.FromHex(s)
	if err != nil {
		return felt.Zero
	}
	return f
}

func feltSlice(ss []string) []felt.Felt {
	out := make([]felt.Felt, len(ss))
	for i, s := range ss {
		out[i] = feltHex(s)
	}
	return out
}

func decodeFeederBlock(w feederBlock) (Block, error) {
	header := block.Header{
		Number:           block.Number(w.BlockNumber),
		ParentHash:       block.Hash{Felt: feltHex(w.ParentBlockHash)},
		Timestamp:        w.Timestamp,
		SequencerAddress: address.FromFelt(feltHex(w.SequencerAddress)),
		StateRoot:        feltHex(w.StateRoot),
		L1GasPrices:      block.GasPrices{PriceInWei: feltHex(w.L1GasPrice.PriceInWei), PriceInFri: feltHex(w.L1GasPrice.PriceInFri)},
		L2GasPrices:      block.GasPrices{PriceInWei: feltHex(w.L2GasPrice.PriceInWei), PriceInFri: feltHex(w.L2GasPrice.PriceInFri)},
		L1DataGasPrices:  block.GasPrices{PriceInWei: feltHex(w.L1DataGasPrice.PriceInWei), PriceInFri: feltHex(w.L1DataGasPrice.PriceInFri)},
		StarknetVersion:  w.StarknetVersion,
		TransactionCount: uint64(len(w.Transactions)),
	}

	txs := make([]transaction.TxWithHash, len(w.Transactions))
	for i, ft := range w.Transactions {
		tx, err := decodeFeederTransaction(ft)
		if err != nil {
			return Block{}, err
		}
		txs[i] = transaction.TxWithHash{Transaction: tx, Hash: transaction.Hash{Felt: feltHex(ft.TransactionHash)}}
	}

	receipts := make([]receipt.Receipt, len(w.TransactionReceipts))
	var eventsCount uint64
	for i, fr := range w.TransactionReceipts {
		r := decodeFeederReceipt(fr)
		receipts[i] = r
		eventsCount += uint64(len(r.Events))
	}
	header.EventsCount = eventsCount

	su, err := decodeFeederStateUpdate(w.StateUpdate)
	if err != nil {
		return Block{}, err
	}

	return Block{
		Block:       block.Block{Header: header, Body: block.Body{Transactions: txs}},
		StateUpdate: su,
		Classes:     map[class.Hash]class.Class{}, // fetched separately via GetClassByHash by the Classes stage
		Receipts:    receipts,
	}, nil
}

func decodeFeederTransaction(ft feederTransaction) (transaction.Transaction, error) {
	kind, err := feederKindFromType(ft.Type)
	if err != nil {
		return transaction.Transaction{}, err
	}
	version, err := parseFeederVersion(ft.Version)
	if err != nil {
		return transaction.Transaction{}, err
	}

	t := transaction.Transaction{
		Kind:      kind,
		Version:   version,
		Sender:    address.FromFelt(feltHex(ft.SenderAddress)),
		Nonce:     address.Nonce{Felt: feltHex(ft.Nonce)},
		Signature: feltSlice(ft.Signature),
	}
	if ft.MaxFee != "" {
		hi, lo := hiLoFromFelt(feltHex(ft.MaxFee))
		t.FeeV1V2 = &transaction.FeeV1V2{MaxFee: transaction.Uint128FromHiLo(hi, lo)}
	}

	switch kind {
	case transaction.KindInvoke:
		t.Invoke = &transaction.InvokePayload{CallData: feltSlice(ft.Calldata)}
	case transaction.KindDeployAccount:
		t.DeployAccount = &transaction.DeployAccountPayload{
			ClassHash:           class.Hash{Felt: feltHex(ft.ClassHash)},
			ContractAddressSalt: feltHex(ft.ContractAddressSalt),
			ConstructorCalldata: feltSlice(ft.ConstructorCalldata),
		}
	case transaction.KindDeclare:
		// The feeder's declare payload carries only the class hash at this
		// endpoint; the class body itself is fetched separately through
		// GetClassByHash by the Classes stage, so Class is left empty here.
		t.Declare = &transaction.DeclarePayload{CompiledClassHash: class.CompiledHash{Felt: feltHex(ft.ClassHash)}}
	}
	return t, nil
}

var feederQueryVersionBase = new(big.Int).Lsh(big.NewInt(1), 128)

// parseFeederVersion decodes the feeder gateway's own "version" field.
// Unlike rpc.parseVersion, which rejects query versions, it strips the 2^128
// query offset and accepts the underlying version.
func parseFeederVersion(s string) (transaction.Version, error) {
	f, err := felt.FromHex(s)
	if err != nil {
		return 0, lumenerr.Wrap(lumenerr.InvalidRequest, "malformed transaction version", err)
	}
	bi := f.BigInt()
	if bi.Cmp(feederQueryVersionBase) >= 0 {
		bi = new(big.Int).Sub(bi, feederQueryVersionBase)
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

func feederKindFromType(t string) (transaction.Kind, error) {
	switch t {
	case "INVOKE_FUNCTION", "INVOKE":
		return transaction.KindInvoke, nil
	case "DECLARE":
		return transaction.KindDeclare, nil
	case "DEPLOY_ACCOUNT":
		return transaction.KindDeployAccount, nil
	case "L1_HANDLER":
		return transaction.KindL1Handler, nil
	default:
		return 0, lumenerr.New(lumenerr.InvalidRequest, "unknown feeder transaction type: "+t)
	}
}

func decodeFeederReceipt(fr feederReceipt) receipt.Receipt {
	events := make([]receipt.Event, len(fr.Events))
	for i, e := range fr.Events {
		events[i] = receipt.Event{FromAddress: feltHex(e.FromAddress), Keys: feltSlice(e.Keys), Data: feltSlice(e.Data), Order: i}
	}
	messages := make([]receipt.L2ToL1Message, len(fr.L2ToL1Messages))
	for i, m := range fr.L2ToL1Messages {
		messages[i] = receipt.L2ToL1Message{FromAddress: feltHex(m.FromAddress), ToAddress: feltHex(m.ToAddress), Payload: feltSlice(m.Payload), Order: i}
	}
	return receipt.Receipt{
		ActualFee:    receipt.ActualFee{Amount: feltHex(fr.ActualFee), Unit: receipt.UnitWei},
		Events:       events,
		Messages:     messages,
		Resources:    receipt.ExecutionResources{Steps: fr.ExecutionResources.Steps},
		RevertReason: fr.RevertError,
	}
}

func decodeFeederStateUpdate(w feederStateUpdate) (*state.StateUpdates, error) {
	su := state.New()
	for _, n := range w.StateDiff.Nonces {
		su.NonceUpdates.Set(feltHex(n.ContractAddress), address.Nonce{Felt: feltHex(n.Nonce)})
	}
	for addrHex, diffs := range w.StateDiff.StorageDiffs {
		addr := feltHex(addrHex)
		sd := su.StorageFor(address.FromFelt(addr))
		for _, d := range diffs {
			sd.Set(address.KeyFromFelt(feltHex(d.Key)), address.ValueFromFelt(feltHex(d.Value)))
		}
	}
	for _, dc := range w.StateDiff.DeployedContracts {
		su.DeployedContracts.Set(feltHex(dc.Address), class.Hash{Felt: feltHex(dc.ClassHash)})
	}
	for _, rc := range w.StateDiff.ReplacedClasses {
		su.ReplacedClasses.Set(feltHex(rc.Address), class.Hash{Felt: feltHex(rc.ClassHash)})
	}
	for _, dc := range w.StateDiff.DeclaredClasses {
		su.DeclaredClasses.Set(feltHex(dc.ClassHash), class.CompiledHash{Felt: feltHex(dc.CompiledClassHash)})
	}
	for _, h := range w.StateDiff.OldDeclaredContracts {
		su.DeprecatedDeclaredClasses.Set(feltHex(h), struct{}{})
	}
	return su, nil
}

func decodeFeederClass(w feederClass) (class.Class, error) {
	if len(w.SierraProgram) > 0 {
		eps := make(map[string][]class.EntryPoint, len(w.EntryPointsByType))
		for k, list := range w.EntryPointsByType {
			eps[k] = decodeFeederEntryPoints(list)
		}
		return class.NewSierra(&class.SierraProgram{
			Program:              feltSlice(w.SierraProgram),
			EntryPointsByType:    eps,
			ABI:                  []byte(w.ABI),
			ContractClassVersion: w.ContractClassVersion,
		}), nil
	}

	eps := make(map[string][]class.EntryPoint, len(w.EntryPointsByType))
	for k, list := range w.EntryPointsByType {
		eps[k] = decodeFeederEntryPoints(list)
	}
	bytecode, err := decodeFeederLegacyProgram(w.Program)
	if err != nil {
		return class.Class{}, err
	}
	return class.NewLegacy(&class.LegacyProgram{
		Bytecode:    bytecode,
		EntryPoints: eps,
		ABI:         []byte(w.ABI),
	}), nil
}

// decodeFeederLegacyProgram decodes the feeder's base64(gzip(json
// {"data":[...]})) legacy program encoding into its felt bytecode — the
// same wire convention rpc.decodeLegacyProgram handles for add_declare,
// hints/builtins/debug info dropped for the same reason: this node's
// executor boundary never consumes them.
func decodeFeederLegacyProgram(raw json.RawMessage) ([]felt.Felt, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	var encoded string
	if err := json.Unmarshal(raw, &encoded); err != nil {
		return nil, lumenerr.Wrap(lumenerr.InvalidRequest, "decoding legacy program field", err)
	}
	compressed, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, lumenerr.Wrap(lumenerr.InvalidRequest, "decoding legacy program base64", err)
	}
	gz, err := gzip.NewReader(bytes.NewReader(compressed))
	if err != nil {
		return nil, lumenerr.Wrap(lumenerr.InvalidRequest, "decompressing legacy program", err)
	}
	defer gz.Close()
	body, err := io.ReadAll(gz)
	if err != nil {
		return nil, lumenerr.Wrap(lumenerr.InvalidRequest, "reading legacy program", err)
	}
	var payload struct {
		Data []string `json:"data"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, lumenerr.Wrap(lumenerr.InvalidRequest, "decoding legacy program json", err)
	}
	return feltSlice(payload.Data), nil
}

func decodeFeederEntryPoints(list []feederEntryPoint) []class.EntryPoint {
	out := make([]class.EntryPoint, len(list))
	for i, ep := range list {
		offset := feltHex(ep.Offset)
		out[i] = class.EntryPoint{Selector: feltHex(ep.Selector), Offset: offset.BigInt().Uint64()}
	}
	return out
}

// hiLoFromFelt splits a felt's low 128 bits into (hi, lo) 64-bit halves, the
// same convention rpc.hiLoFromFelt uses for the RPC wire's fee fields.
func hiLoFromFelt(f felt.Felt) (hi, lo uint64) {
	b := f.Bytes()
	return beUint64(b[16:24]), beUint64(b[24:32])
}

func beUint64(b []byte) uint64 {
	var v uint64
	for _, x := range b {
		v = v<<8 | uint64(x)
	}
	return v
}
