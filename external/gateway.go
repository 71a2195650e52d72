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

package external

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/lumenhq/lumen/internal/lumenerr"
	"github.com/lumenhq/lumen/primitives/felt"
)

// GatewayTxKind selects which add-transaction endpoint a submission goes
// to; every kind currently posts to the same add_transaction path.
type GatewayTxKind string

const (
	GatewayInvoke        GatewayTxKind = "add_transaction"
	GatewayDeclare       GatewayTxKind = "add_transaction"
	GatewayDeployAccount GatewayTxKind = "add_transaction"
)

// GatewaySubmitResult is the sequencer gateway's add-transaction response.
type GatewaySubmitResult struct {
	TransactionHash felt.Felt
	ClassHash       *felt.Felt
	ContractAddress *felt.Felt
}

// SequencerGatewayClient is the write side of external
// interfaces: it forwards an already gateway-encoded transaction body
// (mirroring the RPC payload) to the sequencer and parses
// back the accepted transaction's hash.
type SequencerGatewayClient interface {
	AddTransaction(ctx context.Context, kind GatewayTxKind, body json.RawMessage) (GatewaySubmitResult, error)
}

// HTTPSequencerGatewayClient posts directly to the sequencer gateway's
// add_transaction endpoint.
type HTTPSequencerGatewayClient struct {
	baseURL string
	http    *http.Client
}

func NewHTTPSequencerGatewayClient(network ChainNetwork, baseURL string) *HTTPSequencerGatewayClient {
	if baseURL == "" {
		baseURL = defaultGatewayBaseURL(network)
	}
	return &HTTPSequencerGatewayClient{baseURL: baseURL, http: &http.Client{Timeout: 30 * time.Second}}
}

func (c *HTTPSequencerGatewayClient) AddTransaction(ctx context.Context, kind GatewayTxKind, body json.RawMessage) (GatewaySubmitResult, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/"+string(kind), bytes.NewReader(body))
	if err != nil {
		return GatewaySubmitResult{}, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return GatewaySubmitResult{}, err
	}
	defer resp.Body.Close()

	var wire struct {
		TransactionHash string  `json:"transaction_hash"`
		ClassHash       *string `json:"class_hash,omitempty"`
		ContractAddress *string `json:"address,omitempty"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&wire); err != nil {
		return GatewaySubmitResult{}, lumenerr.Wrap(lumenerr.Internal, "decoding gateway response", err)
	}
	if resp.StatusCode != http.StatusOK {
		return GatewaySubmitResult{}, lumenerr.Newf(lumenerr.InvalidRequest, "sequencer gateway rejected transaction: status %d", resp.StatusCode)
	}

	result := GatewaySubmitResult{TransactionHash: feltHex(wire.TransactionHash)}
	if wire.ClassHash != nil {
		h := feltHex(*wire.ClassHash)
		result.ClassHash = &h
	}
	if wire.ContractAddress != nil {
		h := feltHex(*wire.ContractAddress)
		result.ContractAddress = &h
	}
	return result, nil
}
