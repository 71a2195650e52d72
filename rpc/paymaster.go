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
	"context"
	"encoding/json"

	"github.com/lumenhq/lumen/internal/lumenerr"
)

// PaymasterDeployer supplies the paymaster-account deployment transactions
// to prepend ahead of a caller's estimate_fee batch when the account being
// estimated for hasn't been deployed yet. Concrete implementations (e.g. a
// cartridge-style paymaster backend) live outside this package; this
// middleware only knows how to splice their output back out of the
// response.
type PaymasterDeployer interface {
	// DeploymentTransactions returns the paymaster-authored transactions to
	// prepend to an estimate_fee request's batch, or nil if the request
	// needs no rewriting.
	DeploymentTransactions(ctx context.Context, params json.RawMessage) ([]json.RawMessage, error)
}

// paymasterMethods is the fixed, enumerated set of methods the paymaster
// rewriter is allowed to touch, rather than an arbitrary, reflector-driven
// method set: this node hardcodes the one method the rewrite rule actually
// names, and any future paymaster method must be added here explicitly.
var paymasterMethods = map[string]bool{
	"starknet_estimateFee": true,
}

// estimateFeeRequest is the subset of starknet_estimateFee's params this
// middleware needs to touch: the transaction batch it prepends to.
type estimateFeeRequest struct {
	RequestTransactions []json.RawMessage `json:"request"`
	BlockID             json.RawMessage   `json:"block_id"`
}

// estimateFeeResult is one entry of starknet_estimateFee's response array;
// opaque to this middleware beyond its position in the array.
type estimateFeeResult = json.RawMessage

// PaymasterMiddleware implements rewrite rule: on
// estimate_fee, prepend any paymaster deployment transactions ahead of the
// caller's batch, forward the combined batch, then trim the leading
// entries back out of the response so the caller's array length is
// unchanged ("it trims extra entries from the response to preserve
// array-length parity").
func PaymasterMiddleware(deployer PaymasterDeployer) Middleware {
	return func(next HandlerFunc) HandlerFunc {
		return func(ctx context.Context, req *Request) *Response {
			if deployer == nil || !paymasterMethods[req.Method] {
				return next(ctx, req)
			}

			prepend, err := deployer.DeploymentTransactions(ctx, req.Params)
			if err != nil {
				return errResponse(req.ID, InvalidParamsCode, err.Error())
			}
			if len(prepend) == 0 {
				return next(ctx, req)
			}

			var params estimateFeeRequest
			if err := json.Unmarshal(req.Params, &params); err != nil {
				return &Response{JSONRPC: jsonrpcVersion, ID: req.ID, Error: ToJSONRPCError(lumenerr.Wrap(lumenerr.InvalidRequest, "decoding estimate_fee params", err))}
			}
			rewritten := estimateFeeRequest{
				RequestTransactions: append(append([]json.RawMessage{}, prepend...), params.RequestTransactions...),
				BlockID:             params.BlockID,
			}
			rewrittenParams, err := json.Marshal(rewritten)
			if err != nil {
				return &Response{JSONRPC: jsonrpcVersion, ID: req.ID, Error: ToJSONRPCError(lumenerr.Wrap(lumenerr.Internal, "re-encoding estimate_fee params", err))}
			}

			resp := next(ctx, &Request{JSONRPC: req.JSONRPC, ID: req.ID, Method: req.Method, Params: rewrittenParams})
			if resp.Error != nil {
				return resp
			}
			return trimLeadingResults(resp, len(prepend))
		}
	}
}

// trimLeadingResults drops the first n entries of resp.Result, which must
// be a []estimateFeeResult — the paymaster-deployment fee estimates the
// caller never asked for.
func trimLeadingResults(resp *Response, n int) *Response {
	raw, err := json.Marshal(resp.Result)
	if err != nil {
		return resp
	}
	var results []estimateFeeResult
	if err := json.Unmarshal(raw, &results); err != nil || n > len(results) {
		return resp
	}
	resp.Result = results[n:]
	return resp
}
