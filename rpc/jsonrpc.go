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

// Package rpc implements the starknet_* JSON-RPC surface:
// method dispatch, pending-aware reads, the write path into the pool, and a
// tower-style middleware chain (metrics, trace, timeout, paymaster, auth) in
// front of it. CORS is applied by the HTTP router, outside that chain.
package rpc

import (
	"context"
	"encoding/json"
	"sync"
)

const jsonrpcVersion = "2.0"

// Request is one JSON-RPC 2.0 call.
type Request struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id,omitempty"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
}

// Response is one JSON-RPC 2.0 reply; exactly one of Result/Error is set.
type Response struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id,omitempty"`
	Result  any             `json:"result,omitempty"`
	Error   *Error          `json:"error,omitempty"`
}

// Error is a JSON-RPC 2.0 error object.
type Error struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

// JSON-RPC 2.0 reserved error codes (never reused for domain errors, see
// errors.go for the starknet_* domain codes this node returns).
const (
	ParseErrorCode     = -32700
	InvalidRequestCode = -32600
	MethodNotFoundCode = -32601
	InvalidParamsCode  = -32602
	InternalErrorCode  = -32603
)

func errResponse(id json.RawMessage, code int, message string) *Response {
	return &Response{JSONRPC: jsonrpcVersion, ID: id, Error: &Error{Code: code, Message: message}}
}

// MethodHandler implements one starknet_* method; params is the request's
// raw `params` member (an array or object per the Starknet convention,
// decoded by the handler itself).
type MethodHandler func(ctx context.Context, params json.RawMessage) (any, error)

// HandlerFunc is the unit the middleware chain operates on: a single
// request in, a single response out. Built from a Dispatcher's registered
// methods and wrapped by Chain.
type HandlerFunc func(ctx context.Context, req *Request) *Response

// Middleware wraps a HandlerFunc with cross-cutting behavior. Composed outermost-first by Chain.
type Middleware func(next HandlerFunc) HandlerFunc

// Chain composes middleware around a terminal handler, outermost first —
// Chain(terminal, a, b, c) invokes a, then b, then c, then terminal.
func Chain(terminal HandlerFunc, mws ...Middleware) HandlerFunc {
	h := terminal
	for i := len(mws) - 1; i >= 0; i-- {
		h = mws[i](h)
	}
	return h
}

// Dispatcher holds the method table; Dispatch is its terminal HandlerFunc,
// meant to sit innermost in a Chain.
type Dispatcher struct {
	mu      sync.RWMutex
	methods map[string]MethodHandler
}

func NewDispatcher() *Dispatcher {
	return &Dispatcher{methods: make(map[string]MethodHandler)}
}

// Register binds a starknet_* method name to its handler. Panics on a
// duplicate registration, a programming error this node never recovers
// from gracefully.
func (d *Dispatcher) Register(method string, h MethodHandler) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, exists := d.methods[method]; exists {
		panic("rpc: duplicate method registration: " + method)
	}
	d.methods[method] = h
}

// Dispatch looks up and invokes the handler for req.Method.
func (d *Dispatcher) Dispatch(ctx context.Context, req *Request) *Response {
	d.mu.RLock()
	h, ok := d.methods[req.Method]
	d.mu.RUnlock()
	if !ok {
		return errResponse(req.ID, MethodNotFoundCode, "method not found: "+req.Method)
	}
	result, err := h(ctx, req.Params)
	if err != nil {
		return &Response{JSONRPC: jsonrpcVersion, ID: req.ID, Error: ToJSONRPCError(err)}
	}
	return &Response{JSONRPC: jsonrpcVersion, ID: req.ID, Result: result}
}

// HandleBody runs a raw HTTP/WS request body (a single request or a batch
// array) through handle, returning the raw bytes to write back. An empty
// batch produces an invalid-request Response; a malformed body produces a
// parse-error Response.
func HandleBody(ctx context.Context, body []byte, handle HandlerFunc) []byte {
	trimmed := trimSpace(body)
	if len(trimmed) > 0 && trimmed[0] == '[' {
		var raws []json.RawMessage
		if err := json.Unmarshal(trimmed, &raws); err != nil {
			b, _ := json.Marshal(errResponse(nil, ParseErrorCode, "parse error"))
			return b
		}
		if len(raws) == 0 {
			b, _ := json.Marshal(errResponse(nil, InvalidRequestCode, "empty batch"))
			return b
		}
		responses := make([]*Response, len(raws))
		for i, raw := range raws {
			responses[i] = handleOne(ctx, raw, handle)
		}
		b, _ := json.Marshal(responses)
		return b
	}
	b, _ := json.Marshal(handleOne(ctx, trimmed, handle))
	return b
}

func handleOne(ctx context.Context, raw json.RawMessage, handle HandlerFunc) *Response {
	var req Request
	if err := json.Unmarshal(raw, &req); err != nil {
		return errResponse(nil, ParseErrorCode, "parse error")
	}
	if req.Method == "" {
		return errResponse(req.ID, InvalidRequestCode, "missing method")
	}
	return handle(ctx, &req)
}

func trimSpace(b []byte) []byte {
	start := 0
	for start < len(b) && isSpace(b[start]) {
		start++
	}
	end := len(b)
	for end > start && isSpace(b[end-1]) {
		end--
	}
	return b[start:end]
}

func isSpace(c byte) bool { return c == ' ' || c == '\t' || c == '\n' || c == '\r' }
