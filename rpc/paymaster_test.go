package rpc

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

type stubDeployer struct {
	prepend []json.RawMessage
	err     error
}

func (s stubDeployer) DeploymentTransactions(context.Context, json.RawMessage) ([]json.RawMessage, error) {
	return s.prepend, s.err
}

func terminalEcho(results ...json.RawMessage) HandlerFunc {
	return func(_ context.Context, req *Request) *Response {
		return &Response{JSONRPC: jsonrpcVersion, ID: req.ID, Result: results}
	}
}

func TestPaymasterMiddlewareIgnoresOtherMethods(t *testing.T) {
	mw := PaymasterMiddleware(stubDeployer{prepend: []json.RawMessage{json.RawMessage(`{"type":"INVOKE"}`)}})
	called := false
	h := mw(func(context.Context, *Request) *Response { called = true; return &Response{} })
	h(context.Background(), &Request{Method: "starknet_blockNumber"})
	require.True(t, called)
}

func TestPaymasterMiddlewareNoDeployerPassesThrough(t *testing.T) {
	mw := PaymasterMiddleware(nil)
	called := false
	h := mw(func(context.Context, *Request) *Response { called = true; return &Response{} })
	h(context.Background(), &Request{Method: "starknet_estimateFee"})
	require.True(t, called)
}

func TestPaymasterMiddlewarePrependsAndTrims(t *testing.T) {
	deploy := json.RawMessage(`{"type":"DEPLOY_ACCOUNT"}`)
	caller := json.RawMessage(`{"type":"INVOKE"}`)

	var seenBatchLen int
	var terminal HandlerFunc = func(_ context.Context, req *Request) *Response {
		var params estimateFeeRequest
		require.NoError(t, json.Unmarshal(req.Params, &params))
		seenBatchLen = len(params.RequestTransactions)
		results := make([]json.RawMessage, seenBatchLen)
		for i := range results {
			results[i] = json.RawMessage(`{"overall_fee":"0x1"}`)
		}
		return &Response{JSONRPC: jsonrpcVersion, ID: req.ID, Result: results}
	}

	mw := PaymasterMiddleware(stubDeployer{prepend: []json.RawMessage{deploy}})
	h := mw(terminal)

	params, err := json.Marshal(estimateFeeRequest{RequestTransactions: []json.RawMessage{caller}})
	require.NoError(t, err)
	resp := h(context.Background(), &Request{JSONRPC: jsonrpcVersion, Method: "starknet_estimateFee", Params: params})

	require.Equal(t, 2, seenBatchLen, "deployer's transaction should have been prepended")
	results, ok := resp.Result.([]json.RawMessage)
	require.True(t, ok)
	require.Len(t, results, 1, "the prepended entry should be trimmed back out")
}

func TestPaymasterMiddlewareDeployerErrorReturnsInvalidParams(t *testing.T) {
	mw := PaymasterMiddleware(stubDeployer{err: errors.New("deployer unavailable")})
	h := mw(terminalEcho())
	resp := h(context.Background(), &Request{JSONRPC: jsonrpcVersion, Method: "starknet_estimateFee", Params: json.RawMessage(`{}`)})
	require.NotNil(t, resp.Error)
	require.Equal(t, InvalidParamsCode, resp.Error.Code)
}
