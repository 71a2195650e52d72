package rpc

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"
)

func echoHandler(_ context.Context, params json.RawMessage) (any, error) {
	return json.RawMessage(params), nil
}

func TestDispatchUnknownMethod(t *testing.T) {
	d := NewDispatcher()
	resp := d.Dispatch(context.Background(), &Request{JSONRPC: jsonrpcVersion, ID: json.RawMessage("1"), Method: "nope"})
	require.NotNil(t, resp.Error)
	require.Equal(t, MethodNotFoundCode, resp.Error.Code)
}

func TestDispatchRegisteredMethod(t *testing.T) {
	d := NewDispatcher()
	d.Register("echo", echoHandler)
	resp := d.Dispatch(context.Background(), &Request{JSONRPC: jsonrpcVersion, ID: json.RawMessage("1"), Method: "echo", Params: json.RawMessage(`"hi"`)})
	require.Nil(t, resp.Error)
	require.Equal(t, "hi", resp.Result)
}

func TestRegisterDuplicatePanics(t *testing.T) {
	d := NewDispatcher()
	d.Register("echo", echoHandler)
	require.Panics(t, func() { d.Register("echo", echoHandler) })
}

func TestHandleBodyBatch(t *testing.T) {
	d := NewDispatcher()
	d.Register("echo", echoHandler)

	body := []byte(`[
		{"jsonrpc":"2.0","id":1,"method":"echo","params":"a"},
		{"jsonrpc":"2.0","id":2,"method":"echo","params":"b"}
	]`)
	out := HandleBody(context.Background(), body, d.Dispatch)

	var resps []struct {
		Result string `json:"result"`
	}
	require.NoError(t, json.Unmarshal(out, &resps))
	require.Len(t, resps, 2)
	require.Equal(t, "a", resps[0].Result)
	require.Equal(t, "b", resps[1].Result)
}

func TestHandleBodySingle(t *testing.T) {
	d := NewDispatcher()
	d.Register("echo", echoHandler)

	body := []byte(`{"jsonrpc":"2.0","id":1,"method":"echo","params":"a"}`)
	out := HandleBody(context.Background(), body, d.Dispatch)

	var resp struct {
		Result string `json:"result"`
	}
	require.NoError(t, json.Unmarshal(out, &resp))
	require.Equal(t, "a", resp.Result)
}

func TestHandleBodyMalformedReturnsParseError(t *testing.T) {
	d := NewDispatcher()
	out := HandleBody(context.Background(), []byte(`{not json`), d.Dispatch)

	var resp struct {
		Error *Error `json:"error"`
	}
	require.NoError(t, json.Unmarshal(out, &resp))
	require.NotNil(t, resp.Error)
	require.Equal(t, ParseErrorCode, resp.Error.Code)
}

func TestChainOrdersMiddlewareOutermostFirst(t *testing.T) {
	var order []string
	mark := func(name string) Middleware {
		return func(next HandlerFunc) HandlerFunc {
			return func(ctx context.Context, req *Request) *Response {
				order = append(order, name)
				return next(ctx, req)
			}
		}
	}
	terminal := func(context.Context, *Request) *Response { return &Response{JSONRPC: jsonrpcVersion} }
	h := Chain(terminal, mark("outer"), mark("inner"))
	h(context.Background(), &Request{})
	require.Equal(t, []string{"outer", "inner"}, order)
}
