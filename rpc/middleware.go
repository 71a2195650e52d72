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
	"time"

	"go.uber.org/zap"

	"github.com/lumenhq/lumen/internal/lumenerr"
	"github.com/lumenhq/lumen/internal/lumenlog"
	"github.com/lumenhq/lumen/internal/lumenmetrics"
)

var log = lumenlog.Named("rpc")

// MetricsMiddleware is the chain's outermost stage: it
// records a request count, latency, and (on failure) an error count keyed
// by method and lumenerr.Kind.
func MetricsMiddleware(m *lumenmetrics.RPCMetrics) Middleware {
	return func(next HandlerFunc) HandlerFunc {
		return func(ctx context.Context, req *Request) *Response {
			start := time.Now()
			resp := next(ctx, req)
			m.RequestsByMethod.WithLabelValues(req.Method).Inc()
			m.DurationByMethod.WithLabelValues(req.Method).Observe(time.Since(start).Seconds())
			if resp.Error != nil {
				m.ErrorsByKind.WithLabelValues(req.Method, errorKindLabel(resp.Error)).Inc()
			}
			return resp
		}
	}
}

func errorKindLabel(e *Error) string {
	for kind, code := range kindCode {
		if code == e.Code {
			return kind.String()
		}
	}
	return "internal"
}

// TraceMiddleware logs one structured line per request at debug level, a
// per-request access log.
func TraceMiddleware() Middleware {
	return func(next HandlerFunc) HandlerFunc {
		return func(ctx context.Context, req *Request) *Response {
			resp := next(ctx, req)
			fields := []zap.Field{zap.String("method", req.Method)}
			if resp.Error != nil {
				fields = append(fields, zap.Int("code", resp.Error.Code), zap.String("error", resp.Error.Message))
				log.Debug("rpc request failed", fields...)
			} else {
				log.Debug("rpc request", fields...)
			}
			return resp
		}
	}
}

// TimeoutMiddleware bounds how long a single request may run, converting
// an exceeded deadline to a Timeout error rather than hanging the caller.
func TimeoutMiddleware(d time.Duration) Middleware {
	return func(next HandlerFunc) HandlerFunc {
		return func(ctx context.Context, req *Request) *Response {
			ctx, cancel := context.WithTimeout(ctx, d)
			defer cancel()

			type result struct{ resp *Response }
			done := make(chan result, 1)
			go func() {
				defer func() {
					if r := recover(); r != nil {
						done <- result{resp: &Response{JSONRPC: jsonrpcVersion, ID: req.ID, Error: ToJSONRPCError(lumenerr.Newf(lumenerr.Internal, "panic: %v", r))}}
					}
				}()
				done <- result{resp: next(ctx, req)}
			}()

			select {
			case r := <-done:
				return r.resp
			case <-ctx.Done():
				return &Response{JSONRPC: jsonrpcVersion, ID: req.ID, Error: ToJSONRPCError(lumenerr.New(lumenerr.Timeout, "request exceeded deadline"))}
			}
		}
	}
}

// AuthMiddleware rejects requests whose bearer token doesn't match token,
// the optional final stage in chain. A zero-value token
// disables the check (public RPC, the default).
func AuthMiddleware(token string) Middleware {
	return func(next HandlerFunc) HandlerFunc {
		return func(ctx context.Context, req *Request) *Response {
			if token == "" {
				return next(ctx, req)
			}
			if bearerToken(ctx) != token {
				return errResponse(req.ID, InvalidRequestCode, "unauthorized")
			}
			return next(ctx, req)
		}
	}
}

type bearerTokenKey struct{}

// WithBearerToken attaches the caller-supplied bearer token to ctx, for
// AuthMiddleware to read back out; the HTTP/WS transport extracts it from
// the Authorization header before dispatch.
func WithBearerToken(ctx context.Context, token string) context.Context {
	return context.WithValue(ctx, bearerTokenKey{}, token)
}

func bearerToken(ctx context.Context) string {
	v, _ := ctx.Value(bearerTokenKey{}).(string)
	return v
}
