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
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/lumenhq/lumen/internal/lumenmetrics"
)

// log is declared once for the whole package in middleware.go.

var errBodyTooLarge = errors.New("rpc: request body exceeds limit")

func readAll(r io.Reader, limit int64) ([]byte, error) {
	data, err := io.ReadAll(io.LimitReader(r, limit+1))
	if err != nil {
		return nil, err
	}
	if int64(len(data)) > limit {
		return nil, errBodyTooLarge
	}
	return data, nil
}

// ServerConfig is the set of knobs cmd/lumen's flags translate into when
// constructing a Server.
type ServerConfig struct {
	Addr            string
	CORSOrigins     []string
	RequestTimeout  time.Duration
	AuthToken       string // empty disables AuthMiddleware
	ReadHeaderTimeout time.Duration
}

func DefaultServerConfig() ServerConfig {
	return ServerConfig{
		Addr:              ":9545",
		CORSOrigins:       []string{"*"},
		RequestTimeout:    30 * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
	}
}

// Server is the HTTP+WebSocket JSON-RPC transport: an http.Server wrapping
// a chi router, with a Dispatcher's middleware chain as the single request
// handler for both POST / and the WS upgrade.
type Server struct {
	cfg    ServerConfig
	http   *http.Server
	handle HandlerFunc
	wsUpgrader websocket.Upgrader
}

// NewServer wires the full middleware chain (metrics -> trace -> timeout
// -> paymaster -> auth, outermost first) around dispatcher.Dispatch, then
// mounts it behind chi + go-chi/cors. paymaster may be nil to skip
// PaymasterMiddleware entirely (no paymaster configured).
func NewServer(cfg ServerConfig, dispatcher *Dispatcher, metrics *lumenmetrics.RPCMetrics, paymaster PaymasterDeployer) *Server {
	mws := []Middleware{
		MetricsMiddleware(metrics),
		TraceMiddleware(),
		TimeoutMiddleware(cfg.RequestTimeout),
	}
	if paymaster != nil {
		mws = append(mws, PaymasterMiddleware(paymaster))
	}
	if cfg.AuthToken != "" {
		mws = append(mws, AuthMiddleware(cfg.AuthToken))
	}
	handle := Chain(dispatcher.Dispatch, mws...)

	s := &Server{
		cfg:    cfg,
		handle: handle,
		wsUpgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
	}

	router := chi.NewRouter()
	router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.CORSOrigins,
		AllowedMethods:   []string{"POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		MaxAge:           300,
	}))
	router.Post("/", s.handleHTTP)
	router.Get("/ws", s.handleWS)
	router.Get("/healthz", s.handleHealthz)

	s.http = &http.Server{
		Addr:              cfg.Addr,
		Handler:           router,
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
	}
	return s
}

func (s *Server) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (s *Server) handleHTTP(w http.ResponseWriter, r *http.Request) {
	body, err := readAll(r.Body, 10<<20) // 10MiB cap against a pathological request body
	if err != nil {
		w.WriteHeader(http.StatusRequestEntityTooLarge)
		return
	}
	resp := HandleBody(r.Context(), body, s.handle)
	w.Header().Set("Content-Type", "application/json")
	if resp == nil {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	_, _ = w.Write(resp)
}

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := s.wsUpgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Warn("websocket upgrade failed", zap.Error(err))
		return
	}
	defer conn.Close()

	ctx := r.Context()
	for {
		_, body, err := conn.ReadMessage()
		if err != nil {
			return
		}
		resp := HandleBody(ctx, body, s.handle)
		if resp == nil {
			continue
		}
		if err := conn.WriteMessage(websocket.TextMessage, resp); err != nil {
			return
		}
	}
}

// Run starts serving and blocks until ctx is canceled, then shuts down
// gracefully within 10 seconds.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		log.Info("rpc server listening", zap.String("addr", s.cfg.Addr))
		if err := s.http.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return s.http.Shutdown(shutdownCtx)
	case err := <-errCh:
		return err
	}
}
