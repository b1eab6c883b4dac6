// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"os"
	"sync"
	"time"

	"github.com/bureau-foundation/rendezvous/lib/codec"
)

// ActionFunc processes a socket request for a specific action. The raw
// parameter is the full CBOR request (including the "action" field).
//
// Return a value to include in the success response, or an error for
// a failure response. If the returned value is nil, the response
// contains only {ok: true}.
type ActionFunc func(ctx context.Context, raw []byte) (any, error)

// Response is the wire-format envelope for all responses.
type Response struct {
	OK    bool             `cbor:"ok"`
	Error string           `cbor:"error,omitempty"`
	Data  codec.RawMessage `cbor:"data,omitempty"`
}

// SocketServer serves the CBOR protocol on a Unix socket.
//
// Actions are registered with Handle and HandleSession before calling
// Serve. Unknown actions receive an error response.
type SocketServer struct {
	socketPath string
	handlers   map[string]ActionFunc
	sessions   map[string]SessionFunc
	logger     *slog.Logger
	metrics    *Metrics

	// activeConnections tracks in-flight handlers and open sessions.
	// Serve waits for all of them before returning.
	activeConnections sync.WaitGroup
}

// NewSocketServer creates a server that will listen on socketPath.
// metrics may be nil.
func NewSocketServer(socketPath string, logger *slog.Logger, metrics *Metrics) *SocketServer {
	return &SocketServer{
		socketPath: socketPath,
		handlers:   make(map[string]ActionFunc),
		sessions:   make(map[string]SessionFunc),
		logger:     logger,
		metrics:    metrics,
	}
}

// SocketPath returns the path the server listens on.
func (s *SocketServer) SocketPath() string { return s.socketPath }

// Handle registers a request/response handler. Panics if the action
// is already registered.
func (s *SocketServer) Handle(action string, handler ActionFunc) {
	s.checkUnique(action)
	s.handlers[action] = handler
}

func (s *SocketServer) checkUnique(action string) {
	_, isAction := s.handlers[action]
	_, isSession := s.sessions[action]
	if isAction || isSession || action == detachAction {
		panic(fmt.Sprintf("service.SocketServer: duplicate handler for action %q", action))
	}
}

// Serve accepts connections until ctx is cancelled, then stops
// accepting, closes open sessions, and waits for active handlers.
//
// Any existing socket file at the configured path is removed before
// listening; callers must hold the slot's liveness record first. The
// socket file is removed on return.
func (s *SocketServer) Serve(ctx context.Context) error {
	if err := os.Remove(s.socketPath); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("removing stale socket %s: %w", s.socketPath, err)
	}

	listener, err := net.Listen("unix", s.socketPath)
	if err != nil {
		return fmt.Errorf("listening on %s: %w", s.socketPath, err)
	}
	defer func() {
		listener.Close()
		os.Remove(s.socketPath)
	}()

	// Unblock Accept when the context is cancelled.
	go func() {
		<-ctx.Done()
		listener.Close()
	}()

	s.logger.Info("socket server listening", "path", s.socketPath)

	for {
		conn, err := listener.Accept()
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				break
			}
			s.logger.Error("accept failed", "error", err)
			continue
		}

		s.activeConnections.Add(1)
		go func() {
			defer s.activeConnections.Done()
			s.handleConnection(ctx, conn)
		}()
	}

	s.activeConnections.Wait()
	return nil
}

// readTimeout is how long we wait for the client to send its request.
const readTimeout = 30 * time.Second

// writeTimeout is how long we wait for the response to be written.
const writeTimeout = 10 * time.Second

// maxRequestSize is the maximum size of a single CBOR request.
const maxRequestSize = 64 * 1024

// handleConnection reads the first request and dispatches it.
func (s *SocketServer) handleConnection(ctx context.Context, conn net.Conn) {
	decoder := codec.NewDecoder(io.LimitReader(conn, maxRequestSize))
	conn.SetReadDeadline(time.Now().Add(readTimeout))

	action, raw, err := readRequest(decoder)
	if err != nil {
		if !errors.Is(err, io.EOF) {
			s.writeError(conn, err.Error())
		}
		conn.Close()
		return
	}

	if handler, exists := s.sessions[action]; exists {
		conn.SetReadDeadline(time.Time{})
		s.serveSession(ctx, conn, decoder, action, handler, raw)
		return
	}
	defer conn.Close()

	handler, exists := s.handlers[action]
	if !exists {
		s.metrics.observeRequest(action, false)
		s.writeError(conn, fmt.Sprintf("unknown action %q", action))
		return
	}

	result, err := handler(ctx, raw)
	s.metrics.observeRequest(action, err == nil)
	if err != nil {
		s.logger.Debug("action failed",
			"action", action,
			"error", err,
		)
		s.writeError(conn, err.Error())
		return
	}

	s.writeSuccess(conn, result)
}

// readRequest decodes one CBOR request and extracts its action.
// io.EOF means the client sent nothing.
func readRequest(decoder *codec.Decoder) (string, []byte, error) {
	var raw codec.RawMessage
	if err := decoder.Decode(&raw); err != nil {
		if errors.Is(err, io.EOF) {
			return "", nil, io.EOF
		}
		return "", nil, fmt.Errorf("invalid request: %v", err)
	}

	var header struct {
		Action string `cbor:"action"`
	}
	if err := codec.Unmarshal(raw, &header); err != nil {
		return "", nil, fmt.Errorf("invalid request: %v", err)
	}
	if header.Action == "" {
		return "", nil, errors.New("missing required field: action")
	}
	return header.Action, []byte(raw), nil
}

// writeError sends a failure response: {ok: false, error: "..."}.
func (s *SocketServer) writeError(conn net.Conn, message string) {
	conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	if err := codec.NewEncoder(conn).Encode(Response{
		OK:    false,
		Error: message,
	}); err != nil {
		s.logger.Debug("failed to write error response", "error", err)
	}
}

// writeSuccess sends {ok: true} with result, if any, CBOR-encoded in
// the data field.
func (s *SocketServer) writeSuccess(conn net.Conn, result any) bool {
	conn.SetWriteDeadline(time.Now().Add(writeTimeout))

	response := Response{OK: true}
	if result != nil {
		data, err := codec.Marshal(result)
		if err != nil {
			s.writeError(conn, fmt.Sprintf("internal: marshaling response: %v", err))
			return false
		}
		response.Data = data
	}

	if err := codec.NewEncoder(conn).Encode(response); err != nil {
		s.logger.Debug("failed to write success response", "error", err)
		return false
	}
	return true
}
