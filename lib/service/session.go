// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package service

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/bureau-foundation/rendezvous/lib/codec"
)

// detachAction is the only request accepted on an attached session.
const detachAction = "detach"

// SessionFunc opens a long-lived session. It returns the attach
// response and a release function that the server calls exactly once
// when the session ends. graceful is true when the client sent a
// detach request and false when the connection dropped or the server
// shut down. On error the session is refused and release is not
// called.
type SessionFunc func(ctx context.Context, raw []byte) (result any, release func(graceful bool), err error)

// HandleSession registers a session handler. Panics if the action is
// already registered.
func (s *SocketServer) HandleSession(action string, handler SessionFunc) {
	s.checkUnique(action)
	s.sessions[action] = handler
}

func (s *SocketServer) serveSession(ctx context.Context, conn net.Conn, decoder *codec.Decoder, action string, handler SessionFunc, raw []byte) {
	defer conn.Close()

	result, release, err := handler(ctx, raw)
	s.metrics.observeRequest(action, err == nil)
	if err != nil {
		s.logger.Debug("session refused", "action", action, "error", err)
		s.writeError(conn, err.Error())
		return
	}
	if release == nil {
		release = func(bool) {}
	}
	if !s.writeSuccess(conn, result) {
		release(false)
		return
	}

	s.metrics.sessionOpened()
	defer s.metrics.sessionClosed()

	// Closing the connection unblocks awaitDetach on shutdown.
	stop := make(chan struct{})
	defer close(stop)
	go func() {
		select {
		case <-ctx.Done():
			conn.Close()
		case <-stop:
		}
	}()

	release(s.awaitDetach(conn, decoder, action))
}

// awaitDetach reads until the client detaches (true) or the
// connection ends (false).
func (s *SocketServer) awaitDetach(conn net.Conn, decoder *codec.Decoder, action string) bool {
	for {
		next, _, err := readRequest(decoder)
		if err != nil {
			s.logger.Debug("session connection ended", "action", action, "error", err)
			return false
		}
		if next == detachAction {
			s.writeSuccess(conn, nil)
			return true
		}
		s.writeError(conn, fmt.Sprintf("action %q is not allowed on an attached session", next))
	}
}

// Session is the client side of an attached connection. The server
// holds the session open until Detach, Close, or its own shutdown.
type Session struct {
	conn      net.Conn
	data      codec.RawMessage
	responses chan Response
	done      chan struct{}
	closeOnce sync.Once
}

func newSession(conn net.Conn, decoder *codec.Decoder, data codec.RawMessage) *Session {
	session := &Session{
		conn:      conn,
		data:      data,
		responses: make(chan Response, 1),
		done:      make(chan struct{}),
	}
	go session.read(decoder)
	return session
}

func (s *Session) read(decoder *codec.Decoder) {
	defer close(s.done)
	for {
		var response Response
		if err := decoder.Decode(&response); err != nil {
			return
		}
		select {
		case s.responses <- response:
		default:
		}
	}
}

// Decode unmarshals the attach response data into v.
func (s *Session) Decode(v any) error {
	if len(s.data) == 0 {
		return errors.New("attach response carried no data")
	}
	return codec.Unmarshal(s.data, v)
}

// Done is closed when the server closes the connection.
func (s *Session) Done() <-chan struct{} { return s.done }

// Detach ends the session cleanly, telling the server this client is
// leaving on purpose, and closes the connection.
func (s *Session) Detach(ctx context.Context) error {
	defer s.Close()

	deadline := time.Now().Add(writeTimeout)
	if ctxDeadline, ok := ctx.Deadline(); ok && ctxDeadline.Before(deadline) {
		deadline = ctxDeadline
	}
	s.conn.SetWriteDeadline(deadline)
	if err := codec.NewEncoder(s.conn).Encode(map[string]any{"action": detachAction}); err != nil {
		return fmt.Errorf("sending detach: %w", err)
	}

	select {
	case response := <-s.responses:
		if !response.OK {
			return &ServiceError{Action: detachAction, Message: response.Error}
		}
		return nil
	case <-s.done:
		return errors.New("connection closed before detach was acknowledged")
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close drops the connection without detaching. The server treats
// this like a crashed client.
func (s *Session) Close() error {
	var err error
	s.closeOnce.Do(func() {
		err = s.conn.Close()
	})
	return err
}
