// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package service

import (
	"context"
	"fmt"
	"io"
	"net"
	"time"

	"github.com/bureau-foundation/rendezvous/lib/codec"
)

// dialTimeout bounds the connect phase when ctx has no deadline.
const dialTimeout = 5 * time.Second

// responseReadTimeout is how long the client waits for the server to
// send a response after writing the request. Matched to the server's
// readTimeout + writeTimeout.
const responseReadTimeout = 40 * time.Second

// maxResponseSize is the maximum size of a single CBOR response.
const maxResponseSize = 1024 * 1024

// ServiceError is returned when the server responds with ok=false.
type ServiceError struct {
	Action  string
	Message string
}

func (e *ServiceError) Error() string {
	return fmt.Sprintf("service error on %q: %s", e.Action, e.Message)
}

// ServiceClient sends CBOR requests to a service socket.
type ServiceClient struct {
	socketPath string
}

// NewServiceClient returns a client for the socket at socketPath.
// Nothing is dialed until the first request.
func NewServiceClient(socketPath string) *ServiceClient {
	return &ServiceClient{socketPath: socketPath}
}

// SocketPath returns the socket the client dials.
func (c *ServiceClient) SocketPath() string { return c.socketPath }

// Call sends a request on a fresh connection and decodes the response.
//
// fields may contain handler-specific request fields; the client adds
// "action". On success, if result is non-nil and the response contains
// data, the data is decoded into result. A failure response is
// returned as a *ServiceError; connection and encoding errors are
// returned as plain errors.
func (c *ServiceClient) Call(ctx context.Context, action string, fields map[string]any, result any) error {
	conn, response, err := c.exchange(ctx, action, fields)
	if conn != nil {
		conn.Close()
	}
	if err != nil {
		return err
	}
	return decodeResult(action, response, result)
}

// Attach opens a session with the given action. The returned Session
// keeps the connection open; the attach response data is available
// through Session.Decode.
func (c *ServiceClient) Attach(ctx context.Context, action string, fields map[string]any) (*Session, error) {
	conn, response, err := c.exchange(ctx, action, fields)
	if err != nil {
		if conn != nil {
			conn.Close()
		}
		return nil, err
	}
	if !response.OK {
		conn.Close()
		return nil, &ServiceError{Action: action, Message: response.Error}
	}
	conn.SetDeadline(time.Time{})
	return newSession(conn, response.decoder, response.Data), nil
}

type exchangeResponse struct {
	Response
	decoder *codec.Decoder
}

// exchange dials, writes one request, and reads one response. The
// connection is returned open whenever it was established.
func (c *ServiceClient) exchange(ctx context.Context, action string, fields map[string]any) (net.Conn, exchangeResponse, error) {
	dialer := net.Dialer{Timeout: dialTimeout}
	conn, err := dialer.DialContext(ctx, "unix", c.socketPath)
	if err != nil {
		return nil, exchangeResponse{}, fmt.Errorf("calling %q on %s: connecting: %w", action, c.socketPath, err)
	}

	deadline := time.Now().Add(responseReadTimeout)
	if ctxDeadline, ok := ctx.Deadline(); ok && ctxDeadline.Before(deadline) {
		deadline = ctxDeadline
	}
	conn.SetDeadline(deadline)

	if err := codec.NewEncoder(conn).Encode(buildRequest(action, fields)); err != nil {
		return conn, exchangeResponse{}, fmt.Errorf("calling %q on %s: writing request: %w", action, c.socketPath, err)
	}

	decoder := codec.NewDecoder(io.LimitReader(conn, maxResponseSize))
	var response Response
	if err := decoder.Decode(&response); err != nil {
		return conn, exchangeResponse{}, fmt.Errorf("calling %q on %s: reading response: %w", action, c.socketPath, err)
	}
	return conn, exchangeResponse{Response: response, decoder: decoder}, nil
}

// buildRequest copies the caller's fields and injects "action".
func buildRequest(action string, fields map[string]any) map[string]any {
	request := make(map[string]any, len(fields)+1)
	for key, value := range fields {
		request[key] = value
	}
	request["action"] = action
	return request
}

func decodeResult(action string, response exchangeResponse, result any) error {
	if !response.OK {
		return &ServiceError{Action: action, Message: response.Error}
	}
	if result != nil && len(response.Data) > 0 {
		if err := codec.Unmarshal(response.Data, result); err != nil {
			return fmt.Errorf("decoding response data for %q: %w", action, err)
		}
	}
	return nil
}
