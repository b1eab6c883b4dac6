// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/bureau-foundation/rendezvous/lib/clock"
	"github.com/bureau-foundation/rendezvous/lib/codec"
	"github.com/bureau-foundation/rendezvous/lib/ownership"
	"github.com/bureau-foundation/rendezvous/lib/service"
	"github.com/bureau-foundation/rendezvous/lib/version"
)

// server holds the state behind the socket handlers.
type server struct {
	coordinator *ownership.Coordinator
	clock       clock.Clock
	logger      *slog.Logger
	socketPath  string
	pid         int
	creatorPID  int
	started     time.Time

	// sessions numbers attach sessions. Anonymous clients are named
	// after their session number.
	sessions atomic.Uint64
}

func (s *server) register(socket *service.SocketServer) {
	socket.Handle(service.ActionStatus, s.handleStatus)
	socket.HandleSession(service.ActionAttach, s.handleAttach)
}

func (s *server) handleStatus(context.Context, []byte) (any, error) {
	return service.StatusResponse{
		Protocol:      service.ProtocolVersion,
		PID:           s.pid,
		Version:       version.Short(),
		Ownership:     string(s.coordinator.Model()),
		Clients:       s.coordinator.Clients(),
		UptimeSeconds: s.clock.Now().Sub(s.started).Seconds(),
		SocketPath:    s.socketPath,
		CreatorPID:    s.creatorPID,
	}, nil
}

// handleAttach registers the caller with the coordinator for the
// lifetime of its session. Attaching is refused once shutdown has been
// decided, so the client goes back to discovery instead of joining a
// service that is about to exit.
func (s *server) handleAttach(_ context.Context, raw []byte) (any, func(bool), error) {
	var request service.AttachRequest
	if err := codec.Unmarshal(raw, &request); err != nil {
		return nil, nil, fmt.Errorf("invalid attach request: %w", err)
	}
	if s.coordinator.ShouldShutdown() {
		return nil, nil, errors.New("service is shutting down")
	}

	session := s.sessions.Add(1)
	clientID := request.ClientID
	if clientID == "" {
		clientID = fmt.Sprintf("anonymous-%d", session)
	}
	// Client ids are chosen by clients and may repeat; each session
	// counts as its own client.
	key := fmt.Sprintf("%s#%d", clientID, session)
	s.coordinator.RegisterClient(key)
	s.logger.Info("client attached",
		"client_id", clientID,
		"session", session,
		"client_pid", request.PID,
		"clients", s.coordinator.Clients(),
	)

	release := func(graceful bool) {
		if graceful {
			s.coordinator.UnregisterClient(key)
		} else {
			s.coordinator.ClientDisconnected(key)
		}
		s.logger.Info("client left",
			"client_id", clientID,
			"session", session,
			"graceful", graceful,
			"clients", s.coordinator.Clients(),
		)
	}

	return service.AttachResponse{
		Protocol:  service.ProtocolVersion,
		Version:   version.Short(),
		ClientID:  clientID,
		Clients:   s.coordinator.Clients(),
		Ownership: string(s.coordinator.Model()),
		PID:       s.pid,
	}, release, nil
}
