// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package service

// ProtocolVersion is bumped on incompatible changes to the messages
// below. Clients refuse a service that speaks a different version.
const ProtocolVersion = 1

// Actions served by rendezvous-service.
const (
	// ActionAttach opens a session that registers the caller as a
	// client until it detaches or disconnects.
	ActionAttach = "attach"

	// ActionStatus reports the service's state in one round trip.
	ActionStatus = "status"
)

// AttachRequest carries the fields of an attach request.
type AttachRequest struct {
	// ClientID identifies the client to the ownership coordinator.
	// Empty lets the service assign one.
	ClientID string `cbor:"client_id,omitempty"`

	// PID is the client's process id, logged for diagnostics.
	PID int `cbor:"pid,omitempty"`
}

// AttachResponse is returned when a session opens.
type AttachResponse struct {
	Protocol  int    `cbor:"protocol"`
	Version   string `cbor:"version"`
	ClientID  string `cbor:"client_id"`
	Clients   int    `cbor:"clients"`
	Ownership string `cbor:"ownership"`
	PID       int    `cbor:"pid"`
}

// StatusResponse describes a running service.
type StatusResponse struct {
	Protocol      int     `cbor:"protocol"`
	PID           int     `cbor:"pid"`
	Version       string  `cbor:"version"`
	Ownership     string  `cbor:"ownership"`
	Clients       int     `cbor:"clients"`
	UptimeSeconds float64 `cbor:"uptime_seconds"`
	SocketPath    string  `cbor:"socket_path"`

	// CreatorPID is the process that started the service, zero when it
	// was started by hand.
	CreatorPID int `cbor:"creator_pid,omitempty"`
}
