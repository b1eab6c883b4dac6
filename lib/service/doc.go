// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package service provides the Unix socket protocol spoken between
// rendezvous clients and the coordinated service.
//
// Every message is a single CBOR value; CBOR is self-delimiting, so no
// framing is needed. Requests are maps carrying an "action" field and
// responses are [Response] envelopes.
//
// Two connection shapes are supported:
//
//   - Request/response: the client writes one request, the server
//     writes one response, and the connection closes. Register these
//     with [SocketServer.Handle] and call them with [ServiceClient.Call].
//   - Sessions: the connection stays open after the first response for
//     as long as the client remains attached. The server learns of a
//     clean detach from a "detach" request and of a crashed client from
//     EOF. Register with [SocketServer.HandleSession] and open with
//     [ServiceClient.Attach].
//
// The rendezvous actions and their payloads are defined in protocol.go;
// a client compares [AttachResponse].Protocol with [ProtocolVersion]
// before trusting an instance.
//
// [Metrics] counts requests and open sessions on a private Prometheus
// registry, and [MetricsServer] exposes it over HTTP when configured.
package service
