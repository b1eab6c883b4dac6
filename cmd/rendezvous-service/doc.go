// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Rendezvous-service is the coordinated single-instance service. It
// is normally started by "rendezvous connect" on behalf of the first
// client, but can be run by hand as an independent daemon.
//
// On startup it claims the slot's liveness record, refusing to run
// while another live instance owns the slot, then serves two actions
// on its Unix socket:
//
//   - status: pid, version, ownership model, attached clients, uptime
//   - attach: a session that registers the caller as a client until it
//     detaches or its connection drops
//
// The ownership model decides when the service exits on its own:
// creator-owned services exit when the creating process dies,
// last-client-standing services exit when the last attached client
// leaves, and independent daemons run until SIGINT or SIGTERM. On exit
// the socket is removed first and the liveness record second, so a
// client that finds the record gone never finds a stale socket.
//
// With --metrics-address (or service.metrics_address) the service
// serves Prometheus metrics at /metrics.
package main
