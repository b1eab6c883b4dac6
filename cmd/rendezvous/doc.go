// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Rendezvous is the client side of single-instance coordination.
//
// "rendezvous connect" discovers the service for the configured
// socket, starting rendezvous-service when no instance is reachable,
// and stays attached as a client until interrupted. Concurrent
// connects serialize creation on a host-wide lock, so exactly one of
// them starts the service and the rest connect to it.
//
// "rendezvous status" queries a running service and shows the slot's
// liveness record without starting anything.
//
// Configuration comes from --config, then $RENDEZVOUS_CONFIG, then
// built-in defaults; --socket and --state-dir override the file.
package main
