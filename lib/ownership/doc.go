// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package ownership decides when a coordinated service should shut
// itself down.
//
// Three models are supported:
//
//   - [CreatorOwned]: the service lives as long as the process that
//     created it. [WatchCreator] polls the creator's liveness and
//     reports its exit.
//   - [LastClientStanding]: the service exits when its last registered
//     client unregisters or disconnects. A service that has never had a
//     client keeps running until one arrives and leaves.
//   - [IndependentDaemon]: the service never asks to stop; only an
//     external signal ends it.
//
// A [Coordinator] is safe for concurrent use by connection handlers.
package ownership
