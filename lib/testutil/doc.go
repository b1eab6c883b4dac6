// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package testutil provides shared test helpers.
//
// [SocketDir] returns a short directory under /tmp for Unix sockets,
// which have a 108-byte path limit that t.TempDir() paths can exceed.
// [RequireReceive] and [RequireClosed] wrap the select-with-timeout
// pattern so tests never hang when the code under test deadlocks.
// [UniqueID] generates distinct client identifiers.
//
// Helpers call t.Fatalf on failure.
package testutil
