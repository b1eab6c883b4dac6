// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package process holds the entrypoint error handler shared by the
// rendezvous binaries. It writes to stderr directly because the
// structured logger may not exist yet when main() fails.
package process
