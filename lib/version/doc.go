// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package version carries build information injected with -ldflags:
//
//	go build -ldflags "-X github.com/bureau-foundation/rendezvous/lib/version.GitCommit=$(git rev-parse --short HEAD)"
//
// [Short] is what the service stamps into its liveness record. A
// client compares it against its own [Short] to warn about a running
// service built from a different release.
package version
