// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package codec holds the CBOR configuration for the rendezvous
// service socket protocol.
//
// The on-disk liveness record stays JSON (it is meant to be readable
// with cat); everything that crosses the service socket is CBOR. The
// encoder uses Core Deterministic Encoding (RFC 8949 §4.2) so the same
// request always produces the same bytes.
//
// Use [Marshal] and [Unmarshal] for buffers and [NewEncoder] and
// [NewDecoder] for connections. Protocol types use `cbor` struct tags.
package codec
