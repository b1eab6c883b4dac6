// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package procinfo answers two questions about a process id: does a
// process with that id exist, and when did it start. Together they let
// the liveness checker tell a recorded owner apart from an unrelated
// process that was later handed the same pid.
//
// [Host] returns the platform implementation. On Linux it reads /proc
// through github.com/prometheus/procfs and reports start times as
// "<boot time>:<start ticks>", which stays unique across reboots. Other
// Unix systems can answer existence (kill with signal 0) but not start
// time, and return [ErrUnsupported] for it.
//
// [Fake] is an in-memory [Introspector] for tests.
package procinfo
