// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package liveness records and verifies which process owns a
// coordination slot.
//
// A [Record] names the owner by pid, start time, and software version.
// [Store] persists it as a small JSON file written atomically (write to
// a temporary file, fsync, rename into place, fsync the directory), so
// a concurrent reader sees either the old record or the new one, never
// a mix. Anything unreadable is treated as absent: a truncated file, a
// syntax error, or a record with no pid all read back as "no owner".
//
// [Checker] decides whether a recorded owner is still that same
// process. A live process with the recorded pid is not enough, because
// pids are recycled; its start time must also match the recorded one.
// When the start time cannot be determined the checker answers "not
// alive" so a stale record never blocks recreating the service.
//
// The record file is private to the coordination layer. The service
// being coordinated writes it through [Store] and never parses it.
package liveness
