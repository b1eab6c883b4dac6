// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package hostlock provides the creation lock: a host-wide, advisory,
// non-blocking exclusive lock on a well-known file.
//
// The lock serializes one decision, "am I the process that creates the
// service". It says nothing about who owns the running service; that
// is the liveness record's job, and the two live in different files.
//
// [TryAcquire] never waits. On contention it returns an error matching
// [ErrWouldBlock] and the caller picks its own backoff. The returned
// [Guard] must be released on every path; if the process dies first,
// the kernel drops the lock with the file descriptor, so a crashed
// creator never leaves the lock held.
//
// On Unix the lock is flock(2) on a file opened by this package. Locks
// belong to the open file description, so two TryAcquire calls in the
// same process contend with each other exactly as two processes do.
// The lock file's contents are never read.
package hostlock
