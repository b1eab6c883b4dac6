// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package bootstrap implements discover-or-create: connect to a
// per-host service instance if one is running, and otherwise start
// exactly one and connect to it, no matter how many processes attempt
// this at the same time.
//
// [Run] drives the sequence. It first tries to connect (discovery). On
// failure it takes the slot's creation lock with [hostlock.TryAcquire],
// which never blocks. A contended lock means another process is
// creating; Run waits [Config.Contention] and starts over from
// discovery. With the lock held, Run repeats discovery (the double
// check), because the previous holder may have finished creating
// between the first attempt and the lock acquisition. Only when the
// double check fails, and no live process owns the slot's liveness
// record, does Run call [Config.Create]. The lock is released before
// connect-after-create, which retries per [Config.Retry].
//
// All waiting goes through [clock.Clock] and honours both the overall
// [Config.Timeout] and the caller's context. Failures are returned as
// [*Error] values matching one of [ErrCreationFailed],
// [ErrServiceUnreachable], [ErrDeadlineExceeded], [ErrIO], or
// [context.Canceled].
//
// A [Slot] names the on-disk coordination files for one endpoint. Its
// name is derived from the endpoint with BLAKE3 so that unrelated
// endpoints never share a lock.
package bootstrap
