// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package clock abstracts the passage of time for the coordination
// layer. Every wait in rendezvous (connect retry backoff, lock
// contention backoff, creator liveness polling) goes through a [Clock]
// so tests can drive it deterministically.
//
// Production code uses [Real]. Tests use [Fake], which stands still
// until [FakeClock.Advance] is called:
//
//	c := clock.Fake(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
//	go run(c)              // blocks in c.After(time.Second)
//	c.WaitForTimers(1)     // wait until the goroutine registered its wait
//	c.Advance(time.Second) // release it
//
// Deadlines carried by context.Context still use wall-clock time; the
// fake clock only controls the delays rendezvous chooses itself.
package clock
