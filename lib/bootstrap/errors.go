// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package bootstrap

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrCreationFailed: Create returned an error. Not retried.
	ErrCreationFailed = errors.New("service creation failed")

	// ErrServiceUnreachable: connect-after-create exhausted its
	// attempts.
	ErrServiceUnreachable = errors.New("service unreachable after creation")

	// ErrDeadlineExceeded: the overall timeout or the caller's
	// deadline elapsed.
	ErrDeadlineExceeded = errors.New("bootstrap deadline exceeded")

	// ErrIO: the coordination files could not be used.
	ErrIO = errors.New("bootstrap I/O failure")
)

// Error is returned by [Run] for every failure. Kind is one of the
// package sentinels or [context.Canceled]; errors.Is matches both Kind
// and the underlying Err.
type Error struct {
	Kind     error
	State    State
	Attempts int
	Elapsed  time.Duration
	Err      error
}

func (e *Error) Error() string {
	message := fmt.Sprintf("bootstrap: %v (state %s, %d connect attempts, %s elapsed)",
		e.Kind, e.State, e.Attempts, e.Elapsed.Round(time.Millisecond))
	if e.Err != nil {
		message += ": " + e.Err.Error()
	}
	return message
}

func (e *Error) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}
