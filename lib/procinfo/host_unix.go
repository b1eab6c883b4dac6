// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

//go:build unix && !linux

package procinfo

import (
	"errors"
	"fmt"

	"golang.org/x/sys/unix"
)

// Host returns an Introspector that can detect process existence but
// not start times. Liveness checks against it always report stale,
// which errs toward recreating the service.
func Host() Introspector {
	return signalIntrospector{}
}

type signalIntrospector struct{}

func (signalIntrospector) Exists(pid int) (bool, error) {
	if pid <= 0 {
		return false, nil
	}
	err := unix.Kill(pid, 0)
	switch {
	case err == nil, errors.Is(err, unix.EPERM):
		return true, nil
	case errors.Is(err, unix.ESRCH):
		return false, nil
	default:
		return false, fmt.Errorf("signalling process %d: %w", pid, err)
	}
}

func (signalIntrospector) StartTime(int) (StartTime, error) {
	return "", ErrUnsupported
}
