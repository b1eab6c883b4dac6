// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

//go:build !unix

package hostlock

import (
	"fmt"
	"os"
)

// TryAcquire is not implemented on this platform.
func TryAcquire(path string) (*Guard, error) {
	return nil, fmt.Errorf("%w: advisory locks are not supported on this platform", ErrIO)
}

func unlock(*os.File) error { return nil }
