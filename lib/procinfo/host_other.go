// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

//go:build !unix

package procinfo

// Host returns an Introspector that knows nothing; every liveness
// check against it reports stale.
func Host() Introspector {
	return unsupported{}
}

type unsupported struct{}

func (unsupported) Exists(int) (bool, error)          { return false, ErrUnsupported }
func (unsupported) StartTime(int) (StartTime, error) { return "", ErrUnsupported }
