// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package hostlock

import (
	"errors"
	"os"
	"sync"
)

var (
	// ErrWouldBlock means another holder has the lock.
	ErrWouldBlock = errors.New("creation lock is held by another process")

	// ErrIO marks failures to open or lock the lock file for reasons
	// other than contention.
	ErrIO = errors.New("creation lock I/O failure")
)

// Guard is a held creation lock.
type Guard struct {
	path string
	file *os.File

	once sync.Once
	err  error
}

// Path returns the lock file path.
func (g *Guard) Path() string { return g.path }

// Release drops the lock and closes the file. Safe to call more than
// once; later calls return the first call's result.
func (g *Guard) Release() error {
	g.once.Do(func() {
		g.err = unlock(g.file)
		if closeErr := g.file.Close(); g.err == nil {
			g.err = closeErr
		}
	})
	return g.err
}
