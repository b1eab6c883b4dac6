// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

//go:build unix

package hostlock

import (
	"errors"
	"fmt"
	"os"

	"golang.org/x/sys/unix"
)

// TryAcquire takes the exclusive lock on path without blocking,
// creating the file if needed. The parent directory must exist.
func TryAcquire(path string) (*Guard, error) {
	file, err := openLockFile(path)
	if err != nil {
		return nil, err
	}

	for {
		err = unix.Flock(int(file.Fd()), unix.LOCK_EX|unix.LOCK_NB)
		if !errors.Is(err, unix.EINTR) {
			break
		}
	}
	if err != nil {
		file.Close()
		if errors.Is(err, unix.EWOULDBLOCK) {
			return nil, fmt.Errorf("%s: %w", path, ErrWouldBlock)
		}
		return nil, fmt.Errorf("%w: locking %s: %v", ErrIO, path, err)
	}
	return &Guard{path: path, file: file}, nil
}

// openLockFile opens path for locking. An empty directory squatting on
// the path cannot be a lock anyone holds, so it is removed and the file
// recreated. Any other failure leaves the path alone: a regular file
// may be locked by another process, and unlinking it would let a
// second holder lock a fresh inode.
func openLockFile(path string) (*os.File, error) {
	file, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0600)
	if err == nil {
		return file, nil
	}

	info, statErr := os.Lstat(path)
	if statErr != nil || !info.IsDir() {
		return nil, fmt.Errorf("%w: opening %s: %v", ErrIO, path, err)
	}
	// Rmdir cannot remove a lock file another process created in the
	// meantime.
	if rmErr := unix.Rmdir(path); rmErr != nil && !errors.Is(rmErr, unix.ENOENT) {
		return nil, fmt.Errorf("%w: opening %s: %v (removing the directory failed: %v)", ErrIO, path, err, rmErr)
	}
	file, err = os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0600)
	if err != nil {
		return nil, fmt.Errorf("%w: recreating %s: %v", ErrIO, path, err)
	}
	return file, nil
}

func unlock(file *os.File) error {
	if err := unix.Flock(int(file.Fd()), unix.LOCK_UN); err != nil {
		return fmt.Errorf("unlocking %s: %w", file.Name(), err)
	}
	return nil
}
