// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package procinfo

import (
	"errors"
	"fmt"
	"os"
	"sync"
)

// StartTime is an opaque process creation timestamp. Values are only
// compared for equality, never parsed or displayed as times.
type StartTime string

// ErrUnsupported is returned when the platform cannot report a
// process start time.
var ErrUnsupported = errors.New("process start time is not available on this platform")

// ErrNoProcess is returned by StartTime for a pid with no process.
var ErrNoProcess = errors.New("no such process")

// Introspector queries the operating system about processes.
type Introspector interface {
	// Exists reports whether a live process has the given pid.
	// Zombies count as gone.
	Exists(pid int) (bool, error)

	// StartTime returns the creation timestamp of the process with the
	// given pid.
	StartTime(pid int) (StartTime, error)
}

// Self returns the current process's pid and start time as seen by
// introspector.
func Self(introspector Introspector) (int, StartTime, error) {
	pid := os.Getpid()
	startTime, err := introspector.StartTime(pid)
	if err != nil {
		return 0, "", fmt.Errorf("reading own start time: %w", err)
	}
	return pid, startTime, nil
}

// Fake is an Introspector backed by a map. The zero value has no
// processes. Safe for concurrent use.
type Fake struct {
	mu        sync.Mutex
	processes map[int]StartTime
	failures  map[int]error
}

// NewFake returns an empty Fake.
func NewFake() *Fake {
	return &Fake{}
}

// Start records a running process.
func (f *Fake) Start(pid int, startTime StartTime) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.processes == nil {
		f.processes = make(map[int]StartTime)
	}
	f.processes[pid] = startTime
	delete(f.failures, pid)
}

// Exit removes a process.
func (f *Fake) Exit(pid int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.processes, pid)
}

// FailStartTime makes StartTime for pid return err while the process
// still exists, simulating missing privileges.
func (f *Fake) FailStartTime(pid int, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failures == nil {
		f.failures = make(map[int]error)
	}
	f.failures[pid] = err
}

func (f *Fake) Exists(pid int) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.processes[pid]
	return ok, nil
}

func (f *Fake) StartTime(pid int) (StartTime, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.failures[pid]; err != nil {
		return "", err
	}
	startTime, ok := f.processes[pid]
	if !ok {
		return "", fmt.Errorf("process %d: %w", pid, ErrNoProcess)
	}
	return startTime, nil
}
