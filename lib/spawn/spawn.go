// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package spawn starts service processes that outlive the process
// that started them.
package spawn

import (
	"errors"
	"fmt"
	"os"
	"os/exec"
)

// Spec describes a process to start.
type Spec struct {
	// Binary is the executable path.
	Binary string

	// Args are the arguments after the program name.
	Args []string

	// LogPath receives stdout and stderr, appended. Empty discards
	// output.
	LogPath string

	// Env is added to the current environment.
	Env []string

	// Dir is the working directory. Empty means the current one.
	Dir string
}

// Process is a started child.
type Process struct {
	// PID is the child's process id.
	PID int

	process *os.Process
	exited  chan struct{}
	err     error
}

// Detached starts spec in a new session with no controlling terminal
// and stdin on /dev/null, and returns once the process has been
// created. The child is reaped in the background for as long as this
// process lives; if this process exits first the child is reparented
// and keeps running.
func Detached(spec Spec) (*Process, error) {
	if spec.Binary == "" {
		return nil, errors.New("spawn: binary is required")
	}

	cmd := exec.Command(spec.Binary, spec.Args...)
	cmd.Dir = spec.Dir
	cmd.Env = append(os.Environ(), spec.Env...)
	cmd.SysProcAttr = detachedAttributes()

	if spec.LogPath != "" {
		logFile, err := os.OpenFile(spec.LogPath, os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0600)
		if err != nil {
			return nil, fmt.Errorf("opening service log %s: %w", spec.LogPath, err)
		}
		// The child has its own copy after Start.
		defer logFile.Close()
		cmd.Stdout = logFile
		cmd.Stderr = logFile
	}

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("starting %s: %w", spec.Binary, err)
	}

	process := &Process{
		PID:     cmd.Process.Pid,
		process: cmd.Process,
		exited:  make(chan struct{}),
	}
	go func() {
		process.err = cmd.Wait()
		close(process.exited)
	}()
	return process, nil
}

// Exited is closed when the child exits while this process is still
// alive to observe it.
func (p *Process) Exited() <-chan struct{} { return p.exited }

// Err returns the child's exit status. Only meaningful after Exited is
// closed.
func (p *Process) Err() error {
	select {
	case <-p.exited:
		return p.err
	default:
		return nil
	}
}

// Kill terminates the child immediately.
func (p *Process) Kill() error { return p.process.Kill() }
