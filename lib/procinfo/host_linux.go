// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package procinfo

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"sync"

	"github.com/prometheus/procfs"
)

// Host returns an Introspector reading the system's /proc.
func Host() Introspector {
	return NewProcFS(procfs.DefaultMountPoint)
}

// ProcFS is an Introspector reading a procfs mount. Tests point it at a
// fixture directory laid out like /proc.
type ProcFS struct {
	mountPoint string

	fsOnce sync.Once
	fs     procfs.FS
	fsErr  error

	bootOnce sync.Once
	bootTime uint64
	bootErr  error
}

// NewProcFS returns an Introspector reading the procfs mounted at
// mountPoint.
func NewProcFS(mountPoint string) *ProcFS {
	return &ProcFS{mountPoint: mountPoint}
}

func (p *ProcFS) filesystem() (procfs.FS, error) {
	p.fsOnce.Do(func() {
		p.fs, p.fsErr = procfs.NewFS(p.mountPoint)
		if p.fsErr != nil {
			p.fsErr = fmt.Errorf("opening procfs at %s: %w", p.mountPoint, p.fsErr)
		}
	})
	return p.fs, p.fsErr
}

// stat reads /proc/<pid>/stat. A missing process yields ErrNoProcess.
func (p *ProcFS) stat(pid int) (procfs.ProcStat, error) {
	if pid <= 0 {
		return procfs.ProcStat{}, fmt.Errorf("process %d: %w", pid, ErrNoProcess)
	}
	fs, err := p.filesystem()
	if err != nil {
		return procfs.ProcStat{}, err
	}
	proc, err := fs.Proc(pid)
	if err == nil {
		var stat procfs.ProcStat
		stat, err = proc.Stat()
		if err == nil {
			return stat, nil
		}
	}
	if errors.Is(err, os.ErrNotExist) {
		return procfs.ProcStat{}, fmt.Errorf("process %d: %w", pid, ErrNoProcess)
	}
	return procfs.ProcStat{}, fmt.Errorf("reading stat for process %d: %w", pid, err)
}

func (p *ProcFS) Exists(pid int) (bool, error) {
	stat, err := p.stat(pid)
	if errors.Is(err, ErrNoProcess) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	// Z: zombie, X: dead. Neither can serve anything.
	return stat.State != "Z" && stat.State != "X", nil
}

func (p *ProcFS) StartTime(pid int) (StartTime, error) {
	stat, err := p.stat(pid)
	if err != nil {
		return "", err
	}
	boot, err := p.boot()
	if err != nil {
		return "", err
	}
	return StartTime(strconv.FormatUint(boot, 10) + ":" + strconv.FormatUint(stat.Starttime, 10)), nil
}

// boot returns the system boot time from /proc/stat. It is constant
// for the life of the process, so it is read once.
func (p *ProcFS) boot() (uint64, error) {
	p.bootOnce.Do(func() {
		fs, err := p.filesystem()
		if err != nil {
			p.bootErr = err
			return
		}
		stat, err := fs.Stat()
		if err != nil {
			p.bootErr = fmt.Errorf("reading boot time: %w", err)
			return
		}
		p.bootTime = stat.BootTime
	})
	return p.bootTime, p.bootErr
}
