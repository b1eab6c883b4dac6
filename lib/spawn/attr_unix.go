// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

//go:build unix

package spawn

import "syscall"

// detachedAttributes puts the child in its own session so terminal
// hangups and job-control signals aimed at the creator do not reach
// it.
func detachedAttributes() *syscall.SysProcAttr {
	return &syscall.SysProcAttr{Setsid: true}
}
