// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

//go:build !unix

package spawn

import "syscall"

func detachedAttributes() *syscall.SysProcAttr { return nil }
