// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package cli is the command tree behind the rendezvous binary: flag
// parsing with pflag, help output, typo suggestions for commands and
// flags, and the logger commands share.
package cli
