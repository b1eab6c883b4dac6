// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package liveness

import (
	"io"
	"log/slog"

	"github.com/bureau-foundation/rendezvous/lib/procinfo"
)

// Checker verifies recorded owners against the operating system.
type Checker struct {
	introspector procinfo.Introspector
	logger       *slog.Logger
}

// NewChecker returns a Checker using introspector. A nil logger
// discards diagnostics.
func NewChecker(introspector procinfo.Introspector, logger *slog.Logger) *Checker {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Checker{introspector: introspector, logger: logger}
}

// IsOwnerAlive reports whether the process described by record is still
// running. It returns true only when a process with the recorded pid
// exists and its start time equals the recorded one. Any failure to
// find out is reported as false.
func (c *Checker) IsOwnerAlive(record Record) bool {
	exists, err := c.introspector.Exists(record.ProcessID)
	if err != nil {
		c.logger.Debug("cannot determine whether owner exists, treating as stale",
			"pid", record.ProcessID,
			"error", err,
		)
		return false
	}
	if !exists {
		return false
	}

	actual, err := c.introspector.StartTime(record.ProcessID)
	if err != nil {
		c.logger.Debug("cannot read owner start time, treating as stale",
			"pid", record.ProcessID,
			"error", err,
		)
		return false
	}
	if actual != record.StartTime {
		c.logger.Debug("pid reused by a different process",
			"pid", record.ProcessID,
			"recorded_start", record.StartTime,
			"actual_start", actual,
		)
		return false
	}
	return true
}
