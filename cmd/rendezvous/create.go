// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/bureau-foundation/rendezvous/lib/clock"
	"github.com/bureau-foundation/rendezvous/lib/config"
	"github.com/bureau-foundation/rendezvous/lib/liveness"
	"github.com/bureau-foundation/rendezvous/lib/procinfo"
	"github.com/bureau-foundation/rendezvous/lib/spawn"
)

// claimPollInterval is how often the creator re-reads the liveness
// record while waiting for the new service to claim it.
const claimPollInterval = 20 * time.Millisecond

// creator starts the service on behalf of the bootstrapper.
type creator struct {
	spec   spawn.Spec
	store  *liveness.Store
	clock  clock.Clock
	poll   time.Duration
	logger *slog.Logger
	start  func(spawn.Spec) (*spawn.Process, error)
}

// serviceSpec builds the command line for a service created by this
// process. Configured arguments come last so they can override ours.
func serviceSpec(cfg *config.Config, configPath, binary string, creatorPID int, creatorStart procinfo.StartTime) spawn.Spec {
	args := []string{
		"--socket", cfg.Service.SocketPath,
		"--state-dir", cfg.StateDir,
		"--ownership", cfg.Service.Ownership,
		"--creator-pid", strconv.Itoa(creatorPID),
	}
	if creatorStart != "" {
		args = append(args, "--creator-start-time", string(creatorStart))
	}
	if configPath != "" {
		args = append(args, "--config", configPath)
	}
	if cfg.Service.MetricsAddress != "" {
		args = append(args, "--metrics-address", cfg.Service.MetricsAddress)
	}
	args = append(args, cfg.Service.Args...)

	return spawn.Spec{
		Binary:  binary,
		Args:    args,
		LogPath: cfg.Service.LogPath,
		Dir:     "/",
	}
}

// create starts the service and waits until it has claimed the slot's
// liveness record. Returning only after the claim means a concurrent
// bootstrapper that takes the creation lock next sees a live owner
// instead of starting a second instance.
func (c *creator) create(ctx context.Context) error {
	child, err := c.start(c.spec)
	if err != nil {
		return err
	}
	c.logger.Info("started service",
		"pid", child.PID,
		"binary", c.spec.Binary,
		"log_path", c.spec.LogPath,
	)
	return c.awaitClaim(ctx, child.PID, child.Exited(), child.Err)
}

// awaitClaim polls the liveness record until it names pid. It fails
// when exited closes first or ctx ends.
func (c *creator) awaitClaim(ctx context.Context, pid int, exited <-chan struct{}, exitErr func() error) error {
	for {
		if record, ok := c.store.Read(); ok && record.ProcessID == pid {
			c.logger.Debug("service claimed its slot", "pid", pid)
			return nil
		}
		select {
		case <-exited:
			err := exitErr()
			if err == nil {
				err = errors.New("exit status 0")
			}
			if c.spec.LogPath != "" {
				return fmt.Errorf("service (pid %d) exited before claiming its slot: %w (see %s)", pid, err, c.spec.LogPath)
			}
			return fmt.Errorf("service (pid %d) exited before claiming its slot: %w", pid, err)
		case <-ctx.Done():
			return ctx.Err()
		case <-c.clock.After(c.poll):
		}
	}
}
