// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"fmt"

	"github.com/spf13/pflag"

	"github.com/bureau-foundation/rendezvous/lib/bootstrap"
	"github.com/bureau-foundation/rendezvous/lib/config"
)

// commonParams are the flags shared by every command that talks to
// the service.
type commonParams struct {
	ConfigPath string
	SocketPath string
	StateDir   string
	Verbose    bool
}

func (p *commonParams) register(flags *pflag.FlagSet) {
	flags.StringVar(&p.ConfigPath, "config", "", "configuration file (default: $"+config.ConfigEnv+", then built-in defaults)")
	flags.StringVar(&p.SocketPath, "socket", "", "service socket (overrides service.socket_path)")
	flags.StringVar(&p.StateDir, "state-dir", "", "directory for liveness records and locks (overrides state_dir)")
	flags.BoolVarP(&p.Verbose, "verbose", "v", false, "log bootstrap progress to stderr")
}

// load resolves the configuration and applies the flag overrides.
func (p *commonParams) load() (*config.Config, error) {
	cfg, err := config.Resolve(p.ConfigPath)
	if err != nil {
		return nil, err
	}
	if p.StateDir != "" {
		cfg.StateDir = p.StateDir
	}
	if p.SocketPath != "" {
		cfg.Service.SocketPath = p.SocketPath
	}
	return cfg, nil
}

// validate checks cfg after every override has been applied.
func validate(cfg *config.Config) error {
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	return nil
}

// slotFor returns the coordination slot for the configured socket.
func slotFor(cfg *config.Config) bootstrap.Slot {
	return bootstrap.NewSlot(cfg.StateDir, cfg.Service.SocketPath)
}
