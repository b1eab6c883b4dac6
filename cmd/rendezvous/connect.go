// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/pflag"

	"github.com/bureau-foundation/rendezvous/cmd/rendezvous/cli"
	"github.com/bureau-foundation/rendezvous/lib/bootstrap"
	"github.com/bureau-foundation/rendezvous/lib/clock"
	"github.com/bureau-foundation/rendezvous/lib/config"
	"github.com/bureau-foundation/rendezvous/lib/liveness"
	"github.com/bureau-foundation/rendezvous/lib/procinfo"
	"github.com/bureau-foundation/rendezvous/lib/service"
	"github.com/bureau-foundation/rendezvous/lib/spawn"
)

type connectParams struct {
	commonParams
	Ownership string
	Timeout   time.Duration
	ClientID  string
	Detach    bool
}

func connectCommand() *cli.Command {
	var params connectParams

	return &cli.Command{
		Name:    "connect",
		Summary: "Connect to the service, starting it if no instance is running",
		Description: `Connect to the service for the configured socket, starting it when no
instance is reachable. Any number of concurrent connect commands on the
host start at most one service between them.

The command stays attached as a client until interrupted, then detaches.
With --detach it detaches as soon as the connection is established, which
is useful for starting the service from scripts.`,
		Usage: "rendezvous connect [flags]",
		Examples: []cli.Example{
			{
				Description: "Attach to the default service, starting it if needed",
				Command:     "rendezvous connect",
			},
			{
				Description: "Start a service that outlives every client",
				Command:     "rendezvous connect --ownership independent-daemon --detach",
			},
		},
		Flags: func() *pflag.FlagSet {
			flags := pflag.NewFlagSet("connect", pflag.ContinueOnError)
			params.register(flags)
			flags.StringVar(&params.Ownership, "ownership", "", "shutdown model for a service this command starts")
			flags.DurationVar(&params.Timeout, "timeout", 0, "overall bootstrap deadline (overrides bootstrap.timeout)")
			flags.StringVar(&params.ClientID, "client-id", "", "client id reported to the service (default: derived from the pid)")
			flags.BoolVar(&params.Detach, "detach", false, "detach as soon as the connection is established")
			return flags
		},
		Run: func(args []string) error {
			if len(args) > 0 {
				return fmt.Errorf("unexpected argument: %s", args[0])
			}
			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return runConnect(ctx, params, os.Stdout, cli.NewCommandLogger(params.Verbose))
		},
	}
}

func runConnect(ctx context.Context, params connectParams, out io.Writer, logger *slog.Logger) error {
	cfg, err := params.load()
	if err != nil {
		return err
	}
	if params.Ownership != "" {
		cfg.Service.Ownership = params.Ownership
	}
	if params.Timeout > 0 {
		cfg.Bootstrap.Timeout = params.Timeout
	}
	if err := validate(cfg); err != nil {
		return err
	}
	if err := cfg.EnsurePaths(); err != nil {
		return err
	}

	conn, err := newConnector(cfg, params.ConfigPath, params.ClientID, logger)
	if err != nil {
		return err
	}
	result, err := conn.run(ctx)
	if err != nil {
		return err
	}
	session := result.Conn

	var attached service.AttachResponse
	if err := session.Decode(&attached); err != nil {
		session.Close()
		return err
	}
	fmt.Fprintf(out, "connected to %s (pid %d, version %s, %s, %s, %d client(s), %s)\n",
		cfg.Service.SocketPath, attached.PID, attached.Version, attached.Ownership,
		result.Path, attached.Clients, result.Elapsed.Round(time.Millisecond))

	if !params.Detach {
		select {
		case <-ctx.Done():
		case <-session.Done():
			return errors.New("service closed the session")
		}
	}

	detachCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return session.Detach(detachCtx)
}

// connector runs the discover-or-create bootstrap for one client.
type connector struct {
	cfg      *config.Config
	slot     bootstrap.Slot
	client   *service.ServiceClient
	checker  *liveness.Checker
	clientID string
	logger   *slog.Logger
	create   func(ctx context.Context) error
}

// newConnector wires a connector whose Create spawns the configured
// service binary.
func newConnector(cfg *config.Config, configPath, clientID string, logger *slog.Logger) (*connector, error) {
	introspector := procinfo.Host()
	pid, startTime, err := procinfo.Self(introspector)
	if err != nil {
		// Without our own start time the service can still watch our
		// pid; it reads the start time itself.
		logger.Debug("own start time unavailable", "error", err)
		pid = os.Getpid()
	}
	if clientID == "" {
		clientID = fmt.Sprintf("pid-%d", pid)
	}

	slot := slotFor(cfg)
	c := &connector{
		cfg:      cfg,
		slot:     slot,
		client:   service.NewServiceClient(cfg.Service.SocketPath),
		checker:  liveness.NewChecker(introspector, logger),
		clientID: clientID,
		logger:   logger,
	}

	binary, err := cfg.BinaryPath()
	if err != nil {
		// Discovery may still succeed; only creating needs the binary.
		c.create = func(context.Context) error { return err }
		return c, nil
	}
	creator := &creator{
		spec:   serviceSpec(cfg, configPath, binary, pid, startTime),
		store:  liveness.NewStore(slot.RecordPath(), logger),
		clock:  clock.Real(),
		poll:   claimPollInterval,
		logger: logger,
		start:  spawn.Detached,
	}
	c.create = creator.create
	return c, nil
}

func (c *connector) run(ctx context.Context) (bootstrap.Result[*service.Session], error) {
	return bootstrap.Run(ctx, bootstrap.Config[*service.Session]{
		Slot:            c.slot,
		Dial:            c.dial,
		HealthCheck:     checkProtocol,
		Create:          c.create,
		Checker:         c.checker,
		Logger:          c.logger,
		DiscoverTimeout: c.cfg.Bootstrap.DiscoverTimeout,
		Timeout:         c.cfg.Bootstrap.Timeout,
		Retry:           bootstrap.RetryPolicy(c.cfg.Bootstrap.Retry),
		Contention:      bootstrap.RetryPolicy(c.cfg.Bootstrap.Contention),
	})
}

func (c *connector) dial(ctx context.Context) (*service.Session, error) {
	return c.client.Attach(ctx, service.ActionAttach, map[string]any{
		"client_id": c.clientID,
		"pid":       os.Getpid(),
	})
}

// checkProtocol rejects a service that speaks a different protocol
// version.
func checkProtocol(_ context.Context, session *service.Session) error {
	var attached service.AttachResponse
	if err := session.Decode(&attached); err != nil {
		return err
	}
	if attached.Protocol != service.ProtocolVersion {
		return fmt.Errorf("service speaks protocol %d, want %d", attached.Protocol, service.ProtocolVersion)
	}
	return nil
}
