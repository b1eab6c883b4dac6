// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/pflag"

	"github.com/bureau-foundation/rendezvous/lib/bootstrap"
	"github.com/bureau-foundation/rendezvous/lib/clock"
	"github.com/bureau-foundation/rendezvous/lib/config"
	"github.com/bureau-foundation/rendezvous/lib/liveness"
	"github.com/bureau-foundation/rendezvous/lib/ownership"
	"github.com/bureau-foundation/rendezvous/lib/process"
	"github.com/bureau-foundation/rendezvous/lib/procinfo"
	"github.com/bureau-foundation/rendezvous/lib/service"
	"github.com/bureau-foundation/rendezvous/lib/version"
)

func main() {
	if err := run(os.Args[1:]); err != nil {
		process.Fatal(err)
	}
}

type options struct {
	configPath       string
	socketPath       string
	stateDir         string
	ownership        string
	metricsAddress   string
	creatorPID       int
	creatorStartTime string
	debug            bool
	showVersion      bool
}

func parseOptions(args []string) (options, error) {
	var opts options
	flags := pflag.NewFlagSet("rendezvous-service", pflag.ContinueOnError)
	flags.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: rendezvous-service [flags]\n\nFlags:\n%s", flags.FlagUsages())
	}
	flags.StringVar(&opts.configPath, "config", "", "configuration file (default: $"+config.ConfigEnv+", then built-in defaults)")
	flags.StringVar(&opts.socketPath, "socket", "", "socket to listen on (overrides service.socket_path)")
	flags.StringVar(&opts.stateDir, "state-dir", "", "directory for liveness records and locks (overrides state_dir)")
	flags.StringVar(&opts.ownership, "ownership", "", "shutdown model: creator-owned, last-client-standing, or independent-daemon")
	flags.StringVar(&opts.metricsAddress, "metrics-address", "", "serve Prometheus metrics on this TCP address")
	flags.IntVar(&opts.creatorPID, "creator-pid", 0, "process id of the creating client")
	flags.StringVar(&opts.creatorStartTime, "creator-start-time", "", "start time of the creating client, as recorded in liveness records")
	flags.BoolVar(&opts.debug, "debug", false, "log at debug level")
	flags.BoolVar(&opts.showVersion, "version", false, "print version information and exit")
	err := flags.Parse(args)
	return opts, err
}

// resolveConfig loads the configuration and applies flag overrides.
func resolveConfig(opts options) (*config.Config, error) {
	cfg, err := config.Resolve(opts.configPath)
	if err != nil {
		return nil, err
	}
	if opts.stateDir != "" {
		cfg.StateDir = opts.stateDir
	}
	if opts.socketPath != "" {
		cfg.Service.SocketPath = opts.socketPath
	}
	if opts.ownership != "" {
		cfg.Service.Ownership = opts.ownership
	}
	if opts.metricsAddress != "" {
		cfg.Service.MetricsAddress = opts.metricsAddress
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func run(args []string) error {
	opts, err := parseOptions(args)
	if errors.Is(err, pflag.ErrHelp) {
		return nil
	}
	if err != nil {
		return err
	}
	if opts.showVersion {
		version.Print("rendezvous-service")
		return nil
	}

	level := slog.LevelInfo
	if opts.debug {
		level = slog.LevelDebug
	}
	logger := service.NewLogger(os.Stderr, level)

	cfg, err := resolveConfig(opts)
	if err != nil {
		return err
	}
	model, err := ownership.ParseModel(cfg.Service.Ownership)
	if err != nil {
		return err
	}
	introspector := procinfo.Host()
	creator, err := creatorRecord(model, opts, introspector)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	return instance{
		cfg:          cfg,
		model:        model,
		creator:      creator,
		introspector: introspector,
		clock:        clock.Real(),
		logger:       logger,
	}.serve(ctx)
}

// creatorRecord identifies the process that started the service. A
// creator-owned service needs its start time to tell the creator apart
// from a later process reusing the pid, so a creator whose start time
// cannot be determined is rejected rather than watched.
func creatorRecord(model ownership.Model, opts options, introspector procinfo.Introspector) (liveness.Record, error) {
	creator := liveness.Record{
		ProcessID: opts.creatorPID,
		StartTime: procinfo.StartTime(opts.creatorStartTime),
	}
	if model != ownership.CreatorOwned {
		return creator, nil
	}
	if opts.creatorPID <= 0 {
		return liveness.Record{}, errors.New("--creator-pid is required with the creator-owned model")
	}
	if creator.StartTime != "" {
		return creator, nil
	}
	// Read before the creator has a chance to exit.
	startTime, err := introspector.StartTime(opts.creatorPID)
	if err != nil {
		return liveness.Record{}, fmt.Errorf("creator-owned model needs the start time of creator pid %d: %w", opts.creatorPID, err)
	}
	creator.StartTime = startTime
	return creator, nil
}

// instance is one run of the service with its host dependencies.
type instance struct {
	cfg          *config.Config
	model        ownership.Model
	creator      liveness.Record
	introspector procinfo.Introspector
	clock        clock.Clock
	logger       *slog.Logger

	// metricsListening, when set, is called with the metrics address
	// once the metrics server accepts connections.
	metricsListening func(net.Addr)
}

// serve claims the slot, serves the socket until ctx is cancelled or
// the ownership model releases the service, and cleans up. The record
// is claimed before the socket exists and removed after it is gone.
func (inst instance) serve(ctx context.Context) error {
	cfg := inst.cfg
	logger := inst.logger
	if err := cfg.EnsurePaths(); err != nil {
		return err
	}

	pid, startTime, err := procinfo.Self(inst.introspector)
	if err != nil {
		return err
	}

	slot := bootstrap.NewSlot(cfg.StateDir, cfg.Service.SocketPath)
	store := liveness.NewStore(slot.RecordPath(), logger)
	checker := liveness.NewChecker(inst.introspector, logger)
	record := liveness.Record{
		ProcessID: pid,
		StartTime: startTime,
		Version:   version.Short(),
	}
	if err := store.Claim(checker, record); err != nil {
		return fmt.Errorf("claiming %s: %w", slot.Name, err)
	}
	// Runs after the socket server has removed the socket.
	defer store.RemoveIfOwned(record)

	logger = logger.With("slot", slot.Name, "pid", pid)
	logger.Info("rendezvous-service starting",
		"version", version.Info(),
		"socket", cfg.Service.SocketPath,
		"ownership", inst.model,
		"creator_pid", inst.creator.ProcessID,
	)

	coordinator := ownership.NewCoordinator(inst.model)

	metrics := service.NewMetrics("rendezvous")
	metrics.Registry().MustRegister(prometheus.NewGaugeFunc(
		prometheus.GaugeOpts{
			Namespace: "rendezvous",
			Name:      "registered_clients",
			Help:      "Clients registered with the ownership coordinator",
		},
		func() float64 { return float64(coordinator.Clients()) },
	))

	socket := service.NewSocketServer(cfg.Service.SocketPath, logger, metrics)
	handlers := &server{
		coordinator: coordinator,
		clock:       inst.clock,
		logger:      logger,
		socketPath:  cfg.Service.SocketPath,
		pid:         pid,
		creatorPID:  inst.creator.ProcessID,
		started:     inst.clock.Now(),
	}
	handlers.register(socket)

	serveCtx, stopServing := context.WithCancel(ctx)
	defer stopServing()

	serveDone := make(chan error, 1)
	go func() {
		serveDone <- socket.Serve(serveCtx)
	}()

	if inst.model == ownership.CreatorOwned {
		go ownership.WatchCreator(serveCtx, checker, inst.creator, inst.clock, cfg.Service.CreatorPollInterval, coordinator)
	}

	// A failing metrics endpoint is logged but does not stop the service.
	var metricsDone chan struct{}
	if cfg.Service.MetricsAddress != "" {
		metricsDone = make(chan struct{})
		metricsServer := service.NewMetricsServer(cfg.Service.MetricsAddress, metrics, logger)
		go func() {
			defer close(metricsDone)
			if err := metricsServer.Serve(serveCtx); err != nil {
				logger.Error("metrics server failed", "error", err)
			}
		}()
		if inst.metricsListening != nil {
			go func() {
				select {
				case <-metricsServer.Ready():
					inst.metricsListening(metricsServer.Addr())
				case <-metricsDone:
				}
			}()
		}
	}

	var serveErr error
	select {
	case <-ctx.Done():
		logger.Info("shutting down", "reason", context.Cause(ctx))
	case <-coordinator.Done():
		logger.Info("shutting down, ownership model released the service", "ownership", inst.model)
	case serveErr = <-serveDone:
		serveDone = nil
	}

	stopServing()
	if serveDone != nil {
		serveErr = <-serveDone
	}
	if metricsDone != nil {
		<-metricsDone
	}
	if serveErr != nil {
		return fmt.Errorf("socket server: %w", serveErr)
	}
	logger.Info("rendezvous-service stopped")
	return nil
}
