// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/pflag"

	"github.com/bureau-foundation/rendezvous/cmd/rendezvous/cli"
	"github.com/bureau-foundation/rendezvous/lib/liveness"
	"github.com/bureau-foundation/rendezvous/lib/procinfo"
	"github.com/bureau-foundation/rendezvous/lib/service"
)

type statusParams struct {
	commonParams
	JSON bool
}

// statusReport is everything status knows about one slot. Service is
// nil when no instance answered.
type statusReport struct {
	SocketPath  string                  `json:"socket_path"`
	Slot        string                  `json:"slot"`
	RecordPath  string                  `json:"record_path"`
	Record      *liveness.Record        `json:"record,omitempty"`
	RecordAlive bool                    `json:"record_alive"`
	Service     *service.StatusResponse `json:"service,omitempty"`
	Error       string                  `json:"error,omitempty"`
}

func statusCommand() *cli.Command {
	var params statusParams

	return &cli.Command{
		Name:    "status",
		Summary: "Show whether the service is running",
		Description: `Query the service for the configured socket without starting it, and
show the slot's liveness record. Exits with status 1 when no instance
answers.`,
		Usage: "rendezvous status [flags]",
		Flags: func() *pflag.FlagSet {
			flags := pflag.NewFlagSet("status", pflag.ContinueOnError)
			params.register(flags)
			flags.BoolVar(&params.JSON, "json", false, "print the report as JSON")
			return flags
		},
		Run: func(args []string) error {
			if len(args) > 0 {
				return fmt.Errorf("unexpected argument: %s", args[0])
			}
			return runStatus(context.Background(), params, os.Stdout, procinfo.Host(), cli.NewCommandLogger(params.Verbose))
		},
	}
}

func runStatus(ctx context.Context, params statusParams, out io.Writer, introspector procinfo.Introspector, logger *slog.Logger) error {
	cfg, err := params.load()
	if err != nil {
		return err
	}
	if err := validate(cfg); err != nil {
		return err
	}

	slot := slotFor(cfg)
	report := statusReport{
		SocketPath: cfg.Service.SocketPath,
		Slot:       slot.Name,
		RecordPath: slot.RecordPath(),
	}
	if record, ok := liveness.NewStore(slot.RecordPath(), logger).Read(); ok {
		report.Record = &record
		report.RecordAlive = liveness.NewChecker(introspector, logger).IsOwnerAlive(record)
	}

	callCtx, cancel := context.WithTimeout(ctx, cfg.Bootstrap.DiscoverTimeout)
	defer cancel()
	var status service.StatusResponse
	client := service.NewServiceClient(cfg.Service.SocketPath)
	if err := client.Call(callCtx, service.ActionStatus, nil, &status); err != nil {
		report.Error = err.Error()
	} else {
		report.Service = &status
	}

	if params.JSON {
		encoder := json.NewEncoder(out)
		encoder.SetIndent("", "  ")
		if err := encoder.Encode(report); err != nil {
			return err
		}
	} else {
		fmt.Fprint(out, renderStatus(report))
	}

	if report.Service == nil {
		return &cli.ExitError{Code: 1}
	}
	return nil
}

var (
	runningStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("10")).Bold(true)
	stoppedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("9")).Bold(true)
	labelStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("8")).Width(10)
)

// renderStatus formats report as a short labelled block.
func renderStatus(report statusReport) string {
	var lines []string
	row := func(label, value string) {
		lines = append(lines, "  "+labelStyle.Render(label)+" "+value)
	}

	if report.Service != nil {
		status := report.Service
		lines = append(lines, runningStyle.Render("● running"))
		row("pid", strconv.Itoa(status.PID))
		row("version", status.Version)
		row("ownership", status.Ownership)
		row("clients", strconv.Itoa(status.Clients))
		uptime := time.Duration(status.UptimeSeconds * float64(time.Second)).Round(time.Second)
		row("uptime", uptime.String())
		if status.CreatorPID != 0 {
			row("creator", strconv.Itoa(status.CreatorPID))
		}
	} else {
		lines = append(lines, stoppedStyle.Render("○ not running"))
	}
	row("socket", report.SocketPath)
	row("slot", report.Slot)

	switch {
	case report.Record == nil:
		row("record", "none")
	case report.RecordAlive:
		row("record", fmt.Sprintf("pid %d, version %s (alive)", report.Record.ProcessID, report.Record.Version))
	default:
		row("record", fmt.Sprintf("pid %d, version %s (stale)", report.Record.ProcessID, report.Record.Version))
	}
	if report.Error != "" && report.Record != nil && report.RecordAlive {
		row("error", report.Error)
	}

	return lipgloss.JoinVertical(lipgloss.Left, lines...) + "\n"
}
