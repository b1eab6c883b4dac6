// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package cli

import (
	"bytes"
	"strings"
	"testing"

	"github.com/spf13/pflag"
)

func TestCommand_Execute_DispatchesToSubcommand(t *testing.T) {
	var called string
	var receivedArgs []string

	root := &Command{
		Name: "rendezvous",
		Subcommands: []*Command{
			{Name: "version", Run: func(args []string) error {
				called = "version"
				return nil
			}},
			{Name: "status", Run: func(args []string) error {
				called = "status"
				receivedArgs = args
				return nil
			}},
		},
	}

	if err := root.Execute([]string{"status", "extra"}); err != nil {
		t.Fatalf("Execute() error: %v", err)
	}
	if called != "status" {
		t.Errorf("dispatched to %q, want status", called)
	}
	if len(receivedArgs) != 1 || receivedArgs[0] != "extra" {
		t.Errorf("args = %v, want [extra]", receivedArgs)
	}
}

func TestCommand_Execute_ParsesFlags(t *testing.T) {
	var timeout string
	var receivedArgs []string
	command := &Command{
		Name: "connect",
		Flags: func() *pflag.FlagSet {
			flagSet := pflag.NewFlagSet("connect", pflag.ContinueOnError)
			flagSet.StringVar(&timeout, "timeout", "30s", "overall timeout")
			return flagSet
		},
		Run: func(args []string) error {
			receivedArgs = args
			return nil
		},
	}

	if err := command.Execute([]string{"--timeout", "5s", "positional"}); err != nil {
		t.Fatalf("Execute() error: %v", err)
	}
	if timeout != "5s" {
		t.Errorf("timeout = %q, want 5s", timeout)
	}
	if len(receivedArgs) != 1 || receivedArgs[0] != "positional" {
		t.Errorf("args = %v", receivedArgs)
	}
}

func TestCommand_Execute_SuggestsCommand(t *testing.T) {
	root := &Command{
		Name:        "rendezvous",
		Output:      &bytes.Buffer{},
		Subcommands: []*Command{{Name: "status", Run: func([]string) error { return nil }}},
	}
	err := root.Execute([]string{"stauts"})
	if err == nil || !strings.Contains(err.Error(), `did you mean "status"?`) {
		t.Errorf("Execute(stauts) error = %v, want suggestion", err)
	}
}

func TestCommand_Execute_SuggestsFlag(t *testing.T) {
	command := &Command{
		Name: "connect",
		Flags: func() *pflag.FlagSet {
			flagSet := pflag.NewFlagSet("connect", pflag.ContinueOnError)
			flagSet.String("client-id", "", "client identifier")
			return flagSet
		},
		Run: func([]string) error { return nil },
	}
	err := command.Execute([]string{"--client-di", "x"})
	if err == nil || !strings.Contains(err.Error(), "did you mean --client-id?") {
		t.Errorf("error = %v, want flag suggestion", err)
	}
}

func TestCommand_Execute_RequiresSubcommand(t *testing.T) {
	var help bytes.Buffer
	root := &Command{
		Name:        "rendezvous",
		Output:      &help,
		Subcommands: []*Command{{Name: "status", Summary: "Show the running instance"}},
	}
	if err := root.Execute(nil); err == nil {
		t.Error("expected error without a subcommand")
	}
	if !strings.Contains(help.String(), "Show the running instance") {
		t.Errorf("help output missing subcommand summary:\n%s", help.String())
	}
}

func TestCommand_PrintHelp(t *testing.T) {
	command := &Command{
		Name:        "connect",
		Description: "Connect to the service, starting it if needed.",
		Flags: func() *pflag.FlagSet {
			flagSet := pflag.NewFlagSet("connect", pflag.ContinueOnError)
			flagSet.Bool("verbose", false, "log bootstrap progress")
			return flagSet
		},
		Examples: []Example{{Description: "Attach until interrupted", Command: "rendezvous connect"}},
	}
	var buffer bytes.Buffer
	command.PrintHelp(&buffer)
	output := buffer.String()
	for _, want := range []string{
		"Connect to the service",
		"Usage:\n  connect [flags]",
		"--verbose",
		"# Attach until interrupted",
	} {
		if !strings.Contains(output, want) {
			t.Errorf("help missing %q:\n%s", want, output)
		}
	}
}

func TestLevenshtein(t *testing.T) {
	tests := []struct {
		a, b string
		want int
	}{
		{"", "abc", 3},
		{"status", "status", 0},
		{"stauts", "status", 2},
		{"connect", "conect", 1},
	}
	for _, test := range tests {
		if got := levenshtein(test.a, test.b); got != test.want {
			t.Errorf("levenshtein(%q, %q) = %d, want %d", test.a, test.b, got, test.want)
		}
	}
}
