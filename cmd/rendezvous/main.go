// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"fmt"
	"os"

	"github.com/bureau-foundation/rendezvous/cmd/rendezvous/cli"
	"github.com/bureau-foundation/rendezvous/lib/process"
	"github.com/bureau-foundation/rendezvous/lib/version"
)

func main() {
	if err := root().Execute(os.Args[1:]); err != nil {
		// Commands that print their own output (like status) return an
		// ExitError with the desired exit code. Don't print a redundant
		// "error:" line for those.
		if _, ok := err.(*cli.ExitError); ok {
			os.Exit(process.ExitCode(err))
		}
		process.Fatal(err)
	}
}

// root builds the rendezvous command tree.
func root() *cli.Command {
	return &cli.Command{
		Name: "rendezvous",
		Description: `Rendezvous: connect to a single-instance service, starting it on demand.

Every client that runs "rendezvous connect" for the same socket ends up
talking to the same service process, however many start at once.`,
		Subcommands: []*cli.Command{
			connectCommand(),
			statusCommand(),
			versionCommand(),
		},
	}
}

func versionCommand() *cli.Command {
	return &cli.Command{
		Name:    "version",
		Summary: "Print version information",
		Run: func(args []string) error {
			fmt.Printf("rendezvous %s\n", version.Full())
			return nil
		},
	}
}
