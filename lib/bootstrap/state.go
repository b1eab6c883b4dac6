// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package bootstrap

// State is the bootstrapper's position in the discover-or-create
// sequence.
type State int

const (
	StateDiscovering State = iota
	StateConnected
	StateCreating
	StateBootstrapped
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateDiscovering:
		return "discovering"
	case StateConnected:
		return "connected"
	case StateCreating:
		return "creating"
	case StateBootstrapped:
		return "bootstrapped"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Path records how a successful [Run] obtained its connection.
type Path int

const (
	// PathDiscovered: the first discovery attempt of some round
	// connected without taking the lock.
	PathDiscovered Path = iota + 1

	// PathDoubleChecked: discovery failed, but the re-check under the
	// creation lock found an instance another process had created.
	PathDoubleChecked

	// PathCreated: this call invoked Create and then connected.
	PathCreated

	// PathAwaitedOwner: the liveness record named a live owner that was
	// not yet accepting connections, so Create was skipped and the
	// connection was made once the owner came up.
	PathAwaitedOwner
)

func (p Path) String() string {
	switch p {
	case PathDiscovered:
		return "discovered"
	case PathDoubleChecked:
		return "double-checked"
	case PathCreated:
		return "created"
	case PathAwaitedOwner:
		return "awaited-owner"
	default:
		return "none"
	}
}
