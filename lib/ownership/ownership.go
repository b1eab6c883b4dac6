// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package ownership

import (
	"fmt"
	"sync"
)

// Model selects the shutdown policy.
type Model string

const (
	CreatorOwned       Model = "creator-owned"
	LastClientStanding Model = "last-client-standing"
	IndependentDaemon  Model = "independent-daemon"
)

// ParseModel validates a model name from flags or configuration.
func ParseModel(name string) (Model, error) {
	switch model := Model(name); model {
	case CreatorOwned, LastClientStanding, IndependentDaemon:
		return model, nil
	default:
		return "", fmt.Errorf("unknown ownership model %q (want %s, %s, or %s)",
			name, CreatorOwned, LastClientStanding, IndependentDaemon)
	}
}

// Coordinator tracks the events that matter to a model and reports
// when the service should shut down.
type Coordinator struct {
	model Model

	mu            sync.Mutex
	clients       map[string]struct{}
	everConnected bool
	creatorExited bool
	shutdown      bool
	done          chan struct{}
}

// NewCoordinator returns a Coordinator for model.
func NewCoordinator(model Model) *Coordinator {
	return &Coordinator{
		model:   model,
		clients: make(map[string]struct{}),
		done:    make(chan struct{}),
	}
}

// Model returns the coordinator's shutdown policy.
func (c *Coordinator) Model() Model { return c.model }

// RegisterClient records an attached client. Registering an id twice
// counts once.
func (c *Coordinator) RegisterClient(id string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.clients[id] = struct{}{}
	c.everConnected = true
}

// UnregisterClient removes a client that detached cleanly. Unknown ids
// are ignored.
func (c *Coordinator) UnregisterClient(id string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.clients, id)
	c.evaluateLocked()
}

// ClientDisconnected removes a client whose connection dropped. It is
// equivalent to UnregisterClient and equally idempotent.
func (c *Coordinator) ClientDisconnected(id string) {
	c.UnregisterClient(id)
}

// SignalCreatorExit records that the creating process is gone.
func (c *Coordinator) SignalCreatorExit() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.creatorExited = true
	c.evaluateLocked()
}

// ShouldShutdown reports whether the model calls for shutdown. Once
// true it stays true.
func (c *Coordinator) ShouldShutdown() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.shutdown
}

// Done is closed the first time ShouldShutdown becomes true.
func (c *Coordinator) Done() <-chan struct{} { return c.done }

// Clients returns the number of registered clients.
func (c *Coordinator) Clients() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.clients)
}

func (c *Coordinator) evaluateLocked() {
	if c.shutdown {
		return
	}
	switch c.model {
	case CreatorOwned:
		c.shutdown = c.creatorExited
	case LastClientStanding:
		c.shutdown = c.everConnected && len(c.clients) == 0
	}
	if c.shutdown {
		close(c.done)
	}
}
