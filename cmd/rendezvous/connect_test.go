// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/bureau-foundation/rendezvous/lib/bootstrap"
	"github.com/bureau-foundation/rendezvous/lib/config"
	"github.com/bureau-foundation/rendezvous/lib/service"
	"github.com/bureau-foundation/rendezvous/lib/testutil"
)

func testConfig(stateDir, socketPath string) *config.Config {
	cfg := config.Default()
	cfg.StateDir = stateDir
	cfg.Service.SocketPath = socketPath
	cfg.Service.Binary = "/nonexistent/rendezvous-service"
	cfg.Bootstrap.Timeout = 10 * time.Second
	cfg.Bootstrap.Retry = config.RetryConfig{MaxAttempts: 50, InitialDelay: 5 * time.Millisecond, MaxDelay: 20 * time.Millisecond, Multiplier: 2}
	return cfg
}

func TestConnectDiscoversRunningService(t *testing.T) {
	stateDir, socketPath := isolate(t)
	fake := newFakeService(socketPath, service.ProtocolVersion)
	fake.start(t)

	var out bytes.Buffer
	params := connectParams{
		commonParams: commonParams{StateDir: stateDir, SocketPath: socketPath},
		ClientID:     "test-client",
		Detach:       true,
	}
	if err := runConnect(context.Background(), params, &out, discardLogger()); err != nil {
		t.Fatalf("runConnect: %v", err)
	}

	if id := testutil.RequireReceive(t, fake.attached, 5*time.Second, "client never attached"); id != "test-client" {
		t.Errorf("attached client id = %q, want test-client", id)
	}
	if graceful := testutil.RequireReceive(t, fake.released, 5*time.Second, "session never released"); !graceful {
		t.Error("--detach dropped the connection instead of detaching")
	}
	for _, want := range []string{"connected to " + socketPath, "pid 777", "version 9.9.9", "discovered"} {
		if !strings.Contains(out.String(), want) {
			t.Errorf("output %q does not contain %q", out.String(), want)
		}
	}
}

func TestConnectHoldsSessionUntilCancelled(t *testing.T) {
	stateDir, socketPath := isolate(t)
	fake := newFakeService(socketPath, service.ProtocolVersion)
	fake.start(t)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	params := connectParams{commonParams: commonParams{StateDir: stateDir, SocketPath: socketPath}}
	done := make(chan error, 1)
	go func() {
		var out bytes.Buffer
		done <- runConnect(ctx, params, &out, discardLogger())
	}()

	if id := testutil.RequireReceive(t, fake.attached, 5*time.Second, "client never attached"); !strings.HasPrefix(id, "pid-") {
		t.Errorf("default client id = %q, want pid-<pid>", id)
	}
	select {
	case err := <-done:
		t.Fatalf("runConnect returned while still attached: %v", err)
	case <-time.After(50 * time.Millisecond):
	}

	cancel()
	if err := testutil.RequireReceive(t, done, 5*time.Second, "runConnect did not return after cancel"); err != nil {
		t.Fatalf("runConnect: %v", err)
	}
	if graceful := testutil.RequireReceive(t, fake.released, 5*time.Second, "session never released"); !graceful {
		t.Error("interrupted connect did not detach cleanly")
	}
}

func TestConnectReportsServiceShutdown(t *testing.T) {
	stateDir, socketPath := isolate(t)
	fake := newFakeService(socketPath, service.ProtocolVersion)
	stop := fake.start(t)

	params := connectParams{commonParams: commonParams{StateDir: stateDir, SocketPath: socketPath}}
	done := make(chan error, 1)
	go func() {
		var out bytes.Buffer
		done <- runConnect(context.Background(), params, &out, discardLogger())
	}()

	testutil.RequireReceive(t, fake.attached, 5*time.Second, "client never attached")
	stop()

	err := testutil.RequireReceive(t, done, 5*time.Second, "runConnect did not notice the service stopping")
	if err == nil || !strings.Contains(err.Error(), "closed the session") {
		t.Errorf("runConnect error = %v, want service closed the session", err)
	}
}

func TestConnectorCreatesService(t *testing.T) {
	stateDir, socketPath := isolate(t)
	cfg := testConfig(stateDir, socketPath)

	conn, err := newConnector(cfg, "", "creator", discardLogger())
	if err != nil {
		t.Fatalf("newConnector: %v", err)
	}
	fake := newFakeService(socketPath, service.ProtocolVersion)
	var creates atomic.Int32
	conn.create = func(context.Context) error {
		creates.Add(1)
		fake.start(t)
		return nil
	}

	result, err := conn.run(context.Background())
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	defer result.Conn.Close()

	if !result.Created() {
		t.Errorf("Path = %s, want created", result.Path)
	}
	if creates.Load() != 1 {
		t.Errorf("create called %d times, want 1", creates.Load())
	}
}

func TestConnectorWithoutBinaryFailsCreation(t *testing.T) {
	stateDir, socketPath := isolate(t)
	cfg := testConfig(stateDir, socketPath)
	cfg.Service.Binary = "rendezvous-service-that-does-not-exist"

	conn, err := newConnector(cfg, "", "", discardLogger())
	if err != nil {
		t.Fatalf("newConnector: %v", err)
	}
	_, err = conn.run(context.Background())
	if !errors.Is(err, bootstrap.ErrCreationFailed) {
		t.Fatalf("run error = %v, want ErrCreationFailed", err)
	}
	if !strings.Contains(err.Error(), "not found") {
		t.Errorf("error %q does not name the missing binary", err)
	}
}

func TestConnectorRejectsProtocolMismatch(t *testing.T) {
	stateDir, socketPath := isolate(t)
	cfg := testConfig(stateDir, socketPath)
	fake := newFakeService(socketPath, service.ProtocolVersion+1)
	fake.start(t)

	conn, err := newConnector(cfg, "", "", discardLogger())
	if err != nil {
		t.Fatalf("newConnector: %v", err)
	}
	var creates atomic.Int32
	conn.create = func(context.Context) error {
		creates.Add(1)
		return errors.New("refusing to replace an incompatible service")
	}

	_, err = conn.run(context.Background())
	if !errors.Is(err, bootstrap.ErrCreationFailed) {
		t.Fatalf("run error = %v, want ErrCreationFailed", err)
	}
	if creates.Load() != 1 {
		t.Errorf("create called %d times, want 1", creates.Load())
	}
	// Both the discovery and the double-check sessions were dropped.
	for range 2 {
		if graceful := testutil.RequireReceive(t, fake.released, 5*time.Second, "rejected session never released"); graceful {
			t.Error("rejected session was detached, want dropped")
		}
	}
}

func TestConnectRejectsBadOwnership(t *testing.T) {
	stateDir, socketPath := isolate(t)
	params := connectParams{
		commonParams: commonParams{StateDir: stateDir, SocketPath: socketPath},
		Ownership:    "forever",
	}
	var out bytes.Buffer
	err := runConnect(context.Background(), params, &out, discardLogger())
	if err == nil || !strings.Contains(err.Error(), "ownership") {
		t.Errorf("runConnect error = %v, want an ownership validation error", err)
	}
}
