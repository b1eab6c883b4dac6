// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"io"
	"log/slog"
	"net"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/bureau-foundation/rendezvous/lib/codec"
	"github.com/bureau-foundation/rendezvous/lib/config"
	"github.com/bureau-foundation/rendezvous/lib/service"
	"github.com/bureau-foundation/rendezvous/lib/testutil"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// isolate points every default path at temporary directories and
// returns a state directory and socket path for the test.
func isolate(t *testing.T) (stateDir, socketPath string) {
	t.Helper()
	t.Setenv(config.ConfigEnv, "")
	t.Setenv("XDG_RUNTIME_DIR", t.TempDir())
	return t.TempDir(), filepath.Join(testutil.SocketDir(t), "service.sock")
}

// fakeService answers the rendezvous protocol in-process.
type fakeService struct {
	socketPath string
	protocol   int
	clients    atomic.Int32
	attached   chan string
	released   chan bool
}

func newFakeService(socketPath string, protocol int) *fakeService {
	return &fakeService{
		socketPath: socketPath,
		protocol:   protocol,
		attached:   make(chan string, 16),
		released:   make(chan bool, 16),
	}
}

// start serves until the returned stop function is called or the test
// ends, and returns once the socket accepts connections.
func (f *fakeService) start(t *testing.T) (stop func()) {
	t.Helper()
	socket := service.NewSocketServer(f.socketPath, discardLogger(), nil)
	socket.Handle(service.ActionStatus, func(context.Context, []byte) (any, error) {
		return service.StatusResponse{
			Protocol:      f.protocol,
			PID:           777,
			Version:       "9.9.9",
			Ownership:     "independent-daemon",
			Clients:       int(f.clients.Load()),
			UptimeSeconds: 61,
			SocketPath:    f.socketPath,
		}, nil
	})
	socket.HandleSession(service.ActionAttach, func(_ context.Context, raw []byte) (any, func(bool), error) {
		var request service.AttachRequest
		if err := codec.Unmarshal(raw, &request); err != nil {
			return nil, nil, err
		}
		clients := f.clients.Add(1)
		f.attached <- request.ClientID
		return service.AttachResponse{
			Protocol:  f.protocol,
			Version:   "9.9.9",
			ClientID:  request.ClientID,
			Clients:   int(clients),
			Ownership: "independent-daemon",
			PID:       777,
		}, func(graceful bool) {
			f.clients.Add(-1)
			f.released <- graceful
		}, nil
	})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- socket.Serve(ctx) }()

	deadline := time.Now().Add(5 * time.Second)
	for {
		conn, err := net.Dial("unix", f.socketPath)
		if err == nil {
			conn.Close()
			break
		}
		if time.Now().After(deadline) {
			cancel()
			t.Fatalf("fake service never started listening: %v", err)
		}
		time.Sleep(5 * time.Millisecond)
	}

	stopped := false
	stop = func() {
		if stopped {
			return
		}
		stopped = true
		cancel()
		<-done
	}
	t.Cleanup(stop)
	return stop
}
