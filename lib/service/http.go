// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"
)

// MetricsServer serves a Metrics registry over HTTP on a TCP address.
// It follows the SocketServer lifecycle: Serve blocks until ctx is
// cancelled and in-flight scrapes drain.
type MetricsServer struct {
	address         string
	handler         http.Handler
	logger          *slog.Logger
	shutdownTimeout time.Duration

	// ready is closed once the listener is bound.
	ready chan struct{}

	// addr is the resolved listen address, valid after ready closes.
	addr net.Addr
}

// NewMetricsServer returns a server exposing metrics at /metrics on
// address. Address may use port 0; Addr reports the chosen port.
func NewMetricsServer(address string, metrics *Metrics, logger *slog.Logger) *MetricsServer {
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler())
	return &MetricsServer{
		address:         address,
		handler:         mux,
		logger:          logger,
		shutdownTimeout: 5 * time.Second,
		ready:           make(chan struct{}),
	}
}

// Ready is closed once the server accepts connections.
func (s *MetricsServer) Ready() <-chan struct{} { return s.ready }

// Addr returns the resolved listen address. Only valid after Ready is
// closed.
func (s *MetricsServer) Addr() net.Addr { return s.addr }

// Serve listens and serves until ctx is cancelled, then shuts down
// gracefully.
func (s *MetricsServer) Serve(ctx context.Context) error {
	listener, err := net.Listen("tcp", s.address)
	if err != nil {
		return fmt.Errorf("listening for metrics on %s: %w", s.address, err)
	}
	s.addr = listener.Addr()
	close(s.ready)

	server := &http.Server{
		Handler:           s.handler,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	s.logger.Info("metrics server listening", "address", s.addr.String())

	serveDone := make(chan error, 1)
	go func() {
		if err := server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveDone <- err
		}
		close(serveDone)
	}()

	select {
	case <-ctx.Done():
	case err := <-serveDone:
		return err
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("metrics server shutdown: %w", err)
	}
	return nil
}
