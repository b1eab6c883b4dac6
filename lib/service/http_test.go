// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package service

import (
	"context"
	"io"
	"net/http"
	"strings"
	"testing"
	"time"

	rdvtestutil "github.com/bureau-foundation/rendezvous/lib/testutil"
)

func TestMetricsServerServesRegistry(t *testing.T) {
	metrics := NewMetrics("test")
	metrics.observeRequest("status", true)
	server := NewMetricsServer("127.0.0.1:0", metrics, testLogger())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- server.Serve(ctx) }()
	rdvtestutil.RequireClosed(t, server.Ready(), 5*time.Second, "metrics server never became ready")

	client := &http.Client{Timeout: 5 * time.Second}
	response, err := client.Get("http://" + server.Addr().String() + "/metrics")
	if err != nil {
		t.Fatalf("GET /metrics: %v", err)
	}
	body, err := io.ReadAll(response.Body)
	response.Body.Close()
	if err != nil {
		t.Fatalf("reading body: %v", err)
	}
	if response.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", response.StatusCode)
	}
	for _, want := range []string{
		`test_requests_total{action="status",result="ok"} 1`,
		"test_attached_sessions 0",
		"go_goroutines",
	} {
		if !strings.Contains(string(body), want) {
			t.Errorf("metrics output does not contain %q", want)
		}
	}

	response, err = client.Get("http://" + server.Addr().String() + "/other")
	if err != nil {
		t.Fatalf("GET /other: %v", err)
	}
	response.Body.Close()
	if response.StatusCode != http.StatusNotFound {
		t.Errorf("GET /other status = %d, want 404", response.StatusCode)
	}

	cancel()
	if err := rdvtestutil.RequireReceive(t, done, 5*time.Second, "Serve did not return after cancel"); err != nil {
		t.Errorf("Serve: %v", err)
	}
}

func TestMetricsServerListenError(t *testing.T) {
	server := NewMetricsServer("256.0.0.1:0", NewMetrics("test"), testLogger())
	if err := server.Serve(context.Background()); err == nil {
		t.Error("Serve succeeded on an invalid address")
	}
}
