// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeConfig(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}
	return path
}

func TestDefault(t *testing.T) {
	t.Setenv("XDG_RUNTIME_DIR", "/run/user/1000")
	cfg := Default()

	if cfg.Environment != Development {
		t.Errorf("expected environment=development, got %s", cfg.Environment)
	}
	if cfg.StateDir != "/run/user/1000/rendezvous" {
		t.Errorf("expected state_dir=/run/user/1000/rendezvous, got %s", cfg.StateDir)
	}
	if cfg.Service.SocketPath != "/run/user/1000/rendezvous/service.sock" {
		t.Errorf("unexpected socket_path %s", cfg.Service.SocketPath)
	}
	if cfg.Service.Ownership != "last-client-standing" {
		t.Errorf("expected ownership=last-client-standing, got %s", cfg.Service.Ownership)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("default config does not validate: %v", err)
	}
}

func TestDefaultWithoutRuntimeDir(t *testing.T) {
	t.Setenv("XDG_RUNTIME_DIR", "")
	cfg := Default()
	if want := filepath.Join(os.TempDir(), "rendezvous"); cfg.StateDir != want {
		t.Errorf("expected state_dir=%s, got %s", want, cfg.StateDir)
	}
}

func TestLoad_RequiresConfigEnv(t *testing.T) {
	t.Setenv(ConfigEnv, "")

	_, err := Load()
	if err == nil {
		t.Fatal("expected error when RENDEZVOUS_CONFIG not set, got nil")
	}
	if !strings.HasPrefix(err.Error(), "RENDEZVOUS_CONFIG environment variable not set") {
		t.Errorf("unexpected error message %q", err.Error())
	}
}

func TestResolve(t *testing.T) {
	t.Setenv("XDG_RUNTIME_DIR", "/run/user/1000")

	t.Run("default", func(t *testing.T) {
		t.Setenv(ConfigEnv, "")
		cfg, err := Resolve("")
		if err != nil {
			t.Fatalf("Resolve: %v", err)
		}
		if cfg.StateDir != "/run/user/1000/rendezvous" {
			t.Errorf("state_dir = %s", cfg.StateDir)
		}
	})

	t.Run("environment", func(t *testing.T) {
		path := writeConfig(t, "env.yaml", "state_dir: /from/env\n")
		t.Setenv(ConfigEnv, path)
		cfg, err := Resolve("")
		if err != nil {
			t.Fatalf("Resolve: %v", err)
		}
		if cfg.StateDir != "/from/env" {
			t.Errorf("state_dir = %s, want /from/env", cfg.StateDir)
		}
	})

	t.Run("explicit path wins", func(t *testing.T) {
		t.Setenv(ConfigEnv, writeConfig(t, "env.yaml", "state_dir: /from/env\n"))
		path := writeConfig(t, "flag.yaml", "state_dir: /from/flag\n")
		cfg, err := Resolve(path)
		if err != nil {
			t.Fatalf("Resolve: %v", err)
		}
		if cfg.StateDir != "/from/flag" {
			t.Errorf("state_dir = %s, want /from/flag", cfg.StateDir)
		}
	})
}

func TestLoad_YAML(t *testing.T) {
	path := writeConfig(t, "rendezvous.yaml", `
state_dir: /srv/rendezvous
service:
  socket_path: ${RENDEZVOUS_STATE_DIR}/api.sock
  binary: /opt/bin/api-server
  args: ["--verbose"]
  ownership: creator-owned
  creator_poll_interval: 250ms
bootstrap:
  timeout: 5s
  retry:
    max_attempts: 7
    initial_delay: 10ms
`)
	t.Setenv(ConfigEnv, path)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}

	if cfg.StateDir != "/srv/rendezvous" {
		t.Errorf("expected state_dir=/srv/rendezvous, got %s", cfg.StateDir)
	}
	if cfg.Service.SocketPath != "/srv/rendezvous/api.sock" {
		t.Errorf("expected expanded socket path, got %s", cfg.Service.SocketPath)
	}
	if cfg.Service.Ownership != "creator-owned" {
		t.Errorf("expected ownership=creator-owned, got %s", cfg.Service.Ownership)
	}
	if cfg.Service.CreatorPollInterval != 250*time.Millisecond {
		t.Errorf("expected creator_poll_interval=250ms, got %v", cfg.Service.CreatorPollInterval)
	}
	if cfg.Bootstrap.Timeout != 5*time.Second {
		t.Errorf("expected timeout=5s, got %v", cfg.Bootstrap.Timeout)
	}
	if cfg.Bootstrap.Retry.MaxAttempts != 7 || cfg.Bootstrap.Retry.InitialDelay != 10*time.Millisecond {
		t.Errorf("unexpected retry %+v", cfg.Bootstrap.Retry)
	}
	// Unset fields keep their defaults.
	if cfg.Bootstrap.Retry.MaxDelay != time.Second {
		t.Errorf("expected default max_delay=1s, got %v", cfg.Bootstrap.Retry.MaxDelay)
	}
	if cfg.Bootstrap.DiscoverTimeout != 500*time.Millisecond {
		t.Errorf("expected default discover_timeout, got %v", cfg.Bootstrap.DiscoverTimeout)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate: %v", err)
	}
}

func TestLoadFile_JSONC(t *testing.T) {
	path := writeConfig(t, "rendezvous.jsonc", `{
  // Shared coordination directory.
  "state_dir": "/var/lib/rendezvous",
  "service": {
    "ownership": "independent-daemon", /* survives its creator */
    "metrics_address": "127.0.0.1:9464",
  },
  "bootstrap": {"discover_timeout": "2s",},
}`)

	cfg, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile failed: %v", err)
	}
	if cfg.StateDir != "/var/lib/rendezvous" {
		t.Errorf("expected state_dir=/var/lib/rendezvous, got %s", cfg.StateDir)
	}
	if cfg.Service.Ownership != "independent-daemon" {
		t.Errorf("expected ownership=independent-daemon, got %s", cfg.Service.Ownership)
	}
	if cfg.Service.MetricsAddress != "127.0.0.1:9464" {
		t.Errorf("expected metrics_address, got %q", cfg.Service.MetricsAddress)
	}
	if cfg.Bootstrap.DiscoverTimeout != 2*time.Second {
		t.Errorf("expected discover_timeout=2s, got %v", cfg.Bootstrap.DiscoverTimeout)
	}
}

func TestEnvironmentOverrides(t *testing.T) {
	path := writeConfig(t, "rendezvous.yaml", `
environment: production
state_dir: /base
service:
  ownership: last-client-standing
  binary: api-server
production:
  state_dir: /prod
  service:
    ownership: creator-owned
development:
  state_dir: /dev
`)

	cfg, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile failed: %v", err)
	}
	if cfg.StateDir != "/prod" {
		t.Errorf("expected production state_dir=/prod, got %s", cfg.StateDir)
	}
	if cfg.Service.Ownership != "creator-owned" {
		t.Errorf("expected production ownership=creator-owned, got %s", cfg.Service.Ownership)
	}
	if cfg.Service.Binary != "api-server" {
		t.Errorf("override dropped base binary, got %q", cfg.Service.Binary)
	}
}

func TestProductionDefaultsToIndependentDaemon(t *testing.T) {
	path := writeConfig(t, "rendezvous.yaml", "environment: production\n")
	cfg, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile failed: %v", err)
	}
	if cfg.Service.Ownership != "independent-daemon" {
		t.Errorf("expected independent-daemon in production, got %s", cfg.Service.Ownership)
	}
}

func TestLoadFile_Errors(t *testing.T) {
	if _, err := LoadFile(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("expected error for missing file")
	}
	path := writeConfig(t, "broken.yaml", "service: [unterminated\n")
	if _, err := LoadFile(path); err == nil {
		t.Error("expected error for malformed YAML")
	}
}

func TestExpandVars(t *testing.T) {
	t.Setenv("RENDEZVOUS_TEST_VAR", "from-env")
	vars := map[string]string{"LOCAL": "from-map"}

	tests := []struct {
		input, want string
	}{
		{"${LOCAL}/x", "from-map/x"},
		{"${RENDEZVOUS_TEST_VAR}", "from-env"},
		{"${RENDEZVOUS_UNSET_VAR:-fallback}", "fallback"},
		{"${RENDEZVOUS_UNSET_VAR}", ""},
		{"plain", "plain"},
	}
	for _, test := range tests {
		if got := expandVars(test.input, vars); got != test.want {
			t.Errorf("expandVars(%q) = %q, want %q", test.input, got, test.want)
		}
	}
}

func TestValidate(t *testing.T) {
	cfg := Default()
	cfg.Environment = "staging"
	cfg.Service.Ownership = "forever"
	cfg.Bootstrap.Retry.MaxAttempts = 0
	cfg.Bootstrap.Timeout = 0
	cfg.Service.SocketPath = ""

	err := cfg.Validate()
	if err == nil {
		t.Fatal("expected validation errors")
	}
	for _, fragment := range []string{
		"invalid environment",
		"service.ownership",
		"bootstrap.retry.max_attempts",
		"bootstrap.timeout",
		"service.socket_path",
	} {
		if !strings.Contains(err.Error(), fragment) {
			t.Errorf("validation error missing %q: %v", fragment, err)
		}
	}
}

func TestEnsurePaths(t *testing.T) {
	root := t.TempDir()
	cfg := Default()
	cfg.StateDir = filepath.Join(root, "state")
	cfg.Service.SocketPath = filepath.Join(root, "run", "service.sock")
	cfg.Service.LogPath = filepath.Join(root, "log", "service.log")

	if err := cfg.EnsurePaths(); err != nil {
		t.Fatalf("EnsurePaths: %v", err)
	}
	for _, dir := range []string{"state", "run", "log"} {
		if info, err := os.Stat(filepath.Join(root, dir)); err != nil || !info.IsDir() {
			t.Errorf("%s not created: %v", dir, err)
		}
	}
}

func TestBinaryPath(t *testing.T) {
	cfg := Default()
	cfg.Service.Binary = "/opt/rendezvous/bin/service"
	if got, err := cfg.BinaryPath(); err != nil || got != "/opt/rendezvous/bin/service" {
		t.Errorf("BinaryPath() = %q, %v", got, err)
	}

	binDir := t.TempDir()
	binary := filepath.Join(binDir, "rendezvous-test-service")
	if err := os.WriteFile(binary, []byte("#!/bin/sh\n"), 0755); err != nil {
		t.Fatal(err)
	}
	t.Setenv("PATH", binDir)
	cfg.Service.Binary = "rendezvous-test-service"
	if got, err := cfg.BinaryPath(); err != nil || got != binary {
		t.Errorf("BinaryPath() = %q, %v, want %q", got, err, binary)
	}

	cfg.Service.Binary = "rendezvous-no-such-binary"
	if _, err := cfg.BinaryPath(); err == nil {
		t.Error("expected error for missing binary")
	}
}
