// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"slices"
	"strings"
	"time"

	"github.com/tidwall/jsonc"
	"gopkg.in/yaml.v3"
)

// Environment represents the deployment environment.
type Environment string

const (
	// Development is for local development machines.
	Development Environment = "development"
	// Production is for production deployments.
	Production Environment = "production"
)

// ownershipModels mirrors the models understood by the service.
var ownershipModels = []string{"creator-owned", "last-client-standing", "independent-daemon"}

// Config is the master configuration.
type Config struct {
	// Environment selects which override section applies.
	Environment Environment `yaml:"environment"`

	// StateDir holds liveness records and creation locks.
	StateDir string `yaml:"state_dir"`

	// Service configures the coordinated service process.
	Service ServiceConfig `yaml:"service"`

	// Bootstrap configures discover-or-create timing.
	Bootstrap BootstrapConfig `yaml:"bootstrap"`

	// Per-environment overrides, decoded over the base values when
	// Environment matches.
	Development *yaml.Node `yaml:"development,omitempty"`
	Production  *yaml.Node `yaml:"production,omitempty"`
}

// ServiceConfig configures the coordinated service.
type ServiceConfig struct {
	// SocketPath is the Unix socket the service listens on. Clients
	// derive the coordination slot from it.
	SocketPath string `yaml:"socket_path"`

	// Binary is the service executable. A bare name is resolved by
	// [Config.BinaryPath].
	Binary string `yaml:"binary"`

	// Args are extra arguments passed to Binary.
	Args []string `yaml:"args"`

	// LogPath receives the detached service's stdout and stderr.
	LogPath string `yaml:"log_path"`

	// Ownership is the shutdown model: creator-owned,
	// last-client-standing, or independent-daemon.
	Ownership string `yaml:"ownership"`

	// MetricsAddress, when set, serves Prometheus metrics over HTTP.
	MetricsAddress string `yaml:"metrics_address"`

	// CreatorPollInterval is how often a creator-owned service checks
	// whether its creator is still alive.
	CreatorPollInterval time.Duration `yaml:"creator_poll_interval"`
}

// BootstrapConfig configures the discover-or-create sequence.
type BootstrapConfig struct {
	// DiscoverTimeout bounds each connection attempt.
	DiscoverTimeout time.Duration `yaml:"discover_timeout"`

	// Timeout bounds the entire bootstrap.
	Timeout time.Duration `yaml:"timeout"`

	// Retry paces connection attempts after creating the service.
	Retry RetryConfig `yaml:"retry"`

	// Contention paces retries while another process is creating.
	Contention RetryConfig `yaml:"contention"`
}

// RetryConfig describes capped exponential backoff.
type RetryConfig struct {
	MaxAttempts  int           `yaml:"max_attempts"`
	InitialDelay time.Duration `yaml:"initial_delay"`
	MaxDelay     time.Duration `yaml:"max_delay"`
	Multiplier   float64       `yaml:"multiplier"`
	Jitter       bool          `yaml:"jitter"`
}

// Default returns the default configuration. State lives under
// $XDG_RUNTIME_DIR/rendezvous, falling back to the system temporary
// directory.
func Default() *Config {
	runtimeDir := os.Getenv("XDG_RUNTIME_DIR")
	if runtimeDir == "" {
		runtimeDir = os.TempDir()
	}
	stateDir := filepath.Join(runtimeDir, "rendezvous")

	return &Config{
		Environment: Development,
		StateDir:    stateDir,
		Service: ServiceConfig{
			SocketPath:          filepath.Join(stateDir, "service.sock"),
			Binary:              "rendezvous-service",
			LogPath:             filepath.Join(stateDir, "service.log"),
			Ownership:           "last-client-standing",
			CreatorPollInterval: time.Second,
		},
		Bootstrap: BootstrapConfig{
			DiscoverTimeout: 500 * time.Millisecond,
			Timeout:         30 * time.Second,
			Retry: RetryConfig{
				MaxAttempts:  20,
				InitialDelay: 50 * time.Millisecond,
				MaxDelay:     time.Second,
				Multiplier:   2,
				Jitter:       true,
			},
			Contention: RetryConfig{
				InitialDelay: 20 * time.Millisecond,
				MaxDelay:     500 * time.Millisecond,
				Multiplier:   1.5,
				Jitter:       true,
			},
		},
	}
}

// ConfigEnv names the environment variable read by [Load].
const ConfigEnv = "RENDEZVOUS_CONFIG"

// Load loads configuration from the file named by RENDEZVOUS_CONFIG.
// It fails when the variable is not set.
func Load() (*Config, error) {
	configPath := os.Getenv(ConfigEnv)
	if configPath == "" {
		return nil, fmt.Errorf("%s environment variable not set; "+
			"set it to the path of your rendezvous config file, or use --config flag", ConfigEnv)
	}
	return LoadFile(configPath)
}

// Resolve returns the configuration for a binary: the file at path
// when it is non-empty, otherwise the file named by RENDEZVOUS_CONFIG
// when that is set, otherwise [Default].
func Resolve(path string) (*Config, error) {
	if path != "" {
		return LoadFile(path)
	}
	if os.Getenv(ConfigEnv) != "" {
		return Load()
	}
	cfg := Default()
	cfg.expandVariables()
	return cfg, nil
}

// LoadFile loads configuration from a specific file path, on top of
// [Default].
func LoadFile(path string) (*Config, error) {
	cfg := Default()

	if err := cfg.loadFile(path); err != nil {
		return nil, err
	}
	if err := cfg.applyEnvironmentOverrides(); err != nil {
		return nil, fmt.Errorf("applying %s overrides from %s: %w", cfg.Environment, path, err)
	}
	cfg.expandVariables()

	return cfg, nil
}

// loadFile merges a single configuration file into the current config.
func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading config: %w", err)
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".json", ".jsonc":
		// JSON is a subset of YAML, so one decoder serves both formats.
		data = jsonc.ToJSON(data)
	}

	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("parsing config %s: %w", path, err)
	}
	return nil
}

// applyEnvironmentOverrides decodes the section matching Environment
// over the base values. Fields absent from the section keep their base
// values.
func (c *Config) applyEnvironmentOverrides() error {
	var overrides *yaml.Node

	switch c.Environment {
	case Development:
		overrides = c.Development
	case Production:
		overrides = c.Production
		if overrides == nil {
			c.Service.Ownership = "independent-daemon"
		}
	}

	if overrides == nil {
		return nil
	}

	var section struct {
		StateDir  *string          `yaml:"state_dir"`
		Service   *ServiceConfig   `yaml:"service"`
		Bootstrap *BootstrapConfig `yaml:"bootstrap"`
	}
	section.Service = &c.Service
	section.Bootstrap = &c.Bootstrap
	section.StateDir = &c.StateDir
	return overrides.Decode(&section)
}

// expandVariables expands ${VAR} and ${VAR:-default} patterns in paths.
func (c *Config) expandVariables() {
	vars := map[string]string{
		"HOME":            os.Getenv("HOME"),
		"XDG_RUNTIME_DIR": os.Getenv("XDG_RUNTIME_DIR"),
	}

	c.StateDir = expandVars(c.StateDir, vars)
	vars["RENDEZVOUS_STATE_DIR"] = c.StateDir

	c.Service.SocketPath = expandVars(c.Service.SocketPath, vars)
	c.Service.Binary = expandVars(c.Service.Binary, vars)
	c.Service.LogPath = expandVars(c.Service.LogPath, vars)
	for i, arg := range c.Service.Args {
		c.Service.Args[i] = expandVars(arg, vars)
	}
}

var varPattern = regexp.MustCompile(`\$\{([^}:]+)(?::-([^}]*))?\}`)

// expandVars expands ${VAR} and ${VAR:-default} patterns, preferring
// vars over the process environment.
func expandVars(s string, vars map[string]string) string {
	return varPattern.ReplaceAllStringFunc(s, func(match string) string {
		parts := varPattern.FindStringSubmatch(match)
		if len(parts) < 2 {
			return match
		}

		name := parts[1]
		defaultValue := ""
		if len(parts) >= 3 {
			defaultValue = parts[2]
		}

		if value, ok := vars[name]; ok && value != "" {
			return value
		}
		if value := os.Getenv(name); value != "" {
			return value
		}
		return defaultValue
	})
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	var errs []error

	if c.Environment != Development && c.Environment != Production {
		errs = append(errs, fmt.Errorf("invalid environment: %s", c.Environment))
	}
	if c.StateDir == "" {
		errs = append(errs, errors.New("state_dir is required"))
	}
	if c.Service.SocketPath == "" {
		errs = append(errs, errors.New("service.socket_path is required"))
	}
	if c.Service.Binary == "" {
		errs = append(errs, errors.New("service.binary is required"))
	}
	if !slices.Contains(ownershipModels, c.Service.Ownership) {
		errs = append(errs, fmt.Errorf("service.ownership must be one of: %v", ownershipModels))
	}
	if c.Service.CreatorPollInterval <= 0 {
		errs = append(errs, errors.New("service.creator_poll_interval must be positive"))
	}
	if c.Bootstrap.DiscoverTimeout <= 0 {
		errs = append(errs, errors.New("bootstrap.discover_timeout must be positive"))
	}
	if c.Bootstrap.Timeout <= 0 {
		errs = append(errs, errors.New("bootstrap.timeout must be positive"))
	}
	if c.Bootstrap.Retry.MaxAttempts <= 0 {
		errs = append(errs, errors.New("bootstrap.retry.max_attempts must be positive"))
	}
	for name, retry := range map[string]RetryConfig{
		"bootstrap.retry":      c.Bootstrap.Retry,
		"bootstrap.contention": c.Bootstrap.Contention,
	} {
		if retry.InitialDelay < 0 || retry.MaxDelay < 0 {
			errs = append(errs, fmt.Errorf("%s delays must not be negative", name))
		}
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	return nil
}

// EnsurePaths creates the state directory and the parent directories
// of the socket and log file.
func (c *Config) EnsurePaths() error {
	paths := []string{
		c.StateDir,
		filepath.Dir(c.Service.SocketPath),
	}
	if c.Service.LogPath != "" {
		paths = append(paths, filepath.Dir(c.Service.LogPath))
	}

	for _, path := range paths {
		if err := os.MkdirAll(path, 0700); err != nil {
			return fmt.Errorf("creating %s: %w", path, err)
		}
	}
	return nil
}

// BinaryPath returns the full path to the service binary. A Binary
// containing a slash is used as-is. A bare name is looked up next to
// the running executable first, then in PATH, so that an installed
// rendezvous finds its own service.
func (c *Config) BinaryPath() (string, error) {
	name := c.Service.Binary
	if strings.ContainsRune(name, '/') {
		return name, nil
	}

	if self, err := os.Executable(); err == nil {
		sibling := filepath.Join(filepath.Dir(self), name)
		if info, err := os.Stat(sibling); err == nil && !info.IsDir() {
			return sibling, nil
		}
	}

	path, err := exec.LookPath(name)
	if err != nil {
		return "", fmt.Errorf("%s not found next to this executable or in PATH", name)
	}
	return path, nil
}
