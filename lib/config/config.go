// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/bureau-foundation/debugsock/lib/debugcmd"
	"github.com/bureau-foundation/debugsock/lib/debugsock"
)

// EnvVar names the environment variable Load reads.
const EnvVar = "DEBUGSOCK_CONFIG"

// Environment represents the deployment environment.
type Environment string

const (
	// Development is for local development machines.
	Development Environment = "development"
	// Production is for production deployments.
	Production Environment = "production"
)

// Config is the configuration of a debug socket host.
type Config struct {
	// Environment selects which override section applies.
	Environment Environment `yaml:"environment"`

	// Socket is the path of the debug socket.
	Socket string `yaml:"socket"`

	// LogLevel is one of debug, info, warn, error.
	LogLevel string `yaml:"log_level"`

	// Eval is the expression evaluation mode: bare, explicit, or disabled.
	Eval string `yaml:"eval"`

	// AuditLog is the path of the CBOR audit file. Empty disables auditing.
	AuditLog string `yaml:"audit_log"`

	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	AcceptBackoff   time.Duration `yaml:"accept_backoff"`
	MaxRequestBytes int64         `yaml:"max_request_bytes"`

	// Metrics enables the Prometheus registry behind the "metrics"
	// command.
	Metrics bool `yaml:"metrics"`

	Development *Overrides `yaml:"development,omitempty"`
	Production  *Overrides `yaml:"production,omitempty"`
}

// Overrides contains fields that can be overridden per environment.
// Nil fields keep the base value.
type Overrides struct {
	Socket   *string `yaml:"socket,omitempty"`
	LogLevel *string `yaml:"log_level,omitempty"`
	Eval     *string `yaml:"eval,omitempty"`
	AuditLog *string `yaml:"audit_log,omitempty"`
	Metrics  *bool   `yaml:"metrics,omitempty"`
}

// Default returns the configuration used as a base before the file is
// applied. The file is still required.
func Default() *Config {
	return &Config{
		Environment:     Development,
		Socket:          "${XDG_RUNTIME_DIR:-/tmp}/debugsock.sock",
		LogLevel:        "info",
		Eval:            debugcmd.EvalBare.String(),
		ReadTimeout:     debugsock.DefaultReadTimeout,
		WriteTimeout:    debugsock.DefaultWriteTimeout,
		AcceptBackoff:   debugsock.DefaultAcceptBackoff,
		MaxRequestBytes: debugsock.DefaultMaxRequestBytes,
	}
}

// Load loads configuration from the file named by DEBUGSOCK_CONFIG.
// There is no fallback: if the variable is not set, Load fails.
func Load() (*Config, error) {
	path := os.Getenv(EnvVar)
	if path == "" {
		return nil, fmt.Errorf("%s environment variable not set; "+
			"set it to the path of your debugsock.yaml config file, or use --config flag", EnvVar)
	}
	return LoadFile(path)
}

// LoadFile loads configuration from path, applies the matching
// environment section, expands path variables, and validates.
func LoadFile(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config %s: %w", path, err)
	}
	// Production's stricter eval default applies only when neither the
	// base nor the production section sets eval explicitly.
	var probe struct {
		Eval *string `yaml:"eval"`
	}
	if err := yaml.Unmarshal(data, &probe); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}

	cfg.applyEnvironmentOverrides(probe.Eval != nil)
	cfg.expandVariables()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return cfg, nil
}

// applyEnvironmentOverrides applies the section matching Environment.
func (c *Config) applyEnvironmentOverrides(evalSet bool) {
	var overrides *Overrides
	switch c.Environment {
	case Development:
		overrides = c.Development
	case Production:
		overrides = c.Production
		if !evalSet && (overrides == nil || overrides.Eval == nil) {
			c.Eval = debugcmd.EvalExplicit.String()
		}
	}
	if overrides == nil {
		return
	}

	if overrides.Socket != nil {
		c.Socket = *overrides.Socket
	}
	if overrides.LogLevel != nil {
		c.LogLevel = *overrides.LogLevel
	}
	if overrides.Eval != nil {
		c.Eval = *overrides.Eval
	}
	if overrides.AuditLog != nil {
		c.AuditLog = *overrides.AuditLog
	}
	if overrides.Metrics != nil {
		c.Metrics = *overrides.Metrics
	}
}

// expandVariables expands ${VAR} and ${VAR:-default} in path fields.
func (c *Config) expandVariables() {
	vars := map[string]string{
		"HOME":            os.Getenv("HOME"),
		"XDG_RUNTIME_DIR": os.Getenv("XDG_RUNTIME_DIR"),
	}
	c.Socket = expandVars(c.Socket, vars)
	c.AuditLog = expandVars(c.AuditLog, vars)
}

var varPattern = regexp.MustCompile(`\$\{([^}:]+)(?::-([^}]*))?\}`)

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

// Validate checks the configuration for errors, reporting all of them.
func (c *Config) Validate() error {
	var errs []error

	if c.Environment != Development && c.Environment != Production {
		errs = append(errs, fmt.Errorf("invalid environment: %s", c.Environment))
	}
	if c.Socket == "" {
		errs = append(errs, errors.New("socket is required"))
	} else if !filepath.IsAbs(c.Socket) {
		errs = append(errs, fmt.Errorf("socket must be an absolute path, got %q", c.Socket))
	}
	if _, err := c.SlogLevel(); err != nil {
		errs = append(errs, err)
	}
	if _, err := debugcmd.ParseEvalMode(c.Eval); err != nil {
		errs = append(errs, fmt.Errorf("eval: %w", err))
	}
	if c.AuditLog != "" && !filepath.IsAbs(c.AuditLog) {
		errs = append(errs, fmt.Errorf("audit_log must be an absolute path, got %q", c.AuditLog))
	}
	for name, value := range map[string]time.Duration{
		"read_timeout":   c.ReadTimeout,
		"write_timeout":  c.WriteTimeout,
		"accept_backoff": c.AcceptBackoff,
	} {
		if value <= 0 {
			errs = append(errs, fmt.Errorf("%s must be positive, got %s", name, value))
		}
	}
	if c.MaxRequestBytes <= 0 {
		errs = append(errs, fmt.Errorf("max_request_bytes must be positive, got %d", c.MaxRequestBytes))
	}

	return errors.Join(errs...)
}

// SlogLevel parses LogLevel.
func (c *Config) SlogLevel() (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return 0, fmt.Errorf("log_level: %w", err)
	}
	return level, nil
}

// ServiceOptions converts the configuration into debugsock.Options.
// The caller fills in Logger, Audit, Registerer, and Gatherer, which
// need live objects.
func (c *Config) ServiceOptions() (debugsock.Options, error) {
	mode, err := debugcmd.ParseEvalMode(c.Eval)
	if err != nil {
		return debugsock.Options{}, fmt.Errorf("eval: %w", err)
	}
	return debugsock.Options{
		Eval:            mode,
		MaxRequestBytes: c.MaxRequestBytes,
		ReadTimeout:     c.ReadTimeout,
		WriteTimeout:    c.WriteTimeout,
		AcceptBackoff:   c.AcceptBackoff,
	}, nil
}
