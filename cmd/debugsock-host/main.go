// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"expvar"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/pflag"
	"golang.org/x/term"

	"github.com/bureau-foundation/debugsock/lib/audit"
	"github.com/bureau-foundation/debugsock/lib/config"
	"github.com/bureau-foundation/debugsock/lib/debugsock"
	"github.com/bureau-foundation/debugsock/lib/process"
	"github.com/bureau-foundation/debugsock/lib/version"
)

func main() {
	if err := run(); err != nil {
		process.Fatal(err)
	}
}

func run() error {
	var configPath string
	flagSet := pflag.NewFlagSet("debugsock-host", pflag.ContinueOnError)
	flagSet.StringVar(&configPath, "config", "", "path to debugsock.yaml (default: $"+config.EnvVar+")")

	// Handle --version before flag parsing to match the other binaries.
	if len(os.Args) > 1 && os.Args[1] == "--version" {
		version.Print("debugsock-host")
		return nil
	}
	if err := flagSet.Parse(os.Args[1:]); err != nil {
		return err
	}

	var cfg *config.Config
	var err error
	if configPath != "" {
		cfg, err = config.LoadFile(configPath)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return err
	}

	level, err := cfg.SlogLevel()
	if err != nil {
		return err
	}
	logger := newLogger(os.Stderr, level)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	return serve(ctx, cfg, logger)
}

// newLogger builds a text handler for terminals and a JSON handler
// otherwise.
func newLogger(w *os.File, level slog.Level) *slog.Logger {
	options := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if term.IsTerminal(int(w.Fd())) {
		handler = slog.NewTextHandler(w, options)
	} else {
		handler = slog.NewJSONHandler(w, options)
	}
	return slog.New(handler)
}

// serve runs the endpoint described by cfg until ctx is done or the
// worker stops on its own.
func serve(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	options, err := cfg.ServiceOptions()
	if err != nil {
		return err
	}
	options.Logger = logger

	if cfg.AuditLog != "" {
		auditLog, err := audit.Open(cfg.AuditLog)
		if err != nil {
			return err
		}
		defer func() {
			if err := auditLog.Close(); err != nil {
				logger.Error("closing audit log failed", "path", cfg.AuditLog, "error", err)
			}
		}()
		options.Audit = auditLog.Hook()
	}

	if cfg.Metrics {
		registry := prometheus.NewRegistry()
		registry.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
		options.Registerer = registry
		options.Gatherer = registry
	}

	publishBuildInfo()

	service := debugsock.New(options)
	worker, err := service.Start(cfg.Socket)
	if err != nil {
		return err
	}
	defer service.Stop()

	logger.Info("debugsock host running",
		"socket", worker.Path(),
		"pid", worker.OwnerPID(),
		"eval", options.Eval.String(),
		"audit_log", cfg.AuditLog,
		"metrics", cfg.Metrics,
	)

	select {
	case <-ctx.Done():
		logger.Info("shutting down")
		return nil
	case <-worker.Done():
		return fmt.Errorf("debug socket worker stopped: %s", worker.Reason())
	}
}

var buildInfo = expvar.NewMap("debugsock_host")

// publishBuildInfo fills the expvar map shown by the "vars" command.
func publishBuildInfo() {
	versionVar := new(expvar.String)
	versionVar.Set(version.Info())
	buildInfo.Set("version", versionVar)
	pidVar := new(expvar.Int)
	pidVar.Set(int64(process.ID()))
	buildInfo.Set("pid", pidVar)
}
