// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package debugcmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"runtime/debug"
	"strings"
	"sync"
	"time"
	"unicode"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/bureau-foundation/debugsock/lib/clock"
	"github.com/bureau-foundation/debugsock/lib/process"
)

// EvalMode controls how expression evaluation is reached.
type EvalMode int

const (
	// EvalBare evaluates any command that is not a known verb as an
	// expression, so "2 + 2" works without a prefix.
	EvalBare EvalMode = iota

	// EvalExplicit evaluates only "eval <expr>"; unrecognized text is
	// an unknown command.
	EvalExplicit

	// EvalDisabled rejects expression evaluation entirely.
	EvalDisabled
)

// String returns the configuration spelling of the mode.
func (m EvalMode) String() string {
	switch m {
	case EvalBare:
		return "bare"
	case EvalExplicit:
		return "explicit"
	case EvalDisabled:
		return "disabled"
	default:
		return fmt.Sprintf("EvalMode(%d)", int(m))
	}
}

// ParseEvalMode parses "bare", "explicit", or "disabled".
func ParseEvalMode(text string) (EvalMode, error) {
	switch text {
	case "bare", "":
		return EvalBare, nil
	case "explicit":
		return EvalExplicit, nil
	case "disabled":
		return EvalDisabled, nil
	default:
		return 0, fmt.Errorf("unknown eval mode %q (want bare, explicit, or disabled)", text)
	}
}

// Options configures a Dispatcher. The zero value is usable.
type Options struct {
	Logger *slog.Logger

	Eval EvalMode

	// Audit is called with every request before it executes.
	Audit AuditFunc

	// Gatherer backs the "metrics" verb. Nil disables it.
	Gatherer prometheus.Gatherer

	// Program names the process in goroutine dumps. Defaults to the
	// executable path.
	Program string

	// PID returns the process id reported by commands. Defaults to
	// process.ID.
	PID func() int

	// Clock stamps goroutine dumps and measures uptime. Defaults to
	// the real clock.
	Clock clock.Clock
}

// Dispatcher executes debug commands. Safe for concurrent use.
type Dispatcher struct {
	logger   *slog.Logger
	eval     EvalMode
	audit    AuditFunc
	gatherer prometheus.Gatherer
	program  string
	pid      func() int
	clock    clock.Clock
	started  time.Time

	mu       sync.RWMutex
	bindings map[string]func() any
}

// New creates a Dispatcher with the built-in bindings registered.
func New(options Options) *Dispatcher {
	logger := options.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	pid := options.PID
	if pid == nil {
		pid = process.ID
	}
	clk := options.Clock
	if clk == nil {
		clk = clock.Real()
	}
	program := options.Program
	if program == "" {
		program = executableName()
	}

	d := &Dispatcher{
		logger:   logger,
		eval:     options.Eval,
		audit:    options.Audit,
		gatherer: options.Gatherer,
		program:  program,
		pid:      pid,
		clock:    clk,
		started:  clk.Now(),
		bindings: make(map[string]func() any),
	}
	d.registerBuiltinBindings()
	return d
}

func executableName() string {
	if path, err := os.Executable(); err == nil {
		return path
	}
	if len(os.Args) > 0 {
		return os.Args[0]
	}
	return "unknown"
}

// Execute runs one command and returns its textual result. Failures
// are rendered as "error: <kind>: <message>" and logged; Execute itself
// never fails or panics.
func (d *Dispatcher) Execute(ctx context.Context, request Request) (result string) {
	d.runAudit(ctx, request)

	defer func() {
		if recovered := recover(); recovered != nil {
			failure := &Error{
				Kind:    KindPanic,
				Message: fmt.Sprint(recovered),
				Stack:   string(debug.Stack()),
			}
			result = d.fail(request, failure)
		}
	}()

	output, err := d.run(ctx, strings.TrimSpace(request.Command))
	if err != nil {
		return d.fail(request, asError(err))
	}
	return output
}

func (d *Dispatcher) fail(request Request, failure *Error) string {
	d.logger.Error("debug command failed",
		"request_id", request.ID,
		"command", request.Command,
		"kind", failure.Kind,
		"error", failure.Message,
	)
	return failure.Render()
}

func (d *Dispatcher) runAudit(ctx context.Context, request Request) {
	if d.audit == nil {
		return
	}
	defer func() {
		if recovered := recover(); recovered != nil {
			d.logger.Error("debug command audit hook panicked",
				"request_id", request.ID,
				"endpoint", request.Endpoint,
				"command", request.Command,
				"panic", fmt.Sprint(recovered),
			)
		}
	}()
	if err := d.audit(ctx, request); err != nil {
		d.logger.Error("debug command audit hook failed",
			"request_id", request.ID,
			"endpoint", request.Endpoint,
			"command", request.Command,
			"error", err,
		)
	}
}

// run routes a trimmed command to its verb or to the evaluator.
func (d *Dispatcher) run(ctx context.Context, command string) (string, error) {
	if command == "" {
		return "", newError(KindUnknownCommand, "empty command")
	}

	name, arguments := command, ""
	if space := strings.IndexFunc(command, unicode.IsSpace); space >= 0 {
		name, arguments = command[:space], strings.TrimSpace(command[space:])
	}

	if name == "eval" {
		if d.eval == EvalDisabled {
			return "", newError(KindUnknownCommand, "expression evaluation is disabled")
		}
		return d.evaluate(arguments)
	}
	if v, ok := lookupVerb(name); ok {
		if arguments != "" && !v.takesArguments {
			if d.eval == EvalBare {
				return d.evaluate(command)
			}
			return "", newError(KindCommand, fmt.Sprintf("%s takes no arguments", name))
		}
		output, err := v.run(ctx, d, arguments)
		if err != nil {
			return "", err
		}
		return output, nil
	}
	if d.eval == EvalBare {
		return d.evaluate(command)
	}
	return "", newError(KindUnknownCommand, fmt.Sprintf("%q (try \"help\")", name))
}
