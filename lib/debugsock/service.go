// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package debugsock

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"net"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/bureau-foundation/debugsock/lib/clock"
	"github.com/bureau-foundation/debugsock/lib/debugcmd"
	"github.com/bureau-foundation/debugsock/lib/process"
)

var (
	// ErrAlreadyRunning is returned by Start when this process already
	// owns a running worker.
	ErrAlreadyRunning = errors.New("debug socket worker already running for this process")

	// ErrEndpointInUse is returned by Start when another server is
	// answering on the requested path.
	ErrEndpointInUse = errors.New("debug socket path is in use by a live server")

	// ErrUnsupported is returned by Start on platforms without Unix
	// socket permissions.
	ErrUnsupported = errors.New("debug socket is not supported on this platform")
)

const (
	// DefaultMaxRequestBytes bounds a single command.
	DefaultMaxRequestBytes = 1 << 20

	// DefaultReadTimeout is how long a client has to send its command
	// and half-close.
	DefaultReadTimeout = 30 * time.Second

	// DefaultWriteTimeout is how long writing the response may take.
	DefaultWriteTimeout = 10 * time.Second

	// DefaultAcceptBackoff is the wait between failed accepts.
	DefaultAcceptBackoff = time.Second

	// maxAcceptFailures consecutive accept failures stop the worker.
	maxAcceptFailures = 10

	// More than maxProcessingFailures consecutive pipeline failures
	// stop the worker.
	maxProcessingFailures = 20
)

// Executor runs one command. *debugcmd.Dispatcher is the standard
// implementation. Execute must return the full response text; a panic
// is recovered by the worker and counted as a failed request.
type Executor interface {
	Execute(ctx context.Context, request debugcmd.Request) string
}

// Options configures a Service. The zero value serves the standard
// debug commands with bare expression evaluation and no logging.
type Options struct {
	Logger *slog.Logger

	// Executor interprets commands. When nil, a debugcmd.Dispatcher is
	// built from Eval, Audit, and Gatherer.
	Executor Executor

	Eval     debugcmd.EvalMode
	Audit    debugcmd.AuditFunc
	Gatherer prometheus.Gatherer

	// Registerer receives the worker's collectors. Nil leaves them
	// unregistered. Each Service needs its own registerer.
	Registerer prometheus.Registerer

	// Clock drives the accept backoff and request timing. Defaults to
	// the real clock.
	Clock clock.Clock

	// PID reports the current process id; ownership of the endpoint
	// is tied to it. Defaults to process.ID.
	PID func() int

	MaxRequestBytes int64
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	AcceptBackoff   time.Duration

	// listen replaces listenUnix in tests.
	listen func(path string) (net.Listener, error)
}

// ShutdownReason says why a worker stopped.
type ShutdownReason string

const (
	// ReasonStopped: Stop was called.
	ReasonStopped ShutdownReason = "stopped"

	// ReasonClosed: the listener was closed out from under the worker.
	ReasonClosed ShutdownReason = "closed"

	// ReasonAcceptFailures: accept failed maxAcceptFailures times in a row.
	ReasonAcceptFailures ShutdownReason = "accept_failures"

	// ReasonBroken: too many consecutive requests failed.
	ReasonBroken ShutdownReason = "broken"
)

// Service owns at most one debug socket endpoint per process.
type Service struct {
	logger          *slog.Logger
	executor        Executor
	clock           clock.Clock
	pid             func() int
	metrics         *metrics
	listen          func(path string) (net.Listener, error)
	maxRequestBytes int64
	readTimeout     time.Duration
	writeTimeout    time.Duration
	acceptBackoff   time.Duration

	mu    sync.Mutex
	state *state
}

// state is the endpoint the service currently owns.
type state struct {
	path   string
	worker *Worker
	owner  int
}

// New creates a Service. Nothing listens until Start.
func New(options Options) *Service {
	logger := options.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	clk := options.Clock
	if clk == nil {
		clk = clock.Real()
	}
	pid := options.PID
	if pid == nil {
		pid = process.ID
	}
	executor := options.Executor
	if executor == nil {
		executor = debugcmd.New(debugcmd.Options{
			Logger:   logger,
			Eval:     options.Eval,
			Audit:    options.Audit,
			Gatherer: options.Gatherer,
			PID:      pid,
			Clock:    clk,
		})
	}
	listen := options.listen
	if listen == nil {
		listen = listenUnix
	}

	return &Service{
		logger:          logger,
		executor:        executor,
		clock:           clk,
		pid:             pid,
		metrics:         newMetrics(options.Registerer),
		listen:          listen,
		maxRequestBytes: positiveOr(options.MaxRequestBytes, DefaultMaxRequestBytes),
		readTimeout:     positiveOr(options.ReadTimeout, DefaultReadTimeout),
		writeTimeout:    positiveOr(options.WriteTimeout, DefaultWriteTimeout),
		acceptBackoff:   positiveOr(options.AcceptBackoff, DefaultAcceptBackoff),
	}
}

func positiveOr[T int64 | time.Duration](value, fallback T) T {
	if value > 0 {
		return value
	}
	return fallback
}

// Start listens on path and launches the worker. The socket is created
// with mode 0600. A stale socket file nobody answers on is replaced.
//
// Start fails with ErrAlreadyRunning if this process already owns a
// running worker, leaving that worker untouched. A worker that has
// stopped on its own but not yet released the endpoint is released
// here instead. A service inherited from a process with a different
// pid is treated as not started.
func (s *Service) Start(path string) (*Worker, error) {
	if path == "" {
		return nil, errors.New("debug socket path is empty")
	}
	absolute, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolving debug socket path %q: %w", path, err)
	}

	pid := s.pid()

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != nil && s.state.owner == pid {
		if s.state.worker.Reason() == "" {
			return nil, ErrAlreadyRunning
		}
		s.removeSocket(s.state.path)
		s.state = nil
		s.metrics.running.Set(0)
	}

	listener, err := s.listen(absolute)
	if err != nil {
		return nil, fmt.Errorf("listening on debug socket %s: %w", absolute, err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	worker := &Worker{
		path:     absolute,
		owner:    pid,
		listener: listener,
		ctx:      ctx,
		cancel:   cancel,
		done:     make(chan struct{}),
	}
	s.state = &state{path: absolute, worker: worker, owner: pid}
	s.metrics.running.Set(1)

	go s.run(worker)

	s.logger.Info("debug socket listening", "path", absolute, "pid", pid)
	return worker, nil
}

// Stop shuts down the worker this process owns, if any, and removes the
// socket file. It does not wait for an in-flight command to finish.
// Stop is a no-op when nothing is running or when the running worker
// belongs to a different pid.
func (s *Service) Stop() {
	pid := s.pid()

	s.mu.Lock()
	current := s.state
	if current == nil || current.owner != pid {
		s.mu.Unlock()
		return
	}
	s.state = nil
	s.metrics.running.Set(0)
	s.mu.Unlock()

	current.worker.shutdown(ReasonStopped)
	s.removeSocket(current.path)
	s.logger.Info("debug socket stopped", "path", current.path)
}

// Running reports whether this process owns a worker that has not
// stopped.
func (s *Service) Running() bool {
	pid := s.pid()
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state != nil && s.state.owner == pid && s.state.worker.Reason() == ""
}

// run is the worker goroutine.
func (s *Service) run(worker *Worker) {
	reason := s.acceptLoop(worker)
	worker.shutdown(reason)
	s.release(worker)

	s.metrics.exits.WithLabelValues(string(worker.Reason())).Inc()
	close(worker.done)
}

// release clears the state and removes the socket file after the worker
// stops on its own. Nothing happens if the state has moved on to another
// worker or another owner.
func (s *Service) release(worker *Worker) {
	s.mu.Lock()
	current := s.state
	if current == nil || current.worker != worker || current.owner != s.pid() {
		s.mu.Unlock()
		return
	}
	s.state = nil
	s.metrics.running.Set(0)
	s.mu.Unlock()

	s.removeSocket(worker.path)
}

func (s *Service) removeSocket(path string) {
	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		s.logger.Warn("removing debug socket failed", "path", path, "error", err)
	}
}

// Worker is the handle for one running endpoint.
type Worker struct {
	path     string
	owner    int
	listener net.Listener
	ctx      context.Context
	cancel   context.CancelFunc
	done     chan struct{}

	mu         sync.Mutex
	reason     ShutdownReason
	connection net.Conn
}

// Path is the absolute socket path.
func (w *Worker) Path() string { return w.path }

// OwnerPID is the pid that started the worker.
func (w *Worker) OwnerPID() int { return w.owner }

// Done is closed once the worker goroutine has exited and released the
// endpoint.
func (w *Worker) Done() <-chan struct{} { return w.done }

// Reason says why the worker stopped. Empty while it is running.
func (w *Worker) Reason() ShutdownReason {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.reason
}

// shutdown records the first reason and interrupts everything the
// worker may be blocked on: the backoff wait, Accept, and the current
// connection's I/O.
func (w *Worker) shutdown(reason ShutdownReason) {
	w.mu.Lock()
	if w.reason == "" {
		w.reason = reason
	}
	connection := w.connection
	w.mu.Unlock()

	w.cancel()
	w.listener.Close()
	if connection != nil {
		connection.Close()
	}
}

// track records the connection being served so shutdown can close it.
// Returns false if the worker is already shutting down.
func (w *Worker) track(connection net.Conn) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.reason != "" {
		return false
	}
	w.connection = connection
	return true
}

func (w *Worker) untrack() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.connection = nil
}
