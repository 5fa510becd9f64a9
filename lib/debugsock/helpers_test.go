// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package debugsock

import (
	"bytes"
	"context"
	"log/slog"
	"net"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/bureau-foundation/debugsock/lib/debugcmd"
	"github.com/bureau-foundation/debugsock/lib/testutil"
)

// logBuffer collects text-handler output from the worker goroutine.
type logBuffer struct {
	mu     sync.Mutex
	buffer bytes.Buffer
}

func (b *logBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buffer.Write(p)
}

func (b *logBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buffer.String()
}

func (b *logBuffer) Contains(text string) bool {
	return strings.Contains(b.String(), text)
}

func (b *logBuffer) Count(text string) int {
	return strings.Count(b.String(), text)
}

// newTestService builds a Service whose logs go to the returned buffer.
func newTestService(t *testing.T, options Options) (*Service, *logBuffer) {
	t.Helper()
	logs := &logBuffer{}
	if options.Logger == nil {
		options.Logger = slog.New(slog.NewTextHandler(logs, &slog.HandlerOptions{Level: slog.LevelDebug}))
	}
	service := New(options)
	t.Cleanup(service.Stop)
	return service, logs
}

// startTestService starts a Service on a fresh socket path.
func startTestService(t *testing.T, options Options) (*Service, *Worker, *logBuffer) {
	t.Helper()
	service, logs := newTestService(t, options)
	worker, err := service.Start(filepath.Join(testutil.SocketDir(t), "debug.sock"))
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	return service, worker, logs
}

func send(t *testing.T, path, command string) string {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	response, err := Send(ctx, path, command)
	if err != nil {
		t.Fatalf("Send(%q): %v", command, err)
	}
	return response
}

// connectAndClose opens a connection and closes it without sending
// anything.
func connectAndClose(t *testing.T, path string) {
	t.Helper()
	connection, err := net.Dial("unix", path)
	if err != nil {
		t.Fatalf("dialing %s: %v", path, err)
	}
	connection.Close()
}

// executorFunc adapts a function to Executor.
type executorFunc func(ctx context.Context, request debugcmd.Request) string

func (f executorFunc) Execute(ctx context.Context, request debugcmd.Request) string {
	return f(ctx, request)
}

// scriptedListener hands out whatever the test pushes into results.
type scriptedListener struct {
	results   chan acceptResult
	closed    chan struct{}
	closeOnce sync.Once
}

type acceptResult struct {
	connection net.Conn
	err        error
}

func newScriptedListener() *scriptedListener {
	return &scriptedListener{
		results: make(chan acceptResult),
		closed:  make(chan struct{}),
	}
}

func (l *scriptedListener) Accept() (net.Conn, error) {
	select {
	case <-l.closed:
		return nil, net.ErrClosed
	case result := <-l.results:
		return result.connection, result.err
	}
}

func (l *scriptedListener) Close() error {
	l.closeOnce.Do(func() { close(l.closed) })
	return nil
}

func (l *scriptedListener) Addr() net.Addr {
	return &net.UnixAddr{Name: "scripted", Net: "unix"}
}

// push delivers one Accept result, failing if the worker never asks.
func (l *scriptedListener) push(t *testing.T, result acceptResult) {
	t.Helper()
	select {
	case l.results <- result:
	case <-time.After(5 * time.Second):
		t.Fatal("worker did not call Accept")
	}
}

// connectedPair returns the server and client ends of a real Unix
// socket connection, for feeding through a scriptedListener.
func connectedPair(t *testing.T) (net.Conn, *net.UnixConn) {
	t.Helper()
	path := filepath.Join(testutil.SocketDir(t), "pair.sock")
	listener, err := net.Listen("unix", path)
	if err != nil {
		t.Fatalf("listening for pair: %v", err)
	}
	defer listener.Close()

	accepted := make(chan net.Conn, 1)
	go func() {
		connection, err := listener.Accept()
		if err != nil {
			close(accepted)
			return
		}
		accepted <- connection
	}()

	client, err := net.Dial("unix", path)
	if err != nil {
		t.Fatalf("dialing pair: %v", err)
	}
	server := testutil.RequireReceive(t, accepted, 5*time.Second, "accepting pair connection")
	t.Cleanup(func() {
		client.Close()
		server.Close()
	})
	return server, client.(*net.UnixConn)
}

// exchange writes command on client, half-closes, and reads the reply.
func exchange(t *testing.T, client *net.UnixConn, command string) string {
	t.Helper()
	client.SetDeadline(time.Now().Add(5 * time.Second))
	if _, err := client.Write([]byte(command)); err != nil {
		t.Fatalf("writing command: %v", err)
	}
	if err := client.CloseWrite(); err != nil {
		t.Fatalf("half-closing: %v", err)
	}
	var reply bytes.Buffer
	if _, err := reply.ReadFrom(client); err != nil {
		t.Fatalf("reading reply: %v", err)
	}
	return reply.String()
}
