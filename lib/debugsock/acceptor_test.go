// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package debugsock

import (
	"errors"
	"fmt"
	"net"
	"path/filepath"
	"testing"
	"time"

	"github.com/bureau-foundation/debugsock/lib/clock"
	"github.com/bureau-foundation/debugsock/lib/testutil"
)

var errTransient = errors.New("accept: too many open files")

// startScripted starts a Service whose listener is driven by the test
// and whose backoff runs on a fake clock.
func startScripted(t *testing.T) (*Service, *Worker, *scriptedListener, *clock.FakeClock, *logBuffer) {
	t.Helper()
	listener := newScriptedListener()
	fake := clock.Fake(time.Date(2026, 10, 16, 12, 0, 0, 0, time.UTC))
	service, logs := newTestService(t, Options{
		Clock:  fake,
		listen: func(string) (net.Listener, error) { return listener, nil },
	})
	worker, err := service.Start(filepath.Join(t.TempDir(), "scripted.sock"))
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	return service, worker, listener, fake, logs
}

// failAccept delivers one accept error and, unless it is expected to
// be fatal, lets the backoff elapse.
func failAccept(t *testing.T, listener *scriptedListener, fake *clock.FakeClock, expectBackoff bool) {
	t.Helper()
	listener.push(t, acceptResult{err: errTransient})
	if expectBackoff {
		fake.WaitForTimers(1)
		fake.Advance(DefaultAcceptBackoff)
	}
}

func TestAcceptFailuresStopWorker(t *testing.T) {
	service, worker, listener, fake, logs := startScripted(t)

	for attempt := 1; attempt <= maxAcceptFailures; attempt++ {
		failAccept(t, listener, fake, attempt < maxAcceptFailures)
	}

	testutil.RequireClosed(t, worker.Done(), 5*time.Second, "worker exit after accept failures")
	if reason := worker.Reason(); reason != ReasonAcceptFailures {
		t.Errorf("Reason = %q, want %q", reason, ReasonAcceptFailures)
	}
	if got := logs.Count(`msg="debug socket accept failed"`); got != maxAcceptFailures {
		t.Errorf("logged %d accept failures, want %d", got, maxAcceptFailures)
	}
	for attempt := 1; attempt <= maxAcceptFailures; attempt++ {
		if !logs.Contains(fmt.Sprintf("attempt=%d ", attempt)) {
			t.Errorf("log missing attempt=%d:\n%s", attempt, logs)
		}
	}
	if !logs.Contains(`msg="debug socket stopped accepting after repeated failures"`) {
		t.Errorf("final accept failure not logged:\n%s", logs)
	}
	if fake.PendingCount() != 0 {
		t.Errorf("%d backoff timers pending after the worker stopped", fake.PendingCount())
	}
	if service.Running() {
		t.Error("Running after accept failures")
	}
}

func TestAcceptBackoffUsesClock(t *testing.T) {
	_, worker, listener, fake, _ := startScripted(t)

	listener.push(t, acceptResult{err: errTransient})
	fake.WaitForTimers(1)

	// Until the clock moves, the worker must not call Accept again.
	select {
	case listener.results <- acceptResult{err: errTransient}:
		t.Fatal("worker accepted again before the backoff elapsed")
	case <-time.After(50 * time.Millisecond):
	}

	fake.Advance(DefaultAcceptBackoff - time.Millisecond)
	if fake.PendingCount() != 1 {
		t.Fatal("backoff fired early")
	}
	fake.Advance(time.Millisecond)
	listener.push(t, acceptResult{err: errTransient})

	select {
	case <-worker.Done():
		t.Fatal("worker stopped after two accept failures")
	default:
	}
}

func TestAcceptFailureCounterResets(t *testing.T) {
	service, worker, listener, fake, logs := startScripted(t)

	for range maxAcceptFailures - 1 {
		failAccept(t, listener, fake, true)
	}

	server, client := connectedPair(t)
	listener.push(t, acceptResult{connection: server})
	if got := exchange(t, client, "2 + 2"); got != "4\n" {
		t.Fatalf("response = %q", got)
	}

	for range maxAcceptFailures - 1 {
		failAccept(t, listener, fake, true)
	}

	// The worker is back in Accept after nine more failures.
	server, client = connectedPair(t)
	listener.push(t, acceptResult{connection: server})
	if got := exchange(t, client, "1 + 1"); got != "2\n" {
		t.Fatalf("response = %q", got)
	}

	if !service.Running() {
		t.Fatal("worker stopped although failures were not consecutive")
	}
	if logs.Contains("attempt=10") {
		t.Errorf("accept failure counter did not reset:\n%s", logs)
	}
	select {
	case <-worker.Done():
		t.Fatal("worker exited")
	default:
	}
}

func TestStopDuringBackoff(t *testing.T) {
	service, worker, listener, fake, _ := startScripted(t)

	listener.push(t, acceptResult{err: errTransient})
	fake.WaitForTimers(1)

	service.Stop()
	testutil.RequireClosed(t, worker.Done(), 5*time.Second, "worker exit during backoff")
	if reason := worker.Reason(); reason != ReasonStopped {
		t.Errorf("Reason = %q, want %q", reason, ReasonStopped)
	}
}

func TestListenerClosedUnderWorker(t *testing.T) {
	service, worker, listener, _, logs := startScripted(t)

	listener.Close()
	testutil.RequireClosed(t, worker.Done(), 5*time.Second, "worker exit after listener close")
	if reason := worker.Reason(); reason != ReasonClosed {
		t.Errorf("Reason = %q, want %q", reason, ReasonClosed)
	}
	if logs.Contains("debug socket accept failed") {
		t.Errorf("a closed listener is not an accept failure:\n%s", logs)
	}
	if service.Running() {
		t.Error("Running after the listener closed")
	}
}
