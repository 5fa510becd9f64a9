// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package goroutinedump captures and renders a snapshot of every live
// goroutine in the process: identity, scheduler status, and call
// stack.
//
// The runtime exposes this only as text (runtime.Stack with all=true),
// so Capture takes that dump and Parse turns it into structured
// [Goroutine] values. Render produces the fixed operator-facing
// format used by the debug socket's "goroutines" command:
//
//	2026-10-16T12:00:00Z /usr/local/bin/app
//	2026-10-16T12:00:00Z pid=4242 goroutine.id=1 goroutine.status=running
//	/src/app/main.go:42 main.main
//
//	2026-10-16T12:00:00Z pid=4242 goroutine.id=7 goroutine.status=chan receive goroutine.wait=3 minutes
//	/src/app/worker.go:88 main.(*worker).run
//	/src/app/main.go:30 created by main.main in goroutine 1
//
// A header line with the capture time and program name, then one block
// per goroutine separated by a blank line, one stack frame per line.
//
// Capturing is read-only and safe to call concurrently from any number
// of goroutines. It briefly stops the world while the runtime writes
// the dump.
package goroutinedump
