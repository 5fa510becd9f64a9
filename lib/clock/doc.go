// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package clock provides an injectable time abstraction.
//
// The acceptor loop in lib/debugsock waits between failed accepts, and
// that wait must be observable in tests without real sleeps. Code that
// needs time holds a Clock field:
//
//	type worker struct {
//	    clock clock.Clock
//	    // ...
//	}
//
// Production wiring uses Real(). Tests use Fake() and synchronize with
// the goroutine under test before moving time forward:
//
//	c := clock.Fake(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
//	// ... start the worker ...
//	c.WaitForTimers(1)     // the worker is now parked in its backoff
//	c.Advance(time.Second) // release it
//
// WaitForTimers removes the race between a goroutine registering a
// timer and the test advancing the clock.
package clock
