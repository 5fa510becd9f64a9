// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package debugsock embeds a debug command endpoint in a long-running
// process: a Unix socket, mode 0600, on which an operator sends one
// short text command and receives a text result.
//
// Protocol: the client connects, writes the command, and half-closes
// its write side. The server writes the result followed by a newline
// and closes the connection. One command per connection; connections
// are served one at a time by a single worker goroutine.
//
// Commands are interpreted by a [debugcmd.Dispatcher] unless
// [Options.Executor] supplies something else.
//
// The worker is built to run forever inside someone else's process.
// Failures never propagate to the host: accept errors are retried
// with a fixed backoff (the tenth consecutive failure stops the
// worker), per-connection failures are counted (more than twenty in a
// row stops the worker), and command failures become error responses.
// Whenever the worker stops, for any reason, the socket file is
// removed and the service can be started again.
//
// A [Service] remembers the pid that started it. In a process that
// inherited the service's memory but has a different pid, Stop does
// nothing and Start creates a new, independent endpoint.
//
// Typical use:
//
//	service := debugsock.New(debugsock.Options{Logger: logger})
//	worker, err := service.Start("/run/myapp/debug.sock")
//	if err != nil {
//	    return err
//	}
//	defer service.Stop()
//
// and from a shell:
//
//	debugsock send --socket /run/myapp/debug.sock goroutines
package debugsock
