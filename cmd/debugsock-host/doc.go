// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// debugsock-host is a minimal long-running process that embeds a debug
// socket. It exists to try the endpoint out and to serve as a template
// for wiring the library into a real service.
//
//	DEBUGSOCK_CONFIG=/etc/app/debugsock.yaml debugsock-host
//	debugsock-host --config ./debugsock.yaml
//
// The host loads its configuration, builds a logger, optionally opens
// the audit log and a Prometheus registry, starts the endpoint, and
// waits for SIGINT/SIGTERM or for the worker to stop on its own. A
// worker that stops on its own (repeated failures) makes the host exit
// with status 1.
package main
