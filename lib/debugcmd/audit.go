// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package debugcmd

import (
	"context"
	"time"
)

// Request is one command received on a debug endpoint.
type Request struct {
	// ID correlates log lines and audit records for one request.
	ID string

	// Endpoint is the socket path the command arrived on.
	Endpoint string

	// Command is the raw command text, exactly as the client sent it.
	Command string

	Received time.Time
}

// AuditFunc observes a request before it executes. A returned error
// (or a panic) is logged by the dispatcher and does not prevent or
// alter execution.
type AuditFunc func(ctx context.Context, request Request) error

// AuditCommand adapts a hook that only wants the raw command text.
func AuditCommand(hook func(command string) error) AuditFunc {
	return func(_ context.Context, request Request) error {
		return hook(request.Command)
	}
}

// AuditEndpoint adapts a hook that wants the endpoint path and the raw
// command text.
func AuditEndpoint(hook func(path, command string) error) AuditFunc {
	return func(_ context.Context, request Request) error {
		return hook(request.Endpoint, request.Command)
	}
}
