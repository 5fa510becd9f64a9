// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package debugsock

import (
	"context"
	"fmt"
	"io"
	"net"
	"time"

	"github.com/bureau-foundation/debugsock/lib/netutil"
)

// Send delivers one command to the debug socket at path and returns the
// raw response, including its trailing newline. The context bounds the
// whole exchange: dialing, writing, and waiting for the result.
func Send(ctx context.Context, path, command string) (string, error) {
	var dialer net.Dialer
	connection, err := dialer.DialContext(ctx, "unix", path)
	if err != nil {
		return "", fmt.Errorf("connecting to debug socket %s: %w", path, err)
	}
	defer connection.Close()

	if deadline, ok := ctx.Deadline(); ok {
		connection.SetDeadline(deadline)
	}
	// Cancellation without a deadline still has to unblock I/O.
	stop := context.AfterFunc(ctx, func() {
		connection.SetDeadline(time.Unix(1, 0))
	})
	defer stop()

	if _, err := io.WriteString(connection, command); err != nil {
		return "", fmt.Errorf("sending command: %w", contextError(ctx, err))
	}
	if unixConnection, ok := connection.(*net.UnixConn); ok {
		if err := unixConnection.CloseWrite(); err != nil {
			return "", fmt.Errorf("closing write side: %w", contextError(ctx, err))
		}
	}

	response, err := io.ReadAll(connection)
	if err != nil {
		return "", fmt.Errorf("reading response: %w", contextError(ctx, err))
	}
	return string(response), nil
}

// contextError prefers the context's error when the context ended the
// I/O, so callers can match context.Canceled and DeadlineExceeded.
func contextError(ctx context.Context, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}
	// The connection deadline can fire a moment before the context's
	// own timer.
	if deadline, ok := ctx.Deadline(); ok && netutil.IsTimeout(err) && !time.Now().Before(deadline) {
		return context.DeadlineExceeded
	}
	return err
}
