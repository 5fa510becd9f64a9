// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package debugsock

import (
	"errors"
	"fmt"
	"io"
	"net"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/bureau-foundation/debugsock/lib/debugcmd"
)

var (
	errEmptyRequest    = errors.New("client sent no command")
	errShuttingDown    = errors.New("worker is shutting down")
	errRequestTooLarge = errors.New("command too large")
)

// serveConnection runs one request through the pipeline: read the
// command to EOF, execute it, write the response, close. Any error
// means the request failed and counts against the worker.
func (s *Service) serveConnection(worker *Worker, connection net.Conn) (err error) {
	defer connection.Close()

	if !worker.track(connection) {
		return errShuttingDown
	}
	defer worker.untrack()

	defer func() {
		if recovered := recover(); recovered != nil {
			err = fmt.Errorf("command execution panicked: %v", recovered)
		}
	}()

	s.metrics.connections.Inc()
	started := s.clock.Now()

	connection.SetReadDeadline(time.Now().Add(s.readTimeout))

	// Read one byte past the limit to tell "exactly at the limit" from
	// "over it".
	payload, err := io.ReadAll(io.LimitReader(connection, s.maxRequestBytes+1))
	if err != nil {
		return fmt.Errorf("reading command: %w", err)
	}
	if len(payload) == 0 {
		return errEmptyRequest
	}
	if int64(len(payload)) > s.maxRequestBytes {
		return fmt.Errorf("%w: exceeds %d bytes", errRequestTooLarge, s.maxRequestBytes)
	}

	request := debugcmd.Request{
		ID:       uuid.NewString(),
		Endpoint: worker.path,
		Command:  string(payload),
		Received: started,
	}
	s.logger.Info("debug socket command received",
		"request_id", request.ID,
		"command", request.Command,
	)

	response := terminateLine(s.executor.Execute(worker.ctx, request))

	connection.SetWriteDeadline(time.Now().Add(s.writeTimeout))
	if _, err := io.WriteString(connection, response); err != nil {
		return fmt.Errorf("writing response: %w", err)
	}

	s.metrics.duration.Observe(s.clock.Now().Sub(started).Seconds())
	return nil
}

// terminateLine ensures text ends with exactly one newline, adding one
// only when it is missing.
func terminateLine(text string) string {
	if strings.HasSuffix(text, "\n") {
		return text
	}
	return text + "\n"
}
