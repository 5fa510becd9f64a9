// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package debugsock

import (
	"errors"
	"net"

	"github.com/bureau-foundation/debugsock/lib/netutil"
)

// acceptLoop serves connections until the worker must stop, and
// returns why.
//
// Two independent counters drive termination. acceptFailures counts
// consecutive Accept errors; each is followed by a backoff wait, and
// the maxAcceptFailures-th stops the loop. processingFailures counts
// consecutive failed requests; exceeding maxProcessingFailures stops
// the loop. Each counter resets on its own success.
func (s *Service) acceptLoop(worker *Worker) ShutdownReason {
	acceptFailures := 0
	processingFailures := 0

	for {
		connection, err := worker.listener.Accept()
		if err != nil {
			if worker.ctx.Err() != nil {
				return ReasonStopped
			}
			if errors.Is(err, net.ErrClosed) {
				return ReasonClosed
			}

			acceptFailures++
			s.metrics.acceptFailures.Inc()
			s.logger.Warn("debug socket accept failed",
				"path", worker.path,
				"attempt", acceptFailures,
				"error", err,
			)
			if acceptFailures >= maxAcceptFailures {
				s.logger.Error("debug socket stopped accepting after repeated failures",
					"path", worker.path,
					"failures", acceptFailures,
				)
				return ReasonAcceptFailures
			}

			select {
			case <-worker.ctx.Done():
				return ReasonStopped
			case <-s.clock.After(s.acceptBackoff):
			}
			continue
		}
		acceptFailures = 0

		if err := s.serveConnection(worker, connection); err != nil {
			if worker.ctx.Err() != nil {
				return ReasonStopped
			}

			processingFailures++
			s.metrics.processingFailures.Inc()
			s.logger.Warn("debug socket request failed",
				"path", worker.path,
				"failures", processingFailures,
				"peer_closed", netutil.IsExpectedCloseError(err),
				"timeout", netutil.IsTimeout(err),
				"error", err,
			)
			if processingFailures > maxProcessingFailures {
				s.logger.Error("debug socket service broken",
					"path", worker.path,
					"failures", processingFailures,
				)
				return ReasonBroken
			}
			continue
		}
		processingFailures = 0
	}
}
