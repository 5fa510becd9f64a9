// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package debugsock

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type metrics struct {
	connections        prometheus.Counter
	acceptFailures     prometheus.Counter
	processingFailures prometheus.Counter
	exits              *prometheus.CounterVec
	running            prometheus.Gauge
	duration           prometheus.Histogram
}

// newMetrics creates the worker's collectors and registers them with
// registerer. A nil registerer leaves them unregistered.
func newMetrics(registerer prometheus.Registerer) *metrics {
	factory := promauto.With(registerer)
	return &metrics{
		connections: factory.NewCounter(prometheus.CounterOpts{
			Name: "debugsock_connections_total",
			Help: "Connections accepted on the debug socket.",
		}),
		acceptFailures: factory.NewCounter(prometheus.CounterOpts{
			Name: "debugsock_accept_failures_total",
			Help: "Failed accepts on the debug socket.",
		}),
		processingFailures: factory.NewCounter(prometheus.CounterOpts{
			Name: "debugsock_processing_failures_total",
			Help: "Debug socket requests that failed to complete.",
		}),
		exits: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "debugsock_worker_exits_total",
			Help: "Debug socket worker exits by reason.",
		}, []string{"reason"}),
		running: factory.NewGauge(prometheus.GaugeOpts{
			Name: "debugsock_worker_running",
			Help: "1 while this process owns a running debug socket worker.",
		}),
		duration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "debugsock_request_duration_seconds",
			Help:    "Time from accepting a debug command to writing its response.",
			Buckets: prometheus.ExponentialBuckets(0.0005, 4, 8),
		}),
	}
}
