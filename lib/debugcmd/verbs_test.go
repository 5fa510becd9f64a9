// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package debugcmd

import (
	"expvar"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"

	"github.com/bureau-foundation/debugsock/lib/clock"
	"github.com/bureau-foundation/debugsock/lib/version"
)

func TestHelpListsEveryVerb(t *testing.T) {
	d, _ := newTestDispatcher(t, Options{})
	help := execute(t, d, "help")
	for _, v := range verbs {
		if !strings.Contains(help, v.usage) {
			t.Errorf("help missing %q:\n%s", v.usage, help)
		}
	}
	if !strings.Contains(help, "pid") {
		t.Errorf("help should list expression bindings:\n%s", help)
	}

	disabled, _ := newTestDispatcher(t, Options{Eval: EvalDisabled})
	if strings.Contains(execute(t, disabled, "help"), "eval <expr>") {
		t.Error("help should not advertise eval when it is disabled")
	}
}

func TestGoroutinesVerb(t *testing.T) {
	fake := clock.Fake(time.Date(2026, 10, 16, 12, 0, 0, 0, time.UTC))
	d, _ := newTestDispatcher(t, Options{Clock: fake, Program: "/usr/local/bin/host"})

	for _, name := range []string{"goroutines", "threads", "backtrace"} {
		output := execute(t, d, name)
		lines := strings.Split(output, "\n")
		if lines[0] != "2026-10-16T12:00:00Z /usr/local/bin/host" {
			t.Errorf("%s header = %q", name, lines[0])
		}
		if !strings.Contains(output, "pid=21 goroutine.id=") {
			t.Errorf("%s output missing goroutine block:\n%s", name, output)
		}
		if !strings.Contains(output, "goroutine.status=running") {
			t.Errorf("%s output missing the running goroutine:\n%s", name, output)
		}
	}
}

func TestMemStatsAndGC(t *testing.T) {
	d, _ := newTestDispatcher(t, Options{})
	memstats := execute(t, d, "memstats")
	for _, want := range []string{"heap_alloc: ", "num_gc: ", "sys: "} {
		if !strings.Contains(memstats, want) {
			t.Errorf("memstats missing %q:\n%s", want, memstats)
		}
	}
	gc := execute(t, d, "gc")
	if !strings.Contains(gc, "heap_alloc_before: ") || !strings.Contains(gc, "heap_alloc_after: ") {
		t.Errorf("gc output = %q", gc)
	}
}

func TestVarsVerb(t *testing.T) {
	expvar.NewString("debugcmd_test_greeting").Set("hello")
	d, _ := newTestDispatcher(t, Options{})

	if got := execute(t, d, "vars debugcmd_test_greeting"); got != `"hello"` {
		t.Errorf("vars debugcmd_test_greeting = %q", got)
	}
	all := execute(t, d, "vars")
	if !strings.Contains(all, `debugcmd_test_greeting: "hello"`) {
		t.Errorf("vars listing missing test variable:\n%s", all)
	}
	// expvar always publishes cmdline and memstats.
	if !strings.Contains(all, "cmdline: ") {
		t.Errorf("vars listing missing cmdline:\n%s", all)
	}
	if got := execute(t, d, "vars no_such_variable"); !strings.HasPrefix(got, "error: command error: ") {
		t.Errorf("missing variable = %q", got)
	}
}

func TestProfileVerb(t *testing.T) {
	d, _ := newTestDispatcher(t, Options{})

	if got := execute(t, d, "profile goroutine"); !strings.HasPrefix(got, "goroutine profile: total ") {
		t.Errorf("profile goroutine = %q", firstLine(got))
	}
	if got := execute(t, d, "profile goroutine 2"); !strings.HasPrefix(got, "goroutine ") {
		t.Errorf("profile goroutine 2 = %q", firstLine(got))
	}

	for _, command := range []string{"profile", "profile nope", "profile heap zero", "profile heap 1 2"} {
		if got := execute(t, d, command); !strings.HasPrefix(got, "error: command error: ") {
			t.Errorf("%q = %q, want command error", command, firstLine(got))
		}
	}
}

func TestMetricsVerb(t *testing.T) {
	registry := prometheus.NewRegistry()
	counter := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "debugcmd_test_requests_total",
		Help: "Requests seen by the test.",
	})
	registry.MustRegister(counter)
	counter.Add(3)

	d, _ := newTestDispatcher(t, Options{Gatherer: registry})
	got := execute(t, d, "metrics")
	if !strings.Contains(got, "# TYPE debugcmd_test_requests_total counter") {
		t.Errorf("metrics missing TYPE line:\n%s", got)
	}
	if !strings.Contains(got, "debugcmd_test_requests_total 3") {
		t.Errorf("metrics missing sample:\n%s", got)
	}

	none, _ := newTestDispatcher(t, Options{})
	if got := execute(t, none, "metrics"); !strings.HasPrefix(got, "error: command error: ") {
		t.Errorf("metrics without registry = %q", got)
	}
}

func TestMetricsVerbPartialGather(t *testing.T) {
	gatherer := prometheus.GathererFunc(func() ([]*dto.MetricFamily, error) {
		name := "debugcmd_partial"
		help := "Partially gathered."
		kind := dto.MetricType_GAUGE
		value := 1.0
		return []*dto.MetricFamily{{
			Name:   &name,
			Help:   &help,
			Type:   &kind,
			Metric: []*dto.Metric{{Gauge: &dto.Gauge{Value: &value}}},
		}}, errStub("collector failed")
	})
	d, _ := newTestDispatcher(t, Options{Gatherer: gatherer})
	got := execute(t, d, "metrics")
	if !strings.Contains(got, "debugcmd_partial 1") || !strings.Contains(got, "# gather error: collector failed") {
		t.Errorf("partial gather output:\n%s", got)
	}
}

type errStub string

func (e errStub) Error() string { return string(e) }

func TestVersionVerb(t *testing.T) {
	d, _ := newTestDispatcher(t, Options{})
	if got := execute(t, d, "version"); !strings.HasPrefix(got, version.Version) {
		t.Errorf("version = %q, want prefix %q", got, version.Version)
	}
}

func firstLine(text string) string {
	line, _, _ := strings.Cut(text, "\n")
	return line
}
