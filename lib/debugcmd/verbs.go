// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package debugcmd

import (
	"bytes"
	"context"
	"expvar"
	"fmt"
	"runtime"
	"runtime/debug"
	"runtime/pprof"
	"strconv"
	"strings"

	"github.com/prometheus/common/expfmt"

	"github.com/bureau-foundation/debugsock/lib/goroutinedump"
	"github.com/bureau-foundation/debugsock/lib/version"
)

type verb struct {
	name    string
	aliases []string
	usage   string
	summary string
	// takesArguments is false for verbs whose usage is the bare name.
	// Such a verb followed by more text is not the verb.
	takesArguments bool
	run            func(ctx context.Context, d *Dispatcher, arguments string) (string, error)
}

// verbs is the complete command vocabulary, in help order. "eval" is
// routed by the dispatcher itself and listed here only for help.
// Populated in init because runHelp reads it.
var verbs []verb

var verbIndex = make(map[string]*verb)

func init() {
	verbs = []verb{
		{name: "help", usage: "help", summary: "list commands", run: runHelp},
		{name: "goroutines", aliases: []string{"threads", "backtrace"}, usage: "goroutines", summary: "dump every goroutine's status and stack", run: runGoroutines},
		{name: "memstats", usage: "memstats", summary: "show runtime memory statistics", run: runMemStats},
		{name: "gc", usage: "gc", summary: "force a garbage collection and return memory to the OS", run: runGC},
		{name: "vars", takesArguments: true, usage: "vars [name]", summary: "show published expvar variables", run: runVars},
		{name: "profile", takesArguments: true, usage: "profile <name> [debug]", summary: "write a runtime/pprof profile in text form", run: runProfile},
		{name: "metrics", usage: "metrics", summary: "show Prometheus metrics in text exposition format", run: runMetrics},
		{name: "version", usage: "version", summary: "show build information", run: runVersion},
		{name: "eval", takesArguments: true, usage: "eval <expr>", summary: "evaluate a Go constant expression"},
	}
	for i := range verbs {
		v := &verbs[i]
		if v.run == nil {
			continue
		}
		verbIndex[v.name] = v
		for _, alias := range v.aliases {
			verbIndex[alias] = v
		}
	}
}

func lookupVerb(name string) (*verb, bool) {
	v, ok := verbIndex[name]
	return v, ok
}

// isVerbName reports whether name is a verb, an alias, or "eval".
func isVerbName(name string) bool {
	_, ok := verbIndex[name]
	return ok || name == "eval"
}

func runHelp(_ context.Context, d *Dispatcher, _ string) (string, error) {
	var builder strings.Builder
	builder.WriteString("commands:")
	for _, v := range verbs {
		if v.name == "eval" && d.eval == EvalDisabled {
			continue
		}
		fmt.Fprintf(&builder, "\n  %-24s %s", v.usage, v.summary)
		if len(v.aliases) > 0 {
			fmt.Fprintf(&builder, " (also: %s)", strings.Join(v.aliases, ", "))
		}
	}
	if d.eval == EvalBare {
		builder.WriteString("\nany other text is evaluated as a Go constant expression")
	}
	if d.eval != EvalDisabled {
		fmt.Fprintf(&builder, "\nexpression bindings: %s", strings.Join(d.Bindings(), ", "))
	}
	return builder.String(), nil
}

func runGoroutines(_ context.Context, d *Dispatcher, _ string) (string, error) {
	snapshot, err := goroutinedump.Capture()
	if err != nil {
		return "", fmt.Errorf("capturing goroutines: %w", err)
	}
	return snapshot.Render(d.clock.Now(), d.pid(), d.program), nil
}

func runMemStats(_ context.Context, _ *Dispatcher, _ string) (string, error) {
	var stats runtime.MemStats
	runtime.ReadMemStats(&stats)
	return renderFields([]field{
		{"alloc", stats.Alloc},
		{"total_alloc", stats.TotalAlloc},
		{"sys", stats.Sys},
		{"mallocs", stats.Mallocs},
		{"frees", stats.Frees},
		{"heap_alloc", stats.HeapAlloc},
		{"heap_sys", stats.HeapSys},
		{"heap_idle", stats.HeapIdle},
		{"heap_inuse", stats.HeapInuse},
		{"heap_released", stats.HeapReleased},
		{"heap_objects", stats.HeapObjects},
		{"stack_inuse", stats.StackInuse},
		{"next_gc", stats.NextGC},
		{"num_gc", uint64(stats.NumGC)},
		{"pause_total_ns", stats.PauseTotalNs},
	}), nil
}

func runGC(_ context.Context, _ *Dispatcher, _ string) (string, error) {
	var before, after runtime.MemStats
	runtime.ReadMemStats(&before)
	debug.FreeOSMemory()
	runtime.ReadMemStats(&after)
	return renderFields([]field{
		{"heap_alloc_before", before.HeapAlloc},
		{"heap_alloc_after", after.HeapAlloc},
		{"heap_released", after.HeapReleased},
		{"num_gc", uint64(after.NumGC)},
	}), nil
}

type field struct {
	name  string
	value uint64
}

func renderFields(fields []field) string {
	lines := make([]string, len(fields))
	for i, f := range fields {
		lines[i] = f.name + ": " + strconv.FormatUint(f.value, 10)
	}
	return strings.Join(lines, "\n")
}

func runVars(_ context.Context, _ *Dispatcher, arguments string) (string, error) {
	if arguments != "" {
		variable := expvar.Get(arguments)
		if variable == nil {
			return "", fmt.Errorf("no expvar variable named %q", arguments)
		}
		return variable.String(), nil
	}
	var lines []string
	expvar.Do(func(kv expvar.KeyValue) {
		lines = append(lines, kv.Key+": "+kv.Value.String())
	})
	if len(lines) == 0 {
		return "no variables published", nil
	}
	return strings.Join(lines, "\n"), nil
}

func runProfile(_ context.Context, _ *Dispatcher, arguments string) (string, error) {
	fields := strings.Fields(arguments)
	if len(fields) == 0 || len(fields) > 2 {
		return "", fmt.Errorf("usage: profile <name> [debug]")
	}
	profile := pprof.Lookup(fields[0])
	if profile == nil {
		var names []string
		for _, p := range pprof.Profiles() {
			names = append(names, p.Name())
		}
		return "", fmt.Errorf("no profile named %q (available: %s)", fields[0], strings.Join(names, ", "))
	}
	debugLevel := 1
	if len(fields) == 2 {
		level, err := strconv.Atoi(fields[1])
		if err != nil || level < 1 {
			return "", fmt.Errorf("profile debug level must be a positive integer, got %q", fields[1])
		}
		debugLevel = level
	}
	var buffer bytes.Buffer
	if err := profile.WriteTo(&buffer, debugLevel); err != nil {
		return "", fmt.Errorf("writing %s profile: %w", fields[0], err)
	}
	return strings.TrimRight(buffer.String(), "\n"), nil
}

func runMetrics(_ context.Context, d *Dispatcher, _ string) (string, error) {
	if d.gatherer == nil {
		return "", fmt.Errorf("no metrics registry configured")
	}
	families, err := d.gatherer.Gather()
	if err != nil && len(families) == 0 {
		return "", fmt.Errorf("gathering metrics: %w", err)
	}
	var buffer bytes.Buffer
	for _, family := range families {
		if _, err := expfmt.MetricFamilyToText(&buffer, family); err != nil {
			return "", fmt.Errorf("rendering metric %s: %w", family.GetName(), err)
		}
	}
	if err != nil {
		// Partial gather: show what was collected, then the error.
		fmt.Fprintf(&buffer, "# gather error: %v\n", err)
	}
	return strings.TrimRight(buffer.String(), "\n"), nil
}

func runVersion(_ context.Context, _ *Dispatcher, _ string) (string, error) {
	return version.Full(), nil
}
