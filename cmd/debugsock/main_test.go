// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/bureau-foundation/debugsock/lib/audit"
	"github.com/bureau-foundation/debugsock/lib/debugcmd"
	"github.com/bureau-foundation/debugsock/lib/debugsock"
	"github.com/bureau-foundation/debugsock/lib/testutil"
)

func startHost(t *testing.T) string {
	t.Helper()
	service := debugsock.New(debugsock.Options{})
	worker, err := service.Start(filepath.Join(testutil.SocketDir(t), "debug.sock"))
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	t.Cleanup(service.Stop)
	return worker.Path()
}

func TestSendArguments(t *testing.T) {
	path := startHost(t)
	var stdout bytes.Buffer
	if err := run([]string{"send", "--socket", path, "2", "+", "2"}, strings.NewReader(""), &stdout); err != nil {
		t.Fatalf("run: %v", err)
	}
	if stdout.String() != "4\n" {
		t.Errorf("stdout = %q, want %q", stdout.String(), "4\n")
	}
}

func TestSendStdin(t *testing.T) {
	path := startHost(t)
	var stdout bytes.Buffer
	if err := run([]string{"send", "--socket", path}, strings.NewReader("6 * 7\n"), &stdout); err != nil {
		t.Fatalf("run: %v", err)
	}
	if stdout.String() != "42\n" {
		t.Errorf("stdout = %q, want %q", stdout.String(), "42\n")
	}
}

func TestSendCommandWordsAreNotFlags(t *testing.T) {
	path := startHost(t)
	var stdout bytes.Buffer
	if err := run([]string{"send", "--socket", path, "eval", "-1", "-", "1"}, strings.NewReader(""), &stdout); err != nil {
		t.Fatalf("run: %v", err)
	}
	if stdout.String() != "-2\n" {
		t.Errorf("stdout = %q, want %q", stdout.String(), "-2\n")
	}
}

func TestSendErrorResponse(t *testing.T) {
	path := startHost(t)
	var stdout bytes.Buffer
	err := run([]string{"send", "--socket", path, "2", "+"}, strings.NewReader(""), &stdout)
	if !errors.Is(err, errCommandFailed) {
		t.Fatalf("run error = %v, want errCommandFailed", err)
	}
	if !strings.HasPrefix(stdout.String(), "error: syntax error: ") {
		t.Errorf("stdout = %q", stdout.String())
	}
}

func TestSendWithConfig(t *testing.T) {
	path := startHost(t)
	configPath := filepath.Join(t.TempDir(), "debugsock.yaml")
	if err := os.WriteFile(configPath, []byte("socket: "+path+"\n"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	var stdout bytes.Buffer
	if err := run([]string{"send", "--config", configPath, "1 + 1"}, strings.NewReader(""), &stdout); err != nil {
		t.Fatalf("run: %v", err)
	}
	if stdout.String() != "2\n" {
		t.Errorf("stdout = %q", stdout.String())
	}
}

func TestSendRequiresSocket(t *testing.T) {
	if err := run([]string{"send", "help"}, strings.NewReader(""), &bytes.Buffer{}); err == nil {
		t.Fatal("send without --socket should fail")
	}
}

func TestSendEmptyCommand(t *testing.T) {
	path := startHost(t)
	if err := run([]string{"send", "--socket", path}, strings.NewReader("\n"), &bytes.Buffer{}); err == nil {
		t.Fatal("empty command should be rejected before connecting")
	}
}

func TestUnknownSubcommand(t *testing.T) {
	if err := run([]string{"frobnicate"}, strings.NewReader(""), &bytes.Buffer{}); err == nil {
		t.Fatal("unknown subcommand should fail")
	}
}

func writeAuditLog(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "audit.cbor")
	log, err := audit.Open(path)
	if err != nil {
		t.Fatalf("audit.Open: %v", err)
	}
	defer log.Close()
	received := time.Date(2026, 10, 16, 12, 0, 0, 0, time.UTC)
	for _, command := range []string{"2 + 2", "goroutines"} {
		if err := log.Append(debugcmd.Request{ID: "id-" + command, Endpoint: "/run/app.sock", Command: command, Received: received}); err != nil {
			t.Fatalf("Append: %v", err)
		}
	}
	return path
}

func TestAuditText(t *testing.T) {
	path := writeAuditLog(t)
	var stdout bytes.Buffer
	if err := run([]string{"audit", path}, nil, &stdout); err != nil {
		t.Fatalf("run: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(stdout.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("got %d lines:\n%s", len(lines), stdout.String())
	}
	if !strings.HasPrefix(lines[0], "2026-10-16T12:00:00Z id-2 + 2 pid=") || !strings.HasSuffix(lines[0], `"2 + 2"`) {
		t.Errorf("first line = %q", lines[0])
	}
	if !strings.Contains(lines[0], "digest="+audit.Digest("2 + 2")[:12]) {
		t.Errorf("first line missing digest prefix: %q", lines[0])
	}
}

func TestAuditJSON(t *testing.T) {
	path := writeAuditLog(t)
	var stdout bytes.Buffer
	if err := run([]string{"audit", "--json", path}, nil, &stdout); err != nil {
		t.Fatalf("run: %v", err)
	}
	decoder := json.NewDecoder(&stdout)
	var records []audit.Record
	for decoder.More() {
		var record audit.Record
		if err := decoder.Decode(&record); err != nil {
			t.Fatalf("decoding JSON output: %v", err)
		}
		records = append(records, record)
	}
	if len(records) != 2 || records[1].Command != "goroutines" {
		t.Errorf("records = %+v", records)
	}
}

func TestAuditDiagnostic(t *testing.T) {
	path := writeAuditLog(t)
	var stdout bytes.Buffer
	if err := run([]string{"audit", "--diag", path}, nil, &stdout); err != nil {
		t.Fatalf("run: %v", err)
	}
	output := stdout.String()
	if strings.Count(output, "\n") != 2 {
		t.Errorf("expected one diagnostic line per record:\n%s", output)
	}
	if !strings.Contains(output, `"command": "2 + 2"`) {
		t.Errorf("diagnostic output missing command:\n%s", output)
	}
}

func TestAuditUsage(t *testing.T) {
	if err := run([]string{"audit"}, nil, &bytes.Buffer{}); err == nil {
		t.Error("audit without a file should fail")
	}
	path := writeAuditLog(t)
	if err := run([]string{"audit", "--json", "--diag", path}, nil, &bytes.Buffer{}); err == nil {
		t.Error("--json with --diag should fail")
	}
}
