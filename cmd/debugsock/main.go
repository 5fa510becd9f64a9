// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/spf13/pflag"

	"github.com/bureau-foundation/debugsock/lib/audit"
	"github.com/bureau-foundation/debugsock/lib/codec"
	"github.com/bureau-foundation/debugsock/lib/config"
	"github.com/bureau-foundation/debugsock/lib/debugsock"
	"github.com/bureau-foundation/debugsock/lib/process"
	"github.com/bureau-foundation/debugsock/lib/version"
)

// errCommandFailed reports that the remote command produced an error
// response. The response itself has already been printed.
var errCommandFailed = errors.New("command failed")

func main() {
	if err := run(os.Args[1:], os.Stdin, os.Stdout); err != nil {
		if errors.Is(err, errCommandFailed) {
			os.Exit(2)
		}
		process.Fatal(err)
	}
}

func run(args []string, stdin io.Reader, stdout io.Writer) error {
	if len(args) == 0 {
		printUsage(os.Stderr)
		return errors.New("no subcommand given")
	}

	switch args[0] {
	case "--version", "version":
		version.Print("debugsock")
		return nil
	case "-h", "--help", "help":
		printUsage(stdout)
		return nil
	case "send":
		return runSend(args[1:], stdin, stdout)
	case "audit":
		return runAudit(args[1:], stdout)
	default:
		return fmt.Errorf("unknown subcommand %q (want send or audit)", args[0])
	}
}

func printUsage(w io.Writer) {
	fmt.Fprint(w, `debugsock: talk to a process's debug socket.

Usage:
  debugsock send [--socket PATH | --config FILE] [--timeout D] [command...]
  debugsock audit [--json | --diag] FILE
  debugsock --version

send reads the command from stdin when no command words are given.
`)
}

func runSend(args []string, stdin io.Reader, stdout io.Writer) error {
	var (
		socketPath string
		configPath string
		timeout    time.Duration
	)
	flagSet := pflag.NewFlagSet("debugsock send", pflag.ContinueOnError)
	flagSet.StringVar(&socketPath, "socket", "", "path of the debug socket")
	flagSet.StringVar(&configPath, "config", "", "read the socket path from this debugsock.yaml")
	flagSet.DurationVar(&timeout, "timeout", 10*time.Second, "give up after this long")
	// Commands like "profile heap 2" must not be taken for flags.
	flagSet.SetInterspersed(false)
	if err := flagSet.Parse(args); err != nil {
		return err
	}

	if socketPath == "" && configPath != "" {
		cfg, err := config.LoadFile(configPath)
		if err != nil {
			return err
		}
		socketPath = cfg.Socket
	}
	if socketPath == "" {
		return errors.New("--socket or --config is required")
	}

	command := strings.Join(flagSet.Args(), " ")
	if command == "" {
		data, err := io.ReadAll(stdin)
		if err != nil {
			return fmt.Errorf("reading command from stdin: %w", err)
		}
		command = strings.TrimRight(string(data), "\r\n")
	}
	if strings.TrimSpace(command) == "" {
		return errors.New("empty command")
	}

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	response, err := debugsock.Send(ctx, socketPath, command)
	if err != nil {
		return err
	}
	if response == "" {
		return fmt.Errorf("%s closed the connection without a response", socketPath)
	}
	if _, err := io.WriteString(stdout, response); err != nil {
		return err
	}
	if strings.HasPrefix(response, "error: ") {
		return errCommandFailed
	}
	return nil
}

func runAudit(args []string, stdout io.Writer) error {
	var asJSON, asDiagnostic bool
	flagSet := pflag.NewFlagSet("debugsock audit", pflag.ContinueOnError)
	flagSet.BoolVar(&asJSON, "json", false, "print one JSON object per record")
	flagSet.BoolVar(&asDiagnostic, "diag", false, "print CBOR diagnostic notation")
	if err := flagSet.Parse(args); err != nil {
		return err
	}
	if flagSet.NArg() != 1 {
		return errors.New("usage: debugsock audit [--json | --diag] FILE")
	}
	if asJSON && asDiagnostic {
		return errors.New("--json and --diag are mutually exclusive")
	}

	path := flagSet.Arg(0)
	if asDiagnostic {
		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("reading audit log: %w", err)
		}
		return printDiagnostic(stdout, data)
	}

	file, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("opening audit log: %w", err)
	}
	defer file.Close()

	records, readErr := audit.Read(file)
	if asJSON {
		encoder := json.NewEncoder(stdout)
		for _, record := range records {
			if err := encoder.Encode(record); err != nil {
				return err
			}
		}
	} else {
		for _, record := range records {
			fmt.Fprintf(stdout, "%s %s pid=%d endpoint=%s digest=%s %q\n",
				record.Time.Format(time.RFC3339Nano), record.ID, record.PID,
				record.Endpoint, record.Digest[:min(12, len(record.Digest))], record.Command)
		}
	}
	// Records before a damaged tail are still printed.
	return readErr
}

func printDiagnostic(w io.Writer, data []byte) error {
	for len(data) > 0 {
		notation, rest, err := codec.DiagnoseFirst(data)
		if err != nil {
			return fmt.Errorf("decoding audit record: %w", err)
		}
		fmt.Fprintln(w, notation)
		data = rest
	}
	return nil
}
