// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package goroutinedump

import (
	"bufio"
	"bytes"
	"fmt"
	"runtime"
	"strconv"
	"strings"
	"time"
)

// Frame is one call site in a goroutine's stack.
type Frame struct {
	// Function is the fully qualified function name, without the
	// argument list the runtime prints after it.
	Function string

	File string
	Line int
}

// String renders the frame as "file:line function".
func (f Frame) String() string {
	return fmt.Sprintf("%s:%d %s", f.File, f.Line, f.Function)
}

// Goroutine is one parsed entry of a runtime stack dump.
type Goroutine struct {
	ID     uint64
	Status Status

	// Wait is how long the goroutine has been blocked, as printed by
	// the runtime ("3 minutes"). Empty when it has not been blocked
	// for at least a minute.
	Wait string

	// Locked is true when the goroutine is locked to its OS thread.
	Locked bool

	// Frames is the call stack, innermost first. Empty when the
	// runtime could not walk the stack (for example, a goroutine
	// running on another thread).
	Frames []Frame

	// CreatedBy is the go statement that started the goroutine. Nil
	// for the main goroutine.
	CreatedBy *Frame

	// Creator is the ID of the goroutine that executed the go
	// statement, or zero when the runtime did not print it.
	Creator uint64
}

// Snapshot is every user goroutine live at the moment of capture.
type Snapshot struct {
	Goroutines []Goroutine

	// Truncated is set when the dump exceeded maxDumpBytes and the
	// tail was cut off.
	Truncated bool
}

const (
	initialDumpBytes = 64 << 10
	maxDumpBytes     = 64 << 20
)

// Capture takes a stack dump of all goroutines and parses it.
func Capture() (Snapshot, error) {
	dump, truncated := stackDump()
	snapshot, err := Parse(dump)
	if err != nil {
		return Snapshot{}, err
	}
	snapshot.Truncated = truncated
	return snapshot, nil
}

// stackDump returns runtime.Stack(all=true), growing the buffer until
// the dump fits or maxDumpBytes is reached.
func stackDump() ([]byte, bool) {
	size := initialDumpBytes
	for {
		buffer := make([]byte, size)
		n := runtime.Stack(buffer, true)
		if n < size {
			return buffer[:n], false
		}
		if size >= maxDumpBytes {
			return buffer[:n], true
		}
		size *= 2
	}
}

// Parse parses the text format written by runtime.Stack and by the
// runtime's crash traceback.
func Parse(dump []byte) (Snapshot, error) {
	var snapshot Snapshot
	var current *Goroutine

	// pendingFunction holds a function line waiting for its
	// "\tfile:line" location line. pendingCreator is set when that
	// function line was a "created by" line.
	var pendingFunction string
	var pendingCreator bool

	finish := func() {
		if current != nil {
			snapshot.Goroutines = append(snapshot.Goroutines, *current)
			current = nil
		}
		pendingFunction = ""
		pendingCreator = false
	}

	scanner := bufio.NewScanner(bytes.NewReader(dump))
	scanner.Buffer(make([]byte, 0, 64<<10), 1<<20)
	lineNumber := 0
	for scanner.Scan() {
		lineNumber++
		line := scanner.Text()

		switch {
		case line == "":
			finish()

		case strings.HasPrefix(line, "goroutine ") && strings.HasSuffix(line, ":"):
			finish()
			goroutine, err := parseHeader(line)
			if err != nil {
				return Snapshot{}, fmt.Errorf("line %d: %w", lineNumber, err)
			}
			current = &goroutine

		case current == nil:
			// Preamble such as a panic message before the first header.

		case strings.HasPrefix(line, "\t"):
			if pendingFunction == "" {
				// "goroutine running on other thread; stack unavailable"
				continue
			}
			file, lineNo := parseLocation(line)
			frame := Frame{Function: pendingFunction, File: file, Line: lineNo}
			if pendingCreator {
				current.CreatedBy = &frame
			} else {
				current.Frames = append(current.Frames, frame)
			}
			pendingFunction = ""
			pendingCreator = false

		case strings.HasPrefix(line, "created by "):
			function, creator := parseCreatedBy(strings.TrimPrefix(line, "created by "))
			pendingFunction = function
			pendingCreator = true
			current.Creator = creator

		case strings.HasPrefix(line, "..."):
			// "...additional frames elided..."

		default:
			pendingFunction = trimArguments(line)
			pendingCreator = false
		}
	}
	if err := scanner.Err(); err != nil {
		return Snapshot{}, fmt.Errorf("reading stack dump: %w", err)
	}
	finish()
	return snapshot, nil
}

// parseHeader parses "goroutine 7 [chan receive, 3 minutes, locked to thread]:".
func parseHeader(line string) (Goroutine, error) {
	rest := strings.TrimSuffix(strings.TrimPrefix(line, "goroutine "), ":")

	idText, bracketed, found := strings.Cut(rest, " ")
	if !found {
		return Goroutine{}, fmt.Errorf("malformed goroutine header %q", line)
	}
	id, err := strconv.ParseUint(idText, 10, 64)
	if err != nil {
		return Goroutine{}, fmt.Errorf("malformed goroutine id in %q: %w", line, err)
	}

	// Newer runtimes may print extra fields (gp=, m=) before the
	// bracketed state.
	open := strings.Index(bracketed, "[")
	closing := strings.LastIndex(bracketed, "]")
	if open < 0 || closing < open {
		return Goroutine{}, fmt.Errorf("missing status in goroutine header %q", line)
	}

	goroutine := Goroutine{ID: id}
	parts := strings.Split(bracketed[open+1:closing], ", ")
	goroutine.Status = Status(parts[0])
	for _, part := range parts[1:] {
		switch {
		case part == "locked to thread":
			goroutine.Locked = true
		case strings.HasSuffix(part, " minutes") || strings.HasSuffix(part, " minute"):
			goroutine.Wait = part
		}
	}
	return goroutine, nil
}

// parseLocation parses "\t/path/to/file.go:123 +0x1d".
func parseLocation(line string) (string, int) {
	location := strings.TrimSpace(line)
	if space := strings.LastIndex(location, " +0x"); space >= 0 {
		location = location[:space]
	}
	colon := strings.LastIndex(location, ":")
	if colon < 0 {
		return location, 0
	}
	lineNumber, err := strconv.Atoi(location[colon+1:])
	if err != nil {
		return location, 0
	}
	return location[:colon], lineNumber
}

// parseCreatedBy parses "main.main in goroutine 1" (or just
// "main.main" from older runtimes).
func parseCreatedBy(text string) (string, uint64) {
	function, goroutineText, found := strings.Cut(text, " in goroutine ")
	if !found {
		return text, 0
	}
	creator, err := strconv.ParseUint(goroutineText, 10, 64)
	if err != nil {
		return function, 0
	}
	return function, creator
}

// trimArguments strips the argument list from "pkg.(*T).Method(0x1, ...)".
func trimArguments(line string) string {
	if !strings.HasSuffix(line, ")") {
		return line
	}
	if open := strings.LastIndex(line, "("); open > 0 {
		return line[:open]
	}
	return line
}

// Render formats the snapshot for operators. now is converted to UTC;
// pid and program identify the process in the header and each block.
func (s Snapshot) Render(now time.Time, pid int, program string) string {
	stamp := now.UTC().Format(time.RFC3339)

	var builder strings.Builder
	fmt.Fprintf(&builder, "%s %s\n", stamp, program)
	for i, goroutine := range s.Goroutines {
		if i > 0 {
			builder.WriteString("\n\n")
		}
		fmt.Fprintf(&builder, "%s pid=%d goroutine.id=%d goroutine.status=%s",
			stamp, pid, goroutine.ID, goroutine.Status)
		if goroutine.Wait != "" {
			fmt.Fprintf(&builder, " goroutine.wait=%s", goroutine.Wait)
		}
		if goroutine.Locked {
			builder.WriteString(" goroutine.locked=true")
		}
		for _, frame := range goroutine.Frames {
			builder.WriteByte('\n')
			builder.WriteString(frame.String())
		}
		if goroutine.CreatedBy != nil {
			fmt.Fprintf(&builder, "\n%s:%d created by %s", goroutine.CreatedBy.File, goroutine.CreatedBy.Line, goroutine.CreatedBy.Function)
			if goroutine.Creator != 0 {
				fmt.Fprintf(&builder, " in goroutine %d", goroutine.Creator)
			}
		}
	}
	if s.Truncated {
		builder.WriteString("\n\n(stack dump truncated)")
	}
	return builder.String()
}
