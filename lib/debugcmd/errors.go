// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package debugcmd

import (
	"errors"
	"strings"
)

// Kind classifies a command failure in its rendered response.
type Kind string

const (
	KindSyntax         Kind = "syntax error"
	KindEvaluation     Kind = "evaluation error"
	KindUnknownCommand Kind = "unknown command"
	KindCommand        Kind = "command error"
	KindPanic          Kind = "panic"
)

// Error is a command failure. Render produces the response text.
type Error struct {
	Kind    Kind
	Message string

	// Stack is the goroutine stack at the point of a panic. Empty for
	// other kinds.
	Stack string
}

func newError(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

func (e *Error) Error() string {
	return string(e.Kind) + ": " + e.Message
}

// Render formats the failure as a response: "error: <kind>: <message>",
// followed by the stack for panics.
func (e *Error) Render() string {
	var builder strings.Builder
	builder.WriteString("error: ")
	builder.WriteString(e.Error())
	if e.Stack != "" {
		builder.WriteByte('\n')
		builder.WriteString(strings.TrimRight(e.Stack, "\n"))
	}
	return builder.String()
}

// asError classifies err. Errors that are not already *Error are
// reported as command errors.
func asError(err error) *Error {
	var failure *Error
	if errors.As(err, &failure) {
		return failure
	}
	return newError(KindCommand, err.Error())
}
