// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package debugcmd interprets the one-line commands sent to a process's
// debug socket and renders their results as text.
//
// The grammar is a closed set of verbs (see [Dispatcher.Execute] and
// the "help" verb) plus optional evaluation of Go constant
// expressions. Expressions are type-checked in a fresh package scope
// per command that holds only the universe and the dispatcher's
// registered bindings ("pid", "num_goroutines", and so on), so command
// text cannot reach or modify any variable of the host process.
//
// Execute never panics and never returns an error: every failure,
// including a panic inside a verb, becomes a response of the form
//
//	error: <kind>: <message>
//
// An optional [AuditFunc] sees every request before it runs. Audit
// failures are logged and otherwise ignored.
package debugcmd
