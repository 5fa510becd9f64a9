// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package audit records every command sent to a debug socket in an
// append-only file.
//
// The file is a sequence of CBOR records (Core Deterministic Encoding
// via lib/codec), one per command, with no framing beyond CBOR's own.
// Each record carries the request id, receive time, pid, endpoint,
// raw command text, and a BLAKE3-256 digest of the command so records
// can be matched against other logs without comparing full text.
//
// [Log.Hook] plugs the log into a debug command dispatcher. [Read]
// decodes a file for the "debugsock audit" command.
package audit
