// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package codec encodes the audit log written by lib/audit and read
// back by "debugsock audit". Records are a CBOR sequence in
// deterministic encoding with nanosecond RFC 3339 timestamps.
package codec
