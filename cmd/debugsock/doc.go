// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// debugsock is the operator client for debug sockets embedded in
// running processes.
//
//	debugsock send --socket /run/app/debug.sock goroutines
//	echo '2 + 2' | debugsock send --socket /run/app/debug.sock
//	debugsock send --config /etc/app/debugsock.yaml memstats
//	debugsock audit /var/log/app/debug-audit.cbor
//
// "send" writes one command and prints the response. When no command
// words are given, the command is read from stdin. The exit status is
// 2 when the process answered with an error response.
//
// "audit" prints the records of an audit log file written by a host
// with audit_log configured.
package main
