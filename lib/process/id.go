// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

//go:build unix

package process

import "golang.org/x/sys/unix"

// ID returns the calling process's pid. It is read from the kernel on
// every call rather than cached, so a child created by fork(2) sees
// its own pid even though it inherited the parent's memory.
func ID() int {
	return unix.Getpid()
}
