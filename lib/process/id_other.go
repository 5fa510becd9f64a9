// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

//go:build !unix

package process

import "os"

// ID returns the calling process's pid.
func ID() int {
	return os.Getpid()
}
