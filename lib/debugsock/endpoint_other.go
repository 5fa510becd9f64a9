// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

//go:build !unix

package debugsock

import "net"

func listenUnix(string) (net.Listener, error) {
	return nil, ErrUnsupported
}
