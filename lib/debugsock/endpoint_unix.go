// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

//go:build unix

package debugsock

import (
	"errors"
	"fmt"
	"io/fs"
	"net"
	"os"
	"sync"
	"time"

	"golang.org/x/sys/unix"
)

// umaskMu serializes umask changes. The umask is process-wide, so two
// concurrent Starts must not interleave their set/restore pairs.
var umaskMu sync.Mutex

// socketUmask makes bind(2) create the socket file as 0600.
const socketUmask = 0o177

// staleProbeTimeout bounds the dial used to tell a live socket from a
// stale one.
const staleProbeTimeout = time.Second

// listenUnix creates the socket at path with mode 0600.
func listenUnix(path string) (net.Listener, error) {
	if err := removeStaleSocket(path); err != nil {
		return nil, err
	}

	listener, err := listenWithUmask(path)
	if err != nil {
		return nil, err
	}

	// The umask already produced 0600; chmod covers filesystems that
	// ignore it for sockets.
	if err := os.Chmod(path, 0o600); err != nil {
		listener.Close()
		return nil, fmt.Errorf("restricting permissions on %s: %w", path, err)
	}
	return listener, nil
}

func listenWithUmask(path string) (net.Listener, error) {
	umaskMu.Lock()
	defer umaskMu.Unlock()

	previous := unix.Umask(socketUmask)
	defer unix.Umask(previous)

	return net.Listen("unix", path)
}

// removeStaleSocket clears a socket file left by a process that is no
// longer listening. A socket someone answers on is ErrEndpointInUse;
// anything that is not a socket is left alone and reported.
func removeStaleSocket(path string) error {
	info, err := os.Lstat(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("checking %s: %w", path, err)
	}
	if info.Mode().Type() != fs.ModeSocket {
		return fmt.Errorf("%s exists and is not a socket", path)
	}

	connection, err := net.DialTimeout("unix", path, staleProbeTimeout)
	if err == nil {
		connection.Close()
		return fmt.Errorf("%w: %s", ErrEndpointInUse, path)
	}

	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("removing stale socket %s: %w", path, err)
	}
	return nil
}
