// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package audit

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/zeebo/blake3"

	"github.com/bureau-foundation/debugsock/lib/codec"
	"github.com/bureau-foundation/debugsock/lib/debugcmd"
	"github.com/bureau-foundation/debugsock/lib/process"
)

// Record is one audited command.
type Record struct {
	ID       string    `cbor:"id" json:"id"`
	Time     time.Time `cbor:"time" json:"time"`
	PID      int       `cbor:"pid" json:"pid"`
	Endpoint string    `cbor:"endpoint" json:"endpoint"`
	Command  string    `cbor:"command" json:"command"`

	// Digest is the hex BLAKE3-256 hash of Command.
	Digest string `cbor:"digest" json:"digest"`
}

// Digest returns the hex BLAKE3-256 hash of command.
func Digest(command string) string {
	sum := blake3.Sum256([]byte(command))
	return hex.EncodeToString(sum[:])
}

// Log appends records to a file. Safe for concurrent use.
type Log struct {
	mu   sync.Mutex
	file *os.File
	pid  func() int
}

// Open opens (creating if needed, mode 0600) the audit file at path for
// appending.
func Open(path string) (*Log, error) {
	file, err := os.OpenFile(path, os.O_WRONLY|os.O_APPEND|os.O_CREATE, 0o600)
	if err != nil {
		return nil, fmt.Errorf("opening audit log %s: %w", path, err)
	}
	return &Log{file: file, pid: process.ID}, nil
}

// Append writes one record for request.
func (l *Log) Append(request debugcmd.Request) error {
	record := Record{
		ID:       request.ID,
		Time:     request.Received.UTC(),
		PID:      l.pid(),
		Endpoint: request.Endpoint,
		Command:  request.Command,
		Digest:   Digest(request.Command),
	}
	data, err := codec.Marshal(record)
	if err != nil {
		return fmt.Errorf("encoding audit record: %w", err)
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if l.file == nil {
		return errors.New("audit log is closed")
	}
	// One Write per record so O_APPEND keeps records whole even with
	// several processes sharing the file.
	if _, err := l.file.Write(data); err != nil {
		return fmt.Errorf("writing audit record: %w", err)
	}
	return nil
}

// Hook returns an audit function that appends each request.
func (l *Log) Hook() debugcmd.AuditFunc {
	return func(_ context.Context, request debugcmd.Request) error {
		return l.Append(request)
	}
}

// Close flushes and closes the file. Later appends fail.
func (l *Log) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.file == nil {
		return nil
	}
	err := l.file.Close()
	l.file = nil
	return err
}

// Read decodes every record from r.
func Read(r io.Reader) ([]Record, error) {
	decoder := codec.NewDecoder(r)
	var records []Record
	for {
		var record Record
		if err := decoder.Decode(&record); err != nil {
			if errors.Is(err, io.EOF) {
				return records, nil
			}
			return records, fmt.Errorf("decoding audit record %d: %w", len(records)+1, err)
		}
		records = append(records, record)
	}
}
