// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package process provides process identity and binary entrypoint
// helpers.
//
//   - ID reports the identity used to tag debug socket ownership. A
//     forked child has a different ID from the parent whose memory it
//     inherited, which is how lib/debugsock tells the two apart.
//   - Fatal reports an unrecoverable error to stderr before the
//     structured logger exists, and exits.
package process
