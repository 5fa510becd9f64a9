// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package config loads the YAML configuration of a debug socket host.
//
// Configuration is loaded from a single file specified by either the
// DEBUGSOCK_CONFIG environment variable (via [Load]) or a --config
// flag (via [LoadFile]). There are no fallbacks and no automatic file
// search. Environment variables never override values in the file.
//
// The file may contain development and production sections that
// override base values when [Config].Environment matches. Production
// is stricter by default: bare expression evaluation is turned off
// unless the file asks for it.
//
// ${HOME}, ${XDG_RUNTIME_DIR}, and ${VAR:-default} patterns are
// expanded in the socket and audit_log paths.
//
// [Config.ServiceOptions] converts a loaded file into
// [debugsock.Options].
package config
