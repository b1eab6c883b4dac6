// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package config provides configuration loading for rendezvous
// components.
//
// Configuration is loaded from a single file specified by either the
// RENDEZVOUS_CONFIG environment variable (via [Load]) or a --config
// flag (via [LoadFile]). Without either, commands run on [Default].
// There is no automatic file search.
//
// Files ending in .json or .jsonc are read as JSON with comments and
// trailing commas; everything else is YAML. Both formats share the
// same field names.
//
// The file may contain development and production sections that
// override base values when [Config].Environment matches. Production
// runs the service as an independent daemon unless the file says
// otherwise.
//
// Variable expansion is performed on path fields after loading:
// ${HOME}, ${XDG_RUNTIME_DIR}, ${RENDEZVOUS_STATE_DIR}, and
// ${VAR:-default} patterns are expanded.
//
// This package depends on no other rendezvous packages.
package config
