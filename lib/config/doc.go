// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package config provides YAML configuration loading for treesync
// binaries.
//
// Configuration is loaded from a single file specified by either the
// TREESYNC_CONFIG environment variable or a --config flag. There is no
// file discovery. [Resolve] falls back to [Default] only when neither
// is given, so a binary run without configuration behaves the same on
// every machine.
//
// The file may contain environment-specific sections (development,
// staging, production) that override base values when
// [Config].Environment matches. Production without an explicit section
// journals every session with zstd compression.
//
// ${HOME}, ${TREESYNC_ROOT}, and ${VAR:-default} patterns are expanded
// in path fields after loading.
package config
