// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package version reports which build of treesync is running.
//
// Release builds stamp [Version], [GitCommit], [GitDirty] and
// [BuildTime] with -ldflags -X. Plain "go build" and "go install"
// builds leave them unset; [Current] then falls back to the VCS
// stamp the Go toolchain embeds in the binary. Every treesync binary
// answers --version with [Print], so a mirror and its authority can be
// compared at a glance when a session diverges.
package version
