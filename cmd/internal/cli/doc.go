// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package cli holds what the treesync binaries share: the flags every
// binary accepts, logger construction, categorized exit errors, and
// terminal probing.
package cli
