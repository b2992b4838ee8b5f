// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package codec is the single CBOR configuration for treesync. The
// socket protocol in lib/remote and the delta journal in lib/journal
// both encode through it; no other package imports fxamacker/cbor.
//
// Struct fields are named by their json tags, which the CBOR library
// honors, so wire types in lib/schema carry one set of tags.
package codec
