// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package schema defines the wire types exchanged between a tree
// client and its remote authority. [Delta] carries one inbound change
// (the DeltaKind* constants enumerate them); [Command] carries one
// outbound user action (the CommandKind* constants). [NodeData] is the
// node payload used by inserts and updates, with its presentation
// [Cell], optional [LookupRow] for lookup-backed nodes and optional
// [PageData] for outline pages.
//
// Field names are tagged with json names. The CBOR codec in lib/codec
// reads the same tags, so one struct definition serves the socket
// protocol, recorded journals, and JSONC delta scripts.
//
// This package depends on no other treesync packages.
package schema
