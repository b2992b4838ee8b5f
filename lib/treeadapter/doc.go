// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package treeadapter synchronizes a lib/tree Tree with its remote
// authority.
//
// Outbound, an [Adapter] subscribes to the tree's events and reports
// the ones caused by local interaction as [schema.Command] values
// through a [Queue]:
//
//   - nodesSelected: delayed by the selection delay (250ms by default)
//     when the event asks for debouncing, and always coalesced with a
//     pending selection of the same adapter, so only the newest
//     selection is sent
//   - nodeClicked: sent immediately, never coalesced
//   - everything else (expansion, checks, child loads, actions): sent
//     immediately through the default path
//
// The queue preserves enqueue order; an immediate command flushes the
// delayed ones queued before it.
//
// Inbound, [Adapter.Apply] routes each [schema.Delta] to the matching
// tree operation without producing outbound commands. Deltas that
// reference unknown parents or nodes fail with a *tree.ConsistencyError
// and change nothing. Kinds the adapter does not know are passed to
// handlers registered with [Adapter.Handle] (lib/outline registers its
// page and detail table kinds) or logged and dropped.
//
// [Metrics] exposes command and delta counters through Prometheus.
package treeadapter
