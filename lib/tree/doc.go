// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package tree is the client-side node hierarchy that mirrors an
// authoritative tree held by a remote authority.
//
// A [Tree] owns its nodes: the id map, the ordered roots, the ordered
// selection, and the filters. Every mutation goes through a Tree
// method (InsertNodes, DeleteNodes, SelectNodes, SetNodeExpanded,
// CheckNodes, ...), which validates references before touching
// anything. A request that names an unregistered parent or node fails
// with a [*ConsistencyError] and leaves the tree unchanged.
//
// Each mutation emits an [Event] to subscribed listeners. Events
// caused by local interaction carry Notify; the adapter in
// lib/treeadapter turns those into outbound commands. Mutations
// applied from inbound deltas never carry Notify, so they are never
// echoed back. A [Renderer] is called once per outermost operation
// with a [Batch] summary.
//
// Children can load lazily. [Node.EnsureLoadChildren] returns a
// [*Load] handle, coalescing concurrent requests onto one handle. How
// the load happens depends on the node's [Variant]: [StaticVariant]
// never fetches, [LookupVariant] fetches rows by parent key, and
// [RemoteVariant] asks the authority and completes on its
// childrenLoaded delta.
//
// A Tree is single-threaded; its owner (lib/session) serializes all
// access.
package tree
