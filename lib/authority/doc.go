// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package authority is an in-memory authoritative tree server. It
// holds the complete state of one or more trees (loaded from a JSONC
// [Fixture]), answers client commands with deltas, hands out
// snapshots, and keeps an outbox of server-originated deltas that
// clients long-poll.
//
// Nodes of kind "remote" are served without their children: a client
// asks for them with a loadChildren command and receives nodesInserted
// followed by childrenLoaded. Every other command only updates the
// authority's record of the client's state.
//
// [Authority.Reload] swaps in a new fixture and publishes a snapshot
// of each reloaded tree; [Authority.WatchFixture] calls it whenever
// the fixture file is saved.
//
// [Authority.Register] installs the "command", "snapshot", "poll" and
// "push" actions on a remote.Server.
package authority
