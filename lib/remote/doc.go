// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package remote carries commands and deltas between a tree client and
// its authority over a Unix socket.
//
// The protocol is CBOR request/response, one request per connection
// ([Server], [Client]). Requests are CBOR maps with an "action" field;
// responses are a [Response] envelope. The actions are:
//
//   - "command": one outbound [schema.Command]; the response carries
//     the deltas the authority produced for it, applied by the client
//     in order.
//   - "snapshot": the full current state of one target as deltas.
//   - "poll": deltas the authority originated after a cursor. A long
//     poll is held by the authority until something arrives or the
//     wait passes.
//   - "push": appends deltas to the authority's outbox, for scripts
//     and tests that play the server side.
//
// [Sender] implements treeadapter.Sender on top of [Client] with a
// single goroutine, so commands reach the authority in the order the
// adapter sent them. [Subscription] adapts "poll" to the poller
// package.
package remote
