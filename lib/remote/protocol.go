// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package remote

import (
	"github.com/bureau-foundation/treesync/lib/codec"
	"github.com/bureau-foundation/treesync/lib/schema"
)

// Action names.
const (
	ActionCommand  = "command"
	ActionSnapshot = "snapshot"
	ActionPoll     = "poll"
	ActionPush     = "push"
)

// Response is the envelope of every response.
type Response struct {
	OK    bool             `cbor:"ok"`
	Error string           `cbor:"error,omitempty"`
	Data  codec.RawMessage `cbor:"data,omitempty"`
}

// CommandRequest is the body of a "command" request.
type CommandRequest struct {
	Action  string         `cbor:"action"`
	Command schema.Command `cbor:"command"`
}

// SnapshotRequest is the body of a "snapshot" request.
type SnapshotRequest struct {
	Action string `cbor:"action"`
	Target string `cbor:"target"`
}

// PollRequest is the body of a "poll" request. WaitMillis of zero
// asks for an immediate answer.
type PollRequest struct {
	Action     string `cbor:"action"`
	Cursor     uint64 `cbor:"cursor"`
	WaitMillis int64  `cbor:"wait_ms,omitempty"`
}

// PushRequest is the body of a "push" request.
type PushRequest struct {
	Action string         `cbor:"action"`
	Deltas []schema.Delta `cbor:"deltas"`
}

// Deltas is the response data of "command".
type Deltas struct {
	Deltas []schema.Delta `cbor:"deltas"`
}

// PollResult is the response data of "snapshot", "poll" and "push".
// Cursor is the position to poll from next.
type PollResult struct {
	Cursor uint64         `cbor:"cursor"`
	Deltas []schema.Delta `cbor:"deltas,omitempty"`
}
