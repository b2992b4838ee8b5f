// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package authority

import (
	"context"
	"time"

	"github.com/bureau-foundation/treesync/lib/codec"
	"github.com/bureau-foundation/treesync/lib/remote"
)

// MaxPollWait caps the wait a client may ask for.
const MaxPollWait = 30 * time.Second

// Register installs the authority's actions on server.
func (a *Authority) Register(server *remote.Server) {
	server.Handle(remote.ActionCommand, func(ctx context.Context, raw []byte) (any, error) {
		var request remote.CommandRequest
		if err := codec.Unmarshal(raw, &request); err != nil {
			return nil, err
		}
		deltas, err := a.HandleCommand(request.Command)
		if err != nil {
			return nil, err
		}
		return remote.Deltas{Deltas: deltas}, nil
	})

	server.Handle(remote.ActionSnapshot, func(ctx context.Context, raw []byte) (any, error) {
		var request remote.SnapshotRequest
		if err := codec.Unmarshal(raw, &request); err != nil {
			return nil, err
		}
		deltas, cursor, err := a.Snapshot(request.Target)
		if err != nil {
			return nil, err
		}
		return remote.PollResult{Cursor: cursor, Deltas: deltas}, nil
	})

	server.Handle(remote.ActionPoll, func(ctx context.Context, raw []byte) (any, error) {
		var request remote.PollRequest
		if err := codec.Unmarshal(raw, &request); err != nil {
			return nil, err
		}
		wait := min(time.Duration(request.WaitMillis)*time.Millisecond, MaxPollWait)
		deltas, cursor, err := a.Poll(ctx, request.Cursor, wait)
		if err != nil {
			return nil, err
		}
		return remote.PollResult{Cursor: cursor, Deltas: deltas}, nil
	})

	server.Handle(remote.ActionPush, func(ctx context.Context, raw []byte) (any, error) {
		var request remote.PushRequest
		if err := codec.Unmarshal(raw, &request); err != nil {
			return nil, err
		}
		cursor, err := a.Push(request.Deltas)
		if err != nil {
			return nil, err
		}
		return remote.PollResult{Cursor: cursor}, nil
	})
}
