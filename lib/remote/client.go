// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package remote

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"time"

	"github.com/bureau-foundation/treesync/lib/codec"
	"github.com/bureau-foundation/treesync/lib/schema"
)

const (
	dialTimeout = 5 * time.Second

	// responseReadTimeout covers handler execution on top of any
	// long-poll wait the request asked for.
	responseReadTimeout = 45 * time.Second

	maxResponseSize = 16 * 1024 * 1024
)

// ServiceError is returned when the authority answers ok=false.
type ServiceError struct {
	Action  string
	Message string
}

func (e *ServiceError) Error() string {
	return fmt.Sprintf("authority error on %q: %s", e.Action, e.Message)
}

// IsServiceError reports whether err wraps a *ServiceError.
func IsServiceError(err error) bool {
	var serviceError *ServiceError
	return errors.As(err, &serviceError)
}

// Client calls an authority socket. Each call opens its own
// connection, so a Client is safe for concurrent use.
type Client struct {
	socketPath string
}

func NewClient(socketPath string) *Client {
	return &Client{socketPath: socketPath}
}

// Call sends request, which must carry an "action" field, and decodes
// the response data into result when both are present. wait extends
// the response deadline for requests the authority may hold.
func (c *Client) Call(ctx context.Context, action string, request any, result any, wait time.Duration) error {
	response, err := c.send(ctx, request, wait)
	if err != nil {
		return fmt.Errorf("calling %q on %s: %w", action, c.socketPath, err)
	}
	if !response.OK {
		return &ServiceError{Action: action, Message: response.Error}
	}
	if result != nil && len(response.Data) > 0 {
		if err := codec.Unmarshal(response.Data, result); err != nil {
			return fmt.Errorf("decoding response data for %q: %w", action, err)
		}
	}
	return nil
}

// Command sends one command and returns the deltas it produced.
func (c *Client) Command(ctx context.Context, command schema.Command) ([]schema.Delta, error) {
	var result Deltas
	err := c.Call(ctx, ActionCommand, CommandRequest{Action: ActionCommand, Command: command}, &result, 0)
	return result.Deltas, err
}

// Snapshot returns the current state of target as deltas that
// rebuild it from an empty tree, with the outbox cursor the state
// corresponds to.
func (c *Client) Snapshot(ctx context.Context, target string) (PollResult, error) {
	var result PollResult
	err := c.Call(ctx, ActionSnapshot, SnapshotRequest{Action: ActionSnapshot, Target: target}, &result, 0)
	return result, err
}

// Poll returns the deltas originated after cursor, waiting up to wait
// for the first one.
func (c *Client) Poll(ctx context.Context, cursor uint64, wait time.Duration) (PollResult, error) {
	var result PollResult
	request := PollRequest{Action: ActionPoll, Cursor: cursor, WaitMillis: wait.Milliseconds()}
	err := c.Call(ctx, ActionPoll, request, &result, wait)
	return result, err
}

// Push appends deltas to the authority's outbox.
func (c *Client) Push(ctx context.Context, deltas []schema.Delta) (uint64, error) {
	var result PollResult
	err := c.Call(ctx, ActionPush, PushRequest{Action: ActionPush, Deltas: deltas}, &result, 0)
	return result.Cursor, err
}

func (c *Client) send(ctx context.Context, request any, wait time.Duration) (*Response, error) {
	dialer := net.Dialer{Timeout: dialTimeout}
	conn, err := dialer.DialContext(ctx, "unix", c.socketPath)
	if err != nil {
		return nil, fmt.Errorf("connecting: %w", err)
	}
	defer conn.Close()

	stop := context.AfterFunc(ctx, func() { conn.Close() })
	defer stop()

	if err := codec.NewEncoder(conn).Encode(request); err != nil {
		return nil, fmt.Errorf("writing request: %w", err)
	}
	if unixConn, ok := conn.(*net.UnixConn); ok {
		unixConn.CloseWrite()
	}

	conn.SetReadDeadline(time.Now().Add(responseReadTimeout + wait))
	var response Response
	if err := codec.NewDecoder(io.LimitReader(conn, maxResponseSize)).Decode(&response); err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("reading response: %w", err)
	}
	return &response, nil
}
