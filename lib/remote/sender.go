// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package remote

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/bureau-foundation/treesync/lib/schema"
)

// DefaultBacklog is the number of commands a Sender buffers before
// Send fails.
const DefaultBacklog = 256

var (
	// ErrBacklogFull is returned by Send when the authority falls
	// that far behind.
	ErrBacklogFull = errors.New("remote: command backlog full")

	// ErrSenderClosed is returned by Send after Close.
	ErrSenderClosed = errors.New("remote: sender closed")
)

// Deliver applies deltas received from the authority. The session's
// Deliver method has this shape.
type Deliver func(deltas []schema.Delta) error

// SenderOptions configures a [Sender].
type SenderOptions struct {
	// Deliver applies the deltas of each command response. Required.
	Deliver Deliver

	// OnError is called with each failed call or failed delivery.
	// Delivery failures are consistency failures of the client's
	// mirror and usually end the session.
	OnError func(error)

	Backlog int
	Logger  *slog.Logger
}

// Sender forwards commands to the authority from one goroutine, in
// Send order, and delivers the deltas of each response before the
// next command goes out.
type Sender struct {
	client  *Client
	deliver Deliver
	onError func(error)
	logger  *slog.Logger

	queue chan schema.Command

	mu     sync.Mutex
	closed bool
}

func NewSender(client *Client, options SenderOptions) *Sender {
	if options.Backlog <= 0 {
		options.Backlog = DefaultBacklog
	}
	if options.Logger == nil {
		options.Logger = slog.Default()
	}
	return &Sender{
		client:  client,
		deliver: options.Deliver,
		onError: options.OnError,
		logger:  options.Logger,
		queue:   make(chan schema.Command, options.Backlog),
	}
}

// Send queues command. It never blocks.
func (s *Sender) Send(command schema.Command) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrSenderClosed
	}
	select {
	case s.queue <- command:
		return nil
	default:
		return ErrBacklogFull
	}
}

// Close stops accepting commands. Run drains what is queued and
// returns.
func (s *Sender) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.closed {
		s.closed = true
		close(s.queue)
	}
}

// Run sends queued commands until ctx is cancelled or the sender is
// closed and drained.
func (s *Sender) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case command, ok := <-s.queue:
			if !ok {
				return
			}
			s.forward(ctx, command)
		}
	}
}

func (s *Sender) forward(ctx context.Context, command schema.Command) {
	deltas, err := s.client.Command(ctx, command)
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		s.logger.Warn("command failed", "kind", command.Kind, "target", command.Target, "error", err)
		s.fail(fmt.Errorf("sending %s for %s: %w", command.Kind, command.Target, err))
		return
	}
	if len(deltas) == 0 {
		return
	}
	if err := s.deliver(deltas); err != nil {
		s.fail(fmt.Errorf("applying response to %s: %w", command.Kind, err))
	}
}

func (s *Sender) fail(err error) {
	if s.onError != nil {
		s.onError(err)
	}
}
