// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package remote

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// DefaultLongPollWait is how long the authority may hold a long poll.
const DefaultLongPollWait = 25 * time.Second

// Subscription tracks the poll cursor of one client. Its Poll method
// is a poller.PollFunc.
type Subscription struct {
	client   *Client
	deliver  Deliver
	longWait time.Duration

	mu     sync.Mutex
	cursor uint64
}

// NewSubscription starts polling from cursor, normally the cursor the
// snapshot was taken at. longWait of zero uses DefaultLongPollWait.
func NewSubscription(client *Client, cursor uint64, longWait time.Duration, deliver Deliver) *Subscription {
	if longWait <= 0 {
		longWait = DefaultLongPollWait
	}
	return &Subscription{client: client, deliver: deliver, longWait: longWait, cursor: cursor}
}

// Cursor returns the position the next poll starts from.
func (s *Subscription) Cursor() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cursor
}

// Poll fetches and delivers the deltas after the cursor. The cursor
// only advances once the deltas were delivered.
func (s *Subscription) Poll(ctx context.Context, long bool) error {
	wait := time.Duration(0)
	if long {
		wait = s.longWait
	}
	result, err := s.client.Poll(ctx, s.Cursor(), wait)
	if err != nil {
		return err
	}
	if len(result.Deltas) > 0 {
		if err := s.deliver(result.Deltas); err != nil {
			return fmt.Errorf("delivering polled deltas: %w", err)
		}
	}
	s.mu.Lock()
	s.cursor = result.Cursor
	s.mu.Unlock()
	return nil
}
