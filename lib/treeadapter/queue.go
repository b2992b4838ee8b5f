// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package treeadapter

import (
	"log/slog"
	"sync"
	"time"

	"github.com/bureau-foundation/treesync/lib/clock"
	"github.com/bureau-foundation/treesync/lib/schema"
)

// Sender delivers commands to the authority. Send must not block on
// the authority's answer; answers come back as deltas.
type Sender interface {
	Send(command schema.Command) error
}

// SenderFunc adapts a function to [Sender].
type SenderFunc func(schema.Command) error

func (f SenderFunc) Send(command schema.Command) error { return f(command) }

// Coalesce reports whether next supersedes the pending command.
type Coalesce func(next, pending schema.Command) bool

// SameTargetAndKind supersedes pending commands of the same kind from
// the same adapter.
func SameTargetAndKind(next, pending schema.Command) bool {
	return next.Target == pending.Target && next.Kind == pending.Kind
}

// QueueOptions configures a [Queue].
type QueueOptions struct {
	Clock clock.Clock

	// Run executes the delayed flush. A session passes its Do method
	// so the flush runs under the session lock. Nil runs it directly
	// on the timer goroutine.
	Run func(func())

	Logger  *slog.Logger
	Metrics *Metrics
}

// Queue orders outbound commands and applies delay and coalescing.
// Commands are always sent in enqueue order: an immediate command
// flushes every delayed command queued before it, so the authority
// never sees a click before the selection that preceded it.
type Queue struct {
	sender  Sender
	clock   clock.Clock
	run     func(func())
	logger  *slog.Logger
	metrics *Metrics

	mu      sync.Mutex
	pending []schema.Command
	timer   *clock.Timer
}

// NewQueue creates a queue that delivers to sender.
func NewQueue(sender Sender, options QueueOptions) *Queue {
	if options.Clock == nil {
		options.Clock = clock.Real()
	}
	if options.Run == nil {
		options.Run = func(fn func()) { fn() }
	}
	if options.Logger == nil {
		options.Logger = slog.Default()
	}
	return &Queue{
		sender:  sender,
		clock:   options.Clock,
		run:     options.Run,
		logger:  options.Logger,
		metrics: options.Metrics,
	}
}

// Enqueue queues command. Pending commands that coalesce reports as
// superseded are dropped first. With a positive delay the flush is
// (re)scheduled delay from now; otherwise everything queued is sent
// before Enqueue returns.
func (q *Queue) Enqueue(command schema.Command, delay time.Duration, coalesce Coalesce) {
	q.mu.Lock()
	if coalesce != nil {
		kept := q.pending[:0]
		for _, pending := range q.pending {
			if coalesce(command, pending) {
				q.metrics.coalesced(string(pending.Kind))
				continue
			}
			kept = append(kept, pending)
		}
		q.pending = kept
	}
	q.pending = append(q.pending, command)

	if delay <= 0 {
		batch := q.takeLocked()
		q.mu.Unlock()
		q.deliver(batch)
		return
	}
	if q.timer == nil {
		q.timer = q.clock.AfterFunc(delay, q.fire)
	} else {
		q.timer.Reset(delay)
	}
	q.mu.Unlock()
}

func (q *Queue) fire() { q.run(q.Flush) }

// Flush sends everything queued now.
func (q *Queue) Flush() {
	q.mu.Lock()
	batch := q.takeLocked()
	q.mu.Unlock()
	q.deliver(batch)
}

// Pending returns the number of queued, unsent commands.
func (q *Queue) Pending() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.pending)
}

// Stop cancels the delayed flush and discards queued commands.
func (q *Queue) Stop() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.takeLocked()
}

func (q *Queue) takeLocked() []schema.Command {
	batch := q.pending
	q.pending = nil
	if q.timer != nil {
		q.timer.Stop()
	}
	return batch
}

func (q *Queue) deliver(batch []schema.Command) {
	for _, command := range batch {
		if err := q.sender.Send(command); err != nil {
			q.metrics.dropped(string(command.Kind))
			q.logger.Warn("dropping command", "kind", command.Kind, "target", command.Target, "error", err)
			continue
		}
		q.metrics.sent(string(command.Kind))
	}
}
