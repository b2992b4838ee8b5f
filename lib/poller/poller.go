// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package poller

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/bureau-foundation/treesync/lib/clock"
)

// DefaultShortInterval is the pause between short polls.
const DefaultShortInterval = 5 * time.Second

// Status is the published state of a poller.
type Status int

const (
	StatusStopped Status = iota
	StatusRunning
	StatusFailure
)

func (s Status) String() string {
	switch s {
	case StatusRunning:
		return "running"
	case StatusFailure:
		return "failure"
	default:
		return "stopped"
	}
}

// PollFunc performs one poll request and applies what it returns.
// long asks the authority to hold the request until it has something
// to deliver (or its own timeout passes).
type PollFunc func(ctx context.Context, long bool) error

// Options configures a [Poller].
type Options struct {
	Poll PollFunc

	// Broadcaster connects the poller to the other pollers of the
	// process. A private broadcaster is used when nil.
	Broadcaster *Broadcaster

	Clock clock.Clock

	// ShortInterval overrides DefaultShortInterval.
	ShortInterval time.Duration

	// OnStatus, if set, is called after every status change.
	OnStatus func(Status)

	Logger *slog.Logger
}

// Poller runs a poll loop between Start and Stop.
type Poller struct {
	poll          PollFunc
	broadcaster   *Broadcaster
	clock         clock.Clock
	shortInterval time.Duration
	onStatus      func(Status)
	logger        *slog.Logger

	mu      sync.Mutex
	status  Status
	others  int
	hidden  bool
	long    bool
	cancel  context.CancelFunc
	done    chan struct{}
	lastErr error
}

// New creates a stopped poller and joins its broadcaster.
func New(options Options) *Poller {
	if options.Broadcaster == nil {
		options.Broadcaster = NewBroadcaster()
	}
	if options.Clock == nil {
		options.Clock = clock.Real()
	}
	if options.ShortInterval <= 0 {
		options.ShortInterval = DefaultShortInterval
	}
	if options.Logger == nil {
		options.Logger = slog.Default()
	}
	p := &Poller{
		poll:          options.Poll,
		broadcaster:   options.Broadcaster,
		clock:         options.Clock,
		shortInterval: options.ShortInterval,
		onStatus:      options.OnStatus,
		logger:        options.Logger,
		long:          true,
	}
	options.Broadcaster.join(p)
	return p
}

// Start begins polling. It does nothing if the poller is running.
func (p *Poller) Start(ctx context.Context) {
	p.mu.Lock()
	if p.status == StatusRunning {
		p.mu.Unlock()
		return
	}
	loopCtx, cancel := context.WithCancel(ctx)
	p.cancel = cancel
	p.done = make(chan struct{})
	p.lastErr = nil
	done := p.done
	p.mu.Unlock()

	p.setStatus(StatusRunning)
	go p.loop(loopCtx, done)
}

// Stop ends polling and waits for the loop to exit. It does nothing
// unless the poller is running.
func (p *Poller) Stop() {
	p.mu.Lock()
	if p.status != StatusRunning {
		p.mu.Unlock()
		return
	}
	cancel, done := p.cancel, p.done
	p.mu.Unlock()

	cancel()
	<-done
	if p.Status() == StatusRunning {
		p.setStatus(StatusStopped)
	}
}

// Close stops the poller and leaves its broadcaster.
func (p *Poller) Close() {
	p.Stop()
	p.broadcaster.leave(p)
}

// Done is closed when the current poll loop exits, either through
// Stop or after a failed poll. It is nil before the first Start.
func (p *Poller) Done() <-chan struct{} {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.done
}

func (p *Poller) Status() Status {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.status
}

// Err returns the error that moved the poller to StatusFailure.
func (p *Poller) Err() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.lastErr
}

// LongPolling reports whether the next request is a long poll.
func (p *Poller) LongPolling() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.long
}

// Others returns the number of other running pollers.
func (p *Poller) Others() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.others
}

// SetHidden records whether the view this poller serves is hidden.
func (p *Poller) SetHidden(hidden bool) {
	p.mu.Lock()
	p.hidden = hidden
	p.updateLongPollingLocked()
	p.mu.Unlock()
}

func (p *Poller) loop(ctx context.Context, done chan struct{}) {
	defer close(done)
	for {
		long := p.LongPolling()
		err := p.poll(ctx, long)
		if ctx.Err() != nil {
			return
		}
		if err != nil {
			p.mu.Lock()
			p.lastErr = fmt.Errorf("polling: %w", err)
			p.mu.Unlock()
			p.logger.Error("poll failed", "error", err)
			p.setStatus(StatusFailure)
			return
		}
		if long {
			continue
		}
		select {
		case <-ctx.Done():
			return
		case <-p.clock.After(p.shortInterval):
		}
	}
}

// setStatus records a status change and publishes it. Unchanged
// statuses are not republished, so the others count of every peer
// stays exact.
func (p *Poller) setStatus(status Status) {
	p.mu.Lock()
	if p.status == status {
		p.mu.Unlock()
		return
	}
	p.status = status
	p.mu.Unlock()

	p.logger.Info("poller status changed", "status", status.String())
	p.broadcaster.publish(p, status)
	if p.onStatus != nil {
		p.onStatus(status)
	}
}

// receive handles a status message from another poller.
func (p *Poller) receive(status Status) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if status == StatusRunning {
		p.others++
	} else if p.others > 0 {
		p.others--
	}
	p.updateLongPollingLocked()
}

func (p *Poller) updateLongPollingLocked() {
	long := !(p.hidden && p.others >= 1)
	if long != p.long {
		p.long = long
		if long {
			p.logger.Debug("switched to long polling")
		} else {
			p.logger.Debug("switched to short polling")
		}
	}
}
